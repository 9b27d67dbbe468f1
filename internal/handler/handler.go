package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/UltraSive/ttlkv/internal/clock"
	"github.com/UltraSive/ttlkv/internal/datastore"
)

const (
	// Ack is the reply to commands that only report success.
	Ack = "Ok"
	// Null is the reply to GET for a missing key. A stored payload equal to
	// Null cannot be told apart from a missing key.
	Null = "(null)"
	// ErrorPrefix starts every error reply.
	ErrorPrefix = "Error: "
)

type command struct {
	// required names the positional arguments that must be present.
	required []string
	run      func(h *Handler, args []string) (string, error)
}

var commands = map[string]command{
	"SET":   {required: []string{"Key", "Value"}, run: (*Handler).set},
	"GET":   {required: []string{"Key"}, run: (*Handler).get},
	"DEL":   {required: []string{"Key"}, run: (*Handler).del},
	"PING":  {run: (*Handler).ping},
	"STATS": {run: (*Handler).stats},
}

// Handler turns protocol lines into datastore calls. It keeps no per-call
// state and is safe for concurrent use.
type Handler struct {
	DB  datastore.Datastore
	Log logr.Logger

	inst *instruments
}

func New(db datastore.Datastore, log logr.Logger) *Handler {
	return &Handler{DB: db, Log: log, inst: newInstruments(log)}
}

// Serve executes line and always returns exactly one response line.
func (h *Handler) Serve(ctx context.Context, line string) string {
	out, err := h.Execute(ctx, line)
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return out
}

// Execute executes line and returns the rendered result, or one of
// *UnknownCommandError, *MissingArgumentError and *InvalidArgumentError.
func (h *Handler) Execute(ctx context.Context, line string) (string, error) {
	tokens := strings.Fields(line)
	name := ""
	if len(tokens) > 0 {
		name = tokens[0]
	}
	ctx, done := h.inst.start(ctx, name)

	cmd, ok := commands[name]
	if !ok {
		err := &UnknownCommandError{Name: name}
		done(ctx, err)
		return "", err
	}
	args := tokens[1:]
	if len(args) < len(cmd.required) {
		err := &MissingArgumentError{Command: name, Argument: cmd.required[len(args)]}
		done(ctx, err)
		return "", err
	}

	out, err := cmd.run(h, args)
	done(ctx, err)
	if err != nil {
		h.Log.V(1).Info("command rejected", "command", name, "error", err.Error())
	}
	return out, err
}

func (h *Handler) set(args []string) (string, error) {
	ttl := clock.NeverExpires
	if len(args) > 2 {
		n, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return "", &InvalidArgumentError{Command: "SET", Argument: "TTL", Value: args[2], Err: err}
		}
		ttl = n
	}
	h.DB.Set(args[0], args[1], ttl)
	return Ack, nil
}

func (h *Handler) get(args []string) (string, error) {
	rec, ok := h.DB.Get(args[0])
	if !ok {
		return Null, nil
	}
	return rec.Payload, nil
}

func (h *Handler) del(args []string) (string, error) {
	h.DB.Delete(args[0])
	return Ack, nil
}

func (h *Handler) ping([]string) (string, error) {
	return h.DB.Ping(), nil
}

func (h *Handler) stats([]string) (string, error) {
	entries := h.DB.Stats()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, FormatEntry(e))
	}
	return strings.Join(parts, "|"), nil
}

// FormatEntry renders one STATS item as key=K,value=V,ttl=T where T is the
// stored absolute expiry.
func FormatEntry(e datastore.Entry) string {
	return "key=" + e.Key + ",value=" + e.Payload + ",ttl=" + strconv.FormatInt(e.Expiry, 10)
}
