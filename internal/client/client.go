package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/UltraSive/ttlkv/internal/datastore"
)

const (
	null        = "(null)"
	errorPrefix = "Error: "
)

var (
	// ErrUnencodable is returned for keys or values the line protocol cannot
	// carry, or that would corrupt a later STATS reply: empty strings and
	// anything containing whitespace or '|'.
	ErrUnencodable = errors.New("client: value cannot be sent over the line protocol")

	ErrMalformedStats = errors.New("client: malformed stats item")
)

// ServerError is an "Error: ..." reply from the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server: " + e.Message }

// Client talks to a ttlkv server. Every call dials a fresh connection, so a
// Client is safe for concurrent use.
type Client struct {
	Network string
	Addr    string
	Timeout time.Duration
}

func New(network, addr string, timeout time.Duration) *Client {
	return &Client{Network: network, Addr: addr, Timeout: timeout}
}

func (c *Client) withConn(ctx context.Context, fn func(conn net.Conn) error) error {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, c.Network, c.Addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	deadline, ok := ctx.Deadline()
	if c.Timeout > 0 {
		if t := time.Now().Add(c.Timeout); !ok || t.Before(deadline) {
			deadline, ok = t, true
		}
	}
	if ok {
		_ = conn.SetDeadline(deadline)
	}
	return fn(conn)
}

// Do sends one raw command line and returns the response line without its
// CRLF. Error replies are returned as they are, not converted.
func (c *Client) Do(ctx context.Context, line string) (string, error) {
	if strings.ContainsAny(line, "\r\n") {
		return "", fmt.Errorf("%w: line contains a newline", ErrUnencodable)
	}
	var out string
	err := c.withConn(ctx, func(conn net.Conn) error {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			return err
		}
		resp, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return err
		}
		out = strings.TrimRight(resp, "\r\n")
		return nil
	})
	return out, err
}

func (c *Client) call(ctx context.Context, line string) (string, error) {
	out, err := c.Do(ctx, line)
	if err != nil {
		return "", err
	}
	if msg, ok := strings.CutPrefix(out, errorPrefix); ok {
		return "", &ServerError{Message: msg}
	}
	return out, nil
}

// Get returns the value for key. A missing key, and a stored value that is
// literally "(null)", both report found == false.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if err := checkToken(key); err != nil {
		return "", false, err
	}
	out, err := c.call(ctx, "GET "+key)
	if err != nil {
		return "", false, err
	}
	if out == null {
		return "", false, nil
	}
	return out, true, nil
}

// Set stores value under key. A negative ttl never expires.
func (c *Client) Set(ctx context.Context, key, value string, ttl int64) error {
	if err := checkToken(key); err != nil {
		return err
	}
	if err := checkToken(value); err != nil {
		return err
	}
	_, err := c.call(ctx, "SET "+key+" "+value+" "+strconv.FormatInt(ttl, 10))
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := checkToken(key); err != nil {
		return err
	}
	_, err := c.call(ctx, "DEL "+key)
	return err
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	return c.call(ctx, "PING")
}

// Stats returns the live entries reported by the server. When some items of
// the reply cannot be parsed, the entries that could be are still returned
// together with an error wrapping ErrMalformedStats.
func (c *Client) Stats(ctx context.Context) ([]datastore.Entry, error) {
	out, err := c.call(ctx, "STATS")
	if err != nil {
		return nil, err
	}
	return ParseStats(out)
}

// ParseStats parses a STATS reply. A segment that does not start with "key="
// is taken to be the tail of the previous item whose key or value contained
// '|'. Items that still do not parse are skipped and reported in the error.
func ParseStats(s string) ([]datastore.Entry, error) {
	if s == "" {
		return nil, nil
	}
	var items []string
	for _, seg := range strings.Split(s, "|") {
		if n := len(items); n > 0 && !strings.HasPrefix(seg, "key=") {
			items[n-1] += "|" + seg
			continue
		}
		items = append(items, seg)
	}

	out := make([]datastore.Entry, 0, len(items))
	var errs []error
	for _, item := range items {
		e, err := parseStatsItem(item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, e)
	}
	return out, errors.Join(errs...)
}

// parseStatsItem parses one "key=K,value=V,ttl=T" item. The ttl is the last
// field and the key cannot contain whitespace, so the ttl is split from the
// right and the key at the first ",value=".
func parseStatsItem(item string) (datastore.Entry, error) {
	rest, ok := strings.CutPrefix(item, "key=")
	if !ok {
		return datastore.Entry{}, fmt.Errorf("%w: %q", ErrMalformedStats, item)
	}
	i := strings.LastIndex(rest, ",ttl=")
	if i < 0 {
		return datastore.Entry{}, fmt.Errorf("%w: %q", ErrMalformedStats, item)
	}
	ttl, err := strconv.ParseInt(rest[i+len(",ttl="):], 10, 64)
	if err != nil {
		return datastore.Entry{}, fmt.Errorf("%w: ttl in %q: %w", ErrMalformedStats, item, err)
	}
	key, payload, ok := strings.Cut(rest[:i], ",value=")
	if !ok {
		return datastore.Entry{}, fmt.Errorf("%w: %q", ErrMalformedStats, item)
	}
	return datastore.Entry{Key: key, Record: datastore.Record{Payload: payload, Expiry: ttl}}, nil
}

func checkToken(s string) error {
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 || strings.ContainsRune(s, '|') {
		return fmt.Errorf("%w: %q", ErrUnencodable, s)
	}
	return nil
}
