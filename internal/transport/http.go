package transport

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
)

// Info feeds GET /info.
type Info struct {
	Started time.Time
	// Keys reports resident keys, expired ones included.
	Keys func() int
}

// NewHTTPRouter exposes the line protocol over HTTP: POST / takes one command
// line as its body and answers with the response line.
func NewHTTPRouter(h LineHandler, info Info, maxBody int) http.Handler {
	if maxBody <= 0 {
		maxBody = DefaultMaxLineBytes
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, int64(maxBody)+1))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(body) > maxBody {
			http.Error(w, ErrLineTooLong.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		line := strings.TrimRight(string(body), "\r\n")
		if strings.ContainsAny(line, "\r\n") {
			http.Error(w, "one command per request", http.StatusBadRequest)
			return
		}
		writeText(w, http.StatusOK, h.Serve(r.Context(), line))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		out := h.Serve(r.Context(), "PING")
		if out != "PONG" {
			writeText(w, http.StatusServiceUnavailable, out)
			return
		}
		writeText(w, http.StatusOK, out)
	})

	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		keys := 0
		if info.Keys != nil {
			keys = info.Keys()
		}
		writeText(w, http.StatusOK, fmt.Sprintf("started: %s\nkeys: %s",
			humanize.Time(info.Started), humanize.Comma(int64(keys))))
	})

	return gzhttp.GzipHandler(r)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, s+"\r\n")
}
