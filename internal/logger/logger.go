package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Options controls where log lines go.
type Options struct {
	// Path is a log file opened in append mode. Empty means stderr.
	Path string
}

// SetVerbosity enables V(n) lines for n <= v on every logger this package
// builds and returns the previous level. The level is process-wide, so
// binaries call it once at startup.
func SetVerbosity(v int) int {
	return stdr.SetVerbosity(v)
}

// New builds a logr.Logger backed by the standard library logger. The
// returned closer releases the log file, if one was opened.
func New(opts Options) (logr.Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.Path != "" {
		if err := ensureParentDir(opts.Path); err != nil {
			return logr.Discard(), nil, err
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return logr.Discard(), nil, err
		}
		w = f
		closer = f
	}
	return NewWriter(w), closer, nil
}

// NewWriter builds a logger that writes to w.
func NewWriter(w io.Writer) logr.Logger {
	return stdr.New(log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)).WithName("ttlkv")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
