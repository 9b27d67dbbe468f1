package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/net/netutil"
)

// DefaultMaxLineBytes bounds a request line when LineServer.MaxLineBytes is
// unset.
const DefaultMaxLineBytes = 64 * 1024

// ErrLineTooLong is returned by ReadLine when a line does not fit the reader's
// buffer.
var ErrLineTooLong = errors.New("line too long")

// LineHandler answers one protocol line with one response line.
type LineHandler interface {
	Serve(ctx context.Context, line string) string
}

// LineServer serves a line protocol: every newline-terminated request gets
// exactly one CRLF-terminated response.
type LineServer struct {
	Handler      LineHandler
	MaxConns     int
	MaxLineBytes int
	// IdleTimeout closes connections that send nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
	Log         logr.Logger

	wg sync.WaitGroup
}

// Serve accepts connections on l until ctx is cancelled or Accept fails
// permanently, then closes l and every open connection and waits for their
// goroutines to finish. Timeout errors from Accept are retried with backoff.
func (s *LineServer) Serve(ctx context.Context, l net.Listener) error {
	if s.MaxConns > 0 {
		l = netutil.LimitListener(l, s.MaxConns)
	}
	connCtx, cancelConns := context.WithCancel(ctx)
	stop := context.AfterFunc(connCtx, func() { _ = l.Close() })
	defer func() {
		stop()
		_ = l.Close()
		cancelConns()
		s.wg.Wait()
	}()

	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				return err
			}
			delay = nextAcceptDelay(delay)
			s.Log.Error(err, "accept", "retryIn", delay.String())
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			continue
		}
		delay = 0
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(connCtx, conn)
		}()
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	return min(2*d, maxAcceptDelay)
}

func (s *LineServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log := s.Log.WithValues("conn", uuid.NewString(), "remote", remoteAddr(conn))
	log.V(1).Info("connection opened")
	defer log.V(1).Info("connection closed")

	limit := s.MaxLineBytes
	if limit <= 0 {
		limit = DefaultMaxLineBytes
	}
	rd := bufio.NewReaderSize(conn, limit)
	w := bufio.NewWriter(conn)

	for {
		if s.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		}
		line, err := ReadLine(rd)
		if errors.Is(err, ErrLineTooLong) {
			log.Info("discarding oversized line", "limit", limit)
			err = discardLine(rd)
			if werr := reply(w, "Error: "+ErrLineTooLong.Error()); werr != nil || err != nil {
				return
			}
			continue
		}
		if strings.TrimSpace(line) != "" {
			if werr := reply(w, s.Handler.Serve(ctx, line)); werr != nil {
				log.Error(werr, "write")
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.V(1).Info("read ended", "error", err.Error())
			}
			return
		}
	}
}

// ReadLine reads one line and strips the trailing CRLF or LF. A final line
// without a terminator is returned together with io.EOF.
func ReadLine(rd *bufio.Reader) (string, error) {
	b, err := rd.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", ErrLineTooLong
	}
	return strings.TrimRight(string(b), "\r\n"), err
}

// discardLine skips the remainder of an oversized line.
func discardLine(rd *bufio.Reader) error {
	for {
		_, err := rd.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

// WriteLine writes s followed by CRLF.
func WriteLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\r\n")
	return err
}

func reply(w *bufio.Writer, s string) error {
	if err := WriteLine(w, s); err != nil {
		return err
	}
	return w.Flush()
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
