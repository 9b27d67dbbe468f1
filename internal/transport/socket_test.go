package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltraSive/ttlkv/internal/clock"
	"github.com/UltraSive/ttlkv/internal/datastore"
	"github.com/UltraSive/ttlkv/internal/handler"
)

func startLineServer(t *testing.T, network, addr string, srv *LineServer) net.Addr {
	t.Helper()
	if srv.Handler == nil {
		srv.Handler = handler.New(datastore.NewMemory(clock.NewManual(0), 4), logr.Discard())
	}
	srv.Log = logr.Discard()

	ctx, cancel := context.WithCancel(context.Background())
	l, err := Listen(ctx, network, addr, false)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return l.Addr()
}

func roundTrip(t *testing.T, rd *bufio.Reader, conn net.Conn, line string) string {
	t.Helper()
	_, err := io.WriteString(conn, line+"\n")
	require.NoError(t, err)
	resp, err := rd.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(resp, "\r\n"), "response must end in CRLF: %q", resp)
	return strings.TrimSuffix(resp, "\r\n")
}

func TestLineServerSession(t *testing.T) {
	addr := startLineServer(t, "tcp", "127.0.0.1:0", &LineServer{})

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	rd := bufio.NewReader(conn)

	assert.Equal(t, "PONG", roundTrip(t, rd, conn, "PING"))
	assert.Equal(t, "Ok", roundTrip(t, rd, conn, "SET a hello"))
	assert.Equal(t, "hello", roundTrip(t, rd, conn, "GET a"))
	assert.Equal(t, "Error: Unknown command - BOGUS", roundTrip(t, rd, conn, "BOGUS x"))
	assert.Equal(t, "Ok", roundTrip(t, rd, conn, "DEL a"))
	assert.Equal(t, "(null)", roundTrip(t, rd, conn, "GET a"))
}

func TestLineServerPipelinedAndCRLF(t *testing.T) {
	addr := startLineServer(t, "tcp", "127.0.0.1:0", &LineServer{})

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, "SET k v\r\n\r\nGET k\r\nPING\n")
	require.NoError(t, err)

	rd := bufio.NewReader(conn)
	for _, want := range []string{"Ok", "v", "PONG"} {
		got, err := rd.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, want+"\r\n", got)
	}
}

func TestLineServerFinalLineWithoutNewline(t *testing.T) {
	addr := startLineServer(t, "tcp", "127.0.0.1:0", &LineServer{})

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, "PING")
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "PONG\r\n", string(out))
}

func TestLineServerLineTooLong(t *testing.T) {
	addr := startLineServer(t, "tcp", "127.0.0.1:0", &LineServer{MaxLineBytes: 32})

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, "SET k "+strings.Repeat("x", 200)+"\nPING\n")
	require.NoError(t, err)

	rd := bufio.NewReader(conn)
	got, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Error: line too long\r\n", got)

	got, err = rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PONG\r\n", got)
}

func TestLineServerIdleTimeout(t *testing.T) {
	addr := startLineServer(t, "tcp", "127.0.0.1:0", &LineServer{IdleTimeout: 50 * time.Millisecond})

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLineServerConcurrentClients(t *testing.T) {
	addr := startLineServer(t, "tcp", "127.0.0.1:0", &LineServer{MaxConns: 4})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr.String())
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			rd := bufio.NewReader(conn)
			key := string(rune('a' + i))
			for j := 0; j < 20; j++ {
				_, err := io.WriteString(conn, "SET "+key+" v\nGET "+key+"\n")
				if !assert.NoError(t, err) {
					return
				}
				ok, _ := rd.ReadString('\n')
				got, _ := rd.ReadString('\n')
				assert.Equal(t, "Ok\r\n", ok)
				assert.Equal(t, "v\r\n", got)
			}
		}(i)
	}
	wg.Wait()
}

func TestLineServerUnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ttlkv.sock")
	addr := startLineServer(t, "unix", sock, &LineServer{})

	conn, err := net.Dial("unix", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "PONG", roundTrip(t, bufio.NewReader(conn), conn, "PING"))
}

// chanListener hands out queued connections and accept errors.
type chanListener struct {
	conns  chan net.Conn
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newChanListener() *chanListener {
	return &chanListener{
		conns:  make(chan net.Conn, 1),
		errs:   make(chan error, 8),
		closed: make(chan struct{}),
	}
}

func (l *chanListener) Accept() (net.Conn, error) {
	select {
	case err := <-l.errs:
		return nil, err
	default:
	}
	select {
	case err := <-l.errs:
		return nil, err
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *chanListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *chanListener) Addr() net.Addr { return &net.UnixAddr{Name: "chan", Net: "unix"} }

type timeoutError struct{}

func (timeoutError) Error() string   { return "accept timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestLineServerRetriesAcceptTimeouts(t *testing.T) {
	l := newChanListener()
	for i := 0; i < 3; i++ {
		l.errs <- timeoutError{}
	}
	srv := &LineServer{
		Handler: handler.New(datastore.NewMemory(clock.NewManual(0), 1), logr.Discard()),
		Log:     logr.Discard(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()

	client, server := net.Pipe()
	defer client.Close()
	l.conns <- server
	_ = client.SetDeadline(time.Now().Add(2 * time.Second))
	assert.Equal(t, "PONG", roundTrip(t, bufio.NewReader(client), client, "PING"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestLineServerAcceptFailureClosesConnections(t *testing.T) {
	l := newChanListener()
	srv := &LineServer{
		Handler: handler.New(datastore.NewMemory(clock.NewManual(0), 1), logr.Discard()),
		Log:     logr.Discard(),
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), l) }()

	client, server := net.Pipe()
	defer client.Close()
	l.conns <- server
	_ = client.SetDeadline(time.Now().Add(2 * time.Second))
	rd := bufio.NewReader(client)
	assert.Equal(t, "PONG", roundTrip(t, rd, client, "PING"))

	boom := errors.New("accept: too many open files")
	l.errs <- boom
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve waited on an open connection")
	}

	_, err := rd.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF, "connection is closed")
	select {
	case <-l.closed:
	default:
		t.Error("listener was not closed")
	}
}

func TestNextAcceptDelay(t *testing.T) {
	d := nextAcceptDelay(0)
	assert.Equal(t, minAcceptDelay, d)
	assert.Equal(t, 2*minAcceptDelay, nextAcceptDelay(d))
	for i := 0; i < 20; i++ {
		d = nextAcceptDelay(d)
	}
	assert.Equal(t, maxAcceptDelay, d)
}

func TestReadLine(t *testing.T) {
	rd := bufio.NewReaderSize(strings.NewReader("GET a\r\nPING\nlast"), 16)

	line, err := ReadLine(rd)
	require.NoError(t, err)
	assert.Equal(t, "GET a", line)

	line, err = ReadLine(rd)
	require.NoError(t, err)
	assert.Equal(t, "PING", line)

	line, err = ReadLine(rd)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "last", line)

	long := bufio.NewReaderSize(strings.NewReader(strings.Repeat("x", 40)+"\n"), 16)
	_, err = ReadLine(long)
	assert.ErrorIs(t, err, ErrLineTooLong)
}
