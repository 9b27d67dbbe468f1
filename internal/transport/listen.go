package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
)

// Listen opens a listener on network/addr. For unix sockets a stale socket
// file left by a previous run is removed first and the new one is made
// private to the owner.
func Listen(ctx context.Context, network, addr string, reusePort bool) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(addr); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("removing stale socket: %w", err)
		}
	}
	lc := net.ListenConfig{}
	if reusePort && network == "tcp" {
		lc.Control = reusePortControl
	}
	l, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}
	if network == "unix" {
		_ = os.Chmod(addr, 0o600)
	}
	return l, nil
}
