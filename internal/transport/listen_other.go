//go:build !unix

package transport

import "syscall"

// SO_REUSEPORT is not available here; the option is ignored.
func reusePortControl(network, address string, c syscall.RawConn) error {
	return nil
}
