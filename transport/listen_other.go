//go:build !linux && !darwin && !freebsd

package transport

import "syscall"

// reuseAddrControl is a no-op on platforms without the unix SO_REUSEADDR
// sockopt wrapper; the listener still binds, just without reuse-address
// tuning.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
