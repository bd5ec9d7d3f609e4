//go:build !linux && !darwin && !freebsd

package transport

import (
	"context"

	"github.com/xtaci/spnet/internal/errs"
)

// DialIPC and ListenIPC are unsupported on platforms without Unix domain
// socket support in the standard library's net package.
func DialIPC(ctx context.Context, path string) (Connection, error) {
	return nil, errs.New(errs.Other, "ipc sockets unsupported on this platform")
}

func ListenIPC(path string) (Listener, error) {
	return nil, errs.New(errs.Other, "ipc sockets unsupported on this platform")
}
