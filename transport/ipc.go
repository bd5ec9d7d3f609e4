//go:build linux || darwin || freebsd

package transport

import (
	"context"
	"net"
	"os"

	"github.com/xtaci/spnet/internal/errs"
)

// ipcConn adapts *net.UnixConn to Connection. SetNoDelay is a no-op: Unix
// domain sockets have no Nagle algorithm to disable.
type ipcConn struct {
	*net.UnixConn
}

func (c ipcConn) SetNoDelay(bool) error { return nil }

// DialIPC connects to a filesystem-path Unix domain socket.
func DialIPC(ctx context.Context, path string) (Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, errs.Wrap(errs.Other, err, "dial ipc "+path)
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, errs.New(errs.Other, "dialed connection is not unix")
	}
	return ipcConn{uc}, nil
}

type ipcListener struct {
	ln   *net.UnixListener
	path string
}

func (l *ipcListener) Accept() (Connection, error) {
	conn, err := l.ln.AcceptUnix()
	if err != nil {
		return nil, errs.Wrap(errs.Other, err, "accept ipc")
	}
	return ipcConn{conn}, nil
}

func (l *ipcListener) Close() error {
	err := l.ln.Close()
	os.Remove(l.path)
	return err
}

func (l *ipcListener) Addr() net.Addr { return l.ln.Addr() }

// ListenIPC binds a Unix domain socket at path, removing any stale socket
// file left behind by a previous crashed process first.
func ListenIPC(path string) (Listener, error) {
	_ = os.Remove(path)
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "resolve ipc addr "+path)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, errs.Wrap(errs.Other, err, "listen ipc "+path)
	}
	return &ipcListener{ln: ln, path: path}, nil
}
