// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package transport

import (
	"context"
	"net"

	"github.com/xtaci/spnet/internal/errs"
)

// tcpConn adapts *net.TCPConn to Connection.
type tcpConn struct {
	*net.TCPConn
}

func (c tcpConn) SetNoDelay(b bool) error { return c.TCPConn.SetNoDelay(b) }

// DialTCP opens an outbound TCP connection with Nagle disabled.
func DialTCP(ctx context.Context, addr string) (Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.Wrap(errs.Other, err, "dial tcp "+addr)
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, errs.New(errs.Other, "dialed connection is not TCP")
	}
	_ = tc.SetNoDelay(true)
	return tcpConn{tc}, nil
}

// tcpListener adapts *net.TCPListener to Listener. SO_REUSEADDR is set
// through net.ListenConfig's Control hook (see listen_unix.go).
type tcpListener struct {
	ln *net.TCPListener
}

func (l *tcpListener) Accept() (Connection, error) {
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		return nil, errs.Wrap(errs.Other, err, "accept tcp")
	}
	_ = conn.SetNoDelay(true)
	return tcpConn{conn}, nil
}

func (l *tcpListener) Close() error { return l.ln.Close() }
func (l *tcpListener) Addr() net.Addr { return l.ln.Addr() }

// ListenTCP binds a TCP listener with reuse-address semantics.
func ListenTCP(addr string) (Listener, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, errs.Wrap(errs.Other, err, "listen tcp "+addr)
	}
	tln, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, errs.New(errs.Other, "listener is not TCP")
	}
	return &tcpListener{ln: tln}, nil
}
