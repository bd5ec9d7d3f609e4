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

// Package transport abstracts the byte-stream connections and listeners
// the pipe FSM is layered over. Two concrete kinds are provided: TCP and
// local IPC (Unix domain) sockets.
package transport

import (
	"context"
	"io"
	"net"
)

// Connection is a byte stream whose reads and writes never run on the
// reactor goroutine: the concrete net.Conn backing it is driven by small
// helper goroutines (see the reactor's startPipeIO) rather than raw non-blocking
// syscalls.
type Connection interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	// SetNoDelay disables Nagle-style coalescing where the underlying
	// transport supports it (TCP); a no-op for IPC sockets.
	SetNoDelay(bool) error
}

// Listener produces Connections, one per accepted peer.
type Listener interface {
	Accept() (Connection, error)
	Close() error
	Addr() net.Addr
}

// Dialer opens an outbound Connection to target. Context governs connect
// timeout only; once established the Connection itself is driven by the
// reactor.
type Dialer func(ctx context.Context, target string) (Connection, error)

// ListenFunc builds a Listener bound to target.
type ListenFunc func(target string) (Listener, error)
