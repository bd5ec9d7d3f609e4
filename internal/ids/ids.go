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

// Package ids hands out the monotonically increasing identifiers for
// sockets and endpoints. Kept as its own tiny package (rather than living
// in reactor) so both the proto and reactor packages can reference the id
// types without an import cycle.
package ids

import "sync/atomic"

// SocketID identifies a Socket for the lifetime of the process.
type SocketID uint64

// EndpointID identifies a Pipe or Acceptor for the lifetime of the
// process; it also doubles as the endpoint registration token.
type EndpointID uint64

var (
	nextSocket   uint64
	nextEndpoint uint64
)

// NextSocketID returns a fresh, strictly increasing SocketID.
func NextSocketID() SocketID {
	return SocketID(atomic.AddUint64(&nextSocket, 1))
}

// NextEndpointID returns a fresh, strictly increasing EndpointID.
func NextEndpointID() EndpointID {
	return EndpointID(atomic.AddUint64(&nextEndpoint, 1))
}
