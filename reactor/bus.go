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

package reactor

import (
	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/transport"
)

// Signal is a cross-goroutine event a pipe's I/O workers or a listener's
// accept loop post onto the dispatcher's bus. The dispatcher owns all
// protocol/pipe/socket state on a single goroutine, so pipe commands and
// socket events are direct synchronous method calls rather than bus
// traffic; what genuinely must cross a goroutine boundary is I/O
// completion and acceptance, and that is what Signal carries.
type Signal interface {
	isSignal()
}

// SigGreeting reports a pipe's reader worker finished reading the peer's
// 8-byte handshake greeting.
type SigGreeting struct {
	Pipe  ids.EndpointID
	Bytes []byte
}

func (SigGreeting) isSignal() {}

// SigFrameRead reports a fully-framed inbound payload read by a pipe's
// reader worker.
type SigFrameRead struct {
	Pipe    ids.EndpointID
	Payload []byte
}

func (SigFrameRead) isSignal() {}

// SigFrameWritten reports a pipe's writer worker finished flushing the
// pending frame.
type SigFrameWritten struct {
	Pipe ids.EndpointID
}

func (SigFrameWritten) isSignal() {}

// SigPipeError reports an I/O fault on a pipe: ConnectionReset on
// hang-up, ConnectionAborted on a transport-layer fault.
type SigPipeError struct {
	Pipe ids.EndpointID
	Err  error
}

func (SigPipeError) isSignal() {}

// SigAccepted reports a freshly accepted connection on a listener,
// already wrapped by the accept loop; the dispatcher still owns assigning
// it an EndpointID and a Pipe.
type SigAccepted struct {
	Listener ids.EndpointID
	Conn     transport.Connection
}

func (SigAccepted) isSignal() {}

// SigAcceptorError reports a non-recoverable listener error; socket
// policy (reschedule Rebind) decides what happens next.
type SigAcceptorError struct {
	Listener ids.EndpointID
	Err      error
}

func (SigAcceptorError) isSignal() {}

// SigDialed reports a background dial attempt succeeded.
type SigDialed struct {
	Attempt ids.EndpointID
	Conn    transport.Connection
}

func (SigDialed) isSignal() {}

// SigDialError reports a background dial attempt failed; the dispatcher
// schedules a backed-off Reconnect.
type SigDialError struct {
	Attempt ids.EndpointID
	Err     error
}

func (SigDialError) isSignal() {}

// bus is the channel workers post Signals onto. Buffered generously since
// producers (I/O worker goroutines) must never block on a slow
// dispatcher; a full bus drops the signal rather than growing without
// bound.
type bus struct {
	ch chan Signal
}

func newBus(capacity int) *bus {
	return &bus{ch: make(chan Signal, capacity)}
}

// post is safe to call from any goroutine. It never blocks: if the bus is
// full the signal is dropped and post returns false. The I/O workers and
// dial goroutines do not check the result, so a drop is not logged.
func (b *bus) post(s Signal) bool {
	select {
	case b.ch <- s:
		return true
	default:
		return false
	}
}
