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
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
	"github.com/xtaci/spnet/transport"
)

// pipeEndpoint pairs a Pipe FSM with the live connection and backoff
// state needed to reconnect it.
type pipeEndpoint struct {
	id     ids.EndpointID
	socket ids.SocketID
	p      *pipe.Pipe
	conn   transport.Connection

	// fromConnect is true when this pipe was dialed by Socket.Connect, as
	// opposed to accepted by a listener; only dialed pipes reconnect on
	// failure.
	fromConnect bool
	url         string
	backoff     *backoff.ExponentialBackOff
}

// acceptorEndpoint pairs a Listener with the backoff state used to
// rebind it after a non-recoverable accept error.
type acceptorEndpoint struct {
	id      ids.EndpointID
	socket  ids.SocketID
	ln      transport.Listener
	url     string
	backoff *backoff.ExponentialBackOff
}

// endpoints is the sole owner of every Pipe and Listener in the process.
// Protocols hold only EndpointIDs and reach pipes through their Context,
// which keeps Socket and Pipe from ever pointing at each other.
type endpoints struct {
	pipes     map[ids.EndpointID]*pipeEndpoint
	acceptors map[ids.EndpointID]*acceptorEndpoint
}

func newEndpoints() *endpoints {
	return &endpoints{
		pipes:     make(map[ids.EndpointID]*pipeEndpoint),
		acceptors: make(map[ids.EndpointID]*acceptorEndpoint),
	}
}

func (e *endpoints) addPipe(pe *pipeEndpoint) { e.pipes[pe.id] = pe }
func (e *endpoints) pipe(eid ids.EndpointID) (*pipeEndpoint, bool) {
	pe, ok := e.pipes[eid]
	return pe, ok
}

// removePipe unregisters and tears down eid's connection and write
// channel, returning the removed endpoint (or false if it was already
// gone; multiple error sources may race to remove the same dead pipe
// within one dispatcher iteration, so this is idempotent).
func (e *endpoints) removePipe(eid ids.EndpointID) (*pipeEndpoint, bool) {
	pe, ok := e.pipes[eid]
	if !ok {
		return nil, false
	}
	delete(e.pipes, eid)
	pe.p.Kill()
	close(pe.p.WriteCh)
	pe.conn.Close()
	return pe, true
}

func (e *endpoints) addAcceptor(ae *acceptorEndpoint) { e.acceptors[ae.id] = ae }
func (e *endpoints) acceptor(eid ids.EndpointID) (*acceptorEndpoint, bool) {
	ae, ok := e.acceptors[eid]
	return ae, ok
}

func (e *endpoints) removeAcceptor(eid ids.EndpointID) (*acceptorEndpoint, bool) {
	ae, ok := e.acceptors[eid]
	if !ok {
		return nil, false
	}
	delete(e.acceptors, eid)
	ae.ln.Close()
	return ae, true
}

// pipesOf/acceptorsOf return every endpoint id belonging to socket sid, so
// CloseSocket can tear them all down together.
func (e *endpoints) pipesOf(sid ids.SocketID) []ids.EndpointID {
	var out []ids.EndpointID
	for id, pe := range e.pipes {
		if pe.socket == sid {
			out = append(out, id)
		}
	}
	return out
}

func (e *endpoints) acceptorsOf(sid ids.SocketID) []ids.EndpointID {
	var out []ids.EndpointID
	for id, ae := range e.acceptors {
		if ae.socket == sid {
			out = append(out, id)
		}
	}
	return out
}

// newBackoff builds the reconnect/rebind backoff state: doubling, capped
// at max, reset on a successful handshake. initial/max come from the
// socket's reconnect_interval/reconnect_interval_max options.
func newBackoff(initial, max time.Duration) *backoff.ExponentialBackOff {
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if max <= 0 {
		max = time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = 0 // never gives up; the reactor always keeps retrying
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
