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

	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
	"github.com/xtaci/spnet/proto"
)

// reactorContext is the dispatcher's implementation of proto.Context,
// scoped to the socket that is currently being invoked. Every method
// runs on the dispatcher goroutine, so these are plain synchronous calls
// into the endpoint collection rather than bus traffic.
type reactorContext struct {
	d   *Dispatcher
	sid ids.SocketID
}

func (c reactorContext) SendToPipe(eid ids.EndpointID, msg pipe.Message) (pipe.Progress, error) {
	pe, ok := c.d.endpoints.pipe(eid)
	if !ok {
		return pipe.Postponed, nil
	}
	return pe.p.Send(msg)
}

func (c reactorContext) RecvFromPipe(eid ids.EndpointID) (pipe.Message, pipe.Progress) {
	pe, ok := c.d.endpoints.pipe(eid)
	if !ok {
		return pipe.Message{}, pipe.Postponed
	}
	return pe.p.Recv()
}

func (c reactorContext) CancelSend(eid ids.EndpointID) {
	if pe, ok := c.d.endpoints.pipe(eid); ok {
		pe.p.CancelSending()
	}
}

func (c reactorContext) CancelRecv(eid ids.EndpointID) {
	if pe, ok := c.d.endpoints.pipe(eid); ok {
		pe.p.CancelRecv()
	}
}

// ClosePipe tears down the pipe's connection and write channel and
// deregisters it. Called by a Protocol's own Close(ctx) when it is
// discarding all its pipes, or by the dispatcher when an I/O fault kills
// one; either way the protocol itself is never called back into here.
func (c reactorContext) ClosePipe(eid ids.EndpointID) {
	c.d.endpoints.removePipe(eid)
}

func (c reactorContext) PipeSendReady(eid ids.EndpointID) bool {
	pe, ok := c.d.endpoints.pipe(eid)
	return ok && pe.p.SendReady()
}

func (c reactorContext) PipeRecvPriority(eid ids.EndpointID) uint8 {
	pe, ok := c.d.endpoints.pipe(eid)
	if !ok {
		return 8
	}
	return pe.p.RecvPriority()
}

func (c reactorContext) Schedule(kind proto.Schedulable, delay time.Duration) proto.Scheduled {
	return c.d.timer.schedule(c.sid, kind, delay)
}

func (c reactorContext) Cancel(s proto.Scheduled) {
	c.d.timer.cancel(s)
}

func (c reactorContext) RaiseEvent(ev proto.Event) {
	c.d.onSocketEvent(c.sid, ev)
}

func (c reactorContext) Now() time.Time { return time.Now() }
