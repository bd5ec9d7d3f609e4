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

package proto

import (
	"time"

	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
)

// fakeCtx is a minimal, deterministic Context double for exercising a
// pattern FSM's transitions directly, without a real reactor/pipe. It
// plays the role the dispatcher normally does: remembering what each
// pattern asked of each pipe and letting a test script drive the
// corresponding OnSendAck/OnRecvAck/OnTimerTick callbacks by hand.
type fakeCtx struct {
	sendReady map[ids.EndpointID]bool
	recvPrio  map[ids.EndpointID]uint8
	recvQueue map[ids.EndpointID][]pipe.Message
	closed    map[ids.EndpointID]bool

	// pendingRecv mirrors the pipe layer's recv-interest flag: probing an
	// empty pipe sets it, CancelRecv clears it. Tests assert on it to
	// catch protocols that stop receiving without withdrawing interest.
	pendingRecv map[ids.EndpointID]bool

	sent   []sentRecord
	events []Event

	nextSched uint64
	scheduled map[uint64]Schedulable
	cancelled map[uint64]bool

	now time.Time
}

type sentRecord struct {
	eid ids.EndpointID
	msg pipe.Message
}

func newFakeCtx() *fakeCtx {
	return &fakeCtx{
		sendReady:   make(map[ids.EndpointID]bool),
		recvPrio:    make(map[ids.EndpointID]uint8),
		recvQueue:   make(map[ids.EndpointID][]pipe.Message),
		closed:      make(map[ids.EndpointID]bool),
		pendingRecv: make(map[ids.EndpointID]bool),
		scheduled:   make(map[uint64]Schedulable),
		cancelled:   make(map[uint64]bool),
		now:         time.Unix(0, 0),
	}
}

func (c *fakeCtx) SendToPipe(eid ids.EndpointID, msg pipe.Message) (pipe.Progress, error) {
	c.sent = append(c.sent, sentRecord{eid: eid, msg: msg})
	if c.closed[eid] {
		return pipe.Postponed, nil
	}
	if !c.ready(eid) {
		return pipe.Postponed, nil
	}
	return pipe.InProgress, nil
}

func (c *fakeCtx) ready(eid ids.EndpointID) bool {
	ready, seen := c.sendReady[eid]
	if !seen {
		return true
	}
	return ready
}

func (c *fakeCtx) RecvFromPipe(eid ids.EndpointID) (pipe.Message, pipe.Progress) {
	q := c.recvQueue[eid]
	if len(q) == 0 {
		c.pendingRecv[eid] = true
		return pipe.Message{}, pipe.InProgress
	}
	m := q[0]
	c.recvQueue[eid] = q[1:]
	return m, pipe.Completed
}

func (c *fakeCtx) CancelSend(eid ids.EndpointID) {}
func (c *fakeCtx) CancelRecv(eid ids.EndpointID) { c.pendingRecv[eid] = false }

func (c *fakeCtx) ClosePipe(eid ids.EndpointID) { c.closed[eid] = true }

func (c *fakeCtx) PipeSendReady(eid ids.EndpointID) bool { return !c.closed[eid] && c.ready(eid) }

func (c *fakeCtx) PipeRecvPriority(eid ids.EndpointID) uint8 {
	if p, ok := c.recvPrio[eid]; ok {
		return p
	}
	return 8
}

func (c *fakeCtx) Schedule(kind Schedulable, delay time.Duration) Scheduled {
	c.nextSched++
	id := c.nextSched
	c.scheduled[id] = kind
	return Scheduled{ID: id, Kind: kind}
}

func (c *fakeCtx) Cancel(s Scheduled) { c.cancelled[s.ID] = true }

func (c *fakeCtx) RaiseEvent(ev Event) { c.events = append(c.events, ev) }

func (c *fakeCtx) Now() time.Time { return c.now }

// push queues an inbound message on eid, as if the reader worker had
// framed it and the dispatcher had buffered it in the pipe.
func (c *fakeCtx) push(eid ids.EndpointID, msg pipe.Message) {
	c.recvQueue[eid] = append(c.recvQueue[eid], msg)
}

func (c *fakeCtx) hasEvent(ev Event) bool {
	for _, e := range c.events {
		if e == ev {
			return true
		}
	}
	return false
}
