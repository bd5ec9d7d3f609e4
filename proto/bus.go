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

	"github.com/xtaci/spnet/internal/errs"
	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
)

// Bus is protocol id 0x70 (peers itself): broadcasts sent messages to
// every connected pipe and fair-queues inbound messages. Each Send
// excludes the pipe the most recently delivered message arrived on, so
// relaying a received message back onto the bus never echoes it to its
// own sender.
type Bus struct {
	pipes WithPipes
	fq    WithFairQueue

	sending bool
	msg     pipe.Message
	reply   chan<- Reply
	pending map[ids.EndpointID]bool
	sendTmr Scheduled
	haveSTm bool

	recving      bool
	recvRep      chan<- Reply
	recvTmr      Scheduled
	haveRTm      bool
	lastRecvEid  ids.EndpointID
	haveLastRecv bool
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) ID() uint16     { return 0x70 }
func (b *Bus) PeerID() uint16 { return 0x70 }

func (b *Bus) AddPipe(ctx Context, eid ids.EndpointID) error {
	b.pipes.Add(eid)
	b.fq.Add(eid, ctx.PipeRecvPriority(eid))
	if b.recving {
		b.pump(ctx)
	}
	return nil
}

func (b *Bus) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	okP := b.pipes.Remove(eid)
	b.fq.Remove(eid)
	if b.haveLastRecv && b.lastRecvEid == eid {
		b.haveLastRecv = false
	}
	if okP && b.sending {
		delete(b.pending, eid)
		b.maybeComplete(ctx)
	}
	return okP
}

func (b *Bus) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	b.msg = msg
	b.reply = reply
	b.sending = true
	b.pending = make(map[ids.EndpointID]bool, b.pipes.Len())
	if !deadline.IsZero() {
		b.sendTmr = ctx.Schedule(SchedSendTimeout, time.Until(deadline))
		b.haveSTm = true
	}
	var except ids.EndpointID
	if b.haveLastRecv {
		except = b.lastRecvEid
	}
	for _, eid := range b.pipes.Broadcast(ctx, msg, except) {
		b.pending[eid] = true
	}
	b.maybeComplete(ctx)
}

func (b *Bus) OnSendAck(ctx Context, eid ids.EndpointID) {
	if !b.sending {
		return
	}
	delete(b.pending, eid)
	b.maybeComplete(ctx)
}

func (b *Bus) maybeComplete(ctx Context) {
	if !b.sending || len(b.pending) > 0 {
		return
	}
	b.sending = false
	if b.haveSTm {
		ctx.Cancel(b.sendTmr)
		b.haveSTm = false
	}
	WithNotify{}.Deliver(b.reply, Reply{})
	b.reply = nil
	ctx.RaiseEvent(EventCanSend)
}

func (b *Bus) OnSendTimeout(ctx Context) {
	if !b.sending {
		return
	}
	b.sending = false
	b.pending = nil
	WithNotify{}.Deliver(b.reply, Reply{Err: errs.New(errs.TimedOut, "bus send timed out")})
	b.reply = nil
}

func (b *Bus) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	b.recvRep = reply
	b.recving = true
	if !deadline.IsZero() {
		b.recvTmr = ctx.Schedule(SchedRecvTimeout, time.Until(deadline))
		b.haveRTm = true
	}
	b.pump(ctx)
}

func (b *Bus) pump(ctx Context) {
	if !b.recving {
		return
	}
	b.fq.TryEach(func(eid ids.EndpointID) bool {
		msg, progress := ctx.RecvFromPipe(eid)
		if progress != pipe.Completed {
			return false
		}
		b.deliver(ctx, eid, msg)
		return true
	})
}

func (b *Bus) deliver(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	if b.haveRTm {
		ctx.Cancel(b.recvTmr)
		b.haveRTm = false
	}
	b.recving = false
	b.fq.DropInterest(ctx)
	b.lastRecvEid = eid
	b.haveLastRecv = true
	WithNotify{}.Deliver(b.recvRep, Reply{Msg: msg})
	b.recvRep = nil
	ctx.RaiseEvent(EventCanRecv)
}

func (b *Bus) OnRecvReady(ctx Context, eid ids.EndpointID) { b.pump(ctx) }

func (b *Bus) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	if b.recving {
		b.deliver(ctx, eid, msg)
	}
}

func (b *Bus) OnRecvTimeout(ctx Context) {
	if !b.recving {
		return
	}
	b.recving = false
	b.fq.DropInterest(ctx)
	WithNotify{}.Deliver(b.recvRep, Reply{Err: errs.New(errs.TimedOut, "bus recv timed out")})
	b.recvRep = nil
}

func (b *Bus) OnSendReady(ctx Context, eid ids.EndpointID) {}

func (b *Bus) OnTimerTick(ctx Context, token Scheduled) {
	switch token.Kind {
	case SchedSendTimeout:
		b.OnSendTimeout(ctx)
	case SchedRecvTimeout:
		b.OnRecvTimeout(ctx)
	}
}

func (b *Bus) Close(ctx Context) {
	for _, eid := range b.pipes.All() {
		ctx.ClosePipe(eid)
	}
	if b.reply != nil {
		WithNotify{}.Deliver(b.reply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		b.reply = nil
	}
	if b.recvRep != nil {
		WithNotify{}.Deliver(b.recvRep, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		b.recvRep = nil
	}
	ctx.RaiseEvent(EventClosed)
}
