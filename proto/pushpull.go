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

// Push is protocol id 0x50, peer id 0x51: load-balances sends across
// pipes whose send_ready is set.
type Push struct {
	lb WithLoadBalancer

	sending bool
	msg     pipe.Message
	reply   chan<- Reply
	eid     ids.EndpointID
	timer   Scheduled
	haveTmr bool
}

func NewPush() *Push { return &Push{} }

func (p *Push) ID() uint16     { return 0x50 }
func (p *Push) PeerID() uint16 { return 0x51 }

func (p *Push) AddPipe(ctx Context, eid ids.EndpointID) error {
	p.lb.Add(eid)
	if p.sending {
		p.tryFlush(ctx)
	}
	return nil
}

func (p *Push) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	ok := p.lb.Remove(eid)
	if ok && p.sending && p.eid == eid {
		// the pipe carrying our pending send died; OnSendReady or AddPipe
		// retries it on another ready pipe, or the send deadline ends it.
		p.eid = 0
	}
	return ok
}

func (p *Push) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	if p.lb.Len() == 0 {
		// no pipe has finished its handshake yet; back-pressure holds
		// only apply once at least one pipe is attached.
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.NotConnected, "no connected peer")})
		return
	}
	p.msg = msg
	p.reply = reply
	p.sending = true
	if !deadline.IsZero() {
		p.timer = ctx.Schedule(SchedSendTimeout, time.Until(deadline))
		p.haveTmr = true
	}
	p.tryFlush(ctx)
}

func (p *Push) tryFlush(ctx Context) {
	if !p.sending {
		return
	}
	eid, ok := p.lb.Pick(ctx)
	if !ok {
		return // held until a pipe becomes ready or the deadline fires
	}
	p.eid = eid
	ctx.SendToPipe(eid, p.msg)
}

func (p *Push) OnSendReady(ctx Context, eid ids.EndpointID) { p.tryFlush(ctx) }

func (p *Push) OnSendAck(ctx Context, eid ids.EndpointID) {
	if !p.sending || p.eid != eid {
		return
	}
	p.sending = false
	if p.haveTmr {
		ctx.Cancel(p.timer)
		p.haveTmr = false
	}
	WithNotify{}.Deliver(p.reply, Reply{})
	p.reply = nil
	ctx.RaiseEvent(EventCanSend)
}

func (p *Push) OnSendTimeout(ctx Context) {
	if !p.sending {
		return
	}
	p.sending = false
	WithNotify{}.Deliver(p.reply, Reply{Err: errs.New(errs.TimedOut, "send timed out")})
	p.reply = nil
}

func (p *Push) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "push sockets cannot recv")})
}

func (p *Push) OnRecvReady(ctx Context, eid ids.EndpointID)               {}
func (p *Push) OnRecvAck(ctx Context, eid ids.EndpointID, m pipe.Message) {}
func (p *Push) OnRecvTimeout(ctx Context)                                 {}

func (p *Push) OnTimerTick(ctx Context, token Scheduled) {
	if token.Kind == SchedSendTimeout {
		p.OnSendTimeout(ctx)
	}
}

func (p *Push) Close(ctx Context) {
	for _, eid := range p.lb.pipes {
		ctx.ClosePipe(eid)
	}
	if p.reply != nil {
		WithNotify{}.Deliver(p.reply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		p.reply = nil
	}
	ctx.RaiseEvent(EventClosed)
}

// Pull is protocol id 0x51, peer id 0x50: fair-queues inbound messages
// across its pipes.
type Pull struct {
	fq WithFairQueue

	recving bool
	reply   chan<- Reply
	timer   Scheduled
	haveTmr bool
}

func NewPull() *Pull { return &Pull{} }

func (p *Pull) ID() uint16     { return 0x51 }
func (p *Pull) PeerID() uint16 { return 0x50 }

func (p *Pull) AddPipe(ctx Context, eid ids.EndpointID) error {
	p.fq.Add(eid, ctx.PipeRecvPriority(eid))
	if p.recving {
		p.pump(ctx)
	}
	return nil
}

func (p *Pull) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	return p.fq.Remove(eid)
}

func (p *Pull) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "pull sockets cannot send")})
}

func (p *Pull) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	p.reply = reply
	p.recving = true
	if !deadline.IsZero() {
		p.timer = ctx.Schedule(SchedRecvTimeout, time.Until(deadline))
		p.haveTmr = true
	}
	p.pump(ctx)
}

func (p *Pull) pump(ctx Context) {
	if !p.recving {
		return
	}
	p.fq.TryEach(func(eid ids.EndpointID) bool {
		msg, progress := ctx.RecvFromPipe(eid)
		if progress != pipe.Completed {
			return false
		}
		p.deliver(ctx, msg)
		return true
	})
}

func (p *Pull) deliver(ctx Context, msg pipe.Message) {
	if p.haveTmr {
		ctx.Cancel(p.timer)
		p.haveTmr = false
	}
	p.recving = false
	p.fq.DropInterest(ctx)
	WithNotify{}.Deliver(p.reply, Reply{Msg: msg})
	p.reply = nil
	ctx.RaiseEvent(EventCanRecv)
}

func (p *Pull) OnRecvReady(ctx Context, eid ids.EndpointID) { p.pump(ctx) }

func (p *Pull) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	if p.recving {
		p.deliver(ctx, msg)
	}
}

func (p *Pull) OnRecvTimeout(ctx Context) {
	if !p.recving {
		return
	}
	p.recving = false
	p.fq.DropInterest(ctx)
	WithNotify{}.Deliver(p.reply, Reply{Err: errs.New(errs.TimedOut, "recv timed out")})
	p.reply = nil
}

func (p *Pull) OnSendReady(ctx Context, eid ids.EndpointID) {}
func (p *Pull) OnSendAck(ctx Context, eid ids.EndpointID)   {}
func (p *Pull) OnSendTimeout(ctx Context)                   {}

func (p *Pull) OnTimerTick(ctx Context, token Scheduled) {
	if token.Kind == SchedRecvTimeout {
		p.OnRecvTimeout(ctx)
	}
}

func (p *Pull) Close(ctx Context) {
	for _, eid := range p.fq.Order() {
		ctx.ClosePipe(eid)
	}
	if p.reply != nil {
		WithNotify{}.Deliver(p.reply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		p.reply = nil
	}
	ctx.RaiseEvent(EventClosed)
}
