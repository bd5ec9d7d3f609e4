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

// Pub is protocol id 0x20, peer id 0x21: fans every sent message out to
// every active pipe.
type Pub struct {
	pipes WithPipes

	sending bool
	msg     pipe.Message
	reply   chan<- Reply
	pending map[ids.EndpointID]bool
	timer   Scheduled
	haveTmr bool
}

func NewPub() *Pub { return &Pub{} }

func (p *Pub) ID() uint16     { return 0x20 }
func (p *Pub) PeerID() uint16 { return 0x21 }

func (p *Pub) AddPipe(ctx Context, eid ids.EndpointID) error {
	p.pipes.Add(eid)
	return nil
}

func (p *Pub) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	ok := p.pipes.Remove(eid)
	if ok && p.sending {
		delete(p.pending, eid)
		p.maybeComplete(ctx)
	}
	return ok
}

// Send broadcasts msg to every pipe currently registered. The eligible
// set is fixed at call time; the op completes once every eligible pipe
// has completed or died.
func (p *Pub) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	p.msg = msg
	p.reply = reply
	p.sending = true
	p.pending = make(map[ids.EndpointID]bool, p.pipes.Len())
	if !deadline.IsZero() {
		p.timer = ctx.Schedule(SchedSendTimeout, time.Until(deadline))
		p.haveTmr = true
	}
	for _, eid := range p.pipes.All() {
		switch progress, _ := ctx.SendToPipe(eid, msg.Clone()); progress {
		case pipe.InProgress:
			p.pending[eid] = true
		case pipe.Postponed:
			// pipe not writable/active yet; not part of this op's
			// completion set.
		}
	}
	p.maybeComplete(ctx)
}

func (p *Pub) OnSendAck(ctx Context, eid ids.EndpointID) {
	if !p.sending {
		return
	}
	delete(p.pending, eid)
	p.maybeComplete(ctx)
}

func (p *Pub) maybeComplete(ctx Context) {
	if !p.sending || len(p.pending) > 0 {
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

func (p *Pub) OnSendTimeout(ctx Context) {
	if !p.sending {
		return
	}
	p.sending = false
	p.pending = nil
	WithNotify{}.Deliver(p.reply, Reply{Err: errs.New(errs.TimedOut, "publish timed out")})
	p.reply = nil
}

func (p *Pub) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "pub sockets cannot recv")})
}

func (p *Pub) OnSendReady(ctx Context, eid ids.EndpointID) {}
func (p *Pub) OnRecvReady(ctx Context, eid ids.EndpointID) {}
func (p *Pub) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {}
func (p *Pub) OnRecvTimeout(ctx Context) {}

func (p *Pub) OnTimerTick(ctx Context, token Scheduled) {
	if token.Kind == SchedSendTimeout {
		p.OnSendTimeout(ctx)
	}
}

func (p *Pub) Close(ctx Context) {
	for _, eid := range p.pipes.All() {
		ctx.ClosePipe(eid)
	}
	if p.reply != nil {
		WithNotify{}.Deliver(p.reply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		p.reply = nil
	}
	ctx.RaiseEvent(EventClosed)
}

// Sub is protocol id 0x21, peer id 0x20: filters inbound messages by
// byte-prefix subscription. An empty subscription set drops everything;
// a subscription with an empty prefix matches everything.
type Sub struct {
	fq   WithFairQueue
	subs [][]byte

	recvReply chan<- Reply
	recvTimer Scheduled
	haveTmr   bool
	recving   bool
}

func NewSub() *Sub { return &Sub{} }

func (s *Sub) ID() uint16     { return 0x21 }
func (s *Sub) PeerID() uint16 { return 0x20 }

func (s *Sub) Subscribe(prefix []byte) {
	s.subs = append(s.subs, append([]byte(nil), prefix...))
}

func (s *Sub) Unsubscribe(prefix []byte) {
	for i, p := range s.subs {
		if string(p) == string(prefix) {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Sub) matches(body []byte) bool {
	for _, p := range s.subs {
		if len(p) == 0 || (len(body) >= len(p) && string(body[:len(p)]) == string(p)) {
			return true
		}
	}
	return false
}

func (s *Sub) AddPipe(ctx Context, eid ids.EndpointID) error {
	s.fq.Add(eid, ctx.PipeRecvPriority(eid))
	return nil
}

func (s *Sub) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	return s.fq.Remove(eid)
}

func (s *Sub) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "sub sockets cannot send")})
}

func (s *Sub) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	s.recvReply = reply
	s.recving = true
	if !deadline.IsZero() {
		s.recvTimer = ctx.Schedule(SchedRecvTimeout, time.Until(deadline))
		s.haveTmr = true
	}
	s.pump(ctx)
}

// pump scans every pipe once (fair-queue order) looking for a message
// that survives the subscription filter; non-matching messages are
// consumed and dropped.
func (s *Sub) pump(ctx Context) {
	if !s.recving {
		return
	}
	s.fq.TryEach(func(eid ids.EndpointID) bool {
		for {
			msg, progress := ctx.RecvFromPipe(eid)
			if progress != pipe.Completed {
				return false
			}
			if s.matches(msg.Body) {
				s.deliver(ctx, msg)
				return true
			}
		}
	})
}

func (s *Sub) deliver(ctx Context, msg pipe.Message) {
	if s.haveTmr {
		ctx.Cancel(s.recvTimer)
		s.haveTmr = false
	}
	s.recving = false
	s.fq.DropInterest(ctx)
	WithNotify{}.Deliver(s.recvReply, Reply{Msg: msg})
	s.recvReply = nil
	ctx.RaiseEvent(EventCanRecv)
}

func (s *Sub) OnRecvReady(ctx Context, eid ids.EndpointID) { s.pump(ctx) }
func (s *Sub) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	if s.recving && s.matches(msg.Body) {
		s.deliver(ctx, msg)
	} else {
		s.pump(ctx)
	}
}

func (s *Sub) OnRecvTimeout(ctx Context) {
	if !s.recving {
		return
	}
	s.recving = false
	s.fq.DropInterest(ctx)
	WithNotify{}.Deliver(s.recvReply, Reply{Err: errs.New(errs.TimedOut, "recv timed out")})
	s.recvReply = nil
}

func (s *Sub) OnSendReady(ctx Context, eid ids.EndpointID) {}
func (s *Sub) OnSendAck(ctx Context, eid ids.EndpointID)   {}
func (s *Sub) OnSendTimeout(ctx Context)                   {}

func (s *Sub) OnTimerTick(ctx Context, token Scheduled) {
	if token.Kind == SchedRecvTimeout {
		s.OnRecvTimeout(ctx)
	}
}

func (s *Sub) Close(ctx Context) {
	for _, eid := range s.fq.Order() {
		ctx.ClosePipe(eid)
	}
	if s.recvReply != nil {
		WithNotify{}.Deliver(s.recvReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		s.recvReply = nil
	}
	ctx.RaiseEvent(EventClosed)
}
