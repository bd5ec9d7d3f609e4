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

// Req is protocol id 0x30, peer id 0x31. Each outgoing request gets a
// 31-bit id prepended to the header; a single outstanding request is
// resent on a ReqResend tick (load-balanced across pipes) until the
// matching reply arrives or the user's recv deadline elapses.
type Req struct {
	lb WithLoadBalancer

	nextID uint32

	pending  bool
	reqID    uint32
	body     []byte
	sendPipe ids.EndpointID
	havePipe bool

	resendInterval time.Duration
	resendTimer    Scheduled
	haveResend     bool

	sendReply chan<- Reply
	sendTimer Scheduled
	haveSTmr  bool

	awaitingRecv bool
	recvReply    chan<- Reply
	recvTimer    Scheduled
	haveRTmr     bool
	bufferedBody []byte
	haveBuffered bool
}

func NewReq() *Req {
	return &Req{resendInterval: time.Second}
}

func (r *Req) ID() uint16     { return 0x30 }
func (r *Req) PeerID() uint16 { return 0x31 }

// SetResendInterval adjusts how long an unanswered request waits before
// it is resent.
func (r *Req) SetResendInterval(d time.Duration) { r.resendInterval = d }

func (r *Req) AddPipe(ctx Context, eid ids.EndpointID) error {
	r.lb.Add(eid)
	if r.pending && !r.havePipe {
		r.flush(ctx)
	}
	return nil
}

func (r *Req) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	ok := r.lb.Remove(eid)
	if ok && r.havePipe && r.sendPipe == eid {
		r.havePipe = false
	}
	return ok
}

func (r *Req) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	if r.pending {
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "request already outstanding")})
		return
	}
	r.nextID++
	r.reqID = r.nextID & 0x7fffffff
	r.body = msg.Body
	r.pending = true
	r.havePipe = false
	r.haveBuffered = false
	r.sendReply = reply
	if !deadline.IsZero() {
		r.sendTimer = ctx.Schedule(SchedSendTimeout, time.Until(deadline))
		r.haveSTmr = true
	}
	r.resendTimer = ctx.Schedule(SchedReqResend, r.resendInterval)
	r.haveResend = true
	r.flush(ctx)
}

func (r *Req) flush(ctx Context) {
	eid, ok := r.lb.Pick(ctx)
	if !ok {
		return
	}
	r.sendPipe = eid
	r.havePipe = true
	ctx.SendToPipe(eid, pipe.Message{Header: PushID(nil, r.reqID), Body: r.body})
}

func (r *Req) OnSendReady(ctx Context, eid ids.EndpointID) {
	if r.pending && !r.havePipe {
		r.flush(ctx)
	}
}

func (r *Req) OnSendAck(ctx Context, eid ids.EndpointID) {
	if !r.pending || !r.havePipe || r.sendPipe != eid || r.sendReply == nil {
		return
	}
	if r.haveSTmr {
		ctx.Cancel(r.sendTimer)
		r.haveSTmr = false
	}
	WithNotify{}.Deliver(r.sendReply, Reply{})
	r.sendReply = nil
}

func (r *Req) OnSendTimeout(ctx Context) {
	if r.sendReply == nil {
		return
	}
	WithNotify{}.Deliver(r.sendReply, Reply{Err: errs.New(errs.TimedOut, "send timed out")})
	r.sendReply = nil
}

func (r *Req) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	if !r.pending {
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "no outstanding request")})
		return
	}
	if r.haveBuffered {
		r.deliver(ctx, reply, r.bufferedBody)
		return
	}
	r.recvReply = reply
	r.awaitingRecv = true
	if !deadline.IsZero() {
		r.recvTimer = ctx.Schedule(SchedRecvTimeout, time.Until(deadline))
		r.haveRTmr = true
	}
}

func (r *Req) OnRecvReady(ctx Context, eid ids.EndpointID) {
	msg, progress := ctx.RecvFromPipe(eid)
	if progress != pipe.Completed {
		return
	}
	r.handleReply(ctx, msg)
}

func (r *Req) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	r.handleReply(ctx, msg)
}

func (r *Req) handleReply(ctx Context, msg pipe.Message) {
	if !r.pending {
		return
	}
	id, rest, ok := PopID(msg.Body)
	if !ok || id != r.reqID {
		return // not for our outstanding request: dropped
	}
	if r.awaitingRecv {
		r.deliver(ctx, r.recvReply, rest)
		r.recvReply = nil
	} else {
		r.bufferedBody = rest
		r.haveBuffered = true
	}
}

func (r *Req) deliver(ctx Context, reply chan<- Reply, body []byte) {
	if r.haveRTmr {
		ctx.Cancel(r.recvTimer)
		r.haveRTmr = false
	}
	if r.haveResend {
		ctx.Cancel(r.resendTimer)
		r.haveResend = false
	}
	r.pending = false
	r.awaitingRecv = false
	r.haveBuffered = false
	WithNotify{}.Deliver(reply, Reply{Msg: pipe.Message{Body: body}})
	ctx.RaiseEvent(EventCanRecv)
}

func (r *Req) OnRecvTimeout(ctx Context) {
	if !r.awaitingRecv {
		return
	}
	r.awaitingRecv = false
	// the recv deadline ends the request: stop resending it, and let the
	// next Send start a fresh one.
	if r.haveResend {
		ctx.Cancel(r.resendTimer)
		r.haveResend = false
	}
	r.pending = false
	WithNotify{}.Deliver(r.recvReply, Reply{Err: errs.New(errs.TimedOut, "recv timed out")})
	r.recvReply = nil
}

func (r *Req) OnTimerTick(ctx Context, token Scheduled) {
	switch token.Kind {
	case SchedSendTimeout:
		r.OnSendTimeout(ctx)
	case SchedRecvTimeout:
		r.OnRecvTimeout(ctx)
	case SchedReqResend:
		if !r.pending {
			return
		}
		if r.havePipe {
			ctx.SendToPipe(r.sendPipe, pipe.Message{Header: PushID(nil, r.reqID), Body: r.body})
		} else {
			r.flush(ctx)
		}
		r.resendTimer = ctx.Schedule(SchedReqResend, r.resendInterval)
		r.haveResend = true
	}
}

func (r *Req) Close(ctx Context) {
	for _, eid := range r.lb.pipes {
		ctx.ClosePipe(eid)
	}
	if r.sendReply != nil {
		WithNotify{}.Deliver(r.sendReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		r.sendReply = nil
	}
	if r.recvReply != nil {
		WithNotify{}.Deliver(r.recvReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		r.recvReply = nil
	}
	ctx.RaiseEvent(EventClosed)
}

// Rep is protocol id 0x31, peer id 0x30: fair-queues inbound requests and
// restores the peeled backtrace onto the matching reply. Sending without
// a prior matching recv, or receiving a second request before replying
// to the first, are precondition failures: they return an error without
// touching any pipe state.
type Rep struct {
	fq WithFairQueue
	bt WithBacktrace

	recvReply chan<- Reply
	recvTimer Scheduled
	haveRTmr  bool
	recving   bool

	sendReply chan<- Reply
	sendTimer Scheduled
	haveSTmr  bool
}

func NewRep() *Rep { return &Rep{} }

func (rp *Rep) ID() uint16     { return 0x31 }
func (rp *Rep) PeerID() uint16 { return 0x30 }

func (rp *Rep) AddPipe(ctx Context, eid ids.EndpointID) error {
	rp.fq.Add(eid, ctx.PipeRecvPriority(eid))
	if rp.recving {
		rp.pump(ctx)
	}
	return nil
}

func (rp *Rep) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	return rp.fq.Remove(eid)
}

func (rp *Rep) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	if rp.bt.Pending() {
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "reply owed before next recv")})
		return
	}
	rp.recvReply = reply
	rp.recving = true
	if !deadline.IsZero() {
		rp.recvTimer = ctx.Schedule(SchedRecvTimeout, time.Until(deadline))
		rp.haveRTmr = true
	}
	rp.pump(ctx)
}

func (rp *Rep) pump(ctx Context) {
	if !rp.recving {
		return
	}
	rp.fq.TryEach(func(eid ids.EndpointID) bool {
		msg, progress := ctx.RecvFromPipe(eid)
		if progress != pipe.Completed {
			return false
		}
		rp.acceptRequest(ctx, eid, msg)
		return true
	})
}

func (rp *Rep) acceptRequest(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	id, rest, ok := PopID(msg.Body)
	if !ok {
		return // malformed request silently dropped; pipe stays alive
	}
	rp.bt.Capture(PushID(nil, id), eid)
	if rp.haveRTmr {
		ctx.Cancel(rp.recvTimer)
		rp.haveRTmr = false
	}
	rp.recving = false
	rp.fq.DropInterest(ctx)
	WithNotify{}.Deliver(rp.recvReply, Reply{Msg: pipe.Message{Body: rest}})
	rp.recvReply = nil
	ctx.RaiseEvent(EventCanRecv)
}

func (rp *Rep) OnRecvReady(ctx Context, eid ids.EndpointID) { rp.pump(ctx) }

func (rp *Rep) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	if rp.recving {
		rp.acceptRequest(ctx, eid, msg)
	}
}

func (rp *Rep) OnRecvTimeout(ctx Context) {
	if !rp.recving {
		return
	}
	rp.recving = false
	rp.fq.DropInterest(ctx)
	WithNotify{}.Deliver(rp.recvReply, Reply{Err: errs.New(errs.TimedOut, "recv timed out")})
	rp.recvReply = nil
}

func (rp *Rep) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	header, origin, ok := rp.bt.Restore()
	if !ok {
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "no request to reply to")})
		return
	}
	rp.sendReply = reply
	if !deadline.IsZero() {
		rp.sendTimer = ctx.Schedule(SchedSendTimeout, time.Until(deadline))
		rp.haveSTmr = true
	}
	ctx.SendToPipe(origin, pipe.Message{Header: header, Body: msg.Body})
}

func (rp *Rep) OnSendAck(ctx Context, eid ids.EndpointID) {
	_, origin, ok := rp.bt.Restore()
	if !ok || origin != eid {
		return
	}
	rp.bt.Clear()
	if rp.haveSTmr {
		ctx.Cancel(rp.sendTimer)
		rp.haveSTmr = false
	}
	WithNotify{}.Deliver(rp.sendReply, Reply{})
	rp.sendReply = nil
	ctx.RaiseEvent(EventCanSend)
}

func (rp *Rep) OnSendTimeout(ctx Context) {
	if rp.sendReply == nil {
		return
	}
	WithNotify{}.Deliver(rp.sendReply, Reply{Err: errs.New(errs.TimedOut, "send timed out")})
	rp.sendReply = nil
}

func (rp *Rep) OnSendReady(ctx Context, eid ids.EndpointID) {}

func (rp *Rep) OnTimerTick(ctx Context, token Scheduled) {
	switch token.Kind {
	case SchedSendTimeout:
		rp.OnSendTimeout(ctx)
	case SchedRecvTimeout:
		rp.OnRecvTimeout(ctx)
	}
}

func (rp *Rep) Close(ctx Context) {
	for _, eid := range rp.fq.Order() {
		ctx.ClosePipe(eid)
	}
	if rp.recvReply != nil {
		WithNotify{}.Deliver(rp.recvReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		rp.recvReply = nil
	}
	if rp.sendReply != nil {
		WithNotify{}.Deliver(rp.sendReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		rp.sendReply = nil
	}
	ctx.RaiseEvent(EventClosed)
}
