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

// Pair is protocol id 0x10, peer id 0x10: exactly one pipe, full-duplex.
// The FSM keeps an independent send sub-state and recv sub-state (Idle /
// Sending / SendOnHold, Idle / Receiving / RecvOnHold) since a Pair
// socket may have a send and a recv outstanding concurrently on its one
// pipe.
type Pair struct {
	eid      ids.EndpointID
	havePipe bool

	sendState    pairSendState
	sendMsg      pipe.Message
	sendReply    chan<- Reply
	sendTimer    Scheduled
	haveSendTmr  bool

	recvState    pairRecvState
	recvReply    chan<- Reply
	recvTimer    Scheduled
	haveRecvTmr  bool
}

type pairSendState int

const (
	pairSendIdle pairSendState = iota
	pairSending
	pairSendOnHold
)

type pairRecvState int

const (
	pairRecvIdle pairRecvState = iota
	pairReceiving
	pairRecvOnHold
)

func NewPair() *Pair { return &Pair{} }

func (p *Pair) ID() uint16     { return 0x10 }
func (p *Pair) PeerID() uint16 { return 0x10 }

func (p *Pair) AddPipe(ctx Context, eid ids.EndpointID) error {
	if p.havePipe {
		return errs.New(errs.InvalidInput, "pair socket already has a pipe")
	}
	p.eid = eid
	p.havePipe = true

	if p.sendState == pairSendOnHold {
		p.sendState = pairSending
		ctx.SendToPipe(eid, p.sendMsg)
	}
	if p.recvState == pairRecvOnHold {
		p.recvState = pairReceiving
	}
	return nil
}

func (p *Pair) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	if !p.havePipe || p.eid != eid {
		return false
	}
	p.havePipe = false
	if p.sendState == pairSending {
		p.sendState = pairSendOnHold
	}
	if p.recvState == pairReceiving {
		p.recvState = pairRecvOnHold
	}
	return true
}

func (p *Pair) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	p.sendMsg = msg
	p.sendReply = reply
	if !deadline.IsZero() {
		p.sendTimer = ctx.Schedule(SchedSendTimeout, time.Until(deadline))
		p.haveSendTmr = true
	}
	if p.havePipe && ctx.PipeSendReady(p.eid) {
		p.sendState = pairSending
		ctx.SendToPipe(p.eid, msg)
	} else {
		p.sendState = pairSendOnHold
	}
}

func (p *Pair) OnSendReady(ctx Context, eid ids.EndpointID) {
	if p.sendState == pairSendOnHold && p.havePipe && p.eid == eid {
		p.sendState = pairSending
		ctx.SendToPipe(eid, p.sendMsg)
	}
}

func (p *Pair) OnSendAck(ctx Context, eid ids.EndpointID) {
	if p.sendState != pairSending || p.eid != eid {
		return
	}
	p.cancelSendTimer(ctx)
	p.sendState = pairSendIdle
	WithNotify{}.Deliver(p.sendReply, Reply{})
	p.sendReply = nil
	ctx.RaiseEvent(EventCanSend)
}

func (p *Pair) OnSendTimeout(ctx Context) {
	if p.sendState == pairSendIdle {
		return
	}
	p.sendState = pairSendIdle
	WithNotify{}.Deliver(p.sendReply, Reply{Err: errs.New(errs.TimedOut, "send timed out")})
	p.sendReply = nil
}

func (p *Pair) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	p.recvReply = reply
	if !deadline.IsZero() {
		p.recvTimer = ctx.Schedule(SchedRecvTimeout, time.Until(deadline))
		p.haveRecvTmr = true
	}
	if !p.havePipe {
		p.recvState = pairRecvOnHold
		return
	}
	p.recvState = pairReceiving
	if msg, progress := ctx.RecvFromPipe(p.eid); progress == pipe.Completed {
		p.deliverRecv(ctx, msg)
	}
}

func (p *Pair) OnRecvReady(ctx Context, eid ids.EndpointID) {
	if p.recvState != pairReceiving || p.eid != eid {
		return
	}
	if msg, progress := ctx.RecvFromPipe(eid); progress == pipe.Completed {
		p.deliverRecv(ctx, msg)
	}
}

func (p *Pair) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	if p.recvState != pairReceiving || p.eid != eid {
		return
	}
	p.deliverRecv(ctx, msg)
}

func (p *Pair) deliverRecv(ctx Context, msg pipe.Message) {
	p.cancelRecvTimer(ctx)
	p.recvState = pairRecvIdle
	WithNotify{}.Deliver(p.recvReply, Reply{Msg: msg})
	p.recvReply = nil
	ctx.RaiseEvent(EventCanRecv)
}

func (p *Pair) OnRecvTimeout(ctx Context) {
	if p.recvState == pairRecvIdle {
		return
	}
	p.recvState = pairRecvIdle
	if p.havePipe {
		ctx.CancelRecv(p.eid)
	}
	WithNotify{}.Deliver(p.recvReply, Reply{Err: errs.New(errs.TimedOut, "recv timed out")})
	p.recvReply = nil
}

func (p *Pair) OnTimerTick(ctx Context, token Scheduled) {
	switch token.Kind {
	case SchedSendTimeout:
		p.OnSendTimeout(ctx)
	case SchedRecvTimeout:
		p.OnRecvTimeout(ctx)
	}
}

func (p *Pair) Close(ctx Context) {
	if p.havePipe {
		ctx.ClosePipe(p.eid)
	}
	if p.sendReply != nil {
		WithNotify{}.Deliver(p.sendReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		p.sendReply = nil
	}
	if p.recvReply != nil {
		WithNotify{}.Deliver(p.recvReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		p.recvReply = nil
	}
	ctx.RaiseEvent(EventClosed)
}

func (p *Pair) cancelSendTimer(ctx Context) {
	if p.haveSendTmr {
		ctx.Cancel(p.sendTimer)
		p.haveSendTmr = false
	}
}

func (p *Pair) cancelRecvTimer(ctx Context) {
	if p.haveRecvTmr {
		ctx.Cancel(p.recvTimer)
		p.haveRecvTmr = false
	}
}
