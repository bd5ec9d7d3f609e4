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

// Package proto implements the pattern/protocol layer: the Protocol
// state-machine interface, the shared policies (WithPipes,
// WithLoadBalancer, WithFairQueue, WithBacktrace, WithNotify) and the
// eight pattern FSMs themselves (pair, req, rep, pub, sub, surveyor,
// respondent, push, pull, bus).
//
// Every FSM follows the same state-as-value discipline: state is moved
// out of the protocol, a transition function computes the next state
// from (old state, ctx, event), and the result is moved back in. This is
// modelled with small tagged structs rather than goroutines or
// callbacks.
package proto

import (
	"time"

	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
)

// Event is a socket-level notification a Protocol raises through its
// Context; the owning Socket turns these into activity on its reply
// channel / readiness state.
type Event int

const (
	EventCanSend Event = iota
	EventCanRecv
	EventClosed
)

// Schedulable is the closed set of timed tasks the reactor understands.
type Schedulable int

const (
	SchedSendTimeout Schedulable = iota
	SchedRecvTimeout
	SchedReqResend
	SchedSurveyCancel
	SchedReconnect
	SchedRebind
)

func (s Schedulable) String() string {
	switch s {
	case SchedSendTimeout:
		return "send-timeout"
	case SchedRecvTimeout:
		return "recv-timeout"
	case SchedReqResend:
		return "req-resend"
	case SchedSurveyCancel:
		return "survey-cancel"
	case SchedReconnect:
		return "reconnect"
	case SchedRebind:
		return "rebind"
	default:
		return "unknown"
	}
}

// Scheduled is an opaque handle to a pending timed task. Valid exactly
// once: cancelling a fired token is a no-op.
type Scheduled struct {
	ID   uint64
	Kind Schedulable
}

// Reply is what a protocol delivers to a pending user-visible send or
// recv operation.
type Reply struct {
	Err error
	Msg pipe.Message
}

// Context is the capability object handed to each Protocol: it may
// command a specific pipe, schedule/cancel a timed task, or raise a
// socket-level event. Protocol implementations only ever see this
// interface, never the dispatcher or endpoint collection directly.
type Context interface {
	// SendToPipe hands msg to pipe eid's writer worker.
	SendToPipe(eid ids.EndpointID, msg pipe.Message) (pipe.Progress, error)
	// RecvFromPipe takes the next buffered message from pipe eid, if any.
	RecvFromPipe(eid ids.EndpointID) (pipe.Message, pipe.Progress)
	// CancelSend/CancelRecv drop a pipe's pending op without touching the
	// wire.
	CancelSend(eid ids.EndpointID)
	CancelRecv(eid ids.EndpointID)
	// ClosePipe tears the pipe down and deregisters it.
	ClosePipe(eid ids.EndpointID)
	// PipeSendReady/PipeRecvPriority query pipe bookkeeping the load balancer and
	// fair queue policies need.
	PipeSendReady(eid ids.EndpointID) bool
	PipeRecvPriority(eid ids.EndpointID) uint8
	// Schedule/Cancel manage timed tasks; Schedule returns an opaque
	// handle valid exactly once.
	Schedule(kind Schedulable, delay time.Duration) Scheduled
	Cancel(s Scheduled)
	// RaiseEvent notifies the owning socket of a readiness change.
	RaiseEvent(ev Event)
	// Now is the reactor's notion of current time, threaded through so
	// protocol logic never calls time.Now() itself and transitions stay
	// pure functions of their inputs.
	Now() time.Time
}

// Protocol is the per-socket pattern state machine.
type Protocol interface {
	ID() uint16
	PeerID() uint16

	AddPipe(ctx Context, eid ids.EndpointID) error
	RemovePipe(ctx Context, eid ids.EndpointID) bool

	Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply)
	Recv(ctx Context, deadline time.Time, reply chan<- Reply)

	OnSendAck(ctx Context, eid ids.EndpointID)
	OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message)

	OnSendReady(ctx Context, eid ids.EndpointID)
	OnRecvReady(ctx Context, eid ids.EndpointID)

	OnSendTimeout(ctx Context)
	OnRecvTimeout(ctx Context)

	OnTimerTick(ctx Context, token Scheduled)

	Close(ctx Context)
}
