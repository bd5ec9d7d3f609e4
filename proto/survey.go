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

// Surveyor is protocol id 0x62, peer id 0x63: tags each survey with a
// 31-bit id, broadcasts it, and collects responses until a SurveyCancel
// deadline fires. Responses whose id does not match the current survey
// are dropped; once the deadline fires, every subsequent recv for that
// survey returns TimedOut.
type Surveyor struct {
	pipes WithPipes
	fq    WithFairQueue

	surveyID uint32
	active   bool
	expired  bool

	deadline     time.Duration
	deadlineTmr  Scheduled
	haveDeadline bool

	sendReply chan<- Reply
	pending   map[ids.EndpointID]bool
	sendTmr   Scheduled
	haveSTmr  bool

	recvReply chan<- Reply
	recvTmr   Scheduled
	haveRTm   bool
	recving   bool
}

func NewSurveyor() *Surveyor {
	return &Surveyor{deadline: time.Second}
}

func (s *Surveyor) ID() uint16     { return 0x62 }
func (s *Surveyor) PeerID() uint16 { return 0x63 }

// SetDeadline adjusts how long responses to a survey are accepted.
func (s *Surveyor) SetDeadline(d time.Duration) { s.deadline = d }

func (s *Surveyor) AddPipe(ctx Context, eid ids.EndpointID) error {
	s.pipes.Add(eid)
	s.fq.Add(eid, ctx.PipeRecvPriority(eid))
	return nil
}

func (s *Surveyor) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	s.fq.Remove(eid)
	ok := s.pipes.Remove(eid)
	if ok && s.active {
		delete(s.pending, eid)
		s.maybeComplete(ctx)
	}
	return ok
}

func (s *Surveyor) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	if s.haveDeadline {
		ctx.Cancel(s.deadlineTmr)
		s.haveDeadline = false
	}
	s.surveyID++
	s.active = true
	s.expired = false
	s.sendReply = reply
	s.pending = make(map[ids.EndpointID]bool, s.pipes.Len())
	if !deadline.IsZero() {
		s.sendTmr = ctx.Schedule(SchedSendTimeout, time.Until(deadline))
		s.haveSTmr = true
	}
	for _, eid := range s.pipes.All() {
		wrapped := pipe.Message{Header: PushID(nil, s.surveyID), Body: msg.Body}
		if progress, _ := ctx.SendToPipe(eid, wrapped); progress == pipe.InProgress {
			s.pending[eid] = true
		}
	}
	s.maybeComplete(ctx)
	s.deadlineTmr = ctx.Schedule(SchedSurveyCancel, s.deadline)
	s.haveDeadline = true
}

func (s *Surveyor) OnSendAck(ctx Context, eid ids.EndpointID) {
	if !s.active {
		return
	}
	delete(s.pending, eid)
	s.maybeComplete(ctx)
}

func (s *Surveyor) maybeComplete(ctx Context) {
	if s.sendReply == nil || len(s.pending) > 0 {
		return
	}
	if s.haveSTmr {
		ctx.Cancel(s.sendTmr)
		s.haveSTmr = false
	}
	WithNotify{}.Deliver(s.sendReply, Reply{})
	s.sendReply = nil
	ctx.RaiseEvent(EventCanSend)
}

func (s *Surveyor) OnSendReady(ctx Context, eid ids.EndpointID) {}

func (s *Surveyor) OnSendTimeout(ctx Context) {
	if s.sendReply == nil {
		return
	}
	WithNotify{}.Deliver(s.sendReply, Reply{Err: errs.New(errs.TimedOut, "survey send timed out")})
	s.sendReply = nil
}

func (s *Surveyor) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	if !s.active {
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "no survey in progress")})
		return
	}
	if s.expired {
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.TimedOut, "survey deadline elapsed")})
		return
	}
	s.recvReply = reply
	s.recving = true
	if !deadline.IsZero() {
		s.recvTmr = ctx.Schedule(SchedRecvTimeout, time.Until(deadline))
		s.haveRTm = true
	}
	s.pump(ctx)
}

func (s *Surveyor) pump(ctx Context) {
	if !s.recving {
		return
	}
	s.fq.TryEach(func(eid ids.EndpointID) bool {
		for {
			msg, progress := ctx.RecvFromPipe(eid)
			if progress != pipe.Completed {
				return false
			}
			if id, rest, ok := PopID(msg.Body); ok && id == s.surveyID {
				s.deliver(ctx, pipe.Message{Body: rest})
				return true
			}
			// id mismatch: a response to a past survey, drop and keep scanning.
		}
	})
}

func (s *Surveyor) deliver(ctx Context, msg pipe.Message) {
	if s.haveRTm {
		ctx.Cancel(s.recvTmr)
		s.haveRTm = false
	}
	s.recving = false
	s.fq.DropInterest(ctx)
	WithNotify{}.Deliver(s.recvReply, Reply{Msg: msg})
	s.recvReply = nil
	ctx.RaiseEvent(EventCanRecv)
}

func (s *Surveyor) OnRecvReady(ctx Context, eid ids.EndpointID) { s.pump(ctx) }

func (s *Surveyor) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	if !s.recving {
		return
	}
	if id, rest, ok := PopID(msg.Body); ok && id == s.surveyID {
		s.deliver(ctx, pipe.Message{Body: rest})
	}
}

func (s *Surveyor) OnRecvTimeout(ctx Context) {
	if !s.recving {
		return
	}
	s.recving = false
	s.fq.DropInterest(ctx)
	WithNotify{}.Deliver(s.recvReply, Reply{Err: errs.New(errs.TimedOut, "recv timed out")})
	s.recvReply = nil
}

func (s *Surveyor) OnTimerTick(ctx Context, token Scheduled) {
	switch token.Kind {
	case SchedSendTimeout:
		s.OnSendTimeout(ctx)
	case SchedRecvTimeout:
		s.OnRecvTimeout(ctx)
	case SchedSurveyCancel:
		s.haveDeadline = false
		s.expired = true
		if s.recving {
			if s.haveRTm {
				ctx.Cancel(s.recvTmr)
				s.haveRTm = false
			}
			s.recving = false
			s.fq.DropInterest(ctx)
			WithNotify{}.Deliver(s.recvReply, Reply{Err: errs.New(errs.TimedOut, "survey deadline elapsed")})
			s.recvReply = nil
		}
	}
}

func (s *Surveyor) Close(ctx Context) {
	for _, eid := range s.pipes.All() {
		ctx.ClosePipe(eid)
	}
	if s.sendReply != nil {
		WithNotify{}.Deliver(s.sendReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		s.sendReply = nil
	}
	if s.recvReply != nil {
		WithNotify{}.Deliver(s.recvReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		s.recvReply = nil
	}
	ctx.RaiseEvent(EventClosed)
}

// Respondent is protocol id 0x63, peer id 0x62: answers surveys, echoing
// the survey id back in its reply.
type Respondent struct {
	fq WithFairQueue
	bt WithBacktrace

	recvReply chan<- Reply
	recvTmr   Scheduled
	haveRTm   bool
	recving   bool

	sendReply chan<- Reply
}

func NewRespondent() *Respondent { return &Respondent{} }

func (r *Respondent) ID() uint16     { return 0x63 }
func (r *Respondent) PeerID() uint16 { return 0x62 }

func (r *Respondent) AddPipe(ctx Context, eid ids.EndpointID) error {
	r.fq.Add(eid, ctx.PipeRecvPriority(eid))
	if r.recving {
		r.pump(ctx)
	}
	return nil
}

func (r *Respondent) RemovePipe(ctx Context, eid ids.EndpointID) bool {
	return r.fq.Remove(eid)
}

func (r *Respondent) Recv(ctx Context, deadline time.Time, reply chan<- Reply) {
	if r.bt.Pending() {
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "reply owed before next recv")})
		return
	}
	r.recvReply = reply
	r.recving = true
	if !deadline.IsZero() {
		r.recvTmr = ctx.Schedule(SchedRecvTimeout, time.Until(deadline))
		r.haveRTm = true
	}
	r.pump(ctx)
}

func (r *Respondent) pump(ctx Context) {
	if !r.recving {
		return
	}
	r.fq.TryEach(func(eid ids.EndpointID) bool {
		msg, progress := ctx.RecvFromPipe(eid)
		if progress != pipe.Completed {
			return false
		}
		r.accept(ctx, eid, msg)
		return true
	})
}

func (r *Respondent) accept(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	id, rest, ok := PopID(msg.Body)
	if !ok {
		return
	}
	r.bt.Capture(PushID(nil, id), eid)
	if r.haveRTm {
		ctx.Cancel(r.recvTmr)
		r.haveRTm = false
	}
	r.recving = false
	r.fq.DropInterest(ctx)
	WithNotify{}.Deliver(r.recvReply, Reply{Msg: pipe.Message{Body: rest}})
	r.recvReply = nil
	ctx.RaiseEvent(EventCanRecv)
}

func (r *Respondent) OnRecvReady(ctx Context, eid ids.EndpointID) { r.pump(ctx) }

func (r *Respondent) OnRecvAck(ctx Context, eid ids.EndpointID, msg pipe.Message) {
	if r.recving {
		r.accept(ctx, eid, msg)
	}
}

func (r *Respondent) OnRecvTimeout(ctx Context) {
	if !r.recving {
		return
	}
	r.recving = false
	r.fq.DropInterest(ctx)
	WithNotify{}.Deliver(r.recvReply, Reply{Err: errs.New(errs.TimedOut, "recv timed out")})
	r.recvReply = nil
}

func (r *Respondent) Send(ctx Context, msg pipe.Message, deadline time.Time, reply chan<- Reply) {
	header, origin, ok := r.bt.Restore()
	if !ok {
		WithNotify{}.Deliver(reply, Reply{Err: errs.New(errs.InvalidInput, "no survey to answer")})
		return
	}
	r.sendReply = reply
	ctx.SendToPipe(origin, pipe.Message{Header: header, Body: msg.Body})
}

func (r *Respondent) OnSendAck(ctx Context, eid ids.EndpointID) {
	_, origin, ok := r.bt.Restore()
	if !ok || origin != eid {
		return
	}
	r.bt.Clear()
	WithNotify{}.Deliver(r.sendReply, Reply{})
	r.sendReply = nil
	ctx.RaiseEvent(EventCanSend)
}

func (r *Respondent) OnSendTimeout(ctx Context)                   {}
func (r *Respondent) OnSendReady(ctx Context, eid ids.EndpointID) {}

func (r *Respondent) OnTimerTick(ctx Context, token Scheduled) {
	if token.Kind == SchedRecvTimeout {
		r.OnRecvTimeout(ctx)
	}
}

func (r *Respondent) Close(ctx Context) {
	for _, eid := range r.fq.Order() {
		ctx.ClosePipe(eid)
	}
	if r.recvReply != nil {
		WithNotify{}.Deliver(r.recvReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		r.recvReply = nil
	}
	if r.sendReply != nil {
		WithNotify{}.Deliver(r.sendReply, Reply{Err: errs.New(errs.NotConnected, "socket closed")})
		r.sendReply = nil
	}
	ctx.RaiseEvent(EventClosed)
}
