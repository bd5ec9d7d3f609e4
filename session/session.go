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

// Package session is the user-facing facade: Session.CreateSocket hands
// out Socket handles backed by a single shared Dispatcher.
package session

import (
	"log"

	"github.com/xtaci/spnet/proto"
	"github.com/xtaci/spnet/reactor"
	"github.com/xtaci/spnet/socket"
)

// SocketType is the closed set of pattern roles a Session can create, one
// per FSM in the proto package.
type SocketType int

const (
	Pair SocketType = iota
	Req
	Rep
	Pub
	Sub
	Surveyor
	Respondent
	Push
	Pull
	Bus
)

func (t SocketType) String() string {
	switch t {
	case Pair:
		return "pair"
	case Req:
		return "req"
	case Rep:
		return "rep"
	case Pub:
		return "pub"
	case Sub:
		return "sub"
	case Surveyor:
		return "surveyor"
	case Respondent:
		return "respondent"
	case Push:
		return "push"
	case Pull:
		return "pull"
	case Bus:
		return "bus"
	default:
		return "unknown"
	}
}

func (t SocketType) newProto() proto.Protocol {
	switch t {
	case Pair:
		return proto.NewPair()
	case Req:
		return proto.NewReq()
	case Rep:
		return proto.NewRep()
	case Pub:
		return proto.NewPub()
	case Sub:
		return proto.NewSub()
	case Surveyor:
		return proto.NewSurveyor()
	case Respondent:
		return proto.NewRespondent()
	case Push:
		return proto.NewPush()
	case Pull:
		return proto.NewPull()
	case Bus:
		return proto.NewBus()
	default:
		return nil
	}
}

// Session owns one Dispatcher and every Socket created through it.
type Session struct {
	d *reactor.Dispatcher
}

// New starts a fresh Session, launching its Dispatcher's reactor
// goroutine immediately.
func New() *Session {
	return NewWithLogger(nil)
}

// NewWithLogger is New with an explicit *log.Logger for the reactor's
// diagnostic output (handshake failures, dial failures, listener
// faults); nil uses log.Default().
func NewWithLogger(logger *log.Logger) *Session {
	d := reactor.New(logger)
	d.Start()
	return &Session{d: d}
}

// CreateSocket asks the reactor to allocate a new socket around the
// Protocol SocketType names.
func (sess *Session) CreateSocket(t SocketType) (*socket.Socket, error) {
	reply := make(chan reactor.CreateSocketResult, 1)
	sess.d.Requests() <- reactor.CreateSocketReq{NewProto: t.newProto, Reply: reply}
	r := <-reply
	if r.Err != nil {
		return nil, r.Err
	}
	return socket.New(r.ID, sess.d.Requests()), nil
}

// Stats snapshots the reactor's activity counters, for std.SnmpLogger or
// any other caller that wants a point-in-time view.
func (sess *Session) Stats() reactor.Snapshot {
	return sess.d.Stats().Snapshot()
}

// Close stops the Session's Dispatcher, closing every socket it still
// owns first.
func (sess *Session) Close() {
	reply := make(chan struct{})
	sess.d.Requests() <- reactor.ShutdownReq{Reply: reply}
	<-reply
}
