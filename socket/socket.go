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

// Package socket is the low-level per-socket handle: one SocketID plus
// the shared request channel every facade call is translated into. It
// holds no protocol state of its own; that lives entirely in the
// reactor, reachable only by sending a reactor.Request and waiting on
// its reply channel. session.Session is the package most callers use;
// this package is what it is built on.
package socket

import (
	"time"

	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
	"github.com/xtaci/spnet/proto"
	"github.com/xtaci/spnet/reactor"
)

// Socket is a bind/connect/send/recv/set_option/close handle bound to one
// reactor-side Protocol instance.
type Socket struct {
	id   ids.SocketID
	reqs chan<- reactor.Request

	sendTimeout time.Duration
	recvTimeout time.Duration
}

// New wraps an already-created reactor socket id. Session.CreateSocket
// calls it once the reactor has allocated the id.
func New(id ids.SocketID, reqs chan<- reactor.Request) *Socket {
	return &Socket{id: id, reqs: reqs}
}

func (s *Socket) ID() ids.SocketID { return s.id }

// Bind opens a listener at url and attaches every accepted connection to
// this socket's protocol.
func (s *Socket) Bind(url string) error {
	reply := make(chan error, 1)
	s.reqs <- reactor.BindReq{Socket: s.id, URL: url, Reply: reply}
	return <-reply
}

// Connect schedules a dial to url. It returns as soon as the attempt is
// scheduled, not once the handshake completes. A send issued immediately
// after Connect finds no active pipe: Push fails it NotConnected, while
// Pair and Req hold it until a pipe arrives or send_timeout elapses.
func (s *Socket) Connect(url string) error {
	reply := make(chan error, 1)
	s.reqs <- reactor.ConnectReq{Socket: s.id, URL: url, Reply: reply}
	return <-reply
}

// Send hands b to the protocol's Send, governed by whatever send_timeout
// was last set via SetOption (no timeout by default).
func (s *Socket) Send(b []byte) error {
	reply := make(chan proto.Reply, 1)
	s.reqs <- reactor.SendReq{
		Socket:   s.id,
		Msg:      pipe.Message{Body: b},
		Deadline: s.deadline(s.sendTimeout),
		Reply:    reply,
	}
	return (<-reply).Err
}

// Recv blocks until the protocol delivers a message, the recv_timeout
// elapses, or the socket errors.
func (s *Socket) Recv() ([]byte, error) {
	reply := make(chan proto.Reply, 1)
	s.reqs <- reactor.RecvReq{Socket: s.id, Deadline: s.deadline(s.recvTimeout), Reply: reply}
	r := <-reply
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Msg.Body, nil
}

func (s *Socket) deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// Close tears the socket and all its pipes/listeners down. Idempotent:
// closing twice reports success both times.
func (s *Socket) Close() error {
	reply := make(chan error, 1)
	s.reqs <- reactor.CloseSocketReq{Socket: s.id, Reply: reply}
	return <-reply
}

// SetOption applies one socket option.
// send_timeout/recv_timeout are kept locally since they only shape the
// Deadline this Socket computes before issuing a SendReq/RecvReq; every
// other option is forwarded to the reactor as a SetOptionReq, which
// applies it to the socket's reconnect settings, its pipes' priorities or
// its protocol.
func (s *Socket) SetOption(opt reactor.Option) error {
	switch opt.Kind {
	case reactor.OptSendTimeout:
		s.sendTimeout = opt.Duration
		return nil
	case reactor.OptRecvTimeout:
		s.recvTimeout = opt.Duration
		return nil
	}
	reply := make(chan error, 1)
	s.reqs <- reactor.SetOptionReq{Socket: s.id, Option: opt, Reply: reply}
	return <-reply
}
