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

package reactor

import (
	"time"

	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
	"github.com/xtaci/spnet/proto"
)

// Request is the cross-thread message a facade (session/socket) sends to
// the dispatcher over its bounded request channel. Each concrete type
// below carries its own reply channel rather than sharing one generic
// result type, since the facade already knows which result shape to
// expect from the call it made.
type Request interface {
	isRequest()
}

// CreateSocketReq asks the dispatcher to allocate a new socket around a
// freshly constructed Protocol. newProto is supplied by the socket
// package's per-SocketType factory table so the reactor never needs to
// know about concrete pattern types.
type CreateSocketReq struct {
	NewProto func() proto.Protocol
	Reply    chan CreateSocketResult
}

func (CreateSocketReq) isRequest() {}

type CreateSocketResult struct {
	ID  ids.SocketID
	Err error
}

// BindReq asks the dispatcher to open a listener for URL and attach
// accepted pipes to Socket.
type BindReq struct {
	Socket ids.SocketID
	URL    string
	Reply  chan error
}

func (BindReq) isRequest() {}

// ConnectReq asks the dispatcher to dial URL and attach the resulting
// pipe to Socket, with reconnect-on-failure managed automatically.
type ConnectReq struct {
	Socket ids.SocketID
	URL    string
	Reply  chan error
}

func (ConnectReq) isRequest() {}

// SendReq forwards a user send() call to Socket's protocol. Reply is the
// same channel type a Protocol's Send/Recv methods write to directly
// (proto.Reply), so the dispatcher never has to adapt between a
// reactor-specific result type and the protocol's own notification
// channel.
type SendReq struct {
	Socket   ids.SocketID
	Msg      pipe.Message
	Deadline time.Time
	Reply    chan proto.Reply
}

func (SendReq) isRequest() {}

// RecvReq forwards a user recv() call to Socket's protocol.
type RecvReq struct {
	Socket   ids.SocketID
	Deadline time.Time
	Reply    chan proto.Reply
}

func (RecvReq) isRequest() {}

// OptionKind is the closed set of socket options.
type OptionKind int

const (
	OptSendTimeout OptionKind = iota
	OptRecvTimeout
	OptSendPriority
	OptRecvPriority
	OptReconnectInterval
	OptReconnectIntervalMax
	OptSubscribe
	OptUnsubscribe
	OptSurveyDeadline
	OptResendInterval
)

// Option is the value half of a SetOptionReq.
type Option struct {
	Kind     OptionKind
	Duration time.Duration
	Priority uint8
	Bytes    []byte
}

// SetOptionReq forwards a user set_option() call.
type SetOptionReq struct {
	Socket ids.SocketID
	Option Option
	Reply  chan error
}

func (SetOptionReq) isRequest() {}

// CloseSocketReq tears a socket and all its pipes/listeners down.
// Idempotent: closing an already-closed socket reports success.
type CloseSocketReq struct {
	Socket ids.SocketID
	Reply  chan error
}

func (CloseSocketReq) isRequest() {}

// ShutdownReq stops the dispatcher loop, closing every socket first.
type ShutdownReq struct {
	Reply chan struct{}
}

func (ShutdownReq) isRequest() {}
