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

// Package pipe implements the per-connection frame-oriented state
// machine: Handshake -> Active -> Dead, with non-blocking send/recv
// reporting Completed/InProgress/Postponed progress.
//
// The actual socket I/O is not performed here: a Pipe only holds buffers
// and channels; the reactor package drives a pair of worker goroutines
// per pipe that do the blocking read/write syscalls and report results
// back onto the bus as events this state machine consumes.
package pipe

import (
	"sync/atomic"

	"github.com/xtaci/spnet/internal/errs"
	"github.com/xtaci/spnet/internal/wire"
)

// State is the pipe's lifecycle stage.
type State int

const (
	Handshake State = iota
	Active
	Dead
)

// WriteFrame is a fully-marshalled outbound frame handed to the writer
// worker: length prefix, then header and body back to back.
type WriteFrame struct {
	Bytes []byte
}

// Pipe is the per-connection FSM. It never touches the network directly;
// WriteCh is drained by the reactor's writer goroutine, and
// CompleteHandshake/OnFrameRead/OnFrameWritten are invoked by the
// dispatcher when the I/O goroutines post signals onto the bus.
type Pipe struct {
	state State

	localProtoID uint16
	peerProtoID  uint16

	// WriteCh carries at most one outstanding write: a second frame is
	// never pushed before the first's SigFrameWritten arrives.
	WriteCh chan WriteFrame

	pendingSend *Message // non-nil while a send is in flight
	recvQueue   []Message
	pendingRecv bool // true if a caller is waiting on the next recv

	sendReady int32 // atomic bool: connection last reported writable and no send in flight

	recvPriority uint8
	sendPriority uint8
}

// New creates a pipe in Handshake state advertising localProtoID and
// expecting peerProtoID from the remote greeting.
func New(localProtoID, peerProtoID uint16) *Pipe {
	return &Pipe{
		state:        Handshake,
		localProtoID: localProtoID,
		peerProtoID:  peerProtoID,
		WriteCh:      make(chan WriteFrame, 1),
		recvPriority: 8,
		sendPriority: 8,
	}
}

// State returns the pipe's current lifecycle stage.
func (p *Pipe) State() State { return p.state }

// Greeting returns the 8-byte handshake message this side sends.
func (p *Pipe) Greeting() [wire.GreetingSize]byte {
	return wire.Greeting(p.localProtoID)
}

// CompleteHandshake validates the peer's greeting and transitions to
// Active on success, or to Dead with InvalidData on mismatch.
func (p *Pipe) CompleteHandshake(peerGreeting []byte) error {
	if p.state != Handshake {
		return errs.New(errs.InvalidInput, "handshake already complete")
	}
	if !wire.CheckGreeting(peerGreeting, p.peerProtoID) {
		p.state = Dead
		return errs.New(errs.InvalidData, "bad greeting")
	}
	p.state = Active
	atomic.StoreInt32(&p.sendReady, 1)
	return nil
}

// SetWritable marks the pipe writable; called when the writer worker
// reports it drained its last frame with no error.
func (p *Pipe) SetWritable() {
	if p.pendingSend == nil {
		atomic.StoreInt32(&p.sendReady, 1)
	}
}

// SendReady reports whether the connection last reported writable and no
// send is in progress.
func (p *Pipe) SendReady() bool {
	return p.state == Active && atomic.LoadInt32(&p.sendReady) == 1 && p.pendingSend == nil
}

// Send attempts to hand msg to the writer worker. It never blocks.
func (p *Pipe) Send(msg Message) (Progress, error) {
	if p.state != Active {
		return Postponed, nil
	}
	if p.pendingSend != nil {
		return Postponed, errs.New(errs.InvalidInput, "send already pending on this pipe")
	}
	frame := marshalFrame(msg)
	select {
	case p.WriteCh <- WriteFrame{Bytes: frame}:
		m := msg
		p.pendingSend = &m
		atomic.StoreInt32(&p.sendReady, 0)
		return InProgress, nil
	default:
		// writer worker hasn't drained a previous frame; pendingSend
		// gates this path, so it is unreachable unless the worker died.
		return Postponed, nil
	}
}

// OnFrameWritten is invoked by the dispatcher when the writer worker
// reports the pending frame fully flushed. It clears the pending op and
// reports the completed Message so the protocol can fire on_send_ack.
func (p *Pipe) OnFrameWritten() (Message, bool) {
	if p.pendingSend == nil {
		return Message{}, false
	}
	msg := *p.pendingSend
	p.pendingSend = nil
	atomic.StoreInt32(&p.sendReady, 1)
	return msg, true
}

// CancelSending drops the pending send op, releasing its message
// reference without touching the wire.
func (p *Pipe) CancelSending() {
	p.pendingSend = nil
}

// OnFrameRead is invoked by the dispatcher when the reader worker posts a
// freshly received frame. The whole payload arrives as one buffer here;
// splitting it into header/body is pattern-specific and happens one layer
// up, in the owning Protocol. If a recv is already pending it is
// satisfied immediately (Completed); otherwise the message is buffered
// until Recv is called.
func (p *Pipe) OnFrameRead(payload []byte) (msg Message, delivered bool) {
	m := Message{Body: payload}
	if p.pendingRecv {
		p.pendingRecv = false
		return m, true
	}
	p.recvQueue = append(p.recvQueue, m)
	return Message{}, false
}

// Recv attempts to take the next buffered message.
func (p *Pipe) Recv() (Message, Progress) {
	if p.state != Active {
		return Message{}, Postponed
	}
	if len(p.recvQueue) > 0 {
		m := p.recvQueue[0]
		p.recvQueue = p.recvQueue[1:]
		return m, Completed
	}
	p.pendingRecv = true
	return Message{}, InProgress
}

// CancelRecv drops pending recv interest.
func (p *Pipe) CancelRecv() {
	p.pendingRecv = false
}

// Kill transitions the pipe to Dead, releasing any pending send/recv
// refs. Idempotent.
func (p *Pipe) Kill() {
	p.state = Dead
	p.pendingSend = nil
	p.pendingRecv = false
	p.recvQueue = nil
}

// RecvPriority / SendPriority expose the per-pipe priorities:
// recv priority orders the fair queue, send priority weights the load
// balancer. Values clamp to [1,16].
func (p *Pipe) RecvPriority() uint8 { return p.recvPriority }
func (p *Pipe) SetRecvPriority(v uint8) {
	if v < 1 {
		v = 1
	}
	if v > 16 {
		v = 16
	}
	p.recvPriority = v
}
func (p *Pipe) SendPriority() uint8 { return p.sendPriority }
func (p *Pipe) SetSendPriority(v uint8) {
	if v < 1 {
		v = 1
	}
	if v > 16 {
		v = 16
	}
	p.sendPriority = v
}

// marshalFrame lays out a Message as <u64 length><header><body>.
func marshalFrame(msg Message) []byte {
	n := msg.Size()
	buf := make([]byte, wire.LengthPrefixSize+n)
	wire.PutLength(buf, uint64(n))
	copy(buf[wire.LengthPrefixSize:], msg.Header)
	copy(buf[wire.LengthPrefixSize+len(msg.Header):], msg.Body)
	return buf
}
