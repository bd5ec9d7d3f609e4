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

package pipe

import (
	"testing"

	"github.com/xtaci/spnet/internal/wire"
)

func activePipe(t *testing.T) *Pipe {
	t.Helper()
	p := New(0x10, 0x10)
	g := wire.Greeting(0x10)
	if err := p.CompleteHandshake(g[:]); err != nil {
		t.Fatalf("CompleteHandshake: %v", err)
	}
	return p
}

func TestHandshakeBadGreetingGoesDead(t *testing.T) {
	p := New(0x10, 0x10)
	err := p.CompleteHandshake([]byte{0, 1, 2})
	if err == nil {
		t.Fatalf("expected error on bad greeting")
	}
	if p.State() != Dead {
		t.Fatalf("state = %v, want Dead", p.State())
	}
}

func TestHandshakeWrongPeerIDGoesDead(t *testing.T) {
	p := New(0x10, 0x11)
	g := wire.Greeting(0x10)
	if err := p.CompleteHandshake(g[:]); err == nil {
		t.Fatalf("expected error for mismatched peer id")
	}
	if p.State() != Dead {
		t.Fatalf("state = %v, want Dead", p.State())
	}
}

func TestSendBeforeHandshakeIsPostponed(t *testing.T) {
	p := New(0x10, 0x10)
	prog, err := p.Send(Message{Body: []byte("hi")})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if prog != Postponed {
		t.Fatalf("Send before handshake = %v, want Postponed", prog)
	}
}

func TestSendReadyInvariant(t *testing.T) {
	p := activePipe(t)
	if !p.SendReady() {
		t.Fatalf("freshly active pipe should be send-ready")
	}

	prog, err := p.Send(Message{Body: []byte("hello")})
	if err != nil || prog != InProgress {
		t.Fatalf("Send = %v, %v; want InProgress, nil", prog, err)
	}
	if p.SendReady() {
		t.Fatalf("pipe with a pending send must not be send-ready")
	}

	// drain the write worker's channel the way reactor.ioWorker would
	<-p.WriteCh
	msg, ok := p.OnFrameWritten()
	if !ok {
		t.Fatalf("OnFrameWritten reported no pending op")
	}
	if string(msg.Body) != "hello" {
		t.Fatalf("OnFrameWritten message = %q", msg.Body)
	}
	if !p.SendReady() {
		t.Fatalf("pipe should be send-ready again after OnFrameWritten")
	}
}

func TestSendAlreadyPendingRejected(t *testing.T) {
	p := activePipe(t)
	if _, err := p.Send(Message{Body: []byte("a")}); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	prog, err := p.Send(Message{Body: []byte("b")})
	if err == nil {
		t.Fatalf("second concurrent Send should error")
	}
	if prog != Postponed {
		t.Fatalf("second Send progress = %v, want Postponed", prog)
	}
}

func TestCancelSending(t *testing.T) {
	p := activePipe(t)
	if _, err := p.Send(Message{Body: []byte("a")}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	p.CancelSending()
	if _, ok := p.OnFrameWritten(); ok {
		t.Fatalf("OnFrameWritten should report nothing after CancelSending")
	}
}

func TestRecvBuffersThenDelivers(t *testing.T) {
	p := activePipe(t)

	// Recv with nothing buffered marks pending and returns InProgress.
	msg, prog := p.Recv()
	if prog != InProgress {
		t.Fatalf("Recv on empty queue = %v, want InProgress", prog)
	}

	delivered, ok := p.OnFrameRead([]byte("payload"))
	if !ok {
		t.Fatalf("OnFrameRead should deliver directly to the pending Recv")
	}
	if string(delivered.Body) != "payload" {
		t.Fatalf("delivered body = %q", delivered.Body)
	}

	// A second frame with no pending Recv gets buffered.
	_, ok = p.OnFrameRead([]byte("buffered"))
	if ok {
		t.Fatalf("OnFrameRead should buffer when no Recv is pending")
	}
	msg, prog = p.Recv()
	if prog != Completed || string(msg.Body) != "buffered" {
		t.Fatalf("Recv from queue = %v %q, want Completed %q", prog, msg.Body, "buffered")
	}
}

func TestRecvPriorityClampedToRange(t *testing.T) {
	p := activePipe(t)
	p.SetRecvPriority(0)
	if p.RecvPriority() != 1 {
		t.Fatalf("RecvPriority clamped low = %d, want 1", p.RecvPriority())
	}
	p.SetRecvPriority(200)
	if p.RecvPriority() != 16 {
		t.Fatalf("RecvPriority clamped high = %d, want 16", p.RecvPriority())
	}
}

func TestKillReleasesPendingOps(t *testing.T) {
	p := activePipe(t)
	if _, err := p.Send(Message{Body: []byte("a")}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	p.Kill()
	if p.State() != Dead {
		t.Fatalf("state after Kill = %v, want Dead", p.State())
	}
	if prog, _ := p.Send(Message{Body: []byte("b")}); prog != Postponed {
		t.Fatalf("Send on dead pipe = %v, want Postponed", prog)
	}
}
