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
	"testing"
	"time"

	"github.com/xtaci/spnet/internal/errs"
	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
)

func TestPairSecondPipeRejected(t *testing.T) {
	p := NewPair()
	ctx := newFakeCtx()
	eid1, eid2 := ids.EndpointID(1), ids.EndpointID(2)

	if err := p.AddPipe(ctx, eid1); err != nil {
		t.Fatalf("first AddPipe: %v", err)
	}
	if err := p.AddPipe(ctx, eid2); err == nil {
		t.Fatalf("second AddPipe should be rejected")
	}
}

func TestPairSendCompletesOnAck(t *testing.T) {
	p := NewPair()
	ctx := newFakeCtx()
	eid := ids.EndpointID(1)
	p.AddPipe(ctx, eid)

	reply := make(chan Reply, 1)
	p.Send(ctx, pipe.Message{Body: []byte("hi")}, time.Time{}, reply)

	if len(ctx.sent) != 1 || ctx.sent[0].eid != eid {
		t.Fatalf("expected one send to pipe %d, got %+v", eid, ctx.sent)
	}

	select {
	case <-reply:
		t.Fatalf("reply delivered before OnSendAck")
	default:
	}

	p.OnSendAck(ctx, eid)
	select {
	case r := <-reply:
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
	default:
		t.Fatalf("expected reply after OnSendAck")
	}
	if !ctx.hasEvent(EventCanSend) {
		t.Fatalf("expected EventCanSend to be raised")
	}
}

func TestPairSendOnHoldWithoutPipe(t *testing.T) {
	p := NewPair()
	ctx := newFakeCtx()
	reply := make(chan Reply, 1)
	p.Send(ctx, pipe.Message{Body: []byte("hi")}, time.Time{}, reply)
	if len(ctx.sent) != 0 {
		t.Fatalf("Send with no pipe should not dispatch to any pipe, got %+v", ctx.sent)
	}

	eid := ids.EndpointID(1)
	p.AddPipe(ctx, eid)
	if len(ctx.sent) != 1 {
		t.Fatalf("AddPipe should flush the on-hold send")
	}
}

func TestPairRecvDeliversBufferedMessage(t *testing.T) {
	p := NewPair()
	ctx := newFakeCtx()
	eid := ids.EndpointID(1)
	p.AddPipe(ctx, eid)
	ctx.push(eid, pipe.Message{Body: []byte("payload")})

	reply := make(chan Reply, 1)
	p.Recv(ctx, time.Time{}, reply)

	select {
	case r := <-reply:
		if string(r.Msg.Body) != "payload" {
			t.Fatalf("recv body = %q", r.Msg.Body)
		}
	default:
		t.Fatalf("expected immediate delivery from buffered recv")
	}
}

func TestPairSendTimeout(t *testing.T) {
	p := NewPair()
	ctx := newFakeCtx()
	reply := make(chan Reply, 1)
	// no pipe: send stays on hold, timer still scheduled
	p.Send(ctx, pipe.Message{Body: []byte("hi")}, ctx.now.Add(time.Millisecond), reply)
	p.OnTimerTick(ctx, Scheduled{ID: 1, Kind: SchedSendTimeout})

	r := <-reply
	if errs.KindOf(r.Err) != errs.TimedOut {
		t.Fatalf("expected TimedOut, got %v", r.Err)
	}
}

func TestPairRemovePipePutsSendOnHold(t *testing.T) {
	p := NewPair()
	ctx := newFakeCtx()
	eid := ids.EndpointID(1)
	p.AddPipe(ctx, eid)

	reply := make(chan Reply, 1)
	p.Send(ctx, pipe.Message{Body: []byte("hi")}, time.Time{}, reply)

	p.RemovePipe(ctx, eid)
	// re-adding a new pipe should flush the held send again
	eid2 := ids.EndpointID(2)
	p.AddPipe(ctx, eid2)

	found := false
	for _, s := range ctx.sent {
		if s.eid == eid2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected held send to flush onto replacement pipe")
	}
}

func TestPairCloseFlushesPendingReplies(t *testing.T) {
	p := NewPair()
	ctx := newFakeCtx()
	reply := make(chan Reply, 1)
	p.Send(ctx, pipe.Message{Body: []byte("hi")}, time.Time{}, reply)

	p.Close(ctx)

	r := <-reply
	if errs.KindOf(r.Err) != errs.NotConnected {
		t.Fatalf("expected NotConnected on close, got %v", r.Err)
	}
	if !ctx.hasEvent(EventClosed) {
		t.Fatalf("expected EventClosed")
	}
}
