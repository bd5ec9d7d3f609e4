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

	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
)

func TestLoadBalancerRoundRobinsReadyPipes(t *testing.T) {
	var lb WithLoadBalancer
	ctx := newFakeCtx()
	e1, e2, e3 := ids.EndpointID(1), ids.EndpointID(2), ids.EndpointID(3)
	lb.Add(e1)
	lb.Add(e2)
	lb.Add(e3)

	var order []ids.EndpointID
	for i := 0; i < 3; i++ {
		eid, ok := lb.Pick(ctx)
		if !ok {
			t.Fatalf("Pick failed with ready pipes available")
		}
		order = append(order, eid)
	}
	if order[0] != e1 || order[1] != e2 || order[2] != e3 {
		t.Fatalf("unexpected round-robin order: %v", order)
	}
}

func TestLoadBalancerSkipsNotReady(t *testing.T) {
	var lb WithLoadBalancer
	ctx := newFakeCtx()
	e1, e2 := ids.EndpointID(1), ids.EndpointID(2)
	lb.Add(e1)
	lb.Add(e2)
	ctx.sendReady[e1] = false

	eid, ok := lb.Pick(ctx)
	if !ok || eid != e2 {
		t.Fatalf("Pick = %v, %v; want e2, true", eid, ok)
	}
}

func TestLoadBalancerNoneReady(t *testing.T) {
	var lb WithLoadBalancer
	ctx := newFakeCtx()
	e1 := ids.EndpointID(1)
	lb.Add(e1)
	ctx.sendReady[e1] = false

	if _, ok := lb.Pick(ctx); ok {
		t.Fatalf("Pick should fail with no ready pipes")
	}
}

func TestLoadBalancerRemoveRepairsCursor(t *testing.T) {
	var lb WithLoadBalancer
	ctx := newFakeCtx()
	e1, e2, e3 := ids.EndpointID(1), ids.EndpointID(2), ids.EndpointID(3)
	lb.Add(e1)
	lb.Add(e2)
	lb.Add(e3)
	lb.Pick(ctx) // advances cursor past e1

	if !lb.Remove(e2) {
		t.Fatalf("Remove(e2) should report true")
	}
	if lb.Len() != 2 {
		t.Fatalf("Len after remove = %d, want 2", lb.Len())
	}
	// cursor must still resolve to a valid index
	if _, ok := lb.Pick(ctx); !ok {
		t.Fatalf("Pick after removal should still find a ready pipe")
	}
}

func TestFairQueueOrdersByPriorityThenInsertion(t *testing.T) {
	var fq WithFairQueue
	e1, e2, e3 := ids.EndpointID(1), ids.EndpointID(2), ids.EndpointID(3)
	fq.Add(e1, 8)
	fq.Add(e2, 1) // higher priority (lower number) serviced first
	fq.Add(e3, 8)

	order := fq.Order()
	if order[0] != e2 {
		t.Fatalf("expected highest-priority pipe first, got %v", order)
	}
}

func TestFairQueueNextRoundRobins(t *testing.T) {
	var fq WithFairQueue
	e1, e2 := ids.EndpointID(1), ids.EndpointID(2)
	fq.Add(e1, 8)
	fq.Add(e2, 8)

	first, _ := fq.Next()
	second, _ := fq.Next()
	third, _ := fq.Next()
	if first != e1 || second != e2 || third != e1 {
		t.Fatalf("expected alternating cursor, got %v %v %v", first, second, third)
	}
}

func TestFairQueueRemoveRepairsCursor(t *testing.T) {
	var fq WithFairQueue
	e1, e2 := ids.EndpointID(1), ids.EndpointID(2)
	fq.Add(e1, 8)
	fq.Add(e2, 8)
	fq.Next() // cursor now at e2

	fq.Remove(e1)
	if fq.Len() != 1 {
		t.Fatalf("Len after remove = %d, want 1", fq.Len())
	}
	eid, ok := fq.Next()
	if !ok || eid != e2 {
		t.Fatalf("Next after removal = %v, %v; want e2, true", eid, ok)
	}
}

func TestWithPipesBroadcastClonesPerPipe(t *testing.T) {
	var w WithPipes
	ctx := newFakeCtx()
	e1, e2 := ids.EndpointID(1), ids.EndpointID(2)
	w.Add(e1)
	w.Add(e2)

	msg := pipe.Message{Body: []byte("shared")}
	w.Broadcast(ctx, msg, 0)

	if len(ctx.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(ctx.sent))
	}
	// mutating one pipe's copy must not affect the other or the original
	ctx.sent[0].msg.Body[0] = 'S'
	if string(msg.Body) != "shared" {
		t.Fatalf("original message mutated: %q", msg.Body)
	}
	if string(ctx.sent[1].msg.Body) != "shared" {
		t.Fatalf("sibling pipe's clone mutated: %q", ctx.sent[1].msg.Body)
	}
}

func TestBacktraceRestoreWithoutCaptureFails(t *testing.T) {
	var bt WithBacktrace
	if bt.Pending() {
		t.Fatalf("fresh WithBacktrace should not be pending")
	}
	if _, _, ok := bt.Restore(); ok {
		t.Fatalf("Restore should fail with nothing captured")
	}
}

func TestBacktraceCaptureRestoreClear(t *testing.T) {
	var bt WithBacktrace
	eid := ids.EndpointID(7)
	bt.Capture([]byte{1, 2, 3}, eid)
	if !bt.Pending() {
		t.Fatalf("expected pending after Capture")
	}
	header, origin, ok := bt.Restore()
	if !ok || origin != eid || string(header) != string([]byte{1, 2, 3}) {
		t.Fatalf("Restore = %v %v %v", header, origin, ok)
	}
	bt.Clear()
	if bt.Pending() {
		t.Fatalf("expected not pending after Clear")
	}
}

func TestPushPopID(t *testing.T) {
	h := PushID(nil, 5)
	id, rest, ok := PopID(h)
	if !ok || id != 5 || len(rest) != 0 {
		t.Fatalf("PopID(PushID(nil,5)) = %v %v %v", id, rest, ok)
	}

	stacked := PushID(h, 9)
	id2, rest2, ok2 := PopID(stacked)
	if !ok2 || id2 != 9 || len(rest2) != 4 {
		t.Fatalf("stacked PopID = %v %v %v", id2, rest2, ok2)
	}
}

func TestNotifyDeliverNilAndFullChannel(t *testing.T) {
	n := WithNotify{}
	if n.Deliver(nil, Reply{}) {
		t.Fatalf("Deliver on nil channel should report false")
	}

	ch := make(chan Reply, 1)
	if !n.Deliver(ch, Reply{}) {
		t.Fatalf("Deliver on empty buffered channel should succeed")
	}
	if n.Deliver(ch, Reply{}) {
		t.Fatalf("Deliver on a full channel should report false, not block")
	}
}
