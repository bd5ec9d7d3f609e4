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
	"log"
	"time"

	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/proto"
)

// The hashed timer wheel's fixed parameters: 25ms tick, 1024 slots,
// at most 8192 outstanding tasks.
const (
	tickInterval = 25 * time.Millisecond
	wheelSlots   = 1024
	wheelCap     = 8192
)

// task is one scheduled Schedulable, identified by the Scheduled handle
// the owning protocol was given back.
type task struct {
	id     uint64
	socket ids.SocketID
	kind   proto.Schedulable
	round  uint32 // how many more full revolutions of the wheel before firing
	slot   int
	// endpoint is only meaningful for SchedReconnect/SchedRebind tasks: it
	// names the dial attempt or listener the reconnect/rebind logic should
	// retry against.
	endpoint ids.EndpointID
}

// wheel is a hashed timer wheel: each slot holds the tasks due in that
// 25ms bucket (or a later revolution of it). Timers are handles, not
// closures: firing a task never invokes a callback directly, it is
// reported back to the dispatcher, which looks up the owning socket and
// calls OnTimerTick.
type wheel struct {
	slots   [wheelSlots][]task
	current int
	nextID  uint64
	count   int
}

func newWheel() *wheel {
	return &wheel{}
}

// schedule places a new task delay in the future, returning the handle to
// give back to the protocol. Exceeding wheelCap outstanding timers is
// logged and refused with a zero id (id 0 is never issued by schedule):
// an overloaded wheel is a load condition, not an internal invariant
// violation, so it must not panic the reactor.
func (w *wheel) schedule(socket ids.SocketID, kind proto.Schedulable, delay time.Duration) proto.Scheduled {
	return w.scheduleEndpoint(socket, kind, delay, 0)
}

// scheduleEndpoint is schedule plus an endpoint id, used internally for
// SchedReconnect/SchedRebind tasks that must remember which dial attempt
// or listener to retry.
func (w *wheel) scheduleEndpoint(socket ids.SocketID, kind proto.Schedulable, delay time.Duration, endpoint ids.EndpointID) proto.Scheduled {
	if w.count >= wheelCap {
		log.Printf("reactor: timer wheel at capacity (%d), refusing schedule of %s", wheelCap, kind)
		return proto.Scheduled{}
	}
	if delay < 0 {
		delay = 0
	}
	// Round up to whole ticks, with a minimum of one: a zero-tick task would
	// land in the slot the cursor has just left and wait a full revolution.
	ticks := int((delay + tickInterval - 1) / tickInterval)
	if ticks < 1 {
		ticks = 1
	}
	slot := (w.current + ticks) % wheelSlots
	round := uint32((ticks - 1) / wheelSlots)
	w.nextID++
	t := task{id: w.nextID, socket: socket, kind: kind, round: round, slot: slot, endpoint: endpoint}
	w.slots[slot] = append(w.slots[slot], t)
	w.count++
	return proto.Scheduled{ID: t.id, Kind: kind}
}

// cancel removes a previously scheduled task by id. A no-op if the task
// already fired.
func (w *wheel) cancel(s proto.Scheduled) {
	if s.ID == 0 {
		return
	}
	for slot := range w.slots {
		bucket := w.slots[slot]
		for i, t := range bucket {
			if t.id == s.ID {
				w.slots[slot] = append(bucket[:i], bucket[i+1:]...)
				w.count--
				return
			}
		}
	}
}

// advance moves the wheel forward by one tick, invoking fire for every
// task due in the slot the cursor lands on (round == 0), and
// decrementing the round counter of every other task parked there.
func (w *wheel) advance(fire func(task)) {
	w.current = (w.current + 1) % wheelSlots
	bucket := w.slots[w.current]
	if len(bucket) == 0 {
		return
	}
	var remaining []task
	for _, t := range bucket {
		if t.round == 0 {
			w.count--
			fire(t)
		} else {
			t.round--
			remaining = append(remaining, t)
		}
	}
	w.slots[w.current] = remaining
}
