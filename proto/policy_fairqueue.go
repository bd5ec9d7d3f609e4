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

import "github.com/xtaci/spnet/internal/ids"

// fqEntry pairs a pipe with the recv priority it was registered at.
type fqEntry struct {
	eid      ids.EndpointID
	priority uint8
}

// WithFairQueue is the inbound pipe selector: pipes are ordered by
// declared recv priority (lower numeric value serviced first, over the
// 1..16 range) then by insertion order among equal priorities, with an
// active cursor that advances round-robin over that whole ordering: a
// lower-priority pipe takes its turn in the cycle rather than waiting
// until higher-priority pipes are empty. Removal clamps the cursor back
// to a surviving index.
type WithFairQueue struct {
	entries []fqEntry
	cursor  int
}

func (fq *WithFairQueue) Add(eid ids.EndpointID, priority uint8) {
	fq.entries = append(fq.entries, fqEntry{eid: eid, priority: priority})
	fq.sort()
}

func (fq *WithFairQueue) Remove(eid ids.EndpointID) bool {
	for i, e := range fq.entries {
		if e.eid == eid {
			fq.entries = append(fq.entries[:i], fq.entries[i+1:]...)
			if len(fq.entries) == 0 {
				fq.cursor = 0
			} else if fq.cursor >= len(fq.entries) {
				fq.cursor = 0
			}
			return true
		}
	}
	return false
}

func (fq *WithFairQueue) Len() int { return len(fq.entries) }

// sort performs a stable insertion sort by priority; the registry is
// small (one entry per connected pipe) so this is cheap and keeps
// insertion order stable among equal priorities, which a generic
// sort.Slice would not guarantee without an explicit stable sort.
func (fq *WithFairQueue) sort() {
	for i := 1; i < len(fq.entries); i++ {
		j := i
		for j > 0 && fq.entries[j-1].priority > fq.entries[j].priority {
			fq.entries[j-1], fq.entries[j] = fq.entries[j], fq.entries[j-1]
			j--
		}
	}
}

// Next returns the next pipe to source a message from, advancing the
// cursor round-robin. Callers try pipes in this order until one yields a
// message via ctx.RecvFromPipe.
func (fq *WithFairQueue) Next() (ids.EndpointID, bool) {
	n := len(fq.entries)
	if n == 0 {
		return 0, false
	}
	eid := fq.entries[fq.cursor%n].eid
	fq.cursor = (fq.cursor + 1) % n
	return eid, true
}

// Order returns every registered pipe once, starting from the cursor,
// without advancing it. Only for callers that must visit every pipe
// regardless of outcome (e.g. closing them all); a caller picking a single
// winner must use TryEach instead, or the cursor never rotates.
func (fq *WithFairQueue) Order() []ids.EndpointID {
	n := len(fq.entries)
	out := make([]ids.EndpointID, n)
	for i := 0; i < n; i++ {
		out[i] = fq.entries[(fq.cursor+i)%n].eid
	}
	return out
}

// DropInterest clears pending recv interest on every registered pipe.
// A scan via TryEach leaves each empty pipe it probed expecting to hand
// its next frame straight to the protocol; once the protocol stops
// waiting (a message was delivered, or the recv timed out) that interest
// must be withdrawn, or a frame arriving later on a still-pending pipe
// bypasses the pipe's buffer and is dropped by a protocol that is no
// longer receiving.
func (fq *WithFairQueue) DropInterest(ctx Context) {
	for _, e := range fq.entries {
		ctx.CancelRecv(e.eid)
	}
}

// TryEach scans pipes in fair-queue order via Next, calling consider on
// each until one returns true. On success the cursor is left one past the
// winner, so the next scan resumes after it; a full unsuccessful sweep
// advances the cursor all the way around back to where it started.
func (fq *WithFairQueue) TryEach(consider func(ids.EndpointID) bool) bool {
	for i, n := 0, fq.Len(); i < n; i++ {
		eid, ok := fq.Next()
		if !ok {
			return false
		}
		if consider(eid) {
			return true
		}
	}
	return false
}
