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

// WithLoadBalancer is the outbound pipe selector used by Push and Req: a
// round-robin ring over pipes whose send_ready is currently set.
type WithLoadBalancer struct {
	pipes []ids.EndpointID
	next  int
}

func (lb *WithLoadBalancer) Add(eid ids.EndpointID) {
	lb.pipes = append(lb.pipes, eid)
}

func (lb *WithLoadBalancer) Remove(eid ids.EndpointID) bool {
	for i, e := range lb.pipes {
		if e == eid {
			lb.pipes = append(lb.pipes[:i], lb.pipes[i+1:]...)
			if lb.next > i {
				lb.next--
			}
			if len(lb.pipes) > 0 {
				lb.next %= len(lb.pipes)
			} else {
				lb.next = 0
			}
			return true
		}
	}
	return false
}

func (lb *WithLoadBalancer) Len() int { return len(lb.pipes) }

// Pick returns the next pipe whose send_ready is true, advancing the ring
// past it, or false if no pipe currently offers capacity. Callers hold
// the send until a pipe becomes ready or the user deadline aborts it.
func (lb *WithLoadBalancer) Pick(ctx Context) (ids.EndpointID, bool) {
	n := len(lb.pipes)
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		idx := (lb.next + i) % n
		eid := lb.pipes[idx]
		if ctx.PipeSendReady(eid) {
			lb.next = (idx + 1) % n
			return eid, true
		}
	}
	return 0, false
}
