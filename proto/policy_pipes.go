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
	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
)

// WithPipes is the insertion-ordered pipe registry used by the patterns
// that broadcast (Pub, Bus, Surveyor). The selection policies
// (WithLoadBalancer, WithFairQueue) keep their own pipe lists and do not
// use it.
type WithPipes struct {
	order []ids.EndpointID
}

// Add registers a newly active pipe.
func (w *WithPipes) Add(eid ids.EndpointID) {
	w.order = append(w.order, eid)
}

// Remove drops a pipe, preserving the relative order of the rest.
// Reports whether the pipe was present.
func (w *WithPipes) Remove(eid ids.EndpointID) bool {
	for i, e := range w.order {
		if e == eid {
			w.order = append(w.order[:i], w.order[i+1:]...)
			return true
		}
	}
	return false
}

// Has reports whether eid is currently registered.
func (w *WithPipes) Has(eid ids.EndpointID) bool {
	for _, e := range w.order {
		if e == eid {
			return true
		}
	}
	return false
}

// Len is the number of registered pipes.
func (w *WithPipes) Len() int { return len(w.order) }

// All returns the registered pipes in insertion order. Callers must treat
// the slice as read-only.
func (w *WithPipes) All() []ids.EndpointID { return w.order }

// Broadcast hands msg to every registered pipe via ctx, skipping except
// (used by Bus to avoid echoing onto the pipe a message arrived from).
// It returns the pipes that are still InProgress after the send, so the
// caller can track them to completion.
func (w *WithPipes) Broadcast(ctx Context, msg pipe.Message, except ids.EndpointID) []ids.EndpointID {
	var pending []ids.EndpointID
	for _, eid := range w.order {
		if eid == except {
			continue
		}
		if progress, _ := ctx.SendToPipe(eid, msg.Clone()); progress == pipe.InProgress {
			pending = append(pending, eid)
		}
	}
	return pending
}
