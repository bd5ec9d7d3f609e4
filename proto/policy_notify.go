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

import "log"

// WithNotify models the reply channel from the reactor to the owning
// user-thread receiver. The channel itself lives on the Reply value
// passed into Send/Recv by the caller (see socket package); WithNotify
// only captures the non-blocking delivery discipline patterns use when
// completing a pending op.
type WithNotify struct{}

// Deliver sends reply on ch without blocking the reactor goroutine. A nil
// ch means no caller is waiting and the reply is discarded; if ch is full
// the reply is dropped and the drop is logged.
func (WithNotify) Deliver(ch chan<- Reply, r Reply) bool {
	if ch == nil {
		return false
	}
	select {
	case ch <- r:
		return true
	default:
		log.Printf("proto: reply channel full, dropping reply (err: %v)", r.Err)
		return false
	}
}
