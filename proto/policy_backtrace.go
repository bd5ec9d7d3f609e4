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
	"encoding/binary"

	"github.com/xtaci/spnet/internal/ids"
)

// WithBacktrace carries the variable-length routing header Rep peels off
// an incoming request so a reply can be routed back to the same origin.
// Each hop prepends a 4-byte id (a 31-bit operation id with the high bit
// set); the Rep side additionally remembers which pipe the innermost id
// arrived on.
type WithBacktrace struct {
	stack  []byte
	origin ids.EndpointID
	have   bool
}

// Capture records the backtrace peeled from an incoming request's
// header, and the pipe it arrived on, clearing any previous backtrace.
func (b *WithBacktrace) Capture(header []byte, origin ids.EndpointID) {
	b.stack = append([]byte(nil), header...)
	b.origin = origin
	b.have = true
}

// Restore returns the backtrace header to prepend on an outgoing reply
// and the pipe to send it on. ok is false if no request is currently
// outstanding, which is how replying without a prior request fails.
func (b *WithBacktrace) Restore() (header []byte, origin ids.EndpointID, ok bool) {
	if !b.have {
		return nil, 0, false
	}
	return b.stack, b.origin, true
}

// Clear drops the backtrace once a reply has been sent successfully.
func (b *WithBacktrace) Clear() {
	b.stack = nil
	b.have = false
}

// Pending reports whether a backtrace is currently held.
func (b *WithBacktrace) Pending() bool { return b.have }

// PushID prepends a 31-bit operation id (high bit set) onto header,
// stacking if the message already carries ids from upstream
// intermediaries.
func PushID(header []byte, id uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], 0x80000000|id)
	return append(append([]byte(nil), buf[:]...), header...)
}

// PopID removes and returns the first 31-bit operation id from payload,
// along with the remaining bytes.
func PopID(payload []byte) (id uint32, rest []byte, ok bool) {
	if len(payload) < 4 {
		return 0, payload, false
	}
	id = binary.BigEndian.Uint32(payload[:4]) &^ 0x80000000
	return id, payload[4:], true
}
