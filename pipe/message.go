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

// Message is the unit exchanged across a Pipe: a pattern-specific Header
// (routing stack) and the user-visible Body. A Message may be shared
// across several pipes during a broadcast send and must stay immutable
// for as long as it is shared: callers that build a Message and hand it
// to more than one pipe must not mutate Header or Body afterwards.
// Slice sharing plus garbage collection stands in for reference counting:
// the last pipe to drop its reference frees the backing array.
type Message struct {
	Header []byte
	Body   []byte
}

// Size returns the wire payload size (header+body), used for length-prefix
// framing.
func (m Message) Size() int {
	return len(m.Header) + len(m.Body)
}

// Clone makes an independent copy; Pub and WithPipes.Broadcast use it to
// hand each pipe its own copy of a broadcast message.
func (m Message) Clone() Message {
	h := make([]byte, len(m.Header))
	copy(h, m.Header)
	b := make([]byte, len(m.Body))
	copy(b, m.Body)
	return Message{Header: h, Body: b}
}
