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

// Progress is the three-valued result of a non-blocking send/recv
// attempt.
type Progress int

const (
	// Postponed: zero bytes moved, because the pipe is not Active
	// (handshake incomplete or already Dead), a send is already pending on
	// it, or its write channel is full. The caller keeps ownership of
	// whatever it was trying to send.
	Postponed Progress = iota
	// InProgress: the operation was accepted and handed to the pipe's I/O
	// worker; completion is reported asynchronously via the bus
	// (SigFrameWritten / SigFrameRead) rather than returned synchronously
	// here.
	InProgress
	// Completed: the queued inbound frame was already fully buffered and
	// is returned immediately. Only Recv ever returns this synchronously;
	// Send never does, since every write is dispatched to the writer
	// worker.
	Completed
)

func (p Progress) String() string {
	switch p {
	case Postponed:
		return "postponed"
	case InProgress:
		return "in-progress"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}
