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
	"io"

	"github.com/xtaci/spnet/internal/errs"
	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/internal/wire"
	"github.com/xtaci/spnet/pipe"
	"github.com/xtaci/spnet/transport"
)

// maxFrameSize bounds a single frame's payload; a length prefix beyond
// it kills the pipe with InvalidData before any allocation happens.
const maxFrameSize = 128 << 20

// startPipeIO launches the reader and writer goroutines for a freshly
// created pipe. Like the accept loops and background dials, they never
// touch pipe/protocol state directly: they only perform blocking net I/O
// and post Signals onto the bus for the dispatcher to interpret.
func startPipeIO(eid ids.EndpointID, conn transport.Connection, greeting [wire.GreetingSize]byte, writeCh <-chan pipe.WriteFrame, b *bus) {
	go readLoop(eid, conn, b)
	go writeLoop(eid, conn, greeting, writeCh, b)
}

func readLoop(eid ids.EndpointID, conn transport.Connection, b *bus) {
	greet := make([]byte, wire.GreetingSize)
	if _, err := io.ReadFull(conn, greet); err != nil {
		b.post(SigPipeError{Pipe: eid, Err: classifyIOErr(err)})
		return
	}
	b.post(SigGreeting{Pipe: eid, Bytes: greet})

	lenBuf := make([]byte, wire.LengthPrefixSize)
	for {
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			b.post(SigPipeError{Pipe: eid, Err: classifyIOErr(err)})
			return
		}
		n := wire.Length(lenBuf)
		if n > maxFrameSize {
			b.post(SigPipeError{Pipe: eid, Err: errs.New(errs.InvalidData, "frame exceeds maximum size")})
			return
		}
		payload := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(conn, payload); err != nil {
				b.post(SigPipeError{Pipe: eid, Err: classifyIOErr(err)})
				return
			}
		}
		b.post(SigFrameRead{Pipe: eid, Payload: payload})
	}
}

func writeLoop(eid ids.EndpointID, conn transport.Connection, greeting [wire.GreetingSize]byte, writeCh <-chan pipe.WriteFrame, b *bus) {
	if _, err := conn.Write(greeting[:]); err != nil {
		b.post(SigPipeError{Pipe: eid, Err: classifyIOErr(err)})
		return
	}
	for frame := range writeCh {
		if _, err := conn.Write(frame.Bytes); err != nil {
			b.post(SigPipeError{Pipe: eid, Err: classifyIOErr(err)})
			return
		}
		b.post(SigFrameWritten{Pipe: eid})
	}
}

// acceptLoop drains a listener, posting one SigAccepted per connection
// until a non-recoverable error ends the loop.
func acceptLoop(eid ids.EndpointID, ln transport.Listener, b *bus) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			b.post(SigAcceptorError{Listener: eid, Err: classifyIOErr(err)})
			return
		}
		b.post(SigAccepted{Listener: eid, Conn: conn})
	}
}

// classifyIOErr maps a raw net/io error onto the closed error-kind set:
// EOF becomes ConnectionReset, anything else from the net package
// becomes ConnectionAborted.
func classifyIOErr(err error) error {
	if err == io.EOF {
		return errs.Wrap(errs.ConnectionReset, err, "peer closed connection")
	}
	return errs.Wrap(errs.ConnectionAborted, err, "transport fault")
}
