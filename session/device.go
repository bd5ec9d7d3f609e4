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

package session

import (
	"sync"

	"github.com/xtaci/spnet/socket"
)

// Device forwards whatever one socket emits to the other, both
// directions, until either side errors or is closed. A Device needs no
// reactor-level plumbing: it is simply two more user goroutines holding
// facade handles and calling the same Socket.Recv/Socket.Send methods
// any other caller would.
type Device struct {
	a, b *socket.Socket

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// NewDevice starts forwarding between a and b immediately.
func NewDevice(a, b *socket.Socket) *Device {
	dev := &Device{
		a:       a,
		b:       b,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go dev.forward(&wg, a, b)
	go dev.forward(&wg, b, a)
	go func() {
		wg.Wait()
		close(dev.done)
	}()
	return dev
}

func (dev *Device) forward(wg *sync.WaitGroup, from, to *socket.Socket) {
	defer wg.Done()
	for {
		select {
		case <-dev.stopped:
			return
		default:
		}
		msg, err := from.Recv()
		if err != nil {
			dev.Stop()
			return
		}
		if err := to.Send(msg); err != nil {
			dev.Stop()
			return
		}
	}
}

// Stop requests both forwarding loops end. Safe to call more than once
// and from either forwarding goroutine. A loop currently blocked inside
// Recv only notices once that call returns; closing socket a or b
// directly is the reliable way to unblock a Device immediately, since
// Protocol.Close flushes any pending Recv with a NotConnected reply.
func (dev *Device) Stop() {
	dev.stopOnce.Do(func() { close(dev.stopped) })
}

// Done reports when both forwarding loops have exited, whether because
// Stop was called or because one side errored on its own.
func (dev *Device) Done() <-chan struct{} { return dev.done }
