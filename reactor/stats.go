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

import "sync/atomic"

// Stats are the reactor-wide counters the std package snapshots
// periodically.
type Stats struct {
	SocketsCreated atomic.Int64
	SocketsClosed  atomic.Int64
	PipesActive    atomic.Int64
	BytesSent      atomic.Int64
	BytesRecv      atomic.Int64
	SendsCompleted atomic.Int64
	SendsReady     atomic.Int64
	RecvsReady     atomic.Int64
	Reconnects     atomic.Int64
	Rebinds        atomic.Int64
}

// Snapshot is a point-in-time, non-atomic copy of Stats suitable for
// formatting (e.g. into a CSV row).
type Snapshot struct {
	SocketsCreated int64
	SocketsClosed  int64
	PipesActive    int64
	BytesSent      int64
	BytesRecv      int64
	SendsCompleted int64
	SendsReady     int64
	RecvsReady     int64
	Reconnects     int64
	Rebinds        int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		SocketsCreated: s.SocketsCreated.Load(),
		SocketsClosed:  s.SocketsClosed.Load(),
		PipesActive:    s.PipesActive.Load(),
		BytesSent:      s.BytesSent.Load(),
		BytesRecv:      s.BytesRecv.Load(),
		SendsCompleted: s.SendsCompleted.Load(),
		SendsReady:     s.SendsReady.Load(),
		RecvsReady:     s.RecvsReady.Load(),
		Reconnects:     s.Reconnects.Load(),
		Rebinds:        s.Rebinds.Load(),
	}
}
