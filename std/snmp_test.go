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

package std

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtaci/spnet/reactor"
)

type fakeStatsSource struct{ snap reactor.Snapshot }

func (f fakeStatsSource) Stats() reactor.Snapshot { return f.snap }

func TestSnmpLoggerDisabledWithoutPathOrInterval(t *testing.T) {
	done := make(chan struct{})
	go func() {
		SnmpLogger(fakeStatsSource{}, "", 60)
		SnmpLogger(fakeStatsSource{}, filepath.Join(t.TempDir(), "x.log"), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("SnmpLogger should return immediately when disabled")
	}
}

func TestSnmpLoggerWritesCSVRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snmp.log")
	src := fakeStatsSource{snap: reactor.Snapshot{SocketsCreated: 3, PipesActive: 1}}

	if err := appendSnapshotRow(src, path); err != nil {
		t.Fatalf("appendSnapshotRow: %v", err)
	}
	if err := appendSnapshotRow(src, path); err != nil {
		t.Fatalf("appendSnapshotRow: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		lines++
	}
	if lines < 2 {
		t.Fatalf("expected a header row plus at least one data row, got %d lines", lines)
	}
}
