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

// Package std provides periodic CSV snapshotting of the reactor's
// activity counters.
package std

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xtaci/spnet/reactor"
)

// header lists reactor.Snapshot's fields in the order ToSlice writes them.
var header = []string{
	"SocketsCreated", "SocketsClosed", "PipesActive", "BytesSent",
	"BytesRecv", "SendsCompleted", "SendsReady", "RecvsReady",
	"Reconnects", "Rebinds",
}

func toSlice(s reactor.Snapshot) []string {
	return []string{
		fmt.Sprint(s.SocketsCreated),
		fmt.Sprint(s.SocketsClosed),
		fmt.Sprint(s.PipesActive),
		fmt.Sprint(s.BytesSent),
		fmt.Sprint(s.BytesRecv),
		fmt.Sprint(s.SendsCompleted),
		fmt.Sprint(s.SendsReady),
		fmt.Sprint(s.RecvsReady),
		fmt.Sprint(s.Reconnects),
		fmt.Sprint(s.Rebinds),
	}
}

// StatsSource is the minimal surface SnmpLogger needs from a
// session.Session, named independently here to avoid std importing
// session (which would create session -> std -> session).
type StatsSource interface {
	Stats() reactor.Snapshot
}

// SnmpLogger periodically appends a snapshot of src's reactor counters to
// path as CSV, one row per tick. path is passed through time.Format so
// an operator can bucket logs by day (e.g. "./snmp-20060102.log"). A
// zero interval or empty path disables the logger entirely.
func SnmpLogger(src StatsSource, path string, interval int) {
	if path == "" || interval == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := appendSnapshotRow(src, path); err != nil {
			log.Println(err)
			return
		}
	}
}

// appendSnapshotRow writes one CSV row of src's current counters to path,
// adding a header row first if the (possibly time-formatted) file is new.
func appendSnapshotRow(src StatsSource, path string) error {
	logdir, logfile := filepath.Split(path)
	f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"Unix"}, header...)); err != nil {
			return err
		}
	}
	snap := src.Stats()
	if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, toSlice(snap)...)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
