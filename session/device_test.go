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

package session_test

import (
	"testing"
	"time"

	"github.com/xtaci/spnet/reactor"
	"github.com/xtaci/spnet/session"
)

func TestDeviceForwardsBothDirections(t *testing.T) {
	const (
		clientSide = "tcp://127.0.0.1:18088"
		serverSide = "tcp://127.0.0.1:18089"
	)

	clientSess := session.New()
	defer clientSess.Close()
	deviceSess := session.New()
	defer deviceSess.Close()
	serverSess := session.New()
	defer serverSess.Close()

	deviceA, err := deviceSess.CreateSocket(session.Pair)
	if err != nil {
		t.Fatalf("CreateSocket deviceA: %v", err)
	}
	if err := deviceA.Bind(clientSide); err != nil {
		t.Fatalf("Bind deviceA: %v", err)
	}
	deviceB, err := deviceSess.CreateSocket(session.Pair)
	if err != nil {
		t.Fatalf("CreateSocket deviceB: %v", err)
	}
	if err := deviceB.Bind(serverSide); err != nil {
		t.Fatalf("Bind deviceB: %v", err)
	}

	client, err := clientSess.CreateSocket(session.Pair)
	if err != nil {
		t.Fatalf("CreateSocket client: %v", err)
	}
	if err := client.Connect(clientSide); err != nil {
		t.Fatalf("Connect client: %v", err)
	}
	server, err := serverSess.CreateSocket(session.Pair)
	if err != nil {
		t.Fatalf("CreateSocket server: %v", err)
	}
	if err := server.Connect(serverSide); err != nil {
		t.Fatalf("Connect server: %v", err)
	}
	time.Sleep(settle)

	// A Device's forwarding loop only notices Stop() once its blocking Recv
	// returns, and it treats a Recv error as "give up forwarding", so a
	// short recv_timeout here lets the device reach Done() on its own
	// shortly after traffic stops.
	if err := deviceA.SetOption(reactor.Option{Kind: reactor.OptRecvTimeout, Duration: 300 * time.Millisecond}); err != nil {
		t.Fatalf("set deviceA recv timeout: %v", err)
	}
	if err := deviceB.SetOption(reactor.Option{Kind: reactor.OptRecvTimeout, Duration: 300 * time.Millisecond}); err != nil {
		t.Fatalf("set deviceB recv timeout: %v", err)
	}

	dev := session.NewDevice(deviceA, deviceB)
	defer dev.Stop()

	if err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("client.Send: %v", err)
	}
	got, err := server.Recv()
	if err != nil {
		t.Fatalf("server.Recv: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("server.Recv body = %q", got)
	}

	if err := server.Send([]byte("world")); err != nil {
		t.Fatalf("server.Send: %v", err)
	}
	got, err = client.Recv()
	if err != nil {
		t.Fatalf("client.Recv: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("client.Recv body = %q", got)
	}

	dev.Stop()
	select {
	case <-dev.Done():
	case <-time.After(time.Second):
		t.Fatalf("device did not stop in time")
	}
}
