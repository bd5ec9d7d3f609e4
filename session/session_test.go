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

	"github.com/xtaci/spnet/internal/errs"
	"github.com/xtaci/spnet/reactor"
	"github.com/xtaci/spnet/session"
)

// settle gives the dispatcher goroutine and the dial/accept goroutines it
// spawns enough wall-clock time to finish a loopback TCP handshake.
// Connect returns before the handshake completes and the reactor has no
// synchronous "wait for pipe up" call, so every test that needs an
// established pipe waits this long after Connect.
const settle = 150 * time.Millisecond

func pairOf(t *testing.T, typ session.SocketType, peer session.SocketType, addr string) (*session.Session, *session.Session, func(), func()) {
	t.Helper()
	srv := session.New()
	cli := session.New()

	srvSock, err := srv.CreateSocket(typ)
	if err != nil {
		t.Fatalf("server CreateSocket: %v", err)
	}
	if err := srvSock.Bind(addr); err != nil {
		t.Fatalf("Bind(%s): %v", addr, err)
	}

	cliSock, err := cli.CreateSocket(peer)
	if err != nil {
		t.Fatalf("client CreateSocket: %v", err)
	}
	if err := cliSock.Connect(addr); err != nil {
		t.Fatalf("Connect(%s): %v", addr, err)
	}
	time.Sleep(settle)

	return srv, cli, func() { srv.Close() }, func() { cli.Close() }
}

func TestPairRoundTrip(t *testing.T) {
	const addr = "tcp://127.0.0.1:18081"
	srv := session.New()
	defer srv.Close()
	cli := session.New()
	defer cli.Close()

	srvSock, err := srv.CreateSocket(session.Pair)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := srvSock.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	cliSock, err := cli.CreateSocket(session.Pair)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := cliSock.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	time.Sleep(settle)

	if err := cliSock.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := srvSock.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(got) != "ping" {
		t.Fatalf("Recv body = %q", got)
	}

	if err := srvSock.Send([]byte("pong")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err = cliSock.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(got) != "pong" {
		t.Fatalf("Recv body = %q", got)
	}
}

func TestReqRepRoundTrip(t *testing.T) {
	const addr = "tcp://127.0.0.1:18082"
	srv := session.New()
	defer srv.Close()
	cli := session.New()
	defer cli.Close()

	rep, err := srv.CreateSocket(session.Rep)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := rep.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	req, err := cli.CreateSocket(session.Req)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := req.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	time.Sleep(settle)

	if err := req.Send([]byte("question")); err != nil {
		t.Fatalf("req.Send: %v", err)
	}
	body, err := rep.Recv()
	if err != nil {
		t.Fatalf("rep.Recv: %v", err)
	}
	if string(body) != "question" {
		t.Fatalf("rep.Recv body = %q", body)
	}
	if err := rep.Send([]byte("answer")); err != nil {
		t.Fatalf("rep.Send: %v", err)
	}
	body, err = req.Recv()
	if err != nil {
		t.Fatalf("req.Recv: %v", err)
	}
	if string(body) != "answer" {
		t.Fatalf("req.Recv body = %q", body)
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	const addr = "tcp://127.0.0.1:18083"
	srv := session.New()
	defer srv.Close()
	cli := session.New()
	defer cli.Close()

	pull, err := srv.CreateSocket(session.Pull)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := pull.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	push, err := cli.CreateSocket(session.Push)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := push.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	time.Sleep(settle)

	if err := push.Send([]byte("work")); err != nil {
		t.Fatalf("push.Send: %v", err)
	}
	body, err := pull.Recv()
	if err != nil {
		t.Fatalf("pull.Recv: %v", err)
	}
	if string(body) != "work" {
		t.Fatalf("pull.Recv body = %q", body)
	}
}

// TestPullTwoPushersNoMessageLoss recvs once while both inbound pipes
// are empty, then lets each pusher send in turn. The first message
// satisfies the waiting recv; the second arrives on the pipe that lost
// that race and must still be readable afterwards instead of vanishing
// into a receiver that had already been satisfied.
func TestPullTwoPushersNoMessageLoss(t *testing.T) {
	const addr = "tcp://127.0.0.1:18090"
	srv := session.New()
	defer srv.Close()
	a := session.New()
	defer a.Close()
	b := session.New()
	defer b.Close()

	pull, err := srv.CreateSocket(session.Pull)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := pull.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := pull.SetOption(reactor.Option{Kind: reactor.OptRecvTimeout, Duration: 2 * time.Second}); err != nil {
		t.Fatalf("set recv timeout: %v", err)
	}

	push1, err := a.CreateSocket(session.Push)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := push1.Connect(addr); err != nil {
		t.Fatalf("Connect push1: %v", err)
	}
	push2, err := b.CreateSocket(session.Push)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := push2.Connect(addr); err != nil {
		t.Fatalf("Connect push2: %v", err)
	}
	time.Sleep(settle)

	// recv first, so the fair-queue scan leaves both empty pipes probed.
	got := make(chan []byte, 1)
	go func() {
		body, err := pull.Recv()
		if err != nil {
			t.Errorf("first Recv: %v", err)
		}
		got <- body
	}()
	time.Sleep(settle)

	if err := push1.Send([]byte("first")); err != nil {
		t.Fatalf("push1.Send: %v", err)
	}
	first := <-got
	time.Sleep(settle)

	if err := push2.Send([]byte("second")); err != nil {
		t.Fatalf("push2.Send: %v", err)
	}
	time.Sleep(settle)

	second, err := pull.Recv()
	if err != nil {
		t.Fatalf("second Recv: %v", err)
	}
	seen := map[string]bool{string(first): true, string(second): true}
	if !seen["first"] || !seen["second"] {
		t.Fatalf("expected both messages delivered, got %q then %q", first, second)
	}
}

func TestPubSubSubscriptionFiltering(t *testing.T) {
	const addr = "tcp://127.0.0.1:18084"
	srv := session.New()
	defer srv.Close()
	cli := session.New()
	defer cli.Close()

	pub, err := srv.CreateSocket(session.Pub)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := pub.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	sub, err := cli.CreateSocket(session.Sub)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := sub.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := sub.SetOption(reactor.Option{Kind: reactor.OptSubscribe, Bytes: []byte("weather.")}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	time.Sleep(settle)

	if err := pub.Send([]byte("weather.rain")); err != nil {
		t.Fatalf("pub.Send: %v", err)
	}
	if err := pub.Send([]byte("sports.score")); err != nil {
		t.Fatalf("pub.Send: %v", err)
	}
	if err := pub.Send([]byte("weather.sun")); err != nil {
		t.Fatalf("pub.Send: %v", err)
	}

	if err := sub.SetOption(reactor.Option{Kind: reactor.OptRecvTimeout, Duration: time.Second}); err != nil {
		t.Fatalf("set recv timeout: %v", err)
	}
	first, err := sub.Recv()
	if err != nil {
		t.Fatalf("sub.Recv: %v", err)
	}
	second, err := sub.Recv()
	if err != nil {
		t.Fatalf("sub.Recv: %v", err)
	}
	if string(first) != "weather.rain" || string(second) != "weather.sun" {
		t.Fatalf("expected only the two weather.* messages, got %q, %q", first, second)
	}
}

func TestSurveyorRespondentRoundTrip(t *testing.T) {
	const addr = "tcp://127.0.0.1:18085"
	srv := session.New()
	defer srv.Close()
	cli := session.New()
	defer cli.Close()

	sur, err := srv.CreateSocket(session.Surveyor)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := sur.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	rsp, err := cli.CreateSocket(session.Respondent)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := rsp.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	time.Sleep(settle)

	if err := sur.Send([]byte("ready?")); err != nil {
		t.Fatalf("sur.Send: %v", err)
	}
	q, err := rsp.Recv()
	if err != nil {
		t.Fatalf("rsp.Recv: %v", err)
	}
	if string(q) != "ready?" {
		t.Fatalf("rsp.Recv body = %q", q)
	}
	if err := rsp.Send([]byte("yes")); err != nil {
		t.Fatalf("rsp.Send: %v", err)
	}
	a, err := sur.Recv()
	if err != nil {
		t.Fatalf("sur.Recv: %v", err)
	}
	if string(a) != "yes" {
		t.Fatalf("sur.Recv body = %q", a)
	}
}

func TestBusFanOutToTwoPeers(t *testing.T) {
	const addr = "tcp://127.0.0.1:18086"
	srv := session.New()
	defer srv.Close()
	a := session.New()
	defer a.Close()
	b := session.New()
	defer b.Close()

	hub, err := srv.CreateSocket(session.Bus)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := hub.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	peerA, err := a.CreateSocket(session.Bus)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := peerA.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	peerB, err := b.CreateSocket(session.Bus)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := peerB.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	time.Sleep(settle)

	if err := hub.Send([]byte("broadcast")); err != nil {
		t.Fatalf("hub.Send: %v", err)
	}
	gotA, err := peerA.Recv()
	if err != nil {
		t.Fatalf("peerA.Recv: %v", err)
	}
	gotB, err := peerB.Recv()
	if err != nil {
		t.Fatalf("peerB.Recv: %v", err)
	}
	if string(gotA) != "broadcast" || string(gotB) != "broadcast" {
		t.Fatalf("expected both peers to receive the broadcast, got %q %q", gotA, gotB)
	}
}

func TestPushSendBeforeHandshakeIsNotConnected(t *testing.T) {
	sess := session.New()
	defer sess.Close()

	sock, err := sess.CreateSocket(session.Push)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	// nothing listens on this port; Connect still succeeds because the
	// dial is asynchronous, and the immediate Send finds no active pipe.
	if err := sock.Connect("tcp://127.0.0.1:18099"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	err = sock.Send([]byte{65, 66, 67})
	if errs.KindOf(err) != errs.NotConnected {
		t.Fatalf("expected NotConnected before the handshake completes, got %v", err)
	}
}

func TestSendWithNoPipeTimesOut(t *testing.T) {
	sess := session.New()
	defer sess.Close()

	sock, err := sess.CreateSocket(session.Pair)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := sock.SetOption(reactor.Option{Kind: reactor.OptSendTimeout, Duration: 50 * time.Millisecond}); err != nil {
		t.Fatalf("set send timeout: %v", err)
	}
	err = sock.Send([]byte("nobody listening"))
	if errs.KindOf(err) != errs.TimedOut {
		t.Fatalf("expected a send with no attached pipe to time out, got %v", err)
	}
}

func TestRecvTimeout(t *testing.T) {
	sess := session.New()
	defer sess.Close()

	sock, err := sess.CreateSocket(session.Pull)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := sock.SetOption(reactor.Option{Kind: reactor.OptRecvTimeout, Duration: 50 * time.Millisecond}); err != nil {
		t.Fatalf("set recv timeout: %v", err)
	}
	start := time.Now()
	_, err = sock.Recv()
	if errs.KindOf(err) != errs.TimedOut {
		t.Fatalf("expected TimedOut, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("Recv returned too early: %v", elapsed)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	sess := session.New()
	sock, err := sess.CreateSocket(session.Pair)
	if err != nil {
		t.Fatalf("CreateSocket: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	sess.Close()
}

func TestStatsReflectActivity(t *testing.T) {
	const addr = "tcp://127.0.0.1:18087"
	srv, cli, stopSrv, stopCli := pairOf(t, session.Pair, session.Pair, addr)
	defer stopSrv()
	defer stopCli()

	snap := srv.Stats()
	if snap.SocketsCreated < 1 {
		t.Fatalf("expected at least one socket created, got %+v", snap)
	}
	if snap.PipesActive < 1 {
		t.Fatalf("expected an active pipe after connect settles, got %+v", snap)
	}
	if cli.Stats().SocketsCreated < 1 {
		t.Fatalf("expected the client session to report its own socket too")
	}
}
