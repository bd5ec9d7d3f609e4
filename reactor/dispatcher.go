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
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xtaci/spnet/internal/errs"
	"github.com/xtaci/spnet/internal/ids"
	"github.com/xtaci/spnet/pipe"
	"github.com/xtaci/spnet/proto"
	"github.com/xtaci/spnet/transport"
)

// socketState is everything the dispatcher keeps about one live socket
// handle: its Protocol state machine and the per-socket defaults new pipes
// inherit when they join.
type socketState struct {
	id           ids.SocketID
	proto        proto.Protocol
	reconnectMin time.Duration
	reconnectMax time.Duration
	sendPriority uint8
	recvPriority uint8
}

// pendingDial/pendingBind remember a Connect/Bind call's URL and backoff
// state for as long as the socket that issued it is alive, so a
// SchedReconnect/SchedRebind tick fired long after the request returned
// can still retry it. They are looked up by EndpointID, which is reused
// across the pending-attempt and eventually-live pipe/acceptor.
type pendingDial struct {
	socket  ids.SocketID
	url     string
	backoff *backoff.ExponentialBackOff
}

type pendingBind struct {
	socket  ids.SocketID
	url     string
	backoff *backoff.ExponentialBackOff
}

// Dispatcher is the single-threaded reactor: one goroutine (run) owns
// every Socket, Pipe, Listener and timer in the process. Everything else
// talks to it only through reqCh (Request) or the bus (Signal).
type Dispatcher struct {
	reqCh     chan Request
	bus       *bus
	timer     *wheel
	endpoints *endpoints

	sockets map[ids.SocketID]*socketState
	dials   map[ids.EndpointID]*pendingDial
	binds   map[ids.EndpointID]*pendingBind

	stats   *Stats
	logger  *log.Logger
	stopped bool
	doneCh  chan struct{}
}

// New builds a Dispatcher; call Start to run it. logger may be nil, in
// which case log.Default() is used.
func New(logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		reqCh:     make(chan Request, 256),
		bus:       newBus(1024),
		timer:     newWheel(),
		endpoints: newEndpoints(),
		sockets:   make(map[ids.SocketID]*socketState),
		dials:     make(map[ids.EndpointID]*pendingDial),
		binds:     make(map[ids.EndpointID]*pendingBind),
		stats:     &Stats{},
		logger:    logger,
		doneCh:    make(chan struct{}),
	}
}

// Requests is the channel facades send Request values on.
func (d *Dispatcher) Requests() chan<- Request { return d.reqCh }

// Stats exposes the live counters for std.SnmpLogger to snapshot.
func (d *Dispatcher) Stats() *Stats { return d.stats }

// Start launches the dispatcher's main loop in its own goroutine.
func (d *Dispatcher) Start() { go d.run() }

// Done is closed once the main loop has returned after a ShutdownReq.
func (d *Dispatcher) Done() <-chan struct{} { return d.doneCh }

func (d *Dispatcher) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	defer close(d.doneCh)

	for !d.stopped {
		select {
		case req := <-d.reqCh:
			d.handleRequest(req)
		case sig := <-d.bus.ch:
			d.handleSignal(sig)
		case <-ticker.C:
			d.timer.advance(d.fireTask)
		}
		d.drainRequests()
		d.drainSignals()
	}
}

// drainRequests/drainSignals empty whatever is already queued before the
// loop blocks again, so a burst of work on one source does not starve
// behind a single select draw. Order between the two is not meaningful:
// both run every iteration regardless of which source woke the select.
func (d *Dispatcher) drainRequests() {
	for {
		select {
		case req := <-d.reqCh:
			d.handleRequest(req)
		default:
			return
		}
	}
}

func (d *Dispatcher) drainSignals() {
	for {
		select {
		case sig := <-d.bus.ch:
			d.handleSignal(sig)
		default:
			return
		}
	}
}

func (d *Dispatcher) ctxFor(sid ids.SocketID) proto.Context {
	return reactorContext{d: d, sid: sid}
}

// handleRequest dispatches one user-originated Request to its handler.
func (d *Dispatcher) handleRequest(req Request) {
	switch r := req.(type) {
	case CreateSocketReq:
		d.onCreateSocket(r)
	case BindReq:
		d.onBind(r)
	case ConnectReq:
		d.onConnect(r)
	case SendReq:
		d.onSend(r)
	case RecvReq:
		d.onRecv(r)
	case SetOptionReq:
		d.onSetOption(r)
	case CloseSocketReq:
		d.onCloseSocket(r)
	case ShutdownReq:
		d.onShutdown(r)
	default:
		d.logger.Printf("reactor: unknown request type %T", req)
	}
}

func (d *Dispatcher) onCreateSocket(r CreateSocketReq) {
	sid := ids.NextSocketID()
	d.sockets[sid] = &socketState{
		id:           sid,
		proto:        r.NewProto(),
		reconnectMin: 100 * time.Millisecond,
		reconnectMax: time.Second,
		sendPriority: 8,
		recvPriority: 8,
	}
	d.stats.SocketsCreated.Add(1)
	r.Reply <- CreateSocketResult{ID: sid}
}

func (d *Dispatcher) onBind(r BindReq) {
	sock, ok := d.sockets[r.Socket]
	if !ok {
		r.Reply <- errs.New(errs.InvalidInput, "bind: unknown socket")
		return
	}
	pu, err := transport.Parse(r.URL)
	if err != nil {
		r.Reply <- err
		return
	}
	ln, err := transport.Listen(pu)
	if err != nil {
		// Initial bind failure is reported straight to the caller; only
		// failures that happen after a successful bind are auto-retried.
		r.Reply <- errs.Wrap(errs.Other, err, "bind "+r.URL)
		return
	}
	eid := ids.NextEndpointID()
	bo := newBackoff(sock.reconnectMin, sock.reconnectMax)
	d.endpoints.addAcceptor(&acceptorEndpoint{id: eid, socket: r.Socket, ln: ln, url: r.URL, backoff: bo})
	d.binds[eid] = &pendingBind{socket: r.Socket, url: r.URL, backoff: bo}
	go acceptLoop(eid, ln, d.bus)
	r.Reply <- nil
}

func (d *Dispatcher) onConnect(r ConnectReq) {
	sock, ok := d.sockets[r.Socket]
	if !ok {
		r.Reply <- errs.New(errs.InvalidInput, "connect: unknown socket")
		return
	}
	pu, err := transport.Parse(r.URL)
	if err != nil {
		r.Reply <- err
		return
	}
	eid := ids.NextEndpointID()
	d.dials[eid] = &pendingDial{socket: r.Socket, url: r.URL, backoff: newBackoff(sock.reconnectMin, sock.reconnectMax)}
	d.startDial(eid, pu)
	// Connect reports success as soon as the attempt is scheduled; the
	// handshake itself finishes later, asynchronously, off
	// SigGreeting/SigDialed. Until then the socket has no active pipe:
	// a Push send fails NotConnected, while Pair and Req hold the send
	// until a pipe arrives or the send deadline fires.
	r.Reply <- nil
}

func (d *Dispatcher) startDial(eid ids.EndpointID, pu transport.ParsedURL) {
	b := d.bus
	go func() {
		conn, err := transport.Dial(context.Background(), pu)
		if err != nil {
			b.post(SigDialError{Attempt: eid, Err: err})
			return
		}
		b.post(SigDialed{Attempt: eid, Conn: conn})
	}()
}

func (d *Dispatcher) onSend(r SendReq) {
	sock, ok := d.sockets[r.Socket]
	if !ok {
		r.Reply <- proto.Reply{Err: errs.New(errs.NotConnected, "send: socket closed")}
		return
	}
	sock.proto.Send(d.ctxFor(r.Socket), r.Msg, r.Deadline, r.Reply)
}

func (d *Dispatcher) onRecv(r RecvReq) {
	sock, ok := d.sockets[r.Socket]
	if !ok {
		r.Reply <- proto.Reply{Err: errs.New(errs.NotConnected, "recv: socket closed")}
		return
	}
	sock.proto.Recv(d.ctxFor(r.Socket), r.Deadline, r.Reply)
}

func (d *Dispatcher) onSetOption(r SetOptionReq) {
	sock, ok := d.sockets[r.Socket]
	if !ok {
		r.Reply <- errs.New(errs.InvalidInput, "set_option: unknown socket")
		return
	}
	switch r.Option.Kind {
	case OptReconnectInterval:
		sock.reconnectMin = r.Option.Duration
	case OptReconnectIntervalMax:
		sock.reconnectMax = r.Option.Duration
	case OptSendPriority:
		sock.sendPriority = r.Option.Priority
		for _, eid := range d.endpoints.pipesOf(r.Socket) {
			if pe, ok := d.endpoints.pipe(eid); ok {
				pe.p.SetSendPriority(r.Option.Priority)
			}
		}
	case OptRecvPriority:
		sock.recvPriority = r.Option.Priority
		for _, eid := range d.endpoints.pipesOf(r.Socket) {
			if pe, ok := d.endpoints.pipe(eid); ok {
				pe.p.SetRecvPriority(r.Option.Priority)
			}
		}
	case OptSubscribe:
		s, ok := sock.proto.(interface{ Subscribe([]byte) })
		if !ok {
			r.Reply <- errs.New(errs.InvalidInput, "subscribe: not a sub socket")
			return
		}
		s.Subscribe(r.Option.Bytes)
	case OptUnsubscribe:
		s, ok := sock.proto.(interface{ Unsubscribe([]byte) })
		if !ok {
			r.Reply <- errs.New(errs.InvalidInput, "unsubscribe: not a sub socket")
			return
		}
		s.Unsubscribe(r.Option.Bytes)
	case OptSurveyDeadline:
		s, ok := sock.proto.(interface{ SetDeadline(time.Duration) })
		if !ok {
			r.Reply <- errs.New(errs.InvalidInput, "survey_deadline: not a surveyor socket")
			return
		}
		s.SetDeadline(r.Option.Duration)
	case OptResendInterval:
		s, ok := sock.proto.(interface{ SetResendInterval(time.Duration) })
		if !ok {
			r.Reply <- errs.New(errs.InvalidInput, "resend_interval: not a req socket")
			return
		}
		s.SetResendInterval(r.Option.Duration)
	case OptSendTimeout, OptRecvTimeout:
		// Applied entirely within the socket facade, which computes the
		// deadline it puts on SendReq/RecvReq itself; these kinds never
		// reach the dispatcher in practice, but are accepted as a no-op
		// for forward compatibility with a caller that forwards them.
	}
	r.Reply <- nil
}

func (d *Dispatcher) onCloseSocket(r CloseSocketReq) {
	sock, ok := d.sockets[r.Socket]
	if !ok {
		// Already closed: close is idempotent.
		r.Reply <- nil
		return
	}
	ctx := d.ctxFor(r.Socket)
	sock.proto.Close(ctx)
	for _, eid := range d.endpoints.pipesOf(r.Socket) {
		d.endpoints.removePipe(eid)
	}
	for _, eid := range d.endpoints.acceptorsOf(r.Socket) {
		d.endpoints.removeAcceptor(eid)
		delete(d.binds, eid)
	}
	for eid, pd := range d.dials {
		if pd.socket == r.Socket {
			delete(d.dials, eid)
		}
	}
	delete(d.sockets, r.Socket)
	d.stats.SocketsClosed.Add(1)
	r.Reply <- nil
}

func (d *Dispatcher) onShutdown(r ShutdownReq) {
	for sid, sock := range d.sockets {
		sock.proto.Close(d.ctxFor(sid))
	}
	for eid := range d.endpoints.pipes {
		d.endpoints.removePipe(eid)
	}
	for eid := range d.endpoints.acceptors {
		d.endpoints.removeAcceptor(eid)
	}
	d.sockets = make(map[ids.SocketID]*socketState)
	d.dials = make(map[ids.EndpointID]*pendingDial)
	d.binds = make(map[ids.EndpointID]*pendingBind)
	d.stopped = true
	close(r.Reply)
}

// handleSignal dispatches one worker-originated Signal to its handler.
func (d *Dispatcher) handleSignal(sig Signal) {
	switch s := sig.(type) {
	case SigGreeting:
		d.onGreeting(s)
	case SigFrameRead:
		d.onFrameRead(s)
	case SigFrameWritten:
		d.onFrameWritten(s)
	case SigPipeError:
		d.onPipeError(s)
	case SigAccepted:
		d.onAccepted(s)
	case SigAcceptorError:
		d.onAcceptorError(s)
	case SigDialed:
		d.onDialed(s)
	case SigDialError:
		d.onDialError(s)
	default:
		d.logger.Printf("reactor: unknown signal type %T", sig)
	}
}

func (d *Dispatcher) onGreeting(s SigGreeting) {
	pe, ok := d.endpoints.pipe(s.Pipe)
	if !ok {
		return
	}
	sock, ok := d.sockets[pe.socket]
	if !ok {
		d.endpoints.removePipe(s.Pipe)
		return
	}
	if err := pe.p.CompleteHandshake(s.Bytes); err != nil {
		d.logger.Printf("reactor: pipe %d failed handshake: %v", s.Pipe, err)
		d.endpoints.removePipe(s.Pipe)
		d.scheduleRetry(pe)
		return
	}
	pe.p.SetSendPriority(sock.sendPriority)
	pe.p.SetRecvPriority(sock.recvPriority)
	if pe.backoff != nil {
		pe.backoff.Reset()
	}
	if err := sock.proto.AddPipe(d.ctxFor(pe.socket), s.Pipe); err != nil {
		d.endpoints.removePipe(s.Pipe)
		return
	}
	d.stats.PipesActive.Add(1)
}

func (d *Dispatcher) onFrameRead(s SigFrameRead) {
	pe, ok := d.endpoints.pipe(s.Pipe)
	if !ok {
		return
	}
	sock, ok := d.sockets[pe.socket]
	if !ok {
		return
	}
	ctx := d.ctxFor(pe.socket)
	msg, delivered := pe.p.OnFrameRead(s.Payload)
	if delivered {
		sock.proto.OnRecvAck(ctx, s.Pipe, msg)
	} else {
		sock.proto.OnRecvReady(ctx, s.Pipe)
	}
	d.stats.BytesRecv.Add(int64(len(s.Payload)))
}

func (d *Dispatcher) onFrameWritten(s SigFrameWritten) {
	pe, ok := d.endpoints.pipe(s.Pipe)
	if !ok {
		return
	}
	sock, ok := d.sockets[pe.socket]
	if !ok {
		return
	}
	msg, ok := pe.p.OnFrameWritten()
	if !ok {
		return
	}
	ctx := d.ctxFor(pe.socket)
	sock.proto.OnSendAck(ctx, s.Pipe)
	// The pipe is writable again: let the protocol retry any send a load
	// balancer policy is still holding for a different pipe.
	sock.proto.OnSendReady(ctx, s.Pipe)
	d.stats.SendsCompleted.Add(1)
	d.stats.BytesSent.Add(int64(msg.Size()))
}

func (d *Dispatcher) onPipeError(s SigPipeError) {
	pe, ok := d.endpoints.removePipe(s.Pipe)
	if !ok {
		return
	}
	if sock, ok := d.sockets[pe.socket]; ok {
		sock.proto.RemovePipe(d.ctxFor(pe.socket), s.Pipe)
	}
	d.stats.PipesActive.Add(-1)
	d.scheduleRetry(pe)
}

// scheduleRetry reschedules a Reconnect for a dialed pipe that died,
// using the persistent pendingDial record kept under the same EndpointID
// since the Connect call. Accepted pipes never reconnect; the peer is
// expected to redial.
func (d *Dispatcher) scheduleRetry(pe *pipeEndpoint) {
	if !pe.fromConnect {
		return
	}
	pd, ok := d.dials[pe.id]
	if !ok {
		return
	}
	delay := pd.backoff.NextBackOff()
	d.timer.scheduleEndpoint(pe.socket, proto.SchedReconnect, delay, pe.id)
	d.stats.Reconnects.Add(1)
}

func (d *Dispatcher) onAccepted(s SigAccepted) {
	ae, ok := d.endpoints.acceptor(s.Listener)
	if !ok {
		s.Conn.Close()
		return
	}
	sock, ok := d.sockets[ae.socket]
	if !ok {
		s.Conn.Close()
		return
	}
	eid := ids.NextEndpointID()
	p := pipe.New(sock.proto.ID(), sock.proto.PeerID())
	pe := &pipeEndpoint{id: eid, socket: ae.socket, p: p, conn: s.Conn, fromConnect: false}
	d.endpoints.addPipe(pe)
	startPipeIO(eid, s.Conn, p.Greeting(), p.WriteCh, d.bus)
}

func (d *Dispatcher) onAcceptorError(s SigAcceptorError) {
	ae, ok := d.endpoints.removeAcceptor(s.Listener)
	if !ok {
		return
	}
	pb, ok := d.binds[s.Listener]
	if !ok {
		return
	}
	d.logger.Printf("reactor: listener %d failed: %v", s.Listener, s.Err)
	delay := pb.backoff.NextBackOff()
	d.timer.scheduleEndpoint(ae.socket, proto.SchedRebind, delay, s.Listener)
	d.stats.Rebinds.Add(1)
}

func (d *Dispatcher) onDialed(s SigDialed) {
	pd, ok := d.dials[s.Attempt]
	if !ok {
		s.Conn.Close()
		return
	}
	sock, ok := d.sockets[pd.socket]
	if !ok {
		s.Conn.Close()
		return
	}
	p := pipe.New(sock.proto.ID(), sock.proto.PeerID())
	pe := &pipeEndpoint{id: s.Attempt, socket: pd.socket, p: p, conn: s.Conn, fromConnect: true, url: pd.url, backoff: pd.backoff}
	d.endpoints.addPipe(pe)
	startPipeIO(s.Attempt, s.Conn, p.Greeting(), p.WriteCh, d.bus)
}

func (d *Dispatcher) onDialError(s SigDialError) {
	pd, ok := d.dials[s.Attempt]
	if !ok {
		return
	}
	d.logger.Printf("reactor: dial %s failed: %v", pd.url, s.Err)
	delay := pd.backoff.NextBackOff()
	d.timer.scheduleEndpoint(pd.socket, proto.SchedReconnect, delay, s.Attempt)
	d.stats.Reconnects.Add(1)
}

// fireTask handles one timer wheel task firing. SchedReconnect/SchedRebind
// are reactor-internal retries; everything else is forwarded to the
// owning socket's protocol as an ordinary timeout tick.
func (d *Dispatcher) fireTask(t task) {
	switch t.kind {
	case proto.SchedReconnect:
		d.retryDial(t.endpoint)
	case proto.SchedRebind:
		d.retryBind(t.socket, t.endpoint)
	default:
		sock, ok := d.sockets[t.socket]
		if !ok {
			return
		}
		sock.proto.OnTimerTick(d.ctxFor(t.socket), proto.Scheduled{ID: t.id, Kind: t.kind})
	}
}

func (d *Dispatcher) retryDial(eid ids.EndpointID) {
	pd, ok := d.dials[eid]
	if !ok {
		return
	}
	pu, err := transport.Parse(pd.url)
	if err != nil {
		// Unreachable in practice: the URL was already validated when
		// Connect accepted it.
		return
	}
	d.startDial(eid, pu)
}

func (d *Dispatcher) retryBind(sid ids.SocketID, eid ids.EndpointID) {
	pb, ok := d.binds[eid]
	if !ok {
		return
	}
	pu, err := transport.Parse(pb.url)
	if err != nil {
		return
	}
	ln, err := transport.Listen(pu)
	if err != nil {
		delay := pb.backoff.NextBackOff()
		d.timer.scheduleEndpoint(sid, proto.SchedRebind, delay, eid)
		return
	}
	pb.backoff.Reset()
	d.endpoints.addAcceptor(&acceptorEndpoint{id: eid, socket: sid, ln: ln, url: pb.url, backoff: pb.backoff})
	go acceptLoop(eid, ln, d.bus)
}

// onSocketEvent is reactorContext.RaiseEvent's sink. Readiness events
// drive only snmp-visible throughput counters today; a session.Device
// needs no extra wiring here since it is just two more user threads
// calling Send/Recv.
func (d *Dispatcher) onSocketEvent(sid ids.SocketID, ev proto.Event) {
	switch ev {
	case proto.EventCanSend:
		d.stats.SendsReady.Add(1)
	case proto.EventCanRecv:
		d.stats.RecvsReady.Add(1)
	case proto.EventClosed:
		// CloseSocketReq/ShutdownReq already account for the socket; a
		// protocol-raised EventClosed is informational only.
	}
}
