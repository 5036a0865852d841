package link

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultMessageTimeout is the reaper interval for volatile requests.
const DefaultMessageTimeout = 5 * time.Second

// TransportIDHeader carries the transport id on every connection attempt.
const TransportIDHeader = "X-Transport-Id"

// State is the connection state of a Link.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosedByPeer
)

// String returns the state name used in logs and the status API.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedByPeer:
		return "closed_by_peer"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Logger defines the logging interface used by the link.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// HeaderProvider returns extra headers for one connection attempt.
type HeaderProvider func(ctx context.Context) (http.Header, error)

// Config holds link settings.
type Config struct {
	// Host is the coordinator URL (ws:// or wss://).
	Host string

	// TransportID tags this link in events and connection headers.
	// A random UUID is used when empty.
	TransportID string

	// EnableHeartbeat turns on {"t":"hb"} frames while connected.
	EnableHeartbeat bool

	// HeartbeatInterval is the gap between heartbeat frames.
	HeartbeatInterval time.Duration

	// MessageTimeout is the reaper interval. Volatile requests time out
	// after one to two intervals.
	MessageTimeout time.Duration

	// WriteTimeout bounds each socket write.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds each connection attempt.
	HandshakeTimeout time.Duration

	// EventQueueSize bounds undelivered subscriber events.
	EventQueueSize int

	// ReadLimit caps inbound frame size in bytes. Zero means no limit.
	ReadLimit int64

	// Backoff is the reconnect schedule.
	Backoff Backoff

	// MaxID is the correlation id wrap point. Zero selects MaxSafeInteger.
	MaxID uint64

	// Dialer opens sockets. Nil uses WebSocketDialer.
	Dialer Dialer

	// Logger receives link logs. Nil discards them.
	Logger Logger
}

// DefaultConfig returns a Config for host with standard timings.
func DefaultConfig(host string) Config {
	return Config{
		Host:              host,
		EnableHeartbeat:   true,
		HeartbeatInterval: DefaultHeartbeatInterval,
		MessageTimeout:    DefaultMessageTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		EventQueueSize:    DefaultEventQueueSize,
		Backoff:           DefaultBackoff(),
	}
}

// activeConn is the socket of the current Open connection.
type activeConn struct {
	sock Socket
	gen  uint64
}

// runState belongs to one Start..Stop cycle.
type runState struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	events  *dispatcher
	loops   sync.WaitGroup
	stopped chan struct{}
}

// Link is the persistent connection to the coordinator.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Link struct {
	cfg    Config
	dialer Dialer
	logger Logger

	// mu guards everything below it. Lock order is mu then writeMu.
	mu             sync.Mutex
	state          State
	run            *runState
	runs           uint64
	gen            uint64
	headers        http.Header
	headerProvider HeaderProvider
	onConnected    func(bool)
	ids            *IDAllocator
	tracker        *tracker
	queue          *reliabilityQueue
	reaper         reaper
	heartbeat      *heartbeat

	// active is readable without mu so best-effort writes and heartbeats
	// never wait on state changes.
	active  atomic.Pointer[activeConn]
	writeMu sync.Mutex

	subs  *subscriptions
	stats counters
}

// New creates a Link. It does not connect; call Start.
//
// Returns:
//   - *Link: Ready to start
//   - error: ErrInvalidConfig if Host is missing or not a ws/wss URL
func New(cfg Config) (*Link, error) {
	u, err := url.Parse(cfg.Host)
	if err != nil || cfg.Host == "" {
		return nil, fmt.Errorf("%w: host %q is not a valid URL", ErrInvalidConfig, cfg.Host)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: host scheme must be ws or wss, got %q", ErrInvalidConfig, u.Scheme)
	}

	if cfg.TransportID == "" {
		cfg.TransportID = uuid.NewString()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = DefaultMessageTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = DefaultEventQueueSize
	}
	cfg.Backoff = cfg.Backoff.withDefaults()

	l := &Link{
		cfg:     cfg,
		dialer:  cfg.Dialer,
		logger:  cfg.Logger,
		ids:     NewIDAllocator(cfg.MaxID),
		tracker: newTracker(),
		queue:   &reliabilityQueue{},
		subs:    newSubscriptions(),
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}
	if l.dialer == nil {
		l.dialer = WebSocketDialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			WriteTimeout:     cfg.WriteTimeout,
			ReadLimit:        cfg.ReadLimit,
		}
	}
	l.heartbeat = newHeartbeat(cfg.HeartbeatInterval, l.sendHeartbeat, func(err error) {
		l.logger.Debug("heartbeat not sent", "error", err)
	})

	return l, nil
}

// Start begins connecting in the background and returns immediately.
//
// headers are sent with every connection attempt. onConnected, if non-nil,
// is called once: with true on the first successful open or false on the
// first failed attempt. Cancelling ctx stops the link as if Stop were called.
//
// Returns ErrAlreadyStarted if the link is running.
func (l *Link) Start(ctx context.Context, headers http.Header, onConnected func(ok bool)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run != nil {
		return ErrAlreadyStarted
	}

	l.runs++
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &runState{
		id:      l.runs,
		ctx:     runCtx,
		cancel:  cancel,
		events:  newDispatcher(l.subs, l.cfg.EventQueueSize, l.logger, &l.stats.eventsDropped, &l.stats.handlerPanics),
		stopped: make(chan struct{}),
	}
	l.run = r
	l.headers = headers.Clone()
	l.onConnected = onConnected
	l.reaper.reset(l.ids.Current())

	r.loops.Add(2)
	go l.connectLoop(r)
	go l.reapLoop(r)
	go l.watch(ctx, r)

	l.logger.Info("link starting",
		"host", l.cfg.Host,
		"transport_id", l.cfg.TransportID,
		"heartbeat", l.cfg.EnableHeartbeat,
	)
	return nil
}

// Stop closes the socket, halts retries and timers, resolves every pending
// request with ErrStopped, and discards queued reliable sends.
//
// Stop must not be called from an event handler or the onConnected callback.
func (l *Link) Stop() error {
	l.stopRun(0)
	return nil
}

func (l *Link) watch(ctx context.Context, r *runState) {
	select {
	case <-ctx.Done():
		l.stopRun(r.id)
	case <-r.stopped:
	}
}

// stopRun stops the current run. A non-zero id stops only that run.
func (l *Link) stopRun(id uint64) {
	l.mu.Lock()
	r := l.run
	if r == nil || (id != 0 && r.id != id) {
		l.mu.Unlock()
		return
	}
	l.run = nil
	close(r.stopped)

	active := l.active.Swap(nil)
	l.heartbeat.Stop()
	l.transition(StateDisconnected)
	failed := l.tracker.failAll(ErrStopped)
	discarded := len(l.queue.drain())
	l.onConnected = nil
	l.mu.Unlock()

	r.cancel()
	if active != nil {
		active.sock.Close() //nolint:errcheck // Best effort on shutdown
	}
	r.loops.Wait()

	r.events.emit(Event{Name: EventDisconnected, TransportID: l.cfg.TransportID})
	r.events.close()

	l.logger.Info("link stopped",
		"failed_requests", failed,
		"discarded_queued", discarded,
	)
}

// SetHeaderProvider installs a function consulted on every connection attempt.
// Its headers are merged over the ones passed to Start.
func (l *Link) SetHeaderProvider(p HeaderProvider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.headerProvider = p
}

// Subscribe registers h for event and returns a function that removes it.
// Use MessageEvent(name) to receive inbound messages.
func (l *Link) Subscribe(event string, h Handler) func() {
	if h == nil {
		return func() {}
	}
	return l.subs.add(event, h)
}

// Send writes a notification once. It fails with ErrNotConnected when the
// link is not open; nothing is queued.
func (l *Link) Send(name string, data any) error {
	raw, err := payloadFor(name, data)
	if err != nil {
		return err
	}

	l.mu.Lock()
	id, err := l.allocateID()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	frame, err := Encode(Envelope{Name: name, Data: raw, ID: id})
	if err != nil {
		return err
	}

	ac := l.active.Load()
	if ac == nil {
		return ErrNotConnected
	}
	return l.write(ac, frame)
}

// SendReliable writes a notification now if possible, otherwise queues it
// for delivery after the next successful connection. Errors are returned only
// for payloads that cannot be encoded.
func (l *Link) SendReliable(name string, data any) error {
	raw, err := payloadFor(name, data)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id, err := l.allocateID()
	if err != nil {
		return err
	}
	frame, err := Encode(Envelope{Name: name, Data: raw, ID: id})
	if err != nil {
		return err
	}

	l.deliverReliable(queuedFrame{id: id, name: name, frame: frame, intent: IntentReliable})
	return nil
}

// SendRequest sends a request whose Call resolves with the response, with
// ErrTimeout after one to two message timeouts, or with ErrConnectionLost if
// the socket drops first.
func (l *Link) SendRequest(name string, data any) *Call {
	raw, err := payloadFor(name, data)
	if err != nil {
		return failedCall(name, false, err)
	}

	call := newCall(name, false)

	l.mu.Lock()
	id, err := l.allocateID()
	if err != nil {
		l.mu.Unlock()
		call.resolve(nil, err)
		return call
	}
	call.id = id

	frame, err := Encode(Envelope{Name: name, Data: raw, ID: id, Request: true})
	if err != nil {
		l.mu.Unlock()
		call.resolve(nil, err)
		return call
	}

	ac := l.active.Load()
	if ac == nil {
		l.mu.Unlock()
		call.resolve(nil, ErrNotConnected)
		return call
	}
	l.tracker.register(&pendingRequest{id: id, name: name, frame: frame, complete: call.resolve})
	l.mu.Unlock()

	if err := l.write(ac, frame); err != nil {
		l.mu.Lock()
		l.tracker.fail(id, err)
		l.mu.Unlock()
	}
	return call
}

// SendRequestReliable sends a request that survives disconnects. It is
// queued while the link is down and re-sent after a reconnect until a
// response arrives. The Call is never timed out; it resolves only with the
// response, ErrAbandoned or ErrStopped.
func (l *Link) SendRequestReliable(name string, data any) *Call {
	raw, err := payloadFor(name, data)
	if err != nil {
		return failedCall(name, true, err)
	}

	call := newCall(name, true)

	l.mu.Lock()
	defer l.mu.Unlock()

	id, err := l.allocateID()
	if err != nil {
		call.resolve(nil, err)
		return call
	}
	call.id = id

	frame, err := Encode(Envelope{Name: name, Data: raw, ID: id, Request: true})
	if err != nil {
		call.resolve(nil, err)
		return call
	}

	p := &pendingRequest{id: id, name: name, durable: true, frame: frame, complete: call.resolve}
	l.tracker.register(p)
	if !l.deliverReliable(queuedFrame{id: id, name: name, frame: frame, intent: IntentRequestReliable}) {
		p.queued = true
	}
	return call
}

// Abandon resolves a pending request with ErrAbandoned. A queued copy is
// still delivered; its response is then dropped as unmatched.
// It reports false if no request with that id is pending.
func (l *Link) Abandon(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracker.fail(id, ErrAbandoned)
}

// State returns the current connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// TransportID returns the id this link reports to the coordinator.
func (l *Link) TransportID() string {
	return l.cfg.TransportID
}

// Host returns the coordinator URL.
func (l *Link) Host() string {
	return l.cfg.Host
}

// QueueLen returns the number of reliable sends awaiting delivery.
func (l *Link) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.len()
}

// Pending returns the number of outstanding volatile and durable requests.
func (l *Link) Pending() (volatile, durable int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracker.len()
}

// HealthCheck reports whether the link is open.
//
// Returns:
//   - error: ctx error if cancelled, ErrNotConnected if not open, nil if healthy
func (l *Link) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.active.Load() == nil {
		return ErrNotConnected
	}
	return nil
}

// Stats returns a snapshot of link counters and table sizes.
func (l *Link) Stats() Stats {
	l.mu.Lock()
	state := l.state
	depth := l.queue.len()
	oldest, _ := l.queue.oldest()
	volatile, durable := l.tracker.len()
	l.mu.Unlock()

	s := Stats{
		State:           state,
		TransportID:     l.cfg.TransportID,
		Connected:       l.active.Load() != nil,
		Attempts:        l.stats.attempts.Load(),
		Connects:        l.stats.connects.Load(),
		Disconnects:     l.stats.disconnects.Load(),
		PeerCloses:      l.stats.peerCloses.Load(),
		FramesSent:      l.stats.framesSent.Load(),
		FramesReceived:  l.stats.framesReceived.Load(),
		SendErrors:      l.stats.sendErrors.Load(),
		Malformed:       l.stats.malformed.Load(),
		Unmatched:       l.stats.unmatched.Load(),
		Timeouts:        l.stats.timeouts.Load(),
		Requeued:        l.stats.requeued.Load(),
		HeartbeatsSent:  l.stats.heartbeatsSent.Load(),
		EventsDropped:   l.stats.eventsDropped.Load(),
		HandlerPanics:   l.stats.handlerPanics.Load(),
		QueueDepth:      depth,
		OldestQueued:    oldest,
		PendingVolatile: volatile,
		PendingDurable:  durable,
		Subscribers:     l.subs.count(),
	}
	if ns := l.stats.lastActivity.Load(); ns > 0 {
		s.LastActivity = time.Unix(0, ns)
	}
	return s
}

// connectLoop dials until the run is stopped, reading from each socket until
// it fails and backing off between failed attempts.
func (l *Link) connectLoop(r *runState) {
	defer r.loops.Done()

	attempt := 0
	for {
		if r.ctx.Err() != nil {
			return
		}
		attempt++
		l.stats.attempts.Add(1)

		l.mu.Lock()
		if l.run != r {
			l.mu.Unlock()
			return
		}
		l.transition(StateConnecting)
		l.mu.Unlock()

		r.events.emit(Event{Name: EventAttempting, Attempt: attempt, TransportID: l.cfg.TransportID})

		sock, err := l.dial(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			l.connectFailed(r)
			delay := l.cfg.Backoff.Next(attempt)
			l.logger.Warn("connection attempt failed",
				"host", l.cfg.Host,
				"attempt", attempt,
				"retry_in", delay,
				"error", err,
			)
			if !sleep(r.ctx, delay) {
				return
			}
			continue
		}

		gen, ok := l.opened(r, sock)
		if !ok {
			sock.Close() //nolint:errcheck // Stopped during dial
			return
		}
		attempt = 0

		err = l.readLoop(r, sock)
		l.closed(r, gen, sock, err)

		if !sleep(r.ctx, l.cfg.Backoff.Next(1)) {
			return
		}
	}
}

func (l *Link) dial(ctx context.Context) (Socket, error) {
	l.mu.Lock()
	header := l.headers.Clone()
	provider := l.headerProvider
	l.mu.Unlock()

	if header == nil {
		header = make(http.Header)
	}
	if provider != nil {
		extra, err := provider(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: building headers: %w", ErrConnectFailed, err)
		}
		for k, v := range extra {
			header[k] = v
		}
	}
	header.Set(TransportIDHeader, l.cfg.TransportID)

	dialCtx, cancel := context.WithTimeout(ctx, l.cfg.HandshakeTimeout)
	defer cancel()

	sock, err := l.dialer.Dial(dialCtx, l.cfg.Host, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return sock, nil
}

// connectFailed records a failed attempt and fires a pending onConnected(false).
func (l *Link) connectFailed(r *runState) {
	l.mu.Lock()
	if l.run != r {
		l.mu.Unlock()
		return
	}
	l.heartbeat.Stop()
	l.transition(StateDisconnected)
	cb := l.onConnected
	l.onConnected = nil
	l.mu.Unlock()

	if cb != nil {
		cb(false)
	}
}

// opened installs a new socket: start heartbeat, flush the queue, emit
// connected, then fire a pending onConnected(true).
func (l *Link) opened(r *runState, sock Socket) (uint64, bool) {
	l.mu.Lock()
	if l.run != r {
		l.mu.Unlock()
		return 0, false
	}

	l.gen++
	ac := &activeConn{sock: sock, gen: l.gen}
	l.active.Store(ac)
	l.transition(StateOpen)
	l.stats.connects.Add(1)

	if l.cfg.EnableHeartbeat {
		l.heartbeat.Start()
	}

	flushed, flushErr := l.queue.flush(
		func(frame []byte) error { return l.write(ac, frame) },
		func(f queuedFrame) {
			if p, ok := l.tracker.get(f.id); ok && p.durable {
				p.queued = false
			}
		},
	)
	remaining := l.queue.len()

	cb := l.onConnected
	l.onConnected = nil
	l.mu.Unlock()

	l.logger.Info("link connected",
		"host", l.cfg.Host,
		"transport_id", l.cfg.TransportID,
		"flushed", flushed,
	)
	if flushErr != nil {
		l.logger.Warn("queue flush interrupted",
			"flushed", flushed,
			"remaining", remaining,
			"error", flushErr,
		)
	}

	r.events.emit(Event{Name: EventConnected, TransportID: l.cfg.TransportID})
	if cb != nil {
		cb(true)
	}
	return ac.gen, true
}

func (l *Link) readLoop(r *runState, sock Socket) error {
	for {
		data, err := sock.ReadMessage()
		if err != nil {
			return err
		}
		l.handleFrame(r, data)
	}
}

// closed tears down a connection that failed while open. It is a no-op if
// Stop already did so.
func (l *Link) closed(r *runState, gen uint64, sock Socket, cause error) {
	sock.Close() //nolint:errcheck // Socket already failed

	l.mu.Lock()
	ac := l.active.Load()
	if l.run != r || ac == nil || ac.gen != gen {
		l.mu.Unlock()
		return
	}
	l.active.Store(nil)
	l.heartbeat.Stop()

	byPeer := isPeerClose(cause)
	if byPeer {
		l.stats.peerCloses.Add(1)
		l.transition(StateClosedByPeer)
	}
	l.transition(StateDisconnected)
	l.stats.disconnects.Add(1)

	failed := l.tracker.failVolatile(ErrConnectionLost)
	requeued := l.requeueDurable()
	l.mu.Unlock()

	l.logger.Warn("link disconnected",
		"host", l.cfg.Host,
		"by_peer", byPeer,
		"failed_requests", failed,
		"requeued", requeued,
		"error", cause,
	)
	r.events.emit(Event{Name: EventDisconnected, Err: cause, TransportID: l.cfg.TransportID})
}

// requeueDurable puts durable requests whose frame already left on the
// dropped socket back in the queue, in registration order. They land behind
// entries still queued, so redelivery follows re-enqueue order rather than
// registration order when a flush failed partway. Caller holds mu.
func (l *Link) requeueDurable() int {
	n := 0
	for _, p := range l.tracker.unqueuedDurable() {
		l.queue.enqueue(queuedFrame{id: p.id, name: p.name, frame: p.frame, intent: IntentRequestReliable})
		p.queued = true
		n++
	}
	l.stats.requeued.Add(uint64(n))
	return n
}

func (l *Link) handleFrame(r *runState, data []byte) {
	l.stats.framesReceived.Add(1)
	l.stats.touch()

	env, err := Decode(data)
	if err != nil {
		l.stats.malformed.Add(1)
		l.logger.Warn("dropping malformed frame", "bytes", len(data), "error", err)
		return
	}

	switch env.Kind() {
	case KindHeartbeat:
	case KindResponse:
		l.mu.Lock()
		ok := l.tracker.resolve(env.ReplyTo, env.Data)
		l.mu.Unlock()
		if !ok {
			l.stats.unmatched.Add(1)
			l.logger.Debug("dropping unmatched response", "id", env.ReplyTo)
		}
	case KindRequest:
		r.events.emit(Event{
			Name:        MessageEvent(env.Name),
			Data:        env.Data,
			Responder:   &Responder{id: env.ID, name: env.Name, link: l},
			TransportID: l.cfg.TransportID,
		})
	case KindNotification:
		r.events.emit(Event{
			Name:        MessageEvent(env.Name),
			Data:        env.Data,
			TransportID: l.cfg.TransportID,
		})
	}
}

func (l *Link) reapLoop(r *runState) {
	defer r.loops.Done()

	ticker := time.NewTicker(l.cfg.MessageTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			l.reap()
		}
	}
}

// reap runs one reaper sweep.
func (l *Link) reap() []uint64 {
	l.mu.Lock()
	stale := l.reaper.sweep(l.tracker, l.ids.Current())
	l.mu.Unlock()

	if len(stale) > 0 {
		l.stats.timeouts.Add(uint64(len(stale)))
		l.logger.Warn("requests timed out", "count", len(stale), "first_id", stale[0])
	}
	return stale
}

// deliverReliable writes f directly when the link is open and nothing is
// queued ahead of it; otherwise it appends f to the queue. Caller holds mu.
// It reports whether the frame was written.
func (l *Link) deliverReliable(f queuedFrame) bool {
	if ac := l.active.Load(); ac != nil && l.queue.len() == 0 {
		err := l.write(ac, f.frame)
		if err == nil {
			return true
		}
		l.logger.Debug("direct send failed, queueing", "name", f.name, "error", err)
	}
	l.queue.enqueue(f)
	return false
}

// allocateID returns the next id not held by a pending request or a queued
// frame. Caller holds mu.
func (l *Link) allocateID() (uint64, error) {
	for n := uint64(0); n < l.ids.Max(); n++ {
		id := l.ids.Next()
		if !l.tracker.has(id) && !l.queue.contains(id) {
			return id, nil
		}
	}
	return 0, ErrIDSpaceExhausted
}

func (l *Link) write(ac *activeConn, frame []byte) error {
	l.writeMu.Lock()
	err := ac.sock.WriteMessage(frame)
	l.writeMu.Unlock()

	if err != nil {
		l.stats.sendErrors.Add(1)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	l.stats.framesSent.Add(1)
	l.stats.touch()
	return nil
}

func (l *Link) reply(id uint64, data json.RawMessage) error {
	frame, err := Encode(Envelope{Data: data, ReplyTo: id})
	if err != nil {
		return err
	}
	ac := l.active.Load()
	if ac == nil {
		return ErrNotConnected
	}
	return l.write(ac, frame)
}

func (l *Link) sendHeartbeat() error {
	ac := l.active.Load()
	if ac == nil {
		return ErrNotConnected
	}
	if err := l.write(ac, heartbeatFrame); err != nil {
		return err
	}
	l.stats.heartbeatsSent.Add(1)
	return nil
}

// transition changes state and logs the edge. Caller holds mu.
func (l *Link) transition(to State) {
	if l.state == to {
		return
	}
	l.logger.Debug("link state changed", "from", l.state.String(), "to", to.String())
	l.state = to
}

func payloadFor(name string, data any) (json.RawMessage, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	return marshalPayload(data)
}

// sleep waits for d or until ctx is done. It reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
