package link

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Lifecycle event names. Inbound messages are published under MessageEvent(name).
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventAttempting   = "attempting"
)

// EventAnyMessage receives every inbound message after the handlers
// subscribed to its specific MessageEvent.
const EventAnyMessage = "#"

// DefaultEventQueueSize bounds the number of undelivered events.
const DefaultEventQueueSize = 256

// MessageEvent returns the subscription key for inbound messages named name.
func MessageEvent(name string) string {
	return EventAnyMessage + name
}

// MessageName returns the message name carried by a MessageEvent key, or
// false for lifecycle events.
func MessageName(event string) (string, bool) {
	name, ok := strings.CutPrefix(event, EventAnyMessage)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Event is delivered to subscribers.
type Event struct {
	// Name is the subscription key the event was published under.
	Name string

	// Data is the inbound payload for message events.
	Data json.RawMessage

	// Responder answers an inbound request. Nil for notifications and
	// lifecycle events.
	Responder *Responder

	// Attempt is the connection attempt number for EventAttempting.
	Attempt int

	// Err is the socket error that caused EventDisconnected, if any.
	Err error

	// TransportID identifies this link instance.
	TransportID string

	Time time.Time
}

// Handler receives events. Handlers run on the dispatch goroutine.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// subscriptions maps event names to handlers. It outlives Start/Stop cycles.
type subscriptions struct {
	handlers *xsync.MapOf[string, []subscription]
	nextID   atomic.Uint64
}

func newSubscriptions() *subscriptions {
	return &subscriptions{handlers: xsync.NewMapOf[string, []subscription]()}
}

// add registers h under event and returns a function that removes it.
func (s *subscriptions) add(event string, h Handler) func() {
	id := s.nextID.Add(1)
	s.handlers.Compute(event, func(old []subscription, _ bool) ([]subscription, bool) {
		next := make([]subscription, len(old), len(old)+1)
		copy(next, old)
		return append(next, subscription{id: id, handler: h}), false
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.handlers.Compute(event, func(old []subscription, loaded bool) ([]subscription, bool) {
				if !loaded {
					return nil, true
				}
				next := make([]subscription, 0, len(old))
				for _, sub := range old {
					if sub.id != id {
						next = append(next, sub)
					}
				}
				return next, len(next) == 0
			})
		})
	}
}

func (s *subscriptions) lookup(event string) []subscription {
	subs, _ := s.handlers.Load(event)
	return subs
}

func (s *subscriptions) count() int {
	n := 0
	s.handlers.Range(func(_ string, subs []subscription) bool {
		n += len(subs)
		return true
	})
	return n
}

// dispatcher delivers events to subscribers on one goroutine, in the order
// they were emitted. When the buffer is full new events are dropped.
type dispatcher struct {
	subs   *subscriptions
	queue  chan Event
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
	logger Logger

	dropped  *atomic.Uint64
	panicked *atomic.Uint64
}

func newDispatcher(subs *subscriptions, size int, logger Logger, dropped, panicked *atomic.Uint64) *dispatcher {
	if size <= 0 {
		size = DefaultEventQueueSize
	}
	d := &dispatcher{
		subs:     subs,
		queue:    make(chan Event, size),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		logger:   logger,
		dropped:  dropped,
		panicked: panicked,
	}
	go d.run()
	return d
}

// emit queues an event without blocking. It reports false if the event was
// dropped.
func (d *dispatcher) emit(ev Event) bool {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping event", "event", ev.Name)
		return false
	}
}

// close stops accepting events, delivers what is already queued, and waits
// for the dispatch goroutine to exit.
func (d *dispatcher) close() {
	d.once.Do(func() { close(d.done) })
	<-d.exited
}

func (d *dispatcher) run() {
	defer close(d.exited)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *dispatcher) deliver(ev Event) {
	for _, sub := range d.subs.lookup(ev.Name) {
		d.invoke(sub.handler, ev)
	}
	if _, ok := MessageName(ev.Name); ok {
		for _, sub := range d.subs.lookup(EventAnyMessage) {
			d.invoke(sub.handler, ev)
		}
	}
}

func (d *dispatcher) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.Error("event handler panicked",
				"event", ev.Name,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	h(ev)
}
