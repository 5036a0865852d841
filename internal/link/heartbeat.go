package link

import (
	"sync"
	"time"
)

// DefaultHeartbeatInterval is the cadence of {"t":"hb"} frames.
const DefaultHeartbeatInterval = 2 * time.Second

// heartbeat periodically writes a liveness frame while the link is open.
// Start and Stop are idempotent; at most one ticker runs at a time.
type heartbeat struct {
	interval time.Duration
	send     func() error
	onError  func(error)

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newHeartbeat(interval time.Duration, send func() error, onError func(error)) *heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &heartbeat{interval: interval, send: send, onError: onError}
}

// Start begins emitting heartbeats, replacing any running ticker.
func (h *heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	h.stop = stop
	h.done = done

	go h.run(stop, done)
}

// Stop halts the ticker and waits for it to exit.
func (h *heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

// Running reports whether a ticker is active.
func (h *heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop != nil
}

func (h *heartbeat) stopLocked() {
	if h.stop == nil {
		return
	}
	close(h.stop)
	<-h.done
	h.stop = nil
	h.done = nil
}

func (h *heartbeat) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := h.send(); err != nil && h.onError != nil {
				h.onError(err)
			}
		}
	}
}
