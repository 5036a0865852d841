package link

import (
	"sync/atomic"
	"time"
)

// counters are updated without holding the link mutex.
type counters struct {
	attempts       atomic.Uint64
	connects       atomic.Uint64
	disconnects    atomic.Uint64
	peerCloses     atomic.Uint64
	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	sendErrors     atomic.Uint64
	malformed      atomic.Uint64
	unmatched      atomic.Uint64
	timeouts       atomic.Uint64
	requeued       atomic.Uint64
	heartbeatsSent atomic.Uint64
	eventsDropped  atomic.Uint64
	handlerPanics  atomic.Uint64
	lastActivity   atomic.Int64
}

func (c *counters) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Stats is a point-in-time snapshot of link health.
type Stats struct {
	State       State  `json:"state"`
	TransportID string `json:"transport_id"`
	Connected   bool   `json:"connected"`

	Attempts       uint64 `json:"attempts"`
	Connects       uint64 `json:"connects"`
	Disconnects    uint64 `json:"disconnects"`
	PeerCloses     uint64 `json:"peer_closes"`
	FramesSent     uint64 `json:"frames_sent"`
	FramesReceived uint64 `json:"frames_received"`
	SendErrors     uint64 `json:"send_errors"`
	Malformed      uint64 `json:"malformed"`
	Unmatched      uint64 `json:"unmatched"`
	Timeouts       uint64 `json:"timeouts"`
	Requeued       uint64 `json:"requeued"`
	HeartbeatsSent uint64 `json:"heartbeats_sent"`
	EventsDropped  uint64 `json:"events_dropped"`
	HandlerPanics  uint64 `json:"handler_panics"`

	QueueDepth      int       `json:"queue_depth"`
	OldestQueued    time.Time `json:"oldest_queued"`
	PendingVolatile int       `json:"pending_volatile"`
	PendingDurable  int       `json:"pending_durable"`
	Subscribers     int       `json:"subscribers"`
	LastActivity    time.Time `json:"last_activity"`
}
