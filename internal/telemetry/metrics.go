package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/edgelink/internal/link"
	"github.com/nerrad567/edgelink/internal/relay"
)

const namespace = "edgelink"

// RelayStatsSource provides relay counters. *relay.Relay satisfies it.
type RelayStatsSource interface {
	Stats() relay.Stats
}

// RegisterMetrics registers link (and, when rs is non-nil, relay) metrics
// on reg. Every metric reads a fresh snapshot at scrape time.
func RegisterMetrics(reg prometheus.Registerer, src StatsSource, rs RelayStatsSource) error {
	collectors := linkCollectors(src)
	if rs != nil {
		collectors = append(collectors, relayCollectors(rs)...)
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func linkCollectors(src StatsSource) []prometheus.Collector {
	counter := func(name, help string, get func(link.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "link", Name: name, Help: help,
		}, func() float64 { return float64(get(src.Stats())) })
	}
	gauge := func(name, help string, get func(link.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "link", Name: name, Help: help,
		}, func() float64 { return get(src.Stats()) })
	}

	return []prometheus.Collector{
		counter("connect_attempts_total", "Connection attempts.", func(s link.Stats) uint64 { return s.Attempts }),
		counter("connects_total", "Successful connections.", func(s link.Stats) uint64 { return s.Connects }),
		counter("disconnects_total", "Dropped connections.", func(s link.Stats) uint64 { return s.Disconnects }),
		counter("peer_closes_total", "Connections closed by the coordinator.", func(s link.Stats) uint64 { return s.PeerCloses }),
		counter("frames_sent_total", "Frames written to the socket.", func(s link.Stats) uint64 { return s.FramesSent }),
		counter("frames_received_total", "Frames read from the socket.", func(s link.Stats) uint64 { return s.FramesReceived }),
		counter("send_errors_total", "Failed socket writes.", func(s link.Stats) uint64 { return s.SendErrors }),
		counter("malformed_frames_total", "Inbound frames that could not be decoded.", func(s link.Stats) uint64 { return s.Malformed }),
		counter("unmatched_responses_total", "Responses with no pending request.", func(s link.Stats) uint64 { return s.Unmatched }),
		counter("request_timeouts_total", "Volatile requests failed by the reaper.", func(s link.Stats) uint64 { return s.Timeouts }),
		counter("requeued_total", "Durable requests requeued after a disconnect.", func(s link.Stats) uint64 { return s.Requeued }),
		counter("heartbeats_sent_total", "Heartbeat frames sent.", func(s link.Stats) uint64 { return s.HeartbeatsSent }),
		counter("events_dropped_total", "Events dropped because the queue was full.", func(s link.Stats) uint64 { return s.EventsDropped }),
		counter("handler_panics_total", "Recovered event handler panics.", func(s link.Stats) uint64 { return s.HandlerPanics }),

		gauge("up", "1 while the socket is open.", func(s link.Stats) float64 {
			if s.Connected {
				return 1
			}
			return 0
		}),
		gauge("state", "Connection state (0 disconnected, 1 connecting, 2 open, 3 closed by peer).",
			func(s link.Stats) float64 { return float64(s.State) }),
		gauge("queue_depth", "Reliable sends awaiting delivery.", func(s link.Stats) float64 { return float64(s.QueueDepth) }),
		gauge("queue_oldest_age_seconds", "Age of the oldest queued send.", func(s link.Stats) float64 {
			if s.OldestQueued.IsZero() {
				return 0
			}
			return time.Since(s.OldestQueued).Seconds()
		}),
		gauge("pending_volatile", "Outstanding volatile requests.", func(s link.Stats) float64 { return float64(s.PendingVolatile) }),
		gauge("pending_durable", "Outstanding durable requests.", func(s link.Stats) float64 { return float64(s.PendingDurable) }),
	}
}

func relayCollectors(rs RelayStatsSource) []prometheus.Collector {
	counter := func(name, help string, get func(relay.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "relay", Name: name, Help: help,
		}, func() float64 { return float64(get(rs.Stats())) })
	}

	return []prometheus.Collector{
		counter("inbound_total", "Coordinator messages published on the bus.", func(s relay.Stats) uint64 { return s.Inbound }),
		counter("outbound_total", "Bus messages forwarded to the link.", func(s relay.Stats) uint64 { return s.Outbound }),
		counter("replies_total", "Inbound requests answered.", func(s relay.Stats) uint64 { return s.RepliesSent }),
		counter("replies_expired_total", "Inbound requests that expired unanswered.", func(s relay.Stats) uint64 { return s.RepliesExpired }),
		counter("results_total", "Outbound request results published.", func(s relay.Stats) uint64 { return s.Results }),
		counter("publish_failures_total", "Failed bus publishes.", func(s relay.Stats) uint64 { return s.PublishFailures }),
		counter("rejected_total", "Bus messages rejected for topic or payload.", func(s relay.Stats) uint64 { return s.Rejected }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "relay", Name: "replies_pending",
			Help: "Inbound requests awaiting a reply.",
		}, func() float64 { return float64(rs.Stats().RepliesPending) }),
	}
}
