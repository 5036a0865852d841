package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/edgelink/internal/infrastructure/influxdb"
	"github.com/nerrad567/edgelink/internal/link"
)

// DefaultInterval is the snapshot period when none is configured.
const DefaultInterval = 30 * time.Second

// StatsSource provides link statistics and lifecycle events.
// *link.Link satisfies it.
type StatsSource interface {
	Stats() link.Stats
	Subscribe(event string, h link.Handler) func()
}

// Sink stores snapshots and events. *influxdb.Client satisfies it.
type Sink interface {
	WriteLinkSample(s influxdb.LinkSample)
	WriteLinkEvent(e influxdb.LinkEvent)
}

// Logger is the logging interface used by the reporter.
type Logger interface {
	Debug(msg string, args ...any)
}

// ReporterConfig configures a Reporter.
type ReporterConfig struct {
	// Site tags every point.
	Site string

	// Interval between snapshots. Default: DefaultInterval.
	Interval time.Duration

	Source StatsSource
	Sink   Sink
	Logger Logger
}

// Reporter periodically writes link snapshots to a Sink and records every
// lifecycle event as it happens.
type Reporter struct {
	site     string
	interval time.Duration
	source   StatsSource
	sink     Sink
	logger   Logger

	unsubs   []func()
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewReporter creates a reporter. Call Start to begin reporting.
func NewReporter(cfg ReporterConfig) *Reporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		site:     cfg.Site,
		interval: interval,
		source:   cfg.Source,
		sink:     cfg.Sink,
		logger:   cfg.Logger,
		done:     make(chan struct{}),
	}
}

// Start subscribes to link lifecycle events and begins the snapshot loop.
// The loop ends when ctx is cancelled or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	for _, event := range []string{link.EventConnected, link.EventDisconnected, link.EventAttempting} {
		r.unsubs = append(r.unsubs, r.source.Subscribe(event, r.onEvent))
	}

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop ends reporting and writes a final snapshot. Safe to call more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		for _, unsub := range r.unsubs {
			unsub()
		}
		r.ReportNow()
	})
}

// ReportNow writes one snapshot immediately.
func (r *Reporter) ReportNow() {
	st := r.source.Stats()
	r.sink.WriteLinkSample(influxdb.LinkSample{
		Site:        r.site,
		TransportID: st.TransportID,
		State:       st.State.String(),
		Fields:      Fields(st),
		Time:        time.Now(),
	})
	if r.logger != nil {
		r.logger.Debug("link snapshot written", "state", st.State.String(), "queue_depth", st.QueueDepth)
	}
}

func (r *Reporter) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.ReportNow()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.ReportNow()
		}
	}
}

func (r *Reporter) onEvent(ev link.Event) {
	e := influxdb.LinkEvent{
		Site:        r.site,
		TransportID: ev.TransportID,
		Event:       ev.Name,
		Attempt:     ev.Attempt,
		Time:        ev.Time,
	}
	if ev.Err != nil {
		e.Err = ev.Err.Error()
	}
	r.sink.WriteLinkEvent(e)
}

// Fields flattens the numeric part of a snapshot into point fields.
func Fields(st link.Stats) map[string]any {
	fields := map[string]any{
		"connected":        st.Connected,
		"attempts":         st.Attempts,
		"connects":         st.Connects,
		"disconnects":      st.Disconnects,
		"peer_closes":      st.PeerCloses,
		"frames_sent":      st.FramesSent,
		"frames_received":  st.FramesReceived,
		"send_errors":      st.SendErrors,
		"malformed":        st.Malformed,
		"unmatched":        st.Unmatched,
		"timeouts":         st.Timeouts,
		"requeued":         st.Requeued,
		"heartbeats_sent":  st.HeartbeatsSent,
		"events_dropped":   st.EventsDropped,
		"handler_panics":   st.HandlerPanics,
		"queue_depth":      st.QueueDepth,
		"pending_volatile": st.PendingVolatile,
		"pending_durable":  st.PendingDurable,
	}
	if !st.OldestQueued.IsZero() {
		fields["oldest_queued_seconds"] = time.Since(st.OldestQueued).Seconds()
	}
	return fields
}
