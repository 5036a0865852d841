package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/edgelink/internal/infrastructure/influxdb"
	"github.com/nerrad567/edgelink/internal/link"
)

type fakeSource struct {
	mu       sync.Mutex
	stats    link.Stats
	handlers map[string][]link.Handler
}

func newFakeSource(st link.Stats) *fakeSource {
	return &fakeSource{stats: st, handlers: make(map[string][]link.Handler)}
}

func (f *fakeSource) Stats() link.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeSource) Subscribe(event string, h link.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, event)
	}
}

func (f *fakeSource) emit(ev link.Event) {
	f.mu.Lock()
	hs := append([]link.Handler(nil), f.handlers[ev.Name]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (f *fakeSource) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type fakeSink struct {
	mu      sync.Mutex
	samples []influxdb.LinkSample
	events  []influxdb.LinkEvent
}

func (s *fakeSink) WriteLinkSample(p influxdb.LinkSample) {
	s.mu.Lock()
	s.samples = append(s.samples, p)
	s.mu.Unlock()
}

func (s *fakeSink) WriteLinkEvent(e influxdb.LinkEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *fakeSink) sampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func TestNewReporter_Defaults(t *testing.T) {
	r := NewReporter(ReporterConfig{Source: newFakeSource(link.Stats{}), Sink: &fakeSink{}})
	if r.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", r.interval, DefaultInterval)
	}
}

func TestReporter_PeriodicSnapshots(t *testing.T) {
	src := newFakeSource(link.Stats{
		State:       link.StateOpen,
		TransportID: "edge-1",
		Connected:   true,
		FramesSent:  7,
		QueueDepth:  2,
	})
	sink := &fakeSink{}
	r := NewReporter(ReporterConfig{Site: "site-7", Interval: 10 * time.Millisecond, Source: src, Sink: sink})

	r.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for sink.sampleCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
	r.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.samples) < 3 {
		t.Fatalf("samples = %d, want at least 3", len(sink.samples))
	}
	s := sink.samples[0]
	if s.Site != "site-7" || s.TransportID != "edge-1" || s.State != "open" {
		t.Errorf("sample tags = %+v", s)
	}
	if s.Fields["frames_sent"] != uint64(7) || s.Fields["queue_depth"] != 2 || s.Fields["connected"] != true {
		t.Errorf("sample fields = %v", s.Fields)
	}
	if src.subscribed() != 0 {
		t.Errorf("%d event subscriptions left after Stop()", src.subscribed())
	}
}

func TestReporter_StopsOnContextCancel(t *testing.T) {
	sink := &fakeSink{}
	r := NewReporter(ReporterConfig{Interval: time.Hour, Source: newFakeSource(link.Stats{}), Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("report loop did not exit on cancel")
	}
	r.Stop()
}

func TestReporter_LifecycleEvents(t *testing.T) {
	src := newFakeSource(link.Stats{})
	sink := &fakeSink{}
	r := NewReporter(ReporterConfig{Site: "s", Interval: time.Hour, Source: src, Sink: sink})
	r.Start(context.Background())
	defer r.Stop()

	at := time.Unix(100, 0)
	src.emit(link.Event{Name: link.EventAttempting, Attempt: 3, TransportID: "t", Time: at})
	src.emit(link.Event{Name: link.EventDisconnected, Err: errors.New("eof"), TransportID: "t", Time: at})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	want := []influxdb.LinkEvent{
		{Site: "s", TransportID: "t", Event: link.EventAttempting, Attempt: 3, Time: at},
		{Site: "s", TransportID: "t", Event: link.EventDisconnected, Err: "eof", Time: at},
	}
	if len(sink.events) != len(want) {
		t.Fatalf("events = %+v, want %+v", sink.events, want)
	}
	for i := range want {
		if sink.events[i] != want[i] {
			t.Errorf("events[%d] = %+v, want %+v", i, sink.events[i], want[i])
		}
	}
}

func TestFields_OldestQueued(t *testing.T) {
	if _, ok := Fields(link.Stats{})["oldest_queued_seconds"]; ok {
		t.Error("oldest_queued_seconds present with an empty queue")
	}

	f := Fields(link.Stats{OldestQueued: time.Now().Add(-2 * time.Second)})
	age, ok := f["oldest_queued_seconds"].(float64)
	if !ok || age < 2 {
		t.Errorf("oldest_queued_seconds = %v, want >= 2", f["oldest_queued_seconds"])
	}
}
