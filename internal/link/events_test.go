package link

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscriptions_AddRemove(t *testing.T) {
	s := newSubscriptions()
	unsubA := s.add("connected", func(Event) {})
	unsubB := s.add("connected", func(Event) {})
	s.add("#ping", func(Event) {})

	if got := len(s.lookup("connected")); got != 2 {
		t.Errorf("lookup(connected) = %d handlers, want 2", got)
	}
	if got := s.count(); got != 3 {
		t.Errorf("count() = %d, want 3", got)
	}

	unsubA()
	unsubA()
	if got := len(s.lookup("connected")); got != 1 {
		t.Errorf("after unsubscribe lookup(connected) = %d handlers, want 1", got)
	}
	unsubB()
	if got := len(s.lookup("connected")); got != 0 {
		t.Errorf("after both unsubscribed lookup(connected) = %d handlers, want 0", got)
	}
}

func TestDispatcher_OrderAndPanicRecovery(t *testing.T) {
	var dropped, panicked atomic.Uint64
	s := newSubscriptions()

	var mu sync.Mutex
	var got []string
	s.add("#n", func(ev Event) {
		if string(ev.Data) == `"boom"` {
			panic("handler failure")
		}
		mu.Lock()
		got = append(got, string(ev.Data))
		mu.Unlock()
	})

	d := newDispatcher(s, 16, noopLogger{}, &dropped, &panicked)
	for _, data := range []string{`1`, `"boom"`, `2`, `3`} {
		d.emit(Event{Name: "#n", Data: []byte(data)})
	}
	d.close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Errorf("delivered %v, want [1 2 3]", got)
	}
	if panicked.Load() != 1 {
		t.Errorf("panicked = %d, want 1", panicked.Load())
	}
	if d.emit(Event{Name: "#n"}) {
		t.Error("emit() after close reported success")
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	var dropped, panicked atomic.Uint64
	s := newSubscriptions()

	release := make(chan struct{})
	s.add("slow", func(Event) { <-release })

	d := newDispatcher(s, 1, noopLogger{}, &dropped, &panicked)
	d.emit(Event{Name: "slow"})

	// Wait for the worker to pick up the first event so the buffer is empty.
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if !d.emit(Event{Name: "slow"}) {
		t.Fatal("emit() into empty buffer failed")
	}
	if d.emit(Event{Name: "slow"}) {
		t.Error("emit() into full buffer reported success")
	}
	if dropped.Load() != 1 {
		t.Errorf("dropped = %d, want 1", dropped.Load())
	}

	close(release)
	d.close()
}

func TestMessageEvent(t *testing.T) {
	if got := MessageEvent("device.list"); got != "#device.list" {
		t.Errorf("MessageEvent() = %q, want %q", got, "#device.list")
	}
}

func TestMessageName(t *testing.T) {
	tests := []struct {
		event  string
		want   string
		wantOK bool
	}{
		{"#device.list", "device.list", true},
		{EventAnyMessage, "", false},
		{EventConnected, "", false},
	}
	for _, tt := range tests {
		got, ok := MessageName(tt.event)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("MessageName(%q) = (%q, %v), want (%q, %v)", tt.event, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDispatcher_AnyMessage(t *testing.T) {
	var dropped, panicked atomic.Uint64
	s := newSubscriptions()

	var mu sync.Mutex
	var order []string
	record := func(tag string) Handler {
		return func(ev Event) {
			mu.Lock()
			order = append(order, tag+":"+ev.Name)
			mu.Unlock()
		}
	}
	s.add(EventAnyMessage, record("any"))
	s.add("#a", record("a"))

	d := newDispatcher(s, 8, noopLogger{}, &dropped, &panicked)
	d.emit(Event{Name: "#a"})
	d.emit(Event{Name: "#b"})
	d.emit(Event{Name: EventConnected})
	d.close()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a:#a", "any:#a", "any:#b"}
	if len(order) != len(want) {
		t.Fatalf("delivered %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivered[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}
