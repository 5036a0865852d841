package link

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestIsStale(t *testing.T) {
	tests := []struct {
		name string
		id   uint64
		prev uint64
		cur  uint64
		want bool
	}{
		// No wrap: (prev, cur] is the live window.
		{"issued before previous sweep", 3, 5, 9, true},
		{"equal to prev", 5, 5, 9, true},
		{"inside window", 6, 5, 9, false},
		{"equal to cur", 9, 5, 9, false},
		{"above cur", 10, 5, 9, true},

		// Wrapped: live window is (prev, max] and [1, cur].
		{"wrapped, between cur and prev", 50, 90, 10, true},
		{"wrapped, equal to prev", 90, 90, 10, true},
		{"wrapped, equal to cur", 10, 90, 10, false},
		{"wrapped, below cur", 4, 90, 10, false},
		{"wrapped, above prev", 95, 90, 10, false},

		// Nothing issued since the last sweep.
		{"idle, equal", 7, 7, 7, true},
		{"idle, below", 2, 7, 7, true},
		{"idle, above", 8, 7, 7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStale(tt.id, tt.prev, tt.cur); got != tt.want {
				t.Errorf("isStale(%d, %d, %d) = %v, want %v", tt.id, tt.prev, tt.cur, got, tt.want)
			}
		})
	}
}

func TestReaper_SurvivesOneSweep(t *testing.T) {
	tr := newTracker()
	ids := NewIDAllocator(0)
	var r reaper
	r.reset(ids.Current())

	var gotErr error
	resolved := 0
	id := ids.Next()
	tr.register(&pendingRequest{id: id, complete: func(_ json.RawMessage, err error) {
		resolved++
		gotErr = err
	}})

	if stale := r.sweep(tr, ids.Current()); len(stale) != 0 {
		t.Fatalf("first sweep reaped %v, want nothing", stale)
	}
	if resolved != 0 {
		t.Fatalf("request resolved after one sweep")
	}

	stale := r.sweep(tr, ids.Current())
	if len(stale) != 1 || stale[0] != id {
		t.Fatalf("second sweep reaped %v, want [%d]", stale, id)
	}
	if resolved != 1 {
		t.Errorf("completion called %d times, want 1", resolved)
	}
	if !errors.Is(gotErr, ErrTimeout) {
		t.Errorf("completion error = %v, want ErrTimeout", gotErr)
	}
}

func TestReaper_IgnoresDurable(t *testing.T) {
	tr := newTracker()
	ids := NewIDAllocator(0)
	var r reaper

	tr.register(&pendingRequest{id: ids.Next(), durable: true, complete: func(json.RawMessage, error) {
		t.Error("durable request must not be reaped")
	}})

	for i := 0; i < 5; i++ {
		r.sweep(tr, ids.Current())
	}
	if _, durable := tr.len(); durable != 1 {
		t.Errorf("durable = %d, want 1", durable)
	}
}

func TestReaper_AcrossWrap(t *testing.T) {
	tr := newTracker()
	ids := NewIDAllocator(10)
	ids.value = 8
	var r reaper
	r.reset(ids.Current())

	noop := func(json.RawMessage, error) {}
	for i := 0; i < 4; i++ { // 9, 10, 1, 2
		tr.register(&pendingRequest{id: ids.Next(), complete: noop})
	}

	if stale := r.sweep(tr, ids.Current()); len(stale) != 0 {
		t.Fatalf("sweep after wrap reaped %v, want nothing", stale)
	}
	tr.register(&pendingRequest{id: ids.Next(), complete: noop}) // 3

	stale := r.sweep(tr, ids.Current())
	want := []uint64{1, 2, 9, 10}
	if len(stale) != len(want) {
		t.Fatalf("reaped %v, want %v", stale, want)
	}
	for i := range want {
		if stale[i] != want[i] {
			t.Errorf("reaped[%d] = %d, want %d", i, stale[i], want[i])
		}
	}
	if !tr.has(3) {
		t.Error("id 3 issued after the previous sweep was reaped")
	}
}
