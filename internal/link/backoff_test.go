package link

import (
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, 750 * time.Millisecond},
		{3, 1125 * time.Millisecond},
		{4, 1687500 * time.Microsecond},
		{7, 5 * time.Second},
		{50, 5 * time.Second},
		{10000, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	for _, r := range []float64{0, 0.5, 0.999} {
		b := DefaultBackoff()
		b.random = func() float64 { return r }

		for attempt := 1; attempt <= 12; attempt++ {
			d := b.Delay(attempt)
			got := b.Next(attempt)
			if got < b.MinDelay {
				t.Errorf("Next(%d) with r=%v = %v, below min %v", attempt, r, got, b.MinDelay)
			}
			if got > d {
				t.Errorf("Next(%d) with r=%v = %v, above delay %v", attempt, r, got, d)
			}
		}
	}
}

func TestBackoff_NoJitter(t *testing.T) {
	b := DefaultBackoff()
	b.Jitter = false
	if got, want := b.Next(3), b.Delay(3); got != want {
		t.Errorf("Next(3) = %v, want %v", got, want)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := Backoff{}.withDefaults()
	if b.Factor != DefaultBackoffFactor {
		t.Errorf("Factor = %v, want %v", b.Factor, DefaultBackoffFactor)
	}
	if b.MinDelay != DefaultBackoffMinDelay {
		t.Errorf("MinDelay = %v, want %v", b.MinDelay, DefaultBackoffMinDelay)
	}
	if b.MaxDelay != DefaultBackoffMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", b.MaxDelay, DefaultBackoffMaxDelay)
	}

	inverted := Backoff{Factor: 2, MinDelay: time.Second, MaxDelay: time.Millisecond}.withDefaults()
	if inverted.MaxDelay != time.Second {
		t.Errorf("MaxDelay below MinDelay = %v, want %v", inverted.MaxDelay, time.Second)
	}
}
