package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	if got.Before(before) {
		t.Errorf("RealClock.Now() = %v, before %v", got, before)
	}
}

func TestMockClockAdvance(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Fatalf("Now() = %v, want %v", got, base)
	}

	c.Advance(250 * time.Millisecond)
	if got := c.Since(base); got != 250*time.Millisecond {
		t.Errorf("Since(base) = %v, want 250ms", got)
	}

	c.Set(base.Add(time.Hour))
	if got := c.Now(); !got.Equal(base.Add(time.Hour)) {
		t.Errorf("Set did not take effect: %v", got)
	}
}
