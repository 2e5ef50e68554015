package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	if c.Since(start) < 0 {
		t.Error("Since returned negative duration")
	}
}

func TestMockClock(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Fatalf("Now() = %v, want %v", got, base)
	}

	c.Advance(2 * time.Second)
	if got := c.Since(base); got != 2*time.Second {
		t.Errorf("Since() = %v, want 2s", got)
	}
}

func TestMockClock_AutoStep(t *testing.T) {
	base := time.Unix(1000, 0)
	c := NewMockClock(base)
	c.AutoStep(time.Millisecond)

	first := c.Now()
	second := c.Now()
	if d := second.Sub(first); d != time.Millisecond {
		t.Errorf("auto step = %v, want 1ms", d)
	}
	// Since does not advance
	if c.Since(base) != 2*time.Millisecond {
		t.Errorf("Since() = %v, want 2ms", c.Since(base))
	}
}
