package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	c.Advance(250 * time.Millisecond)
	want := start.Add(250 * time.Millisecond)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}

	if got := c.Since(start); got != 250*time.Millisecond {
		t.Errorf("Since(start) = %v, want 250ms", got)
	}
}

func TestMockClockSleepAdvances(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Sleep(time.Millisecond)
	c.Sleep(2 * time.Millisecond)

	if got := c.Now(); !got.Equal(start.Add(3 * time.Millisecond)) {
		t.Errorf("Now() after sleeps = %v, want start+3ms", got)
	}

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Millisecond || sleeps[1] != 2*time.Millisecond {
		t.Errorf("Sleeps() = %v, want [1ms 2ms]", sleeps)
	}
}

func TestMockClockSet(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	target := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.Set(target)
	if got := c.Now(); !got.Equal(target) {
		t.Errorf("Now() = %v, want %v", got, target)
	}
}
