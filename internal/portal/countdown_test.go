package portal

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRemainingFormula(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limit := 5 // minutes

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"at start", start, 300},
		{"ten seconds in", start.Add(10 * time.Second), 290},
		{"sub-second floors", start.Add(10*time.Second + 400*time.Millisecond), 289},
		{"one second left", start.Add(299 * time.Second), 1},
		{"exactly at deadline", start.Add(5 * time.Minute), 0},
		{"past deadline clamps", start.Add(20 * time.Minute), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Remaining(start, limit, tc.now); got != tc.want {
				t.Errorf("Remaining() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRemainingRecomputesFromDeadline(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	clock := func() time.Time { return now }

	c := NewCountdown(start, 2, clock)
	if got := c.Remaining(); got != 90 {
		t.Fatalf("Remaining() = %d, want 90", got)
	}

	// Simulate a long suspension: the next sample derives from the
	// absolute deadline, not from decrementing the prior value.
	now = start.Add(100 * time.Second)
	if got := c.Remaining(); got != 20 {
		t.Fatalf("Remaining() after jump = %d, want 20", got)
	}
}

func TestCountdownExpiresOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	// Clock already past the deadline: Run expires on the first emit.
	clock := func() time.Time { return start.Add(time.Hour) }

	c := NewCountdown(start, 5, clock)

	expires := 0
	ticks := 0
	c.Run(context.Background(), func(remaining int) {
		ticks++
		if remaining != 0 {
			t.Errorf("tick with remaining = %d, want 0", remaining)
		}
	}, func() {
		expires++
	})

	if expires != 1 {
		t.Errorf("onExpire fired %d times, want 1", expires)
	}
	if ticks != 1 {
		t.Errorf("onTick fired %d times, want 1", ticks)
	}
}

func TestCountdownStopsOnCancel(t *testing.T) {
	start := time.Now()
	c := NewCountdown(start, 60, nil)
	c.tick = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx, nil, func() {
			t.Error("onExpire fired for an attempt nowhere near its deadline")
		})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestCountdownReachesExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	now := start
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	c := NewCountdown(start, 5, clock)
	c.tick = time.Millisecond

	expired := make(chan struct{})
	go c.Run(context.Background(), nil, func() { close(expired) })

	// Move the clock past the deadline; the next tick must expire.
	mu.Lock()
	now = start.Add(6 * time.Minute)
	mu.Unlock()

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("countdown never expired after the deadline passed")
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{9, "00:09"},
		{60, "01:00"},
		{290, "04:50"},
		{3600, "60:00"},
		{-5, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatClock(tc.seconds); got != tc.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
