package portal

import (
	"context"
	"fmt"
	"time"
)

// Clock supplies the current time. Injected so the countdown math is
// testable at any sampled instant.
type Clock func() time.Time

// Remaining computes the whole seconds left until the attempt deadline,
// clamped at zero. It derives from the absolute deadline every call rather
// than decrementing a counter, so a suspended or remounted countdown never
// drifts.
func Remaining(startedAt time.Time, limitMinutes int, now time.Time) int {
	deadline := startedAt.Add(time.Duration(limitMinutes) * time.Minute)
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// FormatClock renders seconds as zero-padded minutes:seconds.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Countdown ticks an attempt's remaining time once per second and fires
// onExpire exactly once when it reaches zero.
type Countdown struct {
	startedAt    time.Time
	limitMinutes int
	clock        Clock
	tick         time.Duration
}

// NewCountdown creates a Countdown. A nil clock uses time.Now.
func NewCountdown(startedAt time.Time, limitMinutes int, clock Clock) *Countdown {
	if clock == nil {
		clock = time.Now
	}
	return &Countdown{
		startedAt:    startedAt,
		limitMinutes: limitMinutes,
		clock:        clock,
		tick:         time.Second,
	}
}

// Remaining returns the seconds left right now.
func (c *Countdown) Remaining() int {
	return Remaining(c.startedAt, c.limitMinutes, c.clock())
}

// Run ticks until the context is cancelled or the deadline passes. onTick
// receives every recomputed remaining value, including the final zero;
// onExpire fires once at zero and then the loop stops. Both callbacks may
// be nil. Cancelling the context stops the ticker immediately, so leaving
// the exam view leaks no background ticking.
func (c *Countdown) Run(ctx context.Context, onTick func(remaining int), onExpire func()) {
	emit := func(remaining int) bool {
		if onTick != nil {
			onTick(remaining)
		}
		if remaining == 0 {
			if onExpire != nil {
				onExpire()
			}
			return false
		}
		return true
	}

	if !emit(c.Remaining()) {
		return
	}

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit(c.Remaining()) {
				return
			}
		}
	}
}
