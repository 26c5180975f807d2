package game

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// TimeControl defines the time settings for a game. Both players start with
// the same budget and increment.
type TimeControl struct {
	InitialMs   int64 `json:"initial_ms"`
	IncrementMs int64 `json:"increment_ms"`
}

// Clock is one player's countdown. It runs while that player is to move and
// is paused otherwise; elapsed time is computed lazily from the last resume
// point, so no ticker is needed to keep it accurate.
//
// Clock is not safe for concurrent use on its own. The owning Session
// serializes every access under its mutex.
type Clock struct {
	remainingMs int64
	incrementMs int64

	running   bool
	resumedAt time.Time

	clk clock.Clock
}

// NewClock creates a paused clock with the given time control.
func NewClock(tc TimeControl, clk clock.Clock) *Clock {
	return &Clock{
		remainingMs: tc.InitialMs,
		incrementMs: tc.IncrementMs,
		clk:         clk,
	}
}

// Resume starts the countdown. No-op if already running.
func (c *Clock) Resume() {
	if c.running {
		return
	}

	c.resumedAt = c.clk.Now()
	c.running = true
}

// Pause stops the countdown and banks the elapsed time. No-op if paused.
func (c *Clock) Pause() {
	if !c.running {
		return
	}

	c.remainingMs -= c.clk.Now().Sub(c.resumedAt).Milliseconds()
	if c.remainingMs < 0 {
		c.remainingMs = 0
	}
	c.running = false
}

// ApplyIncrement credits the per-move increment. Called on the mover's clock
// right after a move is accepted, before the clock is paused.
func (c *Clock) ApplyIncrement() {
	c.remainingMs += c.incrementMs
}

// Remaining returns the current remaining time in milliseconds, accounting
// for time elapsed since the last resume. Never negative.
func (c *Clock) Remaining() int64 {
	remaining := c.remainingMs
	if c.running {
		remaining -= c.clk.Now().Sub(c.resumedAt).Milliseconds()
	}

	if remaining < 0 {
		remaining = 0
	}

	return remaining
}

// Expired reports whether the countdown has reached zero.
func (c *Clock) Expired() bool {
	return c.Remaining() <= 0
}

// Running reports whether the countdown is currently ticking.
func (c *Clock) Running() bool {
	return c.running
}

// FormatClockTime formats a duration in milliseconds to a user-friendly string (e.g., "1:30")
func FormatClockTime(timeMs int64) string {
	if timeMs < 0 {
		timeMs = 0
	}

	totalSeconds := timeMs / 1000
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60

	// For times less than 10 seconds, show decimal
	if timeMs < 10000 {
		tenths := (timeMs % 1000) / 100
		return fmt.Sprintf("%d.%d", totalSeconds, tenths)
	}

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
