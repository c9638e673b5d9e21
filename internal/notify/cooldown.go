package notify

import (
	"sync"
	"time"
)

// Cooldown records when the last error notification went out. It is shared by
// every error source, so distinct errors still collapse to one send per window.
// The zero state (nothing sent yet) always allows a send. State is not persisted.
type Cooldown struct {
	mu       sync.Mutex
	now      func() time.Time
	lastSent time.Time
}

// NewCooldown creates a Cooldown using now as its clock. A nil now uses time.Now.
func NewCooldown(now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{now: now}
}

// Allow reports whether window has elapsed since the last send, and how long it
// has been. Elapsed is zero when nothing has been sent yet.
func (c *Cooldown) Allow(window time.Duration) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastSent.IsZero() {
		return 0, true
	}
	elapsed := c.now().Sub(c.lastSent)
	return elapsed, elapsed >= window
}

// MarkSent records a successful send at the current clock time.
func (c *Cooldown) MarkSent() {
	c.mu.Lock()
	c.lastSent = c.now()
	c.mu.Unlock()
}

// LastSent returns the time of the last recorded send (zero if none).
func (c *Cooldown) LastSent() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSent
}
