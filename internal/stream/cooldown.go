package stream

import (
	"sync"
	"time"
)

// Cooldown suppresses repeat alerts per symbol for a fixed window. The map
// stays bounded by the watchlist, so no cleanup loop is needed.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	armed  map[string]time.Time
}

// NewCooldown creates a tracker; a non-positive window disables suppression
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window: window,
		armed:  make(map[string]time.Time),
	}
}

// Allow reports whether an alert for the symbol may fire now, and arms the
// cooldown when it may. Check and arm are one step so two callers cannot
// both pass inside a single window.
func (c *Cooldown) Allow(symbol string, now time.Time) bool {
	if c.window <= 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if until, ok := c.armed[symbol]; ok && now.Before(until) {
		return false
	}
	c.armed[symbol] = now.Add(c.window)
	return true
}

// ActiveCount returns how many symbols are currently suppressed
func (c *Cooldown) ActiveCount(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, until := range c.armed {
		if now.Before(until) {
			count++
		}
	}
	return count
}
