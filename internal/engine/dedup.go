// Package engine implements alert synthesis: dedup, confluence scoring,
// regime classification and the emit/suppress decision state machine.
package engine

import (
	"sync"
	"time"

	"signal-synth/internal/models"
)

// Deduplicator suppresses near-identical repeated alerts via a hashed key
// and cooldown window.
type Deduplicator struct {
	cooldown time.Duration
	mu       sync.Mutex
	seen     map[models.DedupKey]time.Time

	// Observability counter, incremented on every suppression.
	suppressed uint64
}

// NewDeduplicator creates a deduplicator with the given cooldown window.
func NewDeduplicator(cooldown time.Duration) *Deduplicator {
	return &Deduplicator{
		cooldown: cooldown,
		seen:     make(map[models.DedupKey]time.Time),
	}
}

// Accept returns true if the alert's dedup key has not been seen within the
// cooldown window, recording the key. On rejection the only side effect is
// the suppressed counter.
func (d *Deduplicator) Accept(alert *models.Alert, now time.Time) bool {
	key := alert.Key()

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[key]; ok && now.Sub(last) < d.cooldown {
		d.suppressed++
		return false
	}
	d.seen[key] = now
	return true
}

// Sweep removes entries older than twice the cooldown to bound memory.
// Returns the number of entries removed.
func (d *Deduplicator) Sweep(now time.Time) int {
	cutoff := now.Add(-2 * d.cooldown)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, last := range d.seen {
		if last.Before(cutoff) {
			delete(d.seen, key)
			removed++
		}
	}
	return removed
}

// SuppressedCount returns how many alerts have been suppressed.
func (d *Deduplicator) SuppressedCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

// TrackedKeys returns the number of keys currently held.
func (d *Deduplicator) TrackedKeys() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
