package engine

import (
	"time"

	"signal-synth/internal/models"
)

// BufferedWindow is the per-symbol ordered sequence of recently accepted
// alerts, bounded by both a max count and a max age. Not safe for concurrent
// use on its own; the engine serializes access per symbol.
type BufferedWindow struct {
	symbol  string
	maxSize int
	maxAge  time.Duration
	alerts  []*models.Alert
}

// NewBufferedWindow creates an empty window for a symbol.
func NewBufferedWindow(symbol string, maxSize int, maxAge time.Duration) *BufferedWindow {
	return &BufferedWindow{
		symbol:  symbol,
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Add appends an alert, evicting the oldest entry if the window is full.
func (w *BufferedWindow) Add(alert *models.Alert) {
	w.alerts = append(w.alerts, alert)
	if len(w.alerts) > w.maxSize {
		w.alerts = w.alerts[len(w.alerts)-w.maxSize:]
	}
}

// Evict drops entries older than the max age. Returns the number evicted.
func (w *BufferedWindow) Evict(now time.Time) int {
	cutoff := now.Add(-w.maxAge)
	idx := 0
	for idx < len(w.alerts) && w.alerts[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		w.alerts = w.alerts[idx:]
	}
	return idx
}

// Clear empties the window. Called after a successful emission.
func (w *BufferedWindow) Clear() {
	w.alerts = nil
}

// Len returns the number of buffered alerts.
func (w *BufferedWindow) Len() int {
	return len(w.alerts)
}

// Symbol returns the window's symbol.
func (w *BufferedWindow) Symbol() string {
	return w.symbol
}

// Alerts returns the buffered alerts in insertion order. The returned slice
// is shared; callers must not mutate it.
func (w *BufferedWindow) Alerts() []*models.Alert {
	return w.alerts
}

// AlertIDs returns the IDs of the buffered alerts in insertion order.
func (w *BufferedWindow) AlertIDs() []string {
	ids := make([]string, len(w.alerts))
	for i, a := range w.alerts {
		ids[i] = a.ID
	}
	return ids
}

// MajorityDirection returns the direction held by the most buffered alerts.
// Ties and empty windows read NEUTRAL.
func (w *BufferedWindow) MajorityDirection() models.Direction {
	var long, short int
	for _, a := range w.alerts {
		switch a.Direction {
		case models.DirectionLong:
			long++
		case models.DirectionShort:
			short++
		}
	}
	switch {
	case long > short:
		return models.DirectionLong
	case short > long:
		return models.DirectionShort
	default:
		return models.DirectionNeutral
	}
}
