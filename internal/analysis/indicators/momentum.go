package indicators

import (
	"time"

	"signal-synth/internal/models"
)

// Momentum measures the percent price change over a trailing time window.
type Momentum struct {
	window time.Duration
}

// NewMomentum creates a momentum measure over the given trailing window.
func NewMomentum(window time.Duration) *Momentum {
	return &Momentum{window: window}
}

// Calculate returns the percent change from the first point inside the
// window to the latest point.
func (m *Momentum) Calculate(series models.PriceSeries, now time.Time) (float64, error) {
	if m.window <= 0 {
		return 0, ErrInvalidPeriod
	}
	recent := series.Since(now.Add(-m.window))
	if len(recent) < 2 {
		return 0, ErrInsufficientData
	}
	start := recent[0].Price
	if start == 0 {
		return 0, ErrInsufficientData
	}
	return (recent.Last().Price - start) / start * 100, nil
}

// PercentChange returns the percent change from a reference price to the
// latest point of the series.
func PercentChange(series models.PriceSeries, reference float64) (float64, error) {
	if len(series) == 0 || reference == 0 {
		return 0, ErrInsufficientData
	}
	return (series.Last().Price - reference) / reference * 100, nil
}
