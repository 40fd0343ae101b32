package indicators

import (
	"signal-synth/internal/models"
)

// ATRProxy computes a realized-volatility measure analogous to ATR for a
// sampled price series without OHLC bars: the Wilder-smoothed mean of
// absolute percent moves between consecutive points.
type ATRProxy struct {
	period int
}

// NewATRProxy creates a new ATR-like volatility measure.
func NewATRProxy(period int) *ATRProxy {
	return &ATRProxy{period: period}
}

// Calculate returns the smoothed absolute percent move, in percent. The
// last value of the returned slice is the current volatility estimate.
func (a *ATRProxy) Calculate(series models.PriceSeries) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(series) < a.period+1 {
		return nil, ErrInsufficientData
	}

	n := len(series)
	moves := make([]float64, n)
	for i := 1; i < n; i++ {
		prev := series[i-1].Price
		if prev == 0 {
			continue
		}
		moves[i] = abs(series[i].Price-prev) / prev * 100
	}

	result := make([]float64, n)

	// First value is a simple average, then Wilder smoothing.
	result[a.period] = mean(moves[1 : a.period+1])
	for i := a.period + 1; i < n; i++ {
		result[i] = (result[i-1]*float64(a.period-1) + moves[i]) / float64(a.period)
	}

	return result, nil
}

// Current is a convenience wrapper returning only the latest estimate.
func (a *ATRProxy) Current(series models.PriceSeries) (float64, error) {
	values, err := a.Calculate(series)
	if err != nil {
		return 0, err
	}
	return values[len(values)-1], nil
}
