package indicators

import (
	"signal-synth/internal/models"
)

// VWAP computes the session volume-weighted average price. Points without
// volume fall back to an unweighted mean so thinly-sampled series still
// produce a reference.
func VWAP(series models.PriceSeries) (float64, error) {
	if len(series) == 0 {
		return 0, ErrInsufficientData
	}

	var pv, vol float64
	for _, p := range series {
		pv += p.Price * float64(p.Volume)
		vol += float64(p.Volume)
	}
	if vol == 0 {
		prices := make([]float64, len(series))
		for i, p := range series {
			prices[i] = p.Price
		}
		return mean(prices), nil
	}
	return pv / vol, nil
}
