package indicators

import (
	"signal-synth/internal/models"
)

// StructureBias summarizes the higher-high/higher-low pattern of a series.
type StructureBias int

const (
	StructureBearish StructureBias = -1
	StructureFlat    StructureBias = 0
	StructureBullish StructureBias = 1
)

// Structure compares the swing highs and lows of the first and second half
// of the lookback window. Higher highs and higher lows read bullish, lower
// highs and lower lows bearish, anything mixed is flat.
func Structure(series models.PriceSeries, lookback int) (StructureBias, error) {
	if lookback < 4 {
		return StructureFlat, ErrInvalidPeriod
	}
	if len(series) < lookback {
		return StructureFlat, ErrInsufficientData
	}

	window := series[len(series)-lookback:]
	mid := lookback / 2
	firstHigh, firstLow := extremes(window[:mid])
	secondHigh, secondLow := extremes(window[mid:])

	higherHigh := secondHigh > firstHigh
	higherLow := secondLow > firstLow
	lowerHigh := secondHigh < firstHigh
	lowerLow := secondLow < firstLow

	switch {
	case higherHigh && higherLow:
		return StructureBullish, nil
	case lowerHigh && lowerLow:
		return StructureBearish, nil
	default:
		return StructureFlat, nil
	}
}

func extremes(points models.PriceSeries) (high, low float64) {
	high = points[0].Price
	low = points[0].Price
	for _, p := range points[1:] {
		if p.Price > high {
			high = p.Price
		}
		if p.Price < low {
			low = p.Price
		}
	}
	return high, low
}
