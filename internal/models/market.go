package models

import "time"

// PricePoint is one observation in a sampled intraday price series.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
	Volume    int64
}

// PriceSeries is an ordered (oldest first) sequence of price points for a
// single symbol within a trading session.
type PriceSeries []PricePoint

// Last returns the most recent point, or a zero value if the series is empty.
func (s PriceSeries) Last() PricePoint {
	if len(s) == 0 {
		return PricePoint{}
	}
	return s[len(s)-1]
}

// Since returns the suffix of the series at or after the cutoff.
func (s PriceSeries) Since(cutoff time.Time) PriceSeries {
	for i := range s {
		if !s[i].Timestamp.Before(cutoff) {
			return s[i:]
		}
	}
	return nil
}
