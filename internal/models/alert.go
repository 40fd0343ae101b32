// Package models provides domain models for the alert synthesis engine.
package models

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"
)

// AlertSource identifies the connector that produced an alert.
type AlertSource string

const (
	SourcePriceLevel AlertSource = "PRICE_LEVEL"
	SourceMacro      AlertSource = "MACRO"
	SourceSentiment  AlertSource = "SENTIMENT"
	SourceOther      AlertSource = "OTHER"
)

// Valid reports whether the source is one of the known connector types.
func (s AlertSource) Valid() bool {
	switch s {
	case SourcePriceLevel, SourceMacro, SourceSentiment, SourceOther:
		return true
	}
	return false
}

// Direction represents the directional bias of an alert or signal.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Valid reports whether the direction is a known value.
func (d Direction) Valid() bool {
	switch d {
	case DirectionLong, DirectionShort, DirectionNeutral:
		return true
	}
	return false
}

// Opposite returns the opposing direction. NEUTRAL has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionNeutral
	}
}

// Alert is a normalized event from a source connector. Immutable once created.
type Alert struct {
	ID         string
	Source     AlertSource
	Symbol     string
	PriceLevel *float64
	Volume     *int64
	Direction  Direction
	Confidence float64
	Timestamp  time.Time
}

// Validate enforces the inbound alert contract. Alerts that fail validation
// are rejected at the ingestion boundary and never enter the buffer.
func (a *Alert) Validate(now time.Time, staleness time.Duration) error {
	if !a.Source.Valid() {
		return fmt.Errorf("unknown source %q", a.Source)
	}
	if a.Symbol == "" {
		return fmt.Errorf("missing symbol")
	}
	if !a.Direction.Valid() {
		return fmt.Errorf("unknown direction %q", a.Direction)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0,1]", a.Confidence)
	}
	if a.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	if staleness > 0 && now.Sub(a.Timestamp) > staleness {
		return fmt.Errorf("alert is %s old, staleness limit %s", now.Sub(a.Timestamp), staleness)
	}
	return nil
}

// DedupKey identifies near-identical alerts for cooldown suppression.
type DedupKey uint64

// Key computes the dedup hash over (source, symbol, rounded price level,
// direction). Price levels are rounded to two decimals so that repeated
// touches of the same level collapse onto one key.
func (a *Alert) Key() DedupKey {
	h := fnv.New64a()
	h.Write([]byte(a.Source))
	h.Write([]byte{0})
	h.Write([]byte(a.Symbol))
	h.Write([]byte{0})
	if a.PriceLevel != nil {
		fmt.Fprintf(h, "%.2f", RoundPrice(*a.PriceLevel))
	}
	h.Write([]byte{0})
	h.Write([]byte(a.Direction))
	return DedupKey(h.Sum64())
}

// RoundPrice rounds a price level to two decimal places. Used both for dedup
// keys and for the flip-flop guard so that the two agree on what "the same
// level" means.
func RoundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}
