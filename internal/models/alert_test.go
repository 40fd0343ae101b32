package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func validAlert(ts time.Time) *Alert {
	return &Alert{
		ID:         "a-1",
		Source:     SourcePriceLevel,
		Symbol:     "SPY",
		PriceLevel: ptr(685.34),
		Direction:  DirectionLong,
		Confidence: 0.85,
		Timestamp:  ts,
	}
}

func TestAlertValidate(t *testing.T) {
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	staleness := 15 * time.Minute

	tests := []struct {
		name    string
		mutate  func(*Alert)
		wantErr bool
	}{
		{"valid", func(a *Alert) {}, false},
		{"unknown source", func(a *Alert) { a.Source = "NEWS" }, true},
		{"missing symbol", func(a *Alert) { a.Symbol = "" }, true},
		{"unknown direction", func(a *Alert) { a.Direction = "UP" }, true},
		{"confidence above one", func(a *Alert) { a.Confidence = 1.2 }, true},
		{"negative confidence", func(a *Alert) { a.Confidence = -0.1 }, true},
		{"zero timestamp", func(a *Alert) { a.Timestamp = time.Time{} }, true},
		{"stale", func(a *Alert) { a.Timestamp = now.Add(-16 * time.Minute) }, true},
		{"just inside staleness", func(a *Alert) { a.Timestamp = now.Add(-14 * time.Minute) }, false},
		{"nil price level ok", func(a *Alert) { a.PriceLevel = nil }, false},
		{"neutral direction ok", func(a *Alert) { a.Direction = DirectionNeutral }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAlert(now.Add(-time.Minute))
			tt.mutate(a)
			err := a.Validate(now, staleness)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDedupKeyCollapsesNearIdenticalAlerts(t *testing.T) {
	now := time.Now()

	a := validAlert(now)
	b := validAlert(now.Add(3 * time.Minute))
	b.ID = "a-2"
	b.Confidence = 0.42

	// Same source, symbol, rounded level and direction: same key even
	// though ID, confidence and timestamp differ.
	assert.Equal(t, a.Key(), b.Key())

	// Sub-cent difference rounds onto the same key.
	c := validAlert(now)
	c.PriceLevel = ptr(685.341)
	assert.Equal(t, a.Key(), c.Key())

	// A cent apart is a different level.
	d := validAlert(now)
	d.PriceLevel = ptr(685.35)
	assert.NotEqual(t, a.Key(), d.Key())

	// Any single field change breaks the key.
	e := validAlert(now)
	e.Direction = DirectionShort
	assert.NotEqual(t, a.Key(), e.Key())

	f := validAlert(now)
	f.Source = SourceSentiment
	assert.NotEqual(t, a.Key(), f.Key())

	g := validAlert(now)
	g.Symbol = "QQQ"
	assert.NotEqual(t, a.Key(), g.Key())
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 685.34, RoundPrice(685.341))
	assert.Equal(t, 685.35, RoundPrice(685.349))
	assert.Equal(t, -685.35, RoundPrice(-685.349))
	assert.Equal(t, 0.0, RoundPrice(0.004))
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionShort, DirectionLong.Opposite())
	assert.Equal(t, DirectionLong, DirectionShort.Opposite())
	assert.Equal(t, DirectionNeutral, DirectionNeutral.Opposite())
}

func TestRegimeDirection(t *testing.T) {
	assert.Equal(t, DirectionLong, RegimeStrongUptrend.Direction())
	assert.Equal(t, DirectionLong, RegimeUptrend.Direction())
	assert.Equal(t, DirectionShort, RegimeDowntrend.Direction())
	assert.Equal(t, DirectionShort, RegimeStrongDowntrend.Direction())
	assert.Equal(t, DirectionNeutral, RegimeRange.Direction())

	assert.True(t, RegimeStrongUptrend.Strong())
	assert.True(t, RegimeStrongDowntrend.Strong())
	assert.False(t, RegimeUptrend.Strong())
	assert.False(t, RegimeRange.Strong())
}
