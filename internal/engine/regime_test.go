package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signal-synth/internal/config"
	"signal-synth/internal/models"
)

func testRegimeConfig() config.RegimeConfig {
	return config.RegimeConfig{
		ATRPeriod:             14,
		BaseChangeThreshold:   0.30,
		MomentumWindowMinutes: 30,
		MomentumThreshold:     0.15,
		SwingLookback:         20,
		OpeningWindowMinutes:  30,
		ClosingWindowMinutes:  30,
		OpeningMultiplier:     1.5,
		ClosingMultiplier:     0.75,
	}
}

// trendSeries builds a session series with a constant per-step drift.
func trendSeries(open float64, step float64, points int, start time.Time) models.PriceSeries {
	series := make(models.PriceSeries, points)
	price := open
	for i := 0; i < points; i++ {
		series[i] = models.PricePoint{
			Timestamp: start.Add(time.Duration(i) * 2 * time.Minute),
			Price:     price,
			Volume:    1000,
		}
		price += step
	}
	return series
}

func TestClassifyStrongUptrend(t *testing.T) {
	d := NewRegimeDetector(testRegimeConfig(), nil)
	start := time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC)
	series := trendSeries(100, 0.10, 31, start)
	now := series.Last().Timestamp

	state := d.Classify("SPY", series, 100, now)
	assert.Equal(t, models.RegimeStrongUptrend, state.Regime)
	assert.GreaterOrEqual(t, state.BullishFactorCount-state.BearishFactorCount, 4)
}

func TestClassifyStrongDowntrend(t *testing.T) {
	d := NewRegimeDetector(testRegimeConfig(), nil)
	start := time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC)
	series := trendSeries(100, -0.10, 31, start)
	now := series.Last().Timestamp

	state := d.Classify("SPY", series, 100, now)
	assert.Equal(t, models.RegimeStrongDowntrend, state.Regime)
}

func TestClassifyFlatSessionReadsRange(t *testing.T) {
	d := NewRegimeDetector(testRegimeConfig(), nil)
	start := time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC)
	series := trendSeries(100, 0, 31, start)
	now := series.Last().Timestamp

	state := d.Classify("SPY", series, 100, now)
	assert.Equal(t, models.RegimeRange, state.Regime)
	assert.Equal(t, 0, state.BullishFactorCount)
	assert.Equal(t, 0, state.BearishFactorCount)
}

func TestClassifyThinSeriesReadsRange(t *testing.T) {
	d := NewRegimeDetector(testRegimeConfig(), nil)
	now := time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC)

	// Factors that cannot be computed contribute no votes.
	state := d.Classify("SPY", nil, 0, now)
	assert.Equal(t, models.RegimeRange, state.Regime)
}

func TestStateCacheAndReset(t *testing.T) {
	d := NewRegimeDetector(testRegimeConfig(), nil)
	start := time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC)
	series := trendSeries(100, 0.10, 31, start)

	d.Classify("SPY", series, 100, series.Last().Timestamp)
	assert.Equal(t, models.RegimeStrongUptrend, d.State("SPY").Regime)

	// Unknown symbols read RANGE.
	assert.Equal(t, models.RegimeRange, d.State("QQQ").Regime)

	d.ResetSession()
	assert.Equal(t, models.RegimeRange, d.State("SPY").Regime)
}

func TestGateBlocks(t *testing.T) {
	tests := []struct {
		name       string
		regime     models.Regime
		direction  models.Direction
		confluence float64
		want       bool
	}{
		{"neutral regime never blocks", models.RegimeRange, models.DirectionLong, 10, false},
		{"neutral direction never blocked", models.RegimeStrongDowntrend, models.DirectionNeutral, 10, false},
		{"aligned direction passes", models.RegimeStrongUptrend, models.DirectionLong, 10, false},
		{"strong opposition blocked at any score", models.RegimeStrongDowntrend, models.DirectionLong, 100, true},
		{"strong opposition blocked short side", models.RegimeStrongUptrend, models.DirectionShort, 100, true},
		{"plain opposition below override blocked", models.RegimeDowntrend, models.DirectionLong, 89.9, true},
		{"plain opposition at override passes", models.RegimeDowntrend, models.DirectionLong, 90, false},
		{"plain opposition above override passes", models.RegimeUptrend, models.DirectionShort, 95, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GateBlocks(tt.regime, tt.direction, tt.confluence, 90)
			assert.Equal(t, tt.want, got)
		})
	}
}
