package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-synth/internal/models"
)

var seriesStart = time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC)

func series(prices []float64, volume int64) models.PriceSeries {
	out := make(models.PriceSeries, len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{
			Timestamp: seriesStart.Add(time.Duration(i) * time.Minute),
			Price:     p,
			Volume:    volume,
		}
	}
	return out
}

func TestMomentum(t *testing.T) {
	s := series([]float64{100, 101, 102, 103, 104}, 1000)
	now := s.Last().Timestamp

	// Full window covers the whole series: (104-100)/100.
	m := NewMomentum(10 * time.Minute)
	got, err := m.Calculate(s, now)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got, 1e-9)

	// A tighter window only sees the tail.
	m = NewMomentum(2 * time.Minute)
	got, err = m.Calculate(s, now)
	require.NoError(t, err)
	assert.InDelta(t, (104.0-102.0)/102.0*100, got, 1e-9)

	_, err = m.Calculate(s[:1], now)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = NewMomentum(0).Calculate(s, now)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestPercentChange(t *testing.T) {
	s := series([]float64{100, 103}, 1000)

	got, err := PercentChange(s, 100)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got, 1e-9)

	_, err = PercentChange(nil, 100)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = PercentChange(s, 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestStructure(t *testing.T) {
	up := series([]float64{100, 99, 101, 100, 103, 102, 105, 104}, 1000)
	bias, err := Structure(up, 8)
	require.NoError(t, err)
	assert.Equal(t, StructureBullish, bias)

	down := series([]float64{105, 104, 103, 102, 101, 100, 99, 98}, 1000)
	bias, err = Structure(down, 8)
	require.NoError(t, err)
	assert.Equal(t, StructureBearish, bias)

	// Higher high but lower low reads flat.
	mixed := series([]float64{100, 95, 101, 99, 106, 90, 104, 100}, 1000)
	bias, err = Structure(mixed, 8)
	require.NoError(t, err)
	assert.Equal(t, StructureFlat, bias)

	_, err = Structure(up, 3)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = Structure(up[:4], 8)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestVWAP(t *testing.T) {
	s := models.PriceSeries{
		{Timestamp: seriesStart, Price: 100, Volume: 100},
		{Timestamp: seriesStart.Add(time.Minute), Price: 110, Volume: 300},
	}
	got, err := VWAP(s)
	require.NoError(t, err)
	assert.InDelta(t, (100.0*100+110.0*300)/400.0, got, 1e-9)

	// Zero volume degrades to a plain mean.
	got, err = VWAP(series([]float64{100, 110}, 0))
	require.NoError(t, err)
	assert.InDelta(t, 105.0, got, 1e-9)

	_, err = VWAP(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestATRProxy(t *testing.T) {
	// Constant 1% moves settle on 1%.
	prices := []float64{100}
	for i := 0; i < 20; i++ {
		prices = append(prices, prices[len(prices)-1]*1.01)
	}
	atr := NewATRProxy(14)
	got, err := atr.Current(series(prices, 1000))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 0.01)

	_, err = atr.Current(series(prices[:10], 1000))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = NewATRProxy(0).Current(series(prices, 1000))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
