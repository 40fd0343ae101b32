package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signal-synth/internal/models"
)

func TestBufferedWindowCapEviction(t *testing.T) {
	w := NewBufferedWindow("SPY", 3, time.Hour)
	now := time.Now()

	for i := 0; i < 5; i++ {
		w.Add(priceAlert(fmt.Sprintf("a-%d", i), "SPY", 600+float64(i), models.DirectionLong, now))
	}

	assert.Equal(t, 3, w.Len())
	// Oldest entries are dropped first.
	assert.Equal(t, []string{"a-2", "a-3", "a-4"}, w.AlertIDs())
}

func TestBufferedWindowAgeEviction(t *testing.T) {
	w := NewBufferedWindow("SPY", 20, 30*time.Minute)
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	w.Add(priceAlert("old-1", "SPY", 680, models.DirectionLong, now.Add(-45*time.Minute)))
	w.Add(priceAlert("old-2", "SPY", 681, models.DirectionLong, now.Add(-31*time.Minute)))
	w.Add(priceAlert("fresh", "SPY", 682, models.DirectionLong, now.Add(-5*time.Minute)))

	assert.Equal(t, 2, w.Evict(now))
	assert.Equal(t, []string{"fresh"}, w.AlertIDs())

	// Nothing further to evict.
	assert.Equal(t, 0, w.Evict(now))
}

func TestMajorityDirection(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		dirs []models.Direction
		want models.Direction
	}{
		{"empty", nil, models.DirectionNeutral},
		{"all long", []models.Direction{models.DirectionLong, models.DirectionLong}, models.DirectionLong},
		{"short majority", []models.Direction{models.DirectionShort, models.DirectionShort, models.DirectionLong}, models.DirectionShort},
		{"tie", []models.Direction{models.DirectionLong, models.DirectionShort}, models.DirectionNeutral},
		{"neutral does not vote", []models.Direction{models.DirectionNeutral, models.DirectionNeutral, models.DirectionLong}, models.DirectionLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewBufferedWindow("SPY", 20, time.Hour)
			for i, dir := range tt.dirs {
				w.Add(priceAlert(fmt.Sprintf("a-%d", i), "SPY", 685, dir, now))
			}
			assert.Equal(t, tt.want, w.MajorityDirection())
		})
	}
}

func TestClearAfterEmission(t *testing.T) {
	w := NewBufferedWindow("SPY", 20, time.Hour)
	w.Add(priceAlert("a-1", "SPY", 685, models.DirectionLong, time.Now()))
	assert.Equal(t, 1, w.Len())

	w.Clear()
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.AlertIDs())
}
