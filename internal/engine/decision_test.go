package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-synth/internal/config"
	"signal-synth/internal/models"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		DedupCooldownSeconds:    300,
		BufferMaxSize:           20,
		BufferMaxAgeSeconds:     1800,
		FlipGuardSeconds:        600,
		ExceptionalThreshold:    80,
		StrongThreshold:         70,
		PatienceThreshold:       60,
		CriticalMassCount:       5,
		PatienceWindowHours:     2,
		RegimeOverrideThreshold: 90,
		StalenessSeconds:        900,
	}
}

func rangeRegime() models.RegimeState {
	return models.RegimeState{Symbol: "SPY", Regime: models.RegimeRange}
}

func confluenceOf(score float64, bias models.Direction) models.ConfluenceResult {
	return models.ConfluenceResult{Score: score, Bias: bias}
}

func longWindow(n int, now time.Time) *BufferedWindow {
	w := NewBufferedWindow("SPY", 20, 30*time.Minute)
	for i := 0; i < n; i++ {
		w.Add(priceAlert(fmt.Sprintf("a-%d", i), "SPY", 685.34, models.DirectionLong, now))
	}
	return w
}

func TestDecideEmptyBuffer(t *testing.T) {
	e := NewDecisionEngine(testEngineConfig())
	w := NewBufferedWindow("SPY", 20, 30*time.Minute)

	d := e.Decide(w, confluenceOf(0, models.DirectionNeutral), rangeRegime(), time.Now())
	assert.False(t, d.Emit)
	assert.Equal(t, "empty buffer", d.Reason)
}

func TestDecideExceptionalConfluence(t *testing.T) {
	e := NewDecisionEngine(testEngineConfig())
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	w := longWindow(2, now)

	d := e.Decide(w, confluenceOf(85.0, models.DirectionLong), rangeRegime(), now)
	require.True(t, d.Emit)
	assert.Equal(t, models.PriorityHigh, d.Priority)
	assert.Equal(t, "exceptional confluence 85.0", d.Reason)
	require.NotNil(t, d.Signal)
	assert.Equal(t, "SPY", d.Signal.Symbol)
	assert.Equal(t, models.DirectionLong, d.Signal.Direction)
	assert.Len(t, d.Signal.ConstituentAlertIDs, 2)
	// Emission clears the window.
	assert.Equal(t, 0, w.Len())
}

func TestDecideStrongWithCorroboration(t *testing.T) {
	e := NewDecisionEngine(testEngineConfig())
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	// Strong score but only two alerts: falls through to the patience
	// rule, which passes with no prior emission, at normal priority.
	d := e.Decide(longWindow(2, now), confluenceOf(72.0, models.DirectionLong), rangeRegime(), now)
	require.True(t, d.Emit)
	assert.Equal(t, models.PriorityNormal, d.Priority)
	assert.Equal(t, "patience window elapsed, confluence 72.0", d.Reason)

	// Three corroborating alerts hit the strong rule at high priority.
	e = NewDecisionEngine(testEngineConfig())
	d = e.Decide(longWindow(3, now), confluenceOf(72.0, models.DirectionLong), rangeRegime(), now)
	require.True(t, d.Emit)
	assert.Equal(t, models.PriorityHigh, d.Priority)
	assert.Equal(t, "strong confluence 72.0 with 3 corroborating alerts", d.Reason)

	// A long into an aligned uptrend is never gated: the strong rule
	// still fires and the signal carries the regime.
	e = NewDecisionEngine(testEngineConfig())
	uptrend := models.RegimeState{Symbol: "SPY", Regime: models.RegimeUptrend}
	d = e.Decide(longWindow(3, now), confluenceOf(72.0, models.DirectionLong), uptrend, now)
	require.True(t, d.Emit)
	assert.Equal(t, models.PriorityHigh, d.Priority)
	assert.Equal(t, "strong confluence 72.0 with 3 corroborating alerts", d.Reason)
	assert.Equal(t, models.RegimeUptrend, d.Signal.RegimeAtEmission)
}

func TestDecideCriticalMassBeatsModestScore(t *testing.T) {
	e := NewDecisionEngine(testEngineConfig())
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	// Five agreeing alerts whose decayed score sits below the strong
	// threshold: the critical-mass rule fires.
	d := e.Decide(longWindow(5, now), confluenceOf(64.3, models.DirectionLong), rangeRegime(), now)
	require.True(t, d.Emit)
	assert.Equal(t, models.PriorityHigh, d.Priority)
	assert.Equal(t, "critical mass of 5 alerts", d.Reason)
}

func TestDecideSingleAlertBelowThresholds(t *testing.T) {
	e := NewDecisionEngine(testEngineConfig())
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	w := longWindow(1, now)

	d := e.Decide(w, confluenceOf(55.0, models.DirectionLong), rangeRegime(), now)
	assert.False(t, d.Emit)
	assert.Equal(t, "below thresholds: confluence 55.0, buffer size 1", d.Reason)
	// Suppression leaves the buffer intact.
	assert.Equal(t, 1, w.Len())
}

func TestDecidePatienceWindow(t *testing.T) {
	e := NewDecisionEngine(testEngineConfig())
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	// First emission in this direction: patience counts as elapsed.
	d := e.Decide(longWindow(2, now), confluenceOf(65.0, models.DirectionLong), rangeRegime(), now)
	require.True(t, d.Emit)
	assert.Equal(t, models.PriorityNormal, d.Priority)

	// Same direction again shortly after: patience not yet elapsed.
	d = e.Decide(longWindow(2, now), confluenceOf(65.0, models.DirectionLong), rangeRegime(), now.Add(10*time.Minute))
	assert.False(t, d.Emit)

	// Two hours later the rule applies again.
	d = e.Decide(longWindow(2, now.Add(2*time.Hour)), confluenceOf(65.0, models.DirectionLong), rangeRegime(), now.Add(2*time.Hour))
	assert.True(t, d.Emit)
}

func TestDecideFlipGuard(t *testing.T) {
	e := NewDecisionEngine(testEngineConfig())
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	// Emit LONG at 685.34.
	d := e.Decide(longWindow(2, now), confluenceOf(85.0, models.DirectionLong), rangeRegime(), now)
	require.True(t, d.Emit)

	shortWindow := func(ts time.Time) *BufferedWindow {
		w := NewBufferedWindow("SPY", 20, 30*time.Minute)
		w.Add(priceAlert("s-1", "SPY", 685.34, models.DirectionShort, ts))
		w.Add(priceAlert("s-2", "SPY", 685.34, models.DirectionShort, ts))
		return w
	}

	// Opposite direction at the same level inside the guard is blocked
	// even at exceptional confluence.
	d = e.Decide(shortWindow(now), confluenceOf(95.0, models.DirectionShort), rangeRegime(), now.Add(5*time.Minute))
	assert.False(t, d.Emit)
	assert.Equal(t, "direction flip too soon", d.Reason)

	// Once the guard elapses the flip is allowed.
	later := now.Add(11 * time.Minute)
	d = e.Decide(shortWindow(later), confluenceOf(95.0, models.DirectionShort), rangeRegime(), later)
	assert.True(t, d.Emit)
}

func TestDecideRegimeGate(t *testing.T) {
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	strongDown := models.RegimeState{Symbol: "SPY", Regime: models.RegimeStrongDowntrend}
	plainDown := models.RegimeState{Symbol: "SPY", Regime: models.RegimeDowntrend}

	// STRONG opposition is blocked no matter the score.
	e := NewDecisionEngine(testEngineConfig())
	d := e.Decide(longWindow(5, now), confluenceOf(99.0, models.DirectionLong), strongDown, now)
	assert.False(t, d.Emit)
	assert.Equal(t, "regime conflict", d.Reason)

	// Plain-trend opposition below the override threshold is blocked.
	e = NewDecisionEngine(testEngineConfig())
	d = e.Decide(longWindow(5, now), confluenceOf(89.9, models.DirectionLong), plainDown, now)
	assert.False(t, d.Emit)
	assert.Equal(t, "regime conflict", d.Reason)

	// At the override threshold it passes through to the emit rules.
	e = NewDecisionEngine(testEngineConfig())
	d = e.Decide(longWindow(5, now), confluenceOf(90.0, models.DirectionLong), plainDown, now)
	assert.True(t, d.Emit)

	// Trend-aligned direction is never gated.
	e = NewDecisionEngine(testEngineConfig())
	d = e.Decide(longWindow(5, now), confluenceOf(50.0, models.DirectionLong),
		models.RegimeState{Symbol: "SPY", Regime: models.RegimeStrongUptrend}, now)
	assert.True(t, d.Emit)
}

func TestRecordEmissionSeedsPatience(t *testing.T) {
	e := NewDecisionEngine(testEngineConfig())
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	e.RecordEmission("SPY", models.DirectionLong, now.Add(-30*time.Minute))

	// Patience has not elapsed since the seeded emission.
	d := e.Decide(longWindow(2, now), confluenceOf(65.0, models.DirectionLong), rangeRegime(), now)
	assert.False(t, d.Emit)

	last, ok := e.LastEmission("SPY", models.DirectionLong)
	assert.True(t, ok)
	assert.Equal(t, now.Add(-30*time.Minute), last)
}

// A window opposing a STRONG regime never emits, whatever the confluence
// score or buffer size.
func TestProperty_StrongRegimeOppositionNeverEmits(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	scoreGen := gen.Float64Range(0, 100)
	sizeGen := gen.IntRange(1, 20)
	downGen := gen.Bool()

	properties.Property("strong opposition is vetoed unconditionally", prop.ForAll(
		func(score float64, size int, strongDown bool) bool {
			e := NewDecisionEngine(testEngineConfig())
			now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

			regime := models.RegimeStrongUptrend
			dir := models.DirectionShort
			if strongDown {
				regime = models.RegimeStrongDowntrend
				dir = models.DirectionLong
			}

			w := NewBufferedWindow("SPY", 20, 30*time.Minute)
			for i := 0; i < size; i++ {
				w.Add(priceAlert(fmt.Sprintf("a-%d", i), "SPY", 685.34, dir, now))
			}

			d := e.Decide(w, confluenceOf(score, dir),
				models.RegimeState{Symbol: "SPY", Regime: regime}, now)
			return !d.Emit && d.Reason == "regime conflict"
		},
		scoreGen, sizeGen, downGen,
	))

	properties.TestingRun(t)
}
