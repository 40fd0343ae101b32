package engine

import (
	"sync"
	"time"

	"signal-synth/internal/analysis/indicators"
	"signal-synth/internal/config"
	"signal-synth/internal/models"
	"signal-synth/pkg/utils"
)

// RegimeDetector classifies the per-symbol market regime from intraday
// price features. States are recomputed on every orchestrator tick and
// retained for the trading session only.
type RegimeDetector struct {
	cfg   config.RegimeConfig
	hours *utils.MarketHours

	mu     sync.RWMutex
	states map[string]models.RegimeState
}

// NewRegimeDetector creates a regime detector.
func NewRegimeDetector(cfg config.RegimeConfig, hours *utils.MarketHours) *RegimeDetector {
	return &RegimeDetector{
		cfg:    cfg,
		hours:  hours,
		states: make(map[string]models.RegimeState),
	}
}

// Classify computes the regime for a symbol from its session price series
// and caches the result. Factors that cannot be computed (thin series)
// contribute a neutral vote rather than failing the classification.
func (d *RegimeDetector) Classify(symbol string, series models.PriceSeries, sessionOpenPrice float64, now time.Time) models.RegimeState {
	bull, bear := d.factorVotes(series, sessionOpenPrice, now)

	net := bull - bear
	var regime models.Regime
	switch {
	case net >= 4:
		regime = models.RegimeStrongUptrend
	case net >= 2:
		regime = models.RegimeUptrend
	case net <= -4:
		regime = models.RegimeStrongDowntrend
	case net <= -2:
		regime = models.RegimeDowntrend
	default:
		regime = models.RegimeRange
	}

	state := models.RegimeState{
		Symbol:             symbol,
		Regime:             regime,
		BullishFactorCount: bull,
		BearishFactorCount: bear,
		LastComputedAt:     now,
	}

	d.mu.Lock()
	d.states[symbol] = state
	d.mu.Unlock()

	return state
}

// factorVotes evaluates the five classification factors and returns the
// bullish and bearish vote counts.
func (d *RegimeDetector) factorVotes(series models.PriceSeries, sessionOpenPrice float64, now time.Time) (bull, bear int) {
	vote := func(v int) {
		if v > 0 {
			bull++
		} else if v < 0 {
			bear++
		}
	}

	tod := d.timeOfDayMultiplier(now)

	// Realized volatility widens the session-change threshold.
	var atr float64
	if v, err := indicators.NewATRProxy(d.cfg.ATRPeriod).Current(series); err == nil {
		atr = v
	}

	// Factor 1: percent change from session open vs volatility-scaled threshold.
	if change, err := indicators.PercentChange(series, sessionOpenPrice); err == nil {
		threshold := (d.cfg.BaseChangeThreshold + atr) * tod
		vote(sign(change, threshold))
	}

	// Factor 2: short-window momentum.
	window := time.Duration(d.cfg.MomentumWindowMinutes) * time.Minute
	if mom, err := indicators.NewMomentum(window).Calculate(series, now); err == nil {
		vote(sign(mom, d.cfg.MomentumThreshold*tod))
	}

	// Factor 3: higher-high/higher-low structure.
	if bias, err := indicators.Structure(series, d.cfg.SwingLookback); err == nil {
		vote(int(bias))
	}

	// Factor 4: position relative to session VWAP.
	if vwap, err := indicators.VWAP(series); err == nil && vwap > 0 {
		vote(sign(series.Last().Price-vwap, 0))
	}

	// Factor 5: session change retested against the time-of-day adjusted
	// base threshold alone. Tightened in the opening window this rarely
	// votes; loosened near the close it adds conviction to session drift.
	if change, err := indicators.PercentChange(series, sessionOpenPrice); err == nil {
		vote(sign(change, d.cfg.BaseChangeThreshold*tod))
	}

	return bull, bear
}

// timeOfDayMultiplier tightens thresholds in the opening window and loosens
// them in the closing window.
func (d *RegimeDetector) timeOfDayMultiplier(now time.Time) float64 {
	if d.hours == nil {
		return 1
	}
	if since := d.hours.MinutesSinceOpen(now); since >= 0 && since < d.cfg.OpeningWindowMinutes {
		return d.cfg.OpeningMultiplier
	}
	if until := d.hours.MinutesUntilClose(now); until >= 0 && until < d.cfg.ClosingWindowMinutes {
		return d.cfg.ClosingMultiplier
	}
	return 1
}

// sign votes +1 when v exceeds the threshold, -1 below its negation.
func sign(v, threshold float64) int {
	if v > threshold {
		return 1
	}
	if v < -threshold {
		return -1
	}
	return 0
}

// State returns the cached regime for a symbol. Unknown symbols read RANGE.
func (d *RegimeDetector) State(symbol string) models.RegimeState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if state, ok := d.states[symbol]; ok {
		return state
	}
	return models.RegimeState{Symbol: symbol, Regime: models.RegimeRange}
}

// ResetSession clears all cached states. Called at session boundaries.
func (d *RegimeDetector) ResetSession() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = make(map[string]models.RegimeState)
}

// GateBlocks applies the direction gate: a direction opposing a STRONG
// regime is blocked unconditionally; one opposing a plain trend is blocked
// unless confluence reaches the override threshold.
func GateBlocks(regime models.Regime, direction models.Direction, confluence, overrideThreshold float64) bool {
	regimeDir := regime.Direction()
	if regimeDir == models.DirectionNeutral || direction == models.DirectionNeutral {
		return false
	}
	if direction != regimeDir.Opposite() {
		return false
	}
	if regime.Strong() {
		return true
	}
	return confluence < overrideThreshold
}
