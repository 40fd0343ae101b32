package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"signal-synth/internal/config"
	"signal-synth/internal/models"
)

// emissionKey identifies a (symbol, direction) pair for cooldown tracking.
type emissionKey struct {
	symbol    string
	direction models.Direction
}

// levelKey identifies a (symbol, rounded price level) pair for the
// flip-flop guard.
type levelKey struct {
	symbol string
	level  float64
}

// DecisionEngine applies the ordered synthesis rules over a buffered
// window, its confluence and the current regime, deciding whether to emit a
// synthesized signal or suppress.
type DecisionEngine struct {
	cfg config.EngineConfig

	mu           sync.Mutex
	lastEmission map[emissionKey]time.Time
	lastByLevel  map[levelKey]emissionRecord
}

type emissionRecord struct {
	direction models.Direction
	at        time.Time
}

// NewDecisionEngine creates a decision engine.
func NewDecisionEngine(cfg config.EngineConfig) *DecisionEngine {
	return &DecisionEngine{
		cfg:          cfg,
		lastEmission: make(map[emissionKey]time.Time),
		lastByLevel:  make(map[levelKey]emissionRecord),
	}
}

// Decide evaluates the synthesis rules in order; the first match wins. On
// an emit decision it constructs the SynthesizedSignal, clears the window
// and records the emission for the cooldown and flip-flop guards.
func (e *DecisionEngine) Decide(window *BufferedWindow, confluence models.ConfluenceResult, regime models.RegimeState, now time.Time) models.Decision {
	if window.Len() == 0 {
		return models.Decision{Emit: false, Reason: "empty buffer"}
	}

	direction := window.MajorityDirection()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Rule 1: direction-gate veto.
	if GateBlocks(regime.Regime, direction, confluence.Score, e.cfg.RegimeOverrideThreshold) {
		return models.Decision{Emit: false, Reason: "regime conflict"}
	}

	// Rule 2: flip-flop guard, the same level emitted the opposite
	// direction too recently.
	if e.flippedRecently(window, direction, now) {
		return models.Decision{Emit: false, Reason: "direction flip too soon"}
	}

	// Rule 3: exceptional confluence.
	if confluence.Score >= e.cfg.ExceptionalThreshold {
		return e.emit(window, confluence, regime, direction, now, models.PriorityHigh,
			fmt.Sprintf("exceptional confluence %.1f", confluence.Score))
	}

	// Rule 4: strong confluence with corroboration.
	if confluence.Score >= e.cfg.StrongThreshold && window.Len() >= 3 {
		return e.emit(window, confluence, regime, direction, now, models.PriorityHigh,
			fmt.Sprintf("strong confluence %.1f with %d corroborating alerts", confluence.Score, window.Len()))
	}

	// Rule 5: critical mass overrides the score.
	if window.Len() >= e.cfg.CriticalMassCount {
		return e.emit(window, confluence, regime, direction, now, models.PriorityHigh,
			fmt.Sprintf("critical mass of %d alerts", window.Len()))
	}

	// Rule 6: patience window elapsed since the last same-direction emission.
	if confluence.Score >= e.cfg.PatienceThreshold && window.Len() >= 2 &&
		e.patienceElapsed(window.Symbol(), direction, now) {
		return e.emit(window, confluence, regime, direction, now, models.PriorityNormal,
			fmt.Sprintf("patience window elapsed, confluence %.1f", confluence.Score))
	}

	// Rule 7: suppress, with the state that led here for observability.
	return models.Decision{
		Emit:   false,
		Reason: fmt.Sprintf("below thresholds: confluence %.1f, buffer size %d", confluence.Score, window.Len()),
	}
}

// flippedRecently reports whether any buffered price level saw an
// opposite-direction emission within the flip guard window.
func (e *DecisionEngine) flippedRecently(window *BufferedWindow, direction models.Direction, now time.Time) bool {
	if direction == models.DirectionNeutral {
		return false
	}
	guard := time.Duration(e.cfg.FlipGuardSeconds) * time.Second
	for _, a := range window.Alerts() {
		if a.PriceLevel == nil {
			continue
		}
		key := levelKey{symbol: window.Symbol(), level: models.RoundPrice(*a.PriceLevel)}
		if rec, ok := e.lastByLevel[key]; ok &&
			rec.direction == direction.Opposite() &&
			now.Sub(rec.at) < guard {
			return true
		}
	}
	return false
}

// patienceElapsed reports whether the last (symbol, direction) emission is
// old enough for the patience rule. No prior emission counts as elapsed.
func (e *DecisionEngine) patienceElapsed(symbol string, direction models.Direction, now time.Time) bool {
	last, ok := e.lastEmission[emissionKey{symbol: symbol, direction: direction}]
	if !ok {
		return true
	}
	return now.Sub(last) >= time.Duration(e.cfg.PatienceWindowHours)*time.Hour
}

// emit constructs the signal, records the emission and clears the window.
// Caller holds e.mu.
func (e *DecisionEngine) emit(window *BufferedWindow, confluence models.ConfluenceResult, regime models.RegimeState, direction models.Direction, now time.Time, priority models.Priority, reason string) models.Decision {
	signal := &models.SynthesizedSignal{
		ID:                  uuid.NewString(),
		Symbol:              window.Symbol(),
		Direction:           direction,
		ConfluenceScore:     confluence.Score,
		RegimeAtEmission:    regime.Regime,
		Rationale:           reason,
		ConstituentAlertIDs: window.AlertIDs(),
		EmittedAt:           now,
	}

	e.lastEmission[emissionKey{symbol: window.Symbol(), direction: direction}] = now
	for _, a := range window.Alerts() {
		if a.PriceLevel == nil {
			continue
		}
		key := levelKey{symbol: window.Symbol(), level: models.RoundPrice(*a.PriceLevel)}
		e.lastByLevel[key] = emissionRecord{direction: direction, at: now}
	}

	window.Clear()

	return models.Decision{
		Emit:     true,
		Priority: priority,
		Reason:   reason,
		Signal:   signal,
	}
}

// LastEmission returns the most recent emission time for a (symbol,
// direction) pair, if any.
func (e *DecisionEngine) LastEmission(symbol string, direction models.Direction) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.lastEmission[emissionKey{symbol: symbol, direction: direction}]
	return t, ok
}

// RecordEmission seeds the emission state, used when reconstructing after a
// restart from ledger history.
func (e *DecisionEngine) RecordEmission(symbol string, direction models.Direction, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := emissionKey{symbol: symbol, direction: direction}
	if existing, ok := e.lastEmission[key]; !ok || at.After(existing) {
		e.lastEmission[key] = at
	}
}
