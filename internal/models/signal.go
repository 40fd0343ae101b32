package models

import "time"

// Regime classifies the session-level directional state of a symbol.
type Regime string

const (
	RegimeStrongUptrend   Regime = "STRONG_UPTREND"
	RegimeUptrend         Regime = "UPTREND"
	RegimeRange           Regime = "RANGE"
	RegimeDowntrend       Regime = "DOWNTREND"
	RegimeStrongDowntrend Regime = "STRONG_DOWNTREND"
)

// Direction returns the directional bias the regime implies.
func (r Regime) Direction() Direction {
	switch r {
	case RegimeStrongUptrend, RegimeUptrend:
		return DirectionLong
	case RegimeStrongDowntrend, RegimeDowntrend:
		return DirectionShort
	default:
		return DirectionNeutral
	}
}

// Strong reports whether the regime is one of the STRONG_* classifications.
func (r Regime) Strong() bool {
	return r == RegimeStrongUptrend || r == RegimeStrongDowntrend
}

// RegimeState is the per-symbol regime snapshot, recomputed every tick and
// retained for the trading session only.
type RegimeState struct {
	Symbol             string
	Regime             Regime
	BullishFactorCount int
	BearishFactorCount int
	LastComputedAt     time.Time
}

// ConfluenceResult is the scored agreement of a buffered alert window.
// Derived alongside a decision, never persisted on its own.
type ConfluenceResult struct {
	Score      float64 // 0-100
	Bias       Direction
	Components map[string]float64
}

// Priority indicates how urgently a synthesized signal should be delivered.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
)

// Decision is the outcome of a synthesis check.
type Decision struct {
	Emit     bool
	Priority Priority
	Reason   string
	Signal   *SynthesizedSignal
}

// SynthesizedSignal is the single notification synthesized from a buffer of
// agreeing alerts. Immutable once persisted.
type SynthesizedSignal struct {
	ID                  string
	Symbol              string
	Direction           Direction
	ConfluenceScore     float64
	RegimeAtEmission    Regime
	Rationale           string
	ConstituentAlertIDs []string
	EmittedAt           time.Time
}

// DeliveryStatus tracks the notifier outcome for a persisted signal.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// DeliveryResult reports the outcome of a delivery attempt sequence.
type DeliveryResult struct {
	Success   bool
	Attempts  int
	LastError string
}

// RecordKind distinguishes the kinds of ledger entries.
type RecordKind string

const (
	RecordKindAlert   RecordKind = "ALERT"
	RecordKindSignal  RecordKind = "SIGNAL"
	RecordKindSummary RecordKind = "SUMMARY"
)

// SessionSummary is the end-of-session roll-up appended by the close job.
type SessionSummary struct {
	Date              string
	AlertsAccepted    uint64
	AlertsRejected    uint64
	AlertsSuppressed  uint64
	SignalsEmitted    uint64
	SignalsSuppressed uint64
	Delivered         int
	Failed            int
}

// LedgerRecord is one append-only ledger entry: a raw accepted alert, a
// synthesized signal with its delivery status, or a session summary.
type LedgerRecord struct {
	ID        string
	Kind      RecordKind
	Symbol    string
	Timestamp time.Time
	Alert     *Alert
	Signal    *SynthesizedSignal
	Summary   *SessionSummary
	Delivery  DeliveryStatus
	Attempts  int
	LastError string
}
