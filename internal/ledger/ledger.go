// Package ledger provides the durable append-only log of alerts and
// synthesis decisions.
package ledger

import (
	"context"
	"time"

	"signal-synth/internal/models"
)

// Ledger is the append-only log contract. Appends must not fail silently:
// a write failure breaks the durability contract and is surfaced as a
// fatal LedgerError by callers.
type Ledger interface {
	// AppendAlert records a raw accepted alert.
	AppendAlert(ctx context.Context, alert *models.Alert) error
	// AppendSignal records a synthesized signal with a pending delivery status.
	AppendSignal(ctx context.Context, signal *models.SynthesizedSignal) error
	// AppendSummary records the end-of-session roll-up.
	AppendSummary(ctx context.Context, summary *models.SessionSummary) error
	// UpdateDeliveryStatus records the final notifier outcome for a signal.
	UpdateDeliveryStatus(ctx context.Context, signalID string, result models.DeliveryResult) error
	// QueryRecent returns all entries for a symbol within the window, in
	// insertion order. An empty symbol matches every symbol.
	QueryRecent(ctx context.Context, symbol string, window time.Duration) ([]models.LedgerRecord, error)
	// RecentAlerts returns accepted alerts within the window for cold-start
	// buffer reconstruction, in insertion order.
	RecentAlerts(ctx context.Context, window time.Duration) ([]models.Alert, error)
	// RecentSignals returns synthesized signals within the window, in
	// insertion order.
	RecentSignals(ctx context.Context, window time.Duration) ([]models.SynthesizedSignal, error)

	Close() error
}
