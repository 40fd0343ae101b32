package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"signal-synth/internal/errors"
	"signal-synth/internal/models"
)

// SQLiteLedger implements Ledger using SQLite in WAL mode. Records are
// append-only; the single permitted update is the delivery status of an
// already-persisted signal.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the ledger database.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	l := &SQLiteLedger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return l, nil
}

// initSchema creates the ledger table and indexes.
func (l *SQLiteLedger) initSchema() error {
	schema := `
	-- Append-only ledger of accepted alerts and synthesized signals.
	-- seq preserves insertion order across kinds.
	CREATE TABLE IF NOT EXISTS ledger_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		payload TEXT NOT NULL,
		delivery_status TEXT,
		attempts INTEGER DEFAULT 0,
		last_error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_symbol ON ledger_records(symbol);
	CREATE INDEX IF NOT EXISTS idx_ledger_timestamp ON ledger_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_ledger_kind ON ledger_records(kind);
	`

	_, err := l.db.Exec(schema)
	return err
}

// AppendAlert records a raw accepted alert.
func (l *SQLiteLedger) AppendAlert(ctx context.Context, alert *models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return errors.NewLedgerError("append_alert", alert.ID, err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO ledger_records (id, kind, symbol, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)`,
		alert.ID, string(models.RecordKindAlert), alert.Symbol, alert.Timestamp.UTC(), string(payload))
	if err != nil {
		return errors.NewLedgerError("append_alert", alert.ID, err)
	}
	return nil
}

// AppendSignal records a synthesized signal with a pending delivery status.
func (l *SQLiteLedger) AppendSignal(ctx context.Context, signal *models.SynthesizedSignal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return errors.NewLedgerError("append_signal", signal.ID, err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO ledger_records (id, kind, symbol, timestamp, payload, delivery_status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		signal.ID, string(models.RecordKindSignal), signal.Symbol, signal.EmittedAt.UTC(),
		string(payload), string(models.DeliveryPending))
	if err != nil {
		return errors.NewLedgerError("append_signal", signal.ID, err)
	}
	return nil
}

// AppendSummary records the end-of-session roll-up.
func (l *SQLiteLedger) AppendSummary(ctx context.Context, summary *models.SessionSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return errors.NewLedgerError("append_summary", summary.Date, err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO ledger_records (id, kind, symbol, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), string(models.RecordKindSummary), "", time.Now().UTC(), string(payload))
	if err != nil {
		return errors.NewLedgerError("append_summary", summary.Date, err)
	}
	return nil
}

// UpdateDeliveryStatus records the final notifier outcome for a signal.
// The signal payload itself is never modified.
func (l *SQLiteLedger) UpdateDeliveryStatus(ctx context.Context, signalID string, result models.DeliveryResult) error {
	status := models.DeliveryDelivered
	if !result.Success {
		status = models.DeliveryFailed
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE ledger_records
		SET delivery_status = ?, attempts = ?, last_error = ?
		WHERE id = ? AND kind = ?`,
		string(status), result.Attempts, result.LastError, signalID, string(models.RecordKindSignal))
	if err != nil {
		return errors.NewLedgerError("update_delivery", signalID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewLedgerError("update_delivery", signalID, fmt.Errorf("signal not found"))
	}
	return nil
}

// QueryRecent returns all entries for a symbol within the window, in
// insertion order. An empty symbol matches every symbol.
func (l *SQLiteLedger) QueryRecent(ctx context.Context, symbol string, window time.Duration) ([]models.LedgerRecord, error) {
	cutoff := time.Now().Add(-window).UTC()

	query := `
		SELECT id, kind, symbol, timestamp, payload, delivery_status, attempts, last_error
		FROM ledger_records
		WHERE timestamp >= ?`
	args := []interface{}{cutoff}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY seq ASC`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewLedgerError("query_recent", symbol, err)
	}
	defer rows.Close()

	var records []models.LedgerRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewLedgerError("query_recent", symbol, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentAlerts returns accepted alerts within the window, in insertion
// order, for cold-start buffer reconstruction.
func (l *SQLiteLedger) RecentAlerts(ctx context.Context, window time.Duration) ([]models.Alert, error) {
	records, err := l.queryKind(ctx, models.RecordKindAlert, window)
	if err != nil {
		return nil, err
	}

	alerts := make([]models.Alert, 0, len(records))
	for _, rec := range records {
		if rec.Alert != nil {
			alerts = append(alerts, *rec.Alert)
		}
	}
	return alerts, nil
}

// RecentSignals returns synthesized signals within the window, in
// insertion order.
func (l *SQLiteLedger) RecentSignals(ctx context.Context, window time.Duration) ([]models.SynthesizedSignal, error) {
	records, err := l.queryKind(ctx, models.RecordKindSignal, window)
	if err != nil {
		return nil, err
	}

	signals := make([]models.SynthesizedSignal, 0, len(records))
	for _, rec := range records {
		if rec.Signal != nil {
			signals = append(signals, *rec.Signal)
		}
	}
	return signals, nil
}

func (l *SQLiteLedger) queryKind(ctx context.Context, kind models.RecordKind, window time.Duration) ([]models.LedgerRecord, error) {
	cutoff := time.Now().Add(-window).UTC()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, kind, symbol, timestamp, payload, delivery_status, attempts, last_error
		FROM ledger_records
		WHERE kind = ? AND timestamp >= ?
		ORDER BY seq ASC`,
		string(kind), cutoff)
	if err != nil {
		return nil, errors.NewLedgerError("query_kind", string(kind), err)
	}
	defer rows.Close()

	var records []models.LedgerRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewLedgerError("query_kind", string(kind), err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (models.LedgerRecord, error) {
	var rec models.LedgerRecord
	var kind, payload string
	var delivery, lastError sql.NullString
	var attempts sql.NullInt64

	if err := rows.Scan(&rec.ID, &kind, &rec.Symbol, &rec.Timestamp, &payload, &delivery, &attempts, &lastError); err != nil {
		return rec, err
	}

	rec.Kind = models.RecordKind(kind)
	if delivery.Valid {
		rec.Delivery = models.DeliveryStatus(delivery.String)
	}
	rec.Attempts = int(attempts.Int64)
	rec.LastError = lastError.String

	switch rec.Kind {
	case models.RecordKindAlert:
		var alert models.Alert
		if err := json.Unmarshal([]byte(payload), &alert); err != nil {
			return rec, err
		}
		rec.Alert = &alert
	case models.RecordKindSignal:
		var signal models.SynthesizedSignal
		if err := json.Unmarshal([]byte(payload), &signal); err != nil {
			return rec, err
		}
		rec.Signal = &signal
	case models.RecordKindSummary:
		var summary models.SessionSummary
		if err := json.Unmarshal([]byte(payload), &summary); err != nil {
			return rec, err
		}
		rec.Summary = &summary
	}

	return rec, nil
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
