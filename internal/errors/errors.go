// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidAlert      = errors.New("invalid alert")
	ErrStaleAlert        = errors.New("stale alert")
	ErrDuplicateAlert    = errors.New("duplicate alert within cooldown")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrLedgerWrite       = errors.New("ledger write failed")
	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrMarketClosed      = errors.New("market is closed")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrEngineStopped     = errors.New("engine stopped")
)

// AlertError represents a rejection at the ingestion boundary.
type AlertError struct {
	Source string
	Symbol string
	Reason string
	Err    error
}

func (e *AlertError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("alert error [%s] %s: %s: %v", e.Source, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("alert error [%s] %s: %s", e.Source, e.Symbol, e.Reason)
}

func (e *AlertError) Unwrap() error {
	return e.Err
}

// NewAlertError creates a new AlertError.
func NewAlertError(source, symbol, reason string, err error) *AlertError {
	return &AlertError{
		Source: source,
		Symbol: symbol,
		Reason: reason,
		Err:    err,
	}
}

// LedgerError represents a failure of the durability contract. Treated as
// fatal by the orchestrator: the append-only ledger is the source of truth.
type LedgerError struct {
	Operation string
	RecordID  string
	Err       error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger error [%s] record %s: %v", e.Operation, e.RecordID, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError creates a new LedgerError.
func NewLedgerError(operation, recordID string, err error) *LedgerError {
	return &LedgerError{
		Operation: operation,
		RecordID:  recordID,
		Err:       err,
	}
}

// DeliveryError represents a notifier failure. Recoverable: retried per
// policy, then recorded as a failed-delivery status on the ledger entry.
type DeliveryError struct {
	SignalID string
	Channel  string
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error [%s] signal %s after %d attempts: %v", e.Channel, e.SignalID, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError creates a new DeliveryError.
func NewDeliveryError(signalID, channel string, attempts int, err error) *DeliveryError {
	return &DeliveryError{
		SignalID: signalID,
		Channel:  channel,
		Attempts: attempts,
		Err:      err,
	}
}

// SourceError represents a transient failure of a source connector's poll.
// The orchestrator skips the tick and retries on the next interval.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error [%s]: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new SourceError.
func NewSourceError(source string, err error) *SourceError {
	return &SourceError{
		Source: source,
		Err:    err,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
