package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signal-synth/internal/config"
	"signal-synth/internal/errors"
	"signal-synth/internal/ledger"
	"signal-synth/internal/logging"
	"signal-synth/internal/models"
	"signal-synth/pkg/utils"
)

// Dispatcher delivers signals off the synthesis path. Signals are queued
// after their ledger append and delivered with retries; the final outcome
// is written back to the ledger. A delivery failure never unwinds the
// emission itself.
type Dispatcher struct {
	notifier Notifier
	ledger   ledger.Ledger
	retryCfg utils.RetryConfig
	logger   zerolog.Logger

	queue chan *models.SynthesizedSignal
	wg    sync.WaitGroup

	drainTimeout time.Duration

	// sendMu serializes queue sends against the close in Stop; the
	// worker never takes it, so a full queue cannot deadlock delivery.
	sendMu  sync.Mutex
	stopped bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	delivered int
	failed    int
	started   bool
}

// NewDispatcher creates a dispatcher over the given notifier and ledger.
func NewDispatcher(notifier Notifier, led ledger.Ledger, cfg *config.NotificationConfig, logger zerolog.Logger) *Dispatcher {
	retryCfg := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryInitialDelayMS > 0 {
		retryCfg.InitialDelay = time.Duration(cfg.RetryInitialDelayMS) * time.Millisecond
	}

	drain := time.Duration(cfg.DrainTimeoutSeconds) * time.Second
	if drain <= 0 {
		drain = 10 * time.Second
	}

	return &Dispatcher{
		notifier:     notifier,
		ledger:       led,
		retryCfg:     retryCfg,
		logger:       logging.WithOperation(logger, "dispatch"),
		queue:        make(chan *models.SynthesizedSignal, 64),
		drainTimeout: drain,
	}
}

// Start launches the delivery worker. It must be called once. Deliveries
// run on a context detached from the caller's: cancelling the engine
// context must not abort attempts still draining during shutdown, so the
// delivery context is only cancelled by Stop once the drain window closes.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for signal := range d.queue {
			d.deliver(runCtx, signal)
		}
	}()
}

// Enqueue hands a signal to the delivery worker. The caller must have
// appended the signal to the ledger already. Returns ErrEngineStopped
// after Stop.
func (d *Dispatcher) Enqueue(signal *models.SynthesizedSignal) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	if d.stopped {
		return errors.ErrEngineStopped
	}

	d.queue <- signal
	return nil
}

// deliver runs the retry loop for one signal and records the outcome.
func (d *Dispatcher) deliver(ctx context.Context, signal *models.SynthesizedSignal) {
	attempts, err := utils.Retry(ctx, d.retryCfg, func() error {
		return d.notifier.Deliver(ctx, signal)
	})

	result := models.DeliveryResult{
		Success:  err == nil,
		Attempts: attempts,
	}
	if err != nil {
		result.LastError = err.Error()
	}

	d.mu.Lock()
	if result.Success {
		d.delivered++
	} else {
		d.failed++
	}
	d.mu.Unlock()

	logging.LogDelivery(d.logger, signal.ID, result.Success, result.Attempts, result.LastError)

	// The status update is best-effort; the signal itself is already on
	// the ledger.
	updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if uerr := d.ledger.UpdateDeliveryStatus(updateCtx, signal.ID, result); uerr != nil {
		d.logger.Error().Err(uerr).Str("signal_id", signal.ID).Msg("failed to record delivery status")
	}
}

// Stop closes the queue and waits for queued deliveries to drain, up to
// the drain timeout. Only then is the delivery context cancelled, cutting
// short whatever is still in flight.
func (d *Dispatcher) Stop() {
	d.sendMu.Lock()
	if d.stopped {
		d.sendMu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.sendMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.drainTimeout):
		d.logger.Warn().Msg("drain timeout elapsed with deliveries pending")
	}

	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stats reports delivered and failed counts since startup.
func (d *Dispatcher) Stats() (delivered, failed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delivered, d.failed
}
