package engine

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"signal-synth/internal/config"
	"signal-synth/internal/errors"
	"signal-synth/internal/ledger"
	"signal-synth/internal/logging"
	"signal-synth/internal/models"
	"signal-synth/internal/notify"
	"signal-synth/pkg/utils"
)

// Stats is a snapshot of engine counters since startup.
type Stats struct {
	AlertsAccepted    uint64
	AlertsRejected    uint64
	AlertsSuppressed  uint64
	SignalsEmitted    uint64
	SignalsSuppressed uint64
	SuppressReasons   map[string]uint64
	TrackedSymbols    int
	Delivered         int
	Failed            int
}

// Orchestrator wires the pipeline together: source pollers feed the ingest
// path, buffered windows are evaluated on a debounced cadence, and emitted
// signals flow through the ledger to the dispatcher. Source failures are
// isolated per source; a failing connector never stalls the others.
type Orchestrator struct {
	cfg        *config.Config
	logger     zerolog.Logger
	hours      *utils.MarketHours
	dedup      *Deduplicator
	scorer     *ConfluenceScorer
	regime     *RegimeDetector
	decider    *DecisionEngine
	ledger     ledger.Ledger
	dispatcher *notify.Dispatcher

	mu          sync.Mutex
	buffers     map[string]*BufferedWindow
	series      map[string]models.PriceSeries
	sessionOpen map[string]float64
	dirty       map[string]time.Time

	sources []Source
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	statsMu           sync.Mutex
	alertsAccepted    uint64
	alertsRejected    uint64
	alertsSuppressed  uint64
	signalsEmitted    uint64
	signalsSuppressed uint64
	suppressReasons   map[string]uint64
}

// NewOrchestrator builds the pipeline from configuration. The ledger and
// dispatcher are owned by the caller; the orchestrator owns everything else.
func NewOrchestrator(cfg *config.Config, led ledger.Ledger, dispatcher *notify.Dispatcher, logger zerolog.Logger) (*Orchestrator, error) {
	hours, err := utils.NewMarketHours(cfg.MarketHours.Timezone, cfg.MarketHours.Open, cfg.MarketHours.Close)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:             cfg,
		logger:          logging.WithOperation(logger, "orchestrator"),
		hours:           hours,
		dedup:           NewDeduplicator(cfg.DedupCooldown()),
		scorer:          NewConfluenceScorer(cfg.Confluence),
		regime:          NewRegimeDetector(cfg.Regime, hours),
		decider:         NewDecisionEngine(cfg.Engine),
		ledger:          led,
		dispatcher:      dispatcher,
		buffers:         make(map[string]*BufferedWindow),
		series:          make(map[string]models.PriceSeries),
		sessionOpen:     make(map[string]float64),
		dirty:           make(map[string]time.Time),
		suppressReasons: make(map[string]uint64),
		cron:            cron.New(cron.WithLocation(hours.Location)),
	}, nil
}

// AddSource registers a connector. Must be called before Start.
func (o *Orchestrator) AddSource(src Source) {
	o.sources = append(o.sources, src)
}

// DefaultSources builds the HTTP sources that have endpoints configured.
func (o *Orchestrator) DefaultSources() []Source {
	timeout := time.Duration(o.cfg.Sources.PollTimeoutSeconds) * time.Second
	var sources []Source
	if ep := o.cfg.Sources.PriceLevelEndpoint; ep != "" {
		sources = append(sources, NewHTTPSource("price_level", models.SourcePriceLevel, ep, timeout))
	}
	if ep := o.cfg.Sources.MacroEndpoint; ep != "" {
		sources = append(sources, NewHTTPSource("macro", models.SourceMacro, ep, timeout))
	}
	if ep := o.cfg.Sources.SentimentEndpoint; ep != "" {
		sources = append(sources, NewHTTPSource("sentiment", models.SourceSentiment, ep, timeout))
	}
	return sources
}

// Start rebuilds warm state from the ledger and launches the pollers, the
// synthesis loop and the session cron jobs.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if err := o.rebuild(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("cold-start rebuild incomplete, continuing with empty buffers")
	}

	o.dispatcher.Start(ctx)

	for _, src := range o.sources {
		o.wg.Add(1)
		go o.pollLoop(ctx, src, o.pollInterval(src.Type()))
	}

	o.wg.Add(1)
	go o.synthesisLoop(ctx)

	o.scheduleJobs()
	o.cron.Start()

	o.logger.Info().
		Int("sources", len(o.sources)).
		Str("session_open", o.cfg.MarketHours.Open).
		Str("session_close", o.cfg.MarketHours.Close).
		Msg("orchestrator started")
	return nil
}

// Stop cancels the loops, stops the cron scheduler and drains the
// dispatcher within its configured timeout.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	<-o.cron.Stop().Done()
	o.wg.Wait()
	o.dispatcher.Stop()

	o.logger.Info().Msg("orchestrator stopped")
}

// pollInterval returns the configured cadence for a source type.
func (o *Orchestrator) pollInterval(t models.AlertSource) time.Duration {
	var secs int
	switch t {
	case models.SourcePriceLevel:
		secs = o.cfg.Sources.PriceLevelIntervalSeconds
	case models.SourceMacro:
		secs = o.cfg.Sources.MacroIntervalSeconds
	case models.SourceSentiment:
		secs = o.cfg.Sources.SentimentIntervalSeconds
	default:
		secs = 60
	}
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// pollLoop polls a single source on its own ticker. Errors are logged and
// the next cycle proceeds; other sources are unaffected.
func (o *Orchestrator) pollLoop(ctx context.Context, src Source, interval time.Duration) {
	defer o.wg.Done()

	logger := logging.WithSource(o.logger, src.Name())
	timeout := time.Duration(o.cfg.Sources.PollTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			pollCtx, cancel := context.WithTimeout(ctx, timeout)
			alerts, err := src.Poll(pollCtx)
			cancel()

			logging.LogSourceTick(logger, src.Name(), len(alerts), time.Since(start), err)
			if err != nil {
				continue
			}

			for _, alert := range alerts {
				o.Ingest(alert, time.Now())
			}
		}
	}
}

// Ingest runs one alert through validation, the market-hours gate, dedup
// and buffering. Accepted alerts are appended to the ledger before they
// become visible to synthesis. Returns true if the alert was accepted.
func (o *Orchestrator) Ingest(alert *models.Alert, now time.Time) bool {
	logger := logging.WithSymbol(o.logger, alert.Symbol)

	if err := alert.Validate(now, o.cfg.Staleness()); err != nil {
		o.countRejected()
		logger.Debug().Err(err).Str("alert_id", alert.ID).Msg("alert rejected")
		return false
	}

	// Price-level alerts are session-bound; macro and sentiment flow
	// around the clock.
	if alert.Source == models.SourcePriceLevel && !o.hours.IsOpen(now) {
		o.countRejected()
		logger.Debug().Str("alert_id", alert.ID).Msg("price-level alert outside market hours")
		return false
	}

	if !o.dedup.Accept(alert, now) {
		o.countSuppressedDup()
		logger.Debug().Str("alert_id", alert.ID).Msg("duplicate alert suppressed")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.ledger.AppendAlert(ctx, alert); err != nil {
		// Durability contract: an alert that cannot be persisted must
		// not influence synthesis.
		o.countRejected()
		logger.Error().Err(errors.Wrap(err, errors.ErrLedgerWrite.Error())).
			Str("alert_id", alert.ID).Msg("ledger append failed, alert dropped")
		return false
	}

	o.mu.Lock()
	o.recordPriceLocked(alert, now)
	window, ok := o.buffers[alert.Symbol]
	if !ok {
		window = NewBufferedWindow(alert.Symbol, o.cfg.Engine.BufferMaxSize, o.cfg.BufferMaxAge())
		o.buffers[alert.Symbol] = window
	}
	window.Add(alert)
	o.dirty[alert.Symbol] = now
	o.mu.Unlock()

	o.countAccepted()
	logging.LogAlertAccepted(logger, alert.ID, string(alert.Source), alert.Symbol, string(alert.Direction), alert.Confidence)
	return true
}

// recordPriceLocked folds a priced alert into the intraday series and
// captures the session open on the first post-open observation.
func (o *Orchestrator) recordPriceLocked(alert *models.Alert, now time.Time) {
	if alert.PriceLevel == nil {
		return
	}

	point := models.PricePoint{Timestamp: alert.Timestamp, Price: *alert.PriceLevel}
	if alert.Volume != nil {
		point.Volume = *alert.Volume
	}
	o.series[alert.Symbol] = append(o.series[alert.Symbol], point)

	if _, ok := o.sessionOpen[alert.Symbol]; !ok && !alert.Timestamp.Before(o.hours.SessionOpen(now)) {
		o.sessionOpen[alert.Symbol] = *alert.PriceLevel
	}
}

// synthesisLoop drives debounced per-symbol evaluations plus a periodic
// sweep over every symbol with a non-empty buffer.
func (o *Orchestrator) synthesisLoop(ctx context.Context) {
	defer o.wg.Done()

	debounce := time.Duration(o.cfg.Engine.DebounceSeconds) * time.Second
	tickEvery := time.Duration(o.cfg.Engine.SynthesisTickSeconds) * time.Second
	if tickEvery <= 0 {
		tickEvery = 30 * time.Second
	}

	fast := time.NewTicker(time.Second)
	defer fast.Stop()
	full := time.NewTicker(tickEvery)
	defer full.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-fast.C:
			for _, symbol := range o.dueSymbols(now, debounce) {
				o.Synthesize(symbol, now)
			}
		case now := <-full.C:
			for _, symbol := range o.bufferedSymbols() {
				o.Synthesize(symbol, now)
			}
		}
	}
}

// dueSymbols drains the dirty set of symbols whose debounce has elapsed.
func (o *Orchestrator) dueSymbols(now time.Time, debounce time.Duration) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	var due []string
	for symbol, at := range o.dirty {
		if now.Sub(at) >= debounce {
			due = append(due, symbol)
			delete(o.dirty, symbol)
		}
	}
	return due
}

func (o *Orchestrator) bufferedSymbols() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	symbols := make([]string, 0, len(o.buffers))
	for symbol, window := range o.buffers {
		if window.Len() > 0 {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// Synthesize evaluates one symbol: evict stale alerts, score the window,
// classify the regime, run the decision rules and, on emit, persist then
// dispatch. Exported for the embedding/test path.
func (o *Orchestrator) Synthesize(symbol string, now time.Time) models.Decision {
	o.mu.Lock()
	window, ok := o.buffers[symbol]
	if !ok {
		o.mu.Unlock()
		return models.Decision{Reason: "no buffered alerts"}
	}
	window.Evict(now)
	series := o.series[symbol]
	openPrice := o.sessionOpen[symbol]

	confluence := o.scorer.Score(window, now)
	regimeState := o.regime.Classify(symbol, series, openPrice, now)
	decision := o.decider.Decide(window, confluence, regimeState, now)
	bufferLen := window.Len()
	o.mu.Unlock()

	logging.LogDecision(o.logger, symbol, decision.Emit, string(decision.Priority), decision.Reason, confluence.Score, bufferLen)

	if !decision.Emit {
		o.countSuppressed(decision.Reason)
		return decision
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.ledger.AppendSignal(ctx, decision.Signal); err != nil {
		// Never notify a signal the ledger did not accept.
		o.logger.Error().Err(errors.Wrap(err, errors.ErrLedgerWrite.Error())).
			Str("signal_id", decision.Signal.ID).Msg("signal append failed, delivery skipped")
		return decision
	}

	o.countEmitted()
	if err := o.dispatcher.Enqueue(decision.Signal); err != nil {
		o.logger.Error().Err(err).Str("signal_id", decision.Signal.ID).Msg("dispatch enqueue failed")
	}
	return decision
}

// rebuild restores warm state from the ledger after a restart: recent
// alerts reseed the dedup map and buffers, recent signals reseed the
// emission history behind the patience and flip rules.
func (o *Orchestrator) rebuild(ctx context.Context) error {
	alerts, err := o.ledger.RecentAlerts(ctx, o.cfg.BufferMaxAge())
	if err != nil {
		return err
	}

	now := time.Now()
	o.mu.Lock()
	for i := range alerts {
		alert := alerts[i]
		o.dedup.Accept(&alert, alert.Timestamp)
		if now.Sub(alert.Timestamp) > o.cfg.BufferMaxAge() {
			continue
		}
		o.recordPriceLocked(&alert, now)
		window, ok := o.buffers[alert.Symbol]
		if !ok {
			window = NewBufferedWindow(alert.Symbol, o.cfg.Engine.BufferMaxSize, o.cfg.BufferMaxAge())
			o.buffers[alert.Symbol] = window
		}
		window.Add(&alert)
	}
	rebuilt := len(o.buffers)
	o.mu.Unlock()

	signals, err := o.ledger.RecentSignals(ctx, o.cfg.PatienceWindow())
	if err != nil {
		return err
	}
	for i := range signals {
		o.decider.RecordEmission(signals[i].Symbol, signals[i].Direction, signals[i].EmittedAt)
	}

	o.logger.Info().
		Int("alerts", len(alerts)).
		Int("symbols", rebuilt).
		Int("signals", len(signals)).
		Msg("state rebuilt from ledger")
	return nil
}

// scheduleJobs registers the session-boundary cron jobs.
func (o *Orchestrator) scheduleJobs() {
	o.cron.AddFunc(utils.CronSpec(o.hours.OpenMinute), o.onSessionOpen)
	o.cron.AddFunc(utils.CronSpec(o.hours.CloseMinute), o.onSessionClose)
	o.cron.AddFunc("@every 5m", func() {
		removed := o.dedup.Sweep(time.Now())
		if removed > 0 {
			o.logger.Debug().Int("removed", removed).Msg("dedup sweep")
		}
	})
}

// onSessionOpen resets session-scoped state at the bell.
func (o *Orchestrator) onSessionOpen() {
	o.mu.Lock()
	o.series = make(map[string]models.PriceSeries)
	o.sessionOpen = make(map[string]float64)
	o.mu.Unlock()

	o.regime.ResetSession()
	o.logger.Info().Msg("session open, regime state reset")
}

// onSessionClose appends the session summary to the ledger.
func (o *Orchestrator) onSessionClose() {
	stats := o.Snapshot()
	summary := &models.SessionSummary{
		Date:              time.Now().In(o.hours.Location).Format("2006-01-02"),
		AlertsAccepted:    stats.AlertsAccepted,
		AlertsRejected:    stats.AlertsRejected,
		AlertsSuppressed:  stats.AlertsSuppressed,
		SignalsEmitted:    stats.SignalsEmitted,
		SignalsSuppressed: stats.SignalsSuppressed,
		Delivered:         stats.Delivered,
		Failed:            stats.Failed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.ledger.AppendSummary(ctx, summary); err != nil {
		o.logger.Error().Err(err).Msg("failed to append session summary")
		return
	}
	o.logger.Info().
		Uint64("accepted", summary.AlertsAccepted).
		Uint64("emitted", summary.SignalsEmitted).
		Msg("session summary recorded")
}

// Snapshot returns the current engine counters.
func (o *Orchestrator) Snapshot() Stats {
	o.statsMu.Lock()
	reasons := make(map[string]uint64, len(o.suppressReasons))
	for k, v := range o.suppressReasons {
		reasons[k] = v
	}
	stats := Stats{
		AlertsAccepted:    o.alertsAccepted,
		AlertsRejected:    o.alertsRejected,
		AlertsSuppressed:  o.alertsSuppressed,
		SignalsEmitted:    o.signalsEmitted,
		SignalsSuppressed: o.signalsSuppressed,
		SuppressReasons:   reasons,
	}
	o.statsMu.Unlock()

	o.mu.Lock()
	stats.TrackedSymbols = len(o.buffers)
	o.mu.Unlock()

	stats.Delivered, stats.Failed = o.dispatcher.Stats()
	return stats
}

func (o *Orchestrator) countAccepted() {
	o.statsMu.Lock()
	o.alertsAccepted++
	o.statsMu.Unlock()
}

func (o *Orchestrator) countRejected() {
	o.statsMu.Lock()
	o.alertsRejected++
	o.statsMu.Unlock()
}

func (o *Orchestrator) countSuppressedDup() {
	o.statsMu.Lock()
	o.alertsSuppressed++
	o.statsMu.Unlock()
}

func (o *Orchestrator) countEmitted() {
	o.statsMu.Lock()
	o.signalsEmitted++
	o.statsMu.Unlock()
}

func (o *Orchestrator) countSuppressed(reason string) {
	o.statsMu.Lock()
	o.signalsSuppressed++
	o.suppressReasons[reason]++
	o.statsMu.Unlock()
}
