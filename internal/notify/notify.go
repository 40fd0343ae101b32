// Package notify delivers synthesized signals to downstream channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"signal-synth/internal/config"
	"signal-synth/internal/models"
)

// Notifier defines the interface for delivering a synthesized signal.
// A non-nil error means the signal was not delivered on this attempt.
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, signal *models.SynthesizedSignal) error
	IsEnabled() bool
}

// MultiNotifier fans a signal out to multiple channels. Delivery counts
// as successful only if every enabled channel accepts it.
type MultiNotifier struct {
	channels []Notifier
	mu       sync.RWMutex
}

// NewMultiNotifier builds a MultiNotifier from the configured channels.
func NewMultiNotifier(cfg *config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]Notifier, 0),
	}

	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Console.Enabled {
		mn.channels = append(mn.channels, NewConsoleNotifier())
	}

	return mn
}

// AddChannel adds a delivery channel.
func (mn *MultiNotifier) AddChannel(ch Notifier) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Name returns the name of the notifier.
func (mn *MultiNotifier) Name() string {
	return "multi"
}

// IsEnabled reports whether at least one channel is enabled.
func (mn *MultiNotifier) IsEnabled() bool {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			return true
		}
	}
	return false
}

// Deliver sends the signal to all enabled channels.
func (mn *MultiNotifier) Deliver(ctx context.Context, signal *models.SynthesizedSignal) error {
	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Deliver(ctx, signal); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("delivery errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WebhookNotifier posts signals as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Deliver posts the signal via webhook.
func (w *WebhookNotifier) Deliver(ctx context.Context, signal *models.SynthesizedSignal) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"id":               signal.ID,
		"symbol":           signal.Symbol,
		"direction":        signal.Direction,
		"confluence_score": signal.ConfluenceScore,
		"regime":           signal.RegimeAtEmission,
		"rationale":        signal.Rationale,
		"alert_ids":        signal.ConstituentAlertIDs,
		"emitted_at":       signal.EmittedAt.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SignalSynth/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// ConsoleNotifier prints signals to stdout for interactive sessions.
type ConsoleNotifier struct {
	enabled bool
}

// NewConsoleNotifier creates a new ConsoleNotifier.
func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{enabled: true}
}

// Name returns the name of the notifier.
func (c *ConsoleNotifier) Name() string {
	return "console"
}

// IsEnabled returns whether the notifier is enabled.
func (c *ConsoleNotifier) IsEnabled() bool {
	return c.enabled
}

// Deliver prints the signal to stdout.
func (c *ConsoleNotifier) Deliver(ctx context.Context, signal *models.SynthesizedSignal) error {
	var emoji string
	switch signal.Direction {
	case models.DirectionLong:
		emoji = "📈"
	case models.DirectionShort:
		emoji = "📉"
	default:
		emoji = "🔔"
	}

	fmt.Printf("%s [%s] %s %s | confluence %.1f | regime %s\n    → %s\n",
		emoji,
		signal.EmittedAt.Format("15:04:05"),
		signal.Symbol,
		signal.Direction,
		signal.ConfluenceScore,
		signal.RegimeAtEmission,
		signal.Rationale,
	)
	return nil
}

// NoOpNotifier does nothing (for testing or disabled notifications).
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Name returns the name of the notifier.
func (n *NoOpNotifier) Name() string {
	return "noop"
}

// IsEnabled returns whether the notifier is enabled.
func (n *NoOpNotifier) IsEnabled() bool {
	return true
}

// Deliver does nothing.
func (n *NoOpNotifier) Deliver(ctx context.Context, signal *models.SynthesizedSignal) error {
	return nil
}
