package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Signal Synth Configuration

[engine]
# Cooldown before an identical-key alert is accepted again (seconds)
dedup_cooldown_seconds = 300
# Maximum number of buffered alerts per symbol
buffer_max_size = 20
# Maximum age of a buffered alert before eviction (seconds)
buffer_max_age_seconds = 1800
# Block opposite-direction emissions at the same level within this window (seconds)
flip_guard_seconds = 600
# Confluence thresholds (0-100)
exceptional_threshold = 80.0
strong_threshold = 70.0
patience_threshold = 60.0
# Buffer size that forces an emission regardless of score
critical_mass_count = 5
# Hours since last emission before the patience rule applies
patience_window_hours = 2
# Confluence required to override a plain-trend regime conflict
regime_override_threshold = 90.0
# Alerts older than this are rejected at ingestion (seconds)
staleness_seconds = 900
# Minimum spacing between synthesis checks after buffer mutations (seconds)
debounce_seconds = 2
# Fixed periodic synthesis tick (seconds)
synthesis_tick_seconds = 30

[confluence]
# Component weights; these are empirically tuned starting points
confidence_weight = 0.45
agreement_weight = 0.35
count_weight = 0.20
# Recency decay half-life for buffered alerts (seconds)
half_life_seconds = 600

[regime]
atr_period = 14
# Percent change from session open considered directional (ATR-scaled)
base_change_threshold = 0.30
momentum_window_minutes = 30
momentum_threshold = 0.15
swing_lookback = 20
# Opening window tightens thresholds, closing window loosens them
opening_window_minutes = 30
closing_window_minutes = 30
opening_multiplier = 1.5
closing_multiplier = 0.75

[sources]
price_level_interval_seconds = 15
macro_interval_seconds = 300
sentiment_interval_seconds = 60
poll_timeout_seconds = 10
# HTTP endpoints returning pending alerts as JSON; empty disables the source
price_level_endpoint = ""
macro_endpoint = ""
sentiment_endpoint = ""

[market_hours]
timezone = "America/New_York"
open = "09:30"
close = "16:00"

[ledger]
# path = "/var/lib/signal-synth/ledger.db"

[notifications]
max_retries = 3
retry_initial_delay_ms = 500
drain_timeout_seconds = 15

[notifications.webhook]
enabled = false
url = ""

[notifications.console]
enabled = true

[logging]
level = "info"
file = true
`

// createTemplateConfig writes a commented config template so a first run
// leaves something editable behind.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(configTemplate), 0644)
}
