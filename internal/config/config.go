// Package config provides configuration management for the synthesis engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is immutable after Load;
// every numeric threshold used by the engine lives here and is injected at
// construction.
type Config struct {
	Engine        EngineConfig       `mapstructure:"engine"`
	Confluence    ConfluenceConfig   `mapstructure:"confluence"`
	Regime        RegimeConfig       `mapstructure:"regime"`
	Sources       SourcesConfig      `mapstructure:"sources"`
	MarketHours   MarketHoursConfig  `mapstructure:"market_hours"`
	Ledger        LedgerConfig       `mapstructure:"ledger"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// EngineConfig holds dedup, buffering and decision thresholds.
type EngineConfig struct {
	DedupCooldownSeconds    int     `mapstructure:"dedup_cooldown_seconds"`
	BufferMaxSize           int     `mapstructure:"buffer_max_size"`
	BufferMaxAgeSeconds     int     `mapstructure:"buffer_max_age_seconds"`
	FlipGuardSeconds        int     `mapstructure:"flip_guard_seconds"`
	ExceptionalThreshold    float64 `mapstructure:"exceptional_threshold"`
	StrongThreshold         float64 `mapstructure:"strong_threshold"`
	PatienceThreshold       float64 `mapstructure:"patience_threshold"`
	CriticalMassCount       int     `mapstructure:"critical_mass_count"`
	PatienceWindowHours     int     `mapstructure:"patience_window_hours"`
	RegimeOverrideThreshold float64 `mapstructure:"regime_override_threshold"`
	StalenessSeconds        int     `mapstructure:"staleness_seconds"`
	DebounceSeconds         int     `mapstructure:"debounce_seconds"`
	SynthesisTickSeconds    int     `mapstructure:"synthesis_tick_seconds"`
}

// ConfluenceConfig holds the scoring weights and recency decay. The weight
// defaults are illustrative starting points, not validated constants.
type ConfluenceConfig struct {
	ConfidenceWeight float64 `mapstructure:"confidence_weight"`
	AgreementWeight  float64 `mapstructure:"agreement_weight"`
	CountWeight      float64 `mapstructure:"count_weight"`
	HalfLifeSeconds  int     `mapstructure:"half_life_seconds"`
}

// RegimeConfig holds thresholds for the five regime factors.
type RegimeConfig struct {
	ATRPeriod              int     `mapstructure:"atr_period"`
	BaseChangeThreshold    float64 `mapstructure:"base_change_threshold"`    // percent from session open
	MomentumWindowMinutes  int     `mapstructure:"momentum_window_minutes"`  // short-window momentum
	MomentumThreshold      float64 `mapstructure:"momentum_threshold"`       // percent over the window
	SwingLookback          int     `mapstructure:"swing_lookback"`           // bars for HH/HL structure
	OpeningWindowMinutes   int     `mapstructure:"opening_window_minutes"`   // tighten thresholds here
	ClosingWindowMinutes   int     `mapstructure:"closing_window_minutes"`   // loosen thresholds here
	OpeningMultiplier      float64 `mapstructure:"opening_multiplier"`
	ClosingMultiplier      float64 `mapstructure:"closing_multiplier"`
}

// SourcesConfig holds the independent polling cadence per source type.
// A source with an empty endpoint is not started.
type SourcesConfig struct {
	PriceLevelIntervalSeconds int    `mapstructure:"price_level_interval_seconds"`
	MacroIntervalSeconds      int    `mapstructure:"macro_interval_seconds"`
	SentimentIntervalSeconds  int    `mapstructure:"sentiment_interval_seconds"`
	PollTimeoutSeconds        int    `mapstructure:"poll_timeout_seconds"`
	PriceLevelEndpoint        string `mapstructure:"price_level_endpoint"`
	MacroEndpoint             string `mapstructure:"macro_endpoint"`
	SentimentEndpoint         string `mapstructure:"sentiment_endpoint"`
}

// MarketHoursConfig holds the trading session gate.
type MarketHoursConfig struct {
	Timezone string `mapstructure:"timezone"`
	Open     string `mapstructure:"open"`  // "09:30"
	Close    string `mapstructure:"close"` // "16:00"
}

// LedgerConfig holds persistence configuration.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryInitialDelayMS int           `mapstructure:"retry_initial_delay_ms"`
	DrainTimeoutSeconds int           `mapstructure:"drain_timeout_seconds"`
	Webhook             WebhookConfig `mapstructure:"webhook"`
	Console             ConsoleConfig `mapstructure:"console"`
}

// WebhookConfig holds webhook channel configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// ConsoleConfig holds console channel configuration.
type ConsoleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signal-synth"
	}
	return filepath.Join(home, ".config", "signal-synth")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		// Missing file: run on defaults and drop a template for next time.
		if werr := createTemplateConfig(configDir); werr != nil {
			return nil, fmt.Errorf("writing config template: %w", werr)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.dedup_cooldown_seconds", 300)
	v.SetDefault("engine.buffer_max_size", 20)
	v.SetDefault("engine.buffer_max_age_seconds", 1800)
	v.SetDefault("engine.flip_guard_seconds", 600)
	v.SetDefault("engine.exceptional_threshold", 80.0)
	v.SetDefault("engine.strong_threshold", 70.0)
	v.SetDefault("engine.patience_threshold", 60.0)
	v.SetDefault("engine.critical_mass_count", 5)
	v.SetDefault("engine.patience_window_hours", 2)
	v.SetDefault("engine.regime_override_threshold", 90.0)
	v.SetDefault("engine.staleness_seconds", 900)
	v.SetDefault("engine.debounce_seconds", 2)
	v.SetDefault("engine.synthesis_tick_seconds", 30)

	v.SetDefault("confluence.confidence_weight", 0.45)
	v.SetDefault("confluence.agreement_weight", 0.35)
	v.SetDefault("confluence.count_weight", 0.20)
	v.SetDefault("confluence.half_life_seconds", 600)

	v.SetDefault("regime.atr_period", 14)
	v.SetDefault("regime.base_change_threshold", 0.30)
	v.SetDefault("regime.momentum_window_minutes", 30)
	v.SetDefault("regime.momentum_threshold", 0.15)
	v.SetDefault("regime.swing_lookback", 20)
	v.SetDefault("regime.opening_window_minutes", 30)
	v.SetDefault("regime.closing_window_minutes", 30)
	v.SetDefault("regime.opening_multiplier", 1.5)
	v.SetDefault("regime.closing_multiplier", 0.75)

	v.SetDefault("sources.price_level_interval_seconds", 15)
	v.SetDefault("sources.macro_interval_seconds", 300)
	v.SetDefault("sources.sentiment_interval_seconds", 60)
	v.SetDefault("sources.poll_timeout_seconds", 10)
	v.SetDefault("sources.price_level_endpoint", "")
	v.SetDefault("sources.macro_endpoint", "")
	v.SetDefault("sources.sentiment_endpoint", "")

	v.SetDefault("market_hours.timezone", "America/New_York")
	v.SetDefault("market_hours.open", "09:30")
	v.SetDefault("market_hours.close", "16:00")

	v.SetDefault("ledger.path", filepath.Join(DefaultConfigDir(), "ledger.db"))

	v.SetDefault("notifications.max_retries", 3)
	v.SetDefault("notifications.retry_initial_delay_ms", 500)
	v.SetDefault("notifications.drain_timeout_seconds", 15)
	v.SetDefault("notifications.webhook.enabled", false)
	v.SetDefault("notifications.console.enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYNTH_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
		cfg.Notifications.Webhook.Enabled = true
	}
	if v := os.Getenv("SYNTH_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	if v := os.Getenv("SYNTH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.DedupCooldownSeconds <= 0 {
		return fmt.Errorf("dedup_cooldown_seconds must be positive")
	}
	if c.Engine.BufferMaxSize <= 0 {
		return fmt.Errorf("buffer_max_size must be positive")
	}
	if c.Engine.BufferMaxAgeSeconds <= 0 {
		return fmt.Errorf("buffer_max_age_seconds must be positive")
	}
	if c.Engine.FlipGuardSeconds < 0 {
		return fmt.Errorf("flip_guard_seconds must be non-negative")
	}
	for name, v := range map[string]float64{
		"exceptional_threshold":     c.Engine.ExceptionalThreshold,
		"strong_threshold":          c.Engine.StrongThreshold,
		"patience_threshold":        c.Engine.PatienceThreshold,
		"regime_override_threshold": c.Engine.RegimeOverrideThreshold,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be between 0 and 100", name)
		}
	}
	if c.Engine.CriticalMassCount <= 0 {
		return fmt.Errorf("critical_mass_count must be positive")
	}
	wsum := c.Confluence.ConfidenceWeight + c.Confluence.AgreementWeight + c.Confluence.CountWeight
	if wsum <= 0 {
		return fmt.Errorf("confluence weights must sum to a positive value")
	}
	if c.Confluence.HalfLifeSeconds <= 0 {
		return fmt.Errorf("half_life_seconds must be positive")
	}
	if _, err := time.LoadLocation(c.MarketHours.Timezone); err != nil {
		return fmt.Errorf("invalid market_hours timezone %q: %w", c.MarketHours.Timezone, err)
	}
	if _, err := parseClock(c.MarketHours.Open); err != nil {
		return fmt.Errorf("invalid market_hours open: %w", err)
	}
	if _, err := parseClock(c.MarketHours.Close); err != nil {
		return fmt.Errorf("invalid market_hours close: %w", err)
	}
	if c.Notifications.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}

// parseClock parses an "HH:MM" time of day into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DedupCooldown returns the dedup cooldown as a duration.
func (c *Config) DedupCooldown() time.Duration {
	return time.Duration(c.Engine.DedupCooldownSeconds) * time.Second
}

// BufferMaxAge returns the buffer max age as a duration.
func (c *Config) BufferMaxAge() time.Duration {
	return time.Duration(c.Engine.BufferMaxAgeSeconds) * time.Second
}

// FlipGuard returns the flip-flop guard window as a duration.
func (c *Config) FlipGuard() time.Duration {
	return time.Duration(c.Engine.FlipGuardSeconds) * time.Second
}

// PatienceWindow returns the patience window as a duration.
func (c *Config) PatienceWindow() time.Duration {
	return time.Duration(c.Engine.PatienceWindowHours) * time.Hour
}

// Staleness returns the ingestion staleness threshold as a duration.
func (c *Config) Staleness() time.Duration {
	return time.Duration(c.Engine.StalenessSeconds) * time.Second
}
