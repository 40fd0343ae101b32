// Package cli provides the command-line interface for the synthesis engine.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-synth/internal/config"
	"signal-synth/internal/ledger"
	"signal-synth/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Ledger ledger.Ledger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	led, err := ledger.NewSQLiteLedger(cfg.Ledger.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open ledger, audit commands unavailable")
	} else {
		app.Ledger = led
		logger.Debug().Str("path", cfg.Ledger.Path).Msg("ledger opened")
	}

	rootCmd := &cobra.Command{
		Use:   "synth",
		Short: "Signal Synth - real-time alert synthesis engine",
		Long: `Signal Synth ingests raw trading alerts from multiple sources and
synthesizes them into a small number of high-conviction notifications.

Raw alerts are deduplicated, buffered per symbol, scored for confluence and
gated against the session regime before anything reaches a notifier. Every
accepted alert and every emitted signal lands on an append-only ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/signal-synth)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newLedgerCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("synth %s\n", Version)
		},
	}
}
