package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"signal-synth/internal/engine"
	"signal-synth/internal/notify"
)

// newRunCmd creates the run command: the long-lived synthesis loop.
func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the synthesis engine",
		Long: `Starts the source pollers, the synthesis loop and the delivery
dispatcher, then blocks until interrupted. Shutdown drains in-flight
deliveries within the configured timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Ledger == nil {
				return fmt.Errorf("ledger unavailable, cannot run")
			}

			notifier := notify.NewMultiNotifier(&app.Config.Notifications)
			dispatcher := notify.NewDispatcher(notifier, app.Ledger, &app.Config.Notifications, app.Logger)

			orch, err := engine.NewOrchestrator(app.Config, app.Ledger, dispatcher, app.Logger)
			if err != nil {
				return fmt.Errorf("building orchestrator: %w", err)
			}

			for _, src := range orch.DefaultSources() {
				orch.AddSource(src)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := orch.Start(ctx); err != nil {
				return fmt.Errorf("starting orchestrator: %w", err)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				app.Logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
			case <-ctx.Done():
			}

			orch.Stop()
			return nil
		},
	}
}
