package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signal-synth/internal/models"
	"signal-synth/pkg/utils"
)

// newStatusCmd creates the status command: a ledger-derived snapshot of the
// last session's activity plus the active gating thresholds.
func newStatusCmd(app *App) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine activity and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Ledger == nil {
				return fmt.Errorf("ledger unavailable")
			}

			window := time.Duration(hours) * time.Hour
			records, err := app.Ledger.QueryRecent(cmd.Context(), "", window)
			if err != nil {
				return fmt.Errorf("querying ledger: %w", err)
			}

			var alerts, signals, delivered, failed, pending int
			symbols := make(map[string]struct{})
			for _, rec := range records {
				switch rec.Kind {
				case models.RecordKindAlert:
					alerts++
					symbols[rec.Symbol] = struct{}{}
				case models.RecordKindSignal:
					signals++
					switch rec.Delivery {
					case models.DeliveryDelivered:
						delivered++
					case models.DeliveryFailed:
						failed++
					default:
						pending++
					}
				}
			}

			mh, err := utils.NewMarketHours(app.Config.MarketHours.Timezone,
				app.Config.MarketHours.Open, app.Config.MarketHours.Close)
			if err != nil {
				return err
			}
			marketState := "CLOSED"
			if mh.IsOpen(time.Now()) {
				marketState = "OPEN"
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				out, _ := json.MarshalIndent(map[string]interface{}{
					"window_hours":      hours,
					"market":            marketState,
					"alerts_accepted":   alerts,
					"signals_emitted":   signals,
					"delivered":         delivered,
					"failed":            failed,
					"pending":           pending,
					"symbols":           len(symbols),
					"ledger_path":       app.Config.Ledger.Path,
					"dedup_cooldown_s":  app.Config.Engine.DedupCooldownSeconds,
					"strong_threshold":  app.Config.Engine.StrongThreshold,
					"patience_hours":    app.Config.Engine.PatienceWindowHours,
				}, "", "  ")
				cmd.Println(string(out))
				return nil
			}

			cmd.Printf("Market: %s (%s %s-%s)\n", marketState,
				app.Config.MarketHours.Timezone, app.Config.MarketHours.Open, app.Config.MarketHours.Close)
			cmd.Printf("Last %dh: %d alerts accepted across %d symbols, %d signals emitted\n",
				hours, alerts, len(symbols), signals)
			cmd.Printf("Delivery: %d delivered, %d failed, %d pending\n", delivered, failed, pending)
			cmd.Printf("Ledger: %s\n", app.Config.Ledger.Path)
			cmd.Printf("Thresholds: exceptional=%.0f strong=%.0f patience=%.0f override=%.0f critical_mass=%d\n",
				app.Config.Engine.ExceptionalThreshold,
				app.Config.Engine.StrongThreshold,
				app.Config.Engine.PatienceThreshold,
				app.Config.Engine.RegimeOverrideThreshold,
				app.Config.Engine.CriticalMassCount)
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "lookback window in hours")
	return cmd
}
