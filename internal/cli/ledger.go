package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signal-synth/internal/models"
)

// newLedgerCmd creates the ledger audit command.
func newLedgerCmd(app *App) *cobra.Command {
	var (
		symbol string
		hours  int
	)

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Audit the alert and signal ledger",
		Long: `Prints ledger entries in insertion order: accepted alerts, emitted
signals with their delivery status, and session summaries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Ledger == nil {
				return fmt.Errorf("ledger unavailable")
			}

			window := time.Duration(hours) * time.Hour
			records, err := app.Ledger.QueryRecent(cmd.Context(), symbol, window)
			if err != nil {
				return fmt.Errorf("querying ledger: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return printRecordsJSON(cmd, records)
			}

			if len(records) == 0 {
				cmd.Println("No ledger entries in window.")
				return nil
			}

			for _, rec := range records {
				printRecord(cmd, rec)
			}
			cmd.Printf("\n%d entries\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "filter by symbol")
	cmd.Flags().IntVar(&hours, "hours", 24, "lookback window in hours")
	return cmd
}

func printRecord(cmd *cobra.Command, rec models.LedgerRecord) {
	ts := rec.Timestamp.Local().Format("01-02 15:04:05")
	switch rec.Kind {
	case models.RecordKindAlert:
		a := rec.Alert
		price := "-"
		if a != nil && a.PriceLevel != nil {
			price = fmt.Sprintf("%.2f", *a.PriceLevel)
		}
		conf := 0.0
		source := ""
		if a != nil {
			conf = a.Confidence
			source = string(a.Source)
		}
		cmd.Printf("[%s] ALERT   %-8s %-11s %-6s price=%-9s conf=%.2f\n",
			ts, rec.Symbol, source, directionOf(rec), price, conf)
	case models.RecordKindSignal:
		s := rec.Signal
		rationale := ""
		score := 0.0
		if s != nil {
			rationale = s.Rationale
			score = s.ConfluenceScore
		}
		cmd.Printf("[%s] SIGNAL  %-8s %-6s score=%.1f delivery=%s(%d) %s\n",
			ts, rec.Symbol, directionOf(rec), score, rec.Delivery, rec.Attempts, rationale)
		if rec.LastError != "" {
			cmd.Printf("    last error: %s\n", rec.LastError)
		}
	case models.RecordKindSummary:
		if rec.Summary != nil {
			cmd.Printf("[%s] SUMMARY %s accepted=%d emitted=%d delivered=%d failed=%d\n",
				ts, rec.Summary.Date, rec.Summary.AlertsAccepted,
				rec.Summary.SignalsEmitted, rec.Summary.Delivered, rec.Summary.Failed)
		}
	}
}

func directionOf(rec models.LedgerRecord) models.Direction {
	if rec.Alert != nil {
		return rec.Alert.Direction
	}
	if rec.Signal != nil {
		return rec.Signal.Direction
	}
	return models.DirectionNeutral
}

func printRecordsJSON(cmd *cobra.Command, records []models.LedgerRecord) error {
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
