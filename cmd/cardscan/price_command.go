package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cardscan/internal/pricing"
)

func newPriceCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Re-run pricing for the latest verified scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(runCtx context.Context, a *app) error {
				record, err := a.store.LatestVerifiedRecord(runCtx)
				if err != nil {
					return fmt.Errorf("no verified scan to price: %w", err)
				}
				name := record.CardNameEnglish
				if name == "" {
					name = record.CardName
				}
				setName := record.SetNameEnglish
				if setName == "" {
					setName = record.SetName
				}

				result := a.pricer.Resolve(runCtx, name, record.CardNumber, setName)
				if jsonOut {
					return writeJSON(cmd, result)
				}
				printPricing(cmd, record.ID, name, record.CardNumber, result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the pricing result as JSON")
	return cmd
}

func printPricing(cmd *cobra.Command, scanID, name, number string, result pricing.Result) {
	out := cmd.OutOrStdout()
	if result.Quote == nil {
		fmt.Fprintf(out, "No price for %s %s (scan %s): %s\n", name, number, scanID, result.Reason)
		return
	}
	q := result.Quote
	rows := [][]string{
		{"Scan", scanID},
		{"Card", fmt.Sprintf("%s %s", name, number)},
		{"Candidate", q.CandidateName},
		{"Price", formatMoney(q.Value, q.Currency)},
		{"Statistic", q.Source},
		{"Match score", fmt.Sprintf("%d", q.MatchConfidence)},
	}
	if q.FXRate != 0 {
		rows = append(rows, []string{"Native", formatMoney(q.NativeValue, q.NativeCurrency)})
		rows = append(rows, []string{"FX rate", fmt.Sprintf("%.4f", q.FXRate)})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
}
