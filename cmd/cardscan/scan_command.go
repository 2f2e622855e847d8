package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cardscan/internal/scan"
	"cardscan/internal/textutil"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Identify, verify, and price a card photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(runCtx context.Context, a *app) error {
				outcome, err := a.coordinator.Scan(runCtx, img)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, outcome)
				}
				printOutcome(cmd, outcome)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the scan outcome as JSON")
	return cmd
}

func printOutcome(cmd *cobra.Command, outcome *scan.Outcome) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	ident := outcome.Identification

	rows := [][]string{
		{"Scan", outcome.ScanID},
		{"Status", colorizeStatus(outcome.Status, colorize)},
		{"Card", ident.BestName()},
		{"Set", textutil.DisplayTitle(ident.BestSetName())},
		{"Number", describeNumber(outcome)},
		{"Confidence", fmt.Sprintf("%d", ident.Confidence)},
		{"Model", describeRoute(outcome)},
		{"Cost", fmt.Sprintf("$%.4f", outcome.CostUSD)},
	}
	if ident.Rarity != "" {
		rows = append(rows, []string{"Rarity", ident.Rarity})
	}
	if quote := outcome.Pricing.Quote; quote != nil {
		rows = append(rows, []string{"Price", fmt.Sprintf("%s (%s, match %d)",
			formatMoney(quote.Value, quote.Currency), quote.Source, quote.MatchConfidence)})
	} else if outcome.Status == scan.StatusComplete {
		rows = append(rows, []string{"Price", "unavailable: " + outcome.Pricing.Reason})
	}

	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
}

func describeNumber(outcome *scan.Outcome) string {
	n := outcome.Number
	value := n.Number
	if value == "" {
		value = "(none)"
	}
	suffix := n.Reason
	if !n.Verified {
		suffix = "unverified: " + n.Reason
	}
	if n.Original != "" {
		return fmt.Sprintf("%s (was %s, %s)", value, n.Original, suffix)
	}
	return fmt.Sprintf("%s (%s)", value, suffix)
}

func describeRoute(outcome *scan.Outcome) string {
	ident := outcome.Identification
	switch {
	case ident.Cached:
		return ident.Model + " (cached)"
	case ident.Escalated:
		return ident.Model + " (escalated)"
	default:
		return ident.Model
	}
}
