package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cardscan/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scan records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(runCtx context.Context, a *app) error {
				records, err := a.store.ListScanRecords(runCtx, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, records)
				}
				printHistory(cmd, records)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit records as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to list")
	return cmd
}

func printHistory(cmd *cobra.Command, records []store.ScanRecord) {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No scans recorded yet")
		return
	}
	colorize := shouldColorize(out)

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		name := record.CardNameEnglish
		if name == "" {
			name = record.CardName
		}
		price := ""
		if record.PriceValue > 0 {
			price = formatMoney(record.PriceValue, record.PriceCurrency)
		}
		feedback := record.FeedbackVerdict
		if record.FeedbackLabel != "" {
			feedback = fmt.Sprintf("%s (%s)", record.FeedbackVerdict, record.FeedbackLabel)
		}
		rows = append(rows, []string{
			record.CreatedAt.Local().Format(time.DateTime),
			record.ID,
			colorizeStatus(record.Status, colorize),
			name,
			record.CardNumber,
			fmt.Sprintf("%d", record.Confidence),
			price,
			feedback,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"When", "Scan", "Status", "Card", "Number", "Conf", "Price", "Feedback"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}
