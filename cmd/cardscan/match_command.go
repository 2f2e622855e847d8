package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cardscan/internal/imagehash"
	"cardscan/internal/refindex"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var count int

	cmd := &cobra.Command{
		Use:   "match <image>",
		Short: "Rank reference cards by perceptual distance, no model calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(_ context.Context, a *app) error {
				if a.index.Len() == 0 {
					return fmt.Errorf("reference index is empty; run `cardscan index build <manifest>` first")
				}
				triple := imagehash.FromImage(img)
				matches := a.index.Query(triple, count)
				if jsonOut {
					return writeJSON(cmd, matches)
				}
				printMatches(cmd, matches)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit matches as JSON")
	cmd.Flags().IntVarP(&count, "count", "n", refindex.DefaultMatchCount, "Number of matches to return")
	return cmd
}

func printMatches(cmd *cobra.Command, matches []refindex.Match) {
	rows := make([][]string, 0, len(matches))
	for i, match := range matches {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			match.Card.ID,
			match.Card.Name,
			fmt.Sprintf("%d", match.Distance),
			fmt.Sprintf("%d", match.Confidence),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"#", "ID", "Name", "Distance", "Confidence"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	))
}
