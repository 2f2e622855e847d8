package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cardscan/internal/scan"
)

func newFeedbackCommand(ctx *commandContext) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "feedback <scan-id> <correct|incorrect|corrected>",
		Short: "Annotate a scan record with a verdict",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scanID, verdict := args[0], args[1]
			if verdict == scan.VerdictCorrected && label == "" {
				return fmt.Errorf("the corrected verdict requires --label with the right identification")
			}
			return ctx.withApp(cmd.Context(), func(runCtx context.Context, a *app) error {
				if err := a.coordinator.Feedback(runCtx, scanID, verdict, label); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s feedback for scan %s\n", verdict, scanID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Corrected identification, e.g. \"Raichu 026/025\"")
	return cmd
}
