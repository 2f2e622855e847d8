package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cardscan/internal/refindex"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Reference index utilities",
	}

	indexCmd.AddCommand(newIndexBuildCommand(ctx))
	indexCmd.AddCommand(newIndexStatusCommand(ctx))

	return indexCmd
}

func newIndexBuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "build <manifest>",
		Short: "Fingerprint reference images from a manifest and persist the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := refindex.LoadManifest(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(runCtx context.Context, a *app) error {
				idx := refindex.New()
				builder := refindex.NewBuilder(nil, a.logger)
				result, err := builder.Build(runCtx, idx, entries)
				if err != nil {
					return err
				}
				if err := a.store.ReplaceReferenceCards(runCtx, idx.Cards()); err != nil {
					return fmt.Errorf("persist reference cards: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d reference cards (%d skipped)\n",
					result.Built, result.Skipped)
				return nil
			})
		},
	}
}

func newIndexStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show reference index and cache counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(runCtx context.Context, a *app) error {
				cacheSize, err := a.store.CacheSize(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, [][]string{
					{"Database", a.store.Path()},
					{"Reference cards", fmt.Sprintf("%d", a.index.Len())},
					{"Cached scans", fmt.Sprintf("%d", cacheSize)},
				}, nil))
				return nil
			})
		},
	}
}
