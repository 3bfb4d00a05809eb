package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	artifactsCmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect or clear captured artifacts",
	}

	artifactsCmd.AddCommand(newArtifactsListCommand(ctx))
	artifactsCmd.AddCommand(newArtifactsClearCommand(ctx))

	return artifactsCmd
}

func newArtifactsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List captured artifacts awaiting submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No artifacts captured")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, summary := range summaries {
				rows = append(rows, []string{
					string(summary.Key),
					summary.ContentType,
					formatBytes(summary.Size),
					summary.UpdatedAt.Local().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"KEY", "TYPE", "SIZE", "UPDATED"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newArtifactsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all captured artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No artifacts to clear")
				return nil
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared %d artifact(s)\n", len(summaries))
			return nil
		},
	}
}
