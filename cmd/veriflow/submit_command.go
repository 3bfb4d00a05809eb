package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"veriflow/internal/services"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Upload the captured artifacts to the verification service",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.newPipeline(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			receipt, err := p.orchestrator.Submit(cmd.Context())
			if err != nil {
				details := services.Details(err)
				if message := strings.TrimSpace(details.Message); message != "" {
					fmt.Fprintln(out, message)
				}
				return err
			}

			fmt.Fprintln(out, "Submission accepted")
			fmt.Fprintf(out, "Tracking token: %s\n", receipt.TrackingToken)
			if receipt.Message != "" {
				fmt.Fprintln(out, receipt.Message)
			}
			fmt.Fprintf(out, "Check progress with `veriflow status %s`\n", receipt.TrackingToken)
			return nil
		},
	}
}
