package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veriflow/internal/wizard"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a single capture stage",
	}

	captureCmd.AddCommand(newCaptureStageCommand(ctx, "front", "Photograph the front of the identity document"))
	captureCmd.AddCommand(newCaptureStageCommand(ctx, "back", "Photograph the back of the identity document"))
	captureCmd.AddCommand(newCaptureStageCommand(ctx, "face", "Record the face verification clip"))

	return captureCmd
}

func newCaptureStageCommand(ctx *commandContext, stageName, short string) *cobra.Command {
	return &cobra.Command{
		Use:   stageName,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p, err := ctx.newPipeline(cmd.Context(), countdownPrinter(out))
			if err != nil {
				return err
			}
			defer p.Close()

			handler, ok := p.stageFor(stageName)
			if !ok {
				return fmt.Errorf("unknown capture stage %q", stageName)
			}

			if err := wizard.Run(cmd.Context(), wizard.Options{
				Logger:    p.logger,
				Tracker:   p.tracker,
				Notifier:  p.notifier,
				Handler:   handler,
				StageName: stageName,
			}); err != nil {
				return err
			}

			fmt.Fprintf(out, "Captured %s\n", stageName)
			return nil
		},
	}
}
