package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"veriflow/internal/camera"
	"veriflow/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the remaining capture stages and submit",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p, err := ctx.newPipeline(cmd.Context(), countdownPrinter(out))
			if err != nil {
				return err
			}
			defer p.Close()

			if !skipChecks {
				if err := reportHealth(cmd, p); err != nil {
					return err
				}
			}

			monitor := camera.NewMonitor(p.logger, func(evCtx context.Context, event camera.HotplugEvent) {
				p.logger.Info("camera hotplug event",
					logging.String("action", event.Action),
					logging.String("device", event.Device),
				)
			})
			if err := monitor.Start(cmd.Context()); err != nil {
				p.logger.Warn("hotplug monitor unavailable", logging.Error(err))
			}
			defer monitor.Stop()

			if err := p.wizard.Run(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, "Verification flow complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip stage readiness checks before running")
	return cmd
}

func reportHealth(cmd *cobra.Command, p *pipeline) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	var failing []string
	for _, check := range p.wizard.HealthChecks(cmd.Context()) {
		kind := statusOK
		message := ""
		if !check.Ready {
			kind = statusError
			message = check.Detail
			failing = append(failing, check.Name)
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, message, colorize))
	}
	if len(failing) > 0 {
		return fmt.Errorf("stages not ready: %s", strings.Join(failing, ", "))
	}
	return nil
}
