package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"veriflow/internal/submission"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status [token]",
		Short: "Check the verification state of a submitted attempt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) > 0 {
				token = strings.TrimSpace(args[0])
			}
			if token == "" {
				tracker, err := ctx.openTracker()
				if err != nil {
					return err
				}
				token = strings.TrimSpace(tracker.Snapshot().Token)
			}
			if token == "" {
				return errors.New("no token given and no session token set; pass a token or set one with `veriflow session set --token`")
			}

			p, err := ctx.newPipeline(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			if !watch {
				status, err := p.orchestrator.Status(cmd.Context(), token)
				if err != nil {
					return err
				}
				printStatus(cmd, status)
				return nil
			}

			return p.orchestrator.Watch(cmd.Context(), token, func(status *submission.Status, err error) bool {
				if err != nil {
					fmt.Fprintf(out, "status check failed: %v\n", err)
					return true
				}
				printStatus(cmd, status)
				return pendingState(status.VerificationState)
			})
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Poll until the verification reaches a final state")
	return cmd
}

func printStatus(cmd *cobra.Command, status *submission.Status) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "State: %s\n", status.VerificationState)
	fmt.Fprintf(out, "Minutes elapsed: %d\n", status.MinutesElapsed)
}

// pendingState reports whether the backend is still working on the attempt.
func pendingState(state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "", "started", "pending", "processing", "in_progress":
		return true
	}
	return false
}
