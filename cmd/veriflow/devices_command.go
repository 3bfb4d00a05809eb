package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veriflow/internal/camera"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := camera.ListDevices()
			if err != nil {
				return fmt.Errorf("list capture devices: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No capture devices found")
				return nil
			}

			rows := make([][]string, 0, len(devices))
			for _, device := range devices {
				rows = append(rows, []string{device.Path, device.Name, device.Facing()})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"PATH", "NAME", "FACING"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
