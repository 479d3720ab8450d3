package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"videobillboard/internal/camera"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "映像入力デバイスを一覧表示する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			platform := newPlatform(cfg, logger)
			gate := camera.NewPermissionGate(platform, logger)
			resolver := camera.NewResolver(gate, platform, logger)

			devices, err := resolver.Devices(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, devices)
			}

			selected, _ := camera.SelectDevice(devices, cfg.Billboard.DeviceID)
			fmt.Fprintln(cmd.OutOrStdout(), renderDevices(devices, selected.DeviceID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSONで出力する")

	return cmd
}

func renderDevices(devices []camera.DeviceDescriptor, selectedID string) string {
	rows := make([][]string, 0, len(devices))
	for i, d := range devices {
		rear := ""
		if camera.IsRearFacing(d) {
			rear = "yes"
		}
		mark := ""
		if d.DeviceID == selectedID {
			mark = "*"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), mark, d.DeviceID, d.Label, rear})
	}

	return renderTable(
		[]string{"#", "SEL", "DEVICE ID", "LABEL", "REAR"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
