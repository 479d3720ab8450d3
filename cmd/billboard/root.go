package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "billboard",
		Short:         "カメラ映像ビルボードのコーディネーター",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "設定ファイルのパス (.yaml / .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "ログレベル (debug / info / warn / error)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newDevicesCommand(ctx))

	return rootCmd
}
