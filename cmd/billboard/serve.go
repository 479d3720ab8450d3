package main

import (
	"github.com/spf13/cobra"

	"videobillboard/internal/camera"
	"videobillboard/internal/entity"
	"videobillboard/internal/events"
	"videobillboard/internal/logging"
	"videobillboard/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTPサーバーを起動する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// コマンドラインオプションで設定を上書き
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			platform := newPlatform(cfg, logger)
			gate := camera.NewPermissionGate(platform, logger)
			resolver := camera.NewResolver(gate, platform, logger)
			bus := events.NewBus(logger)

			defaults := entity.DefaultConfig()
			defaults.DeviceID = cfg.Billboard.DeviceID
			defaults.MinWidth = cfg.Billboard.MinWidth
			defaults.MinHeight = cfg.Billboard.MinHeight

			registry := entity.NewRegistry(resolver, bus, entity.Options{
				Defaults:     defaults,
				ReadyTimeout: cfg.Billboard.ReadyTimeout(),
			}, logger)
			defer registry.Close()

			if cfg.Camera.Hotplug {
				monitor := camera.NewHotplugMonitor(logger, registry.HandleHotplug)
				if err := monitor.Start(cmd.Context()); err != nil {
					return err
				}
				defer monitor.Stop()
			}

			srv, err := server.New(cfg, server.Deps{
				Registry: registry,
				Bus:      bus,
				Gate:     gate,
			}, logger)
			if err != nil {
				return err
			}

			logger.Info("video billboard server starting",
				logging.String("addr", cfg.ServerAddress()),
				logging.String("platform", cfg.Camera.Platform),
			)
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "サーバーのポート (デフォルト: 8080)")

	return cmd
}
