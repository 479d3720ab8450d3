package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"videobillboard/internal/camera"
	"videobillboard/internal/config"
	"videobillboard/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("設定の読み込みに失敗しました: %w", err)
			return
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.Log.Level = strings.ToLower(*c.logLevelFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// newPlatform は設定に応じたカメラプラットフォームを作る
func newPlatform(cfg *config.Config, logger *slog.Logger) camera.Platform {
	if cfg.Camera.Platform == config.PlatformMock {
		logger.Warn("using mock camera platform")
		return camera.NewMockPlatform(
			camera.VideoDevice("mock-front", "Mock Front Camera"),
			camera.VideoDevice("mock-back", "Mock Back Camera"),
		)
	}
	return camera.NewMediaDevicesPlatform(logger)
}
