package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestConfigLoad はデフォルト設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout())
	assert.Zero(t, cfg.Server.WriteTimeout(), "WriteTimeout は 0（無効）が既定")
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout())

	assert.Empty(t, cfg.Billboard.DeviceID)
	assert.Equal(t, 4.0, cfg.Billboard.MinWidth)
	assert.Equal(t, 3.0, cfg.Billboard.MinHeight)
	assert.Equal(t, 10*time.Second, cfg.Billboard.ReadyTimeout())

	assert.Equal(t, PlatformMediaDevices, cfg.Camera.Platform)
	assert.True(t, cfg.Camera.Hotplug)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestConfigLoad_YAML(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "billboard.yaml", `
server:
  host: 127.0.0.1
  port: 9090
billboard:
  device_id: cam-1
  min_width: 8
camera:
  platform: mock
  hotplug: false
log:
  level: DEBUG
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.ServerAddress())
	assert.Equal(t, "cam-1", cfg.Billboard.DeviceID)
	assert.Equal(t, 8.0, cfg.Billboard.MinWidth)
	assert.Equal(t, 3.0, cfg.Billboard.MinHeight, "未指定の項目はデフォルトのまま")
	assert.Equal(t, PlatformMock, cfg.Camera.Platform)
	assert.False(t, cfg.Camera.Hotplug)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestConfigLoad_TOML(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "billboard.toml", `
[server]
port = 7070
read_timeout_seconds = 3

[billboard]
min_height = 2.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, 2.5, cfg.Billboard.MinHeight)
}

func TestConfigLoad_EnvOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "billboard.yaml", "server:\n  port: 9090\n")

	t.Setenv("BILLBOARD_SERVER_PORT", "9191")
	t.Setenv("BILLBOARD_ENTITY_DEVICE_ID", "env-cam")
	t.Setenv("BILLBOARD_CAMERA_HOTPLUG", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "env-cam", cfg.Billboard.DeviceID)
	assert.False(t, cfg.Camera.Hotplug)
}

func TestConfigLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BILLBOARD_LOG_LEVEL=warn\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("BILLBOARD_LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestConfigLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "billboard.json", "{}"))
	assert.ErrorContains(t, err, "未対応の設定ファイル形式")

	_, err = Load(writeFile(t, "broken.yaml", "server: [unterminated"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "invalid.yaml", "server:\n  port: 99999\n"))
	assert.ErrorContains(t, err, "無効なポート番号")
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:   "正常な設定",
			modify: func(c *Config) {},
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "負のタイムアウト",
			modify:    func(c *Config) { c.Server.ReadTimeoutSeconds = -1 },
			expectErr: true,
		},
		{
			name:      "最小幅が0",
			modify:    func(c *Config) { c.Billboard.MinWidth = 0 },
			expectErr: true,
		},
		{
			name:      "未対応のプラットフォーム",
			modify:    func(c *Config) { c.Camera.Platform = "v4l" },
			expectErr: true,
		},
		{
			name:      "無効なログレベル",
			modify:    func(c *Config) { c.Log.Level = "verbose" },
			expectErr: true,
		},
		{
			name:      "無効なログ形式",
			modify:    func(c *Config) { c.Log.Format = "xml" },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "localhost", Port: 8080}}
	assert.Equal(t, "localhost:8080", cfg.ServerAddress())
}
