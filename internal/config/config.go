package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数による上書きの接頭辞
const EnvPrefix = "billboard"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server" envconfig:"server"`
	Billboard BillboardConfig `yaml:"billboard" toml:"billboard" envconfig:"entity"`
	Camera    CameraConfig    `yaml:"camera" toml:"camera" envconfig:"camera"`
	Log       LogConfig       `yaml:"log" toml:"log" envconfig:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" toml:"host" envconfig:"host"` // リッスンするホスト
	Port int    `yaml:"port" toml:"port" envconfig:"port"` // リッスンするポート番号

	// タイムアウト設定（秒）。0 は無効
	ReadTimeoutSeconds     int `yaml:"read_timeout_seconds" toml:"read_timeout_seconds" envconfig:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `yaml:"write_timeout_seconds" toml:"write_timeout_seconds" envconfig:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds" envconfig:"shutdown_timeout_seconds"`
}

// BillboardConfig は新しいエンティティの既定値
type BillboardConfig struct {
	DeviceID            string  `yaml:"device_id" toml:"device_id" envconfig:"device_id"` // 空なら背面カメラを推定
	MinWidth            float64 `yaml:"min_width" toml:"min_width" envconfig:"min_width"`
	MinHeight           float64 `yaml:"min_height" toml:"min_height" envconfig:"min_height"`
	ReadyTimeoutSeconds int     `yaml:"ready_timeout_seconds" toml:"ready_timeout_seconds" envconfig:"ready_timeout_seconds"`
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Platform string `yaml:"platform" toml:"platform" envconfig:"platform"` // mediadevices または mock
	Hotplug  bool   `yaml:"hotplug" toml:"hotplug" envconfig:"hotplug"`    // udev によるデバイス着脱の検知
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" envconfig:"level"`
	Format string `yaml:"format" toml:"format" envconfig:"format"` // json / text、空なら端末かどうかで決める
}

const (
	PlatformMediaDevices = "mediadevices"
	PlatformMock         = "mock"
)

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			ReadTimeoutSeconds:     10,
			WriteTimeoutSeconds:    0, // WebSocket 用にタイムアウト無効化
			ShutdownTimeoutSeconds: 5,
		},
		Billboard: BillboardConfig{
			MinWidth:            4,
			MinHeight:           3,
			ReadyTimeoutSeconds: 10,
		},
		Camera: CameraConfig{
			Platform: PlatformMediaDevices,
			Hotplug:  true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load は設定を読み込む
// デフォルト値、設定ファイル (.yaml / .yml / .toml)、.env、環境変数の順に上書きする
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// .env は任意。既に設定されている環境変数は上書きしない
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	cfg.normalize()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("未対応の設定ファイル形式: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Billboard.DeviceID = strings.TrimSpace(c.Billboard.DeviceID)
	c.Camera.Platform = strings.ToLower(strings.TrimSpace(c.Camera.Platform))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSeconds < 0 || c.Server.WriteTimeoutSeconds < 0 || c.Server.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("タイムアウトに負の値は指定できません")
	}

	// ビルボード設定の検証
	if c.Billboard.MinWidth <= 0 || c.Billboard.MinHeight <= 0 {
		return fmt.Errorf("最小サイズは正の値が必要です: %gx%g", c.Billboard.MinWidth, c.Billboard.MinHeight)
	}
	if c.Billboard.ReadyTimeoutSeconds < 0 {
		return fmt.Errorf("無効な待機時間: %d", c.Billboard.ReadyTimeoutSeconds)
	}

	switch c.Camera.Platform {
	case PlatformMediaDevices, PlatformMock:
	default:
		return fmt.Errorf("未対応のカメラプラットフォーム: %q", c.Camera.Platform)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("無効なログレベル: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("無効なログ形式: %q", c.Log.Format)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ReadTimeout はHTTPの読み込みタイムアウトを返す
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout はHTTPの書き込みタイムアウトを返す
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// ShutdownTimeout はグレースフルシャットダウンの猶予を返す
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// ReadyTimeout は最初のフレームを待つ時間を返す
func (b BillboardConfig) ReadyTimeout() time.Duration {
	return time.Duration(b.ReadyTimeoutSeconds) * time.Second
}
