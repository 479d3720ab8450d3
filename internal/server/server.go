package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"videobillboard/internal/camera"
	"videobillboard/internal/config"
	"videobillboard/internal/entity"
	"videobillboard/internal/events"
	"videobillboard/internal/logging"
)

// PermissionReporter は権限状態を返す
// *camera.PermissionGate が実装する
type PermissionReporter interface {
	State() camera.PermissionState
}

// Deps はサーバーが利用するコンポーネント
type Deps struct {
	Registry *entity.Registry
	Bus      *events.Bus
	Gate     PermissionReporter
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config   *config.Config
	registry *entity.Registry
	bus      *events.Bus
	gate     PermissionReporter
	logger   *slog.Logger

	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader

	openapi      *openapi3.T
	entityConfig *schemaValidator

	done      chan struct{}
	closeOnce sync.Once
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	doc, err := loadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}
	validator, err := newSchemaValidator(doc, "EntityConfig")
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		config:   cfg,
		registry: deps.Registry,
		bus:      deps.Bus,
		gate:     deps.Gate,
		logger:   logging.NewComponentLogger(logger, "http-server"),
		engine:   engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // ホストページは別オリジンから接続する
			},
		},
		openapi:      doc,
		entityConfig: validator,
		done:         make(chan struct{}),
	}

	engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}
	return s, nil
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// ヘルスチェックエンドポイント
	s.engine.GET("/health", s.handleHealth)

	// APIエンドポイント
	api := s.engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/devices", s.handleDevices)
	api.GET("/openapi.json", s.handleOpenAPI)
	api.GET("/events", s.handleEvents)

	entities := api.Group("/entities")
	entities.GET("", s.handleListEntities)
	entities.GET("/:id", s.handleGetEntity)
	entities.PUT("/:id", s.handleApplyEntity)
	entities.DELETE("/:id", s.handleRemoveEntity)
	entities.POST("/:id/pause", s.handlePauseEntity)
	entities.POST("/:id/play", s.handlePlayEntity)
}

// requestLogger はリクエストごとにアクセスログを出す
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("http request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("latency", time.Since(start)),
		)
	}
}

// Start はサーバーを起動し、ctx のキャンセルかシグナルを受けるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Info("HTTPサーバーを起動しています", logging.String("addr", s.config.ServerAddress()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info("シグナルを受信しました", logging.String("signal", sig.String()))
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています")

	// WebSocket の購読を終了させる
	s.closeOnce.Do(func() { close(s.done) })

	timeout := s.config.Server.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}
