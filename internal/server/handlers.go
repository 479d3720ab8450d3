package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"videobillboard/internal/camera"
	"videobillboard/internal/entity"
	"videobillboard/internal/events"
	"videobillboard/internal/logging"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はサーバーのリッスン情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status      string                 `json:"status"`
	Server      ServerInfo             `json:"server"`
	Permission  camera.PermissionState `json:"permission"`
	Entities    int                    `json:"entities"`
	Subscribers int                    `json:"subscribers"`
	Timestamp   time.Time              `json:"timestamp"`
}

// DevicesResponse はデバイス一覧のレスポンス
type DevicesResponse struct {
	Devices []camera.DeviceDescriptor `json:"devices"`
}

// EntitiesResponse はエンティティ一覧のレスポンス
type EntitiesResponse struct {
	Entities []entity.Snapshot `json:"entities"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EntityRequest はエンティティの作成・更新リクエスト
// 省略した項目は現在の値（新規なら既定値）を引き継ぐ
type EntityRequest struct {
	DeviceID  *string  `json:"deviceId"`
	MinWidth  *float64 `json:"minWidth"`
	MinHeight *float64 `json:"minHeight"`
}

func (r EntityRequest) merge(base entity.Config) entity.Config {
	if r.DeviceID != nil {
		base.DeviceID = *r.DeviceID
	}
	if r.MinWidth != nil {
		base.MinWidth = *r.MinWidth
	}
	if r.MinHeight != nil {
		base.MinHeight = *r.MinHeight
	}
	return base
}

// handleHealth はヘルスチェックエンドポイント
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はシステム状態取得エンドポイント
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Permission:  s.gate.State(),
		Entities:    s.registry.Len(),
		Subscribers: s.bus.Subscribers(),
		Timestamp:   time.Now(),
	})
}

// handleDevices は映像入力デバイス一覧を返す
func (s *Server) handleDevices(c *gin.Context) {
	devices, err := s.registry.Devices(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DevicesResponse{Devices: devices})
}

// handleListEntities はエンティティ一覧を返す
func (s *Server) handleListEntities(c *gin.Context) {
	c.JSON(http.StatusOK, EntitiesResponse{Entities: s.registry.List()})
}

// handleGetEntity はエンティティの状態を返す
func (s *Server) handleGetEntity(c *gin.Context) {
	snap, err := s.registry.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleApplyEntity はエンティティを作成または更新する
func (s *Server) handleApplyEntity(c *gin.Context) {
	id := c.Param("id")

	body, err := c.GetRawData()
	if err != nil {
		s.writeBadRequest(c, "リクエストボディを読み込めません", err)
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		s.writeBadRequest(c, "JSONの形式が不正です", err)
		return
	}
	if err := s.entityConfig.Validate(raw); err != nil {
		s.writeBadRequest(c, "エンティティ設定が不正です", err)
		return
	}
	var req EntityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeBadRequest(c, "エンティティ設定が不正です", err)
		return
	}

	base := s.registry.Defaults()
	if current, err := s.registry.Get(id); err == nil {
		base = current.Config
	}

	snap, err := s.registry.Apply(c.Request.Context(), id, req.merge(base))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleRemoveEntity はエンティティを削除する
func (s *Server) handleRemoveEntity(c *gin.Context) {
	if err := s.registry.Remove(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handlePauseEntity はストリームを一時停止する
func (s *Server) handlePauseEntity(c *gin.Context) {
	snap, err := s.registry.Pause(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handlePlayEntity はストリームを再開する
func (s *Server) handlePlayEntity(c *gin.Context) {
	snap, err := s.registry.Play(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleOpenAPI は埋め込んだ OpenAPI ドキュメントを返す
func (s *Server) handleOpenAPI(c *gin.Context) {
	c.JSON(http.StatusOK, s.openapi)
}

// handleEvents はイベントを WebSocket で配信する
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe()
	defer cancel()

	clientAddr := conn.RemoteAddr().String()
	s.logger.Info("event subscriber connected", logging.String("client", clientAddr))

	// クライアントからのメッセージは読み捨て、切断の検知だけに使う
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			s.logger.Info("event subscriber disconnected", logging.String("client", clientAddr))
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(conn, event); err != nil {
				s.logger.Debug("failed to write event",
					logging.String("client", clientAddr),
					logging.Error(err),
				)
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event events.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// writeError はエラーの種類に応じたステータスコードで ErrorResponse を返す
func (s *Server) writeError(c *gin.Context, err error) {
	status, code, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.String("path", c.FullPath()),
			logging.Error(err),
		)
	}

	details := err.Error()
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Details:   &details,
		Timestamp: time.Now(),
	})
}

func (s *Server) writeBadRequest(c *gin.Context, message string, err error) {
	details := err.Error()
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     "invalid_request",
		Message:   message,
		Details:   &details,
		Timestamp: time.Now(),
	})
}

func classifyError(err error) (int, string, string) {
	var captureErr *camera.CaptureError
	switch {
	case errors.Is(err, entity.ErrEntityNotFound):
		return http.StatusNotFound, "entity_not_found", "指定されたエンティティが見つかりません"
	case errors.Is(err, camera.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied", "カメラへのアクセスが許可されていません"
	case errors.Is(err, camera.ErrNoDevicesFound):
		return http.StatusNotFound, "no_devices_found", "映像入力デバイスが見つかりません"
	case errors.As(err, &captureErr):
		return http.StatusConflict, "capture_failed", "カメラを開けませんでした"
	default:
		return http.StatusInternalServerError, "internal_error", "内部エラーが発生しました"
	}
}
