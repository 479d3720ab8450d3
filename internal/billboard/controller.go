package billboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nrednav/cuid2"

	"videobillboard/internal/camera"
	"videobillboard/internal/logging"
)

// State はコントローラーの状態
type State string

const (
	StateIdle      State = "idle"      // ストリームなし
	StateResolving State = "resolving" // 解決中
	StateActive    State = "active"    // ストリーム表示中
	StateError     State = "error"     // 直近の解決に失敗
)

// DefaultReadyTimeout は最初のフレームを待つ既定の時間
const DefaultReadyTimeout = 10 * time.Second

// Options はコントローラーの設定
type Options struct {
	MinWidth     float64
	MinHeight    float64
	ReadyTimeout time.Duration
}

// DefaultOptions は既定の設定を返す
func DefaultOptions() Options {
	return Options{
		MinWidth:     4,
		MinHeight:    3,
		ReadyTimeout: DefaultReadyTimeout,
	}
}

// Snapshot はコントローラーの状態のコピー
type Snapshot struct {
	State    State                    `json:"state"`
	DeviceID string                   `json:"deviceId"`
	Device   *camera.DeviceDescriptor `json:"device,omitempty"`
	Src      string                   `json:"src,omitempty"`
	Native   camera.Resolution        `json:"native"`
	Minimum  Size                     `json:"minimum"`
	Paused   bool                     `json:"paused"`
	Error    string                   `json:"error,omitempty"`
}

// Controller はエンティティ1つ分のストリームのライフサイクルを管理する
type Controller struct {
	resolver StreamResolver
	surface  Surface
	notifier Notifier
	logger   *slog.Logger

	readyTimeout time.Duration

	mu         sync.Mutex
	state      State
	generation uint64
	deviceID   string // 要求されたデバイスID（空は自動選択）
	handle     *camera.StreamHandle
	src        string
	minimum    Size
	native     camera.Resolution
	lastErr    error
}

// NewController は新しいControllerを作成する
func NewController(resolver StreamResolver, surface Surface, notifier Notifier, opts Options, logger *slog.Logger) *Controller {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}

	return &Controller{
		resolver:     resolver,
		surface:      surface,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "billboard-controller"),
		readyTimeout: opts.ReadyTimeout,
		state:        StateIdle,
		minimum:      Size{Width: opts.MinWidth, Height: opts.MinHeight},
	}
}

// Reconfigure は deviceID のストリームに切り替える
// 同じIDが既に active か resolving なら何もしない。解決に失敗した場合は
// video-permission-denied を通知してエラーを返し、それまでのストリームはそのまま残す。
// 後続の Reconfigure や Detach によって古くなった解決結果は破棄され、nil を返す。
// ctx が先に終わった場合は ctx.Err() を返すが、解決はそのまま続く
func (c *Controller) Reconfigure(ctx context.Context, deviceID string) error {
	c.mu.Lock()
	if (c.state == StateActive || c.state == StateResolving) && c.deviceID == deviceID {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	gen := c.generation
	c.deviceID = deviceID
	c.state = StateResolving
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info("resolving camera stream",
		logging.String(logging.FieldDeviceID, deviceID),
		logging.Uint64("generation", gen),
		logging.String(logging.FieldState, string(StateResolving)),
	)

	// 解決を打ち切るのは世代だけ。ctx のキャンセルは呼び出し元の待機を終わらせるだけで、
	// 解決と最初のフレーム待ちは readyTimeout の範囲で続く
	done := make(chan error, 1)
	go func() {
		done <- c.resolve(context.WithoutCancel(ctx), gen, deviceID)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.logger.Debug("caller stopped waiting for camera stream",
			logging.String(logging.FieldDeviceID, deviceID),
			logging.Uint64("generation", gen),
			logging.Error(ctx.Err()),
		)
		return ctx.Err()
	}
}

func (c *Controller) resolve(ctx context.Context, gen uint64, deviceID string) error {
	handle, err := c.resolver.Resolve(ctx, deviceID)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.discardStale(handle, gen)
		return nil
	}

	if err != nil {
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()

		c.logger.Warn("camera stream resolution failed",
			logging.String(logging.FieldDeviceID, deviceID),
			logging.Error(err),
			logging.String(logging.FieldState, string(StateError)),
		)
		c.notifier.Notify(Notification{Type: NotificationPermissionDenied, Err: err})
		return err
	}

	c.install(handle)
	c.mu.Unlock()

	return c.awaitReady(ctx, gen, handle)
}

// install は前のストリームを停止してから新しいストリームを表示面に接続する
// c.mu を保持した状態で呼ぶこと
func (c *Controller) install(handle *camera.StreamHandle) {
	c.releaseLocked()

	c.handle = handle
	c.src = "#" + cuid2.Generate()
	c.native = camera.Resolution{}
	c.state = StateActive
	c.surface.Attach(c.src, handle.Stream)

	c.logger.Info("camera stream attached",
		logging.String(logging.FieldDeviceID, handle.DeviceID()),
		logging.String("src", c.src),
		logging.String(logging.FieldState, string(StateActive)),
	)
}

// releaseLocked は保持中のストリームを表示面から外して停止する
func (c *Controller) releaseLocked() {
	if c.handle == nil {
		return
	}

	old := c.handle
	c.handle = nil
	c.src = ""
	c.surface.Detach()
	if err := old.Stop(); err != nil {
		c.logger.Warn("failed to stop camera stream",
			logging.String(logging.FieldDeviceID, old.DeviceID()),
			logging.Error(err),
		)
	}
}

// awaitReady は最初のフレームを待ち、表示サイズを決めて video-play を通知する
func (c *Controller) awaitReady(ctx context.Context, gen uint64, handle *camera.StreamHandle) error {
	readyCtx, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()

	native, err := handle.Stream.Ready(readyCtx)

	c.mu.Lock()
	if gen != c.generation || c.handle != handle {
		// 待機中に置き換えられたストリームは、置き換えた側が既に停止している
		c.mu.Unlock()
		return nil
	}

	if err != nil {
		captureErr := &camera.CaptureError{DeviceID: handle.DeviceID(), Err: err}
		c.releaseLocked()
		c.state = StateError
		c.lastErr = captureErr
		c.mu.Unlock()

		c.logger.Warn("camera stream never became ready",
			logging.String(logging.FieldDeviceID, handle.DeviceID()),
			logging.Error(err),
			logging.String(logging.FieldState, string(StateError)),
		)
		c.notifier.Notify(Notification{Type: NotificationPermissionDenied, Err: captureErr})
		return captureErr
	}

	c.native = native
	size := Shrinkwrap(c.minimum, native)
	c.surface.SetSize(size)
	device := handle.Descriptor
	c.mu.Unlock()

	c.logger.Info("camera stream playing",
		logging.String(logging.FieldDeviceID, handle.DeviceID()),
		logging.Int("native_width", native.Width),
		logging.Int("native_height", native.Height),
		logging.Float64("width", size.Width),
		logging.Float64("height", size.Height),
	)
	c.notifier.Notify(Notification{Type: NotificationPlay, Device: device, Stream: handle.Stream})
	return nil
}

func (c *Controller) discardStale(handle *camera.StreamHandle, gen uint64) {
	if handle == nil {
		c.logger.Debug("dropping stale resolution failure", logging.Uint64("generation", gen))
		return
	}

	c.logger.Debug("stopping stale camera stream",
		logging.String(logging.FieldDeviceID, handle.DeviceID()),
		logging.Uint64("generation", gen),
	)
	if err := handle.Stop(); err != nil {
		c.logger.Warn("failed to stop stale camera stream",
			logging.String(logging.FieldDeviceID, handle.DeviceID()),
			logging.Error(err),
		)
	}
}

// Detach はストリームを停止して idle に戻る（冪等）
// 解決中の要求は古いものとして扱われ、届いたストリームは停止される
func (c *Controller) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.state == StateIdle && c.handle == nil {
		return
	}

	c.releaseLocked()
	c.state = StateIdle
	c.deviceID = ""
	c.native = camera.Resolution{}
	c.lastErr = nil

	c.logger.Info("camera stream detached",
		logging.String(logging.FieldState, string(StateIdle)),
	)
}

// Retry は error 状態のとき、直前に要求されたデバイスで再解決する
// デバイスの接続を検知したときに使う
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateError {
		c.mu.Unlock()
		return nil
	}
	deviceID := c.deviceID
	c.mu.Unlock()

	return c.Reconfigure(ctx, deviceID)
}

// Pause は表示中のストリームを一時停止する
func (c *Controller) Pause() {
	if h := c.activeHandle(); h != nil {
		h.Pause()
	}
}

// Resume は一時停止したストリームを再開する
func (c *Controller) Resume() {
	if h := c.activeHandle(); h != nil {
		h.Resume()
	}
}

func (c *Controller) activeHandle() *camera.StreamHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// SetMinimums は最小サイズを変更する。ストリームは作り直さない
func (c *Controller) SetMinimums(minWidth, minHeight float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.minimum = Size{Width: minWidth, Height: minHeight}
	if c.handle != nil && c.native.Width > 0 && c.native.Height > 0 {
		c.surface.SetSize(Shrinkwrap(c.minimum, c.native))
	}
}

// ListDevices は映像入力デバイスを列挙する
func (c *Controller) ListDevices(ctx context.Context) ([]camera.DeviceDescriptor, error) {
	return c.resolver.Devices(ctx)
}

// ActiveDevice は表示中のデバイスを返す。なければ nil
func (c *Controller) ActiveDevice() *camera.DeviceDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil || c.handle.Descriptor == nil {
		return nil
	}
	d := *c.handle.Descriptor
	return &d
}

// State は現在の状態を返す
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err は直近の失敗を返す
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot は現在の状態のコピーを返す
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:    c.state,
		DeviceID: c.deviceID,
		Src:      c.src,
		Native:   c.native,
		Minimum:  c.minimum,
	}
	if c.handle != nil {
		s.Paused = c.handle.Paused()
		if c.handle.Descriptor != nil {
			d := *c.handle.Descriptor
			s.Device = &d
		}
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	return s
}
