package camera

import (
	"errors"
	"sync"
)

// StreamHandle は1本の有効なキャプチャストリームと、その停止・一時停止・再開機能をまとめる
// ハンドルを作成したコントローラーだけが Stop を呼んでよい
type StreamHandle struct {
	Descriptor *DeviceDescriptor // 解決されたデバイス（列挙を経ない場合は nil）
	Stream     LiveStream

	mu      sync.Mutex
	stopped bool
	paused  bool
}

// NewStreamHandle は新しいStreamHandleを作成する
func NewStreamHandle(descriptor *DeviceDescriptor, stream LiveStream) *StreamHandle {
	return &StreamHandle{
		Descriptor: descriptor,
		Stream:     stream,
	}
}

// DeviceID は解決されたデバイスIDを返す
func (h *StreamHandle) DeviceID() string {
	if h.Descriptor == nil {
		return ""
	}
	return h.Descriptor.DeviceID
}

// Stop は全トラックを終了してデバイスを解放する（冪等）
func (h *StreamHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true

	var errs []error
	for _, track := range h.Stream.Tracks() {
		if err := track.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pause はフレームの送出を止める。デバイスは保持したまま
func (h *StreamHandle) Pause() {
	h.setEnabled(false)
}

// Resume はフレームの送出を再開する。権限確認や列挙は行わない
func (h *StreamHandle) Resume() {
	h.setEnabled(true)
}

func (h *StreamHandle) setEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.paused = !enabled
	for _, track := range h.Stream.Tracks() {
		track.SetEnabled(enabled)
	}
}

// Stopped は Stop 済みかを返す
func (h *StreamHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Paused は一時停止中かを返す
func (h *StreamHandle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}
