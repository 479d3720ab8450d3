package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"videobillboard/internal/camera"
	"videobillboard/internal/logging"
)

// Type はイベントの種類
type Type string

const (
	TypePlay             Type = "video-play"
	TypePermissionDenied Type = "video-permission-denied"
	TypeDeviceAdded      Type = "device-added"
	TypeDeviceRemoved    Type = "device-removed"
)

// Event はエンティティまたはデバイスに関する通知
type Event struct {
	ID        string                   `json:"id"`
	Type      Type                     `json:"type"`
	EntityID  string                   `json:"entityId,omitempty"`
	Device    *camera.DeviceDescriptor `json:"device,omitempty"`
	DevPath   string                   `json:"devPath,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// New は ID とタイムスタンプを埋めたイベントを作る
func New(t Type, entityID string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

// DefaultBufferSize は購読者ごとのバッファサイズ
const DefaultBufferSize = 32

// Bus はイベントを全購読者に配信する
type Bus struct {
	logger     *slog.Logger
	bufferSize int

	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus は新しいBusを作成する
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger:     logging.NewComponentLogger(logger, "event-bus"),
		bufferSize: DefaultBufferSize,
		subs:       make(map[chan Event]struct{}),
	}
}

// Subscribe は購読用のチャンネルと解除関数を返す
// 解除関数はチャンネルを閉じる。複数回呼んでもよい
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.bufferSize)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish はイベントを配信する。ID が空なら採番する
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Debug("subscriber buffer full; dropping event",
				logging.String("event_id", event.ID),
				logging.String(logging.FieldEventType, string(event.Type)),
			)
		}
	}
}

// Subscribers は購読者数を返す
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
