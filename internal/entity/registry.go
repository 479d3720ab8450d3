package entity

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/samber/lo"

	"videobillboard/internal/billboard"
	"videobillboard/internal/camera"
	"videobillboard/internal/events"
	"videobillboard/internal/logging"
)

// ComponentName はホストに登録するコンポーネント名
const ComponentName = "video-billboard"

const (
	defaultHotplugRetryAttempts = 3
	defaultHotplugRetryDelay    = 500 * time.Millisecond
)

// ErrEntityNotFound はエンティティが存在しない場合のエラー
var ErrEntityNotFound = errors.New("エンティティが見つかりません")

// Config はエンティティ1つ分のビルボード設定
type Config struct {
	DeviceID  string  `json:"deviceId"`
	MinWidth  float64 `json:"minWidth"`
	MinHeight float64 `json:"minHeight"`
}

// DefaultConfig は既定のエンティティ設定を返す
func DefaultConfig() Config {
	return Config{MinWidth: 4, MinHeight: 3}
}

// Snapshot はエンティティの状態
type Snapshot struct {
	ID        string                   `json:"id"`
	Component string                   `json:"component"`
	Config    Config                   `json:"config"`
	State     billboard.State          `json:"state"`
	Device    *camera.DeviceDescriptor `json:"device,omitempty"`
	Src       string                   `json:"src,omitempty"`
	Size      billboard.Size           `json:"size"`
	Native    camera.Resolution        `json:"native"`
	Paused    bool                     `json:"paused"`
	Error     string                   `json:"error,omitempty"`
}

type entity struct {
	id         string
	surface    *Surface
	controller *billboard.Controller

	mu     sync.Mutex
	config Config
}

func (e *entity) snapshot() Snapshot {
	e.mu.Lock()
	cfg := e.config
	e.mu.Unlock()

	s := e.controller.Snapshot()
	return Snapshot{
		ID:        e.id,
		Component: ComponentName,
		Config:    cfg,
		State:     s.State,
		Device:    s.Device,
		Src:       e.surface.Src(),
		Size:      e.surface.Size(),
		Native:    s.Native,
		Paused:    s.Paused,
		Error:     s.Error,
	}
}

// Registry はエンティティとそのコントローラーを管理する
type Registry struct {
	resolver      billboard.StreamResolver
	bus           *events.Bus
	logger        *slog.Logger
	defaults      Config
	readyTimeout  time.Duration
	retryAttempts uint
	retryDelay    time.Duration

	// lifetime は Close で終わる。再試行の goroutine はこれに従って止まる
	lifetime context.Context
	stop     context.CancelFunc
	retries  sync.WaitGroup

	mu       sync.RWMutex
	entities map[string]*entity
}

// Options はレジストリの設定
type Options struct {
	Defaults             Config
	ReadyTimeout         time.Duration
	// デバイス接続直後はノードがまだ開けないことがあるため、再試行を繰り返す
	HotplugRetryAttempts uint
	HotplugRetryDelay    time.Duration
}

// NewRegistry は新しいRegistryを作成する
func NewRegistry(resolver billboard.StreamResolver, bus *events.Bus, opts Options, logger *slog.Logger) *Registry {
	if opts.HotplugRetryAttempts == 0 {
		opts.HotplugRetryAttempts = defaultHotplugRetryAttempts
	}
	if opts.HotplugRetryDelay <= 0 {
		opts.HotplugRetryDelay = defaultHotplugRetryDelay
	}
	lifetime, stop := context.WithCancel(context.Background())
	return &Registry{
		resolver:      resolver,
		bus:           bus,
		logger:        logging.NewComponentLogger(logger, "entity-registry"),
		defaults:      opts.Defaults,
		readyTimeout:  opts.ReadyTimeout,
		retryAttempts: opts.HotplugRetryAttempts,
		retryDelay:    opts.HotplugRetryDelay,
		lifetime:      lifetime,
		stop:          stop,
		entities:      make(map[string]*entity),
	}
}

// Defaults は新しいエンティティに使う既定の設定を返す
func (r *Registry) Defaults() Config {
	return r.defaults
}

// Apply はエンティティを作成または更新する
// 新しいエンティティはすぐにストリームを解決する。既存のエンティティは差分だけを反映する
func (r *Registry) Apply(ctx context.Context, id string, cfg Config) (Snapshot, error) {
	e, created := r.getOrCreate(id, cfg)

	if created {
		r.logger.Info("entity attached",
			logging.String(logging.FieldEntityID, id),
			logging.String(logging.FieldDeviceID, cfg.DeviceID),
		)
		err := e.controller.Reconfigure(ctx, cfg.DeviceID)
		return e.snapshot(), err
	}

	e.mu.Lock()
	old := e.config
	e.config = cfg
	e.mu.Unlock()

	if old.MinWidth != cfg.MinWidth || old.MinHeight != cfg.MinHeight {
		e.controller.SetMinimums(cfg.MinWidth, cfg.MinHeight)
	}

	if old.DeviceID == cfg.DeviceID {
		if e.controller.State() != billboard.StateError {
			return e.snapshot(), nil
		}
		// 失敗したままのエンティティは同じ設定でも再試行する
		r.logger.Info("retrying failed entity",
			logging.String(logging.FieldEntityID, id),
			logging.String(logging.FieldDeviceID, cfg.DeviceID),
		)
		err := e.controller.Retry(ctx)
		return e.snapshot(), err
	}

	r.logger.Info("entity device changed",
		logging.String(logging.FieldEntityID, id),
		logging.String("old_device_id", old.DeviceID),
		logging.String(logging.FieldDeviceID, cfg.DeviceID),
	)
	err := e.controller.Reconfigure(ctx, cfg.DeviceID)
	return e.snapshot(), err
}

func (r *Registry) getOrCreate(id string, cfg Config) (*entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entities[id]; ok {
		return e, false
	}

	e := &entity{
		id:      id,
		surface: NewSurface(),
		config:  cfg,
	}
	logger := r.logger.With(logging.String(logging.FieldEntityID, id))
	e.controller = billboard.NewController(r.resolver, e.surface, r.notifierFor(id), billboard.Options{
		MinWidth:     cfg.MinWidth,
		MinHeight:    cfg.MinHeight,
		ReadyTimeout: r.readyTimeout,
	}, logger)

	r.entities[id] = e
	return e, true
}

// notifierFor はコントローラーの通知をバスのイベントに変換する
func (r *Registry) notifierFor(id string) billboard.Notifier {
	return billboard.NotifierFunc(func(n billboard.Notification) {
		if r.bus == nil {
			return
		}

		event := events.New(events.Type(n.Type), id)
		event.Device = n.Device
		if n.Err != nil {
			event.Error = n.Err.Error()
		}
		r.bus.Publish(event)
	})
}

// Get はエンティティの状態を返す
func (r *Registry) Get(id string) (Snapshot, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshot(), nil
}

// List は全エンティティの状態を ID 順に返す
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	all := lo.Values(r.entities)
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b *entity) int { return strings.Compare(a.id, b.id) })
	return lo.Map(all, func(e *entity, _ int) Snapshot { return e.snapshot() })
}

// Len はエンティティ数を返す
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Pause はエンティティのストリームを一時停止する
func (r *Registry) Pause(id string) (Snapshot, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.controller.Pause()
	return e.snapshot(), nil
}

// Play は一時停止したストリームを再開する
func (r *Registry) Play(id string) (Snapshot, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.controller.Resume()
	return e.snapshot(), nil
}

// Remove はストリームを停止してエンティティを削除する
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.entities[id]
	delete(r.entities, id)
	r.mu.Unlock()

	if !ok {
		return ErrEntityNotFound
	}

	e.controller.Detach()
	r.logger.Info("entity removed", logging.String(logging.FieldEntityID, id))
	return nil
}

// ActiveDevice はエンティティが表示中のデバイスを返す
func (r *Registry) ActiveDevice(id string) (*camera.DeviceDescriptor, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.controller.ActiveDevice(), nil
}

// Devices は映像入力デバイスを列挙する
func (r *Registry) Devices(ctx context.Context) ([]camera.DeviceDescriptor, error) {
	return r.resolver.Devices(ctx)
}

// HandleHotplug はデバイスの着脱をイベントとして配信し、接続時は error 状態のエンティティを再試行する
// 再試行はエンティティごとに別の goroutine で行い、完了を待たずに戻る
func (r *Registry) HandleHotplug(ctx context.Context, event camera.HotplugEvent) {
	if r.bus != nil {
		t := events.TypeDeviceAdded
		if event.Action == camera.HotplugRemove {
			t = events.TypeDeviceRemoved
		}
		e := events.New(t, "")
		e.DevPath = event.Device
		r.bus.Publish(e)
	}

	if event.Action != camera.HotplugAdd {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lifetime.Err() != nil {
		return
	}

	failed := lo.Filter(lo.Values(r.entities), func(e *entity, _ int) bool {
		return e.controller.State() == billboard.StateError
	})
	for _, e := range failed {
		r.retries.Add(1)
		go func() {
			defer r.retries.Done()
			r.retryEntity(ctx, e, event.Device)
		}()
	}
}

func (r *Registry) retryEntity(ctx context.Context, e *entity, device string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAfter := context.AfterFunc(r.lifetime, cancel)
	defer stopAfter()

	r.logger.Info("retrying entity after device added",
		logging.String(logging.FieldEntityID, e.id),
		logging.String("device", device),
	)
	err := retry.New(
		retry.Attempts(r.retryAttempts),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		return e.controller.Retry(ctx)
	})
	if err != nil {
		r.logger.Warn("retry failed",
			logging.String(logging.FieldEntityID, e.id),
			logging.Error(err),
		)
	}
}

// Close は再試行を止めてから全エンティティのストリームを停止する
func (r *Registry) Close() {
	r.mu.Lock()
	r.stop()
	all := lo.Values(r.entities)
	r.entities = make(map[string]*entity)
	r.mu.Unlock()

	r.retries.Wait()
	for _, e := range all {
		e.controller.Detach()
	}
}

func (r *Registry) lookup(id string) (*entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return e, nil
}
