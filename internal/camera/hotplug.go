package camera

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"videobillboard/internal/logging"
)

// HotplugAction はデバイスの着脱を表す
type HotplugAction string

const (
	HotplugAdd    HotplugAction = "add"
	HotplugRemove HotplugAction = "remove"
)

// HotplugEvent は video4linux デバイスの着脱イベント
type HotplugEvent struct {
	Action HotplugAction
	Device string // 例: /dev/video0
}

// hotplugQueueSize は handler に渡す前のイベントを溜めておける数
const hotplugQueueSize = 32

// HotplugMonitor は udev netlink イベントを購読し、カメラの着脱を通知する
// handler は受信ループとは別の goroutine から順番に呼ばれる
type HotplugMonitor struct {
	logger  *slog.Logger
	handler func(ctx context.Context, event HotplugEvent)
	events  chan HotplugEvent

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor は新しいHotplugMonitorを作成する
func NewHotplugMonitor(logger *slog.Logger, handler func(ctx context.Context, event HotplugEvent)) *HotplugMonitor {
	return &HotplugMonitor{
		logger:  logging.NewComponentLogger(logger, "hotplug-monitor"),
		handler: handler,
		events:  make(chan HotplugEvent, hotplugQueueSize),
	}
}

// Start は netlink ソケットに接続して監視を開始する
// 接続に失敗しても致命的ではなく、手動の再設定で復旧できるため nil を返す
func (m *HotplugMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; camera hotplug will not be detected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "hotplug_connect_failed"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.dispatchLoop(ctx, quit)
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop は監視を停止する（冪等）
func (m *HotplugMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	close(m.quit)
	m.quit = nil
	_ = m.conn.Close()
	m.conn = nil
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running は監視中かを返す
func (m *HotplugMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildHotplugMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "hotplug_monitor_error"),
			)
		}
	}
}

// dispatchLoop は溜まったイベントを handler に渡す
// handler が遅くても netlink の受信は止まらない
func (m *HotplugMonitor) dispatchLoop(ctx context.Context, quit <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case event := <-m.events:
			if m.handler != nil {
				m.handler(ctx, event)
			}
		}
	}
}

// buildHotplugMatcher は video4linux の add/remove に一致するマッチャーを作る
func buildHotplugMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	event, ok := toHotplugEvent(uevent)
	if !ok {
		m.logger.Debug("ignoring uevent",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	m.logger.Info("camera hotplug detected",
		logging.String(logging.FieldEventType, "hotplug_"+string(event.Action)),
		logging.String("device", event.Device),
	)

	select {
	case m.events <- event:
	case <-ctx.Done():
	default:
		m.logger.Warn("hotplug event queue full; dropping event",
			logging.String(logging.FieldEventType, "hotplug_event_dropped"),
			logging.String("device", event.Device),
		)
	}
}

// toHotplugEvent は uevent を HotplugEvent に変換する
func toHotplugEvent(uevent netlink.UEvent) (HotplugEvent, bool) {
	var action HotplugAction
	switch strings.ToLower(string(uevent.Action)) {
	case string(HotplugAdd):
		action = HotplugAdd
	case string(HotplugRemove):
		action = HotplugRemove
	default:
		return HotplugEvent{}, false
	}

	if uevent.Env["SUBSYSTEM"] != "video4linux" {
		return HotplugEvent{}, false
	}

	device := uevent.Env["DEVNAME"]
	if device == "" {
		// DEVPATH (例: /devices/.../video4linux/video0) から組み立てる
		parts := strings.Split(uevent.Env["DEVPATH"], "/")
		if last := parts[len(parts)-1]; last != "" {
			device = last
		}
	}
	if device == "" {
		return HotplugEvent{}, false
	}
	if !strings.HasPrefix(device, "/dev/") {
		device = "/dev/" + device
	}

	return HotplugEvent{Action: action, Device: device}, true
}
