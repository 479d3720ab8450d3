package camera

import (
	"context"
	"fmt"
	"sync"
)

// MockGate はモックの呼び出しを途中で止めるためのゲート
type MockGate struct {
	entered     chan struct{}
	release     chan struct{}
	enterOnce   sync.Once
	releaseOnce sync.Once
}

func newMockGate() *MockGate {
	return &MockGate{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

// Entered は呼び出しがゲートに到達すると閉じられる
func (g *MockGate) Entered() <-chan struct{} {
	return g.entered
}

// Release は待機中の呼び出しを進める
func (g *MockGate) Release() {
	g.releaseOnce.Do(func() { close(g.release) })
}

func (g *MockGate) wait(ctx context.Context) error {
	g.enterOnce.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MockPlatform はテスト用のモックPlatform実装
type MockPlatform struct {
	mu sync.Mutex

	devices      []DeviceDescriptor
	enumerateErr error
	probeErr     error
	openErrs     map[string]error
	readyErr     error
	resolution   Resolution

	probeGate  *MockGate
	openGates  map[string]*MockGate
	readyGates map[string]*MockGate

	probeCalls     int
	openCalls      map[string]int
	enumerateCalls int
	streams        []*MockStream
	nextID         int
}

// NewMockPlatform は新しいMockPlatformを作成する
func NewMockPlatform(devices ...DeviceDescriptor) *MockPlatform {
	return &MockPlatform{
		devices:    devices,
		openErrs:   make(map[string]error),
		openGates:  make(map[string]*MockGate),
		readyGates: make(map[string]*MockGate),
		openCalls:  make(map[string]int),
		resolution: Resolution{Width: 640, Height: 480},
	}
}

// VideoDevice はテスト用の映像入力デバイスを作る
func VideoDevice(id, label string) DeviceDescriptor {
	return DeviceDescriptor{DeviceID: id, Label: label, Kind: KindVideoInput}
}

// EnumerateDevices はモックデバイス一覧のコピーを返す
func (m *MockPlatform) EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.enumerateCalls++
	if m.enumerateErr != nil {
		return nil, m.enumerateErr
	}
	result := make([]DeviceDescriptor, len(m.devices))
	copy(result, m.devices)
	return result, nil
}

// OpenStream はモックストリームを返す。deviceID が空の呼び出しはプローブとして数える
func (m *MockPlatform) OpenStream(ctx context.Context, deviceID string) (LiveStream, error) {
	m.mu.Lock()
	var gate *MockGate
	if deviceID == "" {
		m.probeCalls++
		gate = m.probeGate
	} else {
		m.openCalls[deviceID]++
		gate = m.openGates[deviceID]
	}
	m.mu.Unlock()

	if gate != nil {
		if err := gate.wait(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if deviceID == "" {
		if m.probeErr != nil {
			return nil, m.probeErr
		}
	} else if err := m.openErrs[deviceID]; err != nil {
		return nil, err
	}

	m.nextID++
	stream := &MockStream{
		id:         fmt.Sprintf("mock-stream-%d", m.nextID),
		DeviceID:   deviceID,
		resolution: m.resolution,
		readyErr:   m.readyErr,
		readyGate:  m.readyGates[deviceID],
		tracks:     []*MockTrack{newMockTrack(fmt.Sprintf("mock-track-%d", m.nextID))},
	}
	m.streams = append(m.streams, stream)
	return stream, nil
}

// SetDevices はデバイス一覧を置き換える
func (m *MockPlatform) SetDevices(devices ...DeviceDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = devices
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockPlatform) AddDevice(device DeviceDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.devices {
		if d.DeviceID == device.DeviceID {
			return
		}
	}
	m.devices = append(m.devices, device)
}

// RemoveDevice はテスト用にデバイスを削除する
func (m *MockPlatform) RemoveDevice(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.devices {
		if d.DeviceID == deviceID {
			m.devices = append(m.devices[:i], m.devices[i+1:]...)
			return
		}
	}
}

// SetEnumerateError は列挙の失敗を設定する
func (m *MockPlatform) SetEnumerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enumerateErr = err
}

// SetProbeError は権限確認プローブの失敗を設定する
func (m *MockPlatform) SetProbeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeErr = err
}

// SetOpenError は指定デバイスのオープン失敗を設定する
func (m *MockPlatform) SetOpenError(deviceID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.openErrs, deviceID)
		return
	}
	m.openErrs[deviceID] = err
}

// SetResolution は以降に開くストリームの解像度を設定する
func (m *MockPlatform) SetResolution(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolution = Resolution{Width: width, Height: height}
}

// SetReadyError は以降に開くストリームの Ready の失敗を設定する
func (m *MockPlatform) SetReadyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readyErr = err
}

// BlockProbe は次のプローブを Release まで止める
func (m *MockPlatform) BlockProbe() *MockGate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeGate = newMockGate()
	return m.probeGate
}

// BlockOpen は指定デバイスのオープンを Release まで止める
func (m *MockPlatform) BlockOpen(deviceID string) *MockGate {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := newMockGate()
	m.openGates[deviceID] = gate
	return gate
}

// BlockReady は以降に開く指定デバイスのストリームの Ready を Release まで止める
func (m *MockPlatform) BlockReady(deviceID string) *MockGate {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := newMockGate()
	m.readyGates[deviceID] = gate
	return gate
}

// ProbeCalls はプローブの呼び出し回数を返す
func (m *MockPlatform) ProbeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probeCalls
}

// OpenCalls は指定デバイスのオープン回数を返す
func (m *MockPlatform) OpenCalls(deviceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls[deviceID]
}

// EnumerateCalls は列挙の呼び出し回数を返す
func (m *MockPlatform) EnumerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enumerateCalls
}

// Streams はこれまでに開いたストリームを返す（プローブを含む）
func (m *MockPlatform) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*MockStream, len(m.streams))
	copy(result, m.streams)
	return result
}

// StreamsFor は指定デバイスに対して開いたストリームを返す
func (m *MockPlatform) StreamsFor(deviceID string) []*MockStream {
	var result []*MockStream
	for _, s := range m.Streams() {
		if s.DeviceID == deviceID {
			result = append(result, s)
		}
	}
	return result
}

// MockStream はテスト用のLiveStream実装
type MockStream struct {
	id         string
	DeviceID   string
	resolution Resolution
	tracks     []*MockTrack
	readyGate  *MockGate

	mu       sync.Mutex
	readyErr error
}

func (s *MockStream) ID() string {
	return s.id
}

func (s *MockStream) Tracks() []Track {
	result := make([]Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		result = append(result, t)
	}
	return result
}

// Ready は設定された解像度を返す。停止済みならエラー
func (s *MockStream) Ready(ctx context.Context) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	if s.readyGate != nil {
		if err := s.readyGate.wait(ctx); err != nil {
			return Resolution{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readyErr != nil {
		return Resolution{}, s.readyErr
	}
	if s.Stopped() {
		return Resolution{}, fmt.Errorf("ストリーム %s は停止済みです", s.id)
	}
	return s.resolution, nil
}

// SetReadyError は Ready の失敗を設定する
func (s *MockStream) SetReadyError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyErr = err
}

// Stopped は全トラックが停止済みかを返す
func (s *MockStream) Stopped() bool {
	for _, t := range s.tracks {
		if !t.Stopped() {
			return false
		}
	}
	return true
}

// Enabled は全トラックが有効かを返す
func (s *MockStream) Enabled() bool {
	for _, t := range s.tracks {
		if !t.Enabled() {
			return false
		}
	}
	return true
}

// MockTrack はテスト用のTrack実装
type MockTrack struct {
	id string

	mu        sync.Mutex
	enabled   bool
	stopCalls int
}

func newMockTrack(id string) *MockTrack {
	return &MockTrack{id: id, enabled: true}
}

func (t *MockTrack) ID() string {
	return t.id
}

func (t *MockTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopCalls++
	t.enabled = false
	return nil
}

func (t *MockTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopCalls > 0 {
		return
	}
	t.enabled = enabled
}

func (t *MockTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Stopped は Stop が呼ばれたかを返す
func (t *MockTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopCalls > 0
}

// StopCalls は Stop の呼び出し回数を返す
func (t *MockTrack) StopCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopCalls
}

// StopCalls は全トラックの Stop 呼び出し回数の合計を返す
func (s *MockStream) StopCalls() int {
	total := 0
	for _, t := range s.tracks {
		total += t.StopCalls()
	}
	return total
}
