package entity

import (
	"sync"

	"videobillboard/internal/billboard"
	"videobillboard/internal/camera"
)

// Surface はメモリ上の表示面
// 平面ジオメトリに src として映像を貼り付けるホスト側の要素を表す
type Surface struct {
	mu     sync.RWMutex
	src    string
	stream camera.LiveStream
	size   billboard.Size
}

// NewSurface は初期サイズの表示面を作る
func NewSurface() *Surface {
	return &Surface{size: billboard.DefaultSize}
}

func (s *Surface) Attach(src string, stream camera.LiveStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = src
	s.stream = stream
}

func (s *Surface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = ""
	s.stream = nil
}

func (s *Surface) SetSize(size billboard.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
}

// Src は表示中の映像の src を返す。未接続なら空
func (s *Surface) Src() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.src
}

// Stream は表示中のストリームを返す
func (s *Surface) Stream() camera.LiveStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream
}

// Size は現在の表示サイズを返す
func (s *Surface) Size() billboard.Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}
