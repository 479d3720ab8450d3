package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // カメラドライバーを登録
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/samber/lo"

	"videobillboard/internal/logging"
)

// MediaDevicesPlatform は pion/mediadevices を使った Platform 実装
type MediaDevicesPlatform struct {
	logger *slog.Logger
}

// NewMediaDevicesPlatform は新しいMediaDevicesPlatformを作成する
func NewMediaDevicesPlatform(logger *slog.Logger) *MediaDevicesPlatform {
	return &MediaDevicesPlatform{
		logger: logging.NewComponentLogger(logger, "mediadevices"),
	}
}

// EnumerateDevices は登録済みドライバーのデバイスを列挙する
func (p *MediaDevicesPlatform) EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos := mediadevices.EnumerateDevices()
	return lo.Map(infos, func(info mediadevices.MediaDeviceInfo, _ int) DeviceDescriptor {
		return DeviceDescriptor{
			DeviceID: info.DeviceID,
			Label:    info.Label,
			Kind:     convertKind(info.Kind),
		}
	}), nil
}

// OpenStream はデバイスIDを完全一致の制約として映像ストリームを開く
func (p *MediaDevicesPlatform) OpenStream(ctx context.Context, deviceID string) (LiveStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	constraints := mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			if deviceID != "" {
				c.DeviceID = prop.StringExact(deviceID)
			}
		},
	}

	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		if isPermissionError(err) {
			return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return nil, err
	}

	tracks := ms.GetTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("映像トラックが見つかりません: %s", deviceID)
	}

	stream := &mediaStream{
		tracks: lo.Map(tracks, func(t mediadevices.Track, _ int) *mediaTrack {
			return newMediaTrack(t)
		}),
	}
	p.logger.Debug("capture stream opened",
		logging.String(logging.FieldDeviceID, deviceID),
		logging.String("stream_id", stream.ID()),
		logging.Int("tracks", len(tracks)),
	)
	return stream, nil
}

func convertKind(kind mediadevices.MediaDeviceType) DeviceKind {
	switch kind {
	case mediadevices.VideoInput:
		return KindVideoInput
	case mediadevices.AudioInput:
		return KindAudioInput
	default:
		return KindOther
	}
}

// isPermissionError はデバイスファイルの権限エラーかを判定する
func isPermissionError(err error) bool {
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "permission denied")
}

// mediaStream は mediadevices のトラック群を LiveStream として扱う
type mediaStream struct {
	tracks []*mediaTrack
}

func (s *mediaStream) ID() string {
	if len(s.tracks) == 0 {
		return ""
	}
	return s.tracks[0].ID()
}

func (s *mediaStream) Tracks() []Track {
	return lo.Map(s.tracks, func(t *mediaTrack, _ int) Track { return t })
}

// Ready は有効な映像トラックから1フレーム読み取り、その大きさを返す
func (s *mediaStream) Ready(ctx context.Context) (Resolution, error) {
	vt, ok := lo.Find(s.tracks, func(t *mediaTrack) bool { return t.video != nil })
	if !ok {
		return Resolution{}, errors.New("映像トラックがありません")
	}

	type result struct {
		res Resolution
		err error
	}
	done := make(chan result, 1)

	// トラックが閉じられると Read はエラーで戻る
	go func() {
		reader := vt.video.NewReader(false)
		res, err := firstEnabledFrame(ctx, reader.Read, vt.Enabled)
		done <- result{res: res, err: err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}

// firstEnabledFrame は有効な間に読めた最初のフレームの大きさを返す
// 無効な間のフレームは捨てる
func firstEnabledFrame(ctx context.Context, read func() (image.Image, func(), error), enabled func() bool) (Resolution, error) {
	for {
		img, release, err := read()
		if err != nil {
			return Resolution{}, fmt.Errorf("フレームの読み取りに失敗: %w", err)
		}
		if !enabled() {
			release()
			if err := ctx.Err(); err != nil {
				return Resolution{}, err
			}
			continue
		}
		bounds := img.Bounds()
		release()
		return Resolution{Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}
}

// mediaTrack は mediadevices.Track に有効/無効の状態を持たせる
// mediadevices にはトラック単位の enabled がないため、Ready の読み取りがこの状態でフレームを捨てる。
// 一時停止中のトラックは再開するまで ready にならない
type mediaTrack struct {
	track mediadevices.Track
	video *mediadevices.VideoTrack

	enabled  atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

func newMediaTrack(t mediadevices.Track) *mediaTrack {
	mt := &mediaTrack{track: t}
	if vt, ok := t.(*mediadevices.VideoTrack); ok {
		mt.video = vt
	}
	mt.enabled.Store(true)
	return mt
}

func (t *mediaTrack) ID() string {
	return t.track.ID()
}

func (t *mediaTrack) Stop() error {
	t.stopOnce.Do(func() {
		t.enabled.Store(false)
		t.stopErr = t.track.Close()
	})
	return t.stopErr
}

func (t *mediaTrack) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *mediaTrack) Enabled() bool {
	return t.enabled.Load()
}
