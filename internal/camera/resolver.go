package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"videobillboard/internal/logging"
)

// 背面カメラと判断するラベルのキーワード（小文字）
var rearFacingKeywords = []string{"back", "environment", "rear"}

// Resolver は論理的なデバイス指定を具体的なキャプチャストリームに解決する
type Resolver struct {
	gate     *PermissionGate
	platform Platform
	logger   *slog.Logger
}

// NewResolver は新しいResolverを作成する
func NewResolver(gate *PermissionGate, platform Platform, logger *slog.Logger) *Resolver {
	return &Resolver{
		gate:     gate,
		platform: platform,
		logger:   logging.NewComponentLogger(logger, "stream-resolver"),
	}
}

// Devices は権限を確認したうえで映像入力デバイスを列挙する
func (r *Resolver) Devices(ctx context.Context) ([]DeviceDescriptor, error) {
	if err := r.gate.Ensure(ctx); err != nil {
		return nil, err
	}
	return r.videoInputs(ctx)
}

// Resolve は deviceID を解決してストリームを開く
// deviceID が空の場合は背面カメラを推定し、見つからなければ先頭のデバイスを使う
func (r *Resolver) Resolve(ctx context.Context, deviceID string) (*StreamHandle, error) {
	if err := r.gate.Ensure(ctx); err != nil {
		return nil, err
	}

	devices, err := r.videoInputs(ctx)
	if err != nil {
		return nil, err
	}

	selected, ok := SelectDevice(devices, deviceID)
	if !ok {
		return nil, ErrNoDevicesFound
	}

	if deviceID != "" && selected.DeviceID != deviceID {
		r.logger.Info("requested device not found, falling back to first device",
			logging.String("requested_device_id", deviceID),
			logging.String(logging.FieldDeviceID, selected.DeviceID),
		)
	}

	stream, err := r.platform.OpenStream(ctx, selected.DeviceID)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		return nil, &CaptureError{DeviceID: selected.DeviceID, Err: err}
	}

	r.logger.Debug("stream opened",
		logging.String(logging.FieldDeviceID, selected.DeviceID),
		logging.String("label", selected.Label),
		logging.String("stream_id", stream.ID()),
	)

	return NewStreamHandle(&selected, stream), nil
}

// videoInputs は列挙結果から映像入力のみを返す。空の場合は ErrNoDevicesFound
func (r *Resolver) videoInputs(ctx context.Context) ([]DeviceDescriptor, error) {
	all, err := r.platform.EnumerateDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("デバイスの列挙に失敗: %w", err)
	}

	devices := lo.Filter(all, func(d DeviceDescriptor, _ int) bool {
		return d.Kind == KindVideoInput
	})
	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

// SelectDevice は列挙済みデバイスから1台を選ぶ
//   - deviceID 指定あり: 完全一致、なければ先頭
//   - deviceID 指定なし: ラベルに back / environment / rear を含む最初のデバイス、なければ先頭
//
// devices が空の場合は false を返す
func SelectDevice(devices []DeviceDescriptor, deviceID string) (DeviceDescriptor, bool) {
	if len(devices) == 0 {
		return DeviceDescriptor{}, false
	}

	if deviceID != "" {
		if d, ok := lo.Find(devices, func(d DeviceDescriptor) bool { return d.DeviceID == deviceID }); ok {
			return d, true
		}
		return devices[0], true
	}

	if d, ok := lo.Find(devices, IsRearFacing); ok {
		return d, true
	}
	return devices[0], true
}

// IsRearFacing はラベルから背面カメラかどうかを推定する
func IsRearFacing(d DeviceDescriptor) bool {
	label := strings.ToLower(d.Label)
	return lo.SomeBy(rearFacingKeywords, func(keyword string) bool {
		return strings.Contains(label, keyword)
	})
}
