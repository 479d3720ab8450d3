package billboard

import (
	"context"

	"videobillboard/internal/camera"
)

// Surface は映像を表示する面（ホスト側のエンティティ）
type Surface interface {
	// Attach は src という名前でストリームを表示面に接続する
	Attach(src string, stream camera.LiveStream)
	// Detach は表示中のストリームを外す
	Detach()
	// SetSize は表示サイズを設定する
	SetSize(size Size)
}

// NotificationType はホストに送る通知の種類
type NotificationType string

const (
	NotificationPlay             NotificationType = "video-play"
	NotificationPermissionDenied NotificationType = "video-permission-denied"
)

// Notification はコントローラーからホストへの通知
type Notification struct {
	Type   NotificationType
	Device *camera.DeviceDescriptor // video-play のみ
	Stream camera.LiveStream        // video-play のみ
	Err    error                    // video-permission-denied のみ
}

// Notifier は通知の受け取り手
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc は関数を Notifier として使うためのアダプター
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// StreamResolver はデバイスIDからストリームを解決する
// *camera.Resolver が実装する
type StreamResolver interface {
	Resolve(ctx context.Context, deviceID string) (*camera.StreamHandle, error)
	Devices(ctx context.Context) ([]camera.DeviceDescriptor, error)
}
