package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied はユーザーがカメラへのアクセスを拒否したことを表す
	ErrPermissionDenied = errors.New("カメラへのアクセスが拒否されました")

	// ErrNoDevicesFound は映像入力デバイスが1台も見つからないことを表す
	ErrNoDevicesFound = errors.New("映像入力デバイスが見つかりません")
)

// CaptureError は解決済みデバイスのストリームを開けなかったことを表す
type CaptureError struct {
	DeviceID string
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("デバイス %s のストリームを開けません: %v", e.DeviceID, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
