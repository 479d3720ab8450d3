package camera

import (
	"context"
)

// DeviceKind はデバイスの種類を表す
type DeviceKind string

const (
	KindVideoInput  DeviceKind = "videoinput"  // 映像入力
	KindAudioInput  DeviceKind = "audioinput"  // 音声入力
	KindAudioOutput DeviceKind = "audiooutput" // 音声出力
	KindOther       DeviceKind = "other"       // その他
)

// DeviceDescriptor はプラットフォームが報告するカメラ1台の識別情報
// 列挙のたびに新しく取得され、変更されない
type DeviceDescriptor struct {
	DeviceID string     `json:"deviceId"` // 不透明で安定したID
	Label    string     `json:"label"`    // 表示名（権限取得前は空の場合あり）
	Kind     DeviceKind `json:"kind"`     // デバイス種別
}

// Resolution はストリームのネイティブ解像度
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Platform はホストのキャプチャ基盤を抽象化する
type Platform interface {
	// EnumerateDevices は全種別のデバイスを列挙する
	EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error)

	// OpenStream は指定IDに完全一致するデバイスのストリームを開く
	// deviceID が空の場合は制約なしで開く（権限確認プローブ用）
	OpenStream(ctx context.Context, deviceID string) (LiveStream, error)
}

// LiveStream は開かれたキャプチャストリーム
type LiveStream interface {
	// ID はストリームの識別子を返す
	ID() string

	// Tracks はストリームを構成するトラックを返す
	Tracks() []Track

	// Ready は最初のフレームが届くまで待ち、ネイティブ解像度を返す
	Ready(ctx context.Context) (Resolution, error)
}

// Track はストリームを構成する1本のトラック
type Track interface {
	ID() string

	// Stop はトラックを終了し、デバイスを解放する
	Stop() error

	// SetEnabled はフレームの送出を有効/無効にする（デバイスは解放しない）
	SetEnabled(enabled bool)

	Enabled() bool
}
