// Package camera カメラデバイスの検出・権限取得・ストリーム取得を担う
//
// # 責務
// - カメラアクセス権限の確認（同時要求の重複排除と結果のキャッシュ）
// - 映像入力デバイスの列挙
// - 論理的なデバイス指定（ID指定 / 背面カメラ推定 / 先頭フォールバック）の解決
// - キャプチャストリームのオープンと停止・一時停止・再開ハンドルの提供
// - udev によるデバイス着脱の監視
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 表示対象のカメラストリームを取得したい
// - UI のデバイス選択肢を列挙したい
// - カメラの接続を待ってから再試行したい
//
// # 仕様
// - PermissionGate: 権限確認プローブは保留中に1回だけ発行される
// - Resolver: 列挙は毎回行い、結果をキャッシュしない
// - StreamHandle: Stop は冪等、Pause はデバイスを解放しない
// - MediaDevicesPlatform: pion/mediadevices 経由で V4L2 カメラを扱う
// - MockPlatform: 実カメラなしでテストするためのスクリプト可能な実装
//
// # 前提要件
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
