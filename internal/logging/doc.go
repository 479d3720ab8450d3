// Package logging はアプリケーション共通の構造化ロガーを組み立てる
//
// # 責務
// - log/slog ベースのロガー生成（テキスト / JSON）
// - コンポーネント名付きロガーの生成
// - ログ属性ヘルパーの提供
//
// # 仕様
// - format が空の場合、出力先が端末ならテキスト、そうでなければ JSON
// - テスト用に何も出力しない NewNop を提供する
package logging
