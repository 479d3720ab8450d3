// Package entity はホストのエンティティとビルボードコントローラーを結び付ける。
//
// エンティティごとに表示面 (Surface) とコントローラーを1組持ち、
// ホストのライフサイクル (attach / update / pause / play / remove) を
// コントローラーの操作に変換する。コントローラーからの通知は events.Bus に流す。
//
// 設定の更新は差分だけを反映する:
//   - 変更なし: 何もしない
//   - 最小サイズの変更: 表示サイズだけを再計算する
//   - デバイスIDの変更: ストリームを張り替える
package entity
