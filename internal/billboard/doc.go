// Package billboard はエンティティ1つ分のカメラ映像表示を管理する。
//
// # 概要
//
// Controller は idle / resolving / active / error の状態機械で、
// 最大1本の StreamHandle を所有する。デバイスの切り替え要求が重なった場合は
// 世代トークンで古い解決結果を判別し、遅れて届いたストリームは黙って停止する。
//
// # 表示サイズ
//
// 表示面の大きさは Shrinkwrap で決まる。最小幅を優先し、高さが最小高さに
// 満たない場合は高さ基準で拡大する。アスペクト比は常に映像と一致する。
//
//	size := billboard.Shrinkwrap(billboard.Size{Width: 4, Height: 3}, camera.Resolution{Width: 1280, Height: 720})
//	// size = {5.333..., 3}
package billboard
