// Package events はエンティティからの通知を購読者に配信する。
//
// Bus への Publish はブロックしない。購読者のバッファが一杯のときは
// そのイベントを捨てる。WebSocket の配信や CLI のログ出力が購読者になる。
package events
