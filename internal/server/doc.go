// Package server は、ビルボードのエンティティ操作をHTTPで公開します。
//
// このパッケージは、gin によるルーティング、エンティティの作成・更新・削除、
// WebSocket によるイベント配信、埋め込み OpenAPI ドキュメントの提供を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - ホストのライフサイクル操作 (attach / update / pause / play / remove) の受け付け
//   - video-play / video-permission-denied などのイベント配信
//   - エラーの種類に応じたステータスコードへの変換
//
// 仕様:
//   - ルーティングは gin を使用
//   - WebSocket は gorilla/websocket を使用
//   - リクエストボディは OpenAPI ドキュメントのスキーマで検証
package server
