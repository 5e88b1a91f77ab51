package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Server lifecycle
		"Starting %s":                   "%s を開始します",
		"Listening on %s":               "%s で待ち受け中",
		"HTTP server stopped":           "HTTPサーバーを停止しました",
		"Interrupted, shutting down...": "中断されました。シャットダウン中...",

		// Viewers
		"Viewer %s connected (%s)":                           "視聴者 %s が接続しました (%s)",
		"Viewer %s disconnected after %d frames, %d dropped": "視聴者 %s が切断しました（送信 %d フレーム、欠落 %d）",
		"Write to %s failed: %v":                             "%s への書き込みに失敗しました: %v",
		"WebSocket upgrade from %s failed: %v":               "%s からのWebSocketアップグレードに失敗しました: %v",
		"Snapshot resize failed: %v":                         "スナップショットの縮小に失敗しました: %v",

		// Capture session
		"Starting source %s":                      "ソース %s を起動中",
		"Stopping source %s":                      "ソース %s を停止中",
		"Source %s stopped: %v; restarting in %s": "ソース %s が停止しました: %v（%s 後に再起動）",

		// Sources
		"Connected to upstream %s":                  "上流 %s に接続しました",
		"Skipping %d byte part without JPEG header": "JPEGヘッダーのない %d バイトのパートをスキップします",
		"Launching browser":                         "ブラウザを起動中",
		"Navigating to %s":                          "%s に移動中",
		"Captured %d frames":                        "%d フレームをキャプチャしました",
		"Replaying %d frames from %s":               "%d フレームを %s から再生します",
		"Skipping %s: not a JPEG file":              "%s をスキップします: JPEGファイルではありません",

		// Recording
		"Recording frames to %s":      "フレームを %s に記録中",
		"Failed to save frame %d: %v": "フレーム %d の保存に失敗しました: %v",
		"Saved %d frames, %d dropped": "%d フレームを保存しました（欠落 %d）",
		"Saved %d frames to %s":       "%d フレームを %s に保存しました",
		"Failed to write summary: %v": "サマリーの書き込みに失敗しました: %v",
		"Summary saved to %s":         "サマリーを %s に保存しました",
	})
}
