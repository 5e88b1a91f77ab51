// Package main provides localization for the framecast CLI.
package main

import (
	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"
)

// helpTexts maps kong help variables to lexicon keys.
var helpTexts = map[string]string{
	"help_serve":   "Run the streaming server",
	"help_save":    "Save frames from an MJPEG stream as JPEG files",
	"help_version": "Show version information",

	"help_config":      "YAML configuration file",
	"help_addr":        "Listen address (default: :8000)",
	"help_stream_path": "MJPEG stream path (default: /stream.mjpg)",
	"help_capacity":    "Frame slots in the ring buffer (default: 120)",
	"help_source":      "Frame source (cmd, relay, chrome, testsrc, replay)",
	"help_url":         "Upstream stream URL for relay, page URL for chrome",
	"help_command":     "Encoder command for the cmd source",
	"help_dir":         "Frame directory for the replay source",
	"help_fps":         "Frame rate for the testsrc and replay sources",
	"help_chrome_path": "Path to Chrome executable",
	"help_headful":     "Run browser in non-headless mode",
	"help_always_on":   "Keep the source running without viewers",
	"help_linger":      "Keep the source running this long after the last viewer leaves",
	"help_record_dir":  "Save every frame into this directory",
	"help_no_metrics":  "Disable the /metrics endpoint",

	"help_save_url": "URL of the MJPEG stream",
	"help_save_dir": "Output directory",
	"help_count":    "Stop after this many frames (0 = until the stream ends)",
	"help_summary":  "Write a Markdown summary of the run to this file",

	"help_log_level": "Log level (debug, info, warn, error, quiet)",
	"help_quiet":     "Suppress all log output",
}

// helpVars translates help texts for the current locale.
func helpVars() kong.Vars {
	vars := kong.Vars{}
	for name, key := range helpTexts {
		vars[name] = l10n.T(key)
	}
	return vars
}

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Serve a live JPEG frame stream over HTTP": "ライブJPEGフレームストリームをHTTPで配信",

		// Commands
		"Run the streaming server":                       "ストリーミングサーバーを起動",
		"Save frames from an MJPEG stream as JPEG files": "MJPEGストリームのフレームをJPEGファイルとして保存",
		"Show version information":                       "バージョン情報を表示",
		"framecast version %s":                           "framecast バージョン %s",

		// Serve flags
		"YAML configuration file":                       "YAML設定ファイル",
		"Listen address (default: :8000)":               "待ち受けアドレス（デフォルト: :8000）",
		"MJPEG stream path (default: /stream.mjpg)":     "MJPEGストリームのパス（デフォルト: /stream.mjpg）",
		"Frame slots in the ring buffer (default: 120)": "リングバッファのフレームスロット数（デフォルト: 120）",
		"Disable the /metrics endpoint":                 "/metrics エンドポイントを無効化",

		// Source flags
		"Frame source (cmd, relay, chrome, testsrc, replay)": "フレームソース（cmd, relay, chrome, testsrc, replay）",
		"Upstream stream URL for relay, page URL for chrome": "relayでは上流ストリームのURL、chromeではページのURL",
		"Encoder command for the cmd source":                 "cmdソースのエンコーダーコマンド",
		"Frame directory for the replay source":              "replayソースのフレームディレクトリ",
		"Frame rate for the testsrc and replay sources":      "testsrcとreplayソースのフレームレート",
		"Path to Chrome executable":                          "Chrome実行ファイルのパス",
		"Run browser in non-headless mode":                   "ブラウザを非ヘッドレスモードで実行",

		// Capture and recording flags
		"Keep the source running without viewers":                        "視聴者がいなくてもソースを動かし続ける",
		"Keep the source running this long after the last viewer leaves": "最後の視聴者が離れた後もソースを動かし続ける時間",
		"Save every frame into this directory":                           "全フレームをこのディレクトリに保存",

		// Save flags
		"URL of the MJPEG stream":                                 "MJPEGストリームのURL",
		"Output directory":                                        "出力ディレクトリ",
		"Stop after this many frames (0 = until the stream ends)": "指定フレーム数で停止（0 = ストリーム終了まで）",
		"Write a Markdown summary of the run to this file":        "実行サマリーをMarkdown形式でファイルに出力",

		// Logging flags
		"Log level (debug, info, warn, error, quiet)": "ログレベル（debug, info, warn, error, quiet）",
		"Suppress all log output":                     "全てのログ出力を抑制",
	})
}
