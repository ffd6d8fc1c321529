// Package logger はJSON構造化ログのセットアップを提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redacted は機密属性の置換値。
const redacted = "[REDACTED]"

// sensitiveKeys はログに値を出さない属性キー（小文字で比較する）。
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"token":         {},
	"authorization": {},
	"account":       {},
	"token_secret":  {},
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// パスワード・トークン・口座番号などの属性値はマスクされる。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力し、レベルは環境変数LOG_LEVELに従う。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w, LevelFromEnv()))
}

// LevelFromEnv は環境変数LOG_LEVEL（debug, info, warn, error）からログレベルを返す。
// 未設定または不正な値の場合はInfo。
func LevelFromEnv() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(os.Getenv("LOG_LEVEL")))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}
