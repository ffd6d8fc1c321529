// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが編集できる自由記述テキスト（氏名、住所、勤務先など）から
// マークアップを除去する。bluemondayのStrictPolicyで全てのタグを取り除き、
// 保存される値は常にプレーンテキストとなる。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト化のインターフェース。
type TextSanitizer interface {
	// Sanitize はタグを除去し、前後の空白と制御文字を取り除いた文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。ポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyはエンティティをエスケープするため、保存用に元の文字へ戻す
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, stripped)
	return strings.TrimSpace(stripped)
}

// SanitizePtr はnilを保ったままSanitizeを適用する。結果が空文字の場合はnilを返す。
func SanitizePtr(s TextSanitizer, raw *string) *string {
	if raw == nil {
		return nil
	}
	v := s.Sanitize(*raw)
	if v == "" {
		return nil
	}
	return &v
}
