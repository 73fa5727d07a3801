// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService はユーザー入力（ユーザー名・地点名）を
// プレーンテキストとして正規化する。bluemondayのStrictPolicyで
// HTMLタグを全て除去し、保存値と検索クエリの両方をXSSと
// インジェクションから保護する。
package security

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// maxInputLength はサニタイズ後の入力の最大文字数。
// ユーザー名と地点名の双方に適用する。
const maxInputLength = 256

// InputSanitizerService はユーザー入力のサニタイズ機能のインターフェースを定義する。
// 地点登録時および検索クエリの受付時に使用される。
type InputSanitizerService interface {
	// Sanitize は入力文字列からHTMLタグを全て除去し、実体参照を
	// 復元したプレーンテキストを前後の空白を除いて返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string

	// ValidateName はサニタイズ済みの名前が保存可能かを検証する。
	// 空文字列、最大長超過、不正なUTF-8列の場合はエラーを返す。
	ValidateName(name string) error
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たず、全てのHTML要素と属性を除去する。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力文字列をプレーンテキストに正規化する。
// StrictPolicyはタグ除去後にテキストをエスケープして返すため、
// "Fisherman's Wharf" のような正当な入力が "&#39;" を含まないよう
// 実体参照を復元する。
func (s *inputSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// ValidateName はサニタイズ済みの名前が保存可能かを検証する。
func (s *inputSanitizer) ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("invalid UTF-8 in name")
	}
	if utf8.RuneCountInString(name) > maxInputLength {
		return fmt.Errorf("name exceeds %d characters", maxInputLength)
	}
	return nil
}
