// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, geo, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLocationNotFound = "LOCATION_NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeStorageFailure   = "STORAGE_FAILURE"
	ErrCodeGeocodeFailed    = "GEOCODE_FAILED"
)

// NewLocationNotFoundError は地点名が外部ジオコーディングで見つからない
// 場合のエラーを生成する。
func NewLocationNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeLocationNotFound,
		Message:  fmt.Sprintf("指定された名前の地点が見つかりませんでした: %s", name),
		Category: "geo",
		Action:   "地点名のつづりを確認するか、別の名前でお試しください。",
	}
}

// NewValidationError は入力値のバリデーション失敗エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewStorageError はストレージエンジン由来の失敗エラーを生成する。
// 元のエラーは呼び出し側でログに記録し、ユーザーには詳細を返さない。
func NewStorageError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  "データストアへのアクセスに失敗しました。",
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewGeocodeFailedError は外部ジオコーディングサービスの呼び出し失敗
// エラーを生成する。
func NewGeocodeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGeocodeFailed,
		Message:  "地点情報の取得に失敗しました。",
		Category: "geo",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
