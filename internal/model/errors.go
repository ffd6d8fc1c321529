// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, assessment, user, loan, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest           = "INVALID_REQUEST"
	ErrCodeInvalidUserType          = "INVALID_USER_TYPE"
	ErrCodeInvalidProfile           = "INVALID_PROFILE"
	ErrCodeInvalidCredentials       = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized             = "UNAUTHORIZED"
	ErrCodeForbidden                = "FORBIDDEN"
	ErrCodeDuplicateUser            = "DUPLICATE_USER"
	ErrCodeUserNotFound             = "USER_NOT_FOUND"
	ErrCodeCountryNotFound          = "COUNTRY_NOT_FOUND"
	ErrCodeAssessmentNotFound       = "ASSESSMENT_NOT_FOUND"
	ErrCodeAssessmentNotSubmittable = "ASSESSMENT_NOT_SUBMITTABLE"
	ErrCodeAssessmentLocked         = "ASSESSMENT_LOCKED"
	ErrCodeAmortizationNotFound     = "AMORTIZATION_NOT_FOUND"
	ErrCodeRateLimited              = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal                 = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}

// NewInvalidUserTypeError は不明なユーザー種別が指定された場合のエラーを生成する。
func NewInvalidUserTypeError(segment string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUserType,
		Message:  fmt.Sprintf("無効なユーザー種別です: %s", segment),
		Category: "validation",
		Action:   "borrowers または investors を指定してください。",
	}
}

// NewInvalidProfileError はプロフィールの必須項目が不足している場合のエラーを生成する。
func NewInvalidProfileError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  "プロフィールの必須項目が不足しています。",
		Category: "validation",
		Action:   "name、address1、city を入力してください。",
	}
}

// NewInvalidCredentialsError は認証情報が一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUnauthorizedError はアクセストークンがない、または無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてアクセストークンを取得してください。",
	}
}

// NewForbiddenError は他ユーザーのリソースにアクセスしようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このリソースへのアクセス権限がありません。",
		Category: "auth",
		Action:   "ログイン中のユーザーのリソースのみ操作できます。",
	}
}

// NewDuplicateUserError は既に登録済みのメールアドレスで登録しようとした場合のエラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "user",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCountryNotFoundError は国コードが見つからない場合のエラーを生成する。
func NewCountryNotFoundError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeCountryNotFound,
		Message:  fmt.Sprintf("指定された国が見つかりません: %s", code),
		Category: "validation",
		Action:   "ISO 3166-1 alpha-2 の国コードを指定してください。",
	}
}

// NewAssessmentNotFoundError はアセスメントが見つからない場合のエラーを生成する。
func NewAssessmentNotFoundError(reference string) *APIError {
	return &APIError{
		Code:     ErrCodeAssessmentNotFound,
		Message:  fmt.Sprintf("指定されたアセスメントが見つかりません: %s", reference),
		Category: "assessment",
		Action:   "アセスメントのリファレンスを確認してください。",
	}
}

// NewAssessmentNotSubmittableError は提出条件を満たしていない場合のエラーを生成する。
func NewAssessmentNotSubmittableError() *APIError {
	return &APIError{
		Code:     ErrCodeAssessmentNotSubmittable,
		Message:  fmt.Sprintf("アセスメントを提出できません。提出には%d件以上のファイルが必要です。", MinSubmitFiles),
		Category: "assessment",
		Action:   "必要な書類をアップロードしてから提出してください。提出済みのアセスメントは再提出できません。",
	}
}

// NewAssessmentLockedError は提出後のアセスメントにファイルを追加しようとした場合のエラーを生成する。
func NewAssessmentLockedError() *APIError {
	return &APIError{
		Code:     ErrCodeAssessmentLocked,
		Message:  "提出済みのアセスメントにはファイルを追加できません。",
		Category: "assessment",
		Action:   "新しいアセスメントを作成してください。",
	}
}

// NewAmortizationNotFoundError は返済期間テンプレートが見つからない場合のエラーを生成する。
func NewAmortizationNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeAmortizationNotFound,
		Message:  fmt.Sprintf("指定された返済期間が見つかりません: %d", id),
		Category: "loan",
		Action:   "返済期間IDを確認してください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録すること。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
