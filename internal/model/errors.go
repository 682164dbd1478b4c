// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, event, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserAlreadyExists  = "USER_ALREADY_EXISTS"
	ErrCodeInvalidSignUp      = "INVALID_SIGNUP"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
	ErrCodeInvalidEvent       = "INVALID_EVENT"
	ErrCodeInvalidImageURL    = "INVALID_IMAGE_URL"
	ErrCodeMutationRejected   = "MUTATION_REJECTED"
)

// AuthError は認証サービスが拒否した操作を表す。
// メッセージはそのままユーザーに表示する。再試行はしない。
type AuthError struct {
	Code    string
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap は元のエラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *AuthError {
	return &AuthError{
		Code:    ErrCodeInvalidCredentials,
		Message: "Invalid login credentials",
	}
}

// NewUserAlreadyExistsError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewUserAlreadyExistsError() *AuthError {
	return &AuthError{
		Code:    ErrCodeUserAlreadyExists,
		Message: "User already registered",
	}
}

// NewInvalidSignUpError はサインアップ入力の検証エラーを生成する。
func NewInvalidSignUpError(err error) *AuthError {
	return &AuthError{
		Code:    ErrCodeInvalidSignUp,
		Message: err.Error(),
	}
}

// NewSessionMissingError はセッションが存在しない・期限切れの場合のエラーを生成する。
func NewSessionMissingError() *AuthError {
	return &AuthError{
		Code:    ErrCodeSessionNotFound,
		Message: "Auth session missing",
	}
}

// LookupError はプロフィール検索の失敗を表す。
// ロール解決の内部でのみ扱い、呼び出し元やユーザーには返さない。
type LookupError struct {
	UserID string
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *LookupError) Error() string {
	return fmt.Sprintf("profile lookup failed for user %s: %v", e.UserID, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *LookupError) Unwrap() error {
	return e.Err
}

// MutationError はイベントの登録・更新・削除がストアに拒否されたことを表す。
// メッセージはそのままユーザーに表示する。
type MutationError struct {
	Op      string // insert, update, delete
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *MutationError) Error() string {
	return fmt.Sprintf("%s event: %s", e.Op, e.Message)
}

// Unwrap は元のエラーを返す。
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("Event not found: %s", eventID),
		Category: "event",
		Action:   "Check the event ID or return to the event list.",
	}
}

// NewInvalidEventError はイベント入力の検証エラーを生成する。
func NewInvalidEventError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEvent,
		Message:  fmt.Sprintf("Invalid event: %s", reason),
		Category: "validation",
		Action:   "Fix the highlighted fields and submit again.",
	}
}

// NewInvalidImageURLError は画像URLの検証エラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("Invalid image URL: %s", reason),
		Category: "validation",
		Action:   "Use a public https URL that points to an image, or leave it empty.",
	}
}
