package model

// AuthEventType は認証状態遷移の種類を表す。
type AuthEventType string

const (
	AuthEventSignedIn       AuthEventType = "SIGNED_IN"
	AuthEventSignedOut      AuthEventType = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent は認証サービスが購読者に配信する状態遷移。
// SIGNED_OUT の場合 Session は nil で、SessionID のみが設定される。
type AuthEvent struct {
	Type      AuthEventType `json:"type"`
	SessionID string        `json:"session_id"`
	Session   *Session      `json:"session,omitempty"`
}
