// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// UserMetadata はサインアップ時に保存されるユーザーメタデータを表す。
// Roleは永続的なプロフィールが作成されるまでのロールヒントとして扱う。
type UserMetadata struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}

// User はサインアップ済みのアカウントを表す。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     UserMetadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// Email と Metadata はセッション取得時に users テーブルから結合される。
type Session struct {
	ID        string
	UserID    string
	Email     string
	Metadata  UserMetadata
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// DisplayName はメールアドレスのローカル部を返す。
// ナビゲーションの表示名とイベントの主催者名に使用する。
func (s *Session) DisplayName() string {
	local, _, _ := strings.Cut(s.Email, "@")
	return local
}

// Profile はユーザーごとの永続的なロール割り当てを表す。
// ロール解決における最優先の情報源。
type Profile struct {
	UserID    string
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
