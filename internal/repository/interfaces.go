// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/magicalmoments/internal/model"
)

var (
	// ErrNotFound は更新・削除対象のレコードが存在しないことを表す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate は一意制約違反を表す。
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository はアカウントデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	// メールアドレスは大文字小文字を区別しない。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションをユーザー情報と結合して取得する。
	// 期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Extend はセッションの有効期限を更新する。対象がない場合はErrNotFoundを返す。
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProfileRepository はユーザーごとのロール割り当ての永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Upsert はプロフィールを作成または更新する。
	Upsert(ctx context.Context, profile *model.Profile) error

	// CountByRole はロールごとのプロフィール数を返す。
	CountByRole(ctx context.Context) (map[model.Role]int, error)
}

// EventRepository はイベントデータの永続化インターフェース。
// 更新・削除は主催者IDでスコープし、他の主催者のイベントには作用しない。
type EventRepository interface {
	// ListAll は全イベントを開催日順に返す。
	ListAll(ctx context.Context) ([]*model.Event, error)

	// ListByOrganizer は指定主催者のイベントを開催日順に返す。
	ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error)

	// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Event, error)

	// Create はイベントを作成する。
	Create(ctx context.Context, event *model.Event) error

	// Update はイベントを更新する。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, event *model.Event) error

	// Delete は指定主催者のイベントを削除する。対象がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, organizerID string) error
}
