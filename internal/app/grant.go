package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// UserFinder はメールアドレスでユーザーを検索する。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// ProfileWriter はプロフィールを作成または更新する。
type ProfileWriter interface {
	Upsert(ctx context.Context, profile *model.Profile) error
}

// parseGrantArgs は grant-role の引数 <email> <role> を検証する。
func parseGrantArgs(args []string) (email string, role model.Role, err error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("usage: grant-role <email> <role>")
	}
	email = strings.TrimSpace(args[0])
	role = model.Role(args[1])
	if email == "" {
		return "", "", fmt.Errorf("email must not be empty")
	}
	if !role.Valid() {
		return "", "", fmt.Errorf("unknown role %q: must be one of user, organizer, admin", args[1])
	}
	return email, role, nil
}

// grantRole はユーザーのプロフィールに指定ロールを記録する。
// プロフィールが未作成の場合は作成する。
func grantRole(ctx context.Context, users UserFinder, profiles ProfileWriter, email string, role model.Role) (*model.Profile, error) {
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("no user registered with email %s", email)
	}

	now := time.Now()
	profile := &model.Profile{
		UserID:    user.ID,
		FullName:  user.Metadata.FullName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}
