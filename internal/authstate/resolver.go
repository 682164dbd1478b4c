// Package authstate はセッションからロールを解決し、ルートへのアクセス可否を判定する。
//
// Store がプロセス全体で1つの認証状態購読を保持し、Resolver がロールを解決し、
// Evaluate がルートガードの判定を、Dispatcher がサインイン直後の遷移先を決める。
package authstate

import (
	"context"
	"log/slog"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// Source はロールの解決元。
type Source string

const (
	SourceDurable  Source = "durable"
	SourceMetadata Source = "metadata"
	SourceDefault  Source = "default"
)

// ProfileFinder はユーザーIDでプロフィールを1件取得する。
type ProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

// Recorder はロール解決のメトリクスを記録する。
type Recorder interface {
	RecordRoleResolution(source string)
	RecordStaleLookup()
}

type nopRecorder struct{}

func (nopRecorder) RecordRoleResolution(string) {}
func (nopRecorder) RecordStaleLookup()          {}

// Resolver はユーザーIDからロールを解決する。
type Resolver struct {
	profiles ProfileFinder
	logger   *slog.Logger
	recorder Recorder
}

// NewResolver はResolverを生成する。recorderがnilの場合は記録しない。
func NewResolver(profiles ProfileFinder, logger *slog.Logger, recorder Recorder) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Resolver{profiles: profiles, logger: logger, recorder: recorder}
}

// Durable はプロフィールに記録されたロールを返す。
// 見つからない場合と検索に失敗した場合はどちらもfalseを返す。
func (r *Resolver) Durable(ctx context.Context, userID string) (model.Role, bool) {
	role, found, _ := r.lookup(ctx, userID)
	return role, found
}

// ResolveForSignIn はサインイン直後のロールを
// プロフィール、メタデータのロールヒント、user の優先順で解決する。
func (r *Resolver) ResolveForSignIn(ctx context.Context, userID string, metadata model.UserMetadata) (model.Role, Source) {
	role, source := r.resolveForSignIn(ctx, userID, metadata)
	r.recorder.RecordRoleResolution(string(source))
	return role, source
}

func (r *Resolver) resolveForSignIn(ctx context.Context, userID string, metadata model.UserMetadata) (model.Role, Source) {
	if role, ok := r.Durable(ctx, userID); ok {
		return role, SourceDurable
	}
	if hint := model.Role(metadata.Role); hint.Valid() {
		return hint, SourceMetadata
	}
	return model.RoleUser, SourceDefault
}

// lookup はプロフィールを1回だけ検索する。
// errは検索失敗時のみ非nilで、呼び出し元へは返さずログにのみ残す。
func (r *Resolver) lookup(ctx context.Context, userID string) (model.Role, bool, error) {
	if userID == "" {
		return "", false, nil
	}

	profile, err := r.profiles.FindByUserID(ctx, userID)
	if err != nil {
		lookupErr := &model.LookupError{UserID: userID, Err: err}
		r.logger.Warn("role lookup failed",
			slog.String("user_id", userID),
			slog.String("error", lookupErr.Error()),
		)
		return "", false, lookupErr
	}
	if profile == nil {
		return "", false, nil
	}
	if !profile.Role.Valid() {
		r.logger.Warn("profile has unknown role",
			slog.String("user_id", userID),
			slog.String("role", string(profile.Role)),
		)
		return "", false, nil
	}
	return profile.Role, true, nil
}
