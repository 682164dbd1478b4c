// Package auth はパスワード認証、セッション管理、認証イベントの配信を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/magicalmoments/internal/model"
	"github.com/hitoshi/magicalmoments/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// SignUpInput はサインアップフォームの入力。
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // ロールヒント。空の場合はヒントなし
}

// Validate はサインアップ入力を検証する。
func (in SignUpInput) Validate() error {
	hints := make([]interface{}, 0, len(model.SignUpRoles))
	for _, r := range model.SignUpRoles {
		hints = append(hints, string(r))
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(3, 320), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Phone, validation.Length(0, 32)),
		validation.Field(&in.Role, validation.In(hints...)),
	)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hub         *Hub
	publisher   Publisher
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
// publisherがnilの場合はhubへ直接配信する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hub *Hub,
	publisher Publisher,
	config ServiceConfig,
) *Service {
	if publisher == nil {
		publisher = hub
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hub:         hub,
		publisher:   publisher,
		config:      config,
		now:         time.Now,
	}
}

// SignUp はアカウントを作成する。
// サインインは行わず、プロフィールも作成しない。
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := in.Validate(); err != nil {
		return nil, model.NewInvalidSignUpError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: string(hash),
		Metadata: model.UserMetadata{
			FullName: in.FullName,
			Phone:    in.Phone,
			Role:     in.Role,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewUserAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("role_hint", in.Role),
	)
	return user, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
// 成功時はSIGNED_INを配信する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.publish(ctx, model.AuthEvent{
		Type:      model.AuthEventSignedIn,
		SessionID: session.ID,
		Session:   session,
	})

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return session, nil
}

// SignOut はセッションを破棄し、SIGNED_OUTを配信する。
// セッションが既に存在しない場合も成功として扱う。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return model.NewSessionMissingError()
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.publish(ctx, model.AuthEvent{
		Type:      model.AuthEventSignedOut,
		SessionID: sessionID,
	})

	slog.Info("user signed out", slog.String("session_id", shortID(sessionID)))
	return nil
}

// Refresh はセッションの有効期限を延長し、TOKEN_REFRESHEDを配信する。
func (s *Service) Refresh(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, model.NewSessionMissingError()
	}

	expiresAt := s.now().Add(time.Duration(s.config.SessionMaxAge) * time.Second)
	if err := s.sessionRepo.Extend(ctx, sessionID, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewSessionMissingError()
		}
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionMissingError()
	}

	s.publish(ctx, model.AuthEvent{
		Type:      model.AuthEventTokenRefreshed,
		SessionID: session.ID,
		Session:   session,
	})
	return session, nil
}

// GetCurrentSession はセッションを1回だけ取得する。
// 存在しない・期限切れの場合はnilを返す。
func (s *Service) GetCurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, nil
	}
	return session, nil
}

// Subscribe は認証状態遷移の購読を登録する。
func (s *Service) Subscribe(fn Listener) *Subscription {
	return s.hub.Subscribe(fn)
}

// publish はイベントを配信する。配信失敗は認証操作自体を失敗させない。
func (s *Service) publish(ctx context.Context, event model.AuthEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish auth event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		Metadata:  user.Metadata,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shortID はログ出力用にセッションIDの先頭8文字を返す。
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
