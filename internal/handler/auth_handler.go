// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/magicalmoments/internal/auth"
	"github.com/hitoshi/magicalmoments/internal/middleware"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// 入力ボディの上限
const maxBodyBytes = 1 << 20

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, in auth.SignUpInput) (*model.User, error)
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context, sessionID string) (*model.Session, error)
}

// DispatcherInterface はサインイン後の遷移先を決める。
type DispatcherInterface interface {
	Dispatch(ctx context.Context, session *model.Session) string
}

// SignInRecorder はサインイン試行の結果を記録する。
type SignInRecorder interface {
	RecordSignIn(result string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインアップ・サインイン・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service    AuthServiceInterface
	dispatcher DispatcherInterface
	recorder   SignInRecorder
	config     AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, dispatcher DispatcherInterface, recorder SignInRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:    service,
		dispatcher: dispatcher,
		recorder:   recorder,
		config:     config,
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Entry は認証画面を返す。userルートの未認証時にも同じURLで描画される。
// GET /auth
func (h *AuthHandler) Entry(w http.ResponseWriter, r *http.Request) {
	writeView(w, "auth", map[string]interface{}{
		"modes":        []string{"signin", "signup"},
		"signup_roles": model.SignUpRoles,
		"viewer":       toViewerResponse(middleware.StateFromContext(r.Context())),
	})
}

// SignUp はアカウントを作成する。サインインはせず、プロフィールも作成しない。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in auth.SignUpInput
	if err := decodeRequest(w, r, &in, func(get func(string) string) {
		in = auth.SignUpInput{
			Email:    get("email"),
			Password: get("password"),
			FullName: get("full_name"),
			Phone:    get("phone"),
			Role:     get("role"),
		}
	}); err != nil {
		writeServiceError(w, r, model.NewInvalidSignUpError(err))
		return
	}

	user, err := h.service.SignUp(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"view":    "auth",
		"mode":    "signin",
		"message": "Signup successful! You can now Sign In.",
		"user_id": user.ID,
	})
}

// SignIn はメールアドレスとパスワードでサインインし、ロールに応じた遷移先を返す。
// フォーム送信には303、それ以外には {"redirect_to": ...} をJSONで返す。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if err := decodeRequest(w, r, &in, func(get func(string) string) {
		in = signInRequest{Email: get("email"), Password: get("password")}
	}); err != nil {
		h.recordSignIn("bad_request")
		writeServiceError(w, r, model.NewInvalidCredentialsError())
		return
	}

	session, err := h.service.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		var authErr *model.AuthError
		if errors.As(err, &authErr) {
			h.recordSignIn("invalid_credentials")
		} else {
			h.recordSignIn("error")
		}
		writeServiceError(w, r, err)
		return
	}
	h.recordSignIn("success")

	h.setSessionCookie(w, session.ID, h.config.SessionMaxAge)

	destination := h.dispatcher.Dispatch(r.Context(), session)
	if middleware.IsFormRequest(r) {
		middleware.WriteRedirect(w, destination)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"redirect_to": destination,
		"user": map[string]string{
			"id":           session.UserID,
			"email":        session.Email,
			"display_name": session.DisplayName(),
		},
	})
}

// SignOut はセッションを破棄する。失敗してもCookieは必ずクリアする。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.service.SignOut(r.Context(), token); err != nil {
			slog.Warn("sign out failed", slog.String("error", err.Error()))
		}
	}

	h.setSessionCookie(w, "", -1)

	if middleware.IsFormRequest(r) {
		middleware.WriteRedirect(w, "/")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect_to": "/"})
}

// Refresh はセッションの有効期限を延長する。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Refresh(r.Context(), middleware.SessionToken(r))
	if err != nil {
		var authErr *model.AuthError
		if errors.As(err, &authErr) {
			h.setSessionCookie(w, "", -1)
		}
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, session.ID, h.config.SessionMaxAge)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"expires_at": session.ExpiresAt,
	})
}

// Session は現在の認証状態を返す。ナビゲーションの表示に使う。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toViewerResponse(middleware.StateFromContext(r.Context())))
}

func (h *AuthHandler) recordSignIn(result string) {
	if h.recorder != nil {
		h.recorder.RecordSignIn(result)
	}
}

// setSessionCookie はセッションCookieを設定する。maxAgeが負の場合は削除する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeRequest はフォーム送信ならfromFormで、それ以外はJSONとしてdstに読み込む。
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, fromForm func(get func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if middleware.IsFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return err
		}
		fromForm(r.PostFormValue)
		return nil
	}

	return json.NewDecoder(r.Body).Decode(dst)
}
