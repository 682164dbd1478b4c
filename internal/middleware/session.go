// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/magicalmoments/internal/authstate"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// stateContextKey はリクエストコンテキストに認証状態を格納するためのキー。
var stateContextKey = contextKey("auth_state")

// StateReader はセッショントークンから現在の認証状態を返す。
// authstate.Storeが実装する。
type StateReader interface {
	Current(ctx context.Context, token string) authstate.State
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 認証状態をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証のリクエストも拒否せず、空の状態を注入して次へ渡す。
func NewSessionMiddleware(reader StateReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var state authstate.State
			if token := SessionToken(r); token != "" {
				state = reader.Current(r.Context(), token)
				noteUserID(r.Context(), state.UserID())
			}
			next.ServeHTTP(w, r.WithContext(ContextWithState(r.Context(), state)))
		})
	}
}

// SessionToken はリクエストのCookieからセッショントークンを取得する。
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// StateFromContext はリクエストコンテキストから認証状態を取得する。
// セッションミドルウェアを通過していない場合は未認証の状態を返す。
func StateFromContext(ctx context.Context) authstate.State {
	state, _ := ctx.Value(stateContextKey).(authstate.State)
	return state
}

// ContextWithState はコンテキストに認証状態を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithState(ctx context.Context, state authstate.State) context.Context {
	return context.WithValue(ctx, stateContextKey, state)
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID := StateFromContext(ctx).UserID()
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}
