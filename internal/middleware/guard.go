package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/magicalmoments/internal/authstate"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// GuardRecorder はルートガードの判定を記録する。
type GuardRecorder interface {
	RecordGuardDecision(required, outcome string)
}

// NewGuardMiddleware は要求ロールでルートを保護するミドルウェアを返す。
// 判定はコンテキストの認証状態に対してauthstate.Evaluateで行う。
// 未認証でuserルートに来た場合は同じURLのままauthEntryを描画する。
// 権限不足はLandingPathへ303で戻し、{"redirect_to": "/"} を返す。
func NewGuardMiddleware(required model.Role, authEntry http.Handler, recorder GuardRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := StateFromContext(r.Context())
			decision := authstate.Evaluate(state, required)
			if recorder != nil {
				recorder.RecordGuardDecision(string(required), decision.Outcome.String())
			}

			switch decision.Outcome {
			case authstate.Render:
				next.ServeHTTP(w, r)
			case authstate.RenderAuthEntry:
				authEntry.ServeHTTP(w, r)
			default:
				slog.Info("route guard redirect",
					slog.String("path", r.URL.Path),
					slog.String("required_role", string(required)),
					slog.String("user_id", state.UserID()),
					slog.Bool("role_resolved", state.Resolved),
				)
				WriteRedirect(w, decision.Location)
			}
		})
	}
}

// WriteRedirect は303 See Otherとリダイレクト先を含むJSONを書き込む。
func WriteRedirect(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusSeeOther)
	json.NewEncoder(w).Encode(map[string]string{
		"redirect_to": location,
	})
}
