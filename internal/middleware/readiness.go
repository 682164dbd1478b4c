package middleware

import (
	"encoding/json"
	"net/http"
)

// ReadinessChecker は認証状態の購読が完了したかどうかを返す。
type ReadinessChecker interface {
	Ready() bool
}

// NewReadinessMiddleware は購読の登録が完了するまで中立的な読み込み中ビューを返すミドルウェアを生成する。
// 読み込み中は認証画面も保護対象の画面も描画しない。
func NewReadinessMiddleware(checker ReadinessChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.Ready() {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"view": "loading",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
