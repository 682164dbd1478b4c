package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteAuthError は認証サービスが拒否した操作をメッセージそのままで返す。
func WriteAuthError(w http.ResponseWriter, statusCode int, authErr *model.AuthError) {
	WriteErrorResponse(w, statusCode, &model.APIError{
		Code:     authErr.Code,
		Message:  authErr.Message,
		Category: "auth",
		Action:   "Check your details and try again.",
	})
}

// WriteMutationError はストアに拒否されたイベント変更をメッセージそのままで返す。
func WriteMutationError(w http.ResponseWriter, statusCode int, mutErr *model.MutationError) {
	WriteErrorResponse(w, statusCode, &model.APIError{
		Code:     model.ErrCodeMutationRejected,
		Message:  mutErr.Message,
		Category: "event",
		Action:   "Reload the organizer panel and try again.",
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	})
}
