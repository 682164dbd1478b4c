package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/magicalmoments/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusNotFound, model.NewEventNotFoundError("abc"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeEventNotFound || body.Category != "event" {
		t.Errorf("body = %+v", body)
	}
	if body.Message != "Event not found: abc" {
		t.Errorf("message = %q", body.Message)
	}
	if body.Action == "" {
		t.Error("expected action")
	}
}

// TestWriteAuthError_MessageVerbatim は認証エラーのメッセージがそのまま返ることを検証する。
func TestWriteAuthError_MessageVerbatim(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAuthError(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())

	body := decodeErrorBody(t, w)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
	if body.Message != "Invalid login credentials" || body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("body = %+v", body)
	}
	if body.Category != "auth" {
		t.Errorf("category = %q", body.Category)
	}
}

// TestWriteMutationError_MessageVerbatim はストアのエラーメッセージがそのまま返ることを検証する。
func TestWriteMutationError_MessageVerbatim(t *testing.T) {
	w := httptest.NewRecorder()

	WriteMutationError(w, http.StatusConflict, &model.MutationError{
		Op:      "insert",
		Message: "Event already exists",
		Err:     errors.New("duplicate"),
	})

	body := decodeErrorBody(t, w)
	if body.Message != "Event already exists" || body.Code != model.ErrCodeMutationRejected {
		t.Errorf("body = %+v", body)
	}
}

// TestWriteInternalServerError_HidesDetails は内部エラーの詳細を返さないことを検証する。
func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	body := decodeErrorBody(t, w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
	if body.Code != "INTERNAL_ERROR" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

// TestRecoveryMiddleware はpanicを500に変換することを検証する。
func TestRecoveryMiddleware(t *testing.T) {
	handler := NewRecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", body.Code)
	}
}

// TestRecoveryMiddleware_ReraisesAbortHandler はhttp.ErrAbortHandlerを再送出することを検証する。
func TestRecoveryMiddleware_ReraisesAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
