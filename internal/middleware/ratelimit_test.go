package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/magicalmoments/internal/model"
)

func testLimiterConfig(general, signIn int) RateLimiterConfig {
	cfg := NewRateLimiterConfig(general, signIn)
	cfg.CleanupInterval = time.Hour
	return cfg
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(ip string, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.RemoteAddr = ip + ":51234"
	if userID != "" {
		req = req.WithContext(ContextWithState(req.Context(), signedIn(userID, model.RoleUser)))
	}
	return req
}

func TestGeneralMiddleware_AllowsWithinLimitThen429(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(3, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("203.0.113.5", "user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("203.0.113.5", "user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive seconds", w.Header().Get("Retry-After"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestGeneralMiddleware_KeysByUserThenIP(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"user-1 初回", requestFrom("203.0.113.5", "user-1"), http.StatusOK},
		{"同じIPの別ユーザー", requestFrom("203.0.113.5", "user-2"), http.StatusOK},
		{"同じIPの匿名", requestFrom("203.0.113.5", ""), http.StatusOK},
		{"user-1 別IP", requestFrom("198.51.100.7", "user-1"), http.StatusTooManyRequests},
		{"匿名 同じIP", requestFrom("203.0.113.5", ""), http.StatusTooManyRequests},
		{"匿名 別IP", requestFrom("198.51.100.7", ""), http.StatusOK},
	}

	for _, c := range cases {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, c.req)
		if w.Code != c.status {
			t.Errorf("%s: status = %d, want %d", c.name, w.Code, c.status)
		}
	}
	if got := rl.GeneralLimiterCount(); got != 4 {
		t.Errorf("GeneralLimiterCount = %d, want 4", got)
	}
}

func TestSignInMiddleware_PerIPAndIndependent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(100, 2))
	defer rl.Stop()
	signIn := rl.SignInMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		signIn.ServeHTTP(w, requestFrom("203.0.113.9", ""))
		if w.Code != http.StatusOK {
			t.Fatalf("sign-in %d: status = %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	signIn.ServeHTTP(w, requestFrom("203.0.113.9", ""))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("third sign-in: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	signIn.ServeHTTP(w, requestFrom("198.51.100.1", ""))
	if w.Code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom("203.0.113.9", ""))
	if w.Code != http.StatusOK {
		t.Errorf("general limit must be independent, status = %d", w.Code)
	}
	if got := rl.SignInLimiterCount(); got != 2 {
		t.Errorf("SignInLimiterCount = %d, want 2", got)
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	cfg := testLimiterConfig(10, 10)
	cfg.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("203.0.113.5", "user-1"))
	rl.SignInMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("203.0.113.5", ""))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 && rl.SignInLimiterCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("entries not cleaned up: general=%d signin=%d", rl.GeneralLimiterCount(), rl.SignInLimiterCount())
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	rl.Stop()
	rl.Stop()
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != 120 || cfg.SignInBurst != 10 {
		t.Errorf("bursts = (%d, %d), want (120, 10)", cfg.GeneralBurst, cfg.SignInBurst)
	}
	if float64(cfg.GeneralRate) != 2.0 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if diff := float64(cfg.SignInRate) - 10.0/60.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("SignInRate = %v, want 10/60", cfg.SignInRate)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v", cfg.CleanupInterval)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "203.0.113.5:4000"
	if got := clientIP(req); got != "203.0.113.5" {
		t.Errorf("clientIP = %q", got)
	}

	req.RemoteAddr = "[2001:db8::1]:4000"
	if got := clientIP(req); got != "2001:db8::1" {
		t.Errorf("clientIP = %q", got)
	}

	req.RemoteAddr = "203.0.113.5"
	if got := clientIP(req); got != "203.0.113.5" {
		t.Errorf("clientIP without port = %q", got)
	}
}
