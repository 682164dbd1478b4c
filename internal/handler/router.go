package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/magicalmoments/internal/metrics"
	"github.com/hitoshi/magicalmoments/internal/middleware"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// SessionStore は共有の認証状態ストア。authstate.Storeが実装する。
type SessionStore interface {
	middleware.StateReader
	middleware.ReadinessChecker
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Store             SessionStore
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker

	// 認証
	AuthService AuthServiceInterface
	Dispatcher  DispatcherInterface
	AuthConfig  AuthHandlerConfig

	// イベント
	EventService EventServiceInterface
	RoleCounter  RoleCounter
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → SecurityHeaders → Logging → Metrics → CORS
//	  → Readiness → Session → RateLimit(General) → CSRF → Guard
//
// /health と /metrics は認証状態に依存しないため、Readiness以降の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "NOT_FOUND",
			Message:  "Page not found",
			Category: "system",
			Action:   "Return to the home page.",
		})
	})

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Dispatcher, deps.Metrics, deps.AuthConfig)
	eventHandler := NewEventHandler(deps.EventService)
	organizerHandler := NewOrganizerHandler(deps.EventService)
	adminHandler := NewAdminHandler(deps.EventService, deps.RoleCounter)

	authEntry := http.HandlerFunc(authHandler.Entry)
	guard := func(role model.Role) func(http.Handler) http.Handler {
		return middleware.NewGuardMiddleware(role, authEntry, deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewReadinessMiddleware(deps.Store))
		r.Use(middleware.NewSessionMiddleware(deps.Store))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		// --- 公開ルート ---
		r.Route("/auth", func(r chi.Router) {
			r.Get("/", authHandler.Entry)
			r.Get("/session", authHandler.Session)
			r.Post("/signout", authHandler.SignOut)
			r.Post("/refresh", authHandler.Refresh)

			// サインイン・サインアップはIP単位のレート制限を追加
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.SignInMiddleware())
				r.Post("/signup", authHandler.SignUp)
				r.Post("/signin", authHandler.SignIn)
			})
		})

		// --- userガード ---
		r.Group(func(r chi.Router) {
			r.Use(guard(model.RoleUser))
			r.Get("/", eventHandler.Home)
			r.Get("/events", eventHandler.Events)
			r.Get("/event/{eventId}", eventHandler.Detail)
		})

		// --- organizerガード ---
		r.Route("/organizer-panel", func(r chi.Router) {
			r.Use(guard(model.RoleOrganizer))
			r.Get("/", organizerHandler.Panel)
			r.Post("/events", organizerHandler.CreateEvent)
			r.Put("/events/{eventId}", organizerHandler.UpdateEvent)
			r.Delete("/events/{eventId}", organizerHandler.DeleteEvent)
		})

		// --- adminガード ---
		r.Route("/admin-dashboard", func(r chi.Router) {
			r.Use(guard(model.RoleAdmin))
			r.Get("/", adminHandler.Dashboard)
		})
	})

	return r
}
