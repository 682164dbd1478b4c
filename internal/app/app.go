package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/magicalmoments/internal/auth"
	"github.com/hitoshi/magicalmoments/internal/authstate"
	"github.com/hitoshi/magicalmoments/internal/config"
	"github.com/hitoshi/magicalmoments/internal/database"
	"github.com/hitoshi/magicalmoments/internal/event"
	"github.com/hitoshi/magicalmoments/internal/handler"
	"github.com/hitoshi/magicalmoments/internal/logger"
	"github.com/hitoshi/magicalmoments/internal/metrics"
	"github.com/hitoshi/magicalmoments/internal/middleware"
	"github.com/hitoshi/magicalmoments/internal/repository"
	"github.com/hitoshi/magicalmoments/internal/security"
	"github.com/hitoshi/magicalmoments/internal/worker"
	"github.com/hitoshi/magicalmoments/internal/worker/cleanup"
	"github.com/hitoshi/magicalmoments/internal/worker/provision"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandGrantRole:
		return runGrantRole(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// signalContext はSIGINTまたはSIGTERMでキャンセルされるコンテキストを返す。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newCollector はGoランタイムとプロセスのメトリクスを含むレジストリを生成する。
func newCollector() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// jobs はserveとworkerの両モードで実行するジョブを構成する。
func jobs(cfg *config.Config, db *sql.DB, collector *metrics.Collector) []worker.Schedule {
	return []worker.Schedule{
		{
			Job:      provision.NewProvisionJob(db, slog.Default(), collector),
			Interval: cfg.ProfileProvisionInterval,
		},
		{
			Job:      cleanup.NewCleanupJob(db, slog.Default(), collector),
			Interval: cfg.SessionCleanupInterval,
		},
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリとメトリクスの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)

	registry, collector := newCollector()

	// 3. 認証サービスと認証イベントの配信
	hub := auth.NewHub()
	var publisher auth.Publisher
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		broadcaster := auth.NewRedisBroadcaster(client, cfg.RedisChannel, hub, slog.Default())
		if err := broadcaster.Start(ctx); err != nil {
			return err
		}
		defer broadcaster.Close()
		publisher = broadcaster
	}

	authService := auth.NewService(userRepo, sessionRepo, hub, publisher,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 4. 共有の認証状態ストア
	resolver := authstate.NewResolver(profileRepo, slog.Default(), collector)
	store := authstate.NewStore(authService, resolver,
		authstate.StoreConfig{WaitTimeout: cfg.RoleResolveTimeout},
		slog.Default(), collector,
	)
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session store: %w", err)
	}
	defer store.Close()

	dispatcher := authstate.NewDispatcher(resolver, authstate.DefaultDestinations())

	// 5. イベントサービス
	ssrfGuard := security.NewSSRFGuard()
	var prober event.ImageProber
	if cfg.ImageProbeEnabled {
		prober = security.NewImageProber(ssrfGuard.NewSafeClient(cfg.ImageProbeTimeout))
	}
	eventService := event.NewService(eventRepo, security.NewContentSanitizer(), ssrfGuard,
		prober, collector, slog.Default(),
	)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSignIn),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Store:             store,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		HealthChecker:  db,

		AuthService: authService,
		Dispatcher:  dispatcher,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		EventService: eventService,
		RoleCounter:  profileRepo,
	})

	// 7. ジョブの起動
	jobsDone := make(chan struct{})
	go func() {
		defer close(jobsDone)
		worker.StartAll(ctx, slog.Default(), jobs(cfg, db, collector)...)
	}()

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		stop()
		<-jobsDone
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-jobsDone

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// HTTPサーバーを持たず、プロフィール作成とセッション削除のジョブのみを実行する。
func runWorker(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newCollector()

	slog.Info("worker starting",
		slog.Duration("provision_interval", cfg.ProfileProvisionInterval),
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	worker.StartAll(ctx, slog.Default(), jobs(cfg, db, collector)...)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runGrantRole はメールアドレスで指定したユーザーのプロフィールにロールを記録する。
func runGrantRole(cfg *config.Config, args []string) error {
	email, role, err := parseGrantArgs(args)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profile, err := grantRole(ctx, repository.NewPostgresUserRepo(db), repository.NewPostgresProfileRepo(db), email, role)
	if err != nil {
		return err
	}

	slog.Info("role granted",
		slog.String("user_id", profile.UserID),
		slog.String("role", string(profile.Role)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}
