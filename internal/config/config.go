// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL" env-required:"true" env-description:"PostgreSQL connection URL"`

	// Server
	ServerPort string `env:"SERVER_PORT" env-default:"8080"`
	BaseURL    string `env:"BASE_URL" env-required:"true" env-description:"public base URL of the site"`

	// Session
	SessionMaxAge      int           `env:"SESSION_MAX_AGE" env-default:"86400"`
	RoleResolveTimeout time.Duration `env:"ROLE_RESOLVE_TIMEOUT" env-default:"2s"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" env-default:"http://localhost:3000"`

	// Redis (auth event fan-out). 空の場合はプロセス内Hubのみを使用する。
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" env-default:"magicalmoments:auth-events"`

	// Rate Limit (requests per minute)
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" env-default:"120"`
	RateLimitSignIn  int `env:"RATE_LIMIT_SIGNIN" env-default:"10"`

	// Workers
	ProfileProvisionInterval time.Duration `env:"PROFILE_PROVISION_INTERVAL" env-default:"30s"`
	SessionCleanupInterval   time.Duration `env:"SESSION_CLEANUP_INTERVAL" env-default:"1h"`

	// Image URL probe
	ImageProbeEnabled bool          `env:"IMAGE_PROBE_ENABLED" env-default:"true"`
	ImageProbeTimeout time.Duration `env:"IMAGE_PROBE_TIMEOUT" env-default:"5s"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値の形式が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitSignIn <= 0 {
		return nil, fmt.Errorf("rate limits must be positive: general=%d signin=%d",
			cfg.RateLimitGeneral, cfg.RateLimitSignIn)
	}
	if cfg.RoleResolveTimeout <= 0 {
		return nil, fmt.Errorf("ROLE_RESOLVE_TIMEOUT must be positive: %v", cfg.RoleResolveTimeout)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// Usage は設定可能な環境変数の説明を返す。
func Usage() string {
	var b strings.Builder
	header := "Environment variables:"
	cleanenv.FUsage(&b, &Config{}, &header)()
	return b.String()
}
