// Package config loads service configuration from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the full service configuration.
type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// JWTSecret signs session tokens. Required outside development.
	JWTSecret  string        `env:"CIVICA_JWT_SECRET"`
	JWTIssuer  string        `env:"CIVICA_JWT_ISSUER, default=civica"`
	SessionTTL time.Duration `env:"CIVICA_SESSION_TTL, default=12h"`

	PGDSN string `env:"CIVICA_PG_DSN"`

	Redis RedisConfig

	Limiter   LimiterConfig
	Retention RetentionConfig
	Tokens    TokenConfig
}

// RedisConfig configures the notification suppression store.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// PolicyConfig is one limiter policy: attempts per window per identity.
type PolicyConfig struct {
	Window time.Duration `env:"WINDOW"`
	Limit  int           `env:"LIMIT"`
}

// LimiterConfig carries the three access-limiter policies.
type LimiterConfig struct {
	Login         PolicyConfig `env:", prefix=LIMIT_LOGIN_"`
	PasswordReset PolicyConfig `env:", prefix=LIMIT_PWRESET_"`
	Validation    PolicyConfig `env:", prefix=LIMIT_VALIDATION_"`
}

// RetentionConfig controls the access-log sweep windows and schedule.
type RetentionConfig struct {
	AnonymizeAfter time.Duration `env:"RETENTION_ANONYMIZE_AFTER, default=720h"`
	PurgeAfter     time.Duration `env:"RETENTION_PURGE_AFTER,     default=2160h"`
	// CronSpec is a standard 5-field cron expression.
	CronSpec string `env:"RETENTION_CRON, default=13 3 * * *"`
}

// TokenConfig controls validation token lifetimes and garbage collection.
type TokenConfig struct {
	ActivationTTL    time.Duration `env:"TOKEN_ACTIVATION_TTL,  default=72h"`
	EmailChangeTTL   time.Duration `env:"TOKEN_EMAILCHANGE_TTL, default=24h"`
	PasswordResetTTL time.Duration `env:"TOKEN_PWRESET_TTL,     default=2h"`
	SweepCronSpec    string        `env:"TOKEN_SWEEP_CRON,      default=*/30 * * * *"`
}

// Defaults for the limiter policies when the environment leaves them unset.
const (
	defaultLoginWindow      = 6 * time.Hour
	defaultLoginLimit       = 5
	defaultPwResetWindow    = 24 * time.Hour
	defaultPwResetLimit     = 3
	defaultValidationWindow = 6 * time.Hour
	defaultValidationLimit  = 10
)

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyPolicyDefault(&cfg.Limiter.Login, defaultLoginWindow, defaultLoginLimit)
	applyPolicyDefault(&cfg.Limiter.PasswordReset, defaultPwResetWindow, defaultPwResetLimit)
	applyPolicyDefault(&cfg.Limiter.Validation, defaultValidationWindow, defaultValidationLimit)
	return &cfg, nil
}

func applyPolicyDefault(p *PolicyConfig, window time.Duration, limit int) {
	if p.Window <= 0 {
		p.Window = window
	}
	if p.Limit <= 0 {
		p.Limit = limit
	}
}
