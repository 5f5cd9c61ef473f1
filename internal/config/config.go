// Package config loads and validates process configuration from the
// environment, the way the rest of the codebase expects every magic number in
// the spec (retry counts, timeouts, batch sizes) to be an overridable field
// with a sane default rather than a literal buried in code.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Log     LogConfig
	Redis   RedisConfig
	Gateway GatewayConfig
	Outbox  OutboxConfig
	Lock    LockConfig
	Point   PointConfig
	Coupon  CouponConfig
	Stats   StatsConfig
	Tracing TracingConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"order_core"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// RedisConfig holds memory-store (component B) connection configuration.
type RedisConfig struct {
	Addr        string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password    string        `envconfig:"REDIS_PASSWORD" default:""`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
}

// GatewayConfig holds the external payment gateway's client configuration.
type GatewayConfig struct {
	APIKey  string        `envconfig:"GATEWAY_API_KEY" default:""`
	BaseURL string        `envconfig:"GATEWAY_BASE_URL" default:"https://api.gateway.example.com"`
	Timeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
}

// OutboxConfig holds the outbox dispatcher's (component D) tuning knobs.
type OutboxConfig struct {
	PollInterval      time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	BatchSize         int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	MaxRetry          int           `envconfig:"OUTBOX_MAX_RETRY" default:"5"`
	DLQAlertThreshold int           `envconfig:"OUTBOX_DLQ_ALERT_THRESHOLD" default:"10"`
	DLQAlertInterval  time.Duration `envconfig:"OUTBOX_DLQ_ALERT_INTERVAL" default:"60s"`
	DLQReportInterval time.Duration `envconfig:"OUTBOX_DLQ_REPORT_INTERVAL" default:"10m"`
}

// LockConfig holds the distributed lock manager's (component J) tuning knobs.
type LockConfig struct {
	DefaultTTL    time.Duration `envconfig:"LOCK_DEFAULT_TTL" default:"10s"`
	WaitTimeout   time.Duration `envconfig:"LOCK_WAIT_TIMEOUT" default:"5s"`
	RenewInterval time.Duration `envconfig:"LOCK_RENEW_INTERVAL" default:"3s"`
}

// PointConfig holds the point balance engine's (component F/§4.8) invariants.
type PointConfig struct {
	DailyLimit int `envconfig:"POINT_DAILY_LIMIT" default:"1000000"`
	MaxBalance int `envconfig:"POINT_MAX_BALANCE" default:"10000000"`
	MinCharge  int `envconfig:"POINT_MIN_CHARGE" default:"1000"`
	MaxCharge  int `envconfig:"POINT_MAX_CHARGE" default:"1000000"`
	MinDeduct  int `envconfig:"POINT_MIN_DEDUCT" default:"100"`
}

// CouponConfig holds the coupon issuance engine's (component H) drain worker
// cadence.
type CouponConfig struct {
	DrainInterval  time.Duration `envconfig:"COUPON_DRAIN_INTERVAL" default:"1s"`
	DrainBatchSize int           `envconfig:"COUPON_DRAIN_BATCH_SIZE" default:"100"`
}

// StatsConfig holds the statistics aggregator's (component I) cadence and
// popular-ranking cache limits.
type StatsConfig struct {
	FoldInterval      time.Duration `envconfig:"STATS_FOLD_INTERVAL" default:"30m"`
	CacheWarmInterval time.Duration `envconfig:"STATS_CACHE_WARM_INTERVAL" default:"30m"`
	PopularLimits     []int         `envconfig:"STATS_POPULAR_LIMITS" default:"5,10,20"`
}

// TracingConfig holds OpenTelemetry tracer configuration. Disabled by default
// so the process never dials a collector unless an operator opts in.
type TracingConfig struct {
	Enabled     bool   `envconfig:"TRACING_ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"TRACING_OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceName string `envconfig:"TRACING_SERVICE_NAME" default:"order-core"`
}

// Load parses environment variables into the Config struct and validates them.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return fmt.Errorf("SERVER_PORT must be a valid number: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	if c.Server.ShutdownTimeout < 1 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be at least 1 second, got %d", c.Server.ShutdownTimeout)
	}
	if c.Server.ShutdownTimeout > 300 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must not exceed 300 seconds, got %d", c.Server.ShutdownTimeout)
	}

	if c.DB.Host == "" {
		return fmt.Errorf("DB_HOST cannot be empty")
	}
	if c.DB.User == "" {
		return fmt.Errorf("DB_USER cannot be empty")
	}
	if c.DB.Name == "" {
		return fmt.Errorf("DB_NAME cannot be empty")
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.DB.Port)
	}
	if c.DB.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DB.MaxConns)
	}
	if c.DB.MinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be at least 0, got %d", c.DB.MinConns)
	}
	if c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DB.MinConns, c.DB.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[c.DB.SSLMode] {
		return fmt.Errorf("DB_SSLMODE must be one of: disable, allow, prefer, require, verify-ca, verify-full; got %q", c.DB.SSLMode)
	}

	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be at least 1, got %d", c.Outbox.BatchSize)
	}
	if c.Outbox.MaxRetry < 1 {
		return fmt.Errorf("OUTBOX_MAX_RETRY must be at least 1, got %d", c.Outbox.MaxRetry)
	}
	if c.Outbox.DLQAlertThreshold < 1 {
		return fmt.Errorf("OUTBOX_DLQ_ALERT_THRESHOLD must be at least 1, got %d", c.Outbox.DLQAlertThreshold)
	}

	if c.Point.MinCharge%100 != 0 {
		return fmt.Errorf("POINT_MIN_CHARGE must be a multiple of 100, got %d", c.Point.MinCharge)
	}
	if c.Point.MinCharge > c.Point.MaxCharge {
		return fmt.Errorf("POINT_MIN_CHARGE (%d) cannot exceed POINT_MAX_CHARGE (%d)", c.Point.MinCharge, c.Point.MaxCharge)
	}
	if c.Point.MinDeduct%100 != 0 {
		return fmt.Errorf("POINT_MIN_DEDUCT must be a multiple of 100, got %d", c.Point.MinDeduct)
	}
	if c.Point.DailyLimit < 1 {
		return fmt.Errorf("POINT_DAILY_LIMIT must be at least 1, got %d", c.Point.DailyLimit)
	}
	if c.Point.MaxBalance < 1 {
		return fmt.Errorf("POINT_MAX_BALANCE must be at least 1, got %d", c.Point.MaxBalance)
	}

	if c.Coupon.DrainBatchSize < 1 {
		return fmt.Errorf("COUPON_DRAIN_BATCH_SIZE must be at least 1, got %d", c.Coupon.DrainBatchSize)
	}

	if len(c.Stats.PopularLimits) == 0 {
		return fmt.Errorf("STATS_POPULAR_LIMITS must contain at least one limit")
	}

	return nil
}

// WarnIfDefaultCredentials returns a list of human-readable warnings for any
// configuration value still at its insecure development default. Callers log
// these at startup; they are not fatal.
func (c *Config) WarnIfDefaultCredentials() []string {
	var warnings []string
	if c.DB.Password == "postgres" {
		warnings = append(warnings, "DB_PASSWORD is set to the development default; change it in production")
	}
	if c.DB.User == "postgres" {
		warnings = append(warnings, "DB_USER is set to the development default; change it in production")
	}
	if c.DB.SSLMode == "disable" {
		warnings = append(warnings, "DB_SSLMODE is \"disable\"; use \"require\" or stronger in production")
	}
	return warnings
}
