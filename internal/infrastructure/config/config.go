package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Event     EventConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
	JWT       JWTConfig
	Deposit   DepositConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. An empty host selects the
// in-memory session and idempotency stores.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// EventConfig holds event processing configuration
type EventConfig struct {
	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration
	HandlerTimeout     time.Duration
	// Outbox relay, used when events are persisted with the orders
	OutboxEnabled      bool
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxRetention    time.Duration
}

// JWTConfig holds the settings for tokens guarding the admin endpoints
type JWTConfig struct {
	Secret                string
	Issuer                string
	AccessTokenExpiration time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	// DefaultTenantID serves storefront requests that carry no X-Tenant-ID
	DefaultTenantID string
}

// SchedulerConfig holds the installment reminder scheduler configuration
type SchedulerConfig struct {
	Enabled        bool
	Interval       time.Duration // How often due installments are scanned
	ReminderWindow time.Duration // How far ahead of the due date reminders go out
	JobTimeout     time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	ServiceVersion    string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	// Metrics and log export share the collector endpoint
	MetricsEnabled  bool
	MetricsInterval time.Duration
	LogsEnabled     bool
	LogsLevel       string // Minimum level exported to the collector
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
}

// DepositConfig is the store's deposit configuration as read from the
// [deposit] section
type DepositConfig struct {
	Enabled              bool
	CheckoutMode         bool
	AmountType           string `validate:"required,oneof=fixed percent payment_plan"`
	Amount               string `validate:"required,numeric"`
	ForceDeposit         bool
	DefaultSelected      string `validate:"omitempty,oneof=deposit full"`
	TaxDisplay           bool
	Structure            string `validate:"required,oneof=single copy_items"`
	Currency             string `validate:"required,len=3,uppercase"`
	PartialPaymentStatus string `validate:"max=50"`
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DEPOSITS_ prefix (e.g., DEPOSITS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/deposits")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DEPOSITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be told apart from "unset" after loading
	v.SetDefault("deposit.checkout_mode", true)
	v.SetDefault("event.idempotency_enabled", true)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("event.outbox_enabled", true)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Event: EventConfig{
			IdempotencyEnabled: v.GetBool("event.idempotency_enabled"),
			IdempotencyTTL:     v.GetDuration("event.idempotency_ttl"),
			HandlerTimeout:     v.GetDuration("event.handler_timeout"),
			OutboxEnabled:      v.GetBool("event.outbox_enabled"),
			OutboxPollInterval: v.GetDuration("event.outbox_poll_interval"),
			OutboxBatchSize:    v.GetInt("event.outbox_batch_size"),
			OutboxRetention:    v.GetDuration("event.outbox_retention"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			DefaultTenantID:  v.GetString("http.default_tenant_id"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        v.GetBool("scheduler.enabled"),
			Interval:       v.GetDuration("scheduler.interval"),
			ReminderWindow: v.GetDuration("scheduler.reminder_window"),
			JobTimeout:     v.GetDuration("scheduler.job_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			ServiceVersion:    v.GetString("telemetry.service_version"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			LogsLevel:         v.GetString("telemetry.logs_level"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			Issuer:                v.GetString("jwt.issuer"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
		},
		Deposit: DepositConfig{
			Enabled:              v.GetBool("deposit.enabled"),
			CheckoutMode:         v.GetBool("deposit.checkout_mode"),
			AmountType:           v.GetString("deposit.amount_type"),
			Amount:               v.GetString("deposit.amount"),
			ForceDeposit:         v.GetBool("deposit.force_deposit"),
			DefaultSelected:      v.GetString("deposit.default_selected"),
			TaxDisplay:           v.GetBool("deposit.tax_display"),
			Structure:            v.GetString("deposit.structure"),
			Currency:             v.GetString("deposit.currency"),
			PartialPaymentStatus: v.GetString("deposit.partial_payment_status"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "deposits"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "deposits"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Event.IdempotencyTTL == 0 {
		cfg.Event.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Event.HandlerTimeout == 0 {
		cfg.Event.HandlerTimeout = 30 * time.Second
	}
	if cfg.Event.OutboxPollInterval == 0 {
		cfg.Event.OutboxPollInterval = 2 * time.Second
	}
	if cfg.Event.OutboxBatchSize == 0 {
		cfg.Event.OutboxBatchSize = 100
	}
	if cfg.Event.OutboxRetention == 0 {
		cfg.Event.OutboxRetention = 7 * 24 * time.Hour
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	// An empty origin list allows no cross-origin requests
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "X-Tenant-ID", "X-Session-ID"}
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = time.Hour
	}
	if cfg.Scheduler.ReminderWindow == 0 {
		cfg.Scheduler.ReminderWindow = 72 * time.Hour
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 5 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "deposits"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "dev"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30 * time.Second
	}
	if cfg.Telemetry.LogsLevel == "" {
		cfg.Telemetry.LogsLevel = "info"
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "deposits"
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Deposit.AmountType == "" {
		cfg.Deposit.AmountType = string(deposit.AmountTypePercent)
	}
	if cfg.Deposit.Amount == "" {
		cfg.Deposit.Amount = "50"
	}
	if cfg.Deposit.DefaultSelected == "" {
		cfg.Deposit.DefaultSelected = string(deposit.SelectionDeposit)
	}
	if cfg.Deposit.Structure == "" {
		cfg.Deposit.Structure = string(deposit.StructureSingle)
	}
	if cfg.Deposit.Currency == "" {
		cfg.Deposit.Currency = "USD"
	}
	if cfg.Deposit.PartialPaymentStatus == "" {
		cfg.Deposit.PartialPaymentStatus = "Partially Paid"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Event.OutboxBatchSize < 0 {
		return fmt.Errorf("event.outbox_batch_size cannot be negative")
	}
	if c.HTTP.DefaultTenantID != "" {
		if _, err := uuid.Parse(c.HTTP.DefaultTenantID); err != nil {
			return fmt.Errorf("http.default_tenant_id must be a UUID: %w", err)
		}
	}
	if c.Scheduler.ReminderWindow < 0 {
		return fmt.Errorf("scheduler.reminder_window cannot be negative")
	}

	if err := validator.New().Struct(c.Deposit); err != nil {
		return fmt.Errorf("invalid deposit configuration: %w", err)
	}
	if _, err := c.Deposit.Settings(); err != nil {
		return fmt.Errorf("invalid deposit configuration: %w", err)
	}
	return nil
}

// Settings converts the deposit section into domain settings. Payment plan
// IDs are not part of the file; they are loaded per tenant at checkout.
func (d DepositConfig) Settings() (deposit.Settings, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return deposit.Settings{}, fmt.Errorf("deposit.amount: %w", err)
	}
	s := deposit.Settings{
		Enabled:         d.Enabled,
		CheckoutMode:    d.CheckoutMode,
		AmountType:      deposit.AmountType(d.AmountType),
		Amount:          amount,
		ForceDeposit:    d.ForceDeposit,
		DefaultSelected: deposit.Selection(d.DefaultSelected),
		TaxSplitDisplay: d.TaxDisplay,
		Structure:       deposit.Structure(d.Structure),
	}
	if s.AmountType == deposit.AmountTypePaymentPlan {
		return s, validateWithoutPlans(s)
	}
	return s, s.Validate()
}

// validateWithoutPlans checks everything but the plan list
func validateWithoutPlans(s deposit.Settings) error {
	probe := s
	probe.AmountType = deposit.AmountTypePercent
	probe.Amount = decimal.Zero
	return probe.Validate()
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// DefaultTenant returns the configured storefront tenant or uuid.Nil
func (h *HTTPConfig) DefaultTenant() uuid.UUID {
	id, err := uuid.Parse(h.DefaultTenantID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// RedisAddr returns host:port, or "" when Redis is not configured
func (r *RedisConfig) RedisAddr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
