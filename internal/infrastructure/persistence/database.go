package persistence

import (
	"fmt"
	"time"

	"github.com/erp/deposits/internal/infrastructure/config"
	"github.com/erp/deposits/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB      *gorm.DB
	metrics *telemetry.DBMetrics
}

// Option configures a Database
type Option func(*dbOptions)

type dbOptions struct {
	gormLogger logger.Interface
	tracing    *telemetry.DBTracingConfig
	meter      metric.Meter
	logger     *zap.Logger
}

// WithGormLogger sets the GORM logger, silent by default
func WithGormLogger(l logger.Interface) Option {
	return func(o *dbOptions) {
		o.gormLogger = l
	}
}

// WithTracing registers otelgorm statement tracing
func WithTracing(cfg telemetry.DBTracingConfig, l *zap.Logger) Option {
	return func(o *dbOptions) {
		o.tracing = &cfg
		o.logger = l
	}
}

// WithMetrics records pool and statement metrics on meter
func WithMetrics(meter metric.Meter) Option {
	return func(o *dbOptions) {
		o.meter = meter
	}
}

// NewDatabase connects to PostgreSQL with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, opts...)
}

// Open connects through any GORM dialector, applies pool limits from cfg and
// verifies the connection
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := &dbOptions{gormLogger: logger.Default.LogMode(logger.Silent), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &Database{DB: db}
	if o.tracing != nil {
		if err := telemetry.RegisterDBTracing(db, *o.tracing, o.logger); err != nil {
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}
	if o.meter != nil {
		if d.metrics, err = telemetry.RegisterDBMetrics(db, sqlDB, o.meter); err != nil {
			return nil, fmt.Errorf("failed to register database metrics: %w", err)
		}
	}
	return d, nil
}

// Close stops metric collection and closes the database connection
func (d *Database) Close() error {
	if d.metrics != nil {
		_ = d.metrics.Stop()
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}

// WithTenant returns a new GORM DB instance scoped to a specific store.
// Panics on a nil tenant ID to prevent data leakage.
func (d *Database) WithTenant(tenantID uuid.UUID) *gorm.DB {
	if tenantID == uuid.Nil {
		panic("WithTenant called with nil tenant ID - this is a programming error")
	}
	return d.DB.Where("tenant_id = ?", tenantID)
}
