// Command server runs the deposits HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	depositapp "github.com/erp/deposits/internal/application/deposit"
	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/erp/deposits/internal/infrastructure/auth"
	"github.com/erp/deposits/internal/infrastructure/cache"
	"github.com/erp/deposits/internal/infrastructure/config"
	"github.com/erp/deposits/internal/infrastructure/event"
	"github.com/erp/deposits/internal/infrastructure/logger"
	"github.com/erp/deposits/internal/infrastructure/persistence"
	"github.com/erp/deposits/internal/infrastructure/scheduler"
	"github.com/erp/deposits/internal/infrastructure/telemetry"
	"github.com/erp/deposits/internal/interfaces/http/handler"
	"github.com/erp/deposits/internal/interfaces/http/middleware"
	"github.com/erp/deposits/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

//	@title			Deposits API
//	@version		1.0
//	@description	Deposit and partial payment schedules for storefront orders
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// Telemetry: logs are bridged first so every later component logs to the collector too
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	defer shutdown(log, "log exporter", logProvider.Shutdown)
	log = logProvider.Bridge(log, logger.ParseLevel(cfg.Telemetry.LogsLevel))

	log.Info("Starting deposits service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer shutdown(log, "tracer", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	defer shutdown(log, "meter", meterProvider.Shutdown)
	meter := meterProvider.Meter(telemetry.MeterName)

	// Database
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	dbTracing.DBName = cfg.Database.DBName

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithTracing(dbTracing, log),
		persistence.WithMetrics(meter),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Session and idempotency stores, Redis when configured
	stores, err := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to create stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing stores", zap.Error(err))
		}
	}()

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	planRepo := persistence.NewGormPaymentPlanRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Event bus and handlers
	eventBus := event.NewInMemoryEventBus(log, event.WithHandlerTimeout(cfg.Event.HandlerTimeout))
	idemConfig := shared.IdempotencyConfig{TTL: cfg.Event.IdempotencyTTL, Enabled: cfg.Event.IdempotencyEnabled}
	idemMetrics := &event.IdempotencyMetrics{}

	subscribe := func(h shared.EventHandler) {
		if cfg.Event.IdempotencyEnabled {
			h = event.NewIdempotentHandler(h, stores.Idempotency, log,
				event.WithIdempotencyConfig(idemConfig),
				event.WithIdempotencyMetrics(idemMetrics),
			)
		}
		eventBus.Subscribe(h)
	}
	subscribe(depositapp.NewPaymentOrderPaidHandler(orderRepo, log))
	subscribe(depositapp.NewInstallmentReminderHandler(depositapp.NewLogNotifier(log), log))

	depositMetrics, err := telemetry.NewDepositMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register deposit metrics", zap.Error(err))
	}
	eventBus.Subscribe(depositapp.NewMetricsHandler(depositMetrics))

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer shutdown(log, "event bus", eventBus.Stop)

	// Events go through the outbox so they survive a crash between save and dispatch
	var publisher shared.EventPublisher = eventBus
	var outboxProcessor *event.OutboxProcessor
	if cfg.Event.OutboxEnabled {
		serializer := event.NewDepositEventSerializer()
		publisher = event.NewOutboxPublisher(outboxRepo, serializer)

		outboxConfig := event.DefaultOutboxProcessorConfig()
		outboxConfig.BatchSize = cfg.Event.OutboxBatchSize
		outboxConfig.PollInterval = cfg.Event.OutboxPollInterval
		outboxConfig.CleanupRetention = cfg.Event.OutboxRetention
		outboxProcessor = event.NewOutboxProcessor(outboxRepo, eventBus, serializer, outboxConfig, log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer shutdown(log, "outbox processor", outboxProcessor.Stop)
	}

	// Domain services
	settings, err := cfg.Deposit.Settings()
	if err != nil {
		log.Fatal("Invalid deposit settings", zap.Error(err))
	}
	currency, err := valueobject.ParseCurrency(cfg.Deposit.Currency)
	if err != nil {
		log.Fatal("Invalid store currency", zap.Error(err))
	}

	pipeline := depositapp.NewLifecyclePipeline(
		orderRepo,
		deposit.NewMaterializer(orderRepo, settings),
		deposit.NewStateMachine(orderRepo),
		log,
		depositapp.WithIdempotencyStore(stores.Idempotency, idemConfig),
		depositapp.WithEventPublisher(publisher),
	)
	checkoutService := depositapp.NewCheckoutService(
		orderRepo, planRepo, stores.Sessions, deposit.NewCalculator(), pipeline, settings, currency, log,
	)
	planService := depositapp.NewPlanService(planRepo, log)
	planService.SetEventPublisher(publisher)

	// Installment reminders
	var reminderScheduler *scheduler.ReminderScheduler
	if cfg.Scheduler.Enabled {
		reminderService := depositapp.NewReminderService(orderRepo, publisher, log)
		schedConfig := scheduler.DefaultReminderSchedulerConfig()
		schedConfig.Interval = cfg.Scheduler.Interval
		schedConfig.Window = cfg.Scheduler.ReminderWindow
		schedConfig.JobTimeout = cfg.Scheduler.JobTimeout
		reminderScheduler, err = scheduler.NewReminderScheduler(reminderService, log, schedConfig)
		if err != nil {
			log.Fatal("Invalid reminder scheduler configuration", zap.Error(err))
		}
		if err := reminderScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start reminder scheduler", zap.Error(err))
		}
		defer shutdown(log, "reminder scheduler", reminderScheduler.Stop)
	}

	// HTTP handlers
	systemOpts := []handler.SystemOption{
		handler.WithBuildInfo(cfg.App.Name, Version),
		handler.WithDatabase(db),
	}
	if outboxProcessor != nil {
		systemOpts = append(systemOpts, handler.WithOutbox(outboxProcessor))
	}
	if reminderScheduler != nil {
		systemOpts = append(systemOpts, handler.WithReminderScheduler(reminderScheduler))
	}

	var tokens middleware.TokenValidator
	if cfg.JWT.Secret != "" {
		tokens = auth.NewJWTService(cfg.JWT)
	}

	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = append(cfg.HTTP.CORSAllowHeaders, "Authorization")

	engine, err := router.New(router.Config{
		APIVersion:     "v1",
		Mode:           mode,
		BodyLimit:      cfg.HTTP.MaxBodySize,
		CORS:           cors,
		Tenant:         middleware.TenantConfig{DefaultTenant: cfg.HTTP.DefaultTenant()},
		Tracing:        middleware.TracingConfig{ServiceName: cfg.Telemetry.ServiceName, Enabled: tracerProvider.IsEnabled()},
		Meter:          meter,
		Logger:         log,
		TokenValidator: tokens,
	}, router.Handlers{
		Checkout: handler.NewCheckoutHandler(checkoutService),
		Plans:    handler.NewPaymentPlanHandler(planService),
		System:   handler.NewSystemHandler(systemOpts...),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}

// shutdown stops a component with a bounded context and logs failures
func shutdown(log *zap.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Error("Error stopping "+name, zap.Error(err))
	}
}
