package router

import (
	"fmt"

	"github.com/erp/deposits/internal/infrastructure/auth"
	"github.com/erp/deposits/internal/infrastructure/logger"
	"github.com/erp/deposits/internal/interfaces/http/handler"
	"github.com/erp/deposits/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultBodyLimit caps request bodies at 1 MiB
const DefaultBodyLimit int64 = 1 << 20

// Config configures the HTTP engine
type Config struct {
	APIVersion     string
	Mode           string
	BodyLimit      int64
	CORS           middleware.CORSConfig
	Tenant         middleware.TenantConfig
	Tracing        middleware.TracingConfig
	Meter          metric.Meter
	Logger         *zap.Logger
	TokenValidator middleware.TokenValidator
}

// Handlers groups the HTTP handlers served by the engine
type Handlers struct {
	Checkout *handler.CheckoutHandler
	Plans    *handler.PaymentPlanHandler
	System   *handler.SystemHandler
}

// New builds the gin engine with the global middleware chain and every route.
//
// Storefront routes resolve the tenant from the X-Tenant-ID header and bind a
// checkout session. Webhook and administration routes require a bearer token
// whose tenant wins over the header.
func New(cfg Config, h Handlers) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	middleware.SetupValidator()

	metrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	engine := gin.New()
	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanAttributes(),
		logger.GinMiddleware(cfg.Logger),
		metrics,
		middleware.CORS(cfg.CORS),
		middleware.Secure(),
		middleware.BodyLimit(cfg.BodyLimit),
	)

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	opts := []RouterOption{}
	if cfg.APIVersion != "" {
		opts = append(opts, WithAPIVersion(cfg.APIVersion))
	}
	r := NewRouter(engine, opts...)

	if h.System != nil {
		r.Register(SystemRoutes(h.System))
	}
	if h.Checkout != nil {
		r.Register(StorefrontRoutes(h.Checkout, cfg.Tenant))
	}
	if cfg.TokenValidator != nil {
		chain := []gin.HandlerFunc{
			middleware.JWTAuth(cfg.TokenValidator, cfg.Logger),
			middleware.Tenant(cfg.Tenant),
		}
		if h.Checkout != nil {
			r.Register(WebhookRoutes(h.Checkout, chain...))
		}
		if h.Plans != nil {
			r.Register(PaymentPlanRoutes(h.Plans, chain...))
		}
	} else {
		cfg.Logger.Warn("no token validator configured, webhook and plan routes are disabled")
	}

	r.Setup()
	return engine, nil
}

// SystemRoutes serves /system
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo).
		GET("/ping", h.Ping).
		GET("/health", h.Health)
}

// StorefrontRoutes serves the cart deposit endpoints and order placement
func StorefrontRoutes(h *handler.CheckoutHandler, tenant middleware.TenantConfig) *DomainGroup {
	g := NewDomainGroup("storefront", "").Use(middleware.Tenant(tenant), middleware.Session())
	g.GET("/deposit/settings", h.GetSettings)
	g.Group("cart", "/cart/deposit").
		POST("/quote", h.Quote).
		PUT("/selection", h.UpdateSelection).
		POST("/gateway-total", h.GatewayTotal)
	g.Group("orders", "/orders").
		POST("", h.PlaceOrder).
		GET("/:id/schedule", h.GetOrderSchedule)
	return g
}

// WebhookRoutes serves the order status and payment webhooks
func WebhookRoutes(h *handler.CheckoutHandler, authChain ...gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("webhooks", "/orders").
		Use(authChain...).
		Use(middleware.RequireScope(auth.ScopeOrdersWrite)).
		POST("/:id/status", h.ChangeStatus).
		POST("/:id/payment-complete", h.CompletePayment)
}

// PaymentPlanRoutes serves payment plan administration
func PaymentPlanRoutes(h *handler.PaymentPlanHandler, authChain ...gin.HandlerFunc) *DomainGroup {
	read := middleware.RequireScope(auth.ScopePlansRead, auth.ScopePlansWrite)
	write := middleware.RequireScope(auth.ScopePlansWrite)
	return NewDomainGroup("payment-plans", "/payment-plans").
		Use(authChain...).
		GET("", read, h.List).
		GET("/:id", read, h.Get).
		POST("", write, h.Create).
		PUT("/:id", write, h.Update).
		DELETE("/:id", write, h.Delete)
}
