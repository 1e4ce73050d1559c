// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/config"
	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/http/handlers"
	"github.com/seowizzard/go-redirect-backend/internal/http/middleware"
	"github.com/seowizzard/go-redirect-backend/internal/repo"
	"github.com/seowizzard/go-redirect-backend/internal/services"
)

// resolverStoreShim adapts the repository free functions to the
// services.ResolverStore interface expected by the ResolverService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type resolverStoreShim struct{}

// FindExactRedirect proxies repo.FindExactRedirect.
func (resolverStoreShim) FindExactRedirect(ctx context.Context, db *gorm.DB, shop, path string) (*domain.Redirect, error) {
	return repo.FindExactRedirect(ctx, db, shop, path)
}

// ListWildcardRedirects proxies repo.ListWildcardRedirects.
func (resolverStoreShim) ListWildcardRedirects(ctx context.Context, db *gorm.DB, shop string) ([]domain.Redirect, error) {
	return repo.ListWildcardRedirects(ctx, db, shop)
}

// CreateNotFound proxies repo.CreateNotFound.
func (resolverStoreShim) CreateNotFound(ctx context.Context, db *gorm.DB, shop, path string, userAgent, referer *string) (*domain.NotFoundRecord, error) {
	return repo.CreateNotFound(ctx, db, shop, path, userAgent, referer)
}

// MarkNotFoundResolved proxies repo.MarkNotFoundResolved.
func (resolverStoreShim) MarkNotFoundResolved(ctx context.Context, db *gorm.DB, shop string, paths []string, redirectTo string) (int64, error) {
	return repo.MarkNotFoundResolved(ctx, db, shop, paths, redirectTo)
}

// GetAutoFixSetting proxies repo.GetAutoFixSetting.
func (resolverStoreShim) GetAutoFixSetting(ctx context.Context, db *gorm.DB, shop string) (*domain.AutoFixSetting, error) {
	return repo.GetAutoFixSetting(ctx, db, shop)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per shop/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, src services.RuleSource, mailer services.Mailer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"Authorization", // carries the cron Bearer secret
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Response compression (bulk imports and listings benefit most)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, shop, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, shop, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per shop/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByShopOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured). The
	// resolution endpoint is called cross-origin from every storefront.
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.HeaderShopDomain, "X-User-Agent", "X-Referrer", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.HeaderShopDomain, "X-User-Agent", "X-Referrer", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (flag-gated)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/source
	resolverSvc := services.NewResolverService(db, resolverStoreShim{})
	ruleSvc := &services.RuleService{DB: db}
	autoFixSvc := &services.AutoFixService{DB: db}
	analyticsSvc := &services.AnalyticsService{DB: db}
	notifySvc := &services.NotificationService{DB: db, Mailer: mailer}
	reconSvc := &services.ReconcileService{
		DB:        db,
		Source:    src,
		PageSize:  cfg.ReconcilePageSize,
		BatchSize: cfg.ReconcileBatchSize,
	}
	h := handlers.New(resolverSvc, ruleSvc, autoFixSvc, analyticsSvc, notifySvc, reconSvc, cfg.CronSecret).
		WithIdempotency(db, cfg.IdempotencyTTL)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Resolution (storefront edge script)
		api.GET("/redirect", h.CheckRedirect)

		// Rules
		api.POST("/redirects/bulk", h.BulkCreateRedirects)
		api.GET("/redirects", h.ListRedirects)
		api.DELETE("/redirects", h.DeleteRedirect)
		api.POST("/redirects/wildcard", h.CreateWildcardRedirect)
		api.DELETE("/redirects/wildcard", h.DeleteWildcardRedirect)
		api.GET("/redirects/wildcards", h.ListWildcardRedirects)
		api.POST("/redirects/reconcile", h.ReconcileRedirects)

		// Settings
		api.GET("/settings/auto-fix", h.GetAutoFix)
		api.POST("/settings/auto-fix", h.SetAutoFix)
		api.GET("/settings/notifications", h.ListNotifications)
		api.POST("/settings/notifications", h.SetNotification)

		// Analytics
		api.GET("/broken-links", h.ListBrokenLinks)
		api.GET("/analytics/summary", h.AnalyticsSummary)

		// Scheduler
		api.POST("/cron/notifications", h.RunNotificationCron)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
