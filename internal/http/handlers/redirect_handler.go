// Miss-report HTTP handler.
//
// This file exposes the endpoint consumed by the storefront edge script:
//   - GET /redirect?path=…   (resolve a broken path against the shop's rules)
//
// The edge script reports every 404 it sees, follows the returned decision
// if one applies, and treats any non-2xx as "stay on the 404 page". Handlers
// are transport-thin: they validate input, call application services, and
// translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/repo"
	"github.com/seowizzard/go-redirect-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ResolverService runs the redirect resolution ladder for one reported miss.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ResolverService interface {
	// Resolve decides whether a redirect applies to (shop, path).
	Resolve(ctx context.Context, shop, path string, userAgent, referer *string) (services.Decision, error)
}

// RuleService manages redirect rule lifecycle for HTTP handlers.
type RuleService interface {
	// BulkCreateExact creates exact rules and resolves prior misses atomically.
	BulkCreateExact(ctx context.Context, shop string, paths []string, toPath string) (int64, error)
	// CreateWildcard validates and creates a wildcard rule.
	CreateWildcard(ctx context.Context, shop, pattern, toPath string) (*domain.Redirect, error)
	// DeleteExact removes exact rules by natural key.
	DeleteExact(ctx context.Context, shop, fromPath string) (int64, error)
	// DeleteWildcard removes wildcard rules by natural key.
	DeleteWildcard(ctx context.Context, shop, pattern string) (int64, error)
	// ListExactPage returns a page of exact rules and the total count.
	ListExactPage(ctx context.Context, shop string, page, pageSize int) ([]domain.Redirect, int64, error)
	// ListWildcards returns the shop's wildcard rules in enumeration order.
	ListWildcards(ctx context.Context, shop string) ([]domain.Redirect, error)
	// Stats returns the rule count and latest update time, used for the
	// weak ETag on the rule listing.
	Stats(ctx context.Context, shop string) (int64, *time.Time, error)
}

// AutoFixService reads and writes the per-shop fallback policy.
type AutoFixService interface {
	Get(ctx context.Context, shop string) (*domain.AutoFixSetting, error)
	Set(ctx context.Context, shop string, enabled bool, toPath string) (*domain.AutoFixSetting, error)
}

// AnalyticsService serves the dashboard aggregates.
type AnalyticsService interface {
	BrokenLinksPage(ctx context.Context, shop string, page, pageSize int) ([]repo.PathGroup, int64, error)
	Summary(ctx context.Context, shop, rng string) (*services.Summary, error)
	// Stats returns the miss-log count and latest miss timestamp, used for
	// the weak ETag on the broken-links listing.
	Stats(ctx context.Context, shop string) (int64, *time.Time, error)
}

// NotificationService manages digest settings and the cron tick.
type NotificationService interface {
	Upsert(ctx context.Context, shop, email string, enabled bool, frequency string) (*domain.NotificationSetting, error)
	List(ctx context.Context, shop string) ([]domain.NotificationSetting, error)
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

// ReconcileRunner triggers the replace-all import from the external system
// of record.
type ReconcileRunner interface {
	Run(ctx context.Context, shop string) (int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for resolution, rules, settings, and
// analytics. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	resolver   ResolverService
	rules      RuleService
	autoFix    AutoFixService
	analytics  AnalyticsService
	notify     NotificationService
	reconciler ReconcileRunner
	cronSecret string

	// Idempotency persistence for the mutating rule endpoints. Set via
	// WithIdempotency; nil disables replay detection.
	idemDB  *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services. cronSecret
// guards the cron endpoint; an empty value disables it.
func New(resolver ResolverService, rules RuleService, autoFix AutoFixService, analytics AnalyticsService, notify NotificationService, reconciler ReconcileRunner, cronSecret string) *Handlers {
	return &Handlers{
		resolver:   resolver,
		rules:      rules,
		autoFix:    autoFix,
		analytics:  analytics,
		notify:     notify,
		reconciler: reconciler,
		cronSecret: cronSecret,
	}
}

// WithIdempotency enables Idempotency-Key persistence for the rule-creation
// endpoints. Keys are recorded after a successful mutation and stay valid for
// ttl; a request replaying a recorded key is short-circuited instead of
// re-running the mutation. Without this the endpoints still work, they just
// never detect replays.
func (h *Handlers) WithIdempotency(db *gorm.DB, ttl time.Duration) *Handlers {
	h.idemDB = db
	h.idemTTL = ttl
	return h
}

// HeaderShopDomain identifies the tenant on every request, set by the edge
// script and by the embedded admin UI alike.
const HeaderShopDomain = "X-Shop-Domain"

// shopDomain extracts the tenant from the Gin context (set by upstream
// middleware) with a fallback to the X-Shop-Domain header. Returns "" when
// no identity is available; handlers treat that as a validation failure.
func shopDomain(c *gin.Context) string {
	if v, ok := c.Get("shopDomain"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader(HeaderShopDomain)); h != "" {
			return h
		}
	}
	return ""
}

// optionalHeader returns a pointer to the trimmed header value, or nil when
// the header is absent or blank.
func optionalHeader(c *gin.Context, name string) *string {
	v := strings.TrimSpace(c.GetHeader(name))
	if v == "" {
		return nil
	}
	return &v
}

//
// Handlers
//

// CheckRedirect godoc
// @ID          checkRedirect
// @Summary     Resolve a broken path
// @Description Runs the resolution ladder (exact rule, wildcard rules, auto-fix policy) for a reported 404 and returns the redirect decision. Every unresolved miss is logged.
// @Tags        Resolution
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
// @Param       X-User-Agent   header  string  false "Original user agent"
// @Param       X-Referrer     header  string  false "Original referrer"
// @Param       path           query   string  true  "The broken path"       example(/old-blog/my-post)
//
// @Success     200  {object}  services.Decision
// @Failure     400  {object}  services.Decision       "Missing path or shop"
// @Failure     500  {object}  handlers.ErrorResponse  "Store failure"
// @Router      /redirect [get]
func (h *Handlers) CheckRedirect(c *gin.Context) {
	path := strings.TrimSpace(c.Query("path"))
	shop := shopDomain(c)
	if path == "" || shop == "" {
		// The edge script only branches on the redirect flag; keep the error
		// body in the same shape it expects.
		c.JSON(http.StatusBadRequest, services.Decision{Redirect: false})
		return
	}

	ua := optionalHeader(c, "X-User-Agent")
	ref := optionalHeader(c, "X-Referrer")

	decision, err := h.resolver.Resolve(c.Request.Context(), shop, path, ua, ref)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeResolveFailed, "failed to process request")
		return
	}
	ok(c, http.StatusOK, decision)
}
