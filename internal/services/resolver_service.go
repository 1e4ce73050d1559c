// Package services – ResolverService
//
// This file implements the resolution engine: the per-request decision of
// whether an incoming broken path is covered by an existing redirect rule.
// The engine is stateless across requests. Each call runs the same ladder:
// exact lookup, then a first-match-wins scan of the shop's wildcard rules in
// creation order, then the miss path (log the occurrence, consult the
// auto-fix policy).
//
// Precedence is fixed: an exact rule always beats any wildcard, regardless of
// rule age. Among wildcards there is no specificity ranking; the first
// structural match in enumeration order wins.
//
// Observability: Resolve is OpenTelemetry-instrumented and increments a
// Prometheus counter per outcome.
package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/pattern"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// resolutions counts resolution outcomes. "exact" and "wildcard" are rule
// hits, "autofix" is the live fallback, "miss" is an unresolved 404.
var resolutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redirect_resolutions_total",
		Help: "Total number of 404 resolution decisions by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(resolutions)
}

// Decision is the engine's terminal answer for one miss report. When Redirect
// is true, Status carries the HTTP status the storefront should navigate
// with (301).
type Decision struct {
	Redirect    bool   `json:"redirect"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Status      int    `json:"status,omitempty"`
}

// ResolverStore defines the persistence contract required by ResolverService.
// Implementations are responsible for rule lookup, miss logging, and the
// auto-fix policy read.
type ResolverStore interface {
	// FindExactRedirect returns the active exact rule for (shop, path), or
	// repo.ErrNotFound.
	FindExactRedirect(ctx context.Context, db *gorm.DB, shop, path string) (*domain.Redirect, error)

	// ListWildcardRedirects returns active wildcard rules in creation order.
	ListWildcardRedirects(ctx context.Context, db *gorm.DB, shop string) ([]domain.Redirect, error)

	// CreateNotFound appends one miss occurrence.
	CreateNotFound(ctx context.Context, db *gorm.DB, shop, path string, userAgent, referer *string) (*domain.NotFoundRecord, error)

	// MarkNotFoundResolved flips unresolved records for the given paths.
	MarkNotFoundResolved(ctx context.Context, db *gorm.DB, shop string, paths []string, redirectTo string) (int64, error)

	// GetAutoFixSetting returns the shop policy or repo.ErrNotFound.
	GetAutoFixSetting(ctx context.Context, db *gorm.DB, shop string) (*domain.AutoFixSetting, error)
}

// ResolverService decides, per reported miss, whether a redirect applies.
type ResolverService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the persistence contract used by this service.
	Store ResolverStore
}

// NewResolverService constructs a ResolverService bound to db and store.
func NewResolverService(db *gorm.DB, store ResolverStore) *ResolverService {
	return &ResolverService{DB: db, Store: store}
}

// Resolve runs the resolution ladder for one miss report.
//
// Semantics:
//   - Exact rule hit: return a 301 decision to the rule's destination.
//   - Wildcard hit: substitute the capture into the destination and return a
//     301 decision. Stored rows that fail pattern compilation are skipped,
//     never fatal.
//   - Either hit also marks prior unresolved records for this path as
//     resolved, best-effort: a failure there is logged and does not block the
//     redirect decision.
//   - No hit: the occurrence is always logged first (analytics must see the
//     raw miss), then the auto-fix policy is consulted. An enabled policy
//     yields a live 301 decision without materializing a rule, and the logged
//     record deliberately stays redirected=false.
//
// A database failure on the lookup or insert path is returned to the caller;
// the HTTP layer maps it to a 5xx that the edge script swallows.
func (s *ResolverService) Resolve(ctx context.Context, shop, path string, userAgent, referer *string) (Decision, error) {
	tr := otel.Tracer("services/ResolverService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("shop.domain", shop),
			attribute.String("miss.path", path),
		),
	)
	defer span.End()

	if shop == "" {
		return Decision{}, ErrMissingShop
	}
	if path == "" {
		return Decision{}, ErrMissingPath
	}

	// 1) Exact lookup. Absence is a normal outcome, not an error.
	exact, err := s.Store.FindExactRedirect(ctx, s.DB, shop, path)
	if err != nil && !isNotFound(err) {
		return Decision{}, err
	}
	if exact != nil {
		s.markResolved(ctx, shop, path, exact.ToPath)
		resolutions.WithLabelValues("exact").Inc()
		return redirectDecision(exact.ToPath), nil
	}

	// 2) Wildcard scan, first structural match wins.
	wildcards, err := s.Store.ListWildcardRedirects(ctx, s.DB, shop)
	if err != nil {
		return Decision{}, err
	}
	for i := range wildcards {
		rule, rerr := wildcards[i].Rule()
		if rerr != nil {
			// Inconsistent row; skip it rather than fail the request.
			log.Warn().Str("shop", shop).Str("rule_id", wildcards[i].ID).Msg("skipping inconsistent wildcard rule")
			continue
		}
		wc, ok := rule.(domain.WildcardRule)
		if !ok {
			continue
		}
		compiled, cerr := pattern.Compile(wc.Pattern)
		if cerr != nil {
			log.Warn().Str("shop", shop).Str("pattern", wc.Pattern).Err(cerr).Msg("skipping uncompilable wildcard rule")
			continue
		}
		if capture, matched := compiled.Match(path); matched {
			dest := pattern.Expand(wc.ToPath, capture)
			s.markResolved(ctx, shop, path, dest)
			resolutions.WithLabelValues("wildcard").Inc()
			return redirectDecision(dest), nil
		}
	}

	// 3) Unresolved: log the raw miss unconditionally, before any auto-fix
	// handling, so analytics stay accurate.
	if _, err := s.Store.CreateNotFound(ctx, s.DB, shop, path, userAgent, referer); err != nil {
		return Decision{}, err
	}

	// 4) Auto-fix fallback: a live redirect, never a durable rule.
	policy, err := s.Store.GetAutoFixSetting(ctx, s.DB, shop)
	if err != nil && !isNotFound(err) {
		return Decision{}, err
	}
	if policy != nil && policy.Enabled && policy.ToPath != "" {
		resolutions.WithLabelValues("autofix").Inc()
		return redirectDecision(policy.ToPath), nil
	}

	resolutions.WithLabelValues("miss").Inc()
	return Decision{Redirect: false}, nil
}

// markResolved flips prior unresolved records for path. Best-effort: the
// redirect decision is already made, so a failure here only costs analytics
// freshness.
func (s *ResolverService) markResolved(ctx context.Context, shop, path, dest string) {
	if _, err := s.Store.MarkNotFoundResolved(ctx, s.DB, shop, []string{path}, dest); err != nil {
		log.Warn().Str("shop", shop).Str("path", path).Err(err).Msg("failed to mark prior misses resolved")
	}
}

func redirectDecision(dest string) Decision {
	return Decision{Redirect: true, RedirectURL: dest, Status: 301}
}
