// Package services – RuleService
//
// This file implements RuleService, which owns the lifecycle of redirect
// rules: single and bulk exact creation, wildcard creation (with pattern
// validation tightened to exactly one '*'), deletion by natural key, and the
// admin listings.
//
// The bulk-create flow is the one place where the rule store and the miss log
// must move together: creating rules for previously observed broken paths and
// flipping those miss records to resolved happens inside one transaction, so
// a reader never sees a rule without its corresponding miss-log update.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/pattern"
	"github.com/seowizzard/go-redirect-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RuleService provides rule-level operations for one injected DB handle.
type RuleService struct {
	// DB is the database handle used for all rule operations.
	// The handle may be a plain *gorm.DB or a transaction-bound handle.
	DB *gorm.DB
}

// BulkCreateExact creates one active exact rule per path, all pointing at
// toPath, and marks every previously logged, unresolved miss on those paths
// as resolved. Both writes run in a single transaction.
//
// Paths already covered by a rule are skipped (the batch never aborts on a
// duplicate); the returned count reflects rules actually inserted. The
// single-rule creation flow is the one-element case of this method.
func (s *RuleService) BulkCreateExact(ctx context.Context, shop string, paths []string, toPath string) (int64, error) {
	tr := otel.Tracer("services/RuleService")
	ctx, span := tr.Start(ctx, "BulkCreateExact",
		trace.WithAttributes(
			attribute.String("shop.domain", shop),
			attribute.Int("paths.count", len(paths)),
		),
	)
	defer span.End()

	if shop == "" {
		return 0, ErrMissingShop
	}
	if toPath == "" {
		return 0, ErrMissingDestination
	}
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return 0, ErrMissingPath
	}

	var created int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.BulkCreateExactRedirects(ctx, tx, shop, cleaned, toPath)
		if err != nil {
			return err
		}
		created = n
		_, err = repo.MarkNotFoundResolved(ctx, tx, shop, cleaned, toPath)
		return err
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// CreateWildcard validates the pattern (exactly one '*') and inserts an
// active wildcard rule. Wildcard creation does not retroactively resolve past
// misses; only future resolution requests consult the new rule.
func (s *RuleService) CreateWildcard(ctx context.Context, shop, pat, toPath string) (*domain.Redirect, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}
	if toPath == "" {
		return nil, ErrMissingDestination
	}
	if err := pattern.Validate(pat); err != nil {
		return nil, errors.Join(ErrInvalidPattern, err)
	}

	r, err := repo.CreateWildcardRedirect(ctx, s.DB, shop, pat, toPath)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateRule
		}
		return nil, err
	}
	return r, nil
}

// DeleteExact removes all exact rules for (shop, fromPath). Returns the
// number of rules removed; deleting a missing rule is a no-op, not an error.
func (s *RuleService) DeleteExact(ctx context.Context, shop, fromPath string) (int64, error) {
	if shop == "" {
		return 0, ErrMissingShop
	}
	if fromPath == "" {
		return 0, ErrMissingPath
	}
	return repo.DeleteExactRedirect(ctx, s.DB, shop, fromPath)
}

// DeleteWildcard removes all wildcard rules for (shop, pattern).
func (s *RuleService) DeleteWildcard(ctx context.Context, shop, pat string) (int64, error) {
	if shop == "" {
		return 0, ErrMissingShop
	}
	if pat == "" {
		return 0, ErrMissingPath
	}
	return repo.DeleteWildcardRedirect(ctx, s.DB, shop, pat)
}

// ListExactPage returns a page of exact rules (newest first) and the total
// count. It applies defaults for invalid page/pageSize.
func (s *RuleService) ListExactPage(ctx context.Context, shop string, page, pageSize int) ([]domain.Redirect, int64, error) {
	if shop == "" {
		return nil, 0, ErrMissingShop
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountExactRedirects(ctx, s.DB, shop)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Redirect{}, 0, nil
	}

	items, err := repo.ListExactRedirectsPage(ctx, s.DB, shop, offset, pageSize)
	return items, total, err
}

// ListWildcards returns the shop's active wildcard rules in the engine's
// enumeration order (creation order, oldest first).
func (s *RuleService) ListWildcards(ctx context.Context, shop string) ([]domain.Redirect, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}
	return repo.ListWildcardRedirects(ctx, s.DB, shop)
}

// Stats returns the rule count and latest update time for the shop. The rule
// listing handler derives its weak ETag from this pair.
func (s *RuleService) Stats(ctx context.Context, shop string) (int64, *time.Time, error) {
	if shop == "" {
		return 0, nil, ErrMissingShop
	}
	return repo.RedirectStats(ctx, s.DB, shop)
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way. It also checks gorm.ErrRecordNotFound for safety.
func isNotFound(err error) bool {
	if errors.Is(err, repo.ErrNotFound) {
		return true
	}
	return errors.Is(err, gorm.ErrRecordNotFound)
}
