// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Redirect
// model: exact lookup, wildcard enumeration, creation, bulk import, and
// deletion by natural key.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a rule is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Unique-key violations on create are mapped to ErrDuplicate so callers
//     can reject duplicates with a stable sentinel.
//   - On other DB errors the raw gorm error is propagated.
//
// Ordering contract: ListWildcardRedirects returns rules ordered by
// created_at ascending with id as tiebreak. The resolution engine's
// first-match-wins behavior depends on this order being deterministic.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation on a natural key,
// e.g. creating a second rule for the same (shop_domain, from_path).
var ErrDuplicate = errors.New("duplicate")

// isDuplicateErr detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey. glebarez/sqlite often reports them as
// plain-text errors.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// newRuleID returns a time-ordered (UUIDv7) identifier. The generator is
// monotonic within the process, so the id column sorts by creation even when
// two rules land on the same created_at tick; the wildcard enumeration's
// "creation order" tiebreak depends on that. Falls back to a random v4 if
// the entropy source fails.
func newRuleID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// FindExactRedirect returns the active, non-wildcard rule whose from_path
// equals path for the given shop, or ErrNotFound.
func FindExactRedirect(ctx context.Context, db *gorm.DB, shop, path string) (*domain.Redirect, error) {
	var r domain.Redirect
	err := db.WithContext(ctx).
		Where("shop_domain = ? AND from_path = ? AND is_active = ? AND is_wildcard = ?", shop, path, true, false).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListWildcardRedirects returns all active wildcard rules for the shop in
// creation order (oldest first, id tiebreak). This is the enumeration order
// the resolution engine's first-match-wins scan relies on.
func ListWildcardRedirects(ctx context.Context, db *gorm.DB, shop string) ([]domain.Redirect, error) {
	var out []domain.Redirect
	err := db.WithContext(ctx).
		Where("shop_domain = ? AND is_active = ? AND is_wildcard = ?", shop, true, true).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// FindWildcardRedirect returns the active wildcard rule with the given
// pattern for the shop, or ErrNotFound. Used to serve idempotent replays of
// wildcard creation.
func FindWildcardRedirect(ctx context.Context, db *gorm.DB, shop, pat string) (*domain.Redirect, error) {
	var r domain.Redirect
	err := db.WithContext(ctx).
		Where("shop_domain = ? AND pattern = ? AND is_active = ? AND is_wildcard = ?", shop, pat, true, true).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateExactRedirect inserts a new active exact rule. Duplicate natural keys
// return ErrDuplicate.
func CreateExactRedirect(ctx context.Context, db *gorm.DB, shop, fromPath, toPath string) (*domain.Redirect, error) {
	r := &domain.Redirect{
		ID:         newRuleID(),
		ShopDomain: shop,
		FromPath:   fromPath,
		ToPath:     toPath,
		IsWildcard: false,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// CreateWildcardRedirect inserts a new active wildcard rule. The from_path
// mirrors the pattern, matching the shape used by the external redirect
// system. Duplicate natural keys return ErrDuplicate.
func CreateWildcardRedirect(ctx context.Context, db *gorm.DB, shop, pat, toPath string) (*domain.Redirect, error) {
	p := pat
	r := &domain.Redirect{
		ID:         newRuleID(),
		ShopDomain: shop,
		FromPath:   pat,
		Pattern:    &p,
		ToPath:     toPath,
		IsWildcard: true,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// BulkCreateExactRedirects creates one active exact rule per path, all
// pointing at toPath, with skip-duplicate semantics: paths that already carry
// a rule are left untouched and do not abort the batch. Returns the number of
// rows actually inserted.
//
// Callers that need atomicity with a miss-log update should pass a
// transaction-bound handle.
func BulkCreateExactRedirects(ctx context.Context, db *gorm.DB, shop string, paths []string, toPath string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]domain.Redirect, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, domain.Redirect{
			ID:         newRuleID(),
			ShopDomain: shop,
			FromPath:   p,
			ToPath:     toPath,
			IsWildcard: false,
			IsActive:   true,
			CreatedAt:  now,
		})
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// DeleteExactRedirect hard-deletes all non-wildcard rules with the given
// from_path for the shop. Deleting a missing rule is not an error; the
// returned count tells the caller whether anything was removed.
func DeleteExactRedirect(ctx context.Context, db *gorm.DB, shop, fromPath string) (int64, error) {
	res := db.WithContext(ctx).
		Where("shop_domain = ? AND from_path = ? AND is_wildcard = ?", shop, fromPath, false).
		Delete(&domain.Redirect{})
	return res.RowsAffected, res.Error
}

// DeleteWildcardRedirect hard-deletes all wildcard rules with the given
// pattern for the shop.
func DeleteWildcardRedirect(ctx context.Context, db *gorm.DB, shop, pat string) (int64, error) {
	res := db.WithContext(ctx).
		Where("shop_domain = ? AND pattern = ? AND is_wildcard = ?", shop, pat, true).
		Delete(&domain.Redirect{})
	return res.RowsAffected, res.Error
}

// DeleteAllExactRedirects removes every non-wildcard rule for the shop.
// Wildcard rules are never touched. Used by the reconciliation import before
// re-inserting the external rule set.
func DeleteAllExactRedirects(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	res := db.WithContext(ctx).
		Where("shop_domain = ? AND is_wildcard = ?", shop, false).
		Delete(&domain.Redirect{})
	return res.RowsAffected, res.Error
}

// InsertExactRedirectBatch inserts pre-built exact rules with skip-duplicate
// semantics and returns the inserted count. Rows must already carry IDs and
// shop scoping; this is the low-level write used by the reconciliation
// importer for each ~100-row batch.
func InsertExactRedirectBatch(ctx context.Context, db *gorm.DB, rows []domain.Redirect) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ListExactRedirectsPage returns a page of non-wildcard rules for the shop,
// newest first. Used by the admin rule listing.
func ListExactRedirectsPage(ctx context.Context, db *gorm.DB, shop string, offset, limit int) ([]domain.Redirect, error) {
	var out []domain.Redirect
	err := db.WithContext(ctx).
		Where("shop_domain = ? AND is_wildcard = ?", shop, false).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountExactRedirects returns the total number of non-wildcard rules for the
// shop, for pagination metadata.
func CountExactRedirects(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Redirect{}).
		Where("shop_domain = ? AND is_wildcard = ?", shop, false).
		Count(&total).Error
	return total, err
}

// CountRedirectsSince returns the number of rules (any kind) created for the
// shop at or after since. Feeds the analytics summary.
func CountRedirectsSince(ctx context.Context, db *gorm.DB, shop string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Redirect{}).
		Where("shop_domain = ? AND created_at >= ?", shop, since).
		Count(&total).Error
	return total, err
}
