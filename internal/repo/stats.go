// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
)

// RedirectStats returns aggregate metadata for a shop's rules: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When the shop has no rules, the returned count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total rules for the shop (both kinds)
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func RedirectStats(ctx context.Context, db *gorm.DB, shop string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Redirect{}).Where("shop_domain = ?", shop)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// NotFoundStats returns aggregate metadata for a shop's miss log: the total
// number of rows and the maximum Timestamp among those rows.
//
// When the shop has no recorded misses, the returned count is 0 and
// maxTimestamp is nil.
func NotFoundStats(ctx context.Context, db *gorm.DB, shop string) (count int64, maxTimestamp *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.NotFoundRecord{}).Where("shop_domain = ?", shop)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		Timestamp time.Time
	}
	if err = q.Select("timestamp").Order("timestamp DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.Timestamp, nil
}
