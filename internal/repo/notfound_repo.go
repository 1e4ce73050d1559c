// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the miss log
// (NotFoundRecord): append-only inserts, bulk resolution marking, and the
// grouped aggregates behind the analytics views.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
)

// PathGroup is one row of the unresolved-miss aggregation: a broken path with
// its occurrence count and the time it was first seen.
type PathGroup struct {
	Path      string    `json:"path"`
	Count     int64     `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
}

// ReferrerGroup is one row of the top-referrers aggregation. Records without
// a referer are excluded.
type ReferrerGroup struct {
	Referer string `json:"referer"`
	Count   int64  `json:"count"`
}

// DailyCount is the number of misses observed on one UTC day.
type DailyCount struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// CreateNotFound inserts a new miss record. Every observed occurrence inserts
// a fresh row; repeated hits on the same path are deliberately not
// deduplicated, so occurrence counts can be derived by grouping.
func CreateNotFound(ctx context.Context, db *gorm.DB, shop, path string, userAgent, referer *string) (*domain.NotFoundRecord, error) {
	rec := &domain.NotFoundRecord{
		ID:         uuid.NewString(),
		ShopDomain: shop,
		Path:       path,
		Timestamp:  time.Now().UTC(),
		UserAgent:  userAgent,
		Referer:    referer,
		Redirected: false,
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkNotFoundResolved sets redirected=true and redirect_to on every
// unresolved record whose path is in paths, scoped to the shop. Returns the
// number of rows updated. Run it on a transaction-bound handle when the
// update must commit together with a rule creation.
func MarkNotFoundResolved(ctx context.Context, db *gorm.DB, shop string, paths []string, redirectTo string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.NotFoundRecord{}).
		Where("shop_domain = ? AND path IN ? AND redirected = ?", shop, paths, false).
		Updates(map[string]any{
			"redirected":  true,
			"redirect_to": redirectTo,
		})
	return res.RowsAffected, res.Error
}

// AggregateUnresolved returns a page of unresolved misses grouped by path,
// ordered by occurrence count descending (path ascending as tiebreak), along
// with the total number of distinct unresolved paths. Backs the
// "broken links needing attention" view.
func AggregateUnresolved(ctx context.Context, db *gorm.DB, shop string, offset, limit int) ([]PathGroup, int64, error) {
	base := db.WithContext(ctx).
		Model(&domain.NotFoundRecord{}).
		Where("shop_domain = ? AND redirected = ?", shop, false)

	var totalGroups int64
	if err := base.Session(&gorm.Session{}).Distinct("path").Count(&totalGroups).Error; err != nil {
		return nil, 0, err
	}
	if totalGroups == 0 {
		return []PathGroup{}, 0, nil
	}

	var groups []PathGroup
	err := base.Session(&gorm.Session{}).
		Select("path, COUNT(*) AS count, MIN(timestamp) AS first_seen").
		Group("path").
		Order("count DESC, path ASC").
		Offset(offset).
		Limit(limit).
		Scan(&groups).Error
	return groups, totalGroups, err
}

// CountUnresolved returns the number of unresolved miss rows for the shop at
// or after since. Pass the zero time to count all of them.
func CountUnresolved(ctx context.Context, db *gorm.DB, shop string, since time.Time) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.NotFoundRecord{}).
		Where("shop_domain = ? AND redirected = ?", shop, false)
	if !since.IsZero() {
		q = q.Where("timestamp >= ?", since)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// TopPaths returns the most frequently missed paths since the given time,
// resolved or not, limited to limit rows.
func TopPaths(ctx context.Context, db *gorm.DB, shop string, since time.Time, limit int) ([]PathGroup, error) {
	var groups []PathGroup
	err := db.WithContext(ctx).
		Model(&domain.NotFoundRecord{}).
		Select("path, COUNT(*) AS count, MIN(timestamp) AS first_seen").
		Where("shop_domain = ? AND timestamp >= ?", shop, since).
		Group("path").
		Order("count DESC, path ASC").
		Limit(limit).
		Scan(&groups).Error
	return groups, err
}

// TopReferrers returns the most common non-empty referers since the given
// time, limited to limit rows.
func TopReferrers(ctx context.Context, db *gorm.DB, shop string, since time.Time, limit int) ([]ReferrerGroup, error) {
	var groups []ReferrerGroup
	err := db.WithContext(ctx).
		Model(&domain.NotFoundRecord{}).
		Select("referer, COUNT(*) AS count").
		Where("shop_domain = ? AND timestamp >= ? AND referer IS NOT NULL AND referer != ''", shop, since).
		Group("referer").
		Order("count DESC, referer ASC").
		Limit(limit).
		Scan(&groups).Error
	return groups, err
}

// DailyCounts returns per-day miss totals between since and now, oldest day
// first. Days with no misses are absent from the result.
func DailyCounts(ctx context.Context, db *gorm.DB, shop string, since time.Time) ([]DailyCount, error) {
	var rows []DailyCount
	err := db.WithContext(ctx).
		Model(&domain.NotFoundRecord{}).
		Select("strftime('%Y-%m-%d', timestamp) AS day, COUNT(*) AS count").
		Where("shop_domain = ? AND timestamp >= ?", shop, since).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}

// ListNotFoundSince returns raw miss rows since the given time, newest first.
// Data source for report/digest consumers.
func ListNotFoundSince(ctx context.Context, db *gorm.DB, shop string, since time.Time, limit int) ([]domain.NotFoundRecord, error) {
	var out []domain.NotFoundRecord
	q := db.WithContext(ctx).
		Where("shop_domain = ? AND timestamp >= ?", shop, since).
		Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
