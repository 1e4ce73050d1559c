// Package services – AnalyticsService
//
// This file implements the read-side aggregates behind the dashboard: the
// grouped "broken links needing attention" view and the range-scoped summary
// (daily counts, top paths, top referrers, rules created, unresolved count).
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/repo"
)

// Range tokens accepted by Summary.
const (
	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"
)

// Summary aggregates one shop's miss activity over a time range.
type Summary struct {
	Range             string               `json:"range"`
	Since             time.Time            `json:"since"`
	DailyCounts       []repo.DailyCount    `json:"daily_counts"`
	TopPaths          []repo.PathGroup     `json:"top_paths"`
	TopReferrers      []repo.ReferrerGroup `json:"top_referrers"`
	RedirectsInPeriod int64                `json:"redirects_created"`
	UnresolvedCount   int64                `json:"unresolved_count"`
}

// AnalyticsService serves dashboard aggregates over the miss log and rules.
type AnalyticsService struct {
	// DB is the database handle used for all aggregate reads.
	DB *gorm.DB
}

// BrokenLinksPage returns a page of unresolved misses grouped by path with
// occurrence counts, ordered most-frequent first, plus the total group count.
func (s *AnalyticsService) BrokenLinksPage(ctx context.Context, shop string, page, pageSize int) ([]repo.PathGroup, int64, error) {
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
	return repo.AggregateUnresolved(ctx, s.DB, shop, offset, pageSize)
}

// Summary computes the range-scoped dashboard aggregates. Unknown range
// tokens fall back to a week, mirroring the original dashboard's default.
func (s *AnalyticsService) Summary(ctx context.Context, shop, rng string) (*Summary, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}

	now := time.Now().UTC()
	var since time.Time
	switch rng {
	case RangeDay:
		since = now.AddDate(0, 0, -1)
	case RangeMonth:
		since = now.AddDate(0, -1, 0)
	default:
		rng = RangeWeek
		since = now.AddDate(0, 0, -7)
	}

	daily, err := repo.DailyCounts(ctx, s.DB, shop, since)
	if err != nil {
		return nil, err
	}
	topPaths, err := repo.TopPaths(ctx, s.DB, shop, since, 5)
	if err != nil {
		return nil, err
	}
	topReferrers, err := repo.TopReferrers(ctx, s.DB, shop, since, 5)
	if err != nil {
		return nil, err
	}
	createdRules, err := repo.CountRedirectsSince(ctx, s.DB, shop, since)
	if err != nil {
		return nil, err
	}
	unresolved, err := repo.CountUnresolved(ctx, s.DB, shop, since)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Range:             rng,
		Since:             since,
		DailyCounts:       daily,
		TopPaths:          topPaths,
		TopReferrers:      topReferrers,
		RedirectsInPeriod: createdRules,
		UnresolvedCount:   unresolved,
	}, nil
}

// Stats returns the miss-log count and latest miss timestamp for the shop.
// The broken-links listing handler derives its weak ETag from this pair.
func (s *AnalyticsService) Stats(ctx context.Context, shop string) (int64, *time.Time, error) {
	if shop == "" {
		return 0, nil, ErrMissingShop
	}
	return repo.NotFoundStats(ctx, s.DB, shop)
}
