// Package services – AutoFixService
//
// This file implements the per-shop auto-fix policy: a single fallback
// destination applied live to any miss no explicit rule covers. The policy is
// a singleton per shop, maintained by upsert.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/repo"
)

// AutoFixService reads and writes the per-shop auto-fix policy.
type AutoFixService struct {
	// DB is the database handle used for all policy operations.
	DB *gorm.DB
}

// Get returns the shop's policy. A shop that never configured one gets the
// disabled zero-value policy, mirroring the admin UI's default state.
func (s *AutoFixService) Get(ctx context.Context, shop string) (*domain.AutoFixSetting, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}
	setting, err := repo.GetAutoFixSetting(ctx, s.DB, shop)
	if isNotFound(err) {
		return &domain.AutoFixSetting{ShopDomain: shop, Enabled: false, ToPath: ""}, nil
	}
	if err != nil {
		return nil, err
	}
	return setting, nil
}

// Set upserts the shop's policy. toPath must be non-empty when the policy is
// enabled; no further format validation is applied.
func (s *AutoFixService) Set(ctx context.Context, shop string, enabled bool, toPath string) (*domain.AutoFixSetting, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}
	if enabled && toPath == "" {
		return nil, ErrMissingDestination
	}
	return repo.UpsertAutoFixSetting(ctx, s.DB, shop, enabled, toPath)
}
