// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the per-shop
// AutoFixSetting singleton.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
)

// GetAutoFixSetting returns the shop's auto-fix policy, or ErrNotFound when
// the shop has never configured one. Callers usually translate the missing
// case into a disabled zero-value policy.
func GetAutoFixSetting(ctx context.Context, db *gorm.DB, shop string) (*domain.AutoFixSetting, error) {
	var s domain.AutoFixSetting
	err := db.WithContext(ctx).
		Where("shop_domain = ?", shop).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertAutoFixSetting creates or updates the shop's auto-fix policy in one
// statement, keyed on shop_domain.
func UpsertAutoFixSetting(ctx context.Context, db *gorm.DB, shop string, enabled bool, toPath string) (*domain.AutoFixSetting, error) {
	s := &domain.AutoFixSetting{
		ID:         uuid.NewString(),
		ShopDomain: shop,
		Enabled:    enabled,
		ToPath:     toPath,
		CreatedAt:  time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_domain"}},
			DoUpdates: clause.Assignments(map[string]any{
				"enabled":    enabled,
				"to_path":    toPath,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(s).Error
	if err != nil {
		return nil, err
	}
	// Re-read so the caller sees the stored row (the insert path and the
	// update path return different IDs otherwise).
	return GetAutoFixSetting(ctx, db, shop)
}
