// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for
// NotificationSetting rows consumed by the digest scheduler.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
)

// ListEnabledNotificationSettings returns every enabled setting across all
// shops. The scheduler iterates these on each cron tick.
func ListEnabledNotificationSettings(ctx context.Context, db *gorm.DB) ([]domain.NotificationSetting, error) {
	var out []domain.NotificationSetting
	err := db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("shop_domain asc, email asc").
		Find(&out).Error
	return out, err
}

// ListNotificationSettings returns all settings for one shop.
func ListNotificationSettings(ctx context.Context, db *gorm.DB, shop string) ([]domain.NotificationSetting, error) {
	var out []domain.NotificationSetting
	err := db.WithContext(ctx).
		Where("shop_domain = ?", shop).
		Order("email asc").
		Find(&out).Error
	return out, err
}

// UpsertNotificationSetting creates or updates the setting for (shop, email).
// LastSentAt is preserved on update so changing the frequency does not reset
// the delivery window.
func UpsertNotificationSetting(ctx context.Context, db *gorm.DB, shop, email string, enabled bool, frequency string) (*domain.NotificationSetting, error) {
	s := &domain.NotificationSetting{
		ID:         uuid.NewString(),
		ShopDomain: shop,
		Email:      email,
		Enabled:    enabled,
		Frequency:  frequency,
		CreatedAt:  time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "shop_domain"}, {Name: "email"}},
			DoUpdates: clause.Assignments(map[string]any{
				"enabled":    enabled,
				"frequency":  frequency,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(s).Error
	if err != nil {
		return nil, err
	}
	var stored domain.NotificationSetting
	if err := db.WithContext(ctx).
		Where("shop_domain = ? AND email = ?", shop, email).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// TouchNotificationLastSent advances LastSentAt after a digest was handed to
// the mailer.
func TouchNotificationLastSent(ctx context.Context, db *gorm.DB, id string, sentAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.NotificationSetting{}).
		Where("id = ?", id).
		Update("last_sent_at", sentAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
