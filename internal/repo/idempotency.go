// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model used to implement safe-retry semantics for the rule-mutation POST
// endpoints.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
)

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, shop, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(shop) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("shop_domain = ? AND scope = ? AND key = ? AND expires_at > ?", shop, scope, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
func CreateIdempotency(ctx context.Context, db *gorm.DB, shop, scope, key string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		ShopDomain: shop,
		Scope:      scope,
		Key:        key,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
