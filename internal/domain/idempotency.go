// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed request,
// keyed by (shop_domain, scope, key). It enables safe retries for the unsafe
// rule-mutation endpoints by letting handlers detect that an identical request
// already ran and skip re-executing its side effects.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ShopDomain string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_shop_scope_key,priority:1"`
	Scope      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_shop_scope_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_shop_scope_key,priority:3"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
