// Package domain defines the persistence models for redirect rules, observed
// 404 misses, and per-shop settings. These types are mapped with GORM and form
// the core data layer of the redirect backend.
package domain

import (
	"errors"
	"time"
)

// ErrInvalidRuleRow is returned by Redirect.Rule when a stored row is in an
// inconsistent state (e.g., flagged as wildcard without a pattern). Rows like
// this cannot be produced through the service layer; the sentinel exists so
// the engine can skip corrupt data instead of panicking on it.
var ErrInvalidRuleRow = errors.New("redirect row has inconsistent wildcard fields")

// Redirect represents one redirect rule owned by a shop. A rule is either
// exact (matched literally against the broken path) or wildcard (matched via
// a single-capture pattern). All lookups are partitioned by ShopDomain.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ShopDomain: tenant key; part of the natural-key unique index.
//   - FromPath: exact path to match; for wildcard rules it mirrors Pattern,
//     matching the shape of the external redirect system.
//   - Pattern: wildcard pattern containing exactly one '*'; nil for exact rules.
//   - ToPath: destination; may contain '*' to receive the captured segment.
//   - IsWildcard: discriminates the two rule kinds at the storage level.
//   - IsActive: disable flag; inactive rules are never matched.
//   - ShopifyID: correlation id with the external redirect system (may be empty).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM. CreatedAt doubles as
//     the wildcard enumeration order (oldest first).
//
// Rows are hard-deleted: deletion by natural key removes the row outright so
// the (shop_domain, from_path) unique index never blocks a re-create.
type Redirect struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ShopDomain string    `json:"shop_domain" gorm:"type:varchar(255);not null;uniqueIndex:ux_shop_from,priority:1;index:idx_shop_kind_active,priority:1"`
	FromPath   string    `json:"from_path"   gorm:"type:varchar(2048);not null;uniqueIndex:ux_shop_from,priority:2"`
	Pattern    *string   `json:"pattern,omitempty" gorm:"type:varchar(2048)"`
	ToPath     string    `json:"to_path"     gorm:"type:varchar(2048);not null"`
	IsWildcard bool      `json:"is_wildcard" gorm:"not null;default:false;index:idx_shop_kind_active,priority:2"`
	IsActive   bool      `json:"is_active"   gorm:"not null;default:true;index:idx_shop_kind_active,priority:3"`
	ShopifyID  string    `json:"shopify_id"  gorm:"type:varchar(128);not null;default:''"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Redirect.
func (Redirect) TableName() string { return "redirects" }

// Rule is the kind-discriminated view of a Redirect consumed by the resolution
// engine. It replaces the boolean-plus-nullable storage shape with a variant
// type so invalid combinations cannot reach matching code: a value is either
// an ExactRule or a WildcardRule, never a mix.
type Rule interface {
	// Destination returns the raw (pre-substitution) destination path.
	Destination() string
}

// ExactRule matches a broken path by literal equality with FromPath.
type ExactRule struct {
	FromPath string
	ToPath   string
}

// Destination implements Rule.
func (r ExactRule) Destination() string { return r.ToPath }

// WildcardRule matches a broken path against Pattern, a literal path with a
// single '*' capture token. The capture may be substituted into ToPath.
type WildcardRule struct {
	Pattern string
	ToPath  string
}

// Destination implements Rule.
func (r WildcardRule) Destination() string { return r.ToPath }

// Rule converts the stored row into its validated variant form. Wildcard rows
// without a pattern (or exact rows carrying one) yield ErrInvalidRuleRow.
func (r *Redirect) Rule() (Rule, error) {
	if r.IsWildcard {
		if r.Pattern == nil || *r.Pattern == "" {
			return nil, ErrInvalidRuleRow
		}
		return WildcardRule{Pattern: *r.Pattern, ToPath: r.ToPath}, nil
	}
	if r.Pattern != nil && *r.Pattern != "" {
		return nil, ErrInvalidRuleRow
	}
	return ExactRule{FromPath: r.FromPath, ToPath: r.ToPath}, nil
}

// NotFoundRecord represents one observed miss: a storefront request for a path
// with no content. Every occurrence inserts a new row (no deduplication);
// occurrence counts are derived later by grouping, which trades storage for
// write simplicity.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ShopDomain: tenant key.
//   - Path: the broken path as reported by the edge script.
//   - Timestamp: creation time (UTC).
//   - UserAgent / Referer: optional request metadata.
//   - Redirected: whether a rule ever satisfied this miss.
//   - RedirectTo: destination applied once resolved; nil until then.
type NotFoundRecord struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ShopDomain string    `json:"shop_domain" gorm:"type:varchar(255);not null;index:idx_shop_path_redirected,priority:1;index:idx_shop_redirected_ts,priority:1"`
	Path       string    `json:"path"        gorm:"type:varchar(2048);not null;index:idx_shop_path_redirected,priority:2"`
	Timestamp  time.Time `json:"timestamp"   gorm:"not null;index:idx_shop_redirected_ts,priority:3"`
	UserAgent  *string   `json:"user_agent,omitempty" gorm:"type:varchar(1024)"`
	Referer    *string   `json:"referer,omitempty"    gorm:"type:varchar(2048)"`
	Redirected bool      `json:"redirected"  gorm:"not null;default:false;index:idx_shop_path_redirected,priority:3;index:idx_shop_redirected_ts,priority:2"`
	RedirectTo *string   `json:"redirect_to,omitempty" gorm:"type:varchar(2048)"`
}

// TableName returns the database table name for NotFoundRecord.
func (NotFoundRecord) TableName() string { return "not_found_records" }

// AutoFixSetting is the per-shop fallback policy: when enabled, any miss no
// explicit rule covers is redirected live to ToPath. A singleton per shop,
// maintained by upsert on ShopDomain.
type AutoFixSetting struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ShopDomain string    `json:"shop_domain" gorm:"type:varchar(255);not null;uniqueIndex:ux_autofix_shop"`
	Enabled    bool      `json:"enabled"     gorm:"not null;default:false"`
	ToPath     string    `json:"to_path"     gorm:"type:varchar(2048);not null;default:''"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for AutoFixSetting.
func (AutoFixSetting) TableName() string { return "auto_fix_settings" }

// Notification frequency values accepted by NotificationSetting.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// NotificationSetting configures the periodic unresolved-miss digest for one
// (shop, email) pair. The scheduler only reads/advances LastSentAt; composing
// and delivering the email is an external concern.
type NotificationSetting struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	ShopDomain string     `json:"shop_domain" gorm:"type:varchar(255);not null;uniqueIndex:ux_notify_shop_email,priority:1"`
	Email      string     `json:"email"       gorm:"type:varchar(320);not null;uniqueIndex:ux_notify_shop_email,priority:2"`
	Enabled    bool       `json:"enabled"     gorm:"not null;default:true"`
	Frequency  string     `json:"frequency"   gorm:"type:varchar(16);not null;check:frequency IN ('daily','weekly','monthly')"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for NotificationSetting.
func (NotificationSetting) TableName() string { return "notification_settings" }
