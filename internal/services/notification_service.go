// Package services – NotificationService
//
// This file implements the digest scheduler glue: on each cron tick it walks
// the enabled (shop, email) notification settings, checks whether the
// configured frequency window has elapsed, gathers unresolved misses since
// the last send, and hands a digest to the injected Mailer. Composing and
// delivering the actual email is outside this service; the Mailer seam keeps
// it that way.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/repo"
)

// Digest summarizes a shop's unresolved misses for one notification email.
type Digest struct {
	ShopDomain string
	Email      string
	Frequency  string
	ErrorCount int64
	TopErrors  []repo.PathGroup
}

// Mailer delivers a digest. Implementations wrap whatever transport the
// deployment uses; errors are logged and the window is left open for retry
// on the next tick.
type Mailer interface {
	SendDigest(ctx context.Context, d Digest) error
}

// NotificationService drives periodic unresolved-miss digests.
type NotificationService struct {
	// DB is the database handle used for settings and miss-log reads.
	DB *gorm.DB
	// Mailer receives due digests.
	Mailer Mailer

	// TopN caps the per-digest top-error list; values <= 0 default to 5.
	TopN int
}

// Upsert validates and stores the setting for (shop, email).
func (s *NotificationService) Upsert(ctx context.Context, shop, email string, enabled bool, frequency string) (*domain.NotificationSetting, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}
	if email == "" {
		return nil, ErrMissingEmail
	}
	switch frequency {
	case domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly:
	default:
		return nil, ErrInvalidFrequency
	}
	return repo.UpsertNotificationSetting(ctx, s.DB, shop, email, enabled, frequency)
}

// List returns all settings for one shop.
func (s *NotificationService) List(ctx context.Context, shop string) ([]domain.NotificationSetting, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}
	return repo.ListNotificationSettings(ctx, s.DB, shop)
}

// ProcessDue walks enabled settings and sends a digest for each whose
// frequency window has elapsed at now. It returns the number of digests
// handed to the mailer. Per-setting failures are logged and skipped so one
// bad address never starves the rest.
func (s *NotificationService) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	settings, err := repo.ListEnabledNotificationSettings(ctx, s.DB)
	if err != nil {
		return 0, err
	}

	topN := s.TopN
	if topN <= 0 {
		topN = 5
	}

	sent := 0
	for i := range settings {
		setting := &settings[i]
		if !due(setting.Frequency, setting.LastSentAt, now) {
			continue
		}

		since := time.Time{}
		if setting.LastSentAt != nil {
			since = *setting.LastSentAt
		}
		count, err := repo.CountUnresolved(ctx, s.DB, setting.ShopDomain, since)
		if err != nil {
			log.Warn().Str("shop", setting.ShopDomain).Err(err).Msg("digest count failed")
			continue
		}
		if count == 0 {
			continue
		}
		top, err := repo.TopPaths(ctx, s.DB, setting.ShopDomain, since, topN)
		if err != nil {
			log.Warn().Str("shop", setting.ShopDomain).Err(err).Msg("digest top paths failed")
			continue
		}

		d := Digest{
			ShopDomain: setting.ShopDomain,
			Email:      setting.Email,
			Frequency:  setting.Frequency,
			ErrorCount: count,
			TopErrors:  top,
		}
		if err := s.Mailer.SendDigest(ctx, d); err != nil {
			log.Warn().Str("shop", setting.ShopDomain).Str("email", setting.Email).Err(err).Msg("digest send failed")
			continue
		}
		if err := repo.TouchNotificationLastSent(ctx, s.DB, setting.ID, now); err != nil {
			log.Warn().Str("shop", setting.ShopDomain).Err(err).Msg("failed to advance last_sent_at")
			continue
		}
		sent++
	}
	return sent, nil
}

// due reports whether a setting's frequency window has elapsed. A setting
// that never sent is immediately due.
func due(frequency string, lastSentAt *time.Time, now time.Time) bool {
	if lastSentAt == nil {
		return true
	}
	elapsed := now.Sub(*lastSentAt)
	switch frequency {
	case domain.FrequencyDaily:
		return elapsed >= 24*time.Hour
	case domain.FrequencyWeekly:
		return elapsed >= 7*24*time.Hour
	case domain.FrequencyMonthly:
		return elapsed >= 30*24*time.Hour
	default:
		return false
	}
}
