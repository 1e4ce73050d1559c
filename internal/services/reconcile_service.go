// Package services – ReconcileService
//
// This file implements the periodic reconciliation of locally stored exact
// rules against an external system of record. The importer wipes the shop's
// non-wildcard rules, then walks the external source page by page (≤250 per
// fetch) and inserts in fixed-size batches (~100) with skip-duplicate
// semantics.
//
// The operation is deliberately NOT globally atomic: each batch commits on
// its own, so an interruption midway (e.g., the source failing on page N)
// leaves earlier batches in place. Callers treat partial completion as a
// valid outcome and simply retry; ON CONFLICT DO NOTHING on the natural key
// makes the retry idempotent.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ExternalRule is one redirect as reported by the external system of record.
type ExternalRule struct {
	// ID is the external correlation id (stored as ShopifyID).
	ID string
	// Path is the source path of the redirect.
	Path string
	// Target is the destination path.
	Target string
}

// RuleSource fetches redirect rules from the external system of record,
// cursor-paginated. Implementations wrap the remote API; the zero cursor
// requests the first page.
type RuleSource interface {
	// FetchPage returns up to limit rules starting after cursor, the cursor
	// for the next page, and whether more pages remain.
	FetchPage(ctx context.Context, shop, cursor string, limit int) (items []ExternalRule, nextCursor string, hasNext bool, err error)
}

// ReconcileService replaces a shop's exact rules with the external truth.
type ReconcileService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Source is the external system of record.
	Source RuleSource

	// PageSize caps each external fetch; values <= 0 or > 250 default to 250.
	PageSize int
	// BatchSize caps each insert batch; values <= 0 default to 100.
	BatchSize int
}

// NewReconcileService constructs a ReconcileService with the default page and
// batch sizes.
func NewReconcileService(db *gorm.DB, src RuleSource) *ReconcileService {
	return &ReconcileService{DB: db, Source: src, PageSize: 250, BatchSize: 100}
}

// Run wipes the shop's non-wildcard rules and re-imports the external rule
// set, returning the number of rules inserted. Wildcard rules are preserved
// untouched.
func (s *ReconcileService) Run(ctx context.Context, shop string) (int64, error) {
	tr := otel.Tracer("services/ReconcileService")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(attribute.String("shop.domain", shop)),
	)
	defer span.End()

	if shop == "" {
		return 0, ErrMissingShop
	}

	pageSize := s.PageSize
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 250
	}
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	cleared, err := repo.DeleteAllExactRedirects(ctx, s.DB, shop)
	if err != nil {
		return 0, err
	}
	log.Info().Str("shop", shop).Int64("cleared", cleared).Msg("reconciliation started")

	var (
		imported int64
		buffer   []domain.Redirect
		cursor   string
		hasNext  = true
	)

	flush := func() error {
		n, ferr := repo.InsertExactRedirectBatch(ctx, s.DB, buffer)
		if ferr != nil {
			return ferr
		}
		imported += n
		buffer = buffer[:0]
		log.Info().Str("shop", shop).Int64("imported", imported).Msg("reconciliation progress")
		return nil
	}

	now := time.Now().UTC()
	for hasNext {
		var items []ExternalRule
		items, cursor, hasNext, err = s.Source.FetchPage(ctx, shop, cursor, pageSize)
		if err != nil {
			// Previously committed batches stay; the caller retries the
			// whole run, which is idempotent under skip-duplicates.
			return imported, err
		}
		for _, it := range items {
			buffer = append(buffer, domain.Redirect{
				ID:         uuid.NewString(),
				ShopDomain: shop,
				FromPath:   it.Path,
				ToPath:     it.Target,
				ShopifyID:  it.ID,
				IsWildcard: false,
				IsActive:   true,
				CreatedAt:  now,
			})
		}
		for len(buffer) >= batchSize {
			chunk := buffer[:batchSize]
			rest := append([]domain.Redirect(nil), buffer[batchSize:]...)
			buffer = chunk
			if err := flush(); err != nil {
				return imported, err
			}
			buffer = rest
		}
	}
	if len(buffer) > 0 {
		if err := flush(); err != nil {
			return imported, err
		}
	}

	log.Info().Str("shop", shop).Int64("imported", imported).Msg("reconciliation finished")
	return imported, nil
}
