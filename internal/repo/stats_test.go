package repo

import (
	"context"
	"testing"
	"time"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
)

func TestRedirectStats_EmptyShop(t *testing.T) {
	db := newRepoDB(t, &domain.Redirect{})

	count, maxUpdated, err := RedirectStats(context.Background(), db, "a.myshopify.com")
	if err != nil {
		t.Fatalf("RedirectStats: %v", err)
	}
	if count != 0 || maxUpdated != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxUpdated)
	}
}

func TestRedirectStats_CountsBothKinds(t *testing.T) {
	db := newRepoDB(t, &domain.Redirect{})
	ctx := context.Background()

	if _, err := CreateExactRedirect(ctx, db, "a.myshopify.com", "/old", "/new"); err != nil {
		t.Fatalf("seed exact: %v", err)
	}
	if _, err := CreateWildcardRedirect(ctx, db, "a.myshopify.com", "/blog/*", "/articles/*"); err != nil {
		t.Fatalf("seed wildcard: %v", err)
	}
	if _, err := CreateExactRedirect(ctx, db, "b.myshopify.com", "/other", "/new"); err != nil {
		t.Fatalf("seed other shop: %v", err)
	}

	count, maxUpdated, err := RedirectStats(ctx, db, "a.myshopify.com")
	if err != nil {
		t.Fatalf("RedirectStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if maxUpdated == nil || maxUpdated.IsZero() {
		t.Fatalf("maxUpdated = %v, want a timestamp", maxUpdated)
	}
}

func TestNotFoundStats(t *testing.T) {
	db := newRepoDB(t, &domain.NotFoundRecord{})
	ctx := context.Background()

	count, maxTS, err := NotFoundStats(ctx, db, "a.myshopify.com")
	if err != nil || count != 0 || maxTS != nil {
		t.Fatalf("expected empty stats, got (%d, %v, %v)", count, maxTS, err)
	}

	older := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	newer := older.Add(30 * time.Minute)
	seedNotFound(t, ctx, db, "a.myshopify.com", "/x", older, nil, false)
	seedNotFound(t, ctx, db, "a.myshopify.com", "/y", newer, nil, true)

	count, maxTS, err = NotFoundStats(ctx, db, "a.myshopify.com")
	if err != nil {
		t.Fatalf("NotFoundStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if maxTS == nil || !maxTS.Equal(newer) {
		t.Fatalf("maxTS = %v, want %v", maxTS, newer)
	}
}
