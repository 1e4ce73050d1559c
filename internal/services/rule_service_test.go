package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/repo"
)

// newServiceDB opens a throwaway SQLite database with all models migrated.
// Shared by the service tests that exercise real persistence.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(
		&domain.Redirect{},
		&domain.NotFoundRecord{},
		&domain.AutoFixSetting{},
		&domain.NotificationSetting{},
		&domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestBulkCreateExact_Validation(t *testing.T) {
	svc := &RuleService{DB: nil}
	ctx := context.Background()

	if _, err := svc.BulkCreateExact(ctx, "", []string{"/x"}, "/dest"); !errors.Is(err, ErrMissingShop) {
		t.Fatalf("expected ErrMissingShop, got %v", err)
	}
	if _, err := svc.BulkCreateExact(ctx, "a.myshopify.com", []string{"/x"}, ""); !errors.Is(err, ErrMissingDestination) {
		t.Fatalf("expected ErrMissingDestination, got %v", err)
	}
	if _, err := svc.BulkCreateExact(ctx, "a.myshopify.com", []string{"", ""}, "/dest"); !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
}

func TestBulkCreateExact_CreatesRulesAndResolvesMisses(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &RuleService{DB: db}

	// Two logged misses on /one, one on /other (not part of the batch).
	for _, p := range []string{"/one", "/one", "/other"} {
		if _, err := repo.CreateNotFound(ctx, db, "a.myshopify.com", p, nil, nil); err != nil {
			t.Fatalf("seed miss: %v", err)
		}
	}

	created, err := svc.BulkCreateExact(ctx, "a.myshopify.com", []string{"/one", "/two", ""}, "/dest")
	if err != nil {
		t.Fatalf("BulkCreateExact: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 rules created, got %d", created)
	}

	// Both misses on /one are now resolved.
	unresolved, err := repo.CountUnresolved(ctx, db, "a.myshopify.com", time.Time{})
	if err != nil {
		t.Fatalf("CountUnresolved: %v", err)
	}
	if unresolved != 1 {
		t.Fatalf("expected only /other unresolved, got %d", unresolved)
	}

	// The rules resolve.
	r, err := repo.FindExactRedirect(ctx, db, "a.myshopify.com", "/two")
	if err != nil || r.ToPath != "/dest" {
		t.Fatalf("rule missing after bulk create: %v %+v", err, r)
	}
}

func TestBulkCreateExact_SkipsExistingRules(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &RuleService{DB: db}

	if _, err := repo.CreateExactRedirect(ctx, db, "a.myshopify.com", "/dup", "/old"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	created, err := svc.BulkCreateExact(ctx, "a.myshopify.com", []string{"/dup", "/fresh"}, "/dest")
	if err != nil {
		t.Fatalf("BulkCreateExact: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 created, got %d", created)
	}
	kept, err := repo.FindExactRedirect(ctx, db, "a.myshopify.com", "/dup")
	if err != nil || kept.ToPath != "/old" {
		t.Fatalf("existing rule must be untouched: %v %+v", err, kept)
	}
}

func TestCreateWildcard(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &RuleService{DB: db}

	r, err := svc.CreateWildcard(ctx, "a.myshopify.com", "/blog/*", "/articles/*")
	if err != nil {
		t.Fatalf("CreateWildcard: %v", err)
	}
	if !r.IsWildcard || r.Pattern == nil || *r.Pattern != "/blog/*" {
		t.Fatalf("unexpected rule: %+v", r)
	}

	t.Run("duplicate", func(t *testing.T) {
		if _, err := svc.CreateWildcard(ctx, "a.myshopify.com", "/blog/*", "/elsewhere"); !errors.Is(err, ErrDuplicateRule) {
			t.Fatalf("expected ErrDuplicateRule, got %v", err)
		}
	})

	t.Run("invalid patterns", func(t *testing.T) {
		for _, pat := range []string{"", "/no-star", "/a/*/b/*"} {
			if _, err := svc.CreateWildcard(ctx, "a.myshopify.com", pat, "/dest"); !errors.Is(err, ErrInvalidPattern) {
				t.Fatalf("pattern %q: expected ErrInvalidPattern, got %v", pat, err)
			}
		}
	})

	t.Run("validation", func(t *testing.T) {
		if _, err := svc.CreateWildcard(ctx, "", "/x/*", "/dest"); !errors.Is(err, ErrMissingShop) {
			t.Fatalf("expected ErrMissingShop, got %v", err)
		}
		if _, err := svc.CreateWildcard(ctx, "a.myshopify.com", "/x/*", ""); !errors.Is(err, ErrMissingDestination) {
			t.Fatalf("expected ErrMissingDestination, got %v", err)
		}
	})
}

func TestDeleteExactAndWildcard(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &RuleService{DB: db}

	if _, err := repo.CreateExactRedirect(ctx, db, "a.myshopify.com", "/old", "/new"); err != nil {
		t.Fatalf("seed exact: %v", err)
	}
	if _, err := svc.CreateWildcard(ctx, "a.myshopify.com", "/blog/*", "/articles/*"); err != nil {
		t.Fatalf("seed wildcard: %v", err)
	}

	n, err := svc.DeleteExact(ctx, "a.myshopify.com", "/old")
	if err != nil || n != 1 {
		t.Fatalf("DeleteExact = (%d, %v)", n, err)
	}
	n, err = svc.DeleteExact(ctx, "a.myshopify.com", "/old")
	if err != nil || n != 0 {
		t.Fatalf("second DeleteExact = (%d, %v), want 0 rows", n, err)
	}

	n, err = svc.DeleteWildcard(ctx, "a.myshopify.com", "/blog/*")
	if err != nil || n != 1 {
		t.Fatalf("DeleteWildcard = (%d, %v)", n, err)
	}

	if _, err := svc.DeleteExact(ctx, "", "/x"); !errors.Is(err, ErrMissingShop) {
		t.Fatalf("expected ErrMissingShop, got %v", err)
	}
	if _, err := svc.DeleteExact(ctx, "a.myshopify.com", ""); !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
	if _, err := svc.DeleteWildcard(ctx, "a.myshopify.com", ""); !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
}

func TestListExactPage_DefaultsAndTotals(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &RuleService{DB: db}

	items, total, err := svc.ListExactPage(ctx, "a.myshopify.com", 0, 0)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty shop: items=%v total=%d err=%v", items, total, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := repo.CreateExactRedirect(ctx, db, "a.myshopify.com", fmt.Sprintf("/p%d", i), "/dest"); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	items, total, err = svc.ListExactPage(ctx, "a.myshopify.com", 1, 2)
	if err != nil {
		t.Fatalf("ListExactPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d len=%d, want 3/2", total, len(items))
	}

	if _, _, err := svc.ListExactPage(ctx, "", 1, 10); !errors.Is(err, ErrMissingShop) {
		t.Fatalf("expected ErrMissingShop, got %v", err)
	}
}

func TestListWildcards(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &RuleService{DB: db}

	if _, err := svc.CreateWildcard(ctx, "a.myshopify.com", "/a/*", "/dest"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out, err := svc.ListWildcards(ctx, "a.myshopify.com")
	if err != nil || len(out) != 1 {
		t.Fatalf("ListWildcards: %v len=%d", err, len(out))
	}
	if _, err := svc.ListWildcards(ctx, ""); !errors.Is(err, ErrMissingShop) {
		t.Fatalf("expected ErrMissingShop, got %v", err)
	}
}
