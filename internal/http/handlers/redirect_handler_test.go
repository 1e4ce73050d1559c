package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/repo"
	"github.com/seowizzard/go-redirect-backend/internal/services"
)

// ---------- flexible service stubs ----------

type stubResolver struct {
	resolve func(ctx context.Context, shop, path string, ua, ref *string) (services.Decision, error)
}

func (s stubResolver) Resolve(ctx context.Context, shop, path string, ua, ref *string) (services.Decision, error) {
	if s.resolve != nil {
		return s.resolve(ctx, shop, path, ua, ref)
	}
	return services.Decision{Redirect: false}, nil
}

type stubRuleSvc struct {
	bulkCreate     func(ctx context.Context, shop string, paths []string, toPath string) (int64, error)
	createWildcard func(ctx context.Context, shop, pattern, toPath string) (*domain.Redirect, error)
	deleteExact    func(ctx context.Context, shop, fromPath string) (int64, error)
	deleteWildcard func(ctx context.Context, shop, pattern string) (int64, error)
	listExactPage  func(ctx context.Context, shop string, page, pageSize int) ([]domain.Redirect, int64, error)
	listWildcards  func(ctx context.Context, shop string) ([]domain.Redirect, error)
	stats          func(ctx context.Context, shop string) (int64, *time.Time, error)
}

func (s stubRuleSvc) BulkCreateExact(ctx context.Context, shop string, paths []string, toPath string) (int64, error) {
	if s.bulkCreate != nil {
		return s.bulkCreate(ctx, shop, paths, toPath)
	}
	return int64(len(paths)), nil
}

func (s stubRuleSvc) CreateWildcard(ctx context.Context, shop, pattern, toPath string) (*domain.Redirect, error) {
	if s.createWildcard != nil {
		return s.createWildcard(ctx, shop, pattern, toPath)
	}
	p := pattern
	return &domain.Redirect{ShopDomain: shop, FromPath: pattern, Pattern: &p, ToPath: toPath, IsWildcard: true}, nil
}

func (s stubRuleSvc) DeleteExact(ctx context.Context, shop, fromPath string) (int64, error) {
	if s.deleteExact != nil {
		return s.deleteExact(ctx, shop, fromPath)
	}
	return 0, nil
}

func (s stubRuleSvc) DeleteWildcard(ctx context.Context, shop, pattern string) (int64, error) {
	if s.deleteWildcard != nil {
		return s.deleteWildcard(ctx, shop, pattern)
	}
	return 0, nil
}

func (s stubRuleSvc) ListExactPage(ctx context.Context, shop string, page, pageSize int) ([]domain.Redirect, int64, error) {
	if s.listExactPage != nil {
		return s.listExactPage(ctx, shop, page, pageSize)
	}
	return nil, 0, nil
}

func (s stubRuleSvc) ListWildcards(ctx context.Context, shop string) ([]domain.Redirect, error) {
	if s.listWildcards != nil {
		return s.listWildcards(ctx, shop)
	}
	return nil, nil
}

func (s stubRuleSvc) Stats(ctx context.Context, shop string) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, shop)
	}
	return 0, nil, errors.New("stats unavailable")
}

type stubAutoFixSvc struct {
	get func(ctx context.Context, shop string) (*domain.AutoFixSetting, error)
	set func(ctx context.Context, shop string, enabled bool, toPath string) (*domain.AutoFixSetting, error)
}

func (s stubAutoFixSvc) Get(ctx context.Context, shop string) (*domain.AutoFixSetting, error) {
	if s.get != nil {
		return s.get(ctx, shop)
	}
	return &domain.AutoFixSetting{ShopDomain: shop}, nil
}

func (s stubAutoFixSvc) Set(ctx context.Context, shop string, enabled bool, toPath string) (*domain.AutoFixSetting, error) {
	if s.set != nil {
		return s.set(ctx, shop, enabled, toPath)
	}
	return &domain.AutoFixSetting{ShopDomain: shop, Enabled: enabled, ToPath: toPath}, nil
}

type stubAnalyticsSvc struct {
	brokenLinks func(ctx context.Context, shop string, page, pageSize int) ([]repo.PathGroup, int64, error)
	summary     func(ctx context.Context, shop, rng string) (*services.Summary, error)
	stats       func(ctx context.Context, shop string) (int64, *time.Time, error)
}

func (s stubAnalyticsSvc) BrokenLinksPage(ctx context.Context, shop string, page, pageSize int) ([]repo.PathGroup, int64, error) {
	if s.brokenLinks != nil {
		return s.brokenLinks(ctx, shop, page, pageSize)
	}
	return nil, 0, nil
}

func (s stubAnalyticsSvc) Summary(ctx context.Context, shop, rng string) (*services.Summary, error) {
	if s.summary != nil {
		return s.summary(ctx, shop, rng)
	}
	return &services.Summary{Range: rng}, nil
}

func (s stubAnalyticsSvc) Stats(ctx context.Context, shop string) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, shop)
	}
	return 0, nil, errors.New("stats unavailable")
}

type stubNotifySvc struct {
	upsert     func(ctx context.Context, shop, email string, enabled bool, frequency string) (*domain.NotificationSetting, error)
	list       func(ctx context.Context, shop string) ([]domain.NotificationSetting, error)
	processDue func(ctx context.Context, now time.Time) (int, error)
}

func (s stubNotifySvc) Upsert(ctx context.Context, shop, email string, enabled bool, frequency string) (*domain.NotificationSetting, error) {
	if s.upsert != nil {
		return s.upsert(ctx, shop, email, enabled, frequency)
	}
	return &domain.NotificationSetting{ShopDomain: shop, Email: email, Enabled: enabled, Frequency: frequency}, nil
}

func (s stubNotifySvc) List(ctx context.Context, shop string) ([]domain.NotificationSetting, error) {
	if s.list != nil {
		return s.list(ctx, shop)
	}
	return nil, nil
}

func (s stubNotifySvc) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if s.processDue != nil {
		return s.processDue(ctx, now)
	}
	return 0, nil
}

type stubReconciler struct {
	run func(ctx context.Context, shop string) (int64, error)
}

func (s stubReconciler) Run(ctx context.Context, shop string) (int64, error) {
	if s.run != nil {
		return s.run(ctx, shop)
	}
	return 0, nil
}

// newStubHandlers wires Handlers entirely from stubs; individual tests swap in
// the behavior they assert.
func newStubHandlers() *Handlers {
	return New(stubResolver{}, stubRuleSvc{}, stubAutoFixSvc{}, stubAnalyticsSvc{}, stubNotifySvc{}, stubReconciler{}, "cron-secret")
}

// doRequest builds a gin context, runs handler against it, and returns the
// recorder. Header keys/values alternate in kv.
func doRequest(t *testing.T, handler gin.HandlerFunc, method, target string, body []byte, kv ...string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(kv); i += 2 {
		req.Header.Set(kv[i], kv[i+1])
	}
	c.Request = req
	handler(c)
	// Flush the status into the recorder, as gin's engine does after the
	// handler chain; without this a bare c.Status (e.g. 304) never reaches w.
	c.Writer.WriteHeaderNow()
	return w
}

// ---------- helpers ----------

func Test_shopDomain_Precedence(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Context value wins over header.
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set(HeaderShopDomain, "header.myshopify.com")
	c.Set("shopDomain", "ctx.myshopify.com")
	if got := shopDomain(c); got != "ctx.myshopify.com" {
		t.Fatalf("context should win, got %q", got)
	}

	// Header fallback.
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.Header.Set(HeaderShopDomain, "  header.myshopify.com  ")
	if got := shopDomain(c2); got != "header.myshopify.com" {
		t.Fatalf("header fallback failed, got %q", got)
	}

	// Nothing available.
	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := shopDomain(c3); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}

	// Wrong-typed context value falls through to header.
	c4, _ := gin.CreateTestContext(httptest.NewRecorder())
	c4.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c4.Set("shopDomain", 42)
	c4.Request.Header.Set(HeaderShopDomain, "hdr.myshopify.com")
	if got := shopDomain(c4); got != "hdr.myshopify.com" {
		t.Fatalf("wrong-typed context should fall back, got %q", got)
	}
}

func Test_optionalHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-User-Agent", "  Mozilla/5.0  ")

	if got := optionalHeader(c, "X-User-Agent"); got == nil || *got != "Mozilla/5.0" {
		t.Fatalf("expected trimmed value, got %v", got)
	}
	if got := optionalHeader(c, "X-Referrer"); got != nil {
		t.Fatalf("absent header should be nil, got %v", got)
	}
}

// ---------- CheckRedirect ----------

func TestCheckRedirect_MissingPathOrShop(t *testing.T) {
	h := newStubHandlers()

	// Missing path.
	w := doRequest(t, h.CheckRedirect, http.MethodGet, "/redirect", nil, HeaderShopDomain, "demo.myshopify.com")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var d services.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Redirect {
		t.Fatalf("error body must keep redirect=false: %+v", d)
	}

	// Missing shop.
	w = doRequest(t, h.CheckRedirect, http.MethodGet, "/redirect?path=/x", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCheckRedirect_ResolverError(t *testing.T) {
	h := New(stubResolver{
		resolve: func(context.Context, string, string, *string, *string) (services.Decision, error) {
			return services.Decision{}, context.DeadlineExceeded
		},
	}, stubRuleSvc{}, stubAutoFixSvc{}, stubAnalyticsSvc{}, stubNotifySvc{}, stubReconciler{}, "")

	w := doRequest(t, h.CheckRedirect, http.MethodGet, "/redirect?path=/x", nil, HeaderShopDomain, "demo.myshopify.com")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != ErrCodeResolveFailed {
		t.Fatalf("code = %q, want %q", resp.Code, ErrCodeResolveFailed)
	}
}

func TestCheckRedirect_Success_ForwardsHeaders(t *testing.T) {
	var gotUA, gotRef *string
	h := New(stubResolver{
		resolve: func(_ context.Context, shop, path string, ua, ref *string) (services.Decision, error) {
			if shop != "demo.myshopify.com" || path != "/old-product" {
				t.Fatalf("unexpected args: %q %q", shop, path)
			}
			gotUA, gotRef = ua, ref
			return services.Decision{Redirect: true, RedirectURL: "/new", Status: 301}, nil
		},
	}, stubRuleSvc{}, stubAutoFixSvc{}, stubAnalyticsSvc{}, stubNotifySvc{}, stubReconciler{}, "")

	w := doRequest(t, h.CheckRedirect, http.MethodGet, "/redirect?path=/old-product", nil,
		HeaderShopDomain, "demo.myshopify.com",
		"X-User-Agent", "Mozilla/5.0",
	)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var d services.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Redirect || d.RedirectURL != "/new" || d.Status != 301 {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if gotUA == nil || *gotUA != "Mozilla/5.0" {
		t.Fatalf("user agent not forwarded: %v", gotUA)
	}
	if gotRef != nil {
		t.Fatalf("absent referrer should be nil, got %v", gotRef)
	}
}
