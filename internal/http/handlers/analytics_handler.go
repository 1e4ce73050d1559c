// Analytics HTTP handlers.
//
// This file exposes the read-side dashboard endpoints:
//   - GET /broken-links       (unresolved misses grouped by path, paginated, ETag support)
//   - GET /analytics/summary  (range-scoped aggregates)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seowizzard/go-redirect-backend/internal/repo"
)

// BrokenLinksResponse wraps a page of grouped unresolved misses.
type BrokenLinksResponse struct {
	BrokenLinks []repo.PathGroup `json:"broken_links"`
	Pagination  Pagination       `json:"pagination"`
}

// ListBrokenLinks godoc
// @ID          listBrokenLinks
// @Summary     List broken links needing attention
// @Description Returns unresolved misses grouped by path with occurrence counts, most frequent first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Analytics
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"        example(demo.myshopify.com)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.BrokenLinksResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /broken-links [get]
func (h *Handlers) ListBrokenLinks(c *gin.Context) {
	ctx := c.Request.Context()
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.analytics.Stats(ctx, shop); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"misses:%s:%d:%d"`, shop, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	groups, total, err := h.analytics.BrokenLinksPage(ctx, shop, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list broken links")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := BrokenLinksResponse{
		BrokenLinks: groups,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// AnalyticsSummary godoc
// @ID          analyticsSummary
// @Summary     Dashboard summary
// @Description Returns range-scoped aggregates: daily miss counts, top paths, top referrers, rules created in the period, and the unresolved count. Unknown range tokens fall back to week.
// @Tags        Analytics
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
// @Param       range          query   string  false "One of day, week, month"  default(week)
//
// @Success     200  {object}  services.Summary
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /analytics/summary [get]
func (h *Handlers) AnalyticsSummary(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	summary, err := h.analytics.Summary(c.Request.Context(), shop, c.Query("range"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to compute summary")
		return
	}
	ok(c, http.StatusOK, summary)
}
