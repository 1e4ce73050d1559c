// Redirect rule HTTP handlers.
//
// This file exposes REST endpoints for rule resources:
//   - POST   /redirects/bulk       (create exact rules, resolve prior misses)
//   - DELETE /redirects            (delete exact rule by path)
//   - GET    /redirects            (list exact rules, paginated, ETag support)
//   - POST   /redirects/wildcard   (create wildcard rule)
//   - DELETE /redirects/wildcard   (delete wildcard rule by pattern)
//   - GET    /redirects/wildcards  (list wildcard rules)
//   - POST   /redirects/reconcile  (replace-all import from system of record)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seowizzard/go-redirect-backend/internal/domain"
	"github.com/seowizzard/go-redirect-backend/internal/http/middleware"
	"github.com/seowizzard/go-redirect-backend/internal/repo"
	"github.com/seowizzard/go-redirect-backend/internal/services"
	"github.com/seowizzard/go-redirect-backend/internal/utils"
)

//
// DTOs
//

// BulkCreateRequest is the JSON payload for creating exact rules in bulk.
// The single-rule flow is the one-element case.
type BulkCreateRequest struct {
	// Paths are the broken paths to cover; empty entries are ignored.
	Paths []string `json:"paths" binding:"required" example:"/old-product,/old-blog/post"`
	// ToPath is the destination every listed path redirects to.
	ToPath string `json:"to_path" binding:"required" example:"/collections/all"`
}

// BulkCreateResponse reports how many rules the bulk operation inserted.
// Paths already covered by a rule are skipped, so created may be less than
// the number of paths submitted.
type BulkCreateResponse struct {
	Created int64 `json:"created" example:"3"`
}

// CreateWildcardRequest is the JSON payload for creating a wildcard rule.
type CreateWildcardRequest struct {
	// Pattern must contain exactly one '*' wildcard.
	Pattern string `json:"pattern" binding:"required" example:"/old-blog/*"`
	// ToPath is the destination; a '*' in it is replaced by the capture.
	ToPath string `json:"to_path" binding:"required" example:"/blog/*"`
}

// DeleteRuleRequest identifies the rule to remove by natural key. Exact
// deletion reads Path; wildcard deletion reads Pattern.
type DeleteRuleRequest struct {
	Path    string `json:"path" example:"/old-product"`
	Pattern string `json:"pattern" example:"/old-blog/*"`
}

// DeleteRuleResponse reports how many rules were removed. Deleting a missing
// rule is a no-op, not an error.
type DeleteRuleResponse struct {
	Deleted int64 `json:"deleted" example:"1"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRedirectsResponse wraps a page of exact rules and pagination metadata.
type ListRedirectsResponse struct {
	Redirects  []domain.Redirect `json:"redirects"`
	Pagination Pagination        `json:"pagination"`
}

// ListWildcardsResponse wraps a shop's wildcard rules in enumeration order.
type ListWildcardsResponse struct {
	Wildcards []domain.Redirect `json:"wildcards"`
}

// ReconcileResponse reports the outcome of a replace-all import.
type ReconcileResponse struct {
	Imported int64 `json:"imported" example:"1250"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// idemScope mirrors the scope key the idempotency middleware uses for its
// replay lookup, so handler-side writes land on the same record.
func idemScope(c *gin.Context) string {
	return c.Request.Method + " " + c.Request.URL.Path
}

// storeIdempotency records the request's Idempotency-Key after a successful
// mutation so a later retry with the same key is served as a replay. Best
// effort: a failed write never fails the request that already committed.
func (h *Handlers) storeIdempotency(c *gin.Context, shop string, status int) {
	if h.idemDB == nil {
		return
	}
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey {
		return
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), h.idemDB, shop, idemScope(c), key, status, h.idemTTL)
}

//
// Handlers
//

// BulkCreateRedirects godoc
// @ID          bulkCreateRedirects
// @Summary     Create exact rules in bulk
// @Description Creates one active exact rule per path, all pointing at to_path, and marks previously logged misses on those paths as resolved. Both writes run in one transaction. Paths already covered by a rule are skipped.
// @Tags        Rules
// @Accept      json
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
// @Param       body           body    handlers.BulkCreateRequest  true  "Paths and destination"
//
// @Success     201  {object}  handlers.BulkCreateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /redirects/bulk [post]
func (h *Handlers) BulkCreateRedirects(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	var req BulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "paths and to_path required")
		return
	}

	// Replay path: the key was already recorded for a completed request, so
	// the rules exist and no misses are left to flip. Nothing to create.
	if h.idemDB != nil && middleware.IsReplay(c) {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusCreated, BulkCreateResponse{Created: 0})
		return
	}

	created, err := h.rules.BulkCreateExact(c.Request.Context(), shop, req.Paths, strings.TrimSpace(req.ToPath))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingPath),
			errors.Is(err, services.ErrMissingDestination):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "failed to create redirects")
		}
		return
	}

	h.storeIdempotency(c, shop, http.StatusCreated)
	ok(c, http.StatusCreated, BulkCreateResponse{Created: created})
}

// CreateWildcardRedirect godoc
// @ID          createWildcardRedirect
// @Summary     Create a wildcard rule
// @Description Creates an active wildcard rule. The pattern must contain exactly one '*'; a '*' in the destination is replaced by the captured segment at resolve time.
// @Tags        Rules
// @Accept      json
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
// @Param       body           body    handlers.CreateWildcardRequest  true  "Pattern and destination"
//
// @Success     201  {object}  domain.Redirect
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid pattern"
// @Failure     409  {object}  handlers.ErrorResponse  "Rule already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /redirects/wildcard [post]
func (h *Handlers) CreateWildcardRedirect(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	var req CreateWildcardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "pattern and to_path required")
		return
	}

	// Replay path: serve the rule the recorded request created instead of
	// re-running the mutation (which would 409 on the duplicate).
	if h.idemDB != nil && middleware.IsReplay(c) {
		if prev, err := repo.FindWildcardRedirect(c.Request.Context(), h.idemDB, shop, strings.TrimSpace(req.Pattern)); err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusCreated, prev)
			return
		}
	}

	r, err := h.rules.CreateWildcard(c.Request.Context(), shop, strings.TrimSpace(req.Pattern), strings.TrimSpace(req.ToPath))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPattern),
			errors.Is(err, services.ErrMissingDestination):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrDuplicateRule):
			fail(c, http.StatusConflict, ErrCodeConflict, "rule already exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "failed to create redirect")
		}
		return
	}

	h.storeIdempotency(c, shop, http.StatusCreated)
	ok(c, http.StatusCreated, r)
}

// DeleteRedirect godoc
// @ID          deleteRedirect
// @Summary     Delete an exact rule
// @Description Removes the exact rule matching the given path. Deleting a missing rule succeeds with deleted=0.
// @Tags        Rules
// @Accept      json
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
// @Param       body           body    handlers.DeleteRuleRequest  true  "Path of the rule to remove"
//
// @Success     200  {object}  handlers.DeleteRuleResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /redirects [delete]
func (h *Handlers) DeleteRedirect(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	var req DeleteRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "path required")
		return
	}

	n, err := h.rules.DeleteExact(c.Request.Context(), shop, strings.TrimSpace(req.Path))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, "failed to delete redirect")
		return
	}
	ok(c, http.StatusOK, DeleteRuleResponse{Deleted: n})
}

// DeleteWildcardRedirect godoc
// @ID          deleteWildcardRedirect
// @Summary     Delete a wildcard rule
// @Description Removes the wildcard rule matching the given pattern. Deleting a missing rule succeeds with deleted=0.
// @Tags        Rules
// @Accept      json
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
// @Param       body           body    handlers.DeleteRuleRequest  true  "Pattern of the rule to remove"
//
// @Success     200  {object}  handlers.DeleteRuleResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /redirects/wildcard [delete]
func (h *Handlers) DeleteWildcardRedirect(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	var req DeleteRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Pattern) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "pattern required")
		return
	}

	n, err := h.rules.DeleteWildcard(c.Request.Context(), shop, strings.TrimSpace(req.Pattern))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, "failed to delete redirect")
		return
	}
	ok(c, http.StatusOK, DeleteRuleResponse{Deleted: n})
}

// ListRedirects godoc
// @ID          listRedirects
// @Summary     List exact rules (paginated)
// @Description Returns a page of the shop's exact rules, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Rules
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"        example(demo.myshopify.com)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListRedirectsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /redirects [get]
func (h *Handlers) ListRedirects(c *gin.Context) {
	ctx := c.Request.Context()
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.rules.Stats(ctx, shop); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"redirects:%s:%d:%d"`, shop, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.rules.ListExactPage(ctx, shop, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list redirects")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListRedirectsResponse{
		Redirects: items,
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

// ListWildcardRedirects godoc
// @ID          listWildcardRedirects
// @Summary     List wildcard rules
// @Description Returns the shop's active wildcard rules in the order the engine evaluates them (creation order, oldest first).
// @Tags        Rules
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
//
// @Success     200  {object}  handlers.ListWildcardsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /redirects/wildcards [get]
func (h *Handlers) ListWildcardRedirects(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	items, err := h.rules.ListWildcards(c.Request.Context(), shop)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list redirects")
		return
	}
	ok(c, http.StatusOK, ListWildcardsResponse{Wildcards: items})
}

// ReconcileRedirects godoc
// @ID          reconcileRedirects
// @Summary     Reconcile rules with the system of record
// @Description Replaces the shop's exact rules with the full set fetched from the external system of record. Existing exact rules are wiped first; wildcard rules are untouched.
// @Tags        Rules
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
//
// @Success     200  {object}  handlers.ReconcileResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Import failed"
// @Router      /redirects/reconcile [post]
func (h *Handlers) ReconcileRedirects(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	imported, err := h.reconciler.Run(c.Request.Context(), shop)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeImportFailed, "reconciliation failed")
		return
	}
	ok(c, http.StatusOK, ReconcileResponse{Imported: imported})
}
