// Settings and scheduler HTTP handlers.
//
// This file exposes endpoints for the per-shop policies and the digest cron:
//   - GET  /settings/auto-fix       (read fallback policy)
//   - POST /settings/auto-fix       (upsert fallback policy)
//   - GET  /settings/notifications  (list digest settings)
//   - POST /settings/notifications  (upsert digest setting)
//   - POST /cron/notifications     (scheduler tick, Bearer-guarded)
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seowizzard/go-redirect-backend/internal/services"
)

//
// DTOs
//

// AutoFixRequest is the JSON payload for updating the auto-fix policy.
type AutoFixRequest struct {
	// Enabled toggles the live fallback.
	Enabled bool `json:"enabled" example:"true"`
	// ToPath is the fallback destination; required when enabled.
	ToPath string `json:"to_path" example:"/collections/all"`
}

// NotificationRequest is the JSON payload for upserting a digest setting.
type NotificationRequest struct {
	// Email receives the digest.
	Email string `json:"email" binding:"required" example:"owner@example.com"`
	// Enabled toggles delivery for this address.
	Enabled bool `json:"enabled" example:"true"`
	// Frequency is one of daily, weekly, monthly.
	Frequency string `json:"frequency" binding:"required" example:"weekly"`
}

// CronResponse reports how many digests a scheduler tick dispatched.
type CronResponse struct {
	Sent int `json:"sent" example:"4"`
}

//
// Handlers
//

// GetAutoFix godoc
// @ID          getAutoFix
// @Summary     Read the auto-fix policy
// @Description Returns the shop's fallback policy. A shop that never configured one gets the disabled zero-value policy.
// @Tags        Settings
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
//
// @Success     200  {object}  domain.AutoFixSetting
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settings/auto-fix [get]
func (h *Handlers) GetAutoFix(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	setting, err := h.autoFix.Get(c.Request.Context(), shop)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSettingsFailed, "failed to load auto-fix policy")
		return
	}
	ok(c, http.StatusOK, setting)
}

// SetAutoFix godoc
// @ID          setAutoFix
// @Summary     Update the auto-fix policy
// @Description Upserts the shop's fallback policy. to_path is required when enabling. Policy changes take effect on the next resolution request; no miss records are rewritten.
// @Tags        Settings
// @Accept      json
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
// @Param       body           body    handlers.AutoFixRequest  true  "Policy payload"
//
// @Success     200  {object}  domain.AutoFixSetting
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settings/auto-fix [post]
func (h *Handlers) SetAutoFix(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	var req AutoFixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload")
		return
	}

	setting, err := h.autoFix.Set(c.Request.Context(), shop, req.Enabled, strings.TrimSpace(req.ToPath))
	if err != nil {
		if errors.Is(err, services.ErrMissingDestination) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to_path required when enabled")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSettingsFailed, "failed to save auto-fix policy")
		return
	}
	ok(c, http.StatusOK, setting)
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List digest settings
// @Description Returns all notification settings configured for the shop.
// @Tags        Settings
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
//
// @Success     200  {array}   domain.NotificationSetting
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settings/notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	settings, err := h.notify.List(c.Request.Context(), shop)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSettingsFailed, "failed to load notification settings")
		return
	}
	ok(c, http.StatusOK, settings)
}

// SetNotification godoc
// @ID          setNotification
// @Summary     Upsert a digest setting
// @Description Creates or updates the digest setting for (shop, email). Frequency must be daily, weekly, or monthly. The last-sent timestamp is preserved across updates.
// @Tags        Settings
// @Accept      json
// @Produce     json
//
// @Param       X-Shop-Domain  header  string  true  "Shop domain (tenant)"  example(demo.myshopify.com)
// @Param       body           body    handlers.NotificationRequest  true  "Setting payload"
//
// @Success     200  {object}  domain.NotificationSetting
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settings/notifications [post]
func (h *Handlers) SetNotification(c *gin.Context) {
	shop := shopDomain(c)
	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "shop domain required")
		return
	}

	var req NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and frequency required")
		return
	}

	setting, err := h.notify.Upsert(c.Request.Context(), shop, strings.TrimSpace(req.Email), req.Enabled, strings.TrimSpace(req.Frequency))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingEmail),
			errors.Is(err, services.ErrInvalidFrequency):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSettingsFailed, "failed to save notification setting")
		}
		return
	}
	ok(c, http.StatusOK, setting)
}

// RunNotificationCron godoc
// @ID          runNotificationCron
// @Summary     Scheduler tick for digest delivery
// @Description Walks enabled digest settings across all shops and dispatches every digest whose frequency window has elapsed. Guarded by a shared Bearer secret; a deployment without a configured secret rejects all calls.
// @Tags        Cron
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer <cron secret>"
//
// @Success     200  {object}  handlers.CronResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or wrong secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cron/notifications [post]
func (h *Handlers) RunNotificationCron(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if h.cronSecret == "" || !found || token != h.cronSecret {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid cron credentials")
		return
	}

	sent, err := h.notify.ProcessDue(c.Request.Context(), time.Now().UTC())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "cron run failed")
		return
	}
	ok(c, http.StatusOK, CronResponse{Sent: sent})
}
