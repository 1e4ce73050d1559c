// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, which attaches a conservative set of
// hardening headers to every response. The API serves JSON only (the
// storefront edge script and the embedded admin UI), so no CSP is emitted;
// HSTS is opt-in because deployments often terminate TLS at a proxy.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS emits Strict-Transport-Security, but only on requests that
// actually arrived over HTTPS. Enable it only when traffic is HTTPS
// end-to-end, including the proxy-to-app hop. HSTSMaxAge defaults to 180
// days when unset.
//
// NoStore adds Cache-Control: no-store (plus the legacy Pragma/Expires
// pair). The listing endpoints rely on ETags for caching, so this is off by
// default and only useful for deployments that must never cache responses.
//
// EnablePolicy adds Permissions-Policy and
// X-Permitted-Cross-Domain-Policies. These only affect browsers and are
// harmless for the edge script.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns a Gin middleware that sets hardening headers on
// each response.
//
// Always set: X-Content-Type-Options: nosniff, X-Frame-Options: DENY, and
// Referrer-Policy: no-referrer. The remaining headers follow the options.
// When an X-Request-ID is already on the response, it is appended to
// Access-Control-Expose-Headers so browser callers can read the correlation
// id.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		// Never emit HSTS on plain HTTP; browsers ignore it there.
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains; preload")
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, "X-Request-ID")
			} else if !strings.Contains(cur, "X-Request-ID") {
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request used HTTPS, either directly or via a
// reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
