// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger used in front of
// the public API. Storefront visitors control much of what ends up in our
// request metadata: the reported broken path, the query string, and the
// X-Referrer header can all carry emails or tracking identifiers, and the
// Authorization header carries the cron secret. The logger scrubs those
// before anything reaches the log sink.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"Authorization"},
//	}))
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures extra scrubbing for RedactingLogger.
//
// MaskHeaders lists additional header names whose values are replaced with
// "[REDACTED]" wholesale. Matching is case-insensitive and merged with the
// built-in set (Authorization, Cookie, Set-Cookie).
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger returns a Gin middleware that logs one structured line per
// request with sensitive values scrubbed.
//
// Logged fields: request id, shop domain, method, route path, query, status,
// response size, latency, and the request headers. Emails and UUID-shaped
// identifiers are pattern-redacted from the query string and header values;
// masked headers are replaced entirely. Level follows the outcome: info,
// warn for 4xx, error for 5xx.
//
// The route path (c.FullPath) is preferred over the raw URL so the reported
// broken path, which is attacker-controlled, appears only in the redacted
// query field.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	uuidRE := regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)

	// IDs before emails: the email pattern can swallow hex runs with dots.
	redact := func(s string) string {
		if s == "" {
			return s
		}
		out := uuidRE.ReplaceAllString(s, "[REDACTED:id]")
		return emailRE.ReplaceAllString(out, "[REDACTED:email]")
	}

	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redact(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			val := strings.Join(vv, ", ")
			if _, masked := maskHeaders[strings.ToLower(k)]; masked {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(val)
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		size := c.Writer.Size()

		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("shop_domain", c.GetHeader("X-Shop-Domain")).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", size).
			Dur("latency", latency).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
