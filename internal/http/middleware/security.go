// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file provides SecurityHeaders, the hardening headers for the JSON API.
// HSTS is opt-in and only sent on HTTPS requests. Browser clients also need
// a few response headers exposed through CORS (request ID, ETag, replay
// marker); those are appended without clobbering what CORS already set.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultExposeHeaders are the response headers browser clients may read.
var DefaultExposeHeaders = []string{requestIDHeader, "ETag", "Idempotency-Replayed"}

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS   bool          // only when HTTPS is end-to-end
	HSTSMaxAge   time.Duration // <= 0 means 180 days
	NoStore      bool          // Cache-Control: no-store and legacy equivalents
	EnablePolicy bool          // Permissions-Policy and cross-domain policy
	// Expose lists headers to add to Access-Control-Expose-Headers; nil means
	// DefaultExposeHeaders.
	Expose []string
}

// SecurityHeaders always sets nosniff, DENY framing and no-referrer, then the
// optional groups selected in opt.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"
	expose := opt.Expose
	if expose == nil {
		expose = DefaultExposeHeaders
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
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		appendExpose(h, expose)

		c.Next()
	}
}

// appendExpose adds names missing from Access-Control-Expose-Headers.
func appendExpose(h http.Header, names []string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	have := map[string]struct{}{}
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			have[strings.ToLower(p)] = struct{}{}
		}
	}
	for _, n := range names {
		if _, ok := have[strings.ToLower(n)]; ok {
			continue
		}
		if cur == "" {
			cur = n
		} else {
			cur += ", " + n
		}
		have[strings.ToLower(n)] = struct{}{}
	}
	if cur != "" {
		h.Set(hdr, cur)
	}
}

// isHTTPS reports TLS on the connection or X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
