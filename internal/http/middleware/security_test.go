package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(t *testing.T, opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{}, nil, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" || h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected optional headers: %#v", h)
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, ETag, Idempotency-Replayed" {
		t.Fatalf("expose = %q", got)
	}
}

func TestSecurityHeaders_ExposeMergesWithoutDuplicates(t *testing.T) {
	pre := func(c *gin.Context) {
		c.Header("Access-Control-Expose-Headers", "Foo, etag")
		c.Next()
	}
	h := serveSecurity(t, SecurityOptions{}, pre, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if got := h.Get("Access-Control-Expose-Headers"); got != "Foo, etag, X-Request-ID, Idempotency-Replayed" {
		t.Fatalf("expose = %q", got)
	}

	h = serveSecurity(t, SecurityOptions{Expose: []string{}}, nil, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if got := h.Get("Access-Control-Expose-Headers"); got != "" {
		t.Fatalf("empty expose list should set nothing, got %q", got)
	}
}

func TestSecurityHeaders_PolicyNoStoreHSTS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.TLS = &tls.ConnectionState{}
	h := serveSecurity(t, SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, nil, req)

	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("missing cache headers: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true}

	plain := serveSecurity(t, opt, nil, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if plain.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	proxied := serveSecurity(t, opt, nil, req)
	if got := proxied.Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=15552000") {
		t.Fatalf("default HSTS = %q", got)
	}
}
