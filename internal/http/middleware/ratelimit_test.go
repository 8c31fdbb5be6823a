package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func limitedRouter(rl *RateLimiter, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(pre...)
	r.Use(rl.Handler())
	r.GET("/warnings", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/snapshots", func(c *gin.Context) { c.String(http.StatusCreated, "ok") })
	return r
}

func hit(r http.Handler, method, ip string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/warnings", nil)
	if method == http.MethodPost {
		req = httptest.NewRequest(method, "/snapshots", nil)
	}
	req.RemoteAddr = net.JoinHostPort(ip, "40000")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestKeyByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if key := KeyByClientIP()(c); key != "ip:203.0.113.9" {
		t.Fatalf("key = %q", key)
	}
}

func TestRateLimiter_BucketsArePerClient(t *testing.T) {
	r := limitedRouter(NewRateLimiter(0.001, 1, KeyByClientIP()))

	if w := hit(r, http.MethodGet, "198.51.100.1", nil); w.Code != http.StatusOK {
		t.Fatalf("client A first = %d", w.Code)
	}
	w := hit(r, http.MethodGet, "198.51.100.1", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("client A second = %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] == "" || body["request_id"] == nil {
		t.Fatalf("body = %v", body)
	}

	// another client has its own bucket
	if w := hit(r, http.MethodGet, "198.51.100.2", nil); w.Code != http.StatusOK {
		t.Fatalf("client B first = %d", w.Code)
	}
}

func TestRateLimiter_ReplaysAreNotCharged(t *testing.T) {
	replayed := func(context.Context, string, string, time.Time) (bool, error) { return true, nil }
	r := limitedRouter(
		NewRateLimiter(0.001, 1, KeyByClientIP()),
		IdempotencyValidator(IdempotencyOptions{}, replayed),
	)

	if w := hit(r, http.MethodGet, "192.0.2.7", nil); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	// bucket is empty now, but a replayed POST still goes through
	hdr := map[string]string{HeaderIdempotencyKey: "snap-1"}
	for i := 0; i < 3; i++ {
		if w := hit(r, http.MethodPost, "192.0.2.7", hdr); w.Code != http.StatusCreated {
			t.Fatalf("replay %d = %d", i, w.Code)
		}
	}
	if w := hit(r, http.MethodGet, "192.0.2.7", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("plain GET after replays = %d", w.Code)
	}
}

func TestIsRateBypass_NonBoolIsFalse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if IsRateBypass(c) {
		t.Fatalf("unset should be false")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("non-bool should be false")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("true should be true")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByClientIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want 1", rl.burst)
	}
	lim := rl.getVisitor("ip:a")
	if rl.getVisitor("ip:a") != lim {
		t.Fatalf("bucket not reused")
	}

	rl.mu.Lock()
	rl.ttl = time.Minute
	rl.visitors["ip:stale"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = 4999
	rl.mu.Unlock()

	_ = rl.getVisitor("ip:b")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["ip:stale"]; ok {
		t.Fatalf("stale bucket survived the sweep")
	}
	if _, ok := rl.visitors["ip:a"]; !ok {
		t.Fatalf("fresh bucket was swept")
	}
}
