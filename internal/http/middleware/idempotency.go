// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file validates the Idempotency-Key header on snapshot creation. A valid
// key is stashed for the handler; if the lookup reports a stored result for
// (scope, key) the request is flagged as a replay and exempted from rate
// limiting. Serving the replay stays with the handler.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemScope  = "idem.scope"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IdempotencyScope returns the scope the key was checked under: the request
// method and the matched route, e.g. "POST /api/v1/snapshots".
func IdempotencyScope(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyIdemScope); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ScopeOf(c)
}

// ScopeOf builds the idempotency scope for the current request.
func ScopeOf(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}

// IsReplay reports whether a stored result exists for this request's key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures key validation. Expiry is the lookup's job.
type IdempotencyOptions struct {
	// MaxLen caps key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a still-valid result is stored for
// (scope, key). Errors are ignored and the request proceeds normally.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator rejects malformed keys with 400 and flags replays.
// Requests without the header pass through untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		scope := ScopeOf(c)
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemScope, scope)

		if lookup != nil {
			if exists, _ := lookup(c.Request.Context(), scope, key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
