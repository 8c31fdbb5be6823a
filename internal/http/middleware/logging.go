// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file provides the request ID injector, the structured access logger,
// and panic recovery. Install them in that order so every log line and error
// body carries the correlation ID.
//
// Query strings are logged with coordinates coarsened (see coarsenQuery) and
// capped in length. The request-scoped logger lives under the "logger" key and
// is read back with LoggerFrom.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	upstreamKey       = "upstream.available"
	maxQueryLogLength = 2048
)

// RequestID reuses an incoming X-Request-ID or generates a UUID, and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// MarkUpstream records whether the handler could reach the advisory feed.
// Logger and Metrics pick it up after the handler returns.
func MarkUpstream(c *gin.Context, available bool) {
	c.Set(upstreamKey, available)
}

// upstreamState returns "true", "false", or "" when the handler did not touch
// upstream.
func upstreamState(c *gin.Context) string {
	v, ok := c.Get(upstreamKey)
	if !ok {
		return ""
	}
	if b, _ := v.(bool); b {
		return "true"
	}
	return "false"
}

// Logger emits one structured access log per request. Level follows outcome:
// error for 5xx or recorded gin errors, warn for 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(coarsenQuery(c.Request.URL.RawQuery), maxQueryLogLength)).
			Logger()
		c.Set("logger", &l)

		c.Next()

		ctx := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size())
		if up := upstreamState(c); up != "" {
			ctx = ctx.Str("upstream_available", up)
		}
		ev := ctx.Logger()

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery turns a panic into a JSON 500 when nothing was written yet, and
// logs the stack either way.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", asString(rid)).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global one when Logger
// is not installed. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
