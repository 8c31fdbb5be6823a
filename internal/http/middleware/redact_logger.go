// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file implements RedactingLogger, an access logger for deployments that
// must not retain precise caller locations. Coordinates in the query string
// are rounded to two decimals (about 1 km), e-mail addresses are replaced, and
// sensitive headers are masked. Bodies are never logged.
package middleware

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions adds header names to mask on top of Authorization, Cookie and
// Set-Cookie. Matching is case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	emailRE     = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	coordParams = map[string]struct{}{"lat": {}, "lon": {}}
)

// coarsenQuery rounds lat/lon query values to two decimals and scrubs e-mail
// addresses. An unparseable query is replaced wholesale.
func coarsenQuery(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return "[REDACTED:query]"
	}
	for k, vv := range vals {
		_, isCoord := coordParams[strings.ToLower(k)]
		for i, v := range vv {
			if isCoord {
				if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
					vv[i] = strconv.FormatFloat(f, 'f', 2, 64)
				} else {
					vv[i] = "[REDACTED]"
				}
				continue
			}
			vv[i] = emailRE.ReplaceAllString(v, "[REDACTED:email]")
		}
	}
	return vals.Encode()
}

// RedactingLogger logs method, route, scrubbed query and headers, status,
// size and latency. Level is warn for 4xx and error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := coarsenQuery(c.Request.URL.RawQuery)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = emailRE.ReplaceAllString(strings.Join(vv, ", "), "[REDACTED:email]")
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
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
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
