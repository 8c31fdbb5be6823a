// Package handlers provides the HTTP handlers of the advisory API.
//
// This file holds the response helpers every endpoint uses: fail writes the
// error envelope (logging 5xx with the request-scoped logger) and ok writes a
// JSON body.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meteo-warnings/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID, for correlating with server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"bad_request"`
	// Human-readable message
	Message string `json:"message" example:"lat and lon are required"`
}

// fail aborts with an ErrorResponse. Statuses >= 500 are logged.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is fail for callers outside the package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
