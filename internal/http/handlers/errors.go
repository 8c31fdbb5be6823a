// Package handlers defines the HTTP-layer error codes used across the API.
//
// Every error response carries an HTTP status and one of these codes so that
// clients can branch without parsing messages. Service errors are translated
// in one place, writeServiceError, so all endpoints agree on the mapping.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "point_unresolved",
//	  "message": "point does not resolve to a county"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meteo-warnings/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodePointUnresolved     = "point_unresolved"
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
)

// writeServiceError maps a service error onto the response envelope.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUnresolvedPoint):
		fail(c, http.StatusNotFound, ErrCodePointUnresolved, "point does not resolve to a county")
	case errors.Is(err, services.ErrSnapshotNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "snapshot not found")
	case errors.Is(err, services.ErrUpstreamUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeUpstreamUnavailable, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
