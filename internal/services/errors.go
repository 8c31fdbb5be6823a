// Package services holds the advisory business logic: point resolution,
// feed ingestion, and temporal queries over stored advisories.
// This file centralizes service-level error values so that callers can branch
// on them with errors.Is.
//
// Translation into HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed caller input (coordinates out of range,
	// malformed region code). Nothing was read or written.
	ErrValidation = errors.New("validation failed")

	// ErrUnresolvedPoint means the geocoder found no county for the point.
	// It is distinct from a resolved county with no advisories.
	ErrUnresolvedPoint = errors.New("point does not resolve to a county")

	// ErrUpstreamUnavailable wraps feed or geocoder transport failures,
	// timeouts, and non-success answers.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrSnapshotNotFound indicates that no snapshot has the requested id.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func upstream(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, what, err)
}
