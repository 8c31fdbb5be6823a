package domain

import (
	"math"
	"strings"
	"time"
	_ "time/tzdata" // the feed zone must resolve on hosts without zoneinfo

	"github.com/tbourn/go-meteo-warnings/internal/utils"
)

// FeedTimeLayout is the wall-clock layout used by the IMGW feed. It carries no
// offset; values are local to the feed zone.
const FeedTimeLayout = "2006-01-02 15:04:05"

// DefaultFeedZone is the zone the feed's local timestamps are expressed in.
const DefaultFeedZone = "Europe/Warsaw"

// CoordPrecision is the number of decimals a coordinate is rounded to before
// it is used as a cache key or sent to the geocoder (about 0.1 m).
const CoordPrecision = 6

var coordScale = math.Pow10(CoordPrecision)

// FeedLocation loads name, falling back to DefaultFeedZone and then UTC.
func FeedLocation(name string) *time.Location {
	if name == "" {
		name = DefaultFeedZone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultFeedZone); err == nil {
		return loc
	}
	return time.UTC
}

// ParseFeedTime converts a feed timestamp in loc to an absolute UTC instant.
// Empty or malformed input yields nil, never the zero time.
func ParseFeedTime(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(FeedTimeLayout, s, loc)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ParseQueryTime reads a caller-supplied instant. It accepts a bare date
// (midnight local), a local date-time with 'T' or space separator, or a full
// RFC 3339 value with its own offset. Anything else yields nil.
func ParseQueryTime(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return &u
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", "2006-01-02T15:04", FeedTimeLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// RoundCoord rounds a coordinate to CoordPrecision decimals.
func RoundCoord(v float64) float64 {
	return math.Round(v*coordScale) / coordScale
}

// ValidPoint reports whether lat/lon are finite and inside WGS84 bounds.
func ValidPoint(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ValidRegionCode reports whether code is a 4-digit TERYT county code.
func ValidRegionCode(code string) bool {
	return len(code) == 4 && utils.IsDigits(code)
}
