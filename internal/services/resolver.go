package services

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/observability"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
)

// CachePolicy selects how Resolve treats the persistent resolution cache.
type CachePolicy int

const (
	// PolicyDefault follows the resolver's CacheEnabled setting.
	PolicyDefault CachePolicy = iota
	// PolicyUseCache reads and writes the cache.
	PolicyUseCache
	// PolicyBypass always asks the geocoder and leaves the cache untouched.
	PolicyBypass
)

// String returns the policy name used in logs and spans.
func (p CachePolicy) String() string {
	switch p {
	case PolicyUseCache:
		return "use_cache"
	case PolicyBypass:
		return "bypass"
	default:
		return "default"
	}
}

// Geocoder resolves a point to a county. A nil match with a nil error means
// the point lies in no county.
type Geocoder interface {
	Lookup(ctx context.Context, lat, lon float64) (*domain.RegionMatch, error)
}

// Resolution is the outcome of Resolve. An empty Code means the point did not
// resolve; that is a valid, cacheable answer rather than an error.
type Resolution struct {
	Lat       float64 // rounded
	Lon       float64 // rounded
	Code      string
	Name      string
	FromCache bool
}

// Found reports whether the point resolved to a county.
func (r Resolution) Found() bool { return r.Code != "" }

// RegionResolver maps points to counties with a cache-aside store in front of
// the geocoder. Concurrent misses for one key converge on a single cache row
// through the store's unique (lat, lon) constraint.
type RegionResolver struct {
	DB       *gorm.DB
	Geocoder Geocoder

	// CacheEnabled is what PolicyDefault resolves to.
	CacheEnabled bool

	Clock   clockwork.Clock
	Metrics *observability.Metrics
}

// NewRegionResolver builds a resolver on the real clock.
func NewRegionResolver(db *gorm.DB, geo Geocoder, cacheEnabled bool, metrics *observability.Metrics) *RegionResolver {
	return &RegionResolver{
		DB:           db,
		Geocoder:     geo,
		CacheEnabled: cacheEnabled,
		Clock:        clockwork.NewRealClock(),
		Metrics:      metrics,
	}
}

// Resolve maps (lat, lon) to a county. Coordinates are rounded to six
// decimals before any cache access or geocoder call.
//
// Errors: ErrValidation for non-finite or out-of-range coordinates,
// ErrUpstreamUnavailable when the geocoder fails, and raw store errors.
func (r *RegionResolver) Resolve(ctx context.Context, lat, lon float64, policy CachePolicy) (Resolution, error) {
	ctx, span := tracer("services/RegionResolver").Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.Float64("lat", lat),
			attribute.Float64("lon", lon),
			attribute.String("policy", policy.String()),
		),
	)
	defer span.End()

	if !domain.ValidPoint(lat, lon) {
		return Resolution{}, validationf("lat must be in [-90, 90] and lon in [-180, 180]")
	}
	lat, lon = domain.RoundCoord(lat), domain.RoundCoord(lon)

	useCache := policy == PolicyUseCache || (policy == PolicyDefault && r.CacheEnabled)
	if !useCache {
		r.Metrics.CacheResult("bypass")
		m, err := r.lookup(ctx, lat, lon)
		if err != nil {
			return Resolution{}, err
		}
		return r.answer(ctx, lat, lon, m), nil
	}

	e, err := repo.GetResolution(ctx, r.DB, lat, lon)
	switch {
	case err == nil:
		r.Metrics.CacheResult("hit")
		if terr := repo.TouchResolution(ctx, r.DB, e.ID, r.Clock.Now()); terr != nil {
			log.Warn().Err(terr).Float64("lat", lat).Float64("lon", lon).Msg("resolution cache touch failed")
		}
		res := Resolution{Lat: lat, Lon: lon, Name: e.RegionName, FromCache: true}
		if e.RegionCode != nil {
			res.Code = *e.RegionCode
		}
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.String("region", res.Code))
		return res, nil
	case !errors.Is(err, repo.ErrNotFound):
		return Resolution{}, err
	}

	r.Metrics.CacheResult("miss")
	m, err := r.lookup(ctx, lat, lon)
	if err != nil {
		return Resolution{}, err
	}

	var code *string
	name := ""
	if m != nil {
		code, name = &m.Code, m.Name
	}
	if _, err := repo.SaveResolution(ctx, r.DB, lat, lon, code, name, r.Clock.Now()); err != nil {
		return Resolution{}, err
	}
	res := r.answer(ctx, lat, lon, m)
	span.SetAttributes(attribute.Bool("cache.hit", false), attribute.String("region", res.Code))
	return res, nil
}

func (r *RegionResolver) lookup(ctx context.Context, lat, lon float64) (*domain.RegionMatch, error) {
	m, err := r.Geocoder.Lookup(ctx, lat, lon)
	if err != nil {
		return nil, upstream("geocoder", err)
	}
	return m, nil
}

// answer builds the resolution for a fresh geocoder match and records the
// county, so regions become known as soon as a point lands in them.
func (r *RegionResolver) answer(ctx context.Context, lat, lon float64, m *domain.RegionMatch) Resolution {
	res := Resolution{Lat: lat, Lon: lon}
	if m == nil {
		return res
	}
	res.Code, res.Name = m.Code, m.Name
	if err := repo.UpsertRegion(ctx, r.DB, m.Code, m.Name); err != nil {
		log.Warn().Err(err).Str("region", m.Code).Msg("region upsert failed")
	}
	return res
}
