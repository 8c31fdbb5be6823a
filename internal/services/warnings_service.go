package services

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
)

// PointOptions tunes a point-scoped query.
type PointOptions struct {
	// Refresh pulls and ingests the feed before answering (best effort).
	Refresh bool
	// Save records a snapshot of the answer.
	Save bool
	// Policy is handed to the resolver.
	Policy CachePolicy
}

// Point is a query coordinate after rounding.
type Point struct {
	Lat float64
	Lon float64
}

// Area is a resolved or requested county.
type Area struct {
	Code string
	Name string
}

// Result is the answer to any point- or region-scoped query.
type Result struct {
	Point  *Point // nil for region-scoped queries
	Area   Area
	Filter *HistoryFilter // set for history queries
	Items  []domain.Advisory

	// UpstreamAvailable is false only when a refresh was attempted and the
	// feed could not be fetched; Items then come from already-stored data.
	UpstreamAvailable bool

	SnapshotID string
}

// Status summarizes the store.
type Status struct {
	Now           time.Time
	LastPublished *time.Time
	CachedPoints  int64 // rows in the resolution cache
}

// WarningsService composes resolution, refresh, and temporal queries into the
// operations exposed to callers.
type WarningsService struct {
	DB       *gorm.DB
	Resolver *RegionResolver
	Ingestor *FeedIngestor
	Query    *TemporalQueryEngine

	// Live feeds the non-persisting live query. Nil falls back to the
	// ingestor's source.
	LiveSource FeedSource
}

// NewWarningsService wires the three core components.
func NewWarningsService(db *gorm.DB, res *RegionResolver, ing *FeedIngestor, q *TemporalQueryEngine, live FeedSource) *WarningsService {
	return &WarningsService{DB: db, Resolver: res, Ingestor: ing, Query: q, LiveSource: live}
}

// ForPoint answers "what is active now where I am".
func (s *WarningsService) ForPoint(ctx context.Context, lat, lon float64, opts PointOptions) (*Result, error) {
	ctx, span := s.span(ctx, "ForPoint", attribute.Float64("lat", lat), attribute.Float64("lon", lon))
	defer span.End()

	res, err := s.resolve(ctx, lat, lon, opts.Policy)
	if err != nil {
		return nil, err
	}
	available := s.maybeRefresh(ctx, opts.Refresh)

	items, err := s.Query.Current(ctx, res.Code)
	if err != nil {
		return nil, err
	}
	out := pointResult(res, items, available)

	if opts.Save {
		snap, err := s.saveSnapshot(ctx, res, items)
		if err != nil {
			return nil, err
		}
		out.SnapshotID = snap.ID
	}
	return out, nil
}

// ForRegion lists advisories active now for an explicit county code. It
// never contacts upstream.
func (s *WarningsService) ForRegion(ctx context.Context, code string) (*Result, error) {
	items, err := s.Query.Current(ctx, code)
	if err != nil {
		return nil, err
	}
	return &Result{Area: s.area(ctx, code), Items: items, UpstreamAvailable: true}, nil
}

// HistoryForPoint resolves the point, optionally refreshes, and applies f.
func (s *WarningsService) HistoryForPoint(ctx context.Context, lat, lon float64, f HistoryFilter, opts PointOptions) (*Result, error) {
	ctx, span := s.span(ctx, "HistoryForPoint", attribute.Float64("lat", lat), attribute.Float64("lon", lon))
	defer span.End()

	res, err := s.resolve(ctx, lat, lon, opts.Policy)
	if err != nil {
		return nil, err
	}
	available := s.maybeRefresh(ctx, opts.Refresh)

	f = f.Normalized()
	items, err := s.Query.History(ctx, res.Code, f)
	if err != nil {
		return nil, err
	}
	out := pointResult(res, items, available)
	out.Filter = &f
	return out, nil
}

// HistoryForRegion applies f to an explicit county, optionally refreshing first.
func (s *WarningsService) HistoryForRegion(ctx context.Context, code string, f HistoryFilter, refresh bool) (*Result, error) {
	ctx, span := s.span(ctx, "HistoryForRegion", attribute.String("region", code))
	defer span.End()

	if err := checkRegion(code); err != nil {
		return nil, err
	}
	available := s.maybeRefresh(ctx, refresh)

	f = f.Normalized()
	items, err := s.Query.History(ctx, code, f)
	if err != nil {
		return nil, err
	}
	return &Result{Area: s.area(ctx, code), Filter: &f, Items: items, UpstreamAvailable: available}, nil
}

// FutureForPoint lists advisories for the point's county that have not started.
func (s *WarningsService) FutureForPoint(ctx context.Context, lat, lon float64, opts PointOptions) (*Result, error) {
	res, err := s.resolve(ctx, lat, lon, opts.Policy)
	if err != nil {
		return nil, err
	}
	available := s.maybeRefresh(ctx, opts.Refresh)

	items, err := s.Query.Future(ctx, res.Code)
	if err != nil {
		return nil, err
	}
	return pointResult(res, items, available), nil
}

// FutureForRegion lists advisories for code that have not started.
func (s *WarningsService) FutureForRegion(ctx context.Context, code string) (*Result, error) {
	items, err := s.Query.Future(ctx, code)
	if err != nil {
		return nil, err
	}
	return &Result{Area: s.area(ctx, code), Items: items, UpstreamAvailable: true}, nil
}

// Live reads the feed without persisting and keeps the records covering the
// point's county that are active now. There is no stored fallback, so a
// fetch failure is returned as ErrUpstreamUnavailable.
func (s *WarningsService) Live(ctx context.Context, lat, lon float64, policy CachePolicy) (*Result, error) {
	ctx, span := s.span(ctx, "Live", attribute.Float64("lat", lat), attribute.Float64("lon", lon))
	defer span.End()

	res, err := s.resolve(ctx, lat, lon, policy)
	if err != nil {
		return nil, err
	}

	src := s.LiveSource
	if src == nil {
		src = s.Ingestor.Source
	}
	recs, err := src.Fetch(ctx)
	if err != nil {
		return nil, upstream("feed", err)
	}

	now := s.Query.Now()
	loc := s.Ingestor.location()
	items := []domain.Advisory{}
	for i := range recs {
		a, codes, ok := NormalizeRecord(recs[i], loc)
		if !ok || !slices.Contains(codes, res.Code) || !a.ActiveAt(now) {
			continue
		}
		items = append(items, *a)
	}
	return pointResult(res, items, true), nil
}

// Status reports the server clock, the newest publication instant stored, and
// the size of the resolution cache.
func (s *WarningsService) Status(ctx context.Context) (Status, error) {
	last, err := repo.LatestPublished(ctx, s.DB)
	if err != nil {
		return Status{}, err
	}
	cached, err := repo.CountResolutions(ctx, s.DB)
	if err != nil {
		return Status{}, err
	}
	return Status{Now: s.Query.Now(), LastPublished: last, CachedPoints: cached}, nil
}

// CreateSnapshot resolves the point and records which advisories are active
// there now.
func (s *WarningsService) CreateSnapshot(ctx context.Context, lat, lon float64, policy CachePolicy) (*domain.Snapshot, error) {
	ctx, span := s.span(ctx, "CreateSnapshot", attribute.Float64("lat", lat), attribute.Float64("lon", lon))
	defer span.End()

	res, err := s.resolve(ctx, lat, lon, policy)
	if err != nil {
		return nil, err
	}
	items, err := s.Query.Current(ctx, res.Code)
	if err != nil {
		return nil, err
	}
	return s.saveSnapshot(ctx, res, items)
}

// GetSnapshot loads a snapshot by id.
func (s *WarningsService) GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	snap, err := repo.GetSnapshot(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSnapshotNotFound
	}
	return snap, err
}

// resolve maps the point and turns a no-county answer into ErrUnresolvedPoint.
func (s *WarningsService) resolve(ctx context.Context, lat, lon float64, policy CachePolicy) (Resolution, error) {
	res, err := s.Resolver.Resolve(ctx, lat, lon, policy)
	if err != nil {
		return Resolution{}, err
	}
	if !res.Found() {
		return Resolution{}, ErrUnresolvedPoint
	}
	return res, nil
}

// maybeRefresh runs a best-effort fetch+ingest and reports whether upstream
// answered. Store-side ingest failures are logged but do not flip the flag.
func (s *WarningsService) maybeRefresh(ctx context.Context, refresh bool) bool {
	if !refresh {
		return true
	}
	_, err := s.Ingestor.Refresh(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrUpstreamUnavailable):
		log.Warn().Err(err).Msg("feed refresh failed, answering from store")
		return false
	default:
		log.Warn().Err(err).Msg("feed refresh stored partially")
		return true
	}
}

func (s *WarningsService) saveSnapshot(ctx context.Context, res Resolution, items []domain.Advisory) (*domain.Snapshot, error) {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	snap := &domain.Snapshot{
		Lat:         res.Lat,
		Lon:         res.Lon,
		RegionCode:  res.Code,
		RegionName:  res.Name,
		CapturedAt:  s.Query.Now(),
		AdvisoryIDs: ids,
	}
	if err := repo.CreateSnapshot(ctx, s.DB, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// area returns the county with its stored name, if any.
func (s *WarningsService) area(ctx context.Context, code string) Area {
	a := Area{Code: code}
	if r, err := repo.GetRegion(ctx, s.DB, code); err == nil {
		a.Name = r.Name
	}
	return a
}

func (s *WarningsService) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer("services/WarningsService").Start(ctx, op, trace.WithAttributes(attrs...))
}

func pointResult(res Resolution, items []domain.Advisory, available bool) *Result {
	return &Result{
		Point:             &Point{Lat: res.Lat, Lon: res.Lon},
		Area:              Area{Code: res.Code, Name: res.Name},
		Items:             items,
		UpstreamAvailable: available,
	}
}
