package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/observability"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fakeGeocoder struct {
	mu    sync.Mutex
	match map[string]*domain.RegionMatch // key "%.6f,%.6f"
	err   error
	calls int
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{match: map[string]*domain.RegionMatch{}}
}

func (g *fakeGeocoder) set(lat, lon float64, code, name string) {
	g.match[fmt.Sprintf("%.6f,%.6f", lat, lon)] = &domain.RegionMatch{Code: code, Name: name}
}

func (g *fakeGeocoder) Lookup(_ context.Context, lat, lon float64) (*domain.RegionMatch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.match[fmt.Sprintf("%.6f,%.6f", lat, lon)], nil
}

func (g *fakeGeocoder) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeFeed struct {
	recs  []domain.FeedRecord
	err   error
	calls int
}

func (f *fakeFeed) Fetch(context.Context) ([]domain.FeedRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.recs, nil
}

type fakePublisher struct {
	batches [][]domain.Advisory
	err     error
}

func (p *fakePublisher) PublishAdvisories(_ context.Context, a []domain.Advisory, _ time.Time) error {
	p.batches = append(p.batches, a)
	return p.err
}

var errBoom = errors.New("boom")

// Krakow points used across tests.
const (
	krkLat = 50.061947
	krkLon = 19.936856
)

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v.UTC()
}

func ptr(t time.Time) *time.Time { return &t }

func newResolver(db *gorm.DB, geo Geocoder, cacheEnabled bool, clk clockwork.Clock) *RegionResolver {
	r := NewRegionResolver(db, geo, cacheEnabled, observability.NewMetricsForTesting())
	r.Clock = clk
	return r
}

func newIngestor(db *gorm.DB, src FeedSource, clk clockwork.Clock) *FeedIngestor {
	f := NewFeedIngestor(db, src, "Europe/Warsaw", observability.NewMetricsForTesting())
	f.Clock = clk
	return f
}

func newQuery(db *gorm.DB, clk clockwork.Clock) *TemporalQueryEngine {
	q := NewTemporalQueryEngine(db)
	q.Clock = clk
	return q
}

func advisoryIDs(list []domain.Advisory) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = list[i].ID
	}
	return out
}
