package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/observability"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
	"github.com/tbourn/go-meteo-warnings/internal/utils"
)

// FeedSource pulls the full current advisory list from upstream.
type FeedSource interface {
	Fetch(ctx context.Context) ([]domain.FeedRecord, error)
}

// AdvisoryPublisher announces ingested advisories to other systems.
type AdvisoryPublisher interface {
	PublishAdvisories(ctx context.Context, advisories []domain.Advisory, ingestedAt time.Time) error
}

// FeedIngestor normalizes feed records and upserts them, one transaction per
// record, so a bad record never aborts the batch.
type FeedIngestor struct {
	DB     *gorm.DB
	Source FeedSource

	// Location is the zone of the feed's local timestamps.
	Location *time.Location

	// Publisher is optional.
	Publisher AdvisoryPublisher

	Clock   clockwork.Clock
	Metrics *observability.Metrics
}

// NewFeedIngestor builds an ingestor for feed timestamps in zone tz.
func NewFeedIngestor(db *gorm.DB, src FeedSource, tz string, metrics *observability.Metrics) *FeedIngestor {
	return &FeedIngestor{
		DB:       db,
		Source:   src,
		Location: domain.FeedLocation(tz),
		Clock:    clockwork.NewRealClock(),
		Metrics:  metrics,
	}
}

// Fetch downloads the feed. Any failure is reported as ErrUpstreamUnavailable.
func (f *FeedIngestor) Fetch(ctx context.Context) ([]domain.FeedRecord, error) {
	ctx, span := tracer("services/FeedIngestor").Start(ctx, "Fetch")
	defer span.End()

	recs, err := f.Source.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, upstream("feed", err)
	}
	span.SetAttributes(attribute.Int("records", len(recs)))
	return recs, nil
}

// Ingest upserts every record with a non-empty id and returns how many were
// stored. Records that fail are skipped; their errors are joined into the
// returned error while the count still reflects the successful ones.
func (f *FeedIngestor) Ingest(ctx context.Context, records []domain.FeedRecord) (int, error) {
	ctx, span := tracer("services/FeedIngestor").Start(ctx, "Ingest",
		trace.WithAttributes(attribute.Int("records", len(records))),
	)
	defer span.End()

	var (
		stored  []domain.Advisory
		errs    []error
		skipped int
	)
	for i := range records {
		a, codes, ok := NormalizeRecord(records[i], f.location())
		if !ok {
			skipped++
			continue
		}
		if err := f.store(ctx, a, codes); err != nil {
			log.Warn().Err(err).Str("advisory_id", a.ID).Msg("advisory upsert failed")
			errs = append(errs, fmt.Errorf("advisory %s: %w", a.ID, err))
			continue
		}
		stored = append(stored, *a)
	}

	f.Metrics.Ingested("stored", len(stored))
	f.Metrics.Ingested("skipped", skipped)
	f.Metrics.Ingested("failed", len(errs))
	span.SetAttributes(attribute.Int("stored", len(stored)), attribute.Int("failed", len(errs)))
	log.Info().
		Int("records", len(records)).
		Int("stored", len(stored)).
		Int("skipped", skipped).
		Int("failed", len(errs)).
		Msg("feed ingested")

	f.publish(ctx, stored)
	return len(stored), errors.Join(errs...)
}

// Refresh runs Fetch then Ingest.
func (f *FeedIngestor) Refresh(ctx context.Context) (int, error) {
	recs, err := f.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	return f.Ingest(ctx, recs)
}

// store writes one advisory and its coverage atomically.
func (f *FeedIngestor) store(ctx context.Context, a *domain.Advisory, codes []string) error {
	return f.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpsertAdvisory(ctx, tx, a); err != nil {
			return err
		}
		if err := repo.EnsureRegions(ctx, tx, codes); err != nil {
			return err
		}
		return repo.ReplaceCoverage(ctx, tx, a.ID, codes)
	})
}

func (f *FeedIngestor) publish(ctx context.Context, stored []domain.Advisory) {
	if f.Publisher == nil || len(stored) == 0 {
		return
	}
	err := f.Publisher.PublishAdvisories(ctx, stored, f.Clock.Now())
	f.Metrics.Published(err)
	if err != nil {
		log.Error().Err(err).Int("advisories", len(stored)).Msg("advisory publish failed")
	}
}

func (f *FeedIngestor) location() *time.Location {
	if f.Location == nil {
		return domain.FeedLocation("")
	}
	return f.Location
}

// NormalizeRecord converts a feed record into an advisory plus its covering
// county codes. ok is false when the record has no id.
//
// Severity and probability that are missing or not integers become 0.
// Timestamps that are missing or not in the feed layout become nil. Coverage
// keeps only 4-digit numeric codes, deduplicated in feed order.
func NormalizeRecord(rec domain.FeedRecord, loc *time.Location) (a *domain.Advisory, codes []string, ok bool) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return nil, nil, false
	}
	a = &domain.Advisory{
		ID:          id,
		EventName:   cleanText(rec.EventName),
		Level:       utils.AtoiDefault(rec.Level, 0),
		Probability: utils.AtoiDefault(rec.Probability, 0),
		ValidFrom:   domain.ParseFeedTime(rec.ValidFrom, loc),
		ValidTo:     domain.ParseFeedTime(rec.ValidTo, loc),
		PublishedAt: domain.ParseFeedTime(rec.PublishedAt, loc),
		Content:     norm.NFC.String(rec.Content),
		Comment:     norm.NFC.String(rec.Comment),
		Office:      cleanText(rec.Office),
	}
	if len(rec.Raw) > 0 {
		a.Raw = datatypes.JSON(rec.Raw)
	}

	codes = coverageCodes(rec.Regions)
	a.Regions = codes
	return a, codes, true
}

func coverageCodes(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		if !domain.ValidRegionCode(c) {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
