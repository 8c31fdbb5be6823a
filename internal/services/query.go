package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
)

// HistoryFilter narrows a history query. ActiveAt, when set, wins over the
// Since/Until window. All nil means the full history.
type HistoryFilter struct {
	Since    *time.Time
	Until    *time.Time
	ActiveAt *time.Time
}

// Normalized returns the filter with UTC instants and, when both window
// bounds are present and reversed, Since and Until swapped.
func (f HistoryFilter) Normalized() HistoryFilter {
	out := HistoryFilter{Since: utcPtr(f.Since), Until: utcPtr(f.Until), ActiveAt: utcPtr(f.ActiveAt)}
	if out.Since != nil && out.Until != nil && out.Since.After(*out.Until) {
		out.Since, out.Until = out.Until, out.Since
	}
	return out
}

// TemporalQueryEngine answers interval questions over stored advisories,
// optionally scoped to one county. An empty region means all advisories.
type TemporalQueryEngine struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

// NewTemporalQueryEngine builds an engine on the real clock.
func NewTemporalQueryEngine(db *gorm.DB) *TemporalQueryEngine {
	return &TemporalQueryEngine{DB: db, Clock: clockwork.NewRealClock()}
}

// Now is the engine's notion of the current instant, in UTC.
func (q *TemporalQueryEngine) Now() time.Time { return q.Clock.Now().UTC() }

// Current lists advisories active now, most severe then soonest-expiring first.
func (q *TemporalQueryEngine) Current(ctx context.Context, region string) ([]domain.Advisory, error) {
	ctx, span := q.span(ctx, "Current", region)
	defer span.End()
	if err := checkRegion(region); err != nil {
		return nil, err
	}
	return repo.ListCurrent(ctx, q.DB, region, q.Now())
}

// ActiveAt lists advisories whose window contains t, bounds inclusive.
func (q *TemporalQueryEngine) ActiveAt(ctx context.Context, region string, t time.Time) ([]domain.Advisory, error) {
	ctx, span := q.span(ctx, "ActiveAt", region)
	defer span.End()
	if err := checkRegion(region); err != nil {
		return nil, err
	}
	return repo.ListActiveAt(ctx, q.DB, region, t)
}

// Overlapping lists advisories whose window intersects [since, until]. Reversed
// bounds are swapped; a nil bound is open.
func (q *TemporalQueryEngine) Overlapping(ctx context.Context, region string, since, until *time.Time) ([]domain.Advisory, error) {
	ctx, span := q.span(ctx, "Overlapping", region)
	defer span.End()
	if err := checkRegion(region); err != nil {
		return nil, err
	}
	f := HistoryFilter{Since: since, Until: until}.Normalized()
	return repo.ListOverlapping(ctx, q.DB, region, f.Since, f.Until)
}

// Future lists advisories starting strictly after now, soonest first.
func (q *TemporalQueryEngine) Future(ctx context.Context, region string) ([]domain.Advisory, error) {
	ctx, span := q.span(ctx, "Future", region)
	defer span.End()
	if err := checkRegion(region); err != nil {
		return nil, err
	}
	return repo.ListFuture(ctx, q.DB, region, q.Now())
}

// History applies f: ActiveAt if set, otherwise Overlapping over the window.
func (q *TemporalQueryEngine) History(ctx context.Context, region string, f HistoryFilter) ([]domain.Advisory, error) {
	if f.ActiveAt != nil {
		return q.ActiveAt(ctx, region, *f.ActiveAt)
	}
	return q.Overlapping(ctx, region, f.Since, f.Until)
}

func (q *TemporalQueryEngine) span(ctx context.Context, op, region string) (context.Context, trace.Span) {
	return tracer("services/TemporalQueryEngine").Start(ctx, op,
		trace.WithAttributes(attribute.String("region", region)),
	)
}

func checkRegion(region string) error {
	if region != "" && !domain.ValidRegionCode(region) {
		return validationf("region code %q must be 4 digits", region)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
