// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the interval-predicate queries over stored
// advisories.
//
// Every list function optionally scopes to one county. Scoping uses an
// IN-subquery over advisory_coverage rather than a join, so an advisory is
// returned once even if it were linked several times.
//
// Validity bounds are inclusive. Rows with a NULL bound never satisfy a
// predicate that reads that bound, so open or unparseable windows only show up
// in the unfiltered history. Ties in every ordering are broken by id for
// deterministic output.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

// advisoriesIn starts a query over advisories, restricted to regionCode when
// it is non-empty.
func advisoriesIn(ctx context.Context, db *gorm.DB, regionCode string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Advisory{})
	if regionCode != "" {
		q = q.Where("id IN (?)",
			db.Model(&domain.AdvisoryCoverage{}).Select("advisory_id").Where("region_code = ?", regionCode))
	}
	return q
}

func findWithCoverage(ctx context.Context, db, q *gorm.DB) ([]domain.Advisory, error) {
	out := []domain.Advisory{}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	if err := LoadCoverage(ctx, db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCurrent returns advisories with valid_from <= now <= valid_to, most
// severe first, then soonest to expire.
func ListCurrent(ctx context.Context, db *gorm.DB, regionCode string, now time.Time) ([]domain.Advisory, error) {
	now = now.UTC()
	q := advisoriesIn(ctx, db, regionCode).
		Where("valid_from <= ? AND valid_to >= ?", now, now).
		Order("level DESC").Order("valid_to ASC").Order("id ASC")
	return findWithCoverage(ctx, db, q)
}

// ListActiveAt returns advisories with valid_from <= at <= valid_to, newest
// window start first.
func ListActiveAt(ctx context.Context, db *gorm.DB, regionCode string, at time.Time) ([]domain.Advisory, error) {
	at = at.UTC()
	q := advisoriesIn(ctx, db, regionCode).
		Where("valid_from <= ? AND valid_to >= ?", at, at).
		Order("valid_from DESC").Order("id ASC")
	return findWithCoverage(ctx, db, q)
}

// ListOverlapping returns advisories whose window intersects [since, until].
// A nil bound drops its half of the predicate; both nil lists full history.
// Callers normalize since <= until beforehand.
func ListOverlapping(ctx context.Context, db *gorm.DB, regionCode string, since, until *time.Time) ([]domain.Advisory, error) {
	q := advisoriesIn(ctx, db, regionCode)
	if since != nil {
		q = q.Where("valid_to >= ?", since.UTC())
	}
	if until != nil {
		q = q.Where("valid_from <= ?", until.UTC())
	}
	q = q.Order("valid_from DESC").Order("id ASC")
	return findWithCoverage(ctx, db, q)
}

// ListFuture returns advisories that start strictly after now, soonest first.
func ListFuture(ctx context.Context, db *gorm.DB, regionCode string, now time.Time) ([]domain.Advisory, error) {
	q := advisoriesIn(ctx, db, regionCode).
		Where("valid_from > ?", now.UTC()).
		Order("valid_from ASC").Order("id ASC")
	return findWithCoverage(ctx, db, q)
}
