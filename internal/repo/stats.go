// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// status endpoint and for weak ETag generation in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

// LatestPublished returns the greatest published_at across all advisories,
// or nil when none carries one.
func LatestPublished(ctx context.Context, db *gorm.DB) (*time.Time, error) {
	// ORDER BY + LIMIT rather than MAX(): SQLite returns MAX() as TEXT.
	var rows []struct {
		PublishedAt *time.Time
	}
	err := db.WithContext(ctx).
		Model(&domain.Advisory{}).
		Select("published_at").
		Where("published_at IS NOT NULL").
		Order("published_at DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0].PublishedAt, nil
}

// AdvisoryStats returns the number of advisories covering regionCode (all
// advisories when empty) and the greatest UpdatedAt among them.
//
// Return values:
//   - count:        matching advisories
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func AdvisoryStats(ctx context.Context, db *gorm.DB, regionCode string) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = advisoriesIn(ctx, db, regionCode).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = advisoriesIn(ctx, db, regionCode).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
