// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the persistence of the point→county
// resolution cache.
//
// Keys are coordinate pairs already rounded by the caller. Concurrent writers
// for the same key converge on one row: inserts use ON CONFLICT (lat, lon)
// and fall back to incrementing the existing row's hit counter.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

// GetResolution returns the cache entry for (lat, lon), or ErrNotFound.
func GetResolution(ctx context.Context, db *gorm.DB, lat, lon float64) (*domain.ResolutionCacheEntry, error) {
	var e domain.ResolutionCacheEntry
	err := db.WithContext(ctx).
		Where("lat = ? AND lon = ?", lat, lon).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// TouchResolution atomically increments the hit counter of entry id and sets
// its last-used instant. It returns ErrNotFound if the row vanished.
func TouchResolution(ctx context.Context, db *gorm.DB, id uint, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ResolutionCacheEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"hits":      gorm.Expr("hits + 1"),
			"last_used": now.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResolution records a geocoder answer for (lat, lon). A fresh row starts
// at one hit. If another writer created the row first, that row takes the new
// answer, its counter is incremented, and last-used is refreshed; first-seen
// is kept. The stored row is returned.
func SaveResolution(ctx context.Context, db *gorm.DB, lat, lon float64, code *string, name string, now time.Time) (*domain.ResolutionCacheEntry, error) {
	now = now.UTC()
	e := domain.ResolutionCacheEntry{
		Lat:        lat,
		Lon:        lon,
		RegionCode: code,
		RegionName: name,
		Hits:       1,
		FirstSeen:  now,
		LastUsed:   now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "lat"}, {Name: "lon"}},
			DoUpdates: clause.Assignments(map[string]any{
				"region_code": code,
				"region_name": name,
				// Postgres rejects the bare column as ambiguous with EXCLUDED.
				"hits":      gorm.Expr("resolution_cache_entries.hits + 1"),
				"last_used": now,
			}),
		}).
		Create(&e).Error
	if err != nil {
		return nil, err
	}
	return GetResolution(ctx, db, lat, lon)
}

// CountResolutions returns the number of cached keys. Used by diagnostics.
func CountResolutions(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.ResolutionCacheEntry{}).Count(&n).Error
	return n, err
}
