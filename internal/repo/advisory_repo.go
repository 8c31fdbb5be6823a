// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides write-side functions for advisories,
// counties, and the advisory→county coverage links.
//
// All functions accept a *gorm.DB handle so the caller can run them inside a
// transaction. The ingest pipeline relies on that: an advisory row and its
// coverage are written through the same tx.
//
// Functions:
//
//   - UpsertAdvisory(ctx, db, a) -> error
//     Inserts or overwrites every column of the advisory keyed by id.
//
//   - EnsureRegions(ctx, db, codes) -> error
//     Creates stub counties for codes not yet known; existing rows untouched.
//
//   - UpsertRegion(ctx, db, code, name) -> error
//     Creates the county or refreshes its display name.
//
//   - ReplaceCoverage(ctx, db, advisoryID, codes) -> error
//     Makes the coverage set of advisoryID exactly codes.
//
//   - GetAdvisory / GetRegion / LoadCoverage
//     Read helpers used by services and tests.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

// UpsertAdvisory writes a in full. On id conflict every non-key column is
// replaced with the incoming value, including zero and NULL values.
func UpsertAdvisory(ctx context.Context, db *gorm.DB, a *domain.Advisory) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Omit(clause.Associations).
		Create(a).Error
}

// EnsureRegions inserts a nameless county for each code that does not exist.
func EnsureRegions(ctx context.Context, db *gorm.DB, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.Region, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, domain.Region{Code: c, CreatedAt: now, UpdatedAt: now})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// UpsertRegion creates the county or sets its name. An empty name never
// erases a known one.
func UpsertRegion(ctx context.Context, db *gorm.DB, code, name string) error {
	if name == "" {
		return EnsureRegions(ctx, db, []string{code})
	}
	now := time.Now().UTC()
	r := domain.Region{Code: code, Name: name, CreatedAt: now, UpdatedAt: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(&r).Error
}

// ReplaceCoverage deletes every coverage row of advisoryID and inserts one
// per code. Callers pass deduplicated, already-existing county codes and run
// it in the same transaction as the advisory upsert.
func ReplaceCoverage(ctx context.Context, db *gorm.DB, advisoryID string, codes []string) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("advisory_id = ?", advisoryID).Delete(&domain.AdvisoryCoverage{}).Error; err != nil {
		return err
	}
	if len(codes) == 0 {
		return nil
	}
	rows := make([]domain.AdvisoryCoverage, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, domain.AdvisoryCoverage{AdvisoryID: advisoryID, RegionCode: c})
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

// GetAdvisory fetches one advisory with its coverage codes.
func GetAdvisory(ctx context.Context, db *gorm.DB, id string) (*domain.Advisory, error) {
	var a domain.Advisory
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	list := []domain.Advisory{a}
	if err := LoadCoverage(ctx, db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// GetRegion fetches a county by code, or ErrNotFound.
func GetRegion(ctx context.Context, db *gorm.DB, code string) (*domain.Region, error) {
	var r domain.Region
	if err := db.WithContext(ctx).Where("code = ?", code).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadCoverage fills Regions on each advisory in place using one query.
// Codes are sorted ascending.
func LoadCoverage(ctx context.Context, db *gorm.DB, advisories []domain.Advisory) error {
	if len(advisories) == 0 {
		return nil
	}
	ids := make([]string, len(advisories))
	for i := range advisories {
		ids[i] = advisories[i].ID
	}

	var links []domain.AdvisoryCoverage
	err := db.WithContext(ctx).
		Where("advisory_id IN ?", ids).
		Order("advisory_id, region_code").
		Find(&links).Error
	if err != nil {
		return err
	}

	byID := make(map[string][]string, len(advisories))
	for _, l := range links {
		byID[l.AdvisoryID] = append(byID[l.AdvisoryID], l.RegionCode)
	}
	for i := range advisories {
		codes := byID[advisories[i].ID]
		if codes == nil {
			codes = []string{}
		}
		advisories[i].Regions = codes
	}
	return nil
}
