// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists point snapshots, the append-only audit
// of which advisories were active for a point at capture time.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

// CreateSnapshot inserts s and its advisory links in one transaction. An empty
// s.ID is replaced with a random UUID. Duplicate advisory ids are collapsed.
func CreateSnapshot(ctx context.Context, db *gorm.DB, s *domain.Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CapturedAt = s.CapturedAt.UTC()
	s.AdvisoryIDs = dedupe(s.AdvisoryIDs)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			return err
		}
		if len(s.AdvisoryIDs) == 0 {
			return nil
		}
		links := make([]domain.SnapshotAdvisory, 0, len(s.AdvisoryIDs))
		for _, id := range s.AdvisoryIDs {
			links = append(links, domain.SnapshotAdvisory{SnapshotID: s.ID, AdvisoryID: id})
		}
		return tx.Omit(clause.Associations).Create(&links).Error
	})
}

// GetSnapshot loads a snapshot with its advisory ids (sorted), or ErrNotFound.
func GetSnapshot(ctx context.Context, db *gorm.DB, id string) (*domain.Snapshot, error) {
	var s domain.Snapshot
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	ids := []string{}
	err := db.WithContext(ctx).
		Model(&domain.SnapshotAdvisory{}).
		Where("snapshot_id = ?", id).
		Order("advisory_id").
		Pluck("advisory_id", &ids).Error
	if err != nil {
		return nil, err
	}
	s.AdvisoryIDs = ids
	return &s, nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
