package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

var ctxBG = context.Background()

// newRepoDB opens a private in-memory database. Without models nothing is
// migrated, which lets tests exercise the missing-table error paths.
func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
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
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// newStoreDB opens a fully migrated store.
func newStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newRepoDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func utc(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	t = t.UTC()
	return &t
}

// seedAdvisory writes an advisory with the given window and coverage.
func seedAdvisory(t *testing.T, db *gorm.DB, id string, level int, from, to *time.Time, codes ...string) {
	t.Helper()
	a := &domain.Advisory{ID: id, EventName: "ev-" + id, Level: level, ValidFrom: from, ValidTo: to}
	if err := UpsertAdvisory(ctxBG, db, a); err != nil {
		t.Fatalf("UpsertAdvisory(%s): %v", id, err)
	}
	if err := EnsureRegions(ctxBG, db, codes); err != nil {
		t.Fatalf("EnsureRegions: %v", err)
	}
	if err := ReplaceCoverage(ctxBG, db, id, codes); err != nil {
		t.Fatalf("ReplaceCoverage(%s): %v", id, err)
	}
}

func ids(list []domain.Advisory) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = list[i].ID
	}
	return out
}
