package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection so the PRAGMA below applies to every statement.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Region{}).TableName():               "regions",
		(Advisory{}).TableName():             "advisories",
		(AdvisoryCoverage{}).TableName():     "advisory_coverage",
		(ResolutionCacheEntry{}).TableName(): "resolution_cache_entries",
		(Snapshot{}).TableName():             "snapshots",
		(SnapshotAdvisory{}).TableName():     "snapshot_advisories",
		(Idempotency{}).TableName():          "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	all := []any{&Region{}, &Advisory{}, &AdvisoryCoverage{}, &ResolutionCacheEntry{}, &Snapshot{}, &SnapshotAdvisory{}}
	if err := db.AutoMigrate(all...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range all {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&ResolutionCacheEntry{}, "ux_resolution_point") {
		t.Fatalf("expected unique index ux_resolution_point on resolution_cache_entries")
	}

	// Rounded coordinates must be unique together.
	now := time.Now().UTC()
	e1 := &ResolutionCacheEntry{Lat: 52.1, Lon: 21.0, Hits: 1, FirstSeen: now, LastUsed: now}
	if err := db.Create(e1).Error; err != nil {
		t.Fatalf("insert cache entry: %v", err)
	}
	e2 := &ResolutionCacheEntry{Lat: 52.1, Lon: 21.0, Hits: 1, FirstSeen: now, LastUsed: now}
	if err := db.Create(e2).Error; err == nil {
		t.Fatalf("expected unique violation on (lat, lon)")
	}

	// Coverage cascades away with its advisory.
	if err := db.Create(&Region{Code: "1465", Name: "Warszawa"}).Error; err != nil {
		t.Fatalf("insert region: %v", err)
	}
	if err := db.Create(&Advisory{ID: "a1", EventName: "Burze", Level: 2}).Error; err != nil {
		t.Fatalf("insert advisory: %v", err)
	}
	if err := db.Omit("Advisory", "Region").Create(&AdvisoryCoverage{AdvisoryID: "a1", RegionCode: "1465"}).Error; err != nil {
		t.Fatalf("insert coverage: %v", err)
	}
	if err := db.Omit("Advisory", "Region").Create(&AdvisoryCoverage{AdvisoryID: "a1", RegionCode: "1465"}).Error; err == nil {
		t.Fatalf("expected duplicate coverage row to be rejected")
	}
	if err := db.Delete(&Advisory{}, "id = ?", "a1").Error; err != nil {
		t.Fatalf("delete advisory: %v", err)
	}
	var cnt int64
	if err := db.Model(&AdvisoryCoverage{}).Where("advisory_id = ?", "a1").Count(&cnt).Error; err != nil {
		t.Fatalf("count coverage: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected coverage to cascade-delete with advisory, got %d", cnt)
	}
}

func TestAdvisory_ActiveAt(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	a := Advisory{ValidFrom: &from, ValidTo: &to}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{from, true},
		{to, true},
		{to.Add(time.Second), false},
		{from.Add(-time.Second), false},
		{from.Add(12 * time.Hour), true},
	}
	for _, tc := range cases {
		if got := a.ActiveAt(tc.at); got != tc.want {
			t.Fatalf("ActiveAt(%v) = %v; want %v", tc.at, got, tc.want)
		}
	}

	inverted := Advisory{ValidFrom: &to, ValidTo: &from}
	if inverted.ActiveAt(from.Add(12 * time.Hour)) {
		t.Fatalf("inverted window must never be active")
	}
	if (Advisory{ValidFrom: &from}).ActiveAt(to) {
		t.Fatalf("open window must never be active")
	}
}
