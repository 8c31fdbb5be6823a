package repo

import (
	"errors"
	"reflect"
	"testing"

	"gorm.io/datatypes"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

func TestUpsertAdvisory_InsertThenOverwriteAllFields(t *testing.T) {
	db := newStoreDB(t)

	pub := utc("2025-01-01T08:00:00Z")
	first := &domain.Advisory{
		ID:          "42",
		EventName:   "Silny wiatr",
		Level:       2,
		Probability: 80,
		ValidFrom:   utc("2025-01-01T10:00:00Z"),
		ValidTo:     utc("2025-01-02T10:00:00Z"),
		PublishedAt: pub,
		Content:     "treść",
		Comment:     "komentarz",
		Office:      "CMM Kraków",
		Raw:         datatypes.JSON(`{"id":"42"}`),
	}
	if err := UpsertAdvisory(ctxBG, db, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Second version drops optional fields; they must not survive.
	second := &domain.Advisory{
		ID:        "42",
		EventName: "Opady śniegu",
		Level:     1,
		ValidFrom: utc("2025-01-03T00:00:00Z"),
		ValidTo:   utc("2025-01-03T12:00:00Z"),
	}
	if err := UpsertAdvisory(ctxBG, db, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var n int64
	if err := db.Model(&domain.Advisory{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("expected 1 advisory row, got %d err=%v", n, err)
	}

	got, err := GetAdvisory(ctxBG, db, "42")
	if err != nil {
		t.Fatalf("GetAdvisory: %v", err)
	}
	if got.EventName != "Opady śniegu" || got.Level != 1 || got.Probability != 0 {
		t.Fatalf("scalar fields not overwritten: %+v", got)
	}
	if got.PublishedAt != nil {
		t.Fatalf("published_at should be cleared, got %v", got.PublishedAt)
	}
	if got.Content != "" || got.Comment != "" || got.Office != "" {
		t.Fatalf("text fields should be cleared: %+v", got)
	}
	if !got.ValidFrom.Equal(*utc("2025-01-03T00:00:00Z")) {
		t.Fatalf("valid_from not overwritten: %v", got.ValidFrom)
	}
	if len(got.Regions) != 0 || got.Regions == nil {
		t.Fatalf("expected empty non-nil regions, got %#v", got.Regions)
	}
}

func TestReplaceCoverage_ReplacesNotUnions(t *testing.T) {
	db := newStoreDB(t)
	seedAdvisory(t, db, "a1", 1, nil, nil, "1261", "1262")

	if err := EnsureRegions(ctxBG, db, []string{"1263"}); err != nil {
		t.Fatalf("EnsureRegions: %v", err)
	}
	if err := ReplaceCoverage(ctxBG, db, "a1", []string{"1263"}); err != nil {
		t.Fatalf("ReplaceCoverage: %v", err)
	}
	got, err := GetAdvisory(ctxBG, db, "a1")
	if err != nil {
		t.Fatalf("GetAdvisory: %v", err)
	}
	if !reflect.DeepEqual(got.Regions, []string{"1263"}) {
		t.Fatalf("coverage = %v; want [1263]", got.Regions)
	}

	// An empty set clears coverage entirely.
	if err := ReplaceCoverage(ctxBG, db, "a1", nil); err != nil {
		t.Fatalf("ReplaceCoverage(nil): %v", err)
	}
	var n int64
	db.Model(&domain.AdvisoryCoverage{}).Where("advisory_id = ?", "a1").Count(&n)
	if n != 0 {
		t.Fatalf("expected coverage cleared, got %d rows", n)
	}
}

func TestEnsureRegions_KeepsExistingNames(t *testing.T) {
	db := newStoreDB(t)

	if err := UpsertRegion(ctxBG, db, "1261", "powiat krakowski"); err != nil {
		t.Fatalf("UpsertRegion: %v", err)
	}
	if err := EnsureRegions(ctxBG, db, []string{"1261", "1465"}); err != nil {
		t.Fatalf("EnsureRegions: %v", err)
	}
	if err := EnsureRegions(ctxBG, db, nil); err != nil {
		t.Fatalf("EnsureRegions(nil): %v", err)
	}

	r, err := GetRegion(ctxBG, db, "1261")
	if err != nil || r.Name != "powiat krakowski" {
		t.Fatalf("existing name lost: %+v err=%v", r, err)
	}
	r, err = GetRegion(ctxBG, db, "1465")
	if err != nil || r.Name != "" {
		t.Fatalf("stub region unexpected: %+v err=%v", r, err)
	}
}

func TestUpsertRegion_RefreshesNameButNeverErases(t *testing.T) {
	db := newStoreDB(t)

	if err := UpsertRegion(ctxBG, db, "1465", ""); err != nil {
		t.Fatalf("UpsertRegion stub: %v", err)
	}
	if err := UpsertRegion(ctxBG, db, "1465", "powiat m. st. Warszawa"); err != nil {
		t.Fatalf("UpsertRegion name: %v", err)
	}
	if err := UpsertRegion(ctxBG, db, "1465", ""); err != nil {
		t.Fatalf("UpsertRegion empty: %v", err)
	}
	r, err := GetRegion(ctxBG, db, "1465")
	if err != nil {
		t.Fatalf("GetRegion: %v", err)
	}
	if r.Name != "powiat m. st. Warszawa" {
		t.Fatalf("name = %q", r.Name)
	}
}

func TestGetRegion_NotFound(t *testing.T) {
	db := newStoreDB(t)
	if _, err := GetRegion(ctxBG, db, "9999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := GetAdvisory(ctxBG, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadCoverage_SortedPerAdvisory(t *testing.T) {
	db := newStoreDB(t)
	seedAdvisory(t, db, "a1", 1, nil, nil, "3064", "1261")
	seedAdvisory(t, db, "a2", 1, nil, nil)

	list := []domain.Advisory{{ID: "a1"}, {ID: "a2"}}
	if err := LoadCoverage(ctxBG, db, list); err != nil {
		t.Fatalf("LoadCoverage: %v", err)
	}
	if !reflect.DeepEqual(list[0].Regions, []string{"1261", "3064"}) {
		t.Fatalf("a1 regions = %v", list[0].Regions)
	}
	if list[1].Regions == nil || len(list[1].Regions) != 0 {
		t.Fatalf("a2 regions = %#v", list[1].Regions)
	}
	if err := LoadCoverage(ctxBG, db, nil); err != nil {
		t.Fatalf("LoadCoverage(nil): %v", err)
	}
}

func TestAdvisoryRepo_MissingTablesError(t *testing.T) {
	db := newRepoDB(t)
	if err := UpsertAdvisory(ctxBG, db, &domain.Advisory{ID: "x"}); err == nil {
		t.Fatalf("expected error without schema")
	}
	if err := ReplaceCoverage(ctxBG, db, "x", []string{"1261"}); err == nil {
		t.Fatalf("expected error without schema")
	}
	if err := LoadCoverage(ctxBG, db, []domain.Advisory{{ID: "x"}}); err == nil {
		t.Fatalf("expected error without schema")
	}
}
