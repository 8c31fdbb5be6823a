// Package domain defines the persistence models for counties, weather
// advisories, the point-resolution cache, and point snapshots. These types are
// mapped with GORM and form the core data layer of the advisory service.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Region is a county (powiat) identified by its 4-digit TERYT code.
// Regions referenced only by the feed carry an empty Name until a geocoder
// hit supplies one.
type Region struct {
	Code      string    `json:"code"       gorm:"type:char(4);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for Region.
func (Region) TableName() string { return "regions" }

// Advisory is a severe-weather warning keyed by the upstream identifier.
// Every ingest overwrites all fields; there is no version or merge logic.
//
// Fields:
//   - ID: upstream identifier, stable across feed refreshes.
//   - EventName: e.g. "Silny wiatr", trimmed.
//   - Level: severity 1..3 (0 when upstream omitted it).
//   - Probability: 0..100 (0 when upstream omitted it).
//   - ValidFrom / ValidTo: UTC validity window; nil when unparseable.
//     ValidFrom > ValidTo is stored as-is and never matches interval queries.
//   - PublishedAt: UTC publication instant, optional.
//   - Regions: covering county codes, replaced wholesale on ingest.
//   - Raw: last raw upstream record.
type Advisory struct {
	ID          string         `json:"id"                     gorm:"type:varchar(64);primaryKey"`
	EventName   string         `json:"event_name"             gorm:"type:varchar(255);not null"`
	Level       int            `json:"level"                  gorm:"not null;index"`
	Probability int            `json:"probability"            gorm:"not null"`
	ValidFrom   *time.Time     `json:"valid_from"             gorm:"index"`
	ValidTo     *time.Time     `json:"valid_to"               gorm:"index"`
	PublishedAt *time.Time     `json:"published_at,omitempty" gorm:"index"`
	Content     string         `json:"content"                gorm:"type:text;not null"`
	Comment     string         `json:"comment"                gorm:"type:text;not null"`
	Office      string         `json:"office"                 gorm:"type:varchar(255);not null"`
	Raw         datatypes.JSON `json:"-"`
	CreatedAt   time.Time      `json:"-"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Regions []string `json:"regions" gorm:"-"`
}

// TableName returns the database table name for Advisory.
func (Advisory) TableName() string { return "advisories" }

// ActiveAt reports whether t falls within [ValidFrom, ValidTo], bounds
// inclusive. Open or inverted windows are never active.
func (a Advisory) ActiveAt(t time.Time) bool {
	if a.ValidFrom == nil || a.ValidTo == nil {
		return false
	}
	return !t.Before(*a.ValidFrom) && !t.After(*a.ValidTo)
}

// AdvisoryCoverage links an advisory to one covering county. The composite
// primary key keeps a code from appearing twice for the same advisory.
type AdvisoryCoverage struct {
	AdvisoryID string `gorm:"type:varchar(64);primaryKey"`
	RegionCode string `gorm:"type:char(4);primaryKey;index"`

	Advisory Advisory `gorm:"foreignKey:AdvisoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Region   Region   `gorm:"foreignKey:RegionCode;references:Code;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AdvisoryCoverage.
func (AdvisoryCoverage) TableName() string { return "advisory_coverage" }

// ResolutionCacheEntry memoizes a geocoder answer for a rounded coordinate
// pair. A nil RegionCode records that the point lies in no county.
//
// Fields:
//   - Lat / Lon: rounded to 6 decimals, unique together.
//   - Hits: lookups served for this key, never decreases.
//   - FirstSeen / LastUsed: UTC instants of creation and most recent hit.
type ResolutionCacheEntry struct {
	ID         uint      `json:"id"          gorm:"primaryKey;autoIncrement"`
	Lat        float64   `json:"lat"         gorm:"not null;uniqueIndex:ux_resolution_point,priority:1"`
	Lon        float64   `json:"lon"         gorm:"not null;uniqueIndex:ux_resolution_point,priority:2"`
	RegionCode *string   `json:"region_code" gorm:"type:char(4)"`
	RegionName string    `json:"region_name" gorm:"type:varchar(255);not null"`
	Hits       int64     `json:"hits"        gorm:"not null"`
	FirstSeen  time.Time `json:"first_seen"  gorm:"not null"`
	LastUsed   time.Time `json:"last_used"   gorm:"not null;index"`
}

// TableName returns the database table name for ResolutionCacheEntry.
func (ResolutionCacheEntry) TableName() string { return "resolution_cache_entries" }

// Snapshot is an append-only audit record of the advisories that were active
// for a point when it was captured.
type Snapshot struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Lat        float64   `json:"lat"         gorm:"not null"`
	Lon        float64   `json:"lon"         gorm:"not null"`
	RegionCode string    `json:"region_code" gorm:"type:char(4);not null;index"`
	RegionName string    `json:"region_name" gorm:"type:varchar(255);not null"`
	CapturedAt time.Time `json:"captured_at" gorm:"not null;index"`

	AdvisoryIDs []string `json:"advisory_ids" gorm:"-"`
}

// TableName returns the database table name for Snapshot.
func (Snapshot) TableName() string { return "snapshots" }

// SnapshotAdvisory links a snapshot to one advisory it captured.
type SnapshotAdvisory struct {
	SnapshotID string `gorm:"type:char(36);primaryKey"`
	AdvisoryID string `gorm:"type:varchar(64);primaryKey"`

	Snapshot Snapshot `gorm:"foreignKey:SnapshotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SnapshotAdvisory.
func (SnapshotAdvisory) TableName() string { return "snapshot_advisories" }
