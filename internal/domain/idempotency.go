package domain

import "time"

// Idempotency records the outcome of a previously processed unsafe request,
// keyed by (scope, key). Scope is the route the key was presented to, so the
// same key may be reused across different endpoints.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Scope      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_scope_key,priority:1"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_scope_key,priority:2"`
	ResourceID string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
