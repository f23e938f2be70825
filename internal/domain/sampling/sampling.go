package sampling

import (
	"time"

	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/domain/cycle"
	"github.com/aquaforge/pondops-backend/internal/domain/tenancy"
)

const (
	SourceOperational = "current_operational"
	SourceManual      = "manual_adjustment"
	SourceReforecast  = "reforecast"
)

// BiometrySample is an observed average weight for a pond. A sample that
// updated the operational survival ledger is frozen for audit.
type BiometrySample struct {
	ID      uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CycleID uuid.UUID    `gorm:"type:uuid;not null;index:idx_biometry_cycle_pond,priority:1" json:"cycle_id"`
	Cycle   *cycle.Cycle `gorm:"constraint:OnDelete:CASCADE;foreignKey:CycleID;references:ID" json:"cycle,omitempty"`

	PondID uuid.UUID     `gorm:"type:uuid;not null;index:idx_biometry_cycle_pond,priority:2" json:"pond_id"`
	Pond   *tenancy.Pond `gorm:"constraint:OnDelete:CASCADE;foreignKey:PondID;references:ID" json:"pond,omitempty"`

	SampleDate    time.Time `gorm:"column:sample_date;type:date;not null;index" json:"sample_date"`
	SampleCount   int       `gorm:"column:sample_count;not null" json:"sample_count"`
	SampleWeightG float64   `gorm:"column:sample_weight_g;not null" json:"sample_weight_g"`
	AvgWeightG    float64   `gorm:"column:avg_weight_g;not null" json:"avg_weight_g"`
	WeeklyGainG   *float64  `gorm:"column:weekly_gain_g" json:"weekly_gain_g,omitempty"`
	SurvivalPct   *float64  `gorm:"column:survival_pct" json:"survival_pct,omitempty"`

	Source string `gorm:"column:source;size:30;not null;default:'current_operational'" json:"source"`
	Frozen bool   `gorm:"column:frozen;not null;default:false" json:"frozen"`
	Note   string `gorm:"column:note;size:255" json:"note,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (BiometrySample) TableName() string { return "biometry_sample" }

// SurvivalChange is the append-only ledger of operational survival
// percentage changes. Rows are never updated or deleted.
type SurvivalChange struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CycleID uuid.UUID `gorm:"type:uuid;not null;index:idx_survival_cycle_pond,priority:1" json:"cycle_id"`
	PondID  uuid.UUID `gorm:"type:uuid;not null;index:idx_survival_cycle_pond,priority:2" json:"pond_id"`

	PrevPct   *float64   `gorm:"column:prev_pct" json:"prev_pct,omitempty"`
	NewPct    float64    `gorm:"column:new_pct;not null" json:"new_pct"`
	Source    string     `gorm:"column:source;size:30;not null" json:"source"`
	Reason    string     `gorm:"column:reason;size:255" json:"reason,omitempty"`
	ChangedBy *uuid.UUID `gorm:"type:uuid;column:changed_by" json:"changed_by,omitempty"`
	ChangedAt time.Time  `gorm:"column:changed_at;not null;index" json:"changed_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (SurvivalChange) TableName() string { return "survival_change_log" }
