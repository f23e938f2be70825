package harvest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/domain/cycle"
	"github.com/aquaforge/pondops-backend/internal/domain/tenancy"
)

const (
	KindPartial = "partial"
	KindFinal   = "final"

	StatusPlanned    = "planned"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

// Wave is a planned harvest window for a cycle, detailed per pond by its
// lines.
type Wave struct {
	ID      uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CycleID uuid.UUID    `gorm:"type:uuid;not null;index" json:"cycle_id"`
	Cycle   *cycle.Cycle `gorm:"constraint:OnDelete:CASCADE;foreignKey:CycleID;references:ID" json:"cycle,omitempty"`

	Name        string    `gorm:"column:name;not null" json:"name"`
	Kind        string    `gorm:"column:kind;size:10;not null;default:'partial'" json:"kind"`
	WindowStart time.Time `gorm:"column:window_start;type:date;not null;index" json:"window_start"`
	WindowEnd   time.Time `gorm:"column:window_end;type:date;not null" json:"window_end"`
	Status      string    `gorm:"column:status;size:15;not null;default:'planned';index" json:"status"`

	TargetWithdrawalOrgM2 *float64 `gorm:"column:target_withdrawal_org_m2" json:"target_withdrawal_org_m2,omitempty"`
	Note                  string   `gorm:"column:note;size:255" json:"note,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Wave) TableName() string { return "harvest_wave" }

// WaveLine is the per-pond detail of a wave. A confirmed line is
// terminal: its date and withdrawal never change again.
type WaveLine struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WaveID uuid.UUID `gorm:"type:uuid;not null;index:idx_harvest_line_wave_pond,unique,priority:1" json:"wave_id"`
	Wave   *Wave     `gorm:"constraint:OnDelete:CASCADE;foreignKey:WaveID;references:ID" json:"wave,omitempty"`

	PondID uuid.UUID     `gorm:"type:uuid;not null;index:idx_harvest_line_wave_pond,unique,priority:2;index" json:"pond_id"`
	Pond   *tenancy.Pond `gorm:"constraint:OnDelete:CASCADE;foreignKey:PondID;references:ID" json:"pond,omitempty"`

	PlannedDate              *time.Time `gorm:"column:planned_date;type:date" json:"planned_date,omitempty"`
	ConfirmedDate            *time.Time `gorm:"column:confirmed_date;type:date" json:"confirmed_date,omitempty"`
	PlannedWithdrawalOrgM2   *float64   `gorm:"column:planned_withdrawal_org_m2" json:"planned_withdrawal_org_m2,omitempty"`
	ConfirmedWithdrawalOrgM2 *float64   `gorm:"column:confirmed_withdrawal_org_m2" json:"confirmed_withdrawal_org_m2,omitempty"`
	HarvestedBiomassKg       *float64   `gorm:"column:harvested_biomass_kg" json:"harvested_biomass_kg,omitempty"`
	AvgWeightG               *float64   `gorm:"column:avg_weight_g" json:"avg_weight_g,omitempty"`

	Confirmed   bool       `gorm:"column:confirmed;not null;default:false;index" json:"confirmed"`
	ConfirmedBy *uuid.UUID `gorm:"type:uuid;column:confirmed_by" json:"confirmed_by,omitempty"`
	Note        string     `gorm:"column:note;size:255" json:"note,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (WaveLine) TableName() string { return "harvest_wave_line" }
