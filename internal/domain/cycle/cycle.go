package cycle

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/domain/tenancy"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Cycle is one farming round for a farm, bounded by start/close dates.
type Cycle struct {
	ID     uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID uuid.UUID     `gorm:"type:uuid;not null;index" json:"farm_id"`
	Farm   *tenancy.Farm `gorm:"constraint:OnDelete:CASCADE;foreignKey:FarmID;references:ID" json:"farm,omitempty"`

	Name      string     `gorm:"column:name;not null" json:"name"`
	StartDate time.Time  `gorm:"column:start_date;type:date;not null;index" json:"start_date"`
	CloseDate *time.Time `gorm:"column:close_date;type:date" json:"close_date,omitempty"`
	Status    string     `gorm:"column:status;size:10;not null;default:'open';index" json:"status"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Cycle) TableName() string { return "cycle" }

const (
	SeedingPlanned   = "planned"
	SeedingConfirmed = "confirmed"
)

// SeedingPlan is the stocking event for one pond within a cycle. Once
// confirmed it freezes except for audited overrides.
type SeedingPlan struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CycleID uuid.UUID `gorm:"type:uuid;not null;index:idx_seeding_cycle_pond,unique,priority:1" json:"cycle_id"`
	Cycle   *Cycle    `gorm:"constraint:OnDelete:CASCADE;foreignKey:CycleID;references:ID" json:"cycle,omitempty"`

	PondID uuid.UUID     `gorm:"type:uuid;not null;index:idx_seeding_cycle_pond,unique,priority:2" json:"pond_id"`
	Pond   *tenancy.Pond `gorm:"constraint:OnDelete:CASCADE;foreignKey:PondID;references:ID" json:"pond,omitempty"`

	PlannedDate    time.Time  `gorm:"column:planned_date;type:date;not null" json:"planned_date"`
	DensityOrgM2   float64    `gorm:"column:density_org_m2;not null" json:"density_org_m2"`
	InitialWeightG *float64   `gorm:"column:initial_weight_g" json:"initial_weight_g,omitempty"`
	Status         string     `gorm:"column:status;size:10;not null;default:'planned';index" json:"status"`
	ConfirmedAt    *time.Time `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	Origin         string     `gorm:"column:origin;size:20;not null;default:'manual'" json:"origin"`
	Note           string     `gorm:"column:note;size:255" json:"note,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SeedingPlan) TableName() string { return "seeding_plan" }
