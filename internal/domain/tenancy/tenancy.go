package tenancy

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Farm struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Location string    `gorm:"column:location" json:"location,omitempty"`
	Timezone string    `gorm:"column:timezone;not null;default:'America/Guayaquil'" json:"timezone"`
	Hectares *float64  `gorm:"column:hectares" json:"hectares,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Farm) TableName() string { return "farm" }

// Pond is a physical rearing unit. DensityOverrideOrgM2, when set above
// zero, takes precedence over the seeding plan density for live-density
// derivation.
type Pond struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID uuid.UUID `gorm:"type:uuid;not null;index:idx_pond_farm_name,unique,priority:1" json:"farm_id"`
	Farm   *Farm     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FarmID;references:ID" json:"farm,omitempty"`

	Name                 string   `gorm:"column:name;not null;index:idx_pond_farm_name,unique,priority:2" json:"name"`
	SurfaceM2            float64  `gorm:"column:surface_m2;not null" json:"surface_m2"`
	DensityOverrideOrgM2 *float64 `gorm:"column:density_override_org_m2" json:"density_override_org_m2,omitempty"`
	Active               bool     `gorm:"column:active;not null;default:true" json:"active"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Pond) TableName() string { return "pond" }
