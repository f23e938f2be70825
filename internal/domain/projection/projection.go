package projection

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/domain/cycle"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusInReview  = "in_review"
	StatusCancelled = "cancelled"

	SourceFromPlans  = "from_plans"
	SourceFromFile   = "from_file"
	SourceReforecast = "reforecast"
)

// Header is a versioned weekly growth plan for a cycle. The partial
// unique indexes back the two header invariants: at most one draft and
// at most one current published header per cycle.
type Header struct {
	ID      uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CycleID uuid.UUID    `gorm:"type:uuid;not null;index;index:uq_projection_draft,unique,where:status = 'draft' AND deleted_at IS NULL;index:uq_projection_current,unique,where:is_current AND status = 'published' AND deleted_at IS NULL" json:"cycle_id"`
	Cycle   *cycle.Cycle `gorm:"constraint:OnDelete:CASCADE;foreignKey:CycleID;references:ID" json:"cycle,omitempty"`

	Version   string `gorm:"column:version;size:20;not null" json:"version"`
	Status    string `gorm:"column:status;size:20;not null;default:'draft';index" json:"status"`
	IsCurrent bool   `gorm:"column:is_current;not null;default:false;index" json:"is_current"`
	Source    string `gorm:"column:source;size:20;not null;default:'from_plans'" json:"source"`

	ParentVersionID        *uuid.UUID     `gorm:"type:uuid;column:parent_version_id;index" json:"parent_version_id,omitempty"`
	FinalSurvivalTargetPct *float64       `gorm:"column:final_survival_target_pct" json:"final_survival_target_pct,omitempty"`
	Warnings               datatypes.JSON `gorm:"column:warnings;type:jsonb" json:"warnings,omitempty"`

	PublishedAt *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Header) TableName() string { return "projection_header" }

// Line is one week's row within a header. Anchor flags mark values that
// came from a real observation; interpolation never overwrites them.
type Line struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	HeaderID uuid.UUID `gorm:"type:uuid;not null;index:idx_projection_line_week,unique,priority:1;index:idx_projection_line_date,priority:1" json:"header_id"`
	Header   *Header   `gorm:"constraint:OnDelete:CASCADE;foreignKey:HeaderID;references:ID" json:"header,omitempty"`

	WeekIdx  int       `gorm:"column:week_idx;not null;index:idx_projection_line_week,unique,priority:2" json:"week_idx"`
	PlanDate time.Time `gorm:"column:plan_date;type:date;not null;index:idx_projection_line_date,priority:2" json:"plan_date"`
	AgeDays  int       `gorm:"column:age_days;not null" json:"age_days"`

	WeightG      float64 `gorm:"column:weight_g;not null" json:"weight_g"`
	IncrementGWk float64 `gorm:"column:increment_g_wk;not null" json:"increment_g_wk"`
	SurvivalPct  float64 `gorm:"column:survival_pct;not null" json:"survival_pct"`

	HarvestFlag     bool     `gorm:"column:harvest_flag;not null;default:false" json:"harvest_flag"`
	WithdrawalOrgM2 *float64 `gorm:"column:withdrawal_org_m2" json:"withdrawal_org_m2,omitempty"`

	IsWeightAnchor   bool   `gorm:"column:is_weight_anchor;not null;default:false" json:"is_weight_anchor"`
	IsSurvivalAnchor bool   `gorm:"column:is_survival_anchor;not null;default:false" json:"is_survival_anchor"`
	AnchorReason     string `gorm:"column:anchor_reason;size:255" json:"anchor_reason,omitempty"`
	Note             string `gorm:"column:note;size:255" json:"note,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Line) TableName() string { return "projection_line" }
