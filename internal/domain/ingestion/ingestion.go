package ingestion

import (
	"time"

	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/domain/cycle"
)

const (
	UploadPending    = "pending"
	UploadProcessing = "processing"
	UploadDone       = "done"
	UploadFailed     = "failed"
)

// ProjectionUpload tracks one uploaded projection document from object
// storage through extraction to the header it produced.
type ProjectionUpload struct {
	ID      uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CycleID uuid.UUID    `gorm:"type:uuid;not null;index" json:"cycle_id"`
	Cycle   *cycle.Cycle `gorm:"constraint:OnDelete:CASCADE;foreignKey:CycleID;references:ID" json:"cycle,omitempty"`

	ObjectKey    string `gorm:"column:object_key;not null" json:"object_key"`
	OriginalName string `gorm:"column:original_name" json:"original_name,omitempty"`
	ContentType  string `gorm:"column:content_type;size:100" json:"content_type,omitempty"`
	Version      string `gorm:"column:version;size:20" json:"version,omitempty"`

	Status     string     `gorm:"column:status;size:15;not null;default:'pending';index" json:"status"`
	Error      string     `gorm:"column:error;type:text" json:"error,omitempty"`
	HeaderID   *uuid.UUID `gorm:"type:uuid;column:header_id" json:"header_id,omitempty"`
	WorkflowID string     `gorm:"column:workflow_id" json:"workflow_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ProjectionUpload) TableName() string { return "projection_upload" }
