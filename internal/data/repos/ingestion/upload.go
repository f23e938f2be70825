package ingestion

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type UploadRepo interface {
	Create(dbc dbctx.Context, row *types.ProjectionUpload) (*types.ProjectionUpload, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProjectionUpload, error)
	ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.ProjectionUpload, error)
	CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type uploadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUploadRepo(db *gorm.DB, baseLog *logger.Logger) UploadRepo {
	return &uploadRepo{db: db, log: baseLog.With("repo", "ProjectionUploadRepo")}
}

func (r *uploadRepo) Create(dbc dbctx.Context, row *types.ProjectionUpload) (*types.ProjectionUpload, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *uploadRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProjectionUpload, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.ProjectionUpload
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *uploadRepo) ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.ProjectionUpload, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ProjectionUpload
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ?", cycleID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *uploadRepo) CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.ProjectionUpload{}).
		Where("cycle_id = ?", cycleID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *uploadRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Model(&types.ProjectionUpload{}).Where("id = ?", id).Updates(updates).Error
}
