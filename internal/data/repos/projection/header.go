package projection

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/dberr"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type HeaderRepo interface {
	Create(dbc dbctx.Context, row *types.ProjectionHeader) (*types.ProjectionHeader, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProjectionHeader, error)
	FindDraftByCycle(dbc dbctx.Context, cycleID uuid.UUID) (*types.ProjectionHeader, error)
	FindCurrentByCycle(dbc dbctx.Context, cycleID uuid.UUID) (*types.ProjectionHeader, error)
	CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error)
	ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.ProjectionHeader, error)
	Update(dbc dbctx.Context, row *types.ProjectionHeader) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ClearCurrentExcept(dbc dbctx.Context, cycleID, keepID uuid.UUID) error
	SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type headerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHeaderRepo(db *gorm.DB, baseLog *logger.Logger) HeaderRepo {
	return &headerRepo{db: db, log: baseLog.With("repo", "ProjectionHeaderRepo")}
}

func (r *headerRepo) Create(dbc dbctx.Context, row *types.ProjectionHeader) (*types.ProjectionHeader, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, dberr.Map(err)
	}
	return row, nil
}

func (r *headerRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProjectionHeader, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.ProjectionHeader
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *headerRepo) FindDraftByCycle(dbc dbctx.Context, cycleID uuid.UUID) (*types.ProjectionHeader, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ProjectionHeader
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND status = ?", cycleID, types.ProjectionDraft).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *headerRepo) FindCurrentByCycle(dbc dbctx.Context, cycleID uuid.UUID) (*types.ProjectionHeader, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ProjectionHeader
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND is_current = ? AND status = ?", cycleID, true, types.ProjectionPublished).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// CountByCycle counts every header the cycle ever had, soft-deleted
// included, so version labels never collide after a cancellation.
func (r *headerRepo) CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).Unscoped().
		Model(&types.ProjectionHeader{}).
		Where("cycle_id = ?", cycleID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *headerRepo) ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.ProjectionHeader, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ProjectionHeader
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ?", cycleID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *headerRepo) Update(dbc dbctx.Context, row *types.ProjectionHeader) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return dberr.Map(t.WithContext(dbc.Ctx).Save(row).Error)
}

func (r *headerRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return dberr.Map(t.WithContext(dbc.Ctx).
		Model(&types.ProjectionHeader{}).
		Where("id = ?", id).
		Updates(updates).Error)
}

// ClearCurrentExcept drops is_current on every other header of the
// cycle. Publish calls it inside the same transaction that sets the new
// current so the one-current invariant holds at commit.
func (r *headerRepo) ClearCurrentExcept(dbc dbctx.Context, cycleID, keepID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.ProjectionHeader{}).
		Where("cycle_id = ? AND id <> ? AND is_current = ?", cycleID, keepID, true).
		Update("is_current", false).Error
}

func (r *headerRepo) SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.ProjectionHeader{}).Error
}
