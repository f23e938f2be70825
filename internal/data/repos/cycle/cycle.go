package cycle

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type CycleRepo interface {
	Create(dbc dbctx.Context, row *types.Cycle) (*types.Cycle, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Cycle, error)
	FindOpenByFarm(dbc dbctx.Context, farmID uuid.UUID) (*types.Cycle, error)
	ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Cycle, error)
	ListOpen(dbc dbctx.Context) ([]*types.Cycle, error)
	Update(dbc dbctx.Context, row *types.Cycle) error
	Close(dbc dbctx.Context, id uuid.UUID, closeDate time.Time) error
	SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type cycleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCycleRepo(db *gorm.DB, baseLog *logger.Logger) CycleRepo {
	return &cycleRepo{db: db, log: baseLog.With("repo", "CycleRepo")}
}

func (r *cycleRepo) Create(dbc dbctx.Context, row *types.Cycle) (*types.Cycle, error) {
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

func (r *cycleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Cycle, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Cycle
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// FindOpenByFarm returns the farm's open cycle, newest start first when
// the single-open invariant was ever violated, nil when none.
func (r *cycleRepo) FindOpenByFarm(dbc dbctx.Context, farmID uuid.UUID) (*types.Cycle, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Cycle
	if err := t.WithContext(dbc.Ctx).
		Where("farm_id = ? AND status = ?", farmID, types.CycleOpen).
		Order("start_date DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *cycleRepo) ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Cycle, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Cycle
	if err := t.WithContext(dbc.Ctx).
		Where("farm_id = ?", farmID).
		Order("start_date DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cycleRepo) ListOpen(dbc dbctx.Context) ([]*types.Cycle, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Cycle
	if err := t.WithContext(dbc.Ctx).
		Where("status = ?", types.CycleOpen).
		Order("start_date DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cycleRepo) Update(dbc dbctx.Context, row *types.Cycle) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}

func (r *cycleRepo) Close(dbc dbctx.Context, id uuid.UUID, closeDate time.Time) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Model(&types.Cycle{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": types.CycleClosed, "close_date": closeDate}).Error
}

func (r *cycleRepo) SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Cycle{}).Error
}
