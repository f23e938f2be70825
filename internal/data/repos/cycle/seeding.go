package cycle

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type SeedingPlanRepo interface {
	Create(dbc dbctx.Context, rows []*types.SeedingPlan) ([]*types.SeedingPlan, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SeedingPlan, error)
	GetByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) (*types.SeedingPlan, error)
	ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.SeedingPlan, error)
	ListConfirmedByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.SeedingPlan, error)
	CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error)
	CountByPond(dbc dbctx.Context, pondID uuid.UUID) (int64, error)
	Update(dbc dbctx.Context, row *types.SeedingPlan) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type seedingPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSeedingPlanRepo(db *gorm.DB, baseLog *logger.Logger) SeedingPlanRepo {
	return &seedingPlanRepo{db: db, log: baseLog.With("repo", "SeedingPlanRepo")}
}

func (r *seedingPlanRepo) Create(dbc dbctx.Context, rows []*types.SeedingPlan) ([]*types.SeedingPlan, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.SeedingPlan{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *seedingPlanRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SeedingPlan, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.SeedingPlan
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *seedingPlanRepo) GetByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) (*types.SeedingPlan, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SeedingPlan
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND pond_id = ?", cycleID, pondID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *seedingPlanRepo) ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.SeedingPlan, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SeedingPlan
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ?", cycleID).
		Order("planned_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *seedingPlanRepo) ListConfirmedByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.SeedingPlan, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SeedingPlan
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND status = ?", cycleID, types.SeedingConfirmed).
		Order("planned_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *seedingPlanRepo) CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.SeedingPlan{}).
		Where("cycle_id = ?", cycleID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *seedingPlanRepo) CountByPond(dbc dbctx.Context, pondID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.SeedingPlan{}).
		Where("pond_id = ?", pondID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *seedingPlanRepo) Update(dbc dbctx.Context, row *types.SeedingPlan) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}

func (r *seedingPlanRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Model(&types.SeedingPlan{}).Where("id = ?", id).Updates(updates).Error
}
