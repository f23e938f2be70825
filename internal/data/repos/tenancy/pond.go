package tenancy

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type PondRepo interface {
	Create(dbc dbctx.Context, rows []*types.Pond) ([]*types.Pond, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Pond, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Pond, error)
	FindByFarmName(dbc dbctx.Context, farmID uuid.UUID, name string) (*types.Pond, error)
	ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Pond, error)
	ListActiveByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Pond, error)
	Update(dbc dbctx.Context, row *types.Pond) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type pondRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPondRepo(db *gorm.DB, baseLog *logger.Logger) PondRepo {
	return &pondRepo{db: db, log: baseLog.With("repo", "PondRepo")}
}

func (r *pondRepo) Create(dbc dbctx.Context, rows []*types.Pond) ([]*types.Pond, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Pond{}, nil
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

func (r *pondRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Pond, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *pondRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Pond, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Pond
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindByFarmName matches case-insensitively; pond names are unique per
// farm regardless of casing.
func (r *pondRepo) FindByFarmName(dbc dbctx.Context, farmID uuid.UUID, name string) (*types.Pond, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Pond
	if err := t.WithContext(dbc.Ctx).
		Where("farm_id = ? AND LOWER(name) = LOWER(?)", farmID, name).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *pondRepo) ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Pond, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Pond
	if err := t.WithContext(dbc.Ctx).
		Where("farm_id = ?", farmID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pondRepo) ListActiveByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Pond, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Pond
	if err := t.WithContext(dbc.Ctx).
		Where("farm_id = ? AND active = ?", farmID, true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pondRepo) Update(dbc dbctx.Context, row *types.Pond) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}

func (r *pondRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Model(&types.Pond{}).Where("id = ?", id).Updates(updates).Error
}

func (r *pondRepo) SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Pond{}).Error
}
