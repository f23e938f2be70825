package tenancy

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type FarmRepo interface {
	Create(dbc dbctx.Context, row *types.Farm) (*types.Farm, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Farm, error)
	FindByName(dbc dbctx.Context, name string) (*types.Farm, error)
	List(dbc dbctx.Context) ([]*types.Farm, error)
	Update(dbc dbctx.Context, row *types.Farm) error
	SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type farmRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFarmRepo(db *gorm.DB, baseLog *logger.Logger) FarmRepo {
	return &farmRepo{db: db, log: baseLog.With("repo", "FarmRepo")}
}

func (r *farmRepo) Create(dbc dbctx.Context, row *types.Farm) (*types.Farm, error) {
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

func (r *farmRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Farm, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Farm
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// FindByName matches case-insensitively; farm names are unique
// regardless of casing.
func (r *farmRepo) FindByName(dbc dbctx.Context, name string) (*types.Farm, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Farm
	if err := t.WithContext(dbc.Ctx).
		Where("LOWER(name) = LOWER(?)", name).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *farmRepo) List(dbc dbctx.Context) ([]*types.Farm, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Farm
	if err := t.WithContext(dbc.Ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *farmRepo) Update(dbc dbctx.Context, row *types.Farm) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}

func (r *farmRepo) SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Farm{}).Error
}
