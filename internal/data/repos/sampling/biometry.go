package sampling

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type BiometryRepo interface {
	Create(dbc dbctx.Context, row *types.BiometrySample) (*types.BiometrySample, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BiometrySample, error)
	LatestByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) (*types.BiometrySample, error)
	LatestInRange(dbc dbctx.Context, cycleID, pondID uuid.UUID, from, to time.Time) (*types.BiometrySample, error)
	ListByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) ([]*types.BiometrySample, error)
	ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.BiometrySample, error)
	CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error)
	CountByPond(dbc dbctx.Context, pondID uuid.UUID) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type biometryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBiometryRepo(db *gorm.DB, baseLog *logger.Logger) BiometryRepo {
	return &biometryRepo{db: db, log: baseLog.With("repo", "BiometryRepo")}
}

func (r *biometryRepo) Create(dbc dbctx.Context, row *types.BiometrySample) (*types.BiometrySample, error) {
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

func (r *biometryRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BiometrySample, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.BiometrySample
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// LatestByCyclePond orders by sample date then insertion order so two
// samples on the same day resolve to the most recently recorded one.
func (r *biometryRepo) LatestByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) (*types.BiometrySample, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BiometrySample
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND pond_id = ?", cycleID, pondID).
		Order("sample_date DESC, created_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// LatestInRange returns the freshest sample whose date falls inside
// [from, to], both inclusive.
func (r *biometryRepo) LatestInRange(dbc dbctx.Context, cycleID, pondID uuid.UUID, from, to time.Time) (*types.BiometrySample, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BiometrySample
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND pond_id = ? AND sample_date >= ? AND sample_date <= ?", cycleID, pondID, from, to).
		Order("sample_date DESC, created_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *biometryRepo) ListByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) ([]*types.BiometrySample, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BiometrySample
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND pond_id = ?", cycleID, pondID).
		Order("sample_date DESC, created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *biometryRepo) ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.BiometrySample, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BiometrySample
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ?", cycleID).
		Order("sample_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *biometryRepo) CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.BiometrySample{}).
		Where("cycle_id = ?", cycleID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *biometryRepo) CountByPond(dbc dbctx.Context, pondID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.BiometrySample{}).
		Where("pond_id = ?", pondID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *biometryRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Model(&types.BiometrySample{}).Where("id = ?", id).Updates(updates).Error
}
