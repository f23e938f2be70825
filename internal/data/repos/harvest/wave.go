package harvest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type WaveRepo interface {
	Create(dbc dbctx.Context, row *types.HarvestWave) (*types.HarvestWave, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.HarvestWave, error)
	ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.HarvestWave, error)
	ListUpcoming(dbc dbctx.Context, cycleID uuid.UUID, from, to time.Time) ([]*types.HarvestWave, error)
	CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error)
	Update(dbc dbctx.Context, row *types.HarvestWave) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type waveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWaveRepo(db *gorm.DB, baseLog *logger.Logger) WaveRepo {
	return &waveRepo{db: db, log: baseLog.With("repo", "HarvestWaveRepo")}
}

func (r *waveRepo) Create(dbc dbctx.Context, row *types.HarvestWave) (*types.HarvestWave, error) {
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

func (r *waveRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.HarvestWave, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.HarvestWave
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *waveRepo) ListByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.HarvestWave, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.HarvestWave
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ?", cycleID).
		Order("window_start ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListUpcoming returns non-cancelled waves whose window overlaps
// [from, to].
func (r *waveRepo) ListUpcoming(dbc dbctx.Context, cycleID uuid.UUID, from, to time.Time) ([]*types.HarvestWave, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.HarvestWave
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND status <> ?", cycleID, types.WaveCancelled).
		Where("window_start <= ? AND window_end >= ?", to, from).
		Order("window_start ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *waveRepo) CountByCycle(dbc dbctx.Context, cycleID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.HarvestWave{}).
		Where("cycle_id = ?", cycleID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *waveRepo) Update(dbc dbctx.Context, row *types.HarvestWave) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}

func (r *waveRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Model(&types.HarvestWave{}).Where("id = ?", id).Updates(updates).Error
}
