package harvest

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type WaveLineRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.HarvestWaveLine) ([]*types.HarvestWaveLine, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.HarvestWaveLine, error)
	ListByWave(dbc dbctx.Context, waveID uuid.UUID) ([]*types.HarvestWaveLine, error)
	ListPendingByWave(dbc dbctx.Context, waveID uuid.UUID) ([]*types.HarvestWaveLine, error)
	ListConfirmedByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.HarvestWaveLine, error)
	ListConfirmedByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) ([]*types.HarvestWaveLine, error)
	CountByPond(dbc dbctx.Context, pondID uuid.UUID) (int64, error)
	Update(dbc dbctx.Context, row *types.HarvestWaveLine) error
}

type waveLineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWaveLineRepo(db *gorm.DB, baseLog *logger.Logger) WaveLineRepo {
	return &waveLineRepo{db: db, log: baseLog.With("repo", "HarvestWaveLineRepo")}
}

func (r *waveLineRepo) CreateBatch(dbc dbctx.Context, rows []*types.HarvestWaveLine) ([]*types.HarvestWaveLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.HarvestWaveLine{}, nil
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

func (r *waveLineRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.HarvestWaveLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.HarvestWaveLine
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *waveLineRepo) ListByWave(dbc dbctx.Context, waveID uuid.UUID) ([]*types.HarvestWaveLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.HarvestWaveLine
	if err := t.WithContext(dbc.Ctx).
		Where("wave_id = ?", waveID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *waveLineRepo) ListPendingByWave(dbc dbctx.Context, waveID uuid.UUID) ([]*types.HarvestWaveLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.HarvestWaveLine
	if err := t.WithContext(dbc.Ctx).
		Where("wave_id = ? AND confirmed = ?", waveID, false).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *waveLineRepo) ListConfirmedByCycle(dbc dbctx.Context, cycleID uuid.UUID) ([]*types.HarvestWaveLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.HarvestWaveLine
	if err := t.WithContext(dbc.Ctx).
		Joins("JOIN harvest_wave ON harvest_wave.id = harvest_wave_line.wave_id").
		Where("harvest_wave.cycle_id = ? AND harvest_wave.deleted_at IS NULL", cycleID).
		Where("harvest_wave_line.confirmed = ?", true).
		Order("harvest_wave_line.confirmed_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *waveLineRepo) ListConfirmedByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) ([]*types.HarvestWaveLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.HarvestWaveLine
	if err := t.WithContext(dbc.Ctx).
		Joins("JOIN harvest_wave ON harvest_wave.id = harvest_wave_line.wave_id").
		Where("harvest_wave.cycle_id = ? AND harvest_wave.deleted_at IS NULL", cycleID).
		Where("harvest_wave_line.pond_id = ? AND harvest_wave_line.confirmed = ?", pondID, true).
		Order("harvest_wave_line.confirmed_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *waveLineRepo) CountByPond(dbc dbctx.Context, pondID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.HarvestWaveLine{}).
		Where("pond_id = ?", pondID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *waveLineRepo) Update(dbc dbctx.Context, row *types.HarvestWaveLine) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Save(row).Error
}
