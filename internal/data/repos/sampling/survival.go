package sampling

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

// SurvivalChangeRepo is append-only: no update or delete methods exist
// on purpose.
type SurvivalChangeRepo interface {
	Append(dbc dbctx.Context, row *types.SurvivalChange) (*types.SurvivalChange, error)
	LatestByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) (*types.SurvivalChange, error)
	ListByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) ([]*types.SurvivalChange, error)
	LatestPerPond(dbc dbctx.Context, cycleID uuid.UUID) (map[uuid.UUID]*types.SurvivalChange, error)
}

type survivalChangeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSurvivalChangeRepo(db *gorm.DB, baseLog *logger.Logger) SurvivalChangeRepo {
	return &survivalChangeRepo{db: db, log: baseLog.With("repo", "SurvivalChangeRepo")}
}

func (r *survivalChangeRepo) Append(dbc dbctx.Context, row *types.SurvivalChange) (*types.SurvivalChange, error) {
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

// LatestByCyclePond breaks changed_at ties by insertion order, matching
// how the ledger resolves same-instant writes.
func (r *survivalChangeRepo) LatestByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) (*types.SurvivalChange, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SurvivalChange
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND pond_id = ?", cycleID, pondID).
		Order("changed_at DESC, created_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *survivalChangeRepo) ListByCyclePond(dbc dbctx.Context, cycleID, pondID uuid.UUID) ([]*types.SurvivalChange, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SurvivalChange
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ? AND pond_id = ?", cycleID, pondID).
		Order("changed_at DESC, created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *survivalChangeRepo) LatestPerPond(dbc dbctx.Context, cycleID uuid.UUID) (map[uuid.UUID]*types.SurvivalChange, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.SurvivalChange
	if err := t.WithContext(dbc.Ctx).
		Where("cycle_id = ?", cycleID).
		Order("changed_at ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*types.SurvivalChange, len(rows))
	for _, row := range rows {
		out[row.PondID] = row
	}
	return out, nil
}
