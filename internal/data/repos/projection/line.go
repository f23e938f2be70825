package projection

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type LineRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.ProjectionLine) ([]*types.ProjectionLine, error)
	ListByHeader(dbc dbctx.Context, headerID uuid.UUID) ([]*types.ProjectionLine, error)
	SaveAll(dbc dbctx.Context, rows []*types.ProjectionLine) error
	FindNearestBefore(dbc dbctx.Context, headerID uuid.UUID, date time.Time) (*types.ProjectionLine, error)
	FindNearestAfter(dbc dbctx.Context, headerID uuid.UUID, date time.Time) (*types.ProjectionLine, error)
	DeleteByHeader(dbc dbctx.Context, headerID uuid.UUID) error
}

type lineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLineRepo(db *gorm.DB, baseLog *logger.Logger) LineRepo {
	return &lineRepo{db: db, log: baseLog.With("repo", "ProjectionLineRepo")}
}

func (r *lineRepo) CreateBatch(dbc dbctx.Context, rows []*types.ProjectionLine) ([]*types.ProjectionLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.ProjectionLine{}, nil
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

func (r *lineRepo) ListByHeader(dbc dbctx.Context, headerID uuid.UUID) ([]*types.ProjectionLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ProjectionLine
	if err := t.WithContext(dbc.Ctx).
		Where("header_id = ?", headerID).
		Order("week_idx ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lineRepo) SaveAll(dbc dbctx.Context, rows []*types.ProjectionLine) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Save(&rows).Error
}

func (r *lineRepo) FindNearestBefore(dbc dbctx.Context, headerID uuid.UUID, date time.Time) (*types.ProjectionLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ProjectionLine
	if err := t.WithContext(dbc.Ctx).
		Where("header_id = ? AND plan_date <= ?", headerID, date).
		Order("plan_date DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *lineRepo) FindNearestAfter(dbc dbctx.Context, headerID uuid.UUID, date time.Time) (*types.ProjectionLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ProjectionLine
	if err := t.WithContext(dbc.Ctx).
		Where("header_id = ? AND plan_date > ?", headerID, date).
		Order("plan_date ASC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *lineRepo) DeleteByHeader(dbc dbctx.Context, headerID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Where("header_id = ?", headerID).
		Delete(&types.ProjectionLine{}).Error
}
