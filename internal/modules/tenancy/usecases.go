package tenancy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Farms  repos.FarmRepo
	Ponds  repos.PondRepo
	Cycles repos.CycleRepo

	// Referenced only by the in-use guards: a pond or cycle with
	// operational rows behind it cannot be removed.
	Seeding   repos.SeedingPlanRepo
	Biometry  repos.BiometryRepo
	Waves     repos.HarvestWaveRepo
	WaveLines repos.HarvestWaveLineRepo
	Headers   repos.ProjectionHeaderRepo
	Uploads   repos.ProjectionUploadRepo
}

// Usecases carries the registry workflows: farms, their ponds, and the
// farming cycles that scope everything else.
type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

func (u Usecases) farm(dbc dbctx.Context, id uuid.UUID) (*types.Farm, error) {
	farm, err := u.deps.Farms.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if farm == nil {
		return nil, apierr.NotFound("farm_not_found", nil)
	}
	return farm, nil
}

func (u Usecases) pond(dbc dbctx.Context, id uuid.UUID) (*types.Pond, error) {
	pond, err := u.deps.Ponds.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if pond == nil {
		return nil, apierr.NotFound("pond_not_found", nil)
	}
	return pond, nil
}

func (u Usecases) cycle(dbc dbctx.Context, id uuid.UUID) (*types.Cycle, error) {
	cyc, err := u.deps.Cycles.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}
	return cyc, nil
}

// pondInUse reports whether any operational row references the pond.
// Used ponds keep their history; they can be deactivated but never
// resized or removed.
func (u Usecases) pondInUse(dbc dbctx.Context, pondID uuid.UUID) (bool, error) {
	counts := []func() (int64, error){
		func() (int64, error) { return u.deps.Seeding.CountByPond(dbc, pondID) },
		func() (int64, error) { return u.deps.Biometry.CountByPond(dbc, pondID) },
		func() (int64, error) { return u.deps.WaveLines.CountByPond(dbc, pondID) },
	}
	return anyRows(counts)
}

// cycleInUse reports whether the cycle accumulated any dependent rows.
func (u Usecases) cycleInUse(dbc dbctx.Context, cycleID uuid.UUID) (bool, error) {
	counts := []func() (int64, error){
		func() (int64, error) { return u.deps.Seeding.CountByCycle(dbc, cycleID) },
		func() (int64, error) { return u.deps.Biometry.CountByCycle(dbc, cycleID) },
		func() (int64, error) { return u.deps.Waves.CountByCycle(dbc, cycleID) },
		func() (int64, error) { return u.deps.Headers.CountByCycle(dbc, cycleID) },
		func() (int64, error) { return u.deps.Uploads.CountByCycle(dbc, cycleID) },
	}
	return anyRows(counts)
}

func anyRows(counts []func() (int64, error)) (bool, error) {
	for _, count := range counts {
		n, err := count()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func validTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return apierr.Validation("invalid_timezone", fmt.Errorf("unknown timezone %q", tz))
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
