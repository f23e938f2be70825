package operations

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/projection"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
	"github.com/aquaforge/pondops-backend/internal/realtime"
	"github.com/aquaforge/pondops-backend/internal/realtime/bus"
)

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Cycles    repos.CycleRepo
	Ponds     repos.PondRepo
	Seeding   repos.SeedingPlanRepo
	Biometry  repos.BiometryRepo
	Survival  repos.SurvivalChangeRepo
	Waves     repos.HarvestWaveRepo
	WaveLines repos.HarvestWaveLineRepo

	// Optional. When set, confirmations feed the cycle's reforecast
	// draft after their own transaction committed; a failed reforecast
	// never unwinds the confirming write.
	Reforecaster *projection.Reforecaster

	// Optional: fan confirmations out over SSE.
	Bus bus.Bus
}

// Usecases carries the field workflows: stocking plans, biometry
// samples and harvest confirmations, including the write-through into
// the survival ledger.
type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

// activeCycle loads the cycle and rejects writes once it closed.
func (u Usecases) activeCycle(dbc dbctx.Context, cycleID uuid.UUID) (*types.Cycle, error) {
	cyc, err := u.deps.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}
	if cyc.Status != types.CycleOpen {
		return nil, apierr.Conflict("cycle_not_active", fmt.Errorf("cycle %s is %s", cyc.ID, cyc.Status))
	}
	return cyc, nil
}

// farmPond loads a pond and checks it belongs to the cycle's farm.
func (u Usecases) farmPond(dbc dbctx.Context, cyc *types.Cycle, pondID uuid.UUID) (*types.Pond, error) {
	pond, err := u.deps.Ponds.GetByID(dbc, pondID)
	if err != nil {
		return nil, err
	}
	if pond == nil || pond.FarmID != cyc.FarmID {
		return nil, apierr.NotFound("pond_not_found", nil)
	}
	return pond, nil
}

// currentSurvival is the pond's operational survival percentage, 100
// until something writes to the ledger.
func (u Usecases) currentSurvival(dbc dbctx.Context, cycleID, pondID uuid.UUID) (float64, error) {
	row, err := u.deps.Survival.LatestByCyclePond(dbc, cycleID, pondID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 100, nil
	}
	return row.NewPct, nil
}

func announce(ctx context.Context, deps UsecasesDeps, cycleID uuid.UUID, event realtime.SSEEvent, data any) {
	if deps.Bus == nil {
		return
	}
	msg := realtime.SSEMessage{Channel: realtime.CycleChannel(cycleID), Event: event, Data: data}
	if err := deps.Bus.Publish(ctx, msg); err != nil {
		deps.Log.Warn("sse publish failed", "event", event, "cycle_id", cycleID, "error", err)
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)) / (24 * time.Hour))
}

// dateInCycle rejects event dates before the cycle started or past its
// close. The close bound only exists once the cycle actually closed.
func dateInCycle(cyc *types.Cycle, at time.Time, code string) error {
	d := dateOnly(at)
	if d.Before(dateOnly(cyc.StartDate)) {
		return apierr.Validation(code, fmt.Errorf("%s precedes cycle start %s",
			d.Format("2006-01-02"), cyc.StartDate.Format("2006-01-02")))
	}
	if cyc.CloseDate != nil && d.After(dateOnly(*cyc.CloseDate)) {
		return apierr.Validation(code, fmt.Errorf("%s is past cycle close %s",
			d.Format("2006-01-02"), cyc.CloseDate.Format("2006-01-02")))
	}
	return nil
}

func appendNote(existing, note string) string {
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + " | " + note
}

func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}
