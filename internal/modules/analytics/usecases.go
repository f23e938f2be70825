package analytics

import (
	"time"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

// Everything in this module is read-only: it resolves snapshots through
// the ledger, walks the best plan's lines and folds in confirmed
// operations. Nothing here opens a transaction.
type UsecasesDeps struct {
	Log *logger.Logger

	Cycles    repos.CycleRepo
	Ponds     repos.PondRepo
	Seeding   repos.SeedingPlanRepo
	Biometry  repos.BiometryRepo
	Waves     repos.HarvestWaveRepo
	WaveLines repos.HarvestWaveLineRepo

	Ledger ledger.Usecases
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	u.deps.Ledger = u.deps.Ledger.WithLog(log)
	return u
}

// Calendar math below is date-granular on purpose: samples and harvests
// carry dates, and a time-of-day must never move an event across a
// week boundary.

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from from to to; negative when to
// is earlier.
func daysBetween(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)) / (24 * time.Hour))
}

func absDays(a, b time.Time) int {
	d := daysBetween(a, b)
	if d < 0 {
		return -d
	}
	return d
}

func weekOf(start, at time.Time) int {
	wk := daysBetween(start, at) / 7
	if wk < 0 {
		return 0
	}
	return wk
}
