package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

// Schedule states for upcoming operations.
const (
	ScheduleOverdue  = "overdue"
	ScheduleUrgent   = "urgent"
	ScheduleUpcoming = "upcoming"
	SchedulePending  = "pending"
	ScheduleFuture   = "future"
)

const dashboardWaveHorizonDays = 90

func classifyWave(daysUntilStart, horizonDays int) string {
	switch {
	case daysUntilStart < 0:
		return ScheduleOverdue
	case daysUntilStart <= 7:
		return ScheduleUrgent
	case daysUntilStart <= horizonDays:
		return SchedulePending
	default:
		return ScheduleFuture
	}
}

func classifySeeding(daysUntil int) string {
	switch {
	case daysUntil < 0:
		return ScheduleOverdue
	case daysUntil <= 7:
		return ScheduleUpcoming
	default:
		return ScheduleFuture
	}
}

type UpcomingSeeding struct {
	PondID      uuid.UUID `json:"pond_id"`
	PondName    string    `json:"pond_name"`
	PlannedDate time.Time `json:"planned_date"`
	DaysUntil   int       `json:"days_until"`
	State       string    `json:"state"`
}

type CycleDashboard struct {
	CycleID   uuid.UUID `json:"cycle_id"`
	CycleName string    `json:"cycle_name"`
	StartDate time.Time `json:"start_date"`
	CycleDays int       `json:"cycle_days"`

	KPIs KPIs `json:"kpis"`

	GrowthCurve      []GrowthPoint  `json:"growth_curve"`
	BiomassEvolution []BiomassPoint `json:"biomass_evolution"`
	DensityEvolution []DensityPoint `json:"density_evolution"`

	Ponds []*ledger.PondSnapshot `json:"ponds"`

	UpcomingSeedings []UpcomingSeeding `json:"upcoming_seedings"`
	UpcomingWaves    []UpcomingWave    `json:"upcoming_waves"`
}

// CycleDashboard assembles the cycle overview: KPIs, the three chart
// series and the upcoming operations. Sections are fetched
// concurrently, then derived from one consistent set of inputs.
func (u Usecases) CycleDashboard(ctx context.Context, cycleID uuid.UUID, at time.Time) (*CycleDashboard, error) {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.deps.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}

	var (
		snapshots []*ledger.PondSnapshot
		lines     []*types.ProjectionLine
		samples   []*types.BiometrySample
		ponds     []*stockedPond
		events    []*confirmedEvent
		seedings  []UpcomingSeeding
		waves     []UpcomingWave
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshots, err = u.deps.Ledger.Snapshots(gctx, cycleID, at)
		return err
	})
	g.Go(func() error {
		var err error
		lines, err = u.deps.Ledger.BestLines(gctx, cycleID)
		return err
	})
	g.Go(func() error {
		var err error
		samples, err = u.deps.Biometry.ListByCycle(dbctx.Context{Ctx: gctx}, cycleID)
		return err
	})
	g.Go(func() error {
		gdbc := dbctx.Context{Ctx: gctx}
		var err error
		if ponds, err = u.stockedPonds(gdbc, cyc); err != nil {
			return err
		}
		confirmed, err := u.deps.WaveLines.ListConfirmedByCycle(gdbc, cycleID)
		if err != nil {
			return err
		}
		for _, row := range confirmed {
			if row.ConfirmedDate == nil || row.ConfirmedWithdrawalOrgM2 == nil {
				continue
			}
			events = append(events, &confirmedEvent{
				pondID: row.PondID,
				date:   *row.ConfirmedDate,
				orgM2:  *row.ConfirmedWithdrawalOrgM2,
			})
		}
		return nil
	})
	g.Go(func() error {
		var err error
		seedings, err = u.upcomingSeedings(dbctx.Context{Ctx: gctx}, cyc, at)
		return err
	})
	g.Go(func() error {
		var err error
		waves, err = u.plannedWaves(dbctx.Context{Ctx: gctx}, cycleID, at)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pts := walkSeries(lines, ponds, events)
	return &CycleDashboard{
		CycleID:          cyc.ID,
		CycleName:        cyc.Name,
		StartDate:        cyc.StartDate,
		CycleDays:        daysBetween(cyc.StartDate, at),
		KPIs:             Aggregate(snapshots),
		GrowthCurve:      mergeGrowth(cyc.StartDate, lines, samples),
		BiomassEvolution: biomassPoints(pts),
		DensityEvolution: densityPoints(pts),
		Ponds:            snapshots,
		UpcomingSeedings: seedings,
		UpcomingWaves:    waves,
	}, nil
}

func (u Usecases) upcomingSeedings(dbc dbctx.Context, cyc *types.Cycle, at time.Time) ([]UpcomingSeeding, error) {
	plans, err := u.deps.Seeding.ListByCycle(dbc, cyc.ID)
	if err != nil {
		return nil, err
	}
	names, err := u.pondNames(dbc, cyc.FarmID)
	if err != nil {
		return nil, err
	}

	out := make([]UpcomingSeeding, 0, len(plans))
	for _, plan := range plans {
		if plan.Status != types.SeedingPlanned {
			continue
		}
		days := daysBetween(at, plan.PlannedDate)
		out = append(out, UpcomingSeeding{
			PondID:      plan.PondID,
			PondName:    names[plan.PondID],
			PlannedDate: plan.PlannedDate,
			DaysUntil:   days,
			State:       classifySeeding(days),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedDate.Before(out[j].PlannedDate) })
	return out, nil
}

// plannedWaves is the dashboard's long-horizon wave listing; the
// report uses the stricter seven-day window instead.
func (u Usecases) plannedWaves(dbc dbctx.Context, cycleID uuid.UUID, at time.Time) ([]UpcomingWave, error) {
	rows, err := u.deps.Waves.ListByCycle(dbc, cycleID)
	if err != nil {
		return nil, err
	}

	out := make([]UpcomingWave, 0, len(rows))
	for _, w := range rows {
		if w.Status != types.WavePlanned {
			continue
		}
		pending, err := u.deps.WaveLines.ListPendingByWave(dbc, w.ID)
		if err != nil {
			return nil, err
		}
		days := daysBetween(at, w.WindowStart)
		out = append(out, UpcomingWave{
			WaveID:         w.ID,
			Name:           w.Name,
			Kind:           w.Kind,
			WindowStart:    w.WindowStart,
			WindowEnd:      w.WindowEnd,
			DaysUntilStart: days,
			State:          classifyWave(days, dashboardWaveHorizonDays),
			PendingLines:   len(pending),
		})
	}
	return out, nil
}

func (u Usecases) pondNames(dbc dbctx.Context, farmID uuid.UUID) (map[uuid.UUID]string, error) {
	ponds, err := u.deps.Ponds.ListByFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(ponds))
	for _, p := range ponds {
		names[p.ID] = p.Name
	}
	return names, nil
}

type PondDashboard struct {
	PondID    uuid.UUID `json:"pond_id"`
	PondName  string    `json:"pond_name"`
	Active    bool      `json:"active"`
	CycleDays int       `json:"cycle_days"`

	Snapshot *ledger.PondSnapshot `json:"snapshot"`

	BiomassPerM2Kg *float64 `json:"biomass_per_m2_kg,omitempty"`
	GrowthRateGWk  *float64 `json:"growth_rate_g_wk,omitempty"`

	GrowthCurve      []GrowthPoint  `json:"growth_curve"`
	DensityEvolution []DensityPoint `json:"density_evolution"`
}

// PondDashboard is the single-pond drilldown: the resolved snapshot
// plus this pond's own growth and stocking history.
func (u Usecases) PondDashboard(ctx context.Context, cycleID, pondID uuid.UUID, at time.Time) (*PondDashboard, error) {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.deps.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}
	pond, err := u.deps.Ponds.GetByID(dbc, pondID)
	if err != nil {
		return nil, err
	}
	if pond == nil {
		return nil, apierr.NotFound("pond_not_found", nil)
	}

	snap, err := u.deps.Ledger.Snapshot(ctx, cycleID, pondID, at)
	if err != nil {
		return nil, err
	}
	lines, err := u.deps.Ledger.BestLines(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	samples, err := u.deps.Biometry.ListByCyclePond(dbc, cycleID, pondID)
	if err != nil {
		return nil, err
	}
	confirmed, err := u.deps.WaveLines.ListConfirmedByCyclePond(dbc, cycleID, pondID)
	if err != nil {
		return nil, err
	}

	out := &PondDashboard{
		PondID:           pond.ID,
		PondName:         pond.Name,
		Active:           pond.Active,
		CycleDays:        daysBetween(cyc.StartDate, at),
		Snapshot:         snap,
		GrowthCurve:      mergeGrowth(cyc.StartDate, lines, samples),
		DensityEvolution: stockingSteps(cyc.StartDate, snap.BaseDensityOrgM2, confirmed),
	}
	if snap.BaseDensityOrgM2 != nil && snap.WeightG != nil && pond.SurfaceM2 > 0 {
		v := round(snap.BiomassKg/pond.SurfaceM2, 2)
		out.BiomassPerM2Kg = &v
	}
	out.GrowthRateGWk = sampledGrowthRate(samples)
	return out, nil
}

// sampledGrowthRate derives the g/week trend between the first and the
// most recent biometry. Samples arrive newest first.
func sampledGrowthRate(samples []*types.BiometrySample) *float64 {
	if len(samples) < 2 {
		return nil
	}
	last, first := samples[0], samples[len(samples)-1]
	days := daysBetween(first.SampleDate, last.SampleDate)
	rate := ledger.WeeklyGrowthRate(last.AvgWeightG-first.AvgWeightG, days)
	return roundPtr(rate, 2)
}

// stockingSteps renders a pond's stocked density over time: the base
// at cycle start, stepping down on every confirmed withdrawal.
func stockingSteps(start time.Time, base *float64, confirmed []*types.HarvestWaveLine) []DensityPoint {
	if base == nil {
		return nil
	}
	running := *base
	out := []DensityPoint{{WeekIdx: 0, PlanDate: dateOnly(start), DensityOrgM2: round(running, 2)}}
	for _, row := range confirmed {
		if row.ConfirmedDate == nil || row.ConfirmedWithdrawalOrgM2 == nil {
			continue
		}
		running -= *row.ConfirmedWithdrawalOrgM2
		if running < 0 {
			running = 0
		}
		out = append(out, DensityPoint{
			WeekIdx:      weekOf(start, *row.ConfirmedDate),
			PlanDate:     dateOnly(*row.ConfirmedDate),
			DensityOrgM2: round(running, 2),
		})
	}
	return out
}
