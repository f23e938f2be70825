package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

// GrowthPoint carries the projected and the observed weight of one
// cycle week side by side. When both exist the chart draws both; they
// are never averaged into each other.
type GrowthPoint struct {
	WeekIdx    int       `json:"week_idx"`
	PlanDate   time.Time `json:"plan_date"`
	ProjectedG *float64  `json:"projected_g,omitempty"`
	ObservedG  *float64  `json:"observed_g,omitempty"`
}

type BiomassPoint struct {
	WeekIdx     int       `json:"week_idx"`
	PlanDate    time.Time `json:"plan_date"`
	BiomassKg   float64   `json:"biomass_kg"`
	HarvestFlag bool      `json:"harvest_flag"`
}

type DensityPoint struct {
	WeekIdx      int       `json:"week_idx"`
	PlanDate     time.Time `json:"plan_date"`
	DensityOrgM2 float64   `json:"density_org_m2"`
}

// GrowthCurve merges the best header's weekly weights with biometry
// averages bucketed by week since cycle start.
func (u Usecases) GrowthCurve(ctx context.Context, cycleID uuid.UUID) ([]GrowthPoint, error) {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.deps.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}

	lines, err := u.deps.Ledger.BestLines(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	samples, err := u.deps.Biometry.ListByCycle(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	return mergeGrowth(cyc.StartDate, lines, samples), nil
}

func mergeGrowth(start time.Time, lines []*types.ProjectionLine, samples []*types.BiometrySample) []GrowthPoint {
	byWeek := map[int]*GrowthPoint{}
	for _, ln := range lines {
		w := ln.WeightG
		byWeek[ln.WeekIdx] = &GrowthPoint{WeekIdx: ln.WeekIdx, PlanDate: ln.PlanDate, ProjectedG: &w}
	}

	sums := map[int]float64{}
	counts := map[int]int{}
	for _, s := range samples {
		wk := weekOf(start, s.SampleDate)
		sums[wk] += s.AvgWeightG
		counts[wk]++
	}
	for wk, n := range counts {
		avg := round(sums[wk]/float64(n), 3)
		if pt, ok := byWeek[wk]; ok {
			pt.ObservedG = &avg
			continue
		}
		byWeek[wk] = &GrowthPoint{
			WeekIdx:   wk,
			PlanDate:  dateOnly(start).AddDate(0, 0, wk*7),
			ObservedG: &avg,
		}
	}

	out := make([]GrowthPoint, 0, len(byWeek))
	for _, pt := range byWeek {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekIdx < out[j].WeekIdx })
	return out
}

// BiomassEvolution renders the cycle-wide standing biomass per plan
// week, with confirmed harvests folded in. The terminal harvest week
// shows the stock right before that harvest lands.
func (u Usecases) BiomassEvolution(ctx context.Context, cycleID uuid.UUID) ([]BiomassPoint, error) {
	pts, err := u.series(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	return biomassPoints(pts), nil
}

// DensityEvolution is the scalar companion of BiomassEvolution: one
// representative live density per plan week, floored at zero.
func (u Usecases) DensityEvolution(ctx context.Context, cycleID uuid.UUID) ([]DensityPoint, error) {
	pts, err := u.series(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	return densityPoints(pts), nil
}

func biomassPoints(pts []seriesPoint) []BiomassPoint {
	out := make([]BiomassPoint, 0, len(pts))
	for _, p := range pts {
		out = append(out, BiomassPoint{
			WeekIdx:     p.weekIdx,
			PlanDate:    p.date,
			BiomassKg:   round(ledger.BiomassKg(p.aliveOrganisms, p.weightG), 1),
			HarvestFlag: p.harvest,
		})
	}
	return out
}

func densityPoints(pts []seriesPoint) []DensityPoint {
	out := make([]DensityPoint, 0, len(pts))
	for _, p := range pts {
		out = append(out, DensityPoint{
			WeekIdx:      p.weekIdx,
			PlanDate:     p.date,
			DensityOrgM2: round(p.aliveOrganisms/p.totalSurface, 2),
		})
	}
	return out
}

func (u Usecases) series(ctx context.Context, cycleID uuid.UUID) ([]seriesPoint, error) {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.deps.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}

	lines, err := u.deps.Ledger.BestLines(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	ponds, err := u.stockedPonds(dbc, cyc)
	if err != nil {
		return nil, err
	}

	confirmed, err := u.deps.WaveLines.ListConfirmedByCycle(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	events := make([]*confirmedEvent, 0, len(confirmed))
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
	return walkSeries(lines, ponds, events), nil
}

// stockedPonds lists the ponds whose stocking is trustworthy: active,
// seeding confirmed, with a usable base density.
func (u Usecases) stockedPonds(dbc dbctx.Context, cyc *types.Cycle) ([]*stockedPond, error) {
	plans, err := u.deps.Seeding.ListConfirmedByCycle(dbc, cyc.ID)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}
	byPond := make(map[uuid.UUID]*types.SeedingPlan, len(plans))
	for _, plan := range plans {
		byPond[plan.PondID] = plan
	}

	ponds, err := u.deps.Ponds.ListByFarm(dbc, cyc.FarmID)
	if err != nil {
		return nil, err
	}
	out := make([]*stockedPond, 0, len(ponds))
	for _, pond := range ponds {
		plan, ok := byPond[pond.ID]
		if !ok || !pond.Active {
			continue
		}
		base := ledger.Effective(pond.DensityOverrideOrgM2, &plan.DensityOrgM2)
		if base == nil {
			continue
		}
		out = append(out, &stockedPond{id: pond.ID, surface: pond.SurfaceM2, base: *base})
	}
	return out, nil
}

// stockedPond is the per-pond state the series walker mutates as
// withdrawals fold in.
type stockedPond struct {
	id        uuid.UUID
	surface   float64
	base      float64
	withdrawn float64
}

// confirmedEvent is a confirmed harvest withdrawal pinned to its pond
// and calendar day.
type confirmedEvent struct {
	pondID  uuid.UUID
	date    time.Time
	orgM2   float64
	applied bool
}

type seriesPoint struct {
	weekIdx        int
	date           time.Time
	weightG        float64
	harvest        bool
	aliveOrganisms float64
	totalSurface   float64
}

// walkSeries folds harvest withdrawals into the weekly plan rows and
// yields the surviving organism count per week. Withdrawals are
// permanent once applied. A confirmed withdrawal replaces the projected
// one for its pond on the same day; the projected withdrawal itself
// lands on the shared weekly total exactly once. The terminal harvest
// week is rendered before its own withdrawal so the chart shows what
// was standing when the final harvest began.
func walkSeries(lines []*types.ProjectionLine, ponds []*stockedPond, events []*confirmedEvent) []seriesPoint {
	if len(lines) == 0 || len(ponds) == 0 {
		return nil
	}
	var totalSurface float64
	for _, p := range ponds {
		totalSurface += p.surface
	}
	if totalSurface <= 0 {
		return nil
	}

	finalIdx := -1
	for i, ln := range lines {
		if ln.HarvestFlag {
			finalIdx = i
		}
	}

	var projWithdrawnOrganisms float64

	value := func(ln *types.ProjectionLine) seriesPoint {
		var standing float64
		for _, p := range ponds {
			standing += ledger.RemainingDensity(p.base, p.withdrawn) * p.surface
		}
		standing -= projWithdrawnOrganisms
		if standing < 0 {
			standing = 0
		}
		return seriesPoint{
			weekIdx:        ln.WeekIdx,
			date:           ln.PlanDate,
			weightG:        ln.WeightG,
			harvest:        ln.HarvestFlag,
			aliveOrganisms: standing * ln.SurvivalPct / 100,
			totalSurface:   totalSurface,
		}
	}

	fold := func(ln *types.ProjectionLine) {
		day := dateOnly(ln.PlanDate)
		var confirmedSurfaceToday float64
		for _, ev := range events {
			evDay := dateOnly(ev.date)
			if ev.applied || evDay.After(day) {
				continue
			}
			ev.applied = true
			if p := pondByID(ponds, ev.pondID); p != nil {
				p.withdrawn += ev.orgM2
				if evDay.Equal(day) {
					confirmedSurfaceToday += p.surface
				}
			}
		}
		if ln.HarvestFlag && ln.WithdrawalOrgM2 != nil {
			if s := totalSurface - confirmedSurfaceToday; s > 0 {
				projWithdrawnOrganisms += *ln.WithdrawalOrgM2 * s
			}
		}
	}

	out := make([]seriesPoint, 0, len(lines))
	for i, ln := range lines {
		if i == finalIdx {
			out = append(out, value(ln))
			fold(ln)
			continue
		}
		fold(ln)
		out = append(out, value(ln))
	}
	return out
}

func pondByID(ponds []*stockedPond, id uuid.UUID) *stockedPond {
	for _, p := range ponds {
		if p.id == id {
			return p
		}
	}
	return nil
}
