package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/aquaforge/pondops-backend/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seriesLine(week int, date time.Time, weightG, survivalPct float64) *types.ProjectionLine {
	return &types.ProjectionLine{WeekIdx: week, PlanDate: date, WeightG: weightG, SurvivalPct: survivalPct}
}

func seriesHarvestLine(week int, date time.Time, weightG, survivalPct, withdrawal float64) *types.ProjectionLine {
	ln := seriesLine(week, date, weightG, survivalPct)
	ln.HarvestFlag = true
	ln.WithdrawalOrgM2 = &withdrawal
	return ln
}

func sample(date time.Time, avgWeightG float64) *types.BiometrySample {
	return &types.BiometrySample{SampleDate: date, AvgWeightG: avgWeightG}
}

func TestMergeGrowth_KeepsProjectedAndObservedSideBySide(t *testing.T) {
	start := day(2025, 3, 3)
	lines := []*types.ProjectionLine{
		seriesLine(0, start, 1, 100),
		seriesLine(1, start.AddDate(0, 0, 7), 4, 100),
		seriesLine(2, start.AddDate(0, 0, 14), 7, 100),
	}
	samples := []*types.BiometrySample{
		sample(day(2025, 3, 9), 1.8),   // day 6, week 0
		sample(day(2025, 3, 10), 4.2),  // day 7, week 1
		sample(day(2025, 3, 12), 4.6),  // day 9, week 1
		sample(day(2025, 4, 7), 15.5),  // day 35, week 5
	}

	pts := mergeGrowth(start, lines, samples)
	if len(pts) != 4 {
		t.Fatalf("got %d points, want 4", len(pts))
	}

	if pts[0].WeekIdx != 0 || *pts[0].ProjectedG != 1 || *pts[0].ObservedG != 1.8 {
		t.Fatalf("week 0 = %+v", pts[0])
	}
	// Both samples of week 1 average; the projected value stays next
	// to the observation instead of blending with it.
	if *pts[1].ProjectedG != 4 || *pts[1].ObservedG != 4.4 {
		t.Fatalf("week 1 = projected %v observed %v", *pts[1].ProjectedG, *pts[1].ObservedG)
	}
	if *pts[2].ProjectedG != 7 || pts[2].ObservedG != nil {
		t.Fatalf("week 2 = %+v", pts[2])
	}

	// An observation beyond the plan opens its own week bucket.
	last := pts[3]
	if last.WeekIdx != 5 || last.ProjectedG != nil || *last.ObservedG != 15.5 {
		t.Fatalf("week 5 = %+v", last)
	}
	if !last.PlanDate.Equal(day(2025, 4, 7)) {
		t.Fatalf("week 5 date = %v", last.PlanDate)
	}
}

func TestWalkSeries_FinalWeekRenderedPreWithdrawal(t *testing.T) {
	start := day(2025, 3, 3)
	lines := []*types.ProjectionLine{
		seriesLine(0, start, 1, 100),
		seriesLine(1, start.AddDate(0, 0, 7), 5, 100),
		seriesHarvestLine(2, start.AddDate(0, 0, 14), 8, 100, 20),
		seriesHarvestLine(3, start.AddDate(0, 0, 21), 10, 100, 60),
	}
	ponds := []*stockedPond{{id: uuid.New(), surface: 1000, base: 80}}

	biomass := biomassPoints(walkSeries(lines, ponds, nil))

	want := []float64{80, 400, 480, 600}
	for i, w := range want {
		if biomass[i].BiomassKg != w {
			t.Fatalf("week %d biomass = %v, want %v", i, biomass[i].BiomassKg, w)
		}
	}
	// The partial harvest lands inside its own week (480 = 60k
	// organisms at 8g); the terminal week shows the standing stock
	// before the final withdrawal, so it rises to 600 instead of
	// collapsing to 0.
	if !biomass[2].HarvestFlag || !biomass[3].HarvestFlag {
		t.Fatalf("harvest weeks should be flagged: %+v", biomass)
	}
}

func TestWalkSeries_ConfirmedReplacesProjectedSameDay(t *testing.T) {
	start := day(2025, 3, 3)
	pondA, pondB := uuid.New(), uuid.New()
	ponds := []*stockedPond{
		{id: pondA, surface: 1000, base: 80},
		{id: pondB, surface: 500, base: 80},
	}
	lines := []*types.ProjectionLine{
		seriesLine(0, start, 1, 100),
		seriesHarvestLine(1, start.AddDate(0, 0, 7), 5, 100, 20),
		seriesLine(2, start.AddDate(0, 0, 14), 6, 100),
		seriesHarvestLine(3, start.AddDate(0, 0, 21), 10, 100, 60),
	}
	events := []*confirmedEvent{
		{pondID: pondA, date: start.AddDate(0, 0, 7), orgM2: 30},
	}

	pts := walkSeries(lines, ponds, events)

	// Pond A took its confirmed 30 org/m²; the projected 20 org/m²
	// applies only over pond B's surface. 50k + 40k - 10k organisms.
	density := densityPoints(pts)
	if density[1].DensityOrgM2 != 53.33 {
		t.Fatalf("week 1 density = %v, want 53.33", density[1].DensityOrgM2)
	}

	// Withdrawals are permanent: nothing comes back in week 2.
	if density[2].DensityOrgM2 != 53.33 {
		t.Fatalf("week 2 density = %v, want 53.33", density[2].DensityOrgM2)
	}

	biomass := biomassPoints(pts)
	if biomass[1].BiomassKg != 400 || biomass[2].BiomassKg != 480 {
		t.Fatalf("biomass = %v, %v, want 400, 480", biomass[1].BiomassKg, biomass[2].BiomassKg)
	}
	// Final week pre-withdrawal over the reduced stock.
	if biomass[3].BiomassKg != 800 {
		t.Fatalf("final biomass = %v, want 800", biomass[3].BiomassKg)
	}
}

func TestWalkSeries_SurvivalAppliesFromOrigin(t *testing.T) {
	start := day(2025, 3, 3)
	pondID := uuid.New()
	ponds := []*stockedPond{{id: pondID, surface: 1000, base: 100}}
	lines := []*types.ProjectionLine{
		seriesLine(0, start, 1, 100),
		seriesLine(1, start.AddDate(0, 0, 7), 2, 90),
		seriesLine(2, start.AddDate(0, 0, 14), 3, 80),
	}
	events := []*confirmedEvent{
		{pondID: pondID, date: start.AddDate(0, 0, 7), orgM2: 20},
	}

	density := densityPoints(walkSeries(lines, ponds, events))

	// Survival multiplies the withdrawn-adjusted base directly; week 2
	// is 80 org/m² at 80%, not 90% of week 1's output again.
	want := []float64{100, 72, 64}
	for i, w := range want {
		if density[i].DensityOrgM2 != w {
			t.Fatalf("week %d density = %v, want %v", i, density[i].DensityOrgM2, w)
		}
	}
}

func TestWalkSeries_DensityFloorsAtZero(t *testing.T) {
	start := day(2025, 3, 3)
	ponds := []*stockedPond{{id: uuid.New(), surface: 100, base: 10}}
	lines := []*types.ProjectionLine{
		seriesHarvestLine(0, start, 5, 100, 50),
		seriesHarvestLine(1, start.AddDate(0, 0, 7), 6, 100, 10),
	}

	density := densityPoints(walkSeries(lines, ponds, nil))

	for i, pt := range density {
		if pt.DensityOrgM2 != 0 {
			t.Fatalf("week %d density = %v, want 0 (overdrawn pond floors)", i, pt.DensityOrgM2)
		}
	}
}

func TestWalkSeries_EmptyInputs(t *testing.T) {
	lines := []*types.ProjectionLine{seriesLine(0, day(2025, 3, 3), 1, 100)}
	if pts := walkSeries(nil, []*stockedPond{{surface: 100, base: 10}}, nil); pts != nil {
		t.Fatalf("no lines should yield no series, got %v", pts)
	}
	if pts := walkSeries(lines, nil, nil); pts != nil {
		t.Fatalf("no ponds should yield no series, got %v", pts)
	}
	if pts := walkSeries(lines, []*stockedPond{{surface: 0, base: 10}}, nil); pts != nil {
		t.Fatalf("zero surface should yield no series, got %v", pts)
	}
}
