package analytics

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	"github.com/aquaforge/pondops-backend/internal/data/repos/testutil"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
)

func testDeps(tb testing.TB, tx *gorm.DB) UsecasesDeps {
	tb.Helper()
	log := testutil.Logger(tb)
	led := ledger.New(ledger.UsecasesDeps{
		Log:       log,
		Cycles:    repos.NewCycleRepo(tx, log),
		Ponds:     repos.NewPondRepo(tx, log),
		Seeding:   repos.NewSeedingPlanRepo(tx, log),
		Headers:   repos.NewProjectionHeaderRepo(tx, log),
		Lines:     repos.NewProjectionLineRepo(tx, log),
		Biometry:  repos.NewBiometryRepo(tx, log),
		Survival:  repos.NewSurvivalChangeRepo(tx, log),
		WaveLines: repos.NewHarvestWaveLineRepo(tx, log),
	})
	return UsecasesDeps{
		Log:       log,
		Cycles:    repos.NewCycleRepo(tx, log),
		Ponds:     repos.NewPondRepo(tx, log),
		Seeding:   repos.NewSeedingPlanRepo(tx, log),
		Biometry:  repos.NewBiometryRepo(tx, log),
		Waves:     repos.NewHarvestWaveRepo(tx, log),
		WaveLines: repos.NewHarvestWaveLineRepo(tx, log),
		Ledger:    led,
	}
}

func TestStockingSteps(t *testing.T) {
	start := day(2025, 3, 3)
	d1 := day(2025, 3, 20)
	d2 := day(2025, 4, 2)
	confirmed := []*types.HarvestWaveLine{
		{ConfirmedDate: &d1, ConfirmedWithdrawalOrgM2: fp(20)},
		{ConfirmedDate: &d2, ConfirmedWithdrawalOrgM2: fp(70)},
		{ConfirmedDate: nil, ConfirmedWithdrawalOrgM2: fp(5)},
	}

	pts := stockingSteps(start, fp(80), confirmed)

	if len(pts) != 3 {
		t.Fatalf("got %d points, want 3: %+v", len(pts), pts)
	}
	if pts[0].WeekIdx != 0 || pts[0].DensityOrgM2 != 80 {
		t.Fatalf("origin = %+v", pts[0])
	}
	if pts[1].WeekIdx != 2 || pts[1].DensityOrgM2 != 60 {
		t.Fatalf("first step = %+v", pts[1])
	}
	// Overdrawn withdrawal floors at zero instead of going negative.
	if pts[2].WeekIdx != 4 || pts[2].DensityOrgM2 != 0 {
		t.Fatalf("second step = %+v", pts[2])
	}

	if got := stockingSteps(start, nil, confirmed); got != nil {
		t.Fatalf("no base density should yield no series, got %+v", got)
	}
}

func TestSampledGrowthRate(t *testing.T) {
	// Newest first, the repo's ordering.
	samples := []*types.BiometrySample{
		sample(day(2025, 3, 15), 6.5),
		sample(day(2025, 3, 8), 4.0),
		sample(day(2025, 3, 1), 3.0),
	}
	rate := sampledGrowthRate(samples)
	if rate == nil || *rate != 1.75 {
		t.Fatalf("rate = %v, want 1.75", rate)
	}

	if sampledGrowthRate(samples[:1]) != nil {
		t.Fatalf("one sample cannot produce a trend")
	}
	sameDay := []*types.BiometrySample{
		sample(day(2025, 3, 1), 4.0),
		sample(day(2025, 3, 1), 3.0),
	}
	if sampledGrowthRate(sameDay) != nil {
		t.Fatalf("same-day samples cannot produce a trend")
	}
}

func TestGrowthAndEvolutionSeries_FromStore(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, pond.ID, 80, true)

	h := testutil.SeedHeader(t, ctx, tx, cyc.ID, "v1", types.ProjectionPublished, true)
	testutil.SeedLines(t, ctx, tx, h.ID, cyc.StartDate, []float64{1, 4, 7, 10})

	testutil.SeedBiometry(t, ctx, tx, cyc.ID, pond.ID, day(2025, 3, 12), 4.5)

	wave := testutil.SeedWave(t, ctx, tx, cyc.ID, day(2025, 3, 10), day(2025, 3, 24))
	line := testutil.SeedWaveLine(t, ctx, tx, wave.ID, pond.ID, fp(20))
	week2 := day(2025, 3, 17)
	line.ConfirmedDate = &week2
	if err := tx.WithContext(ctx).Save(line).Error; err != nil {
		t.Fatalf("pin confirmed date: %v", err)
	}

	u := New(testDeps(t, tx))

	growth, err := u.GrowthCurve(ctx, cyc.ID)
	if err != nil {
		t.Fatalf("GrowthCurve: %v", err)
	}
	if len(growth) != 4 {
		t.Fatalf("got %d growth points, want 4", len(growth))
	}
	if *growth[1].ProjectedG != 4 || *growth[1].ObservedG != 4.5 {
		t.Fatalf("week 1 = %+v", growth[1])
	}
	if growth[0].ObservedG != nil || growth[2].ObservedG != nil {
		t.Fatalf("unexpected observations: %+v", growth)
	}

	biomass, err := u.BiomassEvolution(ctx, cyc.ID)
	if err != nil {
		t.Fatalf("BiomassEvolution: %v", err)
	}
	if len(biomass) != 4 {
		t.Fatalf("got %d biomass points, want 4", len(biomass))
	}
	// 80k organisms until the confirmed withdrawal lands on week 2,
	// then 60k at the plan weights.
	wantKg := []float64{80, 320, 420, 600}
	for i, w := range wantKg {
		if biomass[i].BiomassKg != w {
			t.Fatalf("week %d biomass = %v, want %v", i, biomass[i].BiomassKg, w)
		}
	}

	density, err := u.DensityEvolution(ctx, cyc.ID)
	if err != nil {
		t.Fatalf("DensityEvolution: %v", err)
	}
	if len(density) != 4 {
		t.Fatalf("got %d density points, want 4", len(density))
	}
	wantDens := []float64{80, 80, 60, 60}
	for i, w := range wantDens {
		if density[i].DensityOrgM2 != w {
			t.Fatalf("week %d density = %v, want %v", i, density[i].DensityOrgM2, w)
		}
	}
}

func TestPondDashboard_FromStore(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, pond.ID, 80, true)

	h := testutil.SeedHeader(t, ctx, tx, cyc.ID, "v1", types.ProjectionPublished, true)
	testutil.SeedLines(t, ctx, tx, h.ID, cyc.StartDate, []float64{1, 4, 7, 10})

	testutil.SeedBiometry(t, ctx, tx, cyc.ID, pond.ID, day(2025, 3, 5), 2.0)
	testutil.SeedBiometry(t, ctx, tx, cyc.ID, pond.ID, day(2025, 3, 19), 5.5)

	u := New(testDeps(t, tx))
	at := day(2025, 3, 24)

	dash, err := u.PondDashboard(ctx, cyc.ID, pond.ID, at)
	if err != nil {
		t.Fatalf("PondDashboard: %v", err)
	}

	if dash.PondName != "A1" || !dash.Active || dash.CycleDays != 21 {
		t.Fatalf("header = %+v", dash)
	}
	if dash.Snapshot == nil || dash.Snapshot.WeightG == nil || *dash.Snapshot.WeightG != 5.5 {
		t.Fatalf("snapshot weight = %+v", dash.Snapshot)
	}
	// 80 org/m² alive at 5.5 g over 1000 m² is 440 kg, 0.44 kg/m².
	if dash.BiomassPerM2Kg == nil || *dash.BiomassPerM2Kg != 0.44 {
		t.Fatalf("biomass per m² = %v", dash.BiomassPerM2Kg)
	}
	// 3.5 g over 14 days.
	if dash.GrowthRateGWk == nil || *dash.GrowthRateGWk != 1.75 {
		t.Fatalf("growth rate = %v", dash.GrowthRateGWk)
	}

	var observed int
	for _, pt := range dash.GrowthCurve {
		if pt.ObservedG != nil {
			observed++
		}
	}
	if observed != 2 {
		t.Fatalf("observed weeks = %d, want 2", observed)
	}
	if len(dash.DensityEvolution) != 1 || dash.DensityEvolution[0].DensityOrgM2 != 80 {
		t.Fatalf("stocking steps = %+v", dash.DensityEvolution)
	}
}

func TestReportSections_FromStore(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	pondA := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	pondB := testutil.SeedPond(t, ctx, tx, farm.ID, "A2", 500)
	testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, pondA.ID, 80, true)
	planB := testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, pondB.ID, 80, false)

	at := day(2025, 3, 20)
	planB.PlannedDate = day(2025, 3, 23)
	if err := tx.WithContext(ctx).Save(planB).Error; err != nil {
		t.Fatalf("pin planned date: %v", err)
	}

	wave := testutil.SeedWave(t, ctx, tx, cyc.ID, day(2025, 3, 22), day(2025, 3, 29))
	testutil.SeedWaveLine(t, ctx, tx, wave.ID, pondA.ID, fp(20))
	testutil.SeedWaveLine(t, ctx, tx, wave.ID, pondB.ID, nil)

	u := New(testDeps(t, tx))

	seeding, err := u.seedingProgress(dbc, cyc.ID)
	if err != nil {
		t.Fatalf("seedingProgress: %v", err)
	}
	if seeding.Total != 2 || seeding.Confirmed != 1 || *seeding.Pct != 50 {
		t.Fatalf("seeding progress = %+v", seeding)
	}

	harvest, err := u.harvestProgress(dbc, cyc.ID)
	if err != nil {
		t.Fatalf("harvestProgress: %v", err)
	}
	if harvest.Total != 2 || harvest.Confirmed != 1 || *harvest.Pct != 50 {
		t.Fatalf("harvest progress = %+v", harvest)
	}

	waves, err := u.upcomingWaves(dbc, cyc.ID, at)
	if err != nil {
		t.Fatalf("upcomingWaves: %v", err)
	}
	if len(waves) != 1 {
		t.Fatalf("got %d upcoming waves, want 1", len(waves))
	}
	if waves[0].PendingLines != 1 || waves[0].DaysUntilStart != 2 || waves[0].State != ScheduleUrgent {
		t.Fatalf("upcoming wave = %+v", waves[0])
	}

	seedings, err := u.upcomingSeedings(dbc, cyc, at)
	if err != nil {
		t.Fatalf("upcomingSeedings: %v", err)
	}
	if len(seedings) != 1 {
		t.Fatalf("got %d upcoming seedings, want 1", len(seedings))
	}
	if seedings[0].PondName != "A2" || seedings[0].DaysUntil != 3 || seedings[0].State != ScheduleUpcoming {
		t.Fatalf("upcoming seeding = %+v", seedings[0])
	}

	planned, err := u.plannedWaves(dbc, cyc.ID, at)
	if err != nil {
		t.Fatalf("plannedWaves: %v", err)
	}
	if len(planned) != 1 || planned[0].State != ScheduleUrgent {
		t.Fatalf("planned waves = %+v", planned)
	}
}
