package operations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	"github.com/aquaforge/pondops-backend/internal/data/repos/testutil"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testDeps wires every repo over the test transaction. DB is the same
// transaction, so the workflows' own Transaction calls become
// savepoints and roll back with the rest of the test.
func testDeps(tb testing.TB, tx *gorm.DB) UsecasesDeps {
	tb.Helper()
	log := testutil.Logger(tb)
	return UsecasesDeps{
		DB:        tx,
		Log:       log,
		Cycles:    repos.NewCycleRepo(tx, log),
		Ponds:     repos.NewPondRepo(tx, log),
		Seeding:   repos.NewSeedingPlanRepo(tx, log),
		Biometry:  repos.NewBiometryRepo(tx, log),
		Survival:  repos.NewSurvivalChangeRepo(tx, log),
		Waves:     repos.NewHarvestWaveRepo(tx, log),
		WaveLines: repos.NewHarvestWaveLineRepo(tx, log),
	}
}

func wantCode(tb testing.TB, err error, code string) {
	tb.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		tb.Fatalf("expected api error %q, got %v", code, err)
	}
	if ae.Code != code {
		tb.Fatalf("code=%q want %q", ae.Code, code)
	}
}

func TestDistributeDates(t *testing.T) {
	start, end := day(2025, 3, 1), day(2025, 3, 10)

	one := distributeDates(start, end, 1)
	if len(one) != 1 || !one[0].Equal(start) {
		t.Fatalf("single date: %v", one)
	}

	// 9 days over 4 ponds lands on every third day.
	four := distributeDates(start, end, 4)
	want := []time.Time{day(2025, 3, 1), day(2025, 3, 4), day(2025, 3, 7), day(2025, 3, 10)}
	for i := range want {
		if !four[i].Equal(want[i]) {
			t.Fatalf("dates[%d]=%v want %v", i, four[i], want[i])
		}
	}

	same := distributeDates(start, start, 3)
	for i, d := range same {
		if !d.Equal(start) {
			t.Fatalf("same-day window dates[%d]=%v", i, d)
		}
	}
}

func TestCreateSeedingPlan_Validation(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	u := New(testDeps(t, tx))

	_, err := u.CreateSeedingPlan(ctx, CreateSeedingPlanInput{
		CycleID: cyc.ID, PondID: pond.ID, PlannedDate: day(2025, 3, 5), DensityOrgM2: 0,
	})
	wantCode(t, err, "invalid_density")

	_, err = u.CreateSeedingPlan(ctx, CreateSeedingPlanInput{
		CycleID: cyc.ID, PondID: pond.ID, PlannedDate: day(2025, 1, 15), DensityOrgM2: 80,
	})
	wantCode(t, err, "seeding_date_out_of_cycle")

	// 30 days of lead time is the limit, and exactly 30 is allowed.
	plan, err := u.CreateSeedingPlan(ctx, CreateSeedingPlanInput{
		CycleID: cyc.ID, PondID: pond.ID, PlannedDate: day(2025, 2, 1), DensityOrgM2: 80,
	})
	if err != nil {
		t.Fatalf("create at lead limit: %v", err)
	}
	if plan.Status != types.SeedingPlanned || plan.Origin != "manual" {
		t.Fatalf("plan status=%q origin=%q", plan.Status, plan.Origin)
	}

	_, err = u.CreateSeedingPlan(ctx, CreateSeedingPlanInput{
		CycleID: cyc.ID, PondID: pond.ID, PlannedDate: day(2025, 3, 5), DensityOrgM2: 80,
	})
	wantCode(t, err, "seeding_exists")

	idle := testutil.SeedPond(t, ctx, tx, farm.ID, "A2", 800)
	idle.Active = false
	if err := tx.WithContext(ctx).Save(idle).Error; err != nil {
		t.Fatalf("deactivate pond: %v", err)
	}
	_, err = u.CreateSeedingPlan(ctx, CreateSeedingPlanInput{
		CycleID: cyc.ID, PondID: idle.ID, PlannedDate: day(2025, 3, 5), DensityOrgM2: 80,
	})
	wantCode(t, err, "pond_inactive")

	other := testutil.SeedFarm(t, ctx, tx, "El Faro")
	foreign := testutil.SeedPond(t, ctx, tx, other.ID, "Z1", 500)
	_, err = u.CreateSeedingPlan(ctx, CreateSeedingPlanInput{
		CycleID: cyc.ID, PondID: foreign.ID, PlannedDate: day(2025, 3, 5), DensityOrgM2: 80,
	})
	wantCode(t, err, "pond_not_found")
}

func TestReprogramSeeding_PositiveOverridesOnly(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	plan := testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, pond.ID, 80, false)
	u := New(testDeps(t, tx))

	newDate := day(2025, 3, 10)
	zero := 0.0
	density := 95.0
	got, err := u.ReprogramSeeding(ctx, ReprogramSeedingInput{
		PlanID:         plan.ID,
		PlannedDate:    &newDate,
		DensityOrgM2:   &density,
		InitialWeightG: &zero,
	})
	if err != nil {
		t.Fatalf("reprogram: %v", err)
	}
	if !got.PlannedDate.Equal(newDate) || got.DensityOrgM2 != 95 {
		t.Fatalf("date=%v density=%v", got.PlannedDate, got.DensityOrgM2)
	}
	if got.InitialWeightG != nil {
		t.Fatalf("zero weight override should be ignored, got %v", *got.InitialWeightG)
	}

	early := day(2025, 1, 1)
	_, err = u.ReprogramSeeding(ctx, ReprogramSeedingInput{PlanID: plan.ID, PlannedDate: &early})
	wantCode(t, err, "seeding_date_out_of_cycle")

	if _, err := u.ConfirmSeeding(ctx, ConfirmSeedingInput{PlanID: plan.ID}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, err = u.ReprogramSeeding(ctx, ReprogramSeedingInput{PlanID: plan.ID, PlannedDate: &newDate})
	wantCode(t, err, "seeding_already_confirmed")
}

func TestConfirmSeeding_SeedsLedgerBaseline(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	plan := testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, pond.ID, 80, false)

	deps := testDeps(t, tx)
	u := New(deps)

	got, err := u.ConfirmSeeding(ctx, ConfirmSeedingInput{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != types.SeedingConfirmed || got.ConfirmedAt == nil {
		t.Fatalf("status=%q confirmedAt=%v", got.Status, got.ConfirmedAt)
	}

	dbc := dbctx.Context{Ctx: ctx}
	latest, err := deps.Survival.LatestByCyclePond(dbc, cyc.ID, pond.ID)
	if err != nil {
		t.Fatalf("ledger read: %v", err)
	}
	if latest == nil || latest.NewPct != 100 || latest.PrevPct != nil {
		t.Fatalf("baseline=%+v", latest)
	}
	if latest.Reason != "seeding confirmed" {
		t.Fatalf("reason=%q", latest.Reason)
	}

	_, err = u.ConfirmSeeding(ctx, ConfirmSeedingInput{PlanID: plan.ID})
	wantCode(t, err, "seeding_already_confirmed")
}

func TestConfirmSeeding_KeepsExistingLedger(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	plan := testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, pond.ID, 80, false)

	deps := testDeps(t, tx)
	u := New(deps)

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := deps.Survival.Append(dbc, &types.SurvivalChange{
		CycleID: cyc.ID, PondID: pond.ID, NewPct: 85, Source: "manual", ChangedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	if _, err := u.ConfirmSeeding(ctx, ConfirmSeedingInput{PlanID: plan.ID}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	latest, err := deps.Survival.LatestByCyclePond(dbc, cyc.ID, pond.ID)
	if err != nil {
		t.Fatalf("ledger read: %v", err)
	}
	if latest.NewPct != 85 {
		t.Fatalf("baseline overwrote existing ledger: %+v", latest)
	}
}

func TestPlanCycleSeedings(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	a1 := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	a2 := testutil.SeedPond(t, ctx, tx, farm.ID, "A2", 2000)
	a3 := testutil.SeedPond(t, ctx, tx, farm.ID, "A3", 1500)
	idle := testutil.SeedPond(t, ctx, tx, farm.ID, "B1", 500)
	idle.Active = false
	if err := tx.WithContext(ctx).Save(idle).Error; err != nil {
		t.Fatalf("deactivate pond: %v", err)
	}

	u := New(testDeps(t, tx))
	plans, err := u.PlanCycleSeedings(ctx, PlanCycleSeedingsInput{
		CycleID:      cyc.ID,
		WindowStart:  day(2025, 3, 1),
		WindowEnd:    day(2025, 3, 7),
		DensityOrgM2: 80,
	})
	if err != nil {
		t.Fatalf("plan seedings: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("plans=%d want 3", len(plans))
	}

	wantPonds := []struct {
		pondID uuid.UUID
		date   time.Time
	}{
		{a1.ID, day(2025, 3, 1)},
		{a2.ID, day(2025, 3, 4)},
		{a3.ID, day(2025, 3, 7)},
	}
	for i, w := range wantPonds {
		if plans[i].PondID != w.pondID {
			t.Fatalf("plans[%d].pond=%v want %v", i, plans[i].PondID, w.pondID)
		}
		if !plans[i].PlannedDate.Equal(w.date) {
			t.Fatalf("plans[%d].date=%v want %v", i, plans[i].PlannedDate, w.date)
		}
		if plans[i].DensityOrgM2 != 80 || plans[i].Status != types.SeedingPlanned {
			t.Fatalf("plans[%d]=%+v", i, plans[i])
		}
	}

	_, err = u.PlanCycleSeedings(ctx, PlanCycleSeedingsInput{
		CycleID: cyc.ID, WindowStart: day(2025, 3, 1), WindowEnd: day(2025, 3, 7), DensityOrgM2: 80,
	})
	wantCode(t, err, "seeding_plan_exists")
}
