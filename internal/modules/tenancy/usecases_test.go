package tenancy

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	"github.com/aquaforge/pondops-backend/internal/data/repos/testutil"
	"github.com/aquaforge/pondops-backend/internal/pkg/pointers"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testDeps(tb testing.TB, tx *gorm.DB) UsecasesDeps {
	tb.Helper()
	log := testutil.Logger(tb)
	return UsecasesDeps{
		DB:        tx,
		Log:       log,
		Farms:     repos.NewFarmRepo(tx, log),
		Ponds:     repos.NewPondRepo(tx, log),
		Cycles:    repos.NewCycleRepo(tx, log),
		Seeding:   repos.NewSeedingPlanRepo(tx, log),
		Biometry:  repos.NewBiometryRepo(tx, log),
		Waves:     repos.NewHarvestWaveRepo(tx, log),
		WaveLines: repos.NewHarvestWaveLineRepo(tx, log),
		Headers:   repos.NewProjectionHeaderRepo(tx, log),
		Uploads:   repos.NewProjectionUploadRepo(tx, log),
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

func TestCreateFarm(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	_, err := u.CreateFarm(ctx, CreateFarmInput{Name: "   "})
	wantCode(t, err, "farm_name_required")

	_, err = u.CreateFarm(ctx, CreateFarmInput{Name: "El Rocio", Hectares: pointers.Ptr(-4.0)})
	wantCode(t, err, "invalid_hectares")

	_, err = u.CreateFarm(ctx, CreateFarmInput{Name: "El Rocio", Timezone: "Mars/Olympus"})
	wantCode(t, err, "invalid_timezone")

	farm, err := u.CreateFarm(ctx, CreateFarmInput{Name: "  El Rocio  ", Location: "Taura"})
	if err != nil {
		t.Fatalf("create farm: %v", err)
	}
	if farm.Name != "El Rocio" {
		t.Fatalf("name not trimmed: %q", farm.Name)
	}
	if farm.Timezone != "America/Guayaquil" {
		t.Fatalf("timezone default: %q", farm.Timezone)
	}

	// Uniqueness ignores casing.
	_, err = u.CreateFarm(ctx, CreateFarmInput{Name: "el rocio"})
	wantCode(t, err, "farm_name_duplicated")
}

func TestUpdateFarm(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	a := testutil.SeedFarm(t, ctx, tx, "Norte")
	testutil.SeedFarm(t, ctx, tx, "Sur")

	_, err := u.UpdateFarm(ctx, a.ID, UpdateFarmInput{Name: pointers.Ptr("sur")})
	wantCode(t, err, "farm_name_duplicated")

	// Re-casing your own name is not a collision.
	got, err := u.UpdateFarm(ctx, a.ID, UpdateFarmInput{Name: pointers.Ptr("NORTE"), Hectares: pointers.Ptr(12.5)})
	if err != nil {
		t.Fatalf("update farm: %v", err)
	}
	if got.Name != "NORTE" || got.Hectares == nil || *got.Hectares != 12.5 {
		t.Fatalf("update not applied: %+v", got)
	}

	_, err = u.UpdateFarm(ctx, a.ID, UpdateFarmInput{Hectares: pointers.Ptr(0.0)})
	wantCode(t, err, "invalid_hectares")
}

func TestDeleteFarm(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	busy := testutil.SeedFarm(t, ctx, tx, "Con Ciclos")
	testutil.SeedCycle(t, ctx, tx, busy.ID, day(2025, 1, 6))
	err := u.DeleteFarm(ctx, busy.ID)
	wantCode(t, err, "farm_in_use")

	idle := testutil.SeedFarm(t, ctx, tx, "Sin Ciclos")
	if err := u.DeleteFarm(ctx, idle.ID); err != nil {
		t.Fatalf("delete farm: %v", err)
	}
	_, err = u.GetFarm(ctx, idle.ID)
	wantCode(t, err, "farm_not_found")
}

func TestCreatePond(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")

	_, err := u.CreatePond(ctx, CreatePondInput{FarmID: farm.ID, Name: "A1", SurfaceM2: 0})
	wantCode(t, err, "invalid_surface")

	pond, err := u.CreatePond(ctx, CreatePondInput{FarmID: farm.ID, Name: " A1 ", SurfaceM2: 1200})
	if err != nil {
		t.Fatalf("create pond: %v", err)
	}
	if pond.Name != "A1" || !pond.Active {
		t.Fatalf("pond row: %+v", pond)
	}

	_, err = u.CreatePond(ctx, CreatePondInput{FarmID: farm.ID, Name: "a1", SurfaceM2: 900})
	wantCode(t, err, "pond_name_duplicated")

	// Same name on another farm is fine.
	other := testutil.SeedFarm(t, ctx, tx, "Otra")
	if _, err := u.CreatePond(ctx, CreatePondInput{FarmID: other.ID, Name: "A1", SurfaceM2: 800}); err != nil {
		t.Fatalf("same name, other farm: %v", err)
	}
}

func TestUpdatePond_SurfaceFrozenInUse(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 1, 6))
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)

	// No history yet: resizing is allowed.
	got, err := u.UpdatePond(ctx, pond.ID, UpdatePondInput{SurfaceM2: pointers.Ptr(1100.0)})
	if err != nil {
		t.Fatalf("resize clean pond: %v", err)
	}
	if got.SurfaceM2 != 1100 {
		t.Fatalf("surface=%v", got.SurfaceM2)
	}

	testutil.SeedBiometry(t, ctx, tx, cyc.ID, pond.ID, day(2025, 2, 3), 8.5)
	_, err = u.UpdatePond(ctx, pond.ID, UpdatePondInput{SurfaceM2: pointers.Ptr(1500.0)})
	wantCode(t, err, "pond_in_use_surface_change")

	// Re-sending the current surface is a no-op, not a conflict.
	if _, err := u.UpdatePond(ctx, pond.ID, UpdatePondInput{SurfaceM2: pointers.Ptr(1100.0)}); err != nil {
		t.Fatalf("same surface: %v", err)
	}
}

func TestUpdatePond_DeactivateStocked(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 1, 6))
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, pond.ID, 80, true)

	_, err := u.UpdatePond(ctx, pond.ID, UpdatePondInput{Active: pointers.Ptr(false)})
	wantCode(t, err, "pond_in_use")

	// Once the cycle closes the pond can be retired.
	if _, err := u.CloseCycle(ctx, cyc.ID, nil); err != nil {
		t.Fatalf("close cycle: %v", err)
	}
	got, err := u.UpdatePond(ctx, pond.ID, UpdatePondInput{Active: pointers.Ptr(false)})
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got.Active {
		t.Fatal("pond still active")
	}
}

func TestDeletePond(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 1, 6))

	used := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)
	testutil.SeedSeedingPlan(t, ctx, tx, cyc.ID, used.ID, 80, false)
	err := u.DeletePond(ctx, used.ID)
	wantCode(t, err, "pond_in_use")

	clean := testutil.SeedPond(t, ctx, tx, farm.ID, "B2", 900)
	if err := u.DeletePond(ctx, clean.ID); err != nil {
		t.Fatalf("delete pond: %v", err)
	}
	_, err = u.GetPond(ctx, clean.ID)
	wantCode(t, err, "pond_not_found")
}

func TestCreateCycle_SingleOpenPerFarm(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")

	_, err := u.CreateCycle(ctx, CreateCycleInput{FarmID: farm.ID, Name: "", StartDate: day(2025, 1, 6)})
	wantCode(t, err, "cycle_name_required")

	_, err = u.CreateCycle(ctx, CreateCycleInput{FarmID: farm.ID, Name: "2025-A"})
	wantCode(t, err, "start_date_required")

	first, err := u.CreateCycle(ctx, CreateCycleInput{FarmID: farm.ID, Name: "2025-A", StartDate: day(2025, 1, 6)})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}

	_, err = u.CreateCycle(ctx, CreateCycleInput{FarmID: farm.ID, Name: "2025-B", StartDate: day(2025, 7, 1)})
	wantCode(t, err, "active_cycle_exists")

	// A second farm runs its own cycle independently.
	other := testutil.SeedFarm(t, ctx, tx, "Otra")
	if _, err := u.CreateCycle(ctx, CreateCycleInput{FarmID: other.ID, Name: "2025-A", StartDate: day(2025, 1, 6)}); err != nil {
		t.Fatalf("cycle on other farm: %v", err)
	}

	// Closing the first frees the slot.
	if _, err := u.CloseCycle(ctx, first.ID, pointers.Ptr(day(2025, 6, 30))); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := u.CreateCycle(ctx, CreateCycleInput{FarmID: farm.ID, Name: "2025-B", StartDate: day(2025, 7, 1)}); err != nil {
		t.Fatalf("create after close: %v", err)
	}
}

func TestCloseCycle(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 1, 6))

	_, err := u.CloseCycle(ctx, cyc.ID, pointers.Ptr(day(2025, 1, 3)))
	wantCode(t, err, "close_date_invalid")

	closed, err := u.CloseCycle(ctx, cyc.ID, pointers.Ptr(day(2025, 6, 30)))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.CloseDate == nil || !closed.CloseDate.Equal(day(2025, 6, 30)) {
		t.Fatalf("close date: %+v", closed.CloseDate)
	}

	// Closing again is a no-op that keeps the original date, even with
	// a different (or invalid) date in the request.
	again, err := u.CloseCycle(ctx, cyc.ID, pointers.Ptr(day(2024, 1, 1)))
	if err != nil {
		t.Fatalf("idempotent close: %v", err)
	}
	if !again.CloseDate.Equal(day(2025, 6, 30)) {
		t.Fatalf("close date moved: %v", again.CloseDate)
	}

	_, err = u.ActiveCycle(ctx, farm.ID)
	wantCode(t, err, "no_active_cycle")
}

func TestUpdateCycle(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 1, 6))

	got, err := u.UpdateCycle(ctx, cyc.ID, UpdateCycleInput{Name: pointers.Ptr("2025 invierno")})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got.Name != "2025 invierno" {
		t.Fatalf("name=%q", got.Name)
	}

	if _, err := u.CloseCycle(ctx, cyc.ID, pointers.Ptr(day(2025, 6, 30))); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = u.UpdateCycle(ctx, cyc.ID, UpdateCycleInput{StartDate: pointers.Ptr(day(2025, 7, 15))})
	wantCode(t, err, "date_range_invalid")
}

func TestDeleteCycle(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	u := New(testDeps(t, tx))

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	pond := testutil.SeedPond(t, ctx, tx, farm.ID, "A1", 1000)

	open := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 1, 6))
	err := u.DeleteCycle(ctx, open.ID)
	wantCode(t, err, "cycle_not_terminated")

	testutil.SeedSeedingPlan(t, ctx, tx, open.ID, pond.ID, 80, true)
	if _, err := u.CloseCycle(ctx, open.ID, pointers.Ptr(day(2025, 6, 30))); err != nil {
		t.Fatalf("close: %v", err)
	}
	err = u.DeleteCycle(ctx, open.ID)
	wantCode(t, err, "cycle_in_use")

	empty, err := u.CreateCycle(ctx, CreateCycleInput{FarmID: farm.ID, Name: "2025-B", StartDate: day(2025, 7, 1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := u.CloseCycle(ctx, empty.ID, pointers.Ptr(day(2025, 7, 2))); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := u.DeleteCycle(ctx, empty.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = u.GetCycle(ctx, empty.ID)
	wantCode(t, err, "cycle_not_found")
}
