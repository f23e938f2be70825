package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "pw",
		FirstName: "A",
		LastName:  "B",
		Role:      "operator",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedFarm(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Farm {
	tb.Helper()
	f := &types.Farm{
		ID:       uuid.New(),
		Name:     name,
		Timezone: "America/Guayaquil",
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed farm: %v", err)
	}
	return f
}

func SeedPond(tb testing.TB, ctx context.Context, tx *gorm.DB, farmID uuid.UUID, name string, surfaceM2 float64) *types.Pond {
	tb.Helper()
	p := &types.Pond{
		ID:        uuid.New(),
		FarmID:    farmID,
		Name:      name,
		SurfaceM2: surfaceM2,
		Active:    true,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed pond: %v", err)
	}
	return p
}

func SeedCycle(tb testing.TB, ctx context.Context, tx *gorm.DB, farmID uuid.UUID, start time.Time) *types.Cycle {
	tb.Helper()
	c := &types.Cycle{
		ID:        uuid.New(),
		FarmID:    farmID,
		Name:      "cycle",
		StartDate: start,
		Status:    types.CycleOpen,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed cycle: %v", err)
	}
	return c
}

func SeedSeedingPlan(tb testing.TB, ctx context.Context, tx *gorm.DB, cycleID, pondID uuid.UUID, density float64, confirmed bool) *types.SeedingPlan {
	tb.Helper()
	sp := &types.SeedingPlan{
		ID:           uuid.New(),
		CycleID:      cycleID,
		PondID:       pondID,
		PlannedDate:  time.Now().UTC().Truncate(24 * time.Hour),
		DensityOrgM2: density,
		Status:       types.SeedingPlanned,
	}
	if confirmed {
		now := time.Now().UTC()
		sp.Status = types.SeedingConfirmed
		sp.ConfirmedAt = &now
	}
	if err := tx.WithContext(ctx).Create(sp).Error; err != nil {
		tb.Fatalf("seed seeding plan: %v", err)
	}
	return sp
}

func SeedHeader(tb testing.TB, ctx context.Context, tx *gorm.DB, cycleID uuid.UUID, version, status string, isCurrent bool) *types.ProjectionHeader {
	tb.Helper()
	h := &types.ProjectionHeader{
		ID:        uuid.New(),
		CycleID:   cycleID,
		Version:   version,
		Status:    status,
		IsCurrent: isCurrent,
		Source:    types.SourceFromPlans,
	}
	if err := tx.WithContext(ctx).Create(h).Error; err != nil {
		tb.Fatalf("seed projection header: %v", err)
	}
	return h
}

func SeedLines(tb testing.TB, ctx context.Context, tx *gorm.DB, headerID uuid.UUID, start time.Time, weights []float64) []*types.ProjectionLine {
	tb.Helper()
	rows := make([]*types.ProjectionLine, 0, len(weights))
	for i, w := range weights {
		inc := w
		if i > 0 {
			inc = w - weights[i-1]
		}
		rows = append(rows, &types.ProjectionLine{
			ID:           uuid.New(),
			HeaderID:     headerID,
			WeekIdx:      i,
			PlanDate:     start.AddDate(0, 0, 7*i),
			AgeDays:      7 * i,
			WeightG:      w,
			IncrementGWk: inc,
			SurvivalPct:  100,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		tb.Fatalf("seed projection lines: %v", err)
	}
	return rows
}

func SeedBiometry(tb testing.TB, ctx context.Context, tx *gorm.DB, cycleID, pondID uuid.UUID, date time.Time, avgWeightG float64) *types.BiometrySample {
	tb.Helper()
	b := &types.BiometrySample{
		ID:            uuid.New(),
		CycleID:       cycleID,
		PondID:        pondID,
		SampleDate:    date,
		SampleCount:   100,
		SampleWeightG: avgWeightG * 100,
		AvgWeightG:    avgWeightG,
		Source:        "current_operational",
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed biometry: %v", err)
	}
	return b
}

func SeedWave(tb testing.TB, ctx context.Context, tx *gorm.DB, cycleID uuid.UUID, start, end time.Time) *types.HarvestWave {
	tb.Helper()
	w := &types.HarvestWave{
		ID:          uuid.New(),
		CycleID:     cycleID,
		Name:        "wave",
		Kind:        types.HarvestPartial,
		WindowStart: start,
		WindowEnd:   end,
		Status:      types.WavePlanned,
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed harvest wave: %v", err)
	}
	return w
}

func SeedWaveLine(tb testing.TB, ctx context.Context, tx *gorm.DB, waveID, pondID uuid.UUID, confirmedWithdrawal *float64) *types.HarvestWaveLine {
	tb.Helper()
	l := &types.HarvestWaveLine{
		ID:     uuid.New(),
		WaveID: waveID,
		PondID: pondID,
	}
	if confirmedWithdrawal != nil {
		now := time.Now().UTC().Truncate(24 * time.Hour)
		l.Confirmed = true
		l.ConfirmedDate = &now
		l.ConfirmedWithdrawalOrgM2 = confirmedWithdrawal
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed harvest line: %v", err)
	}
	return l
}
