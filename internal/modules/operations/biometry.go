package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/domain/sampling"
	"github.com/aquaforge/pondops-backend/internal/modules/projection"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/realtime"
)

type RecordBiometryInput struct {
	CycleID       uuid.UUID
	PondID        uuid.UUID
	SampleDate    time.Time
	SampleCount   int
	SampleWeightG float64

	// Optional observed survival. Applied to the ledger only when
	// UpdateSurvival is set; otherwise the sample just records it.
	SurvivalPct    *float64
	UpdateSurvival bool

	Note    string
	ActorID *uuid.UUID
}

// BiometryResult reports the stored sample plus what the reforecast
// trigger did with it, so callers can surface both without digging
// through logs.
type BiometryResult struct {
	Sample     *types.BiometrySample
	Reforecast *projection.Outcome
}

// RecordBiometry stores a weighing: average weight from the sample,
// weekly gain against the previous sample, and survival carried from
// the ledger. When the caller flags UpdateSurvival the observed value
// is appended to the ledger and the sample is frozen against later
// recomputation.
func (u Usecases) RecordBiometry(ctx context.Context, in RecordBiometryInput) (*BiometryResult, error) {
	if in.SampleCount <= 0 {
		return nil, apierr.Validation("invalid_sample_n", fmt.Errorf("sample count must be positive, got %d", in.SampleCount))
	}
	if in.SampleWeightG <= 0 {
		return nil, apierr.Validation("invalid_sample_weight", fmt.Errorf("sample weight must be positive, got %v", in.SampleWeightG))
	}
	if in.SurvivalPct != nil && *in.SurvivalPct < 0 {
		return nil, apierr.Validation("invalid_survival", fmt.Errorf("survival cannot be negative, got %v", *in.SurvivalPct))
	}

	var (
		sample          *types.BiometrySample
		survivalApplied *float64
	)

	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		cyc, err := u.activeCycle(dbc, in.CycleID)
		if err != nil {
			return err
		}
		// Inactive ponds still get weighed while they drain down, so no
		// Active gate here.
		if _, err := u.farmPond(dbc, cyc, in.PondID); err != nil {
			return err
		}

		day := dateOnly(in.SampleDate)
		avg := round(in.SampleWeightG/float64(in.SampleCount), 3)

		row := &types.BiometrySample{
			CycleID:       in.CycleID,
			PondID:        in.PondID,
			SampleDate:    day,
			SampleCount:   in.SampleCount,
			SampleWeightG: in.SampleWeightG,
			AvgWeightG:    avg,
			Source:        sampling.SourceOperational,
			Note:          in.Note,
		}

		prev, err := u.deps.Biometry.LatestInRange(dbc, in.CycleID, in.PondID, time.Time{}, day)
		if err != nil {
			return err
		}
		if prev != nil {
			days := daysBetween(prev.SampleDate, day)
			// Same-day resamples still yield a rate.
			if days < 1 {
				days = 1
			}
			gain := round((avg-prev.AvgWeightG)*7/float64(days), 3)
			row.WeeklyGainG = &gain
		}

		current, err := u.currentSurvival(dbc, in.CycleID, in.PondID)
		if err != nil {
			return err
		}
		used := current
		if in.SurvivalPct != nil {
			used = *in.SurvivalPct
		}
		if used > 100 {
			used = 100
		}
		row.SurvivalPct = &used

		if in.UpdateSurvival {
			row.Frozen = true
			reason := in.Note
			if reason == "" {
				reason = "biometry"
			}
			if _, err := u.deps.Survival.Append(dbc, &types.SurvivalChange{
				CycleID:   in.CycleID,
				PondID:    in.PondID,
				PrevPct:   &current,
				NewPct:    used,
				Source:    sampling.SourceOperational,
				Reason:    reason,
				ChangedBy: in.ActorID,
				ChangedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
			survivalApplied = &used
		}

		sample, err = u.deps.Biometry.Create(dbc, row)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.deps.Log.Info("biometry recorded",
		"sample_id", sample.ID, "cycle_id", in.CycleID, "pond_id", in.PondID,
		"sample_date", sample.SampleDate.Format("2006-01-02"), "avg_weight_g", sample.AvgWeightG,
		"survival_updated", in.UpdateSurvival)
	announce(ctx, u.deps, in.CycleID, realtime.SSEEventBiometryCreated, map[string]any{
		"sample_id": sample.ID, "pond_id": in.PondID, "avg_weight_g": sample.AvgWeightG,
	})

	res := &BiometryResult{Sample: sample}
	if u.deps.Reforecaster != nil {
		out := u.deps.Reforecaster.ObserveBestEffort(ctx, projection.Observation{
			CycleID:     in.CycleID,
			EventDate:   sample.SampleDate,
			WeightG:     &sample.AvgWeightG,
			SurvivalPct: survivalApplied,
			Reason:      "biometry " + sample.SampleDate.Format("2006-01-02"),
		})
		res.Reforecast = &out
	}
	return res, nil
}

// ListBiometry returns a pond's samples inside a cycle, newest first.
func (u Usecases) ListBiometry(ctx context.Context, cycleID, pondID uuid.UUID) ([]*types.BiometrySample, error) {
	return u.deps.Biometry.ListByCyclePond(dbctx.Context{Ctx: ctx}, cycleID, pondID)
}

// SurvivalHistory returns the pond's ledger entries, oldest first.
func (u Usecases) SurvivalHistory(ctx context.Context, cycleID, pondID uuid.UUID) ([]*types.SurvivalChange, error) {
	return u.deps.Survival.ListByCyclePond(dbctx.Context{Ctx: ctx}, cycleID, pondID)
}
