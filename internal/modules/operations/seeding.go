package operations

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/domain/sampling"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/realtime"
)

// Stocking may be scheduled up to 30 days ahead of the cycle start.
const seedingLeadDays = 30

func seedingDateInCycle(cyc *types.Cycle, at time.Time) error {
	d := dateOnly(at)
	floor := dateOnly(cyc.StartDate).AddDate(0, 0, -seedingLeadDays)
	if d.Before(floor) {
		return apierr.Validation("seeding_date_out_of_cycle", fmt.Errorf("%s is more than %d days before cycle start",
			d.Format("2006-01-02"), seedingLeadDays))
	}
	if cyc.CloseDate != nil && d.After(dateOnly(*cyc.CloseDate)) {
		return apierr.Validation("seeding_date_out_of_cycle", fmt.Errorf("%s is past cycle close %s",
			d.Format("2006-01-02"), cyc.CloseDate.Format("2006-01-02")))
	}
	return nil
}

type CreateSeedingPlanInput struct {
	CycleID        uuid.UUID
	PondID         uuid.UUID
	PlannedDate    time.Time
	DensityOrgM2   float64
	InitialWeightG *float64
	Note           string
}

// CreateSeedingPlan schedules one pond's stocking inside a cycle. A
// pond carries at most one plan per cycle.
func (u Usecases) CreateSeedingPlan(ctx context.Context, in CreateSeedingPlanInput) (*types.SeedingPlan, error) {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.activeCycle(dbc, in.CycleID)
	if err != nil {
		return nil, err
	}
	pond, err := u.farmPond(dbc, cyc, in.PondID)
	if err != nil {
		return nil, err
	}
	if !pond.Active {
		return nil, apierr.Conflict("pond_inactive", fmt.Errorf("pond %s is inactive", pond.Name))
	}
	if in.DensityOrgM2 <= 0 {
		return nil, apierr.Validation("invalid_density", fmt.Errorf("density must be positive, got %v", in.DensityOrgM2))
	}
	if in.InitialWeightG != nil && *in.InitialWeightG <= 0 {
		return nil, apierr.Validation("invalid_initial_weight", fmt.Errorf("initial weight must be positive, got %v", *in.InitialWeightG))
	}
	if err := seedingDateInCycle(cyc, in.PlannedDate); err != nil {
		return nil, err
	}

	existing, err := u.deps.Seeding.GetByCyclePond(dbc, in.CycleID, in.PondID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.Conflict("seeding_exists", fmt.Errorf("pond %s already has a plan in this cycle", pond.Name))
	}

	rows, err := u.deps.Seeding.Create(dbc, []*types.SeedingPlan{{
		CycleID:        in.CycleID,
		PondID:         in.PondID,
		PlannedDate:    dateOnly(in.PlannedDate),
		DensityOrgM2:   in.DensityOrgM2,
		InitialWeightG: in.InitialWeightG,
		Status:         types.SeedingPlanned,
		Origin:         "manual",
		Note:           in.Note,
	}})
	if err != nil {
		return nil, err
	}
	plan := rows[0]

	u.deps.Log.Info("seeding plan created",
		"plan_id", plan.ID, "cycle_id", in.CycleID, "pond_id", in.PondID,
		"planned_date", plan.PlannedDate.Format("2006-01-02"), "density_org_m2", in.DensityOrgM2)
	return plan, nil
}

type PlanCycleSeedingsInput struct {
	CycleID        uuid.UUID
	WindowStart    time.Time
	WindowEnd      time.Time
	DensityOrgM2   float64
	InitialWeightG *float64
	Note           string
}

// PlanCycleSeedings lays out one plan per active pond, stocking dates
// spread evenly across the window from first pond to last. It only
// initializes an empty cycle; a cycle that already has plans conflicts.
func (u Usecases) PlanCycleSeedings(ctx context.Context, in PlanCycleSeedingsInput) ([]*types.SeedingPlan, error) {
	if in.DensityOrgM2 <= 0 {
		return nil, apierr.Validation("invalid_density", fmt.Errorf("density must be positive, got %v", in.DensityOrgM2))
	}
	if in.InitialWeightG != nil && *in.InitialWeightG <= 0 {
		return nil, apierr.Validation("invalid_initial_weight", fmt.Errorf("initial weight must be positive, got %v", *in.InitialWeightG))
	}
	start, end := dateOnly(in.WindowStart), dateOnly(in.WindowEnd)
	if end.Before(start) {
		return nil, apierr.Validation("date_range_invalid", fmt.Errorf("window end %s precedes start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02")))
	}

	var plans []*types.SeedingPlan
	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		cyc, err := u.activeCycle(dbc, in.CycleID)
		if err != nil {
			return err
		}
		if err := seedingDateInCycle(cyc, start); err != nil {
			return err
		}
		if err := seedingDateInCycle(cyc, end); err != nil {
			return err
		}

		existing, err := u.deps.Seeding.ListByCycle(dbc, in.CycleID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apierr.Conflict("seeding_plan_exists", fmt.Errorf("cycle already has %d plans", len(existing)))
		}
		ponds, err := u.deps.Ponds.ListActiveByFarm(dbc, cyc.FarmID)
		if err != nil {
			return err
		}
		if len(ponds) == 0 {
			return apierr.Validation("no_active_ponds", nil)
		}

		dates := distributeDates(start, end, len(ponds))
		rows := make([]*types.SeedingPlan, 0, len(ponds))
		for i, pond := range ponds {
			rows = append(rows, &types.SeedingPlan{
				CycleID:        in.CycleID,
				PondID:         pond.ID,
				PlannedDate:    dates[i],
				DensityOrgM2:   in.DensityOrgM2,
				InitialWeightG: in.InitialWeightG,
				Status:         types.SeedingPlanned,
				Origin:         "manual",
				Note:           in.Note,
			})
		}
		plans, err = u.deps.Seeding.Create(dbc, rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.deps.Log.Info("cycle seedings planned", "cycle_id", in.CycleID, "plans", len(plans),
		"window_start", start.Format("2006-01-02"), "window_end", end.Format("2006-01-02"))
	return plans, nil
}

// distributeDates spreads n dates evenly across [start, end], first at
// start and last at end.
func distributeDates(start, end time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, n)
	out[0] = start
	if n == 1 {
		return out
	}
	days := daysBetween(start, end)
	for i := 1; i < n; i++ {
		offset := int(math.Round(float64(days*i) / float64(n-1)))
		out[i] = start.AddDate(0, 0, offset)
	}
	return out
}

type ReprogramSeedingInput struct {
	PlanID         uuid.UUID
	PlannedDate    *time.Time
	DensityOrgM2   *float64
	InitialWeightG *float64
	Note           *string
}

// ReprogramSeeding retunes a plan that has not been confirmed yet.
// Confirmed plans are immutable; retuning one is a conflict.
func (u Usecases) ReprogramSeeding(ctx context.Context, in ReprogramSeedingInput) (*types.SeedingPlan, error) {
	dbc := dbctx.Context{Ctx: ctx}

	plan, err := u.deps.Seeding.GetByID(dbc, in.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, apierr.NotFound("seeding_not_found", nil)
	}
	if plan.Status == types.SeedingConfirmed {
		return nil, apierr.Conflict("seeding_already_confirmed", nil)
	}
	cyc, err := u.activeCycle(dbc, plan.CycleID)
	if err != nil {
		return nil, err
	}

	if in.PlannedDate != nil {
		if err := seedingDateInCycle(cyc, *in.PlannedDate); err != nil {
			return nil, err
		}
		plan.PlannedDate = dateOnly(*in.PlannedDate)
	}
	// Positive values only; zero and negative retunes are ignored like
	// empty form fields.
	if in.DensityOrgM2 != nil && *in.DensityOrgM2 > 0 {
		plan.DensityOrgM2 = *in.DensityOrgM2
	}
	if in.InitialWeightG != nil && *in.InitialWeightG > 0 {
		plan.InitialWeightG = in.InitialWeightG
	}
	if in.Note != nil {
		plan.Note = *in.Note
	}

	if err := u.deps.Seeding.Update(dbc, plan); err != nil {
		return nil, err
	}
	u.deps.Log.Info("seeding plan reprogrammed", "plan_id", plan.ID, "cycle_id", plan.CycleID,
		"planned_date", plan.PlannedDate.Format("2006-01-02"))
	return plan, nil
}

type ConfirmSeedingInput struct {
	PlanID  uuid.UUID
	ActorID *uuid.UUID
}

// ConfirmSeeding marks the stocking as executed. The first
// confirmation on a pond seeds its survival ledger at 100 so later
// biometry and harvest math have a baseline to start from.
func (u Usecases) ConfirmSeeding(ctx context.Context, in ConfirmSeedingInput) (*types.SeedingPlan, error) {
	var plan *types.SeedingPlan

	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		var err error
		plan, err = u.deps.Seeding.GetByID(dbc, in.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return apierr.NotFound("seeding_not_found", nil)
		}
		if plan.Status == types.SeedingConfirmed {
			return apierr.Conflict("seeding_already_confirmed", nil)
		}
		if _, err := u.activeCycle(dbc, plan.CycleID); err != nil {
			return err
		}

		now := time.Now().UTC()
		plan.Status = types.SeedingConfirmed
		plan.ConfirmedAt = &now
		if err := u.deps.Seeding.Update(dbc, plan); err != nil {
			return err
		}

		latest, err := u.deps.Survival.LatestByCyclePond(dbc, plan.CycleID, plan.PondID)
		if err != nil {
			return err
		}
		if latest == nil {
			if _, err := u.deps.Survival.Append(dbc, &types.SurvivalChange{
				CycleID:   plan.CycleID,
				PondID:    plan.PondID,
				NewPct:    100,
				Source:    sampling.SourceOperational,
				Reason:    "seeding confirmed",
				ChangedBy: in.ActorID,
				ChangedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.deps.Log.Info("seeding confirmed", "plan_id", plan.ID, "cycle_id", plan.CycleID, "pond_id", plan.PondID)
	announce(ctx, u.deps, plan.CycleID, realtime.SSEEventSeedingConfirmed, map[string]any{
		"plan_id": plan.ID, "pond_id": plan.PondID,
	})
	return plan, nil
}

// ListSeeding returns a cycle's stocking plans, soonest first.
func (u Usecases) ListSeeding(ctx context.Context, cycleID uuid.UUID) ([]*types.SeedingPlan, error) {
	return u.deps.Seeding.ListByCycle(dbctx.Context{Ctx: ctx}, cycleID)
}
