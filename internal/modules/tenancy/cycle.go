package tenancy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

type CreateCycleInput struct {
	FarmID    uuid.UUID
	Name      string
	StartDate time.Time
}

// CreateCycle opens a farming round. A farm runs at most one open
// cycle at a time; the projection and ledger tables all hang off it.
func (u Usecases) CreateCycle(ctx context.Context, in CreateCycleInput) (*types.Cycle, error) {
	dbc := dbctx.Context{Ctx: ctx}

	farm, err := u.farm(dbc, in.FarmID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Validation("cycle_name_required", nil)
	}
	if in.StartDate.IsZero() {
		return nil, apierr.Validation("start_date_required", nil)
	}

	open, err := u.deps.Cycles.FindOpenByFarm(dbc, farm.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apierr.Conflict("active_cycle_exists", fmt.Errorf("cycle %q is still open on farm %q", open.Name, farm.Name))
	}

	cyc, err := u.deps.Cycles.Create(dbc, &types.Cycle{
		FarmID:    farm.ID,
		Name:      name,
		StartDate: dateOnly(in.StartDate),
		Status:    types.CycleOpen,
	})
	if err != nil {
		return nil, err
	}
	u.deps.Log.Info("cycle created", "cycle_id", cyc.ID, "farm_id", farm.ID, "name", cyc.Name, "start_date", cyc.StartDate.Format("2006-01-02"))
	return cyc, nil
}

func (u Usecases) GetCycle(ctx context.Context, id uuid.UUID) (*types.Cycle, error) {
	return u.cycle(dbctx.Context{Ctx: ctx}, id)
}

// ActiveCycle returns the farm's open cycle.
func (u Usecases) ActiveCycle(ctx context.Context, farmID uuid.UUID) (*types.Cycle, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := u.farm(dbc, farmID); err != nil {
		return nil, err
	}
	open, err := u.deps.Cycles.FindOpenByFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, apierr.NotFound("no_active_cycle", nil)
	}
	return open, nil
}

func (u Usecases) ListCycles(ctx context.Context, farmID uuid.UUID) ([]*types.Cycle, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := u.farm(dbc, farmID); err != nil {
		return nil, err
	}
	return u.deps.Cycles.ListByFarm(dbc, farmID)
}

type UpdateCycleInput struct {
	Name      *string
	StartDate *time.Time
}

// UpdateCycle applies the non-nil fields. Status moves only through
// CloseCycle.
func (u Usecases) UpdateCycle(ctx context.Context, id uuid.UUID, in UpdateCycleInput) (*types.Cycle, error) {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.cycle(dbc, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apierr.Validation("cycle_name_required", nil)
		}
		cyc.Name = name
	}
	if in.StartDate != nil {
		start := dateOnly(*in.StartDate)
		if cyc.CloseDate != nil && dateOnly(*cyc.CloseDate).Before(start) {
			return nil, apierr.Validation("date_range_invalid", fmt.Errorf("start %s is past close %s",
				start.Format("2006-01-02"), cyc.CloseDate.Format("2006-01-02")))
		}
		cyc.StartDate = start
	}

	if err := u.deps.Cycles.Update(dbc, cyc); err != nil {
		return nil, err
	}
	return cyc, nil
}

// CloseCycle terminates a round; closing an already-closed cycle is a
// no-op returning the row as-is. The close date defaults to today and
// may not precede the start date.
func (u Usecases) CloseCycle(ctx context.Context, id uuid.UUID, closeDate *time.Time) (*types.Cycle, error) {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.cycle(dbc, id)
	if err != nil {
		return nil, err
	}
	if cyc.Status == types.CycleClosed {
		return cyc, nil
	}

	at := dateOnly(time.Now())
	if closeDate != nil {
		at = dateOnly(*closeDate)
	}
	if at.Before(dateOnly(cyc.StartDate)) {
		return nil, apierr.Validation("close_date_invalid", fmt.Errorf("close %s precedes start %s",
			at.Format("2006-01-02"), cyc.StartDate.Format("2006-01-02")))
	}

	if err := u.deps.Cycles.Close(dbc, cyc.ID, at); err != nil {
		return nil, err
	}
	cyc.Status = types.CycleClosed
	cyc.CloseDate = &at
	u.deps.Log.Info("cycle closed", "cycle_id", cyc.ID, "farm_id", cyc.FarmID, "close_date", at.Format("2006-01-02"))
	return cyc, nil
}

// DeleteCycle removes a closed cycle that never accumulated
// operational rows. Anything with history stays for audit.
func (u Usecases) DeleteCycle(ctx context.Context, id uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.cycle(dbc, id)
	if err != nil {
		return err
	}
	if cyc.Status != types.CycleClosed {
		return apierr.Conflict("cycle_not_terminated", fmt.Errorf("cycle %q is %s", cyc.Name, cyc.Status))
	}
	used, err := u.cycleInUse(dbc, cyc.ID)
	if err != nil {
		return err
	}
	if used {
		return apierr.Conflict("cycle_in_use", fmt.Errorf("cycle %q has dependent rows", cyc.Name))
	}
	if err := u.deps.Cycles.SoftDeleteByID(dbc, cyc.ID); err != nil {
		return err
	}
	u.deps.Log.Info("cycle deleted", "cycle_id", cyc.ID, "farm_id", cyc.FarmID, "name", cyc.Name)
	return nil
}
