package tenancy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

type CreatePondInput struct {
	FarmID               uuid.UUID
	Name                 string
	SurfaceM2            float64
	DensityOverrideOrgM2 *float64
}

// CreatePond registers a rearing unit. Names are unique per farm,
// case-insensitively.
func (u Usecases) CreatePond(ctx context.Context, in CreatePondInput) (*types.Pond, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := u.farm(dbc, in.FarmID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Validation("pond_name_required", nil)
	}
	if in.SurfaceM2 <= 0 {
		return nil, apierr.Validation("invalid_surface", fmt.Errorf("surface must be positive, got %v", in.SurfaceM2))
	}
	if in.DensityOverrideOrgM2 != nil && *in.DensityOverrideOrgM2 < 0 {
		return nil, apierr.Validation("invalid_density", fmt.Errorf("density override cannot be negative, got %v", *in.DensityOverrideOrgM2))
	}

	dup, err := u.deps.Ponds.FindByFarmName(dbc, in.FarmID, name)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, apierr.Conflict("pond_name_duplicated", fmt.Errorf("pond %q already exists on this farm", name))
	}

	rows, err := u.deps.Ponds.Create(dbc, []*types.Pond{{
		FarmID:               in.FarmID,
		Name:                 name,
		SurfaceM2:            in.SurfaceM2,
		DensityOverrideOrgM2: in.DensityOverrideOrgM2,
		Active:               true,
	}})
	if err != nil {
		return nil, err
	}
	pond := rows[0]
	u.deps.Log.Info("pond created", "pond_id", pond.ID, "farm_id", pond.FarmID, "name", pond.Name)
	return pond, nil
}

func (u Usecases) GetPond(ctx context.Context, id uuid.UUID) (*types.Pond, error) {
	return u.pond(dbctx.Context{Ctx: ctx}, id)
}

// ListPonds returns the farm's ponds, optionally only those accepting
// new work.
func (u Usecases) ListPonds(ctx context.Context, farmID uuid.UUID, activeOnly bool) ([]*types.Pond, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := u.farm(dbc, farmID); err != nil {
		return nil, err
	}
	if activeOnly {
		return u.deps.Ponds.ListActiveByFarm(dbc, farmID)
	}
	return u.deps.Ponds.ListByFarm(dbc, farmID)
}

type UpdatePondInput struct {
	Name                 *string
	SurfaceM2            *float64
	DensityOverrideOrgM2 *float64
	Active               *bool
}

// UpdatePond applies the non-nil fields. Surface is frozen once the
// pond has operational history: derived densities and biomass would
// silently change retroactively otherwise. A zero density override
// disables the override. Deactivation is refused while the pond is
// stocked in the farm's open cycle.
func (u Usecases) UpdatePond(ctx context.Context, id uuid.UUID, in UpdatePondInput) (*types.Pond, error) {
	dbc := dbctx.Context{Ctx: ctx}

	pond, err := u.pond(dbc, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apierr.Validation("pond_name_required", nil)
		}
		if !strings.EqualFold(name, pond.Name) {
			dup, err := u.deps.Ponds.FindByFarmName(dbc, pond.FarmID, name)
			if err != nil {
				return nil, err
			}
			if dup != nil && dup.ID != pond.ID {
				return nil, apierr.Conflict("pond_name_duplicated", fmt.Errorf("pond %q already exists on this farm", name))
			}
		}
		pond.Name = name
	}
	if in.SurfaceM2 != nil && *in.SurfaceM2 != pond.SurfaceM2 {
		if *in.SurfaceM2 <= 0 {
			return nil, apierr.Validation("invalid_surface", fmt.Errorf("surface must be positive, got %v", *in.SurfaceM2))
		}
		used, err := u.pondInUse(dbc, pond.ID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, apierr.Conflict("pond_in_use_surface_change", fmt.Errorf("pond %q has operational history", pond.Name))
		}
		pond.SurfaceM2 = *in.SurfaceM2
	}
	if in.DensityOverrideOrgM2 != nil {
		if *in.DensityOverrideOrgM2 < 0 {
			return nil, apierr.Validation("invalid_density", fmt.Errorf("density override cannot be negative, got %v", *in.DensityOverrideOrgM2))
		}
		pond.DensityOverrideOrgM2 = in.DensityOverrideOrgM2
	}
	if in.Active != nil && !*in.Active && pond.Active {
		stocked, err := u.pondStockedInOpenCycle(dbc, pond)
		if err != nil {
			return nil, err
		}
		if stocked {
			return nil, apierr.Conflict("pond_in_use", fmt.Errorf("pond %q is stocked in the open cycle", pond.Name))
		}
	}
	if in.Active != nil {
		pond.Active = *in.Active
	}

	if err := u.deps.Ponds.Update(dbc, pond); err != nil {
		return nil, err
	}
	return pond, nil
}

// DeletePond removes a pond with no operational history.
func (u Usecases) DeletePond(ctx context.Context, id uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	pond, err := u.pond(dbc, id)
	if err != nil {
		return err
	}
	used, err := u.pondInUse(dbc, pond.ID)
	if err != nil {
		return err
	}
	if used {
		return apierr.Conflict("pond_in_use", fmt.Errorf("pond %q has operational history", pond.Name))
	}
	if err := u.deps.Ponds.SoftDeleteByID(dbc, pond.ID); err != nil {
		return err
	}
	u.deps.Log.Info("pond deleted", "pond_id", pond.ID, "farm_id", pond.FarmID, "name", pond.Name)
	return nil
}

func (u Usecases) pondStockedInOpenCycle(dbc dbctx.Context, pond *types.Pond) (bool, error) {
	open, err := u.deps.Cycles.FindOpenByFarm(dbc, pond.FarmID)
	if err != nil {
		return false, err
	}
	if open == nil {
		return false, nil
	}
	plan, err := u.deps.Seeding.GetByCyclePond(dbc, open.ID, pond.ID)
	if err != nil {
		return false, err
	}
	return plan != nil, nil
}
