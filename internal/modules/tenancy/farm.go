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

const defaultTimezone = "America/Guayaquil"

type CreateFarmInput struct {
	Name     string
	Location string
	Timezone string
	Hectares *float64
}

// CreateFarm registers a farm. Names are unique across the account,
// case-insensitively.
func (u Usecases) CreateFarm(ctx context.Context, in CreateFarmInput) (*types.Farm, error) {
	dbc := dbctx.Context{Ctx: ctx}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Validation("farm_name_required", nil)
	}
	if in.Hectares != nil && *in.Hectares <= 0 {
		return nil, apierr.Validation("invalid_hectares", fmt.Errorf("hectares must be positive, got %v", *in.Hectares))
	}
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	if err := validTimezone(tz); err != nil {
		return nil, err
	}

	existing, err := u.deps.Farms.FindByName(dbc, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.Conflict("farm_name_duplicated", fmt.Errorf("farm %q already exists", name))
	}

	farm, err := u.deps.Farms.Create(dbc, &types.Farm{
		Name:     name,
		Location: strings.TrimSpace(in.Location),
		Timezone: tz,
		Hectares: in.Hectares,
	})
	if err != nil {
		return nil, err
	}
	u.deps.Log.Info("farm created", "farm_id", farm.ID, "name", farm.Name)
	return farm, nil
}

func (u Usecases) GetFarm(ctx context.Context, id uuid.UUID) (*types.Farm, error) {
	return u.farm(dbctx.Context{Ctx: ctx}, id)
}

func (u Usecases) ListFarms(ctx context.Context) ([]*types.Farm, error) {
	return u.deps.Farms.List(dbctx.Context{Ctx: ctx})
}

type UpdateFarmInput struct {
	Name     *string
	Location *string
	Timezone *string
	Hectares *float64
}

// UpdateFarm applies the non-nil fields. A rename re-checks the
// account-wide uniqueness against every farm but this one.
func (u Usecases) UpdateFarm(ctx context.Context, id uuid.UUID, in UpdateFarmInput) (*types.Farm, error) {
	dbc := dbctx.Context{Ctx: ctx}

	farm, err := u.farm(dbc, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apierr.Validation("farm_name_required", nil)
		}
		if !strings.EqualFold(name, farm.Name) {
			dup, err := u.deps.Farms.FindByName(dbc, name)
			if err != nil {
				return nil, err
			}
			if dup != nil && dup.ID != farm.ID {
				return nil, apierr.Conflict("farm_name_duplicated", fmt.Errorf("farm %q already exists", name))
			}
		}
		farm.Name = name
	}
	if in.Location != nil {
		farm.Location = strings.TrimSpace(*in.Location)
	}
	if in.Timezone != nil {
		tz := strings.TrimSpace(*in.Timezone)
		if err := validTimezone(tz); err != nil {
			return nil, err
		}
		farm.Timezone = tz
	}
	if in.Hectares != nil {
		if *in.Hectares <= 0 {
			return nil, apierr.Validation("invalid_hectares", fmt.Errorf("hectares must be positive, got %v", *in.Hectares))
		}
		farm.Hectares = in.Hectares
	}

	if err := u.deps.Farms.Update(dbc, farm); err != nil {
		return nil, err
	}
	return farm, nil
}

// DeleteFarm removes a farm that never ran a cycle. Anything with
// cycle history stays, closed or not.
func (u Usecases) DeleteFarm(ctx context.Context, id uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	farm, err := u.farm(dbc, id)
	if err != nil {
		return err
	}
	cycles, err := u.deps.Cycles.ListByFarm(dbc, farm.ID)
	if err != nil {
		return err
	}
	if len(cycles) > 0 {
		return apierr.Conflict("farm_in_use", fmt.Errorf("farm %q has %d cycles", farm.Name, len(cycles)))
	}
	if err := u.deps.Farms.SoftDeleteByID(dbc, farm.ID); err != nil {
		return err
	}
	u.deps.Log.Info("farm deleted", "farm_id", farm.ID, "name", farm.Name)
	return nil
}
