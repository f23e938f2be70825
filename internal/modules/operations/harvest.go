package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
	"github.com/aquaforge/pondops-backend/internal/modules/projection"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/realtime"
)

type CreateWaveInput struct {
	CycleID     uuid.UUID
	Name        string
	Kind        string
	WindowStart time.Time
	WindowEnd   time.Time

	TargetWithdrawalOrgM2 *float64
	Note                  string

	// PlanLines auto-generates one pending line per active pond with a
	// confirmed seeding, dated at the window start.
	PlanLines bool
}

type WaveDetail struct {
	Wave  *types.HarvestWave
	Lines []*types.HarvestWaveLine
}

// CreateWave schedules a harvest window for a cycle, optionally
// pre-populating its per-pond lines.
func (u Usecases) CreateWave(ctx context.Context, in CreateWaveInput) (*WaveDetail, error) {
	kind := in.Kind
	if kind == "" {
		kind = types.HarvestPartial
	}
	if kind != types.HarvestPartial && kind != types.HarvestFinal {
		return nil, apierr.Validation("invalid_wave_kind", fmt.Errorf("kind must be partial or final, got %q", in.Kind))
	}
	start := dateOnly(in.WindowStart)
	end := dateOnly(in.WindowEnd)
	if end.Before(start) {
		return nil, apierr.Validation("date_range_invalid", fmt.Errorf("window end %s precedes start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02")))
	}
	if in.TargetWithdrawalOrgM2 != nil && *in.TargetWithdrawalOrgM2 <= 0 {
		return nil, apierr.Validation("invalid_target_withdrawal", fmt.Errorf("target withdrawal must be positive, got %v", *in.TargetWithdrawalOrgM2))
	}

	var detail WaveDetail
	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		cyc, err := u.activeCycle(dbc, in.CycleID)
		if err != nil {
			return err
		}
		if start.Before(dateOnly(cyc.StartDate)) {
			return apierr.Validation("window_out_of_cycle", fmt.Errorf("window start %s precedes cycle start", start.Format("2006-01-02")))
		}
		if cyc.CloseDate != nil && end.After(dateOnly(*cyc.CloseDate)) {
			return apierr.Validation("window_out_of_cycle", fmt.Errorf("window end %s is past cycle close", end.Format("2006-01-02")))
		}

		name := in.Name
		if name == "" {
			name = fmt.Sprintf("%s wave %s", kind, start.Format("2006-01-02"))
		}

		wave, err := u.deps.Waves.Create(dbc, &types.HarvestWave{
			CycleID:               in.CycleID,
			Name:                  name,
			Kind:                  kind,
			WindowStart:           start,
			WindowEnd:             end,
			Status:                types.WavePlanned,
			TargetWithdrawalOrgM2: in.TargetWithdrawalOrgM2,
			Note:                  in.Note,
		})
		if err != nil {
			return err
		}
		detail.Wave = wave

		if !in.PlanLines {
			return nil
		}
		pondIDs, err := u.seededPondIDs(dbc, cyc, nil)
		if err != nil {
			return err
		}
		if len(pondIDs) == 0 {
			return nil
		}
		detail.Lines, err = u.deps.WaveLines.CreateBatch(dbc, waveLineRows(wave, pondIDs))
		return err
	})
	if err != nil {
		return nil, err
	}

	u.deps.Log.Info("harvest wave created",
		"wave_id", detail.Wave.ID, "cycle_id", in.CycleID, "kind", detail.Wave.Kind,
		"window_start", detail.Wave.WindowStart.Format("2006-01-02"), "lines", len(detail.Lines))
	return &detail, nil
}

// seededPondIDs lists active ponds holding a confirmed seeding in the
// cycle, in pond-name order. Ponds in skip are left out.
func (u Usecases) seededPondIDs(dbc dbctx.Context, cyc *types.Cycle, skip map[uuid.UUID]bool) ([]uuid.UUID, error) {
	plans, err := u.deps.Seeding.ListConfirmedByCycle(dbc, cyc.ID)
	if err != nil {
		return nil, err
	}
	confirmed := make(map[uuid.UUID]bool, len(plans))
	for _, p := range plans {
		confirmed[p.PondID] = true
	}
	ponds, err := u.deps.Ponds.ListActiveByFarm(dbc, cyc.FarmID)
	if err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, p := range ponds {
		if confirmed[p.ID] && !skip[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out, nil
}

func waveLineRows(wave *types.HarvestWave, pondIDs []uuid.UUID) []*types.HarvestWaveLine {
	rows := make([]*types.HarvestWaveLine, 0, len(pondIDs))
	for _, pondID := range pondIDs {
		planned := wave.WindowStart
		rows = append(rows, &types.HarvestWaveLine{
			WaveID:                 wave.ID,
			PondID:                 pondID,
			PlannedDate:            &planned,
			PlannedWithdrawalOrgM2: wave.TargetWithdrawalOrgM2,
		})
	}
	return rows
}

// SyncWaveLines backfills lines for ponds whose seeding was confirmed
// after the wave was created. Returns only the newly created lines.
func (u Usecases) SyncWaveLines(ctx context.Context, waveID uuid.UUID) ([]*types.HarvestWaveLine, error) {
	var created []*types.HarvestWaveLine

	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		wave, err := u.deps.Waves.GetByID(dbc, waveID)
		if err != nil {
			return err
		}
		if wave == nil {
			return apierr.NotFound("harvest_wave_not_found", nil)
		}
		if wave.Status == types.WaveCancelled {
			return apierr.Conflict("wave_cancelled", nil)
		}
		cyc, err := u.activeCycle(dbc, wave.CycleID)
		if err != nil {
			return err
		}

		existing, err := u.deps.WaveLines.ListByWave(dbc, waveID)
		if err != nil {
			return err
		}
		skip := make(map[uuid.UUID]bool, len(existing))
		for _, l := range existing {
			skip[l.PondID] = true
		}
		pondIDs, err := u.seededPondIDs(dbc, cyc, skip)
		if err != nil {
			return err
		}
		if len(pondIDs) == 0 {
			return nil
		}
		created, err = u.deps.WaveLines.CreateBatch(dbc, waveLineRows(wave, pondIDs))
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		u.deps.Log.Info("harvest wave lines synced", "wave_id", waveID, "created", len(created))
	}
	return created, nil
}

type ConfirmHarvestInput struct {
	LineID        uuid.UUID
	ConfirmedDate *time.Time

	ConfirmedWithdrawalOrgM2 *float64
	HarvestedBiomassKg       *float64
	AvgWeightG               *float64

	Note    string
	ActorID *uuid.UUID
}

// HarvestResult reports the confirmed line, the wave it advanced, and
// what the reforecast trigger did with the post-harvest survival.
type HarvestResult struct {
	Line       *types.HarvestWaveLine
	Wave       *types.HarvestWave
	Reforecast *projection.Outcome
}

// ConfirmHarvest records an executed harvest line. The minimum metric
// set is HarvestedBiomassKg, or AvgWeightG together with the withdrawal
// density; a missing withdrawal is derived from biomass over the pond
// surface when a weight is known. A confirmed line is terminal.
func (u Usecases) ConfirmHarvest(ctx context.Context, in ConfirmHarvestInput) (*HarvestResult, error) {
	if in.HarvestedBiomassKg != nil && *in.HarvestedBiomassKg <= 0 {
		return nil, apierr.Validation("invalid_harvest_metrics", fmt.Errorf("harvested_biomass_kg must be positive, got %v", *in.HarvestedBiomassKg))
	}
	if in.AvgWeightG != nil && *in.AvgWeightG <= 0 {
		return nil, apierr.Validation("invalid_harvest_metrics", fmt.Errorf("avg_weight_g must be positive, got %v", *in.AvgWeightG))
	}
	if in.ConfirmedWithdrawalOrgM2 != nil && *in.ConfirmedWithdrawalOrgM2 <= 0 {
		return nil, apierr.Validation("invalid_harvest_metrics", fmt.Errorf("confirmed_withdrawal_org_m2 must be positive, got %v", *in.ConfirmedWithdrawalOrgM2))
	}
	if in.HarvestedBiomassKg == nil && (in.AvgWeightG == nil || in.ConfirmedWithdrawalOrgM2 == nil) {
		return nil, apierr.Validation("harvest_metrics_missing",
			fmt.Errorf("requires harvested_biomass_kg or both avg_weight_g and confirmed_withdrawal_org_m2"))
	}

	var (
		line     *types.HarvestWaveLine
		wave     *types.HarvestWave
		estimate *float64
	)

	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		var err error
		line, err = u.deps.WaveLines.GetByID(dbc, in.LineID)
		if err != nil {
			return err
		}
		if line == nil {
			return apierr.NotFound("harvest_line_not_found", nil)
		}
		if line.Confirmed {
			return apierr.Conflict("harvest_already_confirmed", nil)
		}
		wave, err = u.deps.Waves.GetByID(dbc, line.WaveID)
		if err != nil {
			return err
		}
		if wave == nil {
			return apierr.NotFound("harvest_wave_not_found", nil)
		}
		if wave.Status == types.WaveCancelled {
			return apierr.Conflict("wave_cancelled", nil)
		}
		cyc, err := u.activeCycle(dbc, wave.CycleID)
		if err != nil {
			return err
		}

		when := in.ConfirmedDate
		if when == nil {
			when = line.PlannedDate
		}
		if when == nil {
			return apierr.Validation("harvest_date_required", nil)
		}
		day := dateOnly(*when)
		if err := dateInCycle(cyc, day, "harvest_date_out_of_cycle"); err != nil {
			return err
		}
		if day.Before(dateOnly(wave.WindowStart)) || day.After(dateOnly(wave.WindowEnd)) {
			return apierr.Validation("harvest_date_out_of_window", fmt.Errorf("%s outside window %s..%s",
				day.Format("2006-01-02"), wave.WindowStart.Format("2006-01-02"), wave.WindowEnd.Format("2006-01-02")))
		}

		plan, err := u.deps.Seeding.GetByCyclePond(dbc, cyc.ID, line.PondID)
		if err != nil {
			return err
		}
		if plan == nil {
			return apierr.Validation("seeding_missing", fmt.Errorf("pond has no seeding in this cycle"))
		}
		if plan.Status != types.SeedingConfirmed {
			return apierr.Validation("seeding_not_confirmed", fmt.Errorf("seeding must be confirmed before harvesting"))
		}
		pond, err := u.farmPond(dbc, cyc, line.PondID)
		if err != nil {
			return err
		}

		line.ConfirmedDate = &day
		if in.AvgWeightG != nil {
			line.AvgWeightG = in.AvgWeightG
		}
		if in.HarvestedBiomassKg != nil {
			line.HarvestedBiomassKg = in.HarvestedBiomassKg
		}
		if in.ConfirmedWithdrawalOrgM2 != nil {
			line.ConfirmedWithdrawalOrgM2 = in.ConfirmedWithdrawalOrgM2
		}
		if line.ConfirmedWithdrawalOrgM2 == nil {
			derived, err := u.deriveWithdrawal(dbc, cyc, line, pond)
			if err != nil {
				return err
			}
			line.ConfirmedWithdrawalOrgM2 = derived
		}
		line.Note = appendNote(line.Note, in.Note)
		line.Confirmed = true
		line.ConfirmedBy = in.ActorID
		if err := u.deps.WaveLines.Update(dbc, line); err != nil {
			return err
		}

		status, err := u.waveStatusAfterConfirm(dbc, wave.ID)
		if err != nil {
			return err
		}
		if status != wave.Status {
			if err := u.deps.Waves.UpdateFields(dbc, wave.ID, map[string]interface{}{"status": status}); err != nil {
				return err
			}
			wave.Status = status
		}

		estimate, err = u.postHarvestSurvival(dbc, cyc, pond, plan, line)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.deps.Log.Info("harvest confirmed",
		"line_id", line.ID, "wave_id", wave.ID, "cycle_id", wave.CycleID, "pond_id", line.PondID,
		"confirmed_date", line.ConfirmedDate.Format("2006-01-02"), "wave_status", wave.Status)
	announce(ctx, u.deps, wave.CycleID, realtime.SSEEventHarvestConfirmed, map[string]any{
		"line_id": line.ID, "wave_id": wave.ID, "pond_id": line.PondID,
	})

	res := &HarvestResult{Line: line, Wave: wave}
	if u.deps.Reforecaster != nil && estimate != nil {
		out := u.deps.Reforecaster.ObserveBestEffort(ctx, projection.Observation{
			CycleID:     wave.CycleID,
			EventDate:   *line.ConfirmedDate,
			SurvivalPct: estimate,
			Reason:      "harvest " + line.ConfirmedDate.Format("2006-01-02"),
		})
		res.Reforecast = &out
	}
	return res, nil
}

// deriveWithdrawal backs the withdrawal density out of harvested
// biomass: organisms = kg x 1000 / avg weight, spread over the pond
// surface. Nil when no weight or surface is available.
func (u Usecases) deriveWithdrawal(dbc dbctx.Context, cyc *types.Cycle, line *types.HarvestWaveLine, pond *types.Pond) (*float64, error) {
	if line.HarvestedBiomassKg == nil {
		return nil, nil
	}
	weight := line.AvgWeightG
	if weight == nil {
		sample, err := u.deps.Biometry.LatestByCyclePond(dbc, cyc.ID, line.PondID)
		if err != nil {
			return nil, err
		}
		if sample != nil {
			weight = &sample.AvgWeightG
		}
	}
	if weight == nil || *weight <= 0 || pond.SurfaceM2 <= 0 {
		return nil, nil
	}
	organisms := *line.HarvestedBiomassKg * 1000 / *weight
	v := round(organisms/pond.SurfaceM2, 4)
	return &v, nil
}

func (u Usecases) waveStatusAfterConfirm(dbc dbctx.Context, waveID uuid.UUID) (string, error) {
	lines, err := u.deps.WaveLines.ListByWave(dbc, waveID)
	if err != nil {
		return "", err
	}
	for _, l := range lines {
		if !l.Confirmed {
			return types.WaveInProgress, nil
		}
	}
	return types.WaveDone, nil
}

// postHarvestSurvival estimates the pond's survival after the
// withdrawal: current operational survival scaled by the share of the
// stocked base still in the water. Nil when the withdrawal or the
// stocked base is unknown.
func (u Usecases) postHarvestSurvival(dbc dbctx.Context, cyc *types.Cycle, pond *types.Pond, plan *types.SeedingPlan, line *types.HarvestWaveLine) (*float64, error) {
	if line.ConfirmedWithdrawalOrgM2 == nil {
		return nil, nil
	}
	base := ledger.Effective(pond.DensityOverrideOrgM2, &plan.DensityOrgM2)
	if base == nil || *base <= 0 {
		return nil, nil
	}
	sob, err := u.currentSurvival(dbc, cyc.ID, pond.ID)
	if err != nil {
		return nil, err
	}
	est := sob * (1 - *line.ConfirmedWithdrawalOrgM2 / *base)
	if est < 0 {
		est = 0
	}
	if est > 100 {
		est = 100
	}
	est = round(est, 2)
	return &est, nil
}

// CancelWave voids a wave's still-pending lines. Confirmed lines are
// history and keep their data.
func (u Usecases) CancelWave(ctx context.Context, waveID uuid.UUID) (*types.HarvestWave, error) {
	var wave *types.HarvestWave

	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		var err error
		wave, err = u.deps.Waves.GetByID(dbc, waveID)
		if err != nil {
			return err
		}
		if wave == nil {
			return apierr.NotFound("harvest_wave_not_found", nil)
		}
		switch wave.Status {
		case types.WaveCancelled:
			return apierr.Conflict("wave_already_cancelled", nil)
		case types.WaveDone:
			return apierr.Conflict("wave_already_done", nil)
		}
		if err := u.deps.Waves.UpdateFields(dbc, wave.ID, map[string]interface{}{"status": types.WaveCancelled}); err != nil {
			return err
		}
		wave.Status = types.WaveCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.deps.Log.Info("harvest wave cancelled", "wave_id", wave.ID, "cycle_id", wave.CycleID)
	return wave, nil
}

// GetWave returns a wave with its lines.
func (u Usecases) GetWave(ctx context.Context, waveID uuid.UUID) (*WaveDetail, error) {
	dbc := dbctx.Context{Ctx: ctx}
	wave, err := u.deps.Waves.GetByID(dbc, waveID)
	if err != nil {
		return nil, err
	}
	if wave == nil {
		return nil, apierr.NotFound("harvest_wave_not_found", nil)
	}
	lines, err := u.deps.WaveLines.ListByWave(dbc, waveID)
	if err != nil {
		return nil, err
	}
	return &WaveDetail{Wave: wave, Lines: lines}, nil
}

// ListWaves returns a cycle's waves ordered by window start.
func (u Usecases) ListWaves(ctx context.Context, cycleID uuid.UUID) ([]*types.HarvestWave, error) {
	return u.deps.Waves.ListByCycle(dbctx.Context{Ctx: ctx}, cycleID)
}
