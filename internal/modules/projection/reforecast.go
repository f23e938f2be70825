package projection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
	"github.com/aquaforge/pondops-backend/internal/modules/projection/curve"
	"github.com/aquaforge/pondops-backend/internal/observability"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/realtime"
)

// Config tunes the reforecast orchestrator. Trigger behavior is never
// read from ambient globals; whoever constructs the Reforecaster
// decides it here.
type Config struct {
	// HooksEnabled gates the best-effort triggers fired as side
	// effects of biometry and harvest writes.
	HooksEnabled bool `yaml:"hooks_enabled"`
	// AutoCreateDraft clones the cycle's best projection into a new
	// reforecast draft when an observation arrives and no draft
	// exists.
	AutoCreateDraft bool `yaml:"auto_create_draft"`

	WeightShape   curve.Shape `yaml:"weight_shape"`
	SurvivalShape curve.Shape `yaml:"survival_shape"`

	// Window aggregation tuning.
	WindowRadiusDays    int     `yaml:"window_radius_days"`
	CoverageThreshold   float64 `yaml:"coverage_threshold"`
	MinPondsForCoverage int     `yaml:"min_ponds_for_coverage"`
}

func DefaultConfig() Config {
	return Config{
		HooksEnabled:        true,
		AutoCreateDraft:     true,
		WeightShape:         curve.ShapeSCurve,
		SurvivalShape:       curve.ShapeLinear,
		WindowRadiusDays:    1,
		CoverageThreshold:   0.30,
		MinPondsForCoverage: 1,
	}
}

func (c Config) normalized() Config {
	if c.WeightShape == "" {
		c.WeightShape = curve.ShapeSCurve
	}
	if c.SurvivalShape == "" {
		c.SurvivalShape = curve.ShapeLinear
	}
	if c.WindowRadiusDays < 0 {
		c.WindowRadiusDays = 0
	}
	if c.CoverageThreshold < 0 {
		c.CoverageThreshold = 0
	}
	if c.MinPondsForCoverage < 1 {
		c.MinPondsForCoverage = 1
	}
	return c
}

// Reforecaster mutates a cycle's draft projection in response to real
// observations.
type Reforecaster struct {
	deps UsecasesDeps
	cfg  Config
}

func NewReforecaster(deps UsecasesDeps, cfg Config) *Reforecaster {
	return &Reforecaster{deps: deps, cfg: cfg.normalized()}
}

func (r *Reforecaster) Config() Config { return r.cfg }

const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Outcome reports what a reforecast call actually did. Best-effort
// call sites read Status instead of relying on swallowed errors.
type Outcome struct {
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	HeaderID     *uuid.UUID `json:"header_id,omitempty"`
	WeekIdx      int        `json:"week_idx"`
	LinesRebuilt int        `json:"lines_rebuilt"`
}

func skipped(reason string) *Outcome { return &Outcome{Status: OutcomeSkipped, Reason: reason} }

type Observation struct {
	CycleID     uuid.UUID
	EventDate   time.Time
	WeightG     *float64
	SurvivalPct *float64
	Reason      string
	// Soft skips instead of failing when a foreign draft occupies the
	// cycle's single draft slot.
	Soft bool
}

// EnsureDraft returns the cycle's reforecast draft, cloning the best
// existing projection when none is open yet. In soft mode a foreign
// draft yields (nil, nil) instead of a conflict.
func (r *Reforecaster) EnsureDraft(ctx context.Context, cycleID uuid.UUID, soft bool) (*types.ProjectionHeader, error) {
	var header *types.ProjectionHeader
	err := r.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		h, _, err := r.ensureDraft(dbc, cycleID, soft)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// ensureDraft implements the single-draft rule inside the caller's
// transaction. Returns a skip reason instead of a header when the
// observation cannot land anywhere.
func (r *Reforecaster) ensureDraft(dbc dbctx.Context, cycleID uuid.UUID, soft bool) (*types.ProjectionHeader, string, error) {
	draft, err := r.deps.Headers.FindDraftByCycle(dbc, cycleID)
	if err != nil {
		return nil, "", err
	}
	if draft != nil {
		if draft.Source == types.SourceReforecast {
			return draft, "", nil
		}
		if soft {
			return nil, "another_draft_exists", nil
		}
		return nil, "", apierr.Conflict("draft_projection_already_exists", fmt.Errorf("cycle %s has a %s draft", cycleID, draft.Source))
	}

	if !r.cfg.AutoCreateDraft {
		return nil, "draft_auto_create_disabled", nil
	}
	return r.cloneBest(dbc, cycleID)
}

// cloneBest deep-copies the cycle's best header (current first, then
// published by recency, then newest) into a fresh reforecast draft.
func (r *Reforecaster) cloneBest(dbc dbctx.Context, cycleID uuid.UUID) (*types.ProjectionHeader, string, error) {
	source, err := r.bestCloneSource(dbc, cycleID)
	if err != nil {
		return nil, "", err
	}
	if source == nil {
		return nil, "no_source_projection", nil
	}

	count, err := r.deps.Headers.CountByCycle(dbc, cycleID)
	if err != nil {
		return nil, "", err
	}

	parent := source.ID
	draft := &types.ProjectionHeader{
		CycleID:                cycleID,
		Version:                fmt.Sprintf("v%d", count+1),
		Status:                 types.ProjectionDraft,
		Source:                 types.SourceReforecast,
		ParentVersionID:        &parent,
		FinalSurvivalTargetPct: source.FinalSurvivalTargetPct,
	}
	draft, err = r.deps.Headers.Create(dbc, draft)
	if err != nil {
		return nil, "", err
	}

	lines, err := r.deps.Lines.ListByHeader(dbc, source.ID)
	if err != nil {
		return nil, "", err
	}
	clones := make([]*types.ProjectionLine, 0, len(lines))
	for _, l := range lines {
		clones = append(clones, &types.ProjectionLine{
			HeaderID:         draft.ID,
			WeekIdx:          l.WeekIdx,
			PlanDate:         l.PlanDate,
			AgeDays:          l.AgeDays,
			WeightG:          l.WeightG,
			IncrementGWk:     l.IncrementGWk,
			SurvivalPct:      l.SurvivalPct,
			HarvestFlag:      l.HarvestFlag,
			WithdrawalOrgM2:  l.WithdrawalOrgM2,
			IsWeightAnchor:   l.IsWeightAnchor,
			IsSurvivalAnchor: l.IsSurvivalAnchor,
			AnchorReason:     l.AnchorReason,
			Note:             l.Note,
		})
	}
	if len(clones) > 0 {
		if _, err := r.deps.Lines.CreateBatch(dbc, clones); err != nil {
			return nil, "", err
		}
	}

	r.deps.Log.Info("reforecast draft cloned",
		"cycle_id", cycleID, "draft_id", draft.ID, "version", draft.Version,
		"parent_id", source.ID, "lines", len(clones))
	return draft, "", nil
}

func (r *Reforecaster) bestCloneSource(dbc dbctx.Context, cycleID uuid.UUID) (*types.ProjectionHeader, error) {
	if cur, err := r.deps.Headers.FindCurrentByCycle(dbc, cycleID); err != nil {
		return nil, err
	} else if cur != nil {
		return cur, nil
	}

	rows, err := r.deps.Headers.ListByCycle(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	var published, newest *types.ProjectionHeader
	for _, h := range rows {
		if h.Status == types.ProjectionCancelled {
			continue
		}
		if newest == nil {
			newest = h
		}
		if h.Status == types.ProjectionPublished && h.PublishedAt != nil {
			if published == nil || h.PublishedAt.After(*published.PublishedAt) {
				published = h
			}
		}
	}
	if published != nil {
		return published, nil
	}
	return newest, nil
}

// ObserveAndRebuild anchors an observed weight and/or survival on the
// draft line nearest to the event date and re-interpolates every
// non-anchored value around it.
func (r *Reforecaster) ObserveAndRebuild(ctx context.Context, obs Observation) (*Outcome, error) {
	if obs.WeightG == nil && obs.SurvivalPct == nil {
		return nil, apierr.Validation("observation_required", nil)
	}
	if obs.WeightG != nil && *obs.WeightG < 0 {
		return nil, apierr.Validation("negative_weight", fmt.Errorf("weight=%v", *obs.WeightG))
	}
	if obs.SurvivalPct != nil && *obs.SurvivalPct < 0 {
		return nil, apierr.Validation("negative_survival", fmt.Errorf("survival=%v", *obs.SurvivalPct))
	}

	start := time.Now()
	var out *Outcome
	err := r.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		draft, skipReason, err := r.ensureDraft(dbc, obs.CycleID, obs.Soft)
		if err != nil {
			return err
		}
		if draft == nil {
			out = skipped(skipReason)
			return nil
		}

		lines, err := r.deps.Lines.ListByHeader(dbc, draft.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			out = skipped("no_lines_in_draft")
			return nil
		}

		idx := nearestWeekIdx(lines, obs.EventDate)
		target := lines[idx]
		if obs.WeightG != nil {
			target.WeightG = curve.Round3(*obs.WeightG)
			target.IsWeightAnchor = true
		}
		if obs.SurvivalPct != nil {
			target.SurvivalPct = curve.Round2(curve.ClampPct(*obs.SurvivalPct))
			target.IsSurvivalAnchor = true
		}
		target.AnchorReason = appendReason(target.AnchorReason, obs.Reason)

		weights := make([]float64, len(lines))
		survival := make([]float64, len(lines))
		var weightAnchors, survivalAnchors []int
		for i, l := range lines {
			weights[i] = l.WeightG
			survival[i] = l.SurvivalPct
			if l.IsWeightAnchor {
				weightAnchors = append(weightAnchors, i)
			}
			if l.IsSurvivalAnchor {
				survivalAnchors = append(survivalAnchors, i)
			}
		}

		weights = curve.ReinterpolateWeight(weights, weightAnchors, r.cfg.WeightShape)
		survival = curve.ReinterpolateSurvival(survival, survivalAnchors, r.cfg.SurvivalShape)
		increments := curve.Increments(weights)

		for i, l := range lines {
			l.WeightG = weights[i]
			l.SurvivalPct = survival[i]
			l.IncrementGWk = increments[i]
		}
		if err := r.deps.Lines.SaveAll(dbc, lines); err != nil {
			return err
		}
		if err := r.deps.Headers.UpdateFields(dbc, draft.ID, map[string]interface{}{"updated_at": time.Now().UTC()}); err != nil {
			return err
		}

		id := draft.ID
		out = &Outcome{Status: OutcomeApplied, HeaderID: &id, WeekIdx: idx, LinesRebuilt: len(lines)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m := observability.Current(); m != nil {
		m.ObserveReforecast(obs.Reason, out.Status, time.Since(start))
	}
	if out.Status == OutcomeApplied {
		r.deps.Log.Info("reforecast applied",
			"cycle_id", obs.CycleID, "header_id", out.HeaderID,
			"week_idx", out.WeekIdx, "reason", obs.Reason,
			"weight_set", obs.WeightG != nil, "survival_set", obs.SurvivalPct != nil)
		announce(ctx, r.deps, obs.CycleID, realtime.SSEEventProjectionReforecast, map[string]any{
			"header_id": out.HeaderID,
			"week_idx":  out.WeekIdx,
			"reason":    obs.Reason,
		})
	} else {
		r.deps.Log.Debug("reforecast skipped", "cycle_id", obs.CycleID, "reason", out.Reason)
	}
	return out, nil
}

// ObserveBestEffort is the hook-safe entry point used as a side effect
// of unrelated writes. It never returns an error and never panics the
// primary transaction; failures come back as an Outcome.
func (r *Reforecaster) ObserveBestEffort(ctx context.Context, obs Observation) Outcome {
	if !r.cfg.HooksEnabled {
		return *skipped("hooks_disabled")
	}
	obs.Soft = true
	out, err := r.ObserveAndRebuild(ctx, obs)
	if err != nil {
		r.deps.Log.Warn("best-effort reforecast failed",
			"cycle_id", obs.CycleID, "reason", obs.Reason, "error", err)
		return Outcome{Status: OutcomeFailed, Reason: err.Error()}
	}
	return *out
}

func appendReason(existing, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return existing
	}
	if existing == "" {
		return reason
	}
	return existing + " | " + reason
}

// WindowObservation aggregates the freshest biometry of every pond
// inside a date window into one farm-level observation.
type WindowObservation struct {
	CycleID   uuid.UUID
	EventDate time.Time
	// Weekend aggregates Saturday and Sunday of the event's week and
	// anchors the result on the Sunday line.
	Weekend bool
	Reason  string
	Soft    bool
}

type windowAggregate struct {
	weight   *float64
	survival *float64
	measured int
	total    int
	coverage float64
}

// ObserveWindow rolls per-pond biometry inside the window up into a
// single weighted observation and applies it like any other one. Each
// pond's survival weighs in by its remaining stocked organisms, its
// weight by the estimated live organisms, so large ponds dominate the
// farm-level anchor the same way they dominate the real biomass.
func (r *Reforecaster) ObserveWindow(ctx context.Context, in WindowObservation) (*Outcome, error) {
	cyc, err := r.deps.Cycles.GetByID(dbctx.Context{Ctx: ctx}, in.CycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}

	start, end, anchor := r.windowFor(in)
	agg, err := r.aggregateWindow(ctx, cyc, start, end)
	if err != nil {
		return nil, err
	}

	switch {
	case agg.total == 0:
		return skipped("no_ponds"), nil
	case agg.measured < r.cfg.MinPondsForCoverage:
		return skipped("below_min_ponds"), nil
	case agg.coverage < r.cfg.CoverageThreshold:
		return skipped("below_coverage_threshold"), nil
	case agg.weight == nil && agg.survival == nil:
		return skipped("no_aggregated_values"), nil
	}

	reason := in.Reason
	if reason == "" {
		reason = "bio_window_agg"
	}
	return r.ObserveAndRebuild(ctx, Observation{
		CycleID:     in.CycleID,
		EventDate:   anchor,
		WeightG:     agg.weight,
		SurvivalPct: agg.survival,
		Reason:      reason,
		Soft:        in.Soft,
	})
}

// windowFor resolves the aggregation window: the weekend of the event's
// week (anchored on Sunday), or event date ± the configured radius.
func (r *Reforecaster) windowFor(in WindowObservation) (start, end, anchor time.Time) {
	d := dateOnly(in.EventDate)
	if in.Weekend {
		monday := d.AddDate(0, 0, -mondayOffset(d))
		saturday := monday.AddDate(0, 0, 5)
		sunday := monday.AddDate(0, 0, 6)
		return saturday, sunday, sunday
	}
	radius := r.cfg.WindowRadiusDays
	return d.AddDate(0, 0, -radius), d.AddDate(0, 0, radius), d
}

func mondayOffset(d time.Time) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}

func (r *Reforecaster) aggregateWindow(ctx context.Context, cyc *types.Cycle, start, end time.Time) (*windowAggregate, error) {
	dbc := dbctx.Context{Ctx: ctx}

	ponds, err := r.deps.Ponds.ListByFarm(dbc, cyc.FarmID)
	if err != nil {
		return nil, err
	}
	agg := &windowAggregate{total: len(ponds)}
	if agg.total == 0 {
		return agg, nil
	}

	var weightX, weightW, survX, survW float64
	for _, pond := range ponds {
		bio, err := r.deps.Biometry.LatestInRange(dbc, cyc.ID, pond.ID, start, end)
		if err != nil {
			return nil, err
		}
		if bio == nil {
			continue
		}
		agg.measured++

		plan, err := r.deps.Seeding.GetByCyclePond(dbc, cyc.ID, pond.ID)
		if err != nil {
			return nil, err
		}
		var planDensity *float64
		if plan != nil {
			planDensity = &plan.DensityOrgM2
		}
		base := ledger.Effective(pond.DensityOverrideOrgM2, planDensity)
		if base == nil || pond.SurfaceM2 <= 0 {
			continue
		}

		withdrawn, err := r.confirmedWithdrawal(dbc, cyc.ID, pond.ID)
		if err != nil {
			return nil, err
		}
		baseWeight := ledger.RemainingDensity(*base, withdrawn) * pond.SurfaceM2

		sob := 100.0
		if bio.SurvivalPct != nil {
			sob = *bio.SurvivalPct
			survX += sob * baseWeight
			survW += baseWeight
		}
		if organisms := baseWeight * (sob / 100); organisms > 0 {
			weightX += bio.AvgWeightG * organisms
			weightW += organisms
		}
	}

	if weightW > 0 {
		v := weightX / weightW
		agg.weight = &v
	}
	if survW > 0 {
		v := survX / survW
		agg.survival = &v
	}
	agg.coverage = float64(agg.measured) / float64(agg.total)
	return agg, nil
}

func (r *Reforecaster) confirmedWithdrawal(dbc dbctx.Context, cycleID, pondID uuid.UUID) (float64, error) {
	rows, err := r.deps.WaveLines.ListConfirmedByCyclePond(dbc, cycleID, pondID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, l := range rows {
		if l.ConfirmedWithdrawalOrgM2 != nil {
			total += *l.ConfirmedWithdrawalOrgM2
		}
	}
	return total, nil
}
