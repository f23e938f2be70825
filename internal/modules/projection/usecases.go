package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/projection/curve"
	"github.com/aquaforge/pondops-backend/internal/observability"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
	"github.com/aquaforge/pondops-backend/internal/realtime"
	"github.com/aquaforge/pondops-backend/internal/realtime/bus"
)

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Cycles    repos.CycleRepo
	Seeding   repos.SeedingPlanRepo
	Headers   repos.ProjectionHeaderRepo
	Lines     repos.ProjectionLineRepo
	Ponds     repos.PondRepo
	Waves     repos.HarvestWaveRepo
	WaveLines repos.HarvestWaveLineRepo
	Biometry  repos.BiometryRepo

	// Optional: fan out projection lifecycle events over SSE.
	Bus bus.Bus
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type CreateFromPlansInput struct {
	CycleID          uuid.UUID
	StartDate        *time.Time
	Weeks            int
	InitialWeightG   *float64
	FinalWeightG     float64
	FinalSurvivalPct float64
	Shape            string
	Harvests         []HarvestEvent
	// Derive harvest flags from the cycle's planned waves when no
	// explicit events were supplied.
	UseExistingWaves bool
	Version          string
}

type CreateResult struct {
	Header   *types.ProjectionHeader `json:"header"`
	Lines    []*types.ProjectionLine `json:"lines"`
	Warnings []string                `json:"warnings"`
}

// CreateFromPlans builds a fresh weekly projection for the cycle from
// target curve parameters. The first projection of a cycle is
// published and made current immediately; later ones land as the
// cycle's single draft.
func (u Usecases) CreateFromPlans(ctx context.Context, in CreateFromPlansInput) (*CreateResult, error) {
	cyc, err := u.deps.Cycles.GetByID(dbctx.Context{Ctx: ctx}, in.CycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}
	if cyc.Status == types.CycleClosed {
		return nil, apierr.Conflict("cycle_closed", nil)
	}

	shape, err := validateShape(in.Shape, curve.ShapeSCurve)
	if err != nil {
		return nil, err
	}

	start := cyc.StartDate
	if in.StartDate != nil {
		start = *in.StartDate
	}

	initial := 0.0
	if in.InitialWeightG != nil {
		initial = *in.InitialWeightG
	} else if w := u.seedingInitialWeight(ctx, in.CycleID); w != nil {
		initial = *w
	}

	harvests := in.Harvests
	if len(harvests) == 0 && in.UseExistingWaves {
		harvests = u.deriveHarvestsFromWaves(ctx, in.CycleID, start, in.Weeks)
	}

	tl, err := BuildTimeline(TimelineParams{
		StartDate:        start,
		Weeks:            in.Weeks,
		InitialWeightG:   initial,
		FinalWeightG:     in.FinalWeightG,
		FinalSurvivalPct: in.FinalSurvivalPct,
		WeightShape:      shape,
		Harvests:         harvests,
	})
	if err != nil {
		return nil, err
	}

	target := curve.ClampPct(in.FinalSurvivalPct)
	header := &types.ProjectionHeader{
		CycleID:                in.CycleID,
		Status:                 types.ProjectionDraft,
		Source:                 types.SourceFromPlans,
		FinalSurvivalTargetPct: &target,
	}
	res, err := u.persistNew(ctx, header, tl, in.Version)
	if err != nil {
		return nil, err
	}

	if res.Header.IsCurrent {
		announce(ctx, u.deps, in.CycleID, realtime.SSEEventProjectionPublished, map[string]any{
			"header_id": res.Header.ID,
			"version":   res.Header.Version,
		})
	}
	return res, nil
}

type CreateFromTimelineInput struct {
	CycleID  uuid.UUID
	Source   string
	Lines    []types.ProjectionLine
	Warnings []string
	Version  string

	FinalSurvivalPct *float64
}

// CreateFromTimeline persists an externally built timeline (parsed
// from an uploaded plan document) as a new projection. Week indexes,
// ages and increments are normalized here so malformed input cannot
// break the per-header invariants.
func (u Usecases) CreateFromTimeline(ctx context.Context, in CreateFromTimelineInput) (*CreateResult, error) {
	cyc, err := u.deps.Cycles.GetByID(dbctx.Context{Ctx: ctx}, in.CycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}
	if len(in.Lines) == 0 {
		return nil, apierr.Validation("timeline_lines_required", nil)
	}

	lines := normalizeLines(in.Lines)
	source := in.Source
	if source == "" {
		source = types.SourceFromFile
	}

	header := &types.ProjectionHeader{
		CycleID:                in.CycleID,
		Status:                 types.ProjectionDraft,
		Source:                 source,
		FinalSurvivalTargetPct: in.FinalSurvivalPct,
	}
	tl := &Timeline{Lines: lines, Warnings: in.Warnings}
	res, err := u.persistNew(ctx, header, tl, in.Version)
	if err != nil {
		return nil, err
	}

	if res.Header.IsCurrent {
		announce(ctx, u.deps, in.CycleID, realtime.SSEEventProjectionPublished, map[string]any{
			"header_id": res.Header.ID,
			"version":   res.Header.Version,
		})
	}
	return res, nil
}

// persistNew runs the shared insert path: single-draft check, version
// labeling, auto-publish when the cycle has no projection yet.
func (u Usecases) persistNew(ctx context.Context, header *types.ProjectionHeader, tl *Timeline, explicitVersion string) (*CreateResult, error) {
	warnings := tl.Warnings
	var outLines []*types.ProjectionLine

	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		count, err := u.deps.Headers.CountByCycle(dbc, header.CycleID)
		if err != nil {
			return err
		}
		isFirst := count == 0

		if explicitVersion != "" {
			taken, err := u.versionTaken(dbc, header.CycleID, explicitVersion)
			if err != nil {
				return err
			}
			if taken {
				return apierr.Conflict("projection_version_exists", fmt.Errorf("version %s", explicitVersion))
			}
			header.Version = explicitVersion
		} else {
			header.Version = fmt.Sprintf("v%d", count+1)
		}

		if isFirst {
			now := time.Now().UTC()
			header.Status = types.ProjectionPublished
			header.IsCurrent = true
			header.PublishedAt = &now
			warnings = append(warnings, "auto_published=true first_projection_in_cycle")
		} else {
			warnings = append(warnings, "auto_published=false current_projection_already_exists")
			existing, err := u.deps.Headers.FindDraftByCycle(dbc, header.CycleID)
			if err != nil {
				return err
			}
			if existing != nil {
				return apierr.Conflict("draft_projection_already_exists", nil)
			}
		}

		if len(warnings) > 0 {
			raw, err := json.Marshal(warnings)
			if err != nil {
				return err
			}
			header.Warnings = raw
		}

		created, err := u.deps.Headers.Create(dbc, header)
		if err != nil {
			return err
		}
		header = created

		rows := make([]*types.ProjectionLine, len(tl.Lines))
		for i := range tl.Lines {
			ln := tl.Lines[i]
			ln.ID = uuid.Nil
			ln.HeaderID = header.ID
			rows[i] = &ln
		}
		outLines, err = u.deps.Lines.CreateBatch(dbc, rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.deps.Log.Info("projection created",
		"cycle_id", header.CycleID, "header_id", header.ID,
		"version", header.Version, "status", header.Status, "lines", len(outLines))
	if m := observability.Current(); m != nil {
		m.IncProjectionCreated(header.Source)
		if header.IsCurrent {
			m.IncProjectionPublished()
		}
	}

	return &CreateResult{Header: header, Lines: outLines, Warnings: warnings}, nil
}

func (u Usecases) versionTaken(dbc dbctx.Context, cycleID uuid.UUID, version string) (bool, error) {
	rows, err := u.deps.Headers.ListByCycle(dbc, cycleID)
	if err != nil {
		return false, err
	}
	for _, h := range rows {
		if h.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (u Usecases) seedingInitialWeight(ctx context.Context, cycleID uuid.UUID) *float64 {
	plans, err := u.deps.Seeding.ListByCycle(dbctx.Context{Ctx: ctx}, cycleID)
	if err != nil || len(plans) == 0 {
		return nil
	}
	var best *types.SeedingPlan
	for _, p := range plans {
		if p.InitialWeightG == nil {
			continue
		}
		if best == nil || p.PlannedDate.Before(best.PlannedDate) {
			best = p
		}
	}
	if best == nil {
		return nil
	}
	return best.InitialWeightG
}

// deriveHarvestsFromWaves turns the cycle's planned waves into harvest
// flags, snapping each wave's window end to the nearest plan week.
// Final kind maps to a final flag; targets become withdrawal values.
func (u Usecases) deriveHarvestsFromWaves(ctx context.Context, cycleID uuid.UUID, start time.Time, weeks int) []HarvestEvent {
	if weeks < 1 {
		return nil
	}
	waves, err := u.deps.Waves.ListByCycle(dbctx.Context{Ctx: ctx}, cycleID)
	if err != nil || len(waves) == 0 {
		return nil
	}

	byWeek := map[int]HarvestEvent{}
	for _, w := range waves {
		if w.Status == types.WaveCancelled {
			continue
		}
		idx := weekIndexForDate(start, w.WindowEnd, weeks)
		final := w.Kind == types.HarvestFinal
		byWeek[idx] = HarvestEvent{
			WeekIdx:         idx,
			WithdrawalOrgM2: w.TargetWithdrawalOrgM2,
			Final:           &final,
		}
	}

	out := make([]HarvestEvent, 0, len(byWeek))
	for _, ev := range byWeek {
		out = append(out, ev)
	}
	return out
}

// weekIndexForDate snaps a date onto the closest week index of a plan
// that starts at start, clamped to [0, weeks-1].
func weekIndexForDate(start, target time.Time, weeks int) int {
	days := int(dateOnly(target).Sub(dateOnly(start)).Hours() / 24)
	idx := (days + 3) / 7
	if days < 0 {
		idx = 0
	}
	if idx < 0 {
		idx = 0
	}
	if idx > weeks-1 {
		idx = weeks - 1
	}
	return idx
}

// normalizeLines reindexes externally supplied rows and re-derives
// everything that must stay internally consistent: week index order,
// age in days, clamped survival and weight increments.
func normalizeLines(in []types.ProjectionLine) []types.ProjectionLine {
	lines := make([]types.ProjectionLine, len(in))
	copy(lines, in)
	sortLinesByDate(lines)

	weights := make([]float64, len(lines))
	for i := range lines {
		lines[i].WeekIdx = i
		lines[i].AgeDays = 7 * i
		lines[i].WeightG = curve.Round3(lines[i].WeightG)
		lines[i].SurvivalPct = curve.Round2(curve.ClampPct(lines[i].SurvivalPct))
		weights[i] = lines[i].WeightG
	}
	incs := curve.Increments(weights)
	for i := range lines {
		lines[i].IncrementGWk = incs[i]
	}
	return lines
}

func sortLinesByDate(lines []types.ProjectionLine) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j].PlanDate.Before(lines[j-1].PlanDate); j-- {
			lines[j], lines[j-1] = lines[j-1], lines[j]
		}
	}
}

type PublishInput struct {
	HeaderID   uuid.UUID
	SetCurrent bool
}

// Publish moves a header to published and, by default, makes it the
// cycle's current projection, atomically clearing the flag on every
// other header of the cycle.
func (u Usecases) Publish(ctx context.Context, in PublishInput) (*types.ProjectionHeader, error) {
	var header *types.ProjectionHeader
	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		h, err := u.deps.Headers.GetByID(dbc, in.HeaderID)
		if err != nil {
			return err
		}
		if h == nil {
			return apierr.NotFound("projection_not_found", nil)
		}
		if h.Status == types.ProjectionCancelled {
			return apierr.Conflict("projection_cancelled", nil)
		}

		now := time.Now().UTC()
		h.Status = types.ProjectionPublished
		if h.PublishedAt == nil {
			h.PublishedAt = &now
		}
		if in.SetCurrent {
			if err := u.deps.Headers.ClearCurrentExcept(dbc, h.CycleID, h.ID); err != nil {
				return err
			}
			h.IsCurrent = true
		}
		if err := u.deps.Headers.Update(dbc, h); err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.deps.Log.Info("projection published",
		"cycle_id", header.CycleID, "header_id", header.ID,
		"version", header.Version, "is_current", header.IsCurrent)
	if m := observability.Current(); m != nil {
		m.IncProjectionPublished()
	}
	announce(ctx, u.deps, header.CycleID, realtime.SSEEventProjectionPublished, map[string]any{
		"header_id": header.ID,
		"version":   header.Version,
	})
	return header, nil
}

// SetCurrent switches which published header the cycle reads from.
func (u Usecases) SetCurrent(ctx context.Context, headerID uuid.UUID) (*types.ProjectionHeader, error) {
	var header *types.ProjectionHeader
	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		h, err := u.deps.Headers.GetByID(dbc, headerID)
		if err != nil {
			return err
		}
		if h == nil {
			return apierr.NotFound("projection_not_found", nil)
		}
		if h.Status != types.ProjectionPublished {
			return apierr.Conflict("projection_not_published", nil)
		}

		if err := u.deps.Headers.ClearCurrentExcept(dbc, h.CycleID, h.ID); err != nil {
			return err
		}
		h.IsCurrent = true
		if err := u.deps.Headers.Update(dbc, h); err != nil {
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

func (u Usecases) ListVersions(ctx context.Context, cycleID uuid.UUID) ([]*types.ProjectionHeader, error) {
	return u.deps.Headers.ListByCycle(dbctx.Context{Ctx: ctx}, cycleID)
}

type Detail struct {
	Header *types.ProjectionHeader `json:"header"`
	Lines  []*types.ProjectionLine `json:"lines"`
}

func (u Usecases) GetDetail(ctx context.Context, headerID uuid.UUID) (*Detail, error) {
	dbc := dbctx.Context{Ctx: ctx}
	h, err := u.deps.Headers.GetByID(dbc, headerID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, apierr.NotFound("projection_not_found", nil)
	}
	lines, err := u.deps.Lines.ListByHeader(dbc, headerID)
	if err != nil {
		return nil, err
	}
	return &Detail{Header: h, Lines: lines}, nil
}

// ReplaceLines swaps the full weekly grid of a draft or in-review
// header. Published data stays immutable; supplied rows are normalized
// the same way file-sourced timelines are.
func (u Usecases) ReplaceLines(ctx context.Context, headerID uuid.UUID, lines []types.ProjectionLine) (*Detail, error) {
	if len(lines) == 0 {
		return nil, apierr.Validation("timeline_lines_required", nil)
	}

	var header *types.ProjectionHeader
	var outLines []*types.ProjectionLine
	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		h, err := u.deps.Headers.GetByID(dbc, headerID)
		if err != nil {
			return err
		}
		if h == nil {
			return apierr.NotFound("projection_not_found", nil)
		}
		if h.Status == types.ProjectionPublished || h.IsCurrent {
			return apierr.Conflict("projection_locked", nil)
		}

		if err := u.deps.Lines.DeleteByHeader(dbc, headerID); err != nil {
			return err
		}
		normalized := normalizeLines(lines)
		rows := make([]*types.ProjectionLine, len(normalized))
		for i := range normalized {
			ln := normalized[i]
			ln.ID = uuid.Nil
			ln.HeaderID = headerID
			rows[i] = &ln
		}
		outLines, err = u.deps.Lines.CreateBatch(dbc, rows)
		if err != nil {
			return err
		}
		header = h
		return u.deps.Headers.UpdateFields(dbc, headerID, map[string]interface{}{"updated_at": time.Now().UTC()})
	})
	if err != nil {
		return nil, err
	}
	return &Detail{Header: header, Lines: outLines}, nil
}

// Cancel retires a draft without publishing it, freeing the cycle's
// single draft slot.
func (u Usecases) Cancel(ctx context.Context, headerID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	h, err := u.deps.Headers.GetByID(dbc, headerID)
	if err != nil {
		return err
	}
	if h == nil {
		return apierr.NotFound("projection_not_found", nil)
	}
	if h.Status != types.ProjectionDraft && h.Status != types.ProjectionInReview {
		return apierr.Conflict("projection_locked", nil)
	}
	return u.deps.Headers.UpdateFields(dbc, headerID, map[string]interface{}{
		"status":     types.ProjectionCancelled,
		"updated_at": time.Now().UTC(),
	})
}

// Delete soft-removes a never-published header.
func (u Usecases) Delete(ctx context.Context, headerID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	h, err := u.deps.Headers.GetByID(dbc, headerID)
	if err != nil {
		return err
	}
	if h == nil {
		return apierr.NotFound("projection_not_found", nil)
	}
	if h.Status == types.ProjectionPublished || h.IsCurrent {
		return apierr.Conflict("projection_locked", nil)
	}
	return u.deps.Headers.SoftDeleteByID(dbc, headerID)
}

// BestHeader resolves which projection a cycle should read from: the
// draft when one exists (work in progress is more current), otherwise
// the current published header.
func (u Usecases) BestHeader(ctx context.Context, cycleID uuid.UUID) (*types.ProjectionHeader, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if draft, err := u.deps.Headers.FindDraftByCycle(dbc, cycleID); err != nil {
		return nil, err
	} else if draft != nil {
		return draft, nil
	}
	return u.deps.Headers.FindCurrentByCycle(dbc, cycleID)
}

func announce(ctx context.Context, deps UsecasesDeps, cycleID uuid.UUID, event realtime.SSEEvent, data any) {
	if deps.Bus == nil {
		return
	}
	msg := realtime.SSEMessage{Channel: realtime.CycleChannel(cycleID), Event: event, Data: data}
	if err := deps.Bus.Publish(ctx, msg); err != nil {
		deps.Log.Warn("sse publish failed", "event", event, "cycle_id", cycleID, "error", err)
	}
}
