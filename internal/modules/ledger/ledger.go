package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

// Where a snapshot's survival and weight came from. Operational
// observations always beat plan data; the plan beats defaults.
const (
	SurvivalFromOperational = "operational"
	SurvivalFromProjection  = "projection"
	SurvivalSeedDefault     = "seed_default"

	WeightFromBiometry   = "biometry"
	WeightFromProjection = "projection"
	WeightFromSeeding    = "seeding"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Cycles    repos.CycleRepo
	Ponds     repos.PondRepo
	Seeding   repos.SeedingPlanRepo
	Headers   repos.ProjectionHeaderRepo
	Lines     repos.ProjectionLineRepo
	Biometry  repos.BiometryRepo
	Survival  repos.SurvivalChangeRepo
	WaveLines repos.HarvestWaveLineRepo
}

// Usecases resolves the operational state of ponds inside a cycle.
// Everything here is read-only; no method opens a transaction.
type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

// PondSnapshot is one pond's resolved state at a point in time: the
// stocking baseline, what has been withdrawn, and the freshest
// survival and weight with their provenance.
type PondSnapshot struct {
	PondID    uuid.UUID `json:"pond_id"`
	PondName  string    `json:"pond_name"`
	SurfaceM2 float64   `json:"surface_m2"`

	SeedingConfirmed bool `json:"seeding_confirmed"`

	BaseDensityOrgM2      *float64 `json:"base_density_org_m2,omitempty"`
	WithdrawnDensityOrgM2 float64  `json:"withdrawn_density_org_m2"`

	SurvivalPct    float64 `json:"survival_pct"`
	SurvivalSource string  `json:"survival_source"`

	WeightG      *float64 `json:"weight_g,omitempty"`
	WeightSource string   `json:"weight_source,omitempty"`

	LiveDensityOrgM2 float64 `json:"live_density_org_m2"`
	OrganismsAlive   float64 `json:"organisms_alive"`
	BiomassKg        float64 `json:"biomass_kg"`

	LastBiometryAt *time.Time `json:"last_biometry_at,omitempty"`
}

// cycleScope caches the per-cycle state every pond snapshot reads: the
// best header's lines, resolved once.
type cycleScope struct {
	cycle *types.Cycle
	lines []*types.ProjectionLine
	at    time.Time
}

func (u Usecases) scope(dbc dbctx.Context, cycleID uuid.UUID, at time.Time) (*cycleScope, error) {
	cyc, err := u.deps.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}

	header, err := u.bestHeader(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	var lines []*types.ProjectionLine
	if header != nil {
		lines, err = u.deps.Lines.ListByHeader(dbc, header.ID)
		if err != nil {
			return nil, err
		}
	}
	return &cycleScope{cycle: cyc, lines: lines, at: at}, nil
}

// bestHeader mirrors the read policy of the projection module: an open
// draft reflects the latest observations, so it wins over the current
// published header.
func (u Usecases) bestHeader(dbc dbctx.Context, cycleID uuid.UUID) (*types.ProjectionHeader, error) {
	if draft, err := u.deps.Headers.FindDraftByCycle(dbc, cycleID); err != nil {
		return nil, err
	} else if draft != nil {
		return draft, nil
	}
	return u.deps.Headers.FindCurrentByCycle(dbc, cycleID)
}

// BestLines returns the week-ordered rows of the header the ledger
// reads from, or nil when the cycle has no usable header. Aggregation
// code shares this so chart series and snapshots never disagree on
// which plan they describe.
func (u Usecases) BestLines(ctx context.Context, cycleID uuid.UUID) ([]*types.ProjectionLine, error) {
	dbc := dbctx.Context{Ctx: ctx}

	header, err := u.bestHeader(dbc, cycleID)
	if err != nil || header == nil {
		return nil, err
	}
	return u.deps.Lines.ListByHeader(dbc, header.ID)
}

// Snapshot resolves a single pond's state inside the cycle as of at.
func (u Usecases) Snapshot(ctx context.Context, cycleID, pondID uuid.UUID, at time.Time) (*PondSnapshot, error) {
	dbc := dbctx.Context{Ctx: ctx}

	sc, err := u.scope(dbc, cycleID, at)
	if err != nil {
		return nil, err
	}
	pond, err := u.deps.Ponds.GetByID(dbc, pondID)
	if err != nil {
		return nil, err
	}
	if pond == nil {
		return nil, apierr.NotFound("pond_not_found", nil)
	}
	return u.buildSnapshot(dbc, sc, pond)
}

// Snapshots resolves every active, confirmed-seeded pond of the
// cycle's farm. Ponds without a confirmed seeding never enter
// aggregation: their stocking baseline is not trustworthy yet.
func (u Usecases) Snapshots(ctx context.Context, cycleID uuid.UUID, at time.Time) ([]*PondSnapshot, error) {
	dbc := dbctx.Context{Ctx: ctx}

	sc, err := u.scope(dbc, cycleID, at)
	if err != nil {
		return nil, err
	}
	ponds, err := u.deps.Ponds.ListByFarm(dbc, sc.cycle.FarmID)
	if err != nil {
		return nil, err
	}

	out := make([]*PondSnapshot, 0, len(ponds))
	for _, pond := range ponds {
		if !pond.Active {
			continue
		}
		snap, err := u.buildSnapshot(dbc, sc, pond)
		if err != nil {
			return nil, err
		}
		if !snap.SeedingConfirmed {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (u Usecases) buildSnapshot(dbc dbctx.Context, sc *cycleScope, pond *types.Pond) (*PondSnapshot, error) {
	snap := &PondSnapshot{
		PondID:    pond.ID,
		PondName:  pond.Name,
		SurfaceM2: pond.SurfaceM2,
	}

	plan, err := u.deps.Seeding.GetByCyclePond(dbc, sc.cycle.ID, pond.ID)
	if err != nil {
		return nil, err
	}
	var planDensity *float64
	if plan != nil {
		planDensity = &plan.DensityOrgM2
		snap.SeedingConfirmed = plan.Status == types.SeedingConfirmed
	}
	snap.BaseDensityOrgM2 = Effective(pond.DensityOverrideOrgM2, planDensity)

	withdrawn, err := u.confirmedWithdrawal(dbc, sc.cycle.ID, pond.ID)
	if err != nil {
		return nil, err
	}
	snap.WithdrawnDensityOrgM2 = withdrawn

	nearest := NearestLine(sc.lines, sc.at)

	change, err := u.deps.Survival.LatestByCyclePond(dbc, sc.cycle.ID, pond.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case change != nil:
		snap.SurvivalPct = change.NewPct
		snap.SurvivalSource = SurvivalFromOperational
	case nearest != nil:
		snap.SurvivalPct = nearest.SurvivalPct
		snap.SurvivalSource = SurvivalFromProjection
	default:
		snap.SurvivalPct = 100
		snap.SurvivalSource = SurvivalSeedDefault
	}

	bio, err := u.deps.Biometry.LatestByCyclePond(dbc, sc.cycle.ID, pond.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case bio != nil:
		w := bio.AvgWeightG
		snap.WeightG = &w
		snap.WeightSource = WeightFromBiometry
		d := bio.SampleDate
		snap.LastBiometryAt = &d
	case nearest != nil:
		w := nearest.WeightG
		snap.WeightG = &w
		snap.WeightSource = WeightFromProjection
	case plan != nil && plan.InitialWeightG != nil:
		w := *plan.InitialWeightG
		snap.WeightG = &w
		snap.WeightSource = WeightFromSeeding
	}

	if snap.BaseDensityOrgM2 != nil {
		snap.LiveDensityOrgM2 = LiveDensity(*snap.BaseDensityOrgM2, withdrawn, snap.SurvivalPct)
		snap.OrganismsAlive = OrganismsAlive(snap.LiveDensityOrgM2, pond.SurfaceM2)
		if snap.WeightG != nil {
			snap.BiomassKg = BiomassKg(snap.OrganismsAlive, *snap.WeightG)
		}
	}
	return snap, nil
}

func (u Usecases) confirmedWithdrawal(dbc dbctx.Context, cycleID, pondID uuid.UUID) (float64, error) {
	rows, err := u.deps.WaveLines.ListConfirmedByCyclePond(dbc, cycleID, pondID)
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

// NearestLine picks the plan row closest to at by calendar day; the
// earlier row wins an exact tie.
func NearestLine(lines []*types.ProjectionLine, at time.Time) *types.ProjectionLine {
	if len(lines) == 0 {
		return nil
	}
	best := lines[0]
	bestDiff := absDays(best.PlanDate, at)
	for _, ln := range lines[1:] {
		if d := absDays(ln.PlanDate, at); d < bestDiff {
			bestDiff = d
			best = ln
		}
	}
	return best
}

func absDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	d := int(time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).
		Sub(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
