package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
	"github.com/aquaforge/pondops-backend/internal/observability"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"

	AlertStaleBiometry   = "no_biometry_14d"
	AlertWeightDeviation = "weight_deviation"
)

// Alert thresholds. The deviation alert only fires when the plan has a
// row near today; comparing against a line weeks away would flag every
// pond on the farm.
const (
	staleBiometryAfterDays = 14
	deviationGateDays      = 7
	deviationMediumPct     = 10
	deviationHighPct       = 20
	reportWaveHorizonDays  = 7
)

type Alert struct {
	Severity     string    `json:"severity"`
	Code         string    `json:"code"`
	PondID       uuid.UUID `json:"pond_id"`
	PondName     string    `json:"pond_name"`
	Days         int       `json:"days,omitempty"`
	DeviationPct *float64  `json:"deviation_pct,omitempty"`
	Message      string    `json:"message"`
}

// Progress counts confirmations against the plan; Pct is nil until
// anything is planned at all.
type Progress struct {
	Pct       *float64 `json:"pct,omitempty"`
	Confirmed int      `json:"confirmed"`
	Total     int      `json:"total"`
}

type UpcomingWave struct {
	WaveID         uuid.UUID `json:"wave_id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	DaysUntilStart int       `json:"days_until_start"`
	State          string    `json:"state"`
	PendingLines   int       `json:"pending_lines"`
}

// WeekInfo is the plan row the cycle is currently standing on.
type WeekInfo struct {
	WeekIdx     int       `json:"week_idx"`
	PlanDate    time.Time `json:"plan_date"`
	WeightG     float64   `json:"weight_g"`
	SurvivalPct float64   `json:"survival_pct"`
}

type OperationalReport struct {
	CycleID   uuid.UUID `json:"cycle_id"`
	CycleName string    `json:"cycle_name"`
	StartDate time.Time `json:"start_date"`
	AsOf      time.Time `json:"as_of"`

	KPIs            KPIs                   `json:"kpis"`
	SeedingProgress Progress               `json:"seeding_progress"`
	HarvestProgress Progress               `json:"harvest_progress"`
	UpcomingWaves   []UpcomingWave         `json:"upcoming_waves"`
	Alerts          []Alert                `json:"alerts"`
	Ponds           []*ledger.PondSnapshot `json:"ponds"`
	CurrentWeek     *WeekInfo              `json:"current_week,omitempty"`
}

// Report assembles the operational state of a cycle as of a given day.
// The independent sections are fetched concurrently; alerts and KPIs
// are derived afterwards from the same snapshot set so they cannot
// disagree with the pond rows they describe.
func (u Usecases) Report(ctx context.Context, cycleID uuid.UUID, at time.Time) (*OperationalReport, error) {
	dbc := dbctx.Context{Ctx: ctx}

	cyc, err := u.deps.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}

	var (
		snapshots []*ledger.PondSnapshot
		lines     []*types.ProjectionLine
		waves     []UpcomingWave
		seeding   Progress
		harvest   Progress
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshots, err = u.deps.Ledger.Snapshots(gctx, cycleID, at)
		return err
	})
	g.Go(func() error {
		var err error
		lines, err = u.deps.Ledger.BestLines(gctx, cycleID)
		return err
	})
	g.Go(func() error {
		var err error
		waves, err = u.upcomingWaves(dbctx.Context{Ctx: gctx}, cycleID, at)
		return err
	})
	g.Go(func() error {
		var err error
		seeding, err = u.seedingProgress(dbctx.Context{Ctx: gctx}, cycleID)
		return err
	})
	g.Go(func() error {
		var err error
		harvest, err = u.harvestProgress(dbctx.Context{Ctx: gctx}, cycleID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &OperationalReport{
		CycleID:         cyc.ID,
		CycleName:       cyc.Name,
		StartDate:       cyc.StartDate,
		AsOf:            dateOnly(at),
		KPIs:            Aggregate(snapshots),
		SeedingProgress: seeding,
		HarvestProgress: harvest,
		UpcomingWaves:   waves,
		Alerts:          buildAlerts(snapshots, lines, cyc.StartDate, at),
		Ponds:           snapshots,
	}
	if nearest := ledger.NearestLine(lines, at); nearest != nil {
		report.CurrentWeek = &WeekInfo{
			WeekIdx:     nearest.WeekIdx,
			PlanDate:    nearest.PlanDate,
			WeightG:     nearest.WeightG,
			SurvivalPct: nearest.SurvivalPct,
		}
	}
	if len(report.Alerts) > 0 {
		// The webhook reporter never sits on the request path.
		go observability.ReportProjectionDrift(context.WithoutCancel(ctx), u.deps.Log, cyc.ID.String(), toDriftMetrics(report.Alerts), map[string]any{
			"farm_id": cyc.FarmID.String(),
			"as_of":   report.AsOf.Format("2006-01-02"),
		})
	}
	return report, nil
}

func toDriftMetrics(alerts []Alert) []observability.DriftAlertMetric {
	out := make([]observability.DriftAlertMetric, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, observability.DriftAlertMetric{
			Code:         a.Code,
			Severity:     a.Severity,
			Pond:         a.PondName,
			DeviationPct: a.DeviationPct,
			Days:         a.Days,
			Message:      a.Message,
		})
	}
	return out
}

// buildAlerts flags stale biometries and weight deviations. A pond
// with no biometry at all counts as stale once the cycle itself is old
// enough to expect one.
func buildAlerts(snapshots []*ledger.PondSnapshot, lines []*types.ProjectionLine, cycleStart, at time.Time) []Alert {
	alerts := []Alert{}

	for _, snap := range snapshots {
		since := cycleStart
		if snap.LastBiometryAt != nil {
			since = *snap.LastBiometryAt
		}
		days := daysBetween(since, at)
		if days > staleBiometryAfterDays {
			alerts = append(alerts, Alert{
				Severity: SeverityHigh,
				Code:     AlertStaleBiometry,
				PondID:   snap.PondID,
				PondName: snap.PondName,
				Days:     days,
				Message:  fmt.Sprintf("no biometry for %d days", days),
			})
		}
	}

	nearest := ledger.NearestLine(lines, at)
	if nearest == nil || nearest.WeightG <= 0 || absDays(nearest.PlanDate, at) > deviationGateDays {
		return alerts
	}
	for _, snap := range snapshots {
		if snap.WeightG == nil {
			continue
		}
		dev := ledger.WeightDeviationPct(*snap.WeightG, nearest.WeightG)
		if dev == nil {
			continue
		}
		var severity string
		switch {
		case math.Abs(*dev) >= deviationHighPct:
			severity = SeverityHigh
		case math.Abs(*dev) >= deviationMediumPct:
			severity = SeverityMedium
		default:
			continue
		}
		rounded := round(*dev, 2)
		alerts = append(alerts, Alert{
			Severity:     severity,
			Code:         AlertWeightDeviation,
			PondID:       snap.PondID,
			PondName:     snap.PondName,
			DeviationPct: &rounded,
			Message:      fmt.Sprintf("weight %+.2f%% vs plan week %d", rounded, nearest.WeekIdx),
		})
	}
	return alerts
}

// upcomingWaves lists the waves whose window overlaps the next seven
// days, with how many pond lines are still unconfirmed in each.
func (u Usecases) upcomingWaves(dbc dbctx.Context, cycleID uuid.UUID, at time.Time) ([]UpcomingWave, error) {
	from := dateOnly(at)
	rows, err := u.deps.Waves.ListUpcoming(dbc, cycleID, from, from.AddDate(0, 0, reportWaveHorizonDays))
	if err != nil {
		return nil, err
	}

	out := make([]UpcomingWave, 0, len(rows))
	for _, w := range rows {
		pending, err := u.deps.WaveLines.ListPendingByWave(dbc, w.ID)
		if err != nil {
			return nil, err
		}
		days := daysBetween(at, w.WindowStart)
		out = append(out, UpcomingWave{
			WaveID:         w.ID,
			Name:           w.Name,
			Kind:           w.Kind,
			WindowStart:    w.WindowStart,
			WindowEnd:      w.WindowEnd,
			DaysUntilStart: days,
			State:          classifyWave(days, reportWaveHorizonDays),
			PendingLines:   len(pending),
		})
	}
	return out, nil
}

func (u Usecases) seedingProgress(dbc dbctx.Context, cycleID uuid.UUID) (Progress, error) {
	plans, err := u.deps.Seeding.ListByCycle(dbc, cycleID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Total: len(plans)}
	for _, plan := range plans {
		if plan.Status == types.SeedingConfirmed {
			p.Confirmed++
		}
	}
	return withPct(p), nil
}

// harvestProgress counts ponds, not lines: a pond is planned when any
// live wave names it and done when any of its lines is confirmed.
func (u Usecases) harvestProgress(dbc dbctx.Context, cycleID uuid.UUID) (Progress, error) {
	waves, err := u.deps.Waves.ListByCycle(dbc, cycleID)
	if err != nil {
		return Progress{}, err
	}

	planned := map[uuid.UUID]bool{}
	confirmed := map[uuid.UUID]bool{}
	for _, w := range waves {
		if w.Status == types.WaveCancelled {
			continue
		}
		rows, err := u.deps.WaveLines.ListByWave(dbc, w.ID)
		if err != nil {
			return Progress{}, err
		}
		for _, ln := range rows {
			planned[ln.PondID] = true
			if ln.Confirmed {
				confirmed[ln.PondID] = true
			}
		}
	}
	return withPct(Progress{Total: len(planned), Confirmed: len(confirmed)}), nil
}

func withPct(p Progress) Progress {
	if p.Total > 0 {
		pct := round(float64(p.Confirmed)/float64(p.Total)*100, 2)
		p.Pct = &pct
	}
	return p
}
