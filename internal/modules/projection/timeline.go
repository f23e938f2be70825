package projection

import (
	"fmt"
	"time"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/projection/curve"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

// HarvestEvent flags one week of the plan as a harvest. Final marks
// the terminal harvest; when nil, the last event of the set is treated
// as final by wave auto-planning.
type HarvestEvent struct {
	WeekIdx         int      `json:"week_idx"`
	WithdrawalOrgM2 *float64 `json:"withdrawal_org_m2,omitempty"`
	Final           *bool    `json:"final,omitempty"`
}

type TimelineParams struct {
	StartDate        time.Time
	Weeks            int
	InitialWeightG   float64
	FinalWeightG     float64
	FinalSurvivalPct float64
	WeightShape      curve.Shape
	Harvests         []HarvestEvent
}

type Timeline struct {
	Lines    []types.ProjectionLine
	Warnings []string
}

// BuildTimeline generates the weekly plan rows for a new projection:
// dates every 7 days from StartDate, weight eased from initial to
// final by WeightShape, survival eased linearly from 100% down to the
// target. Harvest events outside the plan range produce warnings, not
// errors. The result is not persisted here.
func BuildTimeline(p TimelineParams) (*Timeline, error) {
	if p.Weeks < 1 {
		return nil, apierr.Validation("weeks_must_be_positive", fmt.Errorf("weeks=%d", p.Weeks))
	}
	if p.InitialWeightG < 0 || p.FinalWeightG < 0 {
		return nil, apierr.Validation("negative_weight", fmt.Errorf("initial=%v final=%v", p.InitialWeightG, p.FinalWeightG))
	}
	if p.FinalSurvivalPct < 0 {
		return nil, apierr.Validation("negative_survival", fmt.Errorf("survival=%v", p.FinalSurvivalPct))
	}

	shape, err := validateShape(string(p.WeightShape), curve.ShapeSCurve)
	if err != nil {
		return nil, err
	}
	target := curve.ClampPct(p.FinalSurvivalPct)

	weights := curve.Weights(p.InitialWeightG, p.FinalWeightG, p.Weeks, shape)
	increments := curve.Increments(weights)
	survival := curve.Survival(target, p.Weeks)

	lines := make([]types.ProjectionLine, p.Weeks)
	for i := 0; i < p.Weeks; i++ {
		lines[i] = types.ProjectionLine{
			WeekIdx:      i,
			PlanDate:     p.StartDate.AddDate(0, 0, 7*i),
			AgeDays:      7 * i,
			WeightG:      weights[i],
			IncrementGWk: increments[i],
			SurvivalPct:  survival[i],
		}
	}

	var warnings []string
	for _, ev := range p.Harvests {
		if ev.WeekIdx < 0 || ev.WeekIdx >= p.Weeks {
			warnings = append(warnings, fmt.Sprintf("harvest_week_out_of_range_week_idx=%d", ev.WeekIdx))
			continue
		}
		lines[ev.WeekIdx].HarvestFlag = true
		lines[ev.WeekIdx].WithdrawalOrgM2 = ev.WithdrawalOrgM2
	}

	return &Timeline{Lines: lines, Warnings: warnings}, nil
}

// nearestWeekIdx picks the line whose plan date sits closest to when.
// On an exact distance tie the earlier line wins.
func nearestWeekIdx(lines []*types.ProjectionLine, when time.Time) int {
	if len(lines) == 0 {
		return 0
	}
	best := 0
	bestDiff := absDays(lines[0].PlanDate, when)
	for i := range lines {
		if d := absDays(lines[i].PlanDate, when); d < bestDiff {
			bestDiff = d
			best = i
		}
	}
	return best
}

// absDays compares at day granularity so a time-of-day component on
// either side never shifts the nearest-line choice.
func absDays(a, b time.Time) int {
	d := int(dateOnly(a).Sub(dateOnly(b)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// validateShape parses a user-supplied shape name into the curve enum.
func validateShape(raw string, fallback curve.Shape) (curve.Shape, error) {
	s, err := curve.Parse(raw, fallback)
	if err != nil {
		return "", apierr.Validation("invalid_shape", err)
	}
	return s, nil
}
