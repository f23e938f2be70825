package projection

import (
	"errors"
	"strings"
	"testing"
	"time"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/projection/curve"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildTimeline_LinearFourWeeks(t *testing.T) {
	start := day(2025, 3, 3)
	tl, err := BuildTimeline(TimelineParams{
		StartDate:        start,
		Weeks:            4,
		InitialWeightG:   1,
		FinalWeightG:     10,
		FinalSurvivalPct: 90,
		WeightShape:      curve.ShapeLinear,
	})
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}
	if len(tl.Lines) != 4 {
		t.Fatalf("expected 4 lines got %d", len(tl.Lines))
	}

	wantWeights := []float64{1, 4, 7, 10}
	wantSurvival := []float64{100, 96.67, 93.33, 90}
	wantIncrements := []float64{1, 3, 3, 3}
	for i, ln := range tl.Lines {
		if ln.WeekIdx != i {
			t.Fatalf("line %d: week_idx=%d", i, ln.WeekIdx)
		}
		if ln.AgeDays != i*7 {
			t.Fatalf("line %d: age_days=%d", i, ln.AgeDays)
		}
		if !ln.PlanDate.Equal(start.AddDate(0, 0, 7*i)) {
			t.Fatalf("line %d: plan_date=%v", i, ln.PlanDate)
		}
		if ln.WeightG != wantWeights[i] {
			t.Fatalf("line %d: weight=%v want %v", i, ln.WeightG, wantWeights[i])
		}
		if ln.SurvivalPct != wantSurvival[i] {
			t.Fatalf("line %d: survival=%v want %v", i, ln.SurvivalPct, wantSurvival[i])
		}
		if ln.IncrementGWk != wantIncrements[i] {
			t.Fatalf("line %d: increment=%v want %v", i, ln.IncrementGWk, wantIncrements[i])
		}
	}
}

func TestBuildTimeline_DefaultShapeIsSCurve(t *testing.T) {
	tl, err := BuildTimeline(TimelineParams{
		StartDate:        day(2025, 3, 3),
		Weeks:            3,
		InitialWeightG:   1,
		FinalWeightG:     10,
		FinalSurvivalPct: 100,
	})
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}
	// s_curve at t=0.5 is exactly halfway.
	if got := tl.Lines[1].WeightG; got != 5.5 {
		t.Fatalf("midpoint weight=%v want 5.5", got)
	}
}

func TestBuildTimeline_RejectsBadInputs(t *testing.T) {
	base := TimelineParams{
		StartDate:        day(2025, 3, 3),
		Weeks:            4,
		InitialWeightG:   1,
		FinalWeightG:     10,
		FinalSurvivalPct: 90,
	}

	cases := []struct {
		name   string
		mutate func(*TimelineParams)
		code   string
	}{
		{"zero weeks", func(p *TimelineParams) { p.Weeks = 0 }, "weeks_must_be_positive"},
		{"negative initial weight", func(p *TimelineParams) { p.InitialWeightG = -0.5 }, "negative_weight"},
		{"negative final weight", func(p *TimelineParams) { p.FinalWeightG = -1 }, "negative_weight"},
		{"negative survival", func(p *TimelineParams) { p.FinalSurvivalPct = -3 }, "negative_survival"},
		{"unknown shape", func(p *TimelineParams) { p.WeightShape = "zigzag" }, "invalid_shape"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			_, err := BuildTimeline(p)
			var ae *apierr.Error
			if !errors.As(err, &ae) {
				t.Fatalf("expected api error, got %v", err)
			}
			if ae.Code != tc.code {
				t.Fatalf("code=%q want %q", ae.Code, tc.code)
			}
		})
	}
}

func TestBuildTimeline_SurvivalTargetClampedAt100(t *testing.T) {
	tl, err := BuildTimeline(TimelineParams{
		StartDate:        day(2025, 3, 3),
		Weeks:            3,
		InitialWeightG:   1,
		FinalWeightG:     3,
		FinalSurvivalPct: 140,
	})
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}
	for i, ln := range tl.Lines {
		if ln.SurvivalPct != 100 {
			t.Fatalf("line %d: survival=%v want 100", i, ln.SurvivalPct)
		}
	}
}

func TestBuildTimeline_HarvestFlagsAndWarnings(t *testing.T) {
	withdrawal := 4.5
	tl, err := BuildTimeline(TimelineParams{
		StartDate:        day(2025, 3, 3),
		Weeks:            4,
		InitialWeightG:   1,
		FinalWeightG:     10,
		FinalSurvivalPct: 90,
		Harvests: []HarvestEvent{
			{WeekIdx: 2, WithdrawalOrgM2: &withdrawal},
			{WeekIdx: 9},
		},
	})
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}
	if !tl.Lines[2].HarvestFlag {
		t.Fatalf("week 2 should carry the harvest flag")
	}
	if tl.Lines[2].WithdrawalOrgM2 == nil || *tl.Lines[2].WithdrawalOrgM2 != withdrawal {
		t.Fatalf("week 2 withdrawal=%v want %v", tl.Lines[2].WithdrawalOrgM2, withdrawal)
	}
	if len(tl.Warnings) != 1 || !strings.Contains(tl.Warnings[0], "harvest_week_out_of_range_week_idx=9") {
		t.Fatalf("warnings=%v", tl.Warnings)
	}
}

func TestNearestWeekIdx_EarlierLineWinsExactTie(t *testing.T) {
	start := day(2025, 3, 3)
	lines := []*types.ProjectionLine{
		{WeekIdx: 0, PlanDate: start},
		{WeekIdx: 1, PlanDate: start.AddDate(0, 0, 14)},
	}
	// Day 7 sits exactly between both lines.
	if got := nearestWeekIdx(lines, start.AddDate(0, 0, 7)); got != 0 {
		t.Fatalf("tie should pick the earlier line, got %d", got)
	}
}

func TestNearestWeekIdx_IgnoresTimeOfDay(t *testing.T) {
	start := day(2025, 3, 3)
	lines := []*types.ProjectionLine{
		{WeekIdx: 0, PlanDate: start},
		{WeekIdx: 1, PlanDate: start.AddDate(0, 0, 7)},
		{WeekIdx: 2, PlanDate: start.AddDate(0, 0, 14)},
	}
	// Late-evening event on day 10 is still closer to week 1 than week 2.
	when := start.AddDate(0, 0, 10).Add(23 * time.Hour)
	if got := nearestWeekIdx(lines, when); got != 1 {
		t.Fatalf("expected week 1, got %d", got)
	}
}
