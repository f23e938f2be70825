package ledger

import (
	"math"
	"testing"
)

func fp(v float64) *float64 { return &v }

func almostEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEffective(t *testing.T) {
	if got := Effective(fp(12), fp(8)); got == nil || *got != 12 {
		t.Fatalf("override should win, got %v", got)
	}
	if got := Effective(nil, fp(8)); got == nil || *got != 8 {
		t.Fatalf("plan default should apply, got %v", got)
	}
	if got := Effective(fp(0), fp(8)); got == nil || *got != 8 {
		t.Fatalf("zero override must not shadow the plan, got %v", got)
	}
	if got := Effective(fp(-3), nil); got != nil {
		t.Fatalf("negative values are unusable, got %v", got)
	}
	if got := Effective(nil, nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestLiveDensityChain(t *testing.T) {
	// base 80 org/m², 20 withdrawn, 75% survival on 1000 m² at 12 g.
	live := LiveDensity(80, 20, 75)
	if live != 45 {
		t.Fatalf("live density=%v want 45", live)
	}
	organisms := OrganismsAlive(live, 1000)
	if organisms != 45000 {
		t.Fatalf("organisms=%v want 45000", organisms)
	}
	if got := BiomassKg(organisms, 12); got != 540 {
		t.Fatalf("biomass=%v want 540", got)
	}
}

func TestLiveDensity_FloorsOverdrawnPond(t *testing.T) {
	if got := LiveDensity(10, 25, 90); got != 0 {
		t.Fatalf("overdrawn pond must floor at 0, got %v", got)
	}
	if got := RemainingDensity(10, 25); got != 0 {
		t.Fatalf("remaining=%v want 0", got)
	}
}

func TestGlobalSurvivalPct_RatioNotAverage(t *testing.T) {
	// Pond 1: 1000 m² at 50%; pond 2: 10 m² at 100%. A naive average
	// of percentages would say 75%; the organism ratio is dominated by
	// the big pond.
	terms := []SurvivalTerm{
		{LiveDensityOrgM2: 40, SurvivalPct: 50, SurfaceM2: 1000},
		{LiveDensityOrgM2: 80, SurvivalPct: 100, SurfaceM2: 10},
	}
	got := GlobalSurvivalPct(terms)
	if got == nil {
		t.Fatalf("expected a value")
	}
	// alive = 40*1000 + 80*10 = 40800; remnant = 80*1000 + 80*10 = 80800.
	want := 40800.0 / 80800.0 * 100
	if !almostEq(*got, want) {
		t.Fatalf("global survival=%v want %v", *got, want)
	}
	if almostEq(*got, 75) {
		t.Fatalf("global survival must not be the percentage average")
	}
}

func TestGlobalSurvivalPct_AllHealthyIsExactly100(t *testing.T) {
	terms := []SurvivalTerm{
		{LiveDensityOrgM2: 80, SurvivalPct: 100, SurfaceM2: 1000},
		{LiveDensityOrgM2: 60, SurvivalPct: 100, SurfaceM2: 2500},
		{LiveDensityOrgM2: 45, SurvivalPct: 100, SurfaceM2: 300},
	}
	got := GlobalSurvivalPct(terms)
	if got == nil || !almostEq(*got, 100) {
		t.Fatalf("full survival everywhere must aggregate to 100, got %v", got)
	}
}

func TestGlobalSurvivalPct_SkipsUnusableTerms(t *testing.T) {
	if got := GlobalSurvivalPct(nil); got != nil {
		t.Fatalf("no terms must yield nil, got %v", got)
	}
	got := GlobalSurvivalPct([]SurvivalTerm{
		{LiveDensityOrgM2: 40, SurvivalPct: 0, SurfaceM2: 1000},
		{LiveDensityOrgM2: 40, SurvivalPct: 80, SurfaceM2: 0},
	})
	if got != nil {
		t.Fatalf("unusable terms only must yield nil, got %v", got)
	}
}

func TestWeightedAvgWeight_ExcludesIncompletePonds(t *testing.T) {
	terms := []WeightTerm{
		{WeightG: fp(10), Organisms: fp(1000)},
		{WeightG: nil, Organisms: fp(50000)},
		{WeightG: fp(20), Organisms: fp(3000)},
		{WeightG: fp(99), Organisms: nil},
	}
	got := WeightedAvgWeight(terms)
	if got == nil {
		t.Fatalf("expected a value")
	}
	// Only the two complete ponds count: (10*1000 + 20*3000) / 4000.
	if !almostEq(*got, 17.5) {
		t.Fatalf("avg weight=%v want 17.5", *got)
	}

	if got := WeightedAvgWeight([]WeightTerm{{WeightG: nil, Organisms: fp(100)}}); got != nil {
		t.Fatalf("missing weights everywhere must yield nil, got %v", got)
	}
}

func TestSurfaceWeightedDensity(t *testing.T) {
	got := SurfaceWeightedDensity([]float64{10, 40}, []float64{3000, 1000})
	if got == nil || !almostEq(*got, 17.5) {
		t.Fatalf("density=%v want 17.5", got)
	}
	if got := SurfaceWeightedDensity([]float64{10}, []float64{}); got != nil {
		t.Fatalf("mismatched slices must yield nil")
	}
	if got := SurfaceWeightedDensity([]float64{10}, []float64{0}); got != nil {
		t.Fatalf("zero surface must yield nil")
	}
}

func TestFCR(t *testing.T) {
	if got := FCR(1500, 1000); got == nil || !almostEq(*got, 1.5) {
		t.Fatalf("fcr=%v want 1.5", got)
	}
	if got := FCR(1500, 0); got != nil {
		t.Fatalf("no production must yield nil")
	}
}

func TestWeeklyGrowthRate(t *testing.T) {
	if got := WeeklyGrowthRate(3, 10); got == nil || !almostEq(*got, 2.1) {
		t.Fatalf("rate=%v want 2.1", got)
	}
	if got := WeeklyGrowthRate(3, 0); got != nil {
		t.Fatalf("zero days must yield nil")
	}
}

func TestWeightDeviationPct(t *testing.T) {
	if got := WeightDeviationPct(12, 10); got == nil || !almostEq(*got, 20) {
		t.Fatalf("deviation=%v want 20", got)
	}
	if got := WeightDeviationPct(8, 10); got == nil || !almostEq(*got, -20) {
		t.Fatalf("deviation=%v want -20", got)
	}
	if got := WeightDeviationPct(8, 0); got != nil {
		t.Fatalf("no projection must yield nil")
	}
}
