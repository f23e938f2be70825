package analytics

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
)

func fp(v float64) *float64 { return &v }

func almostEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAggregate_WeightedAverages(t *testing.T) {
	snapshots := []*ledger.PondSnapshot{
		{
			PondID:           uuid.New(),
			SurfaceM2:        1000,
			BaseDensityOrgM2: fp(80),
			SurvivalPct:      75,
			WeightG:          fp(12),
			LiveDensityOrgM2: 45,
			OrganismsAlive:   45000,
			BiomassKg:        540,
		},
		{
			PondID:           uuid.New(),
			SurfaceM2:        500,
			BaseDensityOrgM2: fp(100),
			SurvivalPct:      90,
			WeightG:          fp(8),
			LiveDensityOrgM2: 90,
			OrganismsAlive:   45000,
			BiomassKg:        360,
		},
		// No usable stocking: counts toward the total only.
		{PondID: uuid.New(), SurfaceM2: 200, SurvivalPct: 100},
	}

	kpis := Aggregate(snapshots)

	if kpis.TotalBiomassKg != 900 {
		t.Fatalf("total biomass = %v, want 900", kpis.TotalBiomassKg)
	}
	if kpis.AvgLiveDensityOrgM2 == nil || !almostEq(*kpis.AvgLiveDensityOrgM2, 60) {
		t.Fatalf("avg live density = %v, want 60", kpis.AvgLiveDensityOrgM2)
	}
	// Global survival rebuilds the remnant: 45/0.75*1000 + 90/0.9*500 =
	// 110000 pre-survival organisms against 90000 alive.
	if kpis.GlobalSurvivalPct == nil || !almostEq(*kpis.GlobalSurvivalPct, 81.82) {
		t.Fatalf("global survival = %v, want 81.82", kpis.GlobalSurvivalPct)
	}
	if kpis.AvgWeightG == nil || !almostEq(*kpis.AvgWeightG, 10) {
		t.Fatalf("avg weight = %v, want 10", kpis.AvgWeightG)
	}

	sizes := kpis.SampleSizes
	if sizes.PondsTotal != 3 || sizes.PondsWithDensity != 2 || sizes.PondsWithOrganisms != 2 {
		t.Fatalf("sample sizes = %+v", sizes)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	kpis := Aggregate(nil)

	if kpis.TotalBiomassKg != 0 {
		t.Fatalf("total biomass = %v, want 0", kpis.TotalBiomassKg)
	}
	if kpis.AvgLiveDensityOrgM2 != nil || kpis.GlobalSurvivalPct != nil || kpis.AvgWeightG != nil {
		t.Fatalf("averages should be nil on empty input: %+v", kpis)
	}
	if kpis.SampleSizes.PondsTotal != 0 {
		t.Fatalf("ponds total = %d, want 0", kpis.SampleSizes.PondsTotal)
	}
}

func TestAggregate_HarvestedPondKeepsDensityButNotWeight(t *testing.T) {
	snapshots := []*ledger.PondSnapshot{
		{
			PondID:           uuid.New(),
			SurfaceM2:        1000,
			BaseDensityOrgM2: fp(80),
			SurvivalPct:      80,
			WeightG:          fp(15),
			LiveDensityOrgM2: 64,
			OrganismsAlive:   64000,
			BiomassKg:        960,
		},
		// Fully harvested: base withdrawn down to zero organisms. Its
		// weight must not drag the average.
		{
			PondID:           uuid.New(),
			SurfaceM2:        500,
			BaseDensityOrgM2: fp(80),
			SurvivalPct:      80,
			WeightG:          fp(2),
			LiveDensityOrgM2: 0,
			OrganismsAlive:   0,
			BiomassKg:        0,
		},
	}

	kpis := Aggregate(snapshots)

	if kpis.AvgWeightG == nil || *kpis.AvgWeightG != 15 {
		t.Fatalf("avg weight = %v, want 15", kpis.AvgWeightG)
	}
	sizes := kpis.SampleSizes
	if sizes.PondsWithDensity != 2 || sizes.PondsWithOrganisms != 1 {
		t.Fatalf("sample sizes = %+v", sizes)
	}
	// The empty pond still weighs the density average down.
	if kpis.AvgLiveDensityOrgM2 == nil || !almostEq(*kpis.AvgLiveDensityOrgM2, 42.6667) {
		t.Fatalf("avg live density = %v", kpis.AvgLiveDensityOrgM2)
	}
}

func TestRound(t *testing.T) {
	if got := round(81.818181, 2); got != 81.82 {
		t.Fatalf("round(81.818181, 2) = %v", got)
	}
	if got := round(899.96, 1); got != 900.0 {
		t.Fatalf("round(899.96, 1) = %v", got)
	}
	if roundPtr(nil, 2) != nil {
		t.Fatalf("roundPtr(nil) should stay nil")
	}
}
