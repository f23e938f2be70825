package analytics

import (
	"math"

	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
)

// SampleSizes says how many ponds actually fed each aggregate, so a
// dashboard can flag averages built from thin data.
type SampleSizes struct {
	PondsTotal         int `json:"ponds_total"`
	PondsWithDensity   int `json:"ponds_with_density"`
	PondsWithOrganisms int `json:"ponds_with_organisms"`
}

// KPIs are the cycle-level figures derived from per-pond snapshots.
// Averages are nil when no pond could contribute; they are never
// zero-filled.
type KPIs struct {
	TotalBiomassKg      float64     `json:"total_biomass_kg"`
	AvgLiveDensityOrgM2 *float64    `json:"avg_live_density_org_m2,omitempty"`
	GlobalSurvivalPct   *float64    `json:"global_survival_pct,omitempty"`
	AvgWeightG          *float64    `json:"avg_weight_g,omitempty"`
	SampleSizes         SampleSizes `json:"sample_sizes"`
}

// Aggregate folds pond snapshots into cycle KPIs. Live density is
// surface-weighted, average weight is organism-weighted and survival
// is rebuilt from totals, so pond size always carries its real weight
// in the result.
func Aggregate(snapshots []*ledger.PondSnapshot) KPIs {
	out := KPIs{SampleSizes: SampleSizes{PondsTotal: len(snapshots)}}

	densities := make([]float64, 0, len(snapshots))
	surfaces := make([]float64, 0, len(snapshots))
	survivalTerms := make([]ledger.SurvivalTerm, 0, len(snapshots))
	weightTerms := make([]ledger.WeightTerm, 0, len(snapshots))

	for _, snap := range snapshots {
		out.TotalBiomassKg += snap.BiomassKg

		if snap.BaseDensityOrgM2 == nil {
			continue
		}
		out.SampleSizes.PondsWithDensity++

		densities = append(densities, snap.LiveDensityOrgM2)
		surfaces = append(surfaces, snap.SurfaceM2)

		survivalTerms = append(survivalTerms, ledger.SurvivalTerm{
			LiveDensityOrgM2: snap.LiveDensityOrgM2,
			SurvivalPct:      snap.SurvivalPct,
			SurfaceM2:        snap.SurfaceM2,
		})

		if snap.OrganismsAlive > 0 {
			out.SampleSizes.PondsWithOrganisms++
			orgs := snap.OrganismsAlive
			weightTerms = append(weightTerms, ledger.WeightTerm{
				WeightG:   snap.WeightG,
				Organisms: &orgs,
			})
		}
	}

	out.TotalBiomassKg = round(out.TotalBiomassKg, 1)
	out.AvgLiveDensityOrgM2 = roundPtr(ledger.SurfaceWeightedDensity(densities, surfaces), 4)
	out.GlobalSurvivalPct = roundPtr(ledger.GlobalSurvivalPct(survivalTerms), 2)
	out.AvgWeightG = roundPtr(ledger.WeightedAvgWeight(weightTerms), 2)
	return out
}

func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, places)
	return &r
}
