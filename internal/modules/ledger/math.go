package ledger

// Pure unit-conversion math for pond stocking accounting. Everything
// here is side-effect free; resolution against the store lives in
// ledger.go.

// Effective picks the override when it is set and positive, else the
// plan default. A nil result means neither side carries a usable
// value.
func Effective(override, planDefault *float64) *float64 {
	if override != nil && *override > 0 {
		return override
	}
	if planDefault != nil && *planDefault > 0 {
		return planDefault
	}
	return nil
}

// LiveDensity derives organisms/m² still alive from the stocked base,
// the cumulative confirmed withdrawals and the survival percentage.
func LiveDensity(baseOrgM2, withdrawnOrgM2, survivalPct float64) float64 {
	remaining := baseOrgM2 - withdrawnOrgM2
	if remaining < 0 {
		remaining = 0
	}
	return remaining * (survivalPct / 100)
}

// RemainingDensity is the pre-survival stocked density after
// withdrawals, floored at zero.
func RemainingDensity(baseOrgM2, withdrawnOrgM2 float64) float64 {
	remaining := baseOrgM2 - withdrawnOrgM2
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func OrganismsAlive(liveDensityOrgM2, surfaceM2 float64) float64 {
	return liveDensityOrgM2 * surfaceM2
}

func BiomassKg(organisms, weightG float64) float64 {
	return organisms * (weightG / 1000)
}

// GlobalSurvivalPct reconstructs the cycle-wide survival from per-pond
// live numbers. For every pond the pre-survival remnant is rebuilt as
// live/(pct/100) times surface; the global figure is total alive over
// total remnant. Averaging the per-pond percentages would weight a
// 1000 m² pond the same as a 10 m² one, so it is never done here.
type SurvivalTerm struct {
	LiveDensityOrgM2 float64
	SurvivalPct      float64
	SurfaceM2        float64
}

func GlobalSurvivalPct(terms []SurvivalTerm) *float64 {
	var alive, remnant float64
	for _, t := range terms {
		if t.SurvivalPct <= 0 || t.SurfaceM2 <= 0 {
			continue
		}
		preSurvival := t.LiveDensityOrgM2 / (t.SurvivalPct / 100)
		alive += t.LiveDensityOrgM2 * t.SurfaceM2
		remnant += preSurvival * t.SurfaceM2
	}
	if remnant <= 0 {
		return nil
	}
	pct := alive / remnant * 100
	return &pct
}

// WeightTerm pairs a pond's average weight with its live organism
// count for weighted averaging.
type WeightTerm struct {
	WeightG   *float64
	Organisms *float64
}

// WeightedAvgWeight averages weight over organisms. Ponds missing
// either side drop out of numerator and denominator both; a missing
// weight is never treated as zero.
func WeightedAvgWeight(terms []WeightTerm) *float64 {
	var sum, orgs float64
	for _, t := range terms {
		if t.WeightG == nil || t.Organisms == nil || *t.Organisms <= 0 {
			continue
		}
		sum += *t.WeightG * *t.Organisms
		orgs += *t.Organisms
	}
	if orgs <= 0 {
		return nil
	}
	avg := sum / orgs
	return &avg
}

// SurfaceWeightedDensity averages live density weighted by pond
// surface.
func SurfaceWeightedDensity(densities, surfaces []float64) *float64 {
	if len(densities) != len(surfaces) {
		return nil
	}
	var sum, area float64
	for i := range densities {
		if surfaces[i] <= 0 {
			continue
		}
		sum += densities[i] * surfaces[i]
		area += surfaces[i]
	}
	if area <= 0 {
		return nil
	}
	avg := sum / area
	return &avg
}

// FCR is total feed over produced biomass; nil when production is not
// positive yet.
func FCR(feedKg, producedBiomassKg float64) *float64 {
	if producedBiomassKg <= 0 {
		return nil
	}
	v := feedKg / producedBiomassKg
	return &v
}

// WeeklyGrowthRate scales an observed gain over an arbitrary day span
// onto a 7-day week.
func WeeklyGrowthRate(gainG float64, days int) *float64 {
	if days <= 0 {
		return nil
	}
	v := gainG * 7 / float64(days)
	return &v
}

// WeightDeviationPct is the relative gap between an observed and a
// projected weight, signed, in percent of the projection.
func WeightDeviationPct(observedG, projectedG float64) *float64 {
	if projectedG <= 0 {
		return nil
	}
	v := (observedG - projectedG) / projectedG * 100
	return &v
}
