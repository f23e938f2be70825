package curve

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Shape selects the easing applied when filling values between two
// known points of a weekly series.
type Shape string

const (
	ShapeLinear  Shape = "linear"
	ShapeEaseIn  Shape = "ease_in"
	ShapeEaseOut Shape = "ease_out"
	ShapeSCurve  Shape = "s_curve"
)

// Parse normalizes a user-supplied shape name. Empty input falls back
// to fallback; unknown names are rejected so callers can surface a
// validation error instead of silently interpolating linearly.
func Parse(raw string, fallback Shape) (Shape, error) {
	s := Shape(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return fallback, nil
	}
	switch s {
	case ShapeLinear, ShapeEaseIn, ShapeEaseOut, ShapeSCurve:
		return s, nil
	}
	return "", fmt.Errorf("unknown shape %q", raw)
}

// Factor evaluates the easing function at t, with t clamped to [0,1].
func Factor(s Shape, t float64) float64 {
	t = Clamp01(t)
	switch s {
	case ShapeEaseIn:
		return t * t
	case ShapeEaseOut:
		return 1 - (1-t)*(1-t)
	case ShapeSCurve:
		return 3*t*t - 2*t*t*t
	default:
		return t
	}
}

func Clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// ClampPct bounds a survival percentage to [0,100].
func ClampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func Round2(v float64) float64 { return math.Round(v*100) / 100 }

func Round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// Weights generates a weekly weight series from initial to final over
// weeks points. t runs i/(weeks-1); a single-week series is just the
// initial weight. Values are rounded to 3 decimals (grams).
func Weights(initial, final float64, weeks int, s Shape) []float64 {
	if weeks <= 0 {
		return nil
	}
	out := make([]float64, weeks)
	if weeks == 1 {
		out[0] = Round3(initial)
		return out
	}
	span := final - initial
	for i := 0; i < weeks; i++ {
		t := float64(i) / float64(weeks-1)
		out[i] = Round3(initial + Factor(s, t)*span)
	}
	return out
}

// Survival generates the survival series: 100% at week 0 easing
// linearly down to target at the last week, clamped to [0,100] and
// rounded to 2 decimals.
func Survival(target float64, weeks int) []float64 {
	if weeks <= 0 {
		return nil
	}
	out := make([]float64, weeks)
	if weeks == 1 {
		out[0] = Round2(ClampPct(100))
		return out
	}
	span := target - 100
	for i := 0; i < weeks; i++ {
		t := float64(i) / float64(weeks-1)
		out[i] = Round2(ClampPct(100 + t*span))
	}
	return out
}

// Increments derives week-over-week weight gains. The first entry is
// the weight itself, every later entry the delta against the prior
// week, rounded to 3 decimals.
func Increments(weights []float64) []float64 {
	out := make([]float64, len(weights))
	for i, w := range weights {
		if i == 0 {
			out[i] = Round3(w)
			continue
		}
		out[i] = Round3(w - weights[i-1])
	}
	return out
}

// normalizeAnchors sorts, dedups and bounds the anchor set, always
// forcing index 0 and the last index in so every point lies between
// two anchors.
func normalizeAnchors(anchors []int, n int) []int {
	seen := make(map[int]bool, len(anchors)+2)
	seen[0] = true
	seen[n-1] = true
	for _, a := range anchors {
		if a > 0 && a < n-1 {
			seen[a] = true
		}
	}
	out := make([]int, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

// reinterpolate recomputes every non-anchor value between each pair of
// consecutive anchors. Anchor values are copied through untouched;
// finish is applied only to recomputed points.
func reinterpolate(values []float64, anchors []int, s Shape, finish func(float64) float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if len(values) < 3 {
		return out
	}
	as := normalizeAnchors(anchors, len(values))
	for i := 0; i < len(as)-1; i++ {
		a, b := as[i], as[i+1]
		if b-a < 2 {
			continue
		}
		lo, hi := values[a], values[b]
		for k := a + 1; k < b; k++ {
			t := float64(k-a) / float64(b-a)
			out[k] = finish(lo + Factor(s, t)*(hi-lo))
		}
	}
	return out
}

// ReinterpolateWeight rebuilds the weight series between anchors,
// rounding recomputed points to 3 decimals.
func ReinterpolateWeight(values []float64, anchors []int, s Shape) []float64 {
	return reinterpolate(values, anchors, s, Round3)
}

// ReinterpolateSurvival rebuilds the survival series between anchors,
// clamping recomputed points to [0,100] and rounding to 2 decimals.
func ReinterpolateSurvival(values []float64, anchors []int, s Shape) []float64 {
	return reinterpolate(values, anchors, s, func(v float64) float64 { return Round2(ClampPct(v)) })
}
