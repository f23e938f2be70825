package curve

import (
	"math"
	"testing"
)

func almostEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParseFallsBackAndRejectsUnknown(t *testing.T) {
	s, err := Parse("", ShapeSCurve)
	if err != nil || s != ShapeSCurve {
		t.Fatalf("expected fallback s_curve, got %q err=%v", s, err)
	}
	s, err = Parse("  Ease_In ", ShapeSCurve)
	if err != nil || s != ShapeEaseIn {
		t.Fatalf("expected ease_in, got %q err=%v", s, err)
	}
	if _, err := Parse("cubic", ShapeSCurve); err == nil {
		t.Fatalf("expected error for unknown shape")
	}
}

func TestFactorShapes(t *testing.T) {
	if got := Factor(ShapeLinear, 0.25); !almostEq(got, 0.25) {
		t.Fatalf("linear(0.25)=%v", got)
	}
	if got := Factor(ShapeEaseIn, 0.5); !almostEq(got, 0.25) {
		t.Fatalf("ease_in(0.5)=%v", got)
	}
	if got := Factor(ShapeEaseOut, 0.5); !almostEq(got, 0.75) {
		t.Fatalf("ease_out(0.5)=%v", got)
	}
	if got := Factor(ShapeSCurve, 0.5); !almostEq(got, 0.5) {
		t.Fatalf("s_curve(0.5)=%v", got)
	}
	// t is clamped before evaluation.
	if got := Factor(ShapeSCurve, -3); !almostEq(got, 0) {
		t.Fatalf("s_curve(-3)=%v", got)
	}
	if got := Factor(ShapeSCurve, 42); !almostEq(got, 1) {
		t.Fatalf("s_curve(42)=%v", got)
	}
}

func TestWeightsLinearFourWeeks(t *testing.T) {
	got := Weights(1.0, 10.0, 4, ShapeLinear)
	want := []float64{1.0, 4.0, 7.0, 10.0}
	if len(got) != len(want) {
		t.Fatalf("expected %d weights, got %d", len(want), len(got))
	}
	for i := range want {
		if !almostEq(got[i], want[i]) {
			t.Fatalf("weight[%d]=%v want %v", i, got[i], want[i])
		}
	}
}

func TestSurvivalLinearFourWeeks(t *testing.T) {
	got := Survival(90, 4)
	want := []float64{100.0, 96.67, 93.33, 90.0}
	for i := range want {
		if !almostEq(got[i], want[i]) {
			t.Fatalf("survival[%d]=%v want %v", i, got[i], want[i])
		}
	}
}

func TestWeightsSingleWeek(t *testing.T) {
	got := Weights(1.5, 30, 1, ShapeSCurve)
	if len(got) != 1 || !almostEq(got[0], 1.5) {
		t.Fatalf("expected [1.5], got %v", got)
	}
	s := Survival(80, 1)
	if len(s) != 1 || !almostEq(s[0], 100) {
		t.Fatalf("expected [100], got %v", s)
	}
}

func TestIncrements(t *testing.T) {
	got := Increments([]float64{1.0, 4.0, 7.0, 10.0})
	want := []float64{1.0, 3.0, 3.0, 3.0}
	for i := range want {
		if !almostEq(got[i], want[i]) {
			t.Fatalf("increment[%d]=%v want %v", i, got[i], want[i])
		}
	}
}

func TestClampPctIdempotent(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-5, 0}, {0, 0}, {50, 50}, {100, 100}, {130, 100},
	}
	for _, c := range cases {
		once := ClampPct(c.in)
		if !almostEq(once, c.want) {
			t.Fatalf("ClampPct(%v)=%v want %v", c.in, once, c.want)
		}
		if twice := ClampPct(once); !almostEq(twice, once) {
			t.Fatalf("ClampPct not idempotent at %v: %v -> %v", c.in, once, twice)
		}
	}
}

func TestReinterpolateWeightSCurveBetweenEndpoints(t *testing.T) {
	// Only the endpoints anchor the series; the middle points must be
	// recomputed through the s-curve, not left linear.
	in := []float64{1.0, 4.0, 7.0, 10.0}
	got := ReinterpolateWeight(in, nil, ShapeSCurve)

	if !almostEq(got[0], 1.0) || !almostEq(got[3], 10.0) {
		t.Fatalf("endpoints changed: %v", got)
	}
	want1 := Round3(1.0 + Factor(ShapeSCurve, 1.0/3.0)*9.0)
	want2 := Round3(1.0 + Factor(ShapeSCurve, 2.0/3.0)*9.0)
	if !almostEq(got[1], want1) || !almostEq(got[2], want2) {
		t.Fatalf("s_curve midpoints: got %v want [%v %v]", got[1:3], want1, want2)
	}
	if almostEq(got[1], 4.0) {
		t.Fatalf("midpoint stayed linear: %v", got)
	}
}

func TestReinterpolateKeepsAnchorsExact(t *testing.T) {
	in := []float64{2.123456, 5.0, 9.999999, 14.5, 22.000001}
	got := ReinterpolateWeight(in, []int{2}, ShapeSCurve)
	for _, idx := range []int{0, 2, 4} {
		if got[idx] != in[idx] {
			t.Fatalf("anchor %d changed: %v -> %v", idx, in[idx], got[idx])
		}
	}
	// Non-anchors between (0,2) and (2,4) are recomputed.
	if got[1] == in[1] && got[3] == in[3] {
		t.Fatalf("expected interior points to be recomputed, got %v", got)
	}
}

func TestReinterpolateShortSeriesNoop(t *testing.T) {
	in := []float64{3.5, 7.25}
	got := ReinterpolateWeight(in, nil, ShapeSCurve)
	if got[0] != in[0] || got[1] != in[1] {
		t.Fatalf("two-point series must not change: %v", got)
	}
	one := ReinterpolateSurvival([]float64{88}, nil, ShapeLinear)
	if one[0] != 88 {
		t.Fatalf("single-point series must not change: %v", one)
	}
}

func TestReinterpolateSurvivalClampsRecomputed(t *testing.T) {
	// Midpoints between two in-range anchors stay in range and carry
	// two-decimal rounding.
	in := []float64{100, 0, 0, 70}
	got := ReinterpolateSurvival(in, nil, ShapeLinear)
	want := []float64{100, 90, 80, 70}
	for i := range want {
		if !almostEq(got[i], want[i]) {
			t.Fatalf("survival[%d]=%v want %v", i, got[i], want[i])
		}
	}
}

func TestReinterpolateIgnoresOutOfRangeAnchors(t *testing.T) {
	in := []float64{1, 2, 3, 4}
	got := ReinterpolateWeight(in, []int{-1, 9}, ShapeLinear)
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if !almostEq(got[i], want[i]) {
			t.Fatalf("value[%d]=%v want %v", i, got[i], want[i])
		}
	}
}

func TestReinterpolateAdjacentAnchorsUntouched(t *testing.T) {
	in := []float64{1, 99, 3, 4}
	got := ReinterpolateWeight(in, []int{1, 2}, ShapeLinear)
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("no gap wider than one: value[%d] %v -> %v", i, in[i], got[i])
		}
	}
}
