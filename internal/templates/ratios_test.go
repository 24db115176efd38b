package templates

import (
	"math"
	"testing"
)

func TestSuggestRatioPatterns(t *testing.T) {
	got := SuggestRatioPatterns(1.5, DefaultRatioOptions())
	wantLabels := []string{"3/2", "sqrt(2)", "7/5", "8/5", "4/3"}
	if len(got) != len(wantLabels) {
		t.Fatalf("result count: got %d, want %d", len(got), len(wantLabels))
	}
	for i, w := range wantLabels {
		if got[i].Label != w {
			t.Errorf("suggestion %d: got %q, want %q", i, got[i].Label, w)
		}
	}
	if got[0].Err != 0 {
		t.Errorf("exact match error: got %v, want 0", got[0].Err)
	}
	if math.Abs(got[1].ErrPercentage-5.719095841793656) > 1e-9 {
		t.Errorf("sqrt(2) error percentage: got %v", got[1].ErrPercentage)
	}
}

func TestSuggestRatioPatternsDedupesValues(t *testing.T) {
	got := SuggestRatioPatterns(1.0, DefaultRatioOptions())
	if got[0].Label != "1" {
		t.Errorf("first label: got %q, want \"1\"", got[0].Label)
	}
	for _, s := range got[1:] {
		if s.Value == 1 {
			t.Errorf("duplicate value 1 reported as %q", s.Label)
		}
	}
}

func TestSuggestRatioPatternsInvalidTarget(t *testing.T) {
	for _, target := range []float64{0, -2, math.Inf(1), math.NaN()} {
		if got := SuggestRatioPatterns(target, DefaultRatioOptions()); got != nil {
			t.Errorf("target %v: got %v, want nil", target, got)
		}
	}
}
