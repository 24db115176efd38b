package templates

import (
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// RatioSuggestion is a simple proportion close to a measured bay ratio.
type RatioSuggestion struct {
	Label         string  `json:"label"`
	Value         float64 `json:"value"`
	Err           float64 `json:"err"`
	ErrPercentage float64 `json:"err_percentage"`
}

// RatioOptions bounds the candidate proportions considered by SuggestRatioPatterns.
type RatioOptions struct {
	MaxDenominator  int
	Roots           []int
	IncludeInverses bool
	MaxResults      int
}

// DefaultRatioOptions returns fractions up to 9/9 and the roots of 2, 3, 5, 6, 7, 8, 9.
func DefaultRatioOptions() RatioOptions {
	return RatioOptions{
		MaxDenominator:  9,
		Roots:           []int{2, 3, 5, 6, 7, 8, 9},
		IncludeInverses: true,
		MaxResults:      5,
	}
}

// SuggestRatioPatterns returns the simple fractions and square-root proportions
// closest to target, ranked by relative error. Values that coincide to 6 digits are
// reported once, under the first label that reached them.
func SuggestRatioPatterns(target float64, opts RatioOptions) []RatioSuggestion {
	if target <= 0 || math.IsInf(target, 0) || math.IsNaN(target) {
		return nil
	}

	var cands []RatioSuggestion
	add := func(label string, value float64) {
		rel := math.Abs(value-target) / target
		cands = append(cands, RatioSuggestion{Label: label, Value: value, Err: rel, ErrPercentage: rel * 100})
	}

	add("1", 1)
	for q := 1; q <= opts.MaxDenominator; q++ {
		for p := 1; p <= opts.MaxDenominator; p++ {
			add(fmt.Sprintf("%d/%d", p, q), float64(p)/float64(q))
		}
	}
	for _, n := range opts.Roots {
		r := math.Sqrt(float64(n))
		add(fmt.Sprintf("sqrt(%d)", n), r)
		if opts.IncludeInverses && r != 0 {
			add(fmt.Sprintf("1/sqrt(%d)", n), 1/r)
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].ErrPercentage < cands[j].ErrPercentage
	})

	seen := make(map[float64]bool)
	out := make([]RatioSuggestion, 0, opts.MaxResults)
	for _, c := range cands {
		key := geometry.Round(c.Value, 6)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) >= opts.MaxResults {
			break
		}
	}
	return out
}
