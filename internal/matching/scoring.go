package matching

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// ExtractRatios returns the sorted distinct u and v values of a template.
func ExtractRatios(points []r2.Point) (xs, ys []float64) {
	xs = make([]float64, 0, len(points))
	ys = make([]float64, 0, len(points))
	for _, p := range points {
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	return uniqueSorted(xs), uniqueSorted(ys)
}

func uniqueSorted(v []float64) []float64 {
	sort.Float64s(v)
	out := v[:0]
	for i, x := range v {
		if i == 0 || x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

// AxisMatch is the outcome of matching one boss against a pair of ratio sets.
//
// XDist and YDist are always the distances to the nearest ratio; XOK and YOK report
// whether those distances fall within tolerance, in which case XIdx and YIdx index
// the matched ratios.
type AxisMatch struct {
	XIdx, YIdx   int
	XOK, YOK     bool
	XDist, YDist float64
}

// Matched reports whether both axes matched.
func (m AxisMatch) Matched() bool {
	return m.XOK && m.YOK
}

// MatchOne finds the nearest X and Y ratios for a boss position.
func MatchOne(uv r2.Point, xs, ys []float64, tol float64) AxisMatch {
	xi, xd := nearest(xs, uv.X)
	yi, yd := nearest(ys, uv.Y)
	return AxisMatch{
		XIdx:  xi,
		YIdx:  yi,
		XOK:   xi >= 0 && xd <= tol,
		YOK:   yi >= 0 && yd <= tol,
		XDist: xd,
		YDist: yd,
	}
}

// nearest returns the index of the first value closest to x, or -1 for an empty set.
func nearest(values []float64, x float64) (int, float64) {
	best, bestD := -1, math.Inf(1)
	for i, v := range values {
		if d := math.Abs(v - x); d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD
}

// Score summarises how well a boss set fits a template.
type Score struct {
	Score     float64 `json:"score"`
	Coverage  float64 `json:"boss_coverage"`
	AvgError  float64 `json:"avg_error"`
	ErrorNorm float64 `json:"error_norm"`
	Matched   int     `json:"matched_bosses"`
	Total     int     `json:"n_bosses"`
}

// ScoreTemplate scores bosses against the ratio sets of one template.
//
// score = clamp(coverage - 0.25*errorNorm - 0.05*(1-coverage), -1, 1), where
// errorNorm is the mean per-axis error of matched bosses divided by the tolerance.
// With no matched boss errorNorm is +Inf and the score is -1.
func ScoreTemplate(xs, ys []float64, bosses []r2.Point, tol float64) Score {
	matched := 0
	var sumX, sumY float64
	for _, b := range bosses {
		m := MatchOne(b, xs, ys, tol)
		if m.Matched() {
			matched++
			sumX += m.XDist
			sumY += m.YDist
		}
	}
	return scoreSummary(matched, len(bosses), sumX+sumY, tol)
}

func scoreSummary(matched, total int, sumErr, tol float64) Score {
	coverage := 0.0
	if total > 0 {
		coverage = float64(matched) / float64(total)
	}
	avg, norm := math.Inf(1), math.Inf(1)
	if matched > 0 {
		avg = sumErr / (2 * float64(matched))
		norm = avg / math.Max(tol, 1e-6)
	}
	score := coverage - 0.25*norm - 0.05*(1-coverage)
	return Score{
		Score:     geometry.Clamp(score, -1, 1),
		Coverage:  coverage,
		AvgError:  avg,
		ErrorNorm: norm,
		Matched:   matched,
		Total:     total,
	}
}

// MarshalJSON writes non-finite error values as null.
func (s Score) MarshalJSON() ([]byte, error) {
	type alias struct {
		Score     float64  `json:"score"`
		Coverage  float64  `json:"boss_coverage"`
		AvgError  *float64 `json:"avg_error"`
		ErrorNorm *float64 `json:"error_norm"`
		Matched   int      `json:"matched_bosses"`
		Total     int      `json:"n_bosses"`
	}
	return json.Marshal(alias{
		Score:     s.Score,
		Coverage:  s.Coverage,
		AvgError:  finite(s.AvgError),
		ErrorNorm: finite(s.ErrorNorm),
		Matched:   s.Matched,
		Total:     s.Total,
	})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
