package roicorrect

import (
	"context"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/matching"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

// Method identifies the search strategy in correction metadata.
const Method = "score_search"

// Delta is the perturbation applied to the input ROI.
type Delta struct {
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
	SW      float64 `json:"sw"`
	SH      float64 `json:"sh"`
	DRotDeg float64 `json:"drot_deg"`
}

// Identity is the delta that leaves an ROI unchanged.
var Identity = Delta{SW: 1, SH: 1}

// Meta describes how a correction was found.
type Meta struct {
	Method      string  `json:"method"`
	Preset      string  `json:"preset"`
	Improved    bool    `json:"improved"`
	BaseScore   float64 `json:"base_score"`
	BestScore   float64 `json:"best_score"`
	ScoreGain   float64 `json:"score_gain"`
	Delta       Delta   `json:"delta"`
	Search      Options `json:"search"`
	BossCount   int     `json:"boss_count"`
	Evaluations int     `json:"evaluations"`
}

// Correction is the result of AutoCorrect.
type Correction struct {
	ROI  geometry.ROI `json:"params"`
	Meta Meta         `json:"meta"`
}

type ratioSet struct {
	xs, ys []float64
}

// AutoCorrect searches perturbations of roi for the one whose boss layout best fits
// a standard grid or the inner circlecut. Bosses are pixel positions.
//
// The returned ROI is the input unchanged (with the identity delta) unless the best
// score beats the input score by more than the improvement margin.
func AutoCorrect(ctx context.Context, roi geometry.ROI, bosses []r2.Point, o Options) (*Correction, error) {
	if len(bosses) < 2 {
		return nil, errors.Wrapf(geomerr.ErrInsufficientBosses, "auto-correct needs at least 2 bosses, got %d", len(bosses))
	}
	if o.XYStep <= 0 || o.ScaleStep <= 0 || o.RotationStep <= 0 {
		return nil, errors.Wrap(geomerr.ErrInvalidSearchConfig, "search steps must be positive")
	}
	if o.XYRange < 0 || o.ScaleRange < 0 || o.RotationRange < 0 {
		return nil, errors.Wrap(geomerr.ErrInvalidSearchConfig, "search ranges cannot be negative")
	}
	if o.RegularisationWeight < 0 || o.ImprovementMargin < 0 {
		return nil, errors.Wrap(geomerr.ErrInvalidSearchConfig, "regularisation weight and improvement margin cannot be negative")
	}
	if err := roi.Validate(); err != nil {
		return nil, err
	}

	candidates, err := candidateRatios(roi, o.NRange)
	if err != nil {
		return nil, err
	}

	dxs := axis(o.XYRange, o.XYStep, 0)
	scales := []float64{1}
	if o.IncludeScale {
		scales = axis(o.ScaleRange, o.ScaleStep, 1)
	}
	rots := []float64{0}
	if o.IncludeRotation {
		rots = axis(o.RotationRange, o.RotationStep, 0)
	}

	uv := make([]r2.Point, len(bosses))
	score := func(r geometry.ROI) float64 {
		m, err := geometry.NewMapper(r)
		if err != nil {
			return math.Inf(-1)
		}
		for i, b := range bosses {
			uv[i] = m.ToUnit(b)
		}
		best := math.Inf(-1)
		for _, c := range candidates {
			best = math.Max(best, matching.ScoreTemplate(c.xs, c.ys, uv, o.Tolerance).Score)
		}
		return best
	}

	base := score(roi)
	bestScore, bestObj := base, base
	bestROI, bestDelta := roi, Identity
	evals := 0

	for _, dx := range dxs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "auto-correct cancelled")
		}
		for _, dy := range dxs {
			for _, sw := range scales {
				for _, sh := range scales {
					for _, drot := range rots {
						test := roi.Perturb(dx, dy, sw, sh, drot)
						s := score(test)
						evals++
						obj := s - o.RegularisationWeight*penalty(dx, dy, sw, sh, drot, o)
						if obj > bestObj {
							bestObj, bestScore = obj, s
							bestROI = test
							bestDelta = Delta{DX: dx, DY: dy, SW: sw, SH: sh, DRotDeg: drot}
						}
					}
				}
			}
		}
	}

	improved := bestScore > base+o.ImprovementMargin
	if !improved {
		bestROI, bestDelta, bestScore = roi, Identity, base
	}
	return &Correction{
		ROI: bestROI,
		Meta: Meta{
			Method:      Method,
			Preset:      o.Preset,
			Improved:    improved,
			BaseScore:   base,
			BestScore:   bestScore,
			ScoreGain:   bestScore - base,
			Delta:       bestDelta,
			Search:      o,
			BossCount:   len(bosses),
			Evaluations: evals,
		},
	}, nil
}

// candidateRatios returns the ratio sets of standard grids across nRange plus the
// inner circlecut of the input ROI.
func candidateRatios(roi geometry.ROI, nRange [2]int) ([]ratioSet, error) {
	var out []ratioSet
	for n := nRange[0]; n <= nRange[1]; n++ {
		kp, err := templates.Standard(n)
		if err != nil {
			return nil, err
		}
		xs, ys := matching.ExtractRatios(kp)
		out = append(out, ratioSet{xs, ys})
	}
	kp, err := templates.Circle(templates.Inner, roi)
	if err != nil {
		return nil, err
	}
	xs, ys := matching.ExtractRatios(kp)
	return append(out, ratioSet{xs, ys}), nil
}

// axis samples [centre-r, centre+r] at roughly step spacing, always hitting both ends.
func axis(r, step, centre float64) []float64 {
	n := int(math.Round(2*r/step)) + 1
	if n < 1 {
		n = 1
	}
	return geometry.Linspace(centre-r, centre+r, n)
}

func penalty(dx, dy, sw, sh, drot float64, o Options) float64 {
	xy := math.Max(o.XYRange, 1e-6)
	p := (dx/xy)*(dx/xy) + (dy/xy)*(dy/xy)
	if o.IncludeScale {
		p += (sw-1)*(sw-1) + (sh-1)*(sh-1)
	}
	if o.IncludeRotation {
		rot := math.Max(o.RotationRange, 1e-6)
		p += (drot / rot) * (drot / rot)
	}
	return p
}
