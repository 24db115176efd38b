package matching

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

// VariantSummary is the per-variant outcome of a matching run.
type VariantSummary struct {
	VariantLabel    string            `json:"variantLabel"`
	TemplateType    TemplateType      `json:"templateType"`
	Variant         string            `json:"variant"`
	N               *int              `json:"n"`
	IsCrossTemplate bool              `json:"isCrossTemplate"`
	XTemplate       *string           `json:"xTemplate"`
	YTemplate       *string           `json:"yTemplate"`
	MatchedCount    int               `json:"matchedCount"`
	Coverage        float64           `json:"coverage"`
	MatchedBossIDs  []int             `json:"matchedBossIds"`
	Overlay         templates.Overlay `json:"overlay"`
}

// BossMatch records one variant a boss matched.
type BossMatch struct {
	VariantLabel    string       `json:"variantLabel"`
	TemplateType    TemplateType `json:"templateType"`
	IsCrossTemplate bool         `json:"isCrossTemplate"`
	XTemplate       *string      `json:"xTemplate"`
	YTemplate       *string      `json:"yTemplate"`
	XRatio          float64      `json:"xRatio"`
	YRatio          float64      `json:"yRatio"`
	XError          float64      `json:"xError"`
	YError          float64      `json:"yError"`
	XRatioIndex     int          `json:"xRatioIndex"`
	YRatioIndex     int          `json:"yRatioIndex"`
}

// BossResult lists every variant one boss matched.
type BossResult struct {
	PointUV
	MatchedAny   bool        `json:"matchedAny"`
	MatchedCount int         `json:"matchedCount"`
	Matches      []BossMatch `json:"matches"`
}

// Result is the full output of a matching run.
type Result struct {
	RunID            string           `json:"runId,omitempty"`
	ROI              geometry.ROI     `json:"roi"`
	Params           Params           `json:"params"`
	Points           []PointUV        `json:"points"`
	Variants         []VariantSummary `json:"variants"`
	PerBoss          []BossResult     `json:"perBoss"`
	BestVariantLabel *string          `json:"bestVariantLabel"`
	RanAt            time.Time        `json:"ranAt"`
}

// Run matches every point against every enabled variant.
//
// Variant summaries come back ordered best first. RunID and RanAt are left for the
// caller to stamp.
func Run(roi geometry.ROI, points []Point, p Params) (*Result, error) {
	uv, err := AttachUV(points, roi)
	if err != nil {
		return nil, err
	}
	if len(uv) == 0 {
		return nil, errors.Wrap(geomerr.ErrInsufficientBosses, "no node points available for cut-typology matching")
	}
	variants, err := BuildVariants(roi, p)
	if err != nil {
		return nil, err
	}

	perBoss := make([]BossResult, len(uv))
	for i := range uv {
		perBoss[i] = BossResult{PointUV: uv[i], Matches: []BossMatch{}}
	}

	summaries := make([]VariantSummary, 0, len(variants))
	for _, v := range variants {
		s := summarise(v)
		for i, pt := range uv {
			m := MatchOne(pt.UV(), v.XRatios, v.YRatios, p.Tolerance)
			if !m.Matched() {
				continue
			}
			s.MatchedCount++
			s.MatchedBossIDs = append(s.MatchedBossIDs, pt.ID)
			perBoss[i].Matches = append(perBoss[i].Matches, BossMatch{
				VariantLabel:    v.Label,
				TemplateType:    v.Type,
				IsCrossTemplate: v.IsCross(),
				XTemplate:       s.XTemplate,
				YTemplate:       s.YTemplate,
				XRatio:          v.XRatios[m.XIdx],
				YRatio:          v.YRatios[m.YIdx],
				XError:          m.XDist,
				YError:          m.YDist,
				XRatioIndex:     m.XIdx,
				YRatioIndex:     m.YIdx,
			})
		}
		s.Coverage = float64(s.MatchedCount) / float64(len(uv))
		summaries = append(summaries, s)
	}

	for i := range perBoss {
		perBoss[i].MatchedCount = len(perBoss[i].Matches)
		perBoss[i].MatchedAny = perBoss[i].MatchedCount > 0
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return rankLess(summaries[i], summaries[j])
	})
	res := &Result{
		ROI:      roi,
		Params:   p,
		Points:   uv,
		Variants: summaries,
		PerBoss:  perBoss,
	}
	if len(summaries) > 0 {
		best := summaries[0].VariantLabel
		res.BestVariantLabel = &best
	}
	return res, nil
}

// Describe returns the unmatched summary of each variant, for previewing overlays
// before a run.
func Describe(variants []Variant) []VariantSummary {
	out := make([]VariantSummary, len(variants))
	for i, v := range variants {
		out[i] = summarise(v)
	}
	return out
}

func summarise(v Variant) VariantSummary {
	s := VariantSummary{
		VariantLabel:    v.Label,
		TemplateType:    v.Type,
		Variant:         v.Variant,
		IsCrossTemplate: v.IsCross(),
		MatchedBossIDs:  []int{},
		Overlay:         v.Overlay,
	}
	if v.N > 0 {
		n := v.N
		s.N = &n
	}
	if v.IsCross() {
		x, y := v.XSource, v.YSource
		s.XTemplate, s.YTemplate = &x, &y
	}
	return s
}

// complexity orders template families from simplest to most involved.
func complexity(s VariantSummary) int {
	switch {
	case s.TemplateType == Starcut:
		return 0
	case s.TemplateType == Circlecut && s.VariantLabel == CirclecutLabel(templates.Inner):
		return 1
	case s.TemplateType == Circlecut:
		return 2
	case s.TemplateType == Cross || s.IsCrossTemplate:
		return 3
	}
	return 4
}

// rankLess orders summaries by (-matched, complexity, n, label).
func rankLess(a, b VariantSummary) bool {
	if a.MatchedCount != b.MatchedCount {
		return a.MatchedCount > b.MatchedCount
	}
	if ca, cb := complexity(a), complexity(b); ca != cb {
		return ca < cb
	}
	if na, nb := nOr(a.N, 9999), nOr(b.N, 9999); na != nb {
		return na < nb
	}
	return a.VariantLabel < b.VariantLabel
}

func nOr(n *int, fallback int) int {
	if n == nil {
		return fallback
	}
	return *n
}
