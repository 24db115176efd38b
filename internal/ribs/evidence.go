package ribs

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// Family is the orientation class of a rib segment.
type Family string

// Orientation families, in canonical order.
const (
	Vertical          Family = "vertical"
	Horizontal        Family = "horizontal"
	DiagonalBackslash Family = "diagonal_backslash"
	DiagonalSlash     Family = "diagonal_slash"
)

// Families lists every family in canonical order.
var Families = []Family{Vertical, Horizontal, DiagonalBackslash, DiagonalSlash}

// CanonicalSegment is the full-span unit segment of a family.
func CanonicalSegment(f Family) geometry.Segment {
	switch f {
	case Vertical:
		return geometry.Seg(0.5, 0, 0.5, 1)
	case Horizontal:
		return geometry.Seg(0, 0.5, 1, 0.5)
	case DiagonalBackslash:
		return geometry.Seg(0, 0, 1, 1)
	case DiagonalSlash:
		return geometry.Seg(1, 0, 0, 1)
	}
	return geometry.Segment{}
}

// angleTolDeg is how far from an axis a segment may lean and still count as
// horizontal or vertical.
const angleTolDeg = 22.0

// ClassifyFamily returns the orientation family of p1->p2. ok is false for a
// zero-length segment.
func ClassifyFamily(p1, p2 r2.Point) (Family, bool) {
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	switch {
	case math.Abs(dx) <= 1e-9 && math.Abs(dy) <= 1e-9:
		return "", false
	case math.Abs(dx) <= 1e-9:
		return Vertical, true
	case math.Abs(dy) <= 1e-9:
		return Horizontal, true
	}
	angle := math.Atan2(math.Abs(dy), math.Abs(dx)) * 180 / math.Pi
	switch {
	case angle <= angleTolDeg:
		return Horizontal, true
	case angle >= 90-angleTolDeg:
		return Vertical, true
	case dx*dy >= 0:
		return DiagonalBackslash, true
	}
	return DiagonalSlash, true
}

// GateFamilies returns the families scoring at least include; when none do, those
// scoring at least optional; otherwise nothing.
func GateFamilies(scores map[Family]float64, include, optional float64) []Family {
	var enabled, maybe []Family
	for _, f := range Families {
		s, ok := scores[f]
		if !ok {
			continue
		}
		switch {
		case s >= include:
			enabled = append(enabled, f)
		case s >= optional:
			maybe = append(maybe, f)
		}
	}
	if len(enabled) > 0 {
		return enabled
	}
	if len(maybe) > 0 {
		return maybe
	}
	return []Family{}
}

// Support is the rib evidence for one segment.
type Support struct {
	Overlap  float64 `json:"overlap"`
	Coverage float64 `json:"coverage"`
	Endpoint float64 `json:"endpoint"`
	Evidence float64 `json:"evidence"`
}

// EdgeScore is the blended score of a candidate edge.
type EdgeScore struct {
	Score       float64 `json:"score"`
	Family      Family  `json:"family,omitempty"`
	FamilyPrior float64 `json:"familyPrior"`
	Support
}

// Scorer evaluates unit-space segments against a rib mask placed under an ROI.
type Scorer struct {
	mask   *Mask
	field  *DistanceField
	mapper geometry.Mapper
}

// NewScorer precomputes the distance field of mask.
func NewScorer(mask *Mask, roi geometry.ROI) (*Scorer, error) {
	if mask.Empty() {
		return nil, errors.Wrap(geomerr.ErrInvalidInput, "rib mask is empty")
	}
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, err
	}
	return &Scorer{mask: mask, field: DistanceTransform(mask), mapper: m}, nil
}

// Mask returns the raster the scorer reads.
func (s *Scorer) Mask() *Mask { return s.mask }

// pixel maps a unit point (clipped to the unit square) to the nearest raster pixel.
func (s *Scorer) pixel(uv r2.Point) r2.Point {
	p := s.mapper.ToImage(r2.Point{X: geometry.Clip01(uv.X), Y: geometry.Clip01(uv.Y)})
	x := geometry.Clamp(math.Round(p.X), 0, float64(s.mask.Width-1))
	y := geometry.Clamp(math.Round(p.Y), 0, float64(s.mask.Height-1))
	return r2.Point{X: x, Y: y}
}

// ScoreSegment scores the unit segment uv1-uv2 with a corridor of widthPx pixels.
func (s *Scorer) ScoreSegment(uv1, uv2 r2.Point, widthPx int) Support {
	width := float64(max(1, widthPx))
	p1, p2 := s.pixel(uv1), s.pixel(uv2)

	ov := overlap(s.mask, Corridor(s.mask.Width, s.mask.Height, p1, p2, width))

	length := p1.Sub(p2).Norm()
	samples := max(8, int(length/4))
	nearThr := math.Max(1, 0.55*width)
	xs := geometry.Linspace(p1.X, p2.X, samples)
	ys := geometry.Linspace(p1.Y, p2.Y, samples)
	near := 0
	for i := range xs {
		if s.field.At(int(math.RoundToEven(xs[i])), int(math.RoundToEven(ys[i]))) <= nearThr {
			near++
		}
	}
	cov := float64(near) / float64(samples)

	dEp := 0.5 * (s.field.At(int(p1.X), int(p1.Y)) + s.field.At(int(p2.X), int(p2.Y)))
	ep := math.Max(0, 1-math.Min(1, dEp/math.Max(1, nearThr)))

	return Support{
		Overlap:  ov,
		Coverage: cov,
		Endpoint: ep,
		Evidence: geometry.Clip01(0.55*cov + 0.35*ov + 0.10*ep),
	}
}

// FamilySupport returns the corridor overlap of each family's canonical segment.
func (s *Scorer) FamilySupport(widthPx int) map[Family]float64 {
	width := float64(max(1, widthPx))
	out := make(map[Family]float64, len(Families))
	for _, f := range Families {
		seg := CanonicalSegment(f)
		out[f] = overlap(s.mask, Corridor(s.mask.Width, s.mask.Height, s.pixel(seg.A), s.pixel(seg.B), width))
	}
	return out
}

// ScoreCandidates scores each edge between the given unit positions, blending rib
// evidence with the prior of the edge's family:
// score = (1-w)*evidence + w*prior, w clamped to [0, 1]. Edges with out-of-range
// indices are skipped.
func (s *Scorer) ScoreCandidates(uvs []r2.Point, edges []geometry.Edge, widthPx int, priors map[Family]float64, priorWeight float64) map[geometry.Edge]EdgeScore {
	w := geometry.Clip01(priorWeight)
	out := make(map[geometry.Edge]EdgeScore, len(edges))
	for _, e := range edges {
		e, ok := geometry.NewEdge(e.A, e.B)
		if !ok || e.B >= len(uvs) {
			continue
		}
		p1, p2 := uvs[e.A], uvs[e.B]
		sup := s.ScoreSegment(p1, p2, widthPx)
		fam, hasFam := ClassifyFamily(p1, p2)
		prior := 0.0
		if hasFam {
			prior = priors[fam]
		}
		out[e] = EdgeScore{
			Score:       geometry.Clip01((1-w)*sup.Evidence + w*prior),
			Family:      fam,
			FamilyPrior: prior,
			Support:     sup,
		}
	}
	return out
}
