package templates

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// Variant selects the radius of a circlecut template.
type Variant string

// Circlecut variants.
const (
	Inner Variant = "inner"
	Outer Variant = "outer"
)

const (
	gridDedupeTol   = 1e-6
	circleDedupeTol = 1e-2
	intersectTol    = 1e-9
)

// Standard returns the grid intersections of an n-by-n starcut, border lines included.
func Standard(n int) ([]r2.Point, error) {
	if n < 2 {
		return nil, errors.Wrapf(geomerr.ErrInvalidInput, "standard variant requires n >= 2, got %d", n)
	}
	pts := make([]r2.Point, 0, (n+1)*(n+1))
	for i := 0; i <= n; i++ {
		u := geometry.Clip01(float64(i) / float64(n))
		for j := 0; j <= n; j++ {
			v := geometry.Clip01(float64(j) / float64(n))
			pts = append(pts, r2.Point{X: u, Y: v})
		}
	}
	return dedupe(pts, gridDedupeTol), nil
}

// Radius returns the circle radius in pixels for a circlecut variant.
func Radius(variant Variant, w, h float64) (float64, error) {
	switch variant {
	case Inner:
		return 0.5 * math.Max(w, h), nil
	case Outer:
		return 0.5 * math.Hypot(w, h), nil
	}
	return 0, errors.Wrapf(geomerr.ErrInvalidInput, "variant must be %q or %q, got %q", Inner, Outer, variant)
}

// Cardinals holds the four circle points hit by rays from the ROI centre through the
// mid-edge points, in unit coordinates: top, right, bottom, left.
type Cardinals struct {
	Top, Right, Bottom, Left r2.Point
}

// rawCardinals casts the four mid-edge rays onto the circle and maps the hits back to
// unit space.
func rawCardinals(m geometry.Mapper, radius float64) Cardinals {
	c := m.ROI().Centre()
	hit := func(u, v float64) r2.Point {
		target := m.ToImage(r2.Point{X: u, Y: v})
		return m.ToUnit(geometry.RayCirclePoint(c, target, radius))
	}
	return Cardinals{
		Top:    hit(0.5, 0),
		Right:  hit(1, 0.5),
		Bottom: hit(0.5, 1),
		Left:   hit(0, 0.5),
	}
}

// symmetric replaces the cardinal overhangs by their per-axis mean so the template
// stays symmetric about the ROI centre lines.
func (c Cardinals) symmetric() Cardinals {
	tb := (math.Abs(c.Top.Y) + math.Abs(c.Bottom.Y-1)) / 2
	lr := (math.Abs(c.Left.X) + math.Abs(c.Right.X-1)) / 2
	return Cardinals{
		Top:    r2.Point{X: c.Top.X, Y: -tb},
		Right:  r2.Point{X: 1 + lr, Y: c.Right.Y},
		Bottom: r2.Point{X: c.Bottom.X, Y: 1 + tb},
		Left:   r2.Point{X: -lr, Y: c.Left.Y},
	}
}

func (c Cardinals) slice() []r2.Point {
	return []r2.Point{c.Top, c.Right, c.Bottom, c.Left}
}

// CircleGuides returns the 16 construction segments of a circlecut template in unit
// coordinates together with its (symmetrised) cardinals.
func CircleGuides(variant Variant, roi geometry.ROI) ([]geometry.Segment, Cardinals, error) {
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, Cardinals{}, err
	}
	radius, err := Radius(variant, roi.W, roi.H)
	if err != nil {
		return nil, Cardinals{}, err
	}
	card := rawCardinals(m, radius).symmetric()
	pt, pr, pb, pl := card.Top, card.Right, card.Bottom, card.Left

	c00 := r2.Point{X: 0, Y: 0}
	c10 := r2.Point{X: 1, Y: 0}
	c11 := r2.Point{X: 1, Y: 1}
	c01 := r2.Point{X: 0, Y: 1}
	segs := []geometry.Segment{
		{A: c00, B: c11},
		{A: c10, B: c01},
		{A: c00, B: c01},
		{A: c00, B: c10},
		{A: c01, B: c11},
		{A: c11, B: c10},
		{A: pt, B: pb},
		{A: pl, B: pr},
		{A: c00, B: pb},
		{A: c00, B: pr},
		{A: c10, B: pl},
		{A: c10, B: pb},
		{A: c11, B: pl},
		{A: c11, B: pt},
		{A: c01, B: pr},
		{A: c01, B: pt},
	}
	return segs, card, nil
}

// Circle returns the keypoints of a circlecut template: the cardinals, every pairwise
// intersection of the construction guides, and every guide/circle intersection.
func Circle(variant Variant, roi geometry.ROI) ([]r2.Point, error) {
	segs, card, err := CircleGuides(variant, roi)
	if err != nil {
		return nil, err
	}
	radius, _ := Radius(variant, roi.W, roi.H)
	m, _ := geometry.NewMapper(roi)

	pts := card.slice()
	for i := 0; i < len(segs); i++ {
		for j := i + 1; j < len(segs); j++ {
			p, ok := geometry.SegmentIntersection(segs[i].A, segs[i].B, segs[j].A, segs[j].B, intersectTol)
			if ok {
				pts = append(pts, clipPoint(p))
			}
		}
	}

	centre := roi.Centre()
	for _, s := range segs {
		a := m.ToImage(s.A)
		b := m.ToImage(s.B)
		var hits []r2.Point
		for _, h := range geometry.LineCircleIntersections(a, b, centre, radius, intersectTol) {
			hits = append(hits, clipPoint(m.ToUnit(h)))
		}
		pts = append(pts, dedupe(hits, gridDedupeTol)...)
	}
	return dedupe(pts, circleDedupeTol), nil
}

// Keypoints dispatches on the template kind: "standard" (needs n), "inner" or "outer"
// (need roi).
func Keypoints(kind string, n int, roi *geometry.ROI) ([]r2.Point, error) {
	switch kind {
	case "standard":
		return Standard(n)
	case string(Inner), string(Outer):
		if roi == nil {
			return nil, errors.Wrap(geomerr.ErrInvalidInput, "circle variants require roi params")
		}
		return Circle(Variant(kind), *roi)
	}
	return nil, errors.Wrapf(geomerr.ErrInvalidInput, "variant must be 'standard', 'inner', or 'outer', got %q", kind)
}

func clipPoint(p r2.Point) r2.Point {
	return r2.Point{X: geometry.Clip01(p.X), Y: geometry.Clip01(p.Y)}
}

// dedupe rounds every point to 6 digits and keeps the first of any group closer than
// tol.
func dedupe(points []r2.Point, tol float64) []r2.Point {
	out := make([]r2.Point, 0, len(points))
	for _, p := range points {
		q := r2.Point{X: geometry.Round(p.X, 6), Y: geometry.Round(p.Y, 6)}
		dup := false
		for _, o := range out {
			if q.Sub(o).Norm() <= tol {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, q)
		}
	}
	return out
}
