package geometry

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"
)

// Segment is a straight line segment between two points of the same space.
type Segment struct {
	A r2.Point
	B r2.Point
}

// Seg is shorthand for building a Segment from raw coordinates.
func Seg(ax, ay, bx, by float64) Segment {
	return Segment{A: r2.Point{X: ax, Y: ay}, B: r2.Point{X: bx, Y: by}}
}

// Len returns the Euclidean length of s.
func (s Segment) Len() float64 {
	return s.B.Sub(s.A).Norm()
}

// SegmentIntersection returns the intersection point of segments ab and cd.
//
// Both segment parameters must lie in [-tol, 1+tol]. Parallel (or nearly parallel)
// segments report no intersection.
func SegmentIntersection(a, b, c, d r2.Point, tol float64) (r2.Point, bool) {
	r := b.Sub(a)
	s := d.Sub(c)
	denom := r.Cross(s)
	if math.Abs(denom) <= tol {
		return r2.Point{}, false
	}
	u := c.Sub(a)
	t := u.Cross(s) / denom
	w := u.Cross(r) / denom
	if t < -tol || t > 1+tol || w < -tol || w > 1+tol {
		return r2.Point{}, false
	}
	return a.Add(r.Mul(t)), true
}

// orientation returns the sign of the turn a -> b -> c, or 0 when the three points are
// collinear within 1e-9.
func orientation(a, b, c r2.Point) int {
	val := (b.Y-a.Y)*(c.X-b.X) - (b.X-a.X)*(c.Y-b.Y)
	if math.Abs(val) <= 1e-9 {
		return 0
	}
	if val > 0 {
		return 1
	}
	return -1
}

// onSegment reports whether b lies within the bounding box of segment ac.
func onSegment(a, b, c r2.Point) bool {
	return math.Min(a.X, c.X) <= b.X && b.X <= math.Max(a.X, c.X) &&
		math.Min(a.Y, c.Y) <= b.Y && b.Y <= math.Max(a.Y, c.Y)
}

// SegmentsCross reports whether segment p1p2 intersects segment p3p4.
//
// Segments that share an endpoint coordinate never cross. Collinear overlap counts as
// a crossing.
func SegmentsCross(p1, p2, p3, p4 r2.Point) bool {
	if p1 == p3 || p1 == p4 || p2 == p3 || p2 == p4 {
		return false
	}

	o1 := orientation(p1, p2, p3)
	o2 := orientation(p1, p2, p4)
	o3 := orientation(p3, p4, p1)
	o4 := orientation(p3, p4, p2)
	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(p1, p3, p2) {
		return true
	}
	if o2 == 0 && onSegment(p1, p4, p2) {
		return true
	}
	if o3 == 0 && onSegment(p3, p1, p4) {
		return true
	}
	if o4 == 0 && onSegment(p3, p2, p4) {
		return true
	}
	return false
}

// Project returns the parameter t of the orthogonal projection of p on the line
// through s, and the distance from p to that projection. ok is false for a
// zero-length segment.
func Project(p r2.Point, s Segment) (t, dist float64, ok bool) {
	d := s.B.Sub(s.A)
	len2 := d.Dot(d)
	if len2 <= 1e-12 {
		return 0, 0, false
	}
	t = p.Sub(s.A).Dot(d) / len2
	proj := s.A.Mul(1 - t).Add(s.B.Mul(t))
	return t, p.Sub(proj).Norm(), true
}

// RayCirclePoint casts a ray from centre through target and returns the point at the
// given radius along it. A zero-length ray returns centre.
func RayCirclePoint(centre, target r2.Point, radius float64) r2.Point {
	v := target.Sub(centre)
	n := v.Norm()
	if n == 0 {
		return centre
	}
	return centre.Add(v.Mul(radius / n))
}

// LineCircleIntersections returns the points where segment ab meets the circle of the
// given radius around centre, in segment order. Tangent contacts yield the same point
// twice; callers deduplicate.
func LineCircleIntersections(a, b, centre r2.Point, radius, tol float64) []r2.Point {
	d := b.Sub(a)
	qa := d.Dot(d)
	if qa <= tol {
		return nil
	}
	f := a.Sub(centre)
	qb := 2 * d.Dot(f)
	qc := f.Dot(f) - radius*radius
	disc := qb*qb - 4*qa*qc
	if disc < -tol {
		return nil
	}
	sq := math.Sqrt(math.Max(0, disc))

	var out []r2.Point
	for _, sign := range []float64{-1, 1} {
		t := (-qb + sign*sq) / (2 * qa)
		if t >= -tol && t <= 1+tol {
			out = append(out, a.Add(d.Mul(t)))
		}
	}
	return out
}

// Linspace returns n evenly spaced samples over [lo, hi]. n == 1 yields lo.
func Linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Clip01 clamps v into [0, 1].
func Clip01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds v to the given number of decimal digits, half away from zero.
func Round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// Edge is an undirected pair of node indices with A < B.
type Edge struct {
	A int `json:"a"`
	B int `json:"b"`
}

// NewEdge orders i and j. ok is false for a self loop or a negative index.
func NewEdge(i, j int) (Edge, bool) {
	if i == j || i < 0 || j < 0 {
		return Edge{}, false
	}
	if i > j {
		i, j = j, i
	}
	return Edge{A: i, B: j}, true
}

// Has reports whether the edge touches node i.
func (e Edge) Has(i int) bool {
	return e.A == i || e.B == i
}

// SharesNode reports whether e and o have an endpoint in common.
func (e Edge) SharesNode(o Edge) bool {
	return e.Has(o.A) || e.Has(o.B)
}

// Less orders edges lexicographically by (A, B).
func (e Edge) Less(o Edge) bool {
	if e.A != o.A {
		return e.A < o.A
	}
	return e.B < o.B
}

// SortEdges sorts edges in place by (A, B).
func SortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].Less(edges[j]) })
}
