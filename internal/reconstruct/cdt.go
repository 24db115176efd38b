package reconstruct

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// Tolerances for the triangulator, in unit space.
const (
	orientEps = 1e-12
	mergeEps  = 1e-9
)

// Triangulate returns the constrained Delaunay triangulation of the nodes.
//
// Constraint edges are first made into a proper planar graph: a constraint passing
// through another node is split there, and two crossing constraints are split at a new
// steiner node appended to the node list. The result edge set is every triangle edge
// plus every input constraint. With fewer than two nodes only the constraints are
// returned.
func Triangulate(nodes []Node, constraints []geometry.Edge, roi geometry.ROI) ([]Node, []geometry.Edge, error) {
	cons := UnionEdges(constraints)
	if len(nodes) < 2 {
		return nodes, cons, nil
	}
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range cons {
		if e.B >= len(nodes) {
			return nil, nil, errors.Errorf("constraint %d-%d references a missing node", e.A, e.B)
		}
	}

	pts, segs, err := planarise(UVs(nodes), cons)
	if err != nil {
		return nil, nil, err
	}
	out := append([]Node(nil), nodes...)
	for i := len(nodes); i < len(pts); i++ {
		out = append(out, newNode(m, fmt.Sprintf("steiner_%d", i-len(nodes)), pts[i], SourceSteiner, ""))
	}

	t := newMesh(pts)
	t.delaunay()
	constrained := map[geometry.Edge]bool{}
	for _, s := range segs {
		constrained[s] = true
	}
	for _, s := range segs {
		if err := t.insertConstraint(s); err != nil {
			return nil, nil, err
		}
	}
	t.restoreDelaunay(constrained)

	set := map[geometry.Edge]bool{}
	for _, e := range t.realEdges() {
		set[e] = true
	}
	for _, e := range cons {
		set[e] = true
	}
	return out, sortedEdges(set), nil
}

func orient(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// properCross reports whether ab and cd cross at a single interior point.
func properCross(a, b, c, d r2.Point) bool {
	o1, o2 := orient(a, b, c), orient(a, b, d)
	o3, o4 := orient(c, d, a), orient(c, d, b)
	return ((o1 > orientEps && o2 < -orientEps) || (o1 < -orientEps && o2 > orientEps)) &&
		((o3 > orientEps && o4 < -orientEps) || (o3 < -orientEps && o4 > orientEps))
}

// planarise splits constraint segments at interior nodes and at mutual crossings,
// appending a point for every new crossing.
func planarise(pts []r2.Point, cons []geometry.Edge) ([]r2.Point, []geometry.Edge, error) {
	segs := append([]geometry.Edge(nil), cons...)
	const maxRounds = 100000
	for round := 0; ; round++ {
		if round > maxRounds {
			return nil, nil, errors.New("constraint planarisation did not converge")
		}
		if i, v, ok := findInteriorVertex(pts, segs); ok {
			segs = splitAt(segs, i, v)
			continue
		}
		i, j, p, ok := findCrossing(pts, segs)
		if !ok {
			break
		}
		v := -1
		for k, q := range pts {
			if q.Sub(p).Norm() <= mergeEps {
				v = k
				break
			}
		}
		if v < 0 {
			v = len(pts)
			pts = append(pts, p)
		}
		a, b := segs[i], segs[j]
		segs = removeTwo(segs, i, j)
		for _, e := range []geometry.Edge{{A: a.A, B: v}, {A: v, B: a.B}, {A: b.A, B: v}, {A: v, B: b.B}} {
			if e, ok := geometry.NewEdge(e.A, e.B); ok {
				segs = append(segs, e)
			}
		}
		segs = UnionEdges(segs)
	}
	return pts, UnionEdges(segs), nil
}

func findInteriorVertex(pts []r2.Point, segs []geometry.Edge) (int, int, bool) {
	for i, s := range segs {
		seg := geometry.Segment{A: pts[s.A], B: pts[s.B]}
		for v, p := range pts {
			if s.Has(v) {
				continue
			}
			t, dist, ok := geometry.Project(p, seg)
			if ok && t > mergeEps && t < 1-mergeEps && dist <= mergeEps {
				return i, v, true
			}
		}
	}
	return 0, 0, false
}

func splitAt(segs []geometry.Edge, i, v int) []geometry.Edge {
	s := segs[i]
	out := append(append([]geometry.Edge(nil), segs[:i]...), segs[i+1:]...)
	for _, e := range []geometry.Edge{{A: s.A, B: v}, {A: v, B: s.B}} {
		if e, ok := geometry.NewEdge(e.A, e.B); ok {
			out = append(out, e)
		}
	}
	return UnionEdges(out)
}

func findCrossing(pts []r2.Point, segs []geometry.Edge) (int, int, r2.Point, bool) {
	for i := 0; i < len(segs); i++ {
		for j := i + 1; j < len(segs); j++ {
			a, b := segs[i], segs[j]
			if a.SharesNode(b) {
				continue
			}
			if !properCross(pts[a.A], pts[a.B], pts[b.A], pts[b.B]) {
				continue
			}
			p, ok := geometry.SegmentIntersection(pts[a.A], pts[a.B], pts[b.A], pts[b.B], 0)
			if ok {
				return i, j, p, true
			}
		}
	}
	return 0, 0, r2.Point{}, false
}

func removeTwo(segs []geometry.Edge, i, j int) []geometry.Edge {
	out := make([]geometry.Edge, 0, len(segs)-2)
	for k, s := range segs {
		if k != i && k != j {
			out = append(out, s)
		}
	}
	return out
}

// mesh is a triangle soup with edge adjacency. Vertices at or past nReal belong to
// the enclosing super triangle.
type mesh struct {
	pts   []r2.Point
	nReal int
	tris  [][3]int
	alive []bool
	adj   map[geometry.Edge][]int
}

func newMesh(pts []r2.Point) *mesh {
	lo, hi := pts[0], pts[0]
	for _, p := range pts {
		lo = r2.Point{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
		hi = r2.Point{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
	}
	span := math.Max(math.Max(hi.X-lo.X, hi.Y-lo.Y), 1)
	c := lo.Add(hi).Mul(0.5)
	big := 1e4 * span
	all := append(append([]r2.Point(nil), pts...),
		r2.Point{X: c.X - big, Y: c.Y - big},
		r2.Point{X: c.X + big, Y: c.Y - big},
		r2.Point{X: c.X, Y: c.Y + big},
	)
	return &mesh{pts: all, nReal: len(pts), adj: map[geometry.Edge][]int{}}
}

func triEdges(t [3]int) [3]geometry.Edge {
	var out [3]geometry.Edge
	for k := 0; k < 3; k++ {
		out[k], _ = geometry.NewEdge(t[k], t[(k+1)%3])
	}
	return out
}

func (m *mesh) addTri(a, b, c int) int {
	if orient(m.pts[a], m.pts[b], m.pts[c]) < 0 {
		b, c = c, b
	}
	id := len(m.tris)
	m.tris = append(m.tris, [3]int{a, b, c})
	m.alive = append(m.alive, true)
	for _, e := range triEdges(m.tris[id]) {
		m.adj[e] = append(m.adj[e], id)
	}
	return id
}

func (m *mesh) removeTri(id int) {
	m.alive[id] = false
	for _, e := range triEdges(m.tris[id]) {
		ts := m.adj[e]
		for k, t := range ts {
			if t == id {
				ts = append(ts[:k], ts[k+1:]...)
				break
			}
		}
		if len(ts) == 0 {
			delete(m.adj, e)
		} else {
			m.adj[e] = ts
		}
	}
}

// inCircle reports whether d lies strictly inside the circumcircle of triangle t.
func (m *mesh) inCircle(t [3]int, d r2.Point) bool {
	a, b, c := m.pts[t[0]], m.pts[t[1]], m.pts[t[2]]
	adx, ady := a.X-d.X, a.Y-d.Y
	bdx, bdy := b.X-d.X, b.Y-d.Y
	cdx, cdy := c.X-d.X, c.Y-d.Y
	det := (adx*adx+ady*ady)*(bdx*cdy-cdx*bdy) -
		(bdx*bdx+bdy*bdy)*(adx*cdy-cdx*ady) +
		(cdx*cdx+cdy*cdy)*(adx*bdy-bdx*ady)
	return det > orientEps
}

// delaunay inserts every real point with the Bowyer-Watson algorithm.
func (m *mesh) delaunay() {
	n := m.nReal
	m.addTri(n, n+1, n+2)
	for p := 0; p < n; p++ {
		pt := m.pts[p]
		bad := map[int]bool{}
		for id, t := range m.tris {
			if m.alive[id] && m.inCircle(t, pt) {
				bad[id] = true
			}
		}
		if len(bad) == 0 {
			// Rounding only; fall back to the triangle holding p.
			if id, ok := m.locate(pt); ok {
				bad[id] = true
			} else {
				continue
			}
		}
		var boundary []geometry.Edge
		for id := range bad {
			for _, e := range triEdges(m.tris[id]) {
				shared := false
				for _, o := range m.adj[e] {
					if o != id && bad[o] {
						shared = true
						break
					}
				}
				if !shared {
					boundary = append(boundary, e)
				}
			}
		}
		for id := range bad {
			m.removeTri(id)
		}
		for _, e := range boundary {
			if math.Abs(orient(m.pts[e.A], m.pts[e.B], pt)) <= orientEps {
				continue
			}
			m.addTri(e.A, e.B, p)
		}
	}
}

func (m *mesh) locate(p r2.Point) (int, bool) {
	for id, t := range m.tris {
		if !m.alive[id] {
			continue
		}
		a, b, c := m.pts[t[0]], m.pts[t[1]], m.pts[t[2]]
		if orient(a, b, p) >= -orientEps && orient(b, c, p) >= -orientEps && orient(c, a, p) >= -orientEps {
			return id, true
		}
	}
	return 0, false
}

// opposite returns the vertex of triangle id not on edge e.
func (m *mesh) opposite(id int, e geometry.Edge) int {
	for _, v := range m.tris[id] {
		if !e.Has(v) {
			return v
		}
	}
	return -1
}

// flip replaces edge e, shared by two triangles, with the other diagonal of their
// quad. It returns the new edge.
func (m *mesh) flip(e geometry.Edge) (geometry.Edge, bool) {
	ts := m.adj[e]
	if len(ts) != 2 {
		return geometry.Edge{}, false
	}
	c, d := m.opposite(ts[0], e), m.opposite(ts[1], e)
	if !properCross(m.pts[e.A], m.pts[e.B], m.pts[c], m.pts[d]) {
		return geometry.Edge{}, false
	}
	t0, t1 := ts[0], ts[1]
	m.removeTri(t0)
	m.removeTri(t1)
	m.addTri(c, d, e.A)
	m.addTri(c, d, e.B)
	ne, _ := geometry.NewEdge(c, d)
	return ne, true
}

// insertConstraint forces segment s into the triangulation by flipping the edges
// that cross it.
func (m *mesh) insertConstraint(s geometry.Edge) error {
	if _, ok := m.adj[s]; ok {
		return nil
	}
	a, b := m.pts[s.A], m.pts[s.B]
	var queue []geometry.Edge
	for e := range m.adj {
		if !e.Has(s.A) && !e.Has(s.B) && properCross(a, b, m.pts[e.A], m.pts[e.B]) {
			queue = append(queue, e)
		}
	}
	geometry.SortEdges(queue)

	limit := 10 * (len(queue) + 1) * (len(queue) + 1)
	for steps := 0; len(queue) > 0; steps++ {
		if steps > limit {
			return errors.Errorf("could not recover constraint %d-%d", s.A, s.B)
		}
		e := queue[0]
		queue = queue[1:]
		ne, ok := m.flip(e)
		if !ok {
			queue = append(queue, e)
			continue
		}
		if !ne.Has(s.A) && !ne.Has(s.B) && properCross(a, b, m.pts[ne.A], m.pts[ne.B]) {
			queue = append(queue, ne)
		}
	}
	if _, ok := m.adj[s]; !ok {
		return errors.Errorf("constraint %d-%d missing after recovery", s.A, s.B)
	}
	return nil
}

// restoreDelaunay flips unconstrained interior edges until every one is locally
// Delaunay. Edges next to the super triangle are left alone.
func (m *mesh) restoreDelaunay(constrained map[geometry.Edge]bool) {
	for pass := 0; pass < 4*len(m.adj)+16; pass++ {
		flipped := false
		edges := make([]geometry.Edge, 0, len(m.adj))
		for e := range m.adj {
			edges = append(edges, e)
		}
		geometry.SortEdges(edges)
		for _, e := range edges {
			ts, ok := m.adj[e]
			if !ok || len(ts) != 2 || constrained[e] || !m.realTri(ts[0]) || !m.realTri(ts[1]) {
				continue
			}
			d := m.opposite(ts[1], e)
			if !m.inCircle(m.tris[ts[0]], m.pts[d]) {
				continue
			}
			if _, ok := m.flip(e); ok {
				flipped = true
			}
		}
		if !flipped {
			return
		}
	}
}

func (m *mesh) realTri(id int) bool {
	for _, v := range m.tris[id] {
		if v >= m.nReal {
			return false
		}
	}
	return true
}

// realEdges returns the edges of triangles made only of real points.
func (m *mesh) realEdges() []geometry.Edge {
	set := map[geometry.Edge]bool{}
	for id := range m.tris {
		if !m.alive[id] || !m.realTri(id) {
			continue
		}
		for _, e := range triEdges(m.tris[id]) {
			set[e] = true
		}
	}
	return sortedEdges(set)
}
