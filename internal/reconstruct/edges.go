package reconstruct

import (
	"sort"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

// BoundarySegments returns the four ROI borders, clockwise from the top.
func BoundarySegments() []geometry.Segment {
	return []geometry.Segment{
		geometry.Seg(0, 0, 1, 0),
		geometry.Seg(1, 0, 1, 1),
		geometry.Seg(1, 1, 0, 1),
		geometry.Seg(0, 1, 0, 0),
	}
}

// SegmentsForFamilies returns the borders followed by the canonical segment of each
// family.
func SegmentsForFamilies(families []ribs.Family) []geometry.Segment {
	out := BoundarySegments()
	for _, f := range families {
		if s := ribs.CanonicalSegment(f); s != (geometry.Segment{}) {
			out = append(out, s)
		}
	}
	return out
}

// segmentT bounds how far past its ends a node may project onto a guide segment.
const segmentT = 1e-6

// SegmentEdges chains the boss and anchor nodes lying within tol of each segment,
// in order along it. A segment with fewer than two such nodes contributes nothing.
func SegmentEdges(nodes []Node, segments []geometry.Segment, tol float64) []geometry.Edge {
	set := map[geometry.Edge]bool{}
	type hit struct {
		t   float64
		idx int
	}
	for _, s := range segments {
		var on []hit
		for i, n := range nodes {
			if n.Source != SourceBoss && n.Source != SourceAnchor {
				continue
			}
			t, dist, ok := geometry.Project(n.UV(), s)
			if !ok || t < -segmentT || t > 1+segmentT || dist > tol {
				continue
			}
			on = append(on, hit{t, i})
		}
		if len(on) < 2 {
			continue
		}
		sort.SliceStable(on, func(i, j int) bool { return on[i].t < on[j].t })
		for k := 1; k < len(on); k++ {
			if e, ok := geometry.NewEdge(on[k-1].idx, on[k].idx); ok {
				set[e] = true
			}
		}
	}
	return sortedEdges(set)
}

// KNNEdges links every node to its k nearest neighbours in unit space, skipping
// neighbours further than maxDist.
func KNNEdges(nodes []Node, k int, maxDist float64) []geometry.Edge {
	n := len(nodes)
	if n < 2 {
		return []geometry.Edge{}
	}
	kEff := max(1, min(k, n-1))
	max2 := maxDist * maxDist
	set := map[geometry.Edge]bool{}
	idx := make([]int, 0, n-1)
	d2 := make([]float64, n)
	for i := range nodes {
		idx = idx[:0]
		for j := range nodes {
			if j == i {
				continue
			}
			d := nodes[i].UV().Sub(nodes[j].UV())
			d2[j] = d.Dot(d)
			idx = append(idx, j)
		}
		sort.SliceStable(idx, func(a, b int) bool { return d2[idx[a]] < d2[idx[b]] })
		for _, j := range idx[:kEff] {
			if d2[j] > max2 {
				continue
			}
			if e, ok := geometry.NewEdge(i, j); ok {
				set[e] = true
			}
		}
	}
	return sortedEdges(set)
}

// UnionEdges merges edge lists into one sorted, duplicate-free list.
func UnionEdges(lists ...[]geometry.Edge) []geometry.Edge {
	set := map[geometry.Edge]bool{}
	for _, l := range lists {
		for _, e := range l {
			if e, ok := geometry.NewEdge(e.A, e.B); ok {
				set[e] = true
			}
		}
	}
	return sortedEdges(set)
}

func sortedEdges(set map[geometry.Edge]bool) []geometry.Edge {
	out := make([]geometry.Edge, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	geometry.SortEdges(out)
	return out
}
