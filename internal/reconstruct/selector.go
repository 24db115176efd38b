package reconstruct

import (
	"sort"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

// SelectOptions tunes SelectConstraints.
type SelectOptions struct {
	MinScore         float64
	Protected        []geometry.Edge
	PerBossMinScore  float64
	FallbackTopN     int
	EnforcePlanarity bool
}

type scoredEdge struct {
	edge  geometry.Edge
	score float64
}

// rankScores orders scored edges by score, highest first, then by edge.
func rankScores(scores map[geometry.Edge]ribs.EdgeScore, skip map[geometry.Edge]bool) []scoredEdge {
	out := make([]scoredEdge, 0, len(scores))
	for e, s := range scores {
		if skip[e] {
			continue
		}
		out = append(out, scoredEdge{e, s.Score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].edge.Less(out[j].edge)
	})
	return out
}

// SelectConstraints picks the edges the triangulation must keep.
//
// Protected edges are always selected. The remaining candidates are taken greedily by
// score while they reach MinScore and (with EnforcePlanarity) do not cross a selected
// edge in pixel space. If that adds nothing, the best FallbackTopN candidates are
// tried instead. Finally every boss left without a selected edge gets its best
// candidate when that scores at least PerBossMinScore.
func SelectConstraints(nodes []Node, scores map[geometry.Edge]ribs.EdgeScore, o SelectOptions) []geometry.Edge {
	protected := map[geometry.Edge]bool{}
	for _, e := range o.Protected {
		if e, ok := geometry.NewEdge(e.A, e.B); ok {
			protected[e] = true
		}
	}
	selected := sortedEdges(protected)
	inSet := map[geometry.Edge]bool{}
	for _, e := range selected {
		inSet[e] = true
	}

	tryAdd := func(e geometry.Edge) bool {
		if inSet[e] {
			return true
		}
		if o.EnforcePlanarity && crossesAny(nodes, e, selected) {
			return false
		}
		selected = append(selected, e)
		inSet[e] = true
		return true
	}

	ordered := rankScores(scores, protected)
	added := 0
	for _, c := range ordered {
		if c.score >= o.MinScore && !inSet[c.edge] && tryAdd(c.edge) {
			added++
		}
	}
	if added == 0 && len(ordered) > 0 {
		top := min(len(ordered), max(1, o.FallbackTopN))
		for _, c := range ordered[:top] {
			tryAdd(c.edge)
		}
	}

	for i, n := range nodes {
		if !n.IsBoss() || hasIncident(inSet, i) {
			continue
		}
		for _, c := range ordered {
			if !c.edge.Has(i) {
				continue
			}
			if c.score >= o.PerBossMinScore {
				tryAdd(c.edge)
			}
			break
		}
	}

	out := append([]geometry.Edge(nil), selected...)
	geometry.SortEdges(out)
	return out
}

// crossesAny reports whether e crosses a selected edge it shares no node with.
func crossesAny(nodes []Node, e geometry.Edge, selected []geometry.Edge) bool {
	p1, p2 := nodes[e.A].Pixel, nodes[e.B].Pixel
	for _, s := range selected {
		if e.SharesNode(s) {
			continue
		}
		if geometry.SegmentsCross(p1, p2, nodes[s.A].Pixel, nodes[s.B].Pixel) {
			return true
		}
	}
	return false
}

func hasIncident(set map[geometry.Edge]bool, i int) bool {
	for e := range set {
		if e.Has(i) {
			return true
		}
	}
	return false
}
