package reconstruct

import (
	"math"
	"sort"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

// pruneQuantile is the share of unconstrained edges scored below the keep threshold
// before MinScore is applied.
const pruneQuantile = 0.35

// PruneEdges drops weakly supported unconstrained edges from a triangulation.
//
// The keep threshold is the larger of minScore and the 0.35 quantile of the
// unconstrained edge scores. Constraint edges always stay, and every boss keeps its
// best scoring incident edge. Without a scorer the edges are returned unchanged with
// a zero threshold.
func PruneEdges(scorer *ribs.Scorer, nodes []Node, edges, constraints []geometry.Edge, widthPx int, minScore float64) ([]geometry.Edge, float64) {
	all := UnionEdges(edges)
	if scorer == nil || len(all) == 0 {
		return all, 0
	}
	isCons := map[geometry.Edge]bool{}
	for _, e := range UnionEdges(constraints) {
		isCons[e] = true
	}

	scores := scorer.ScoreCandidates(UVs(nodes), all, widthPx, nil, 0)
	var free []float64
	for _, e := range all {
		if !isCons[e] {
			free = append(free, scores[e].Score)
		}
	}
	threshold := minScore
	if len(free) > 0 {
		sort.Float64s(free)
		threshold = max(minScore, quantile(free, pruneQuantile))
	}

	keep := map[geometry.Edge]bool{}
	for _, e := range all {
		if isCons[e] || scores[e].Score >= threshold {
			keep[e] = true
		}
	}

	for i, n := range nodes {
		if !n.IsBoss() || hasIncident(keep, i) {
			continue
		}
		best, found := geometry.Edge{}, false
		for _, e := range all {
			if !e.Has(i) {
				continue
			}
			if !found || scores[e].Score > scores[best].Score {
				best, found = e, true
			}
		}
		if found {
			keep[best] = true
		}
	}
	return sortedEdges(keep), threshold
}

// quantile interpolates linearly between the closest ranks of sorted, placing q at
// rank q*(n-1).
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := math.Floor(pos)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (sorted[i+1]-sorted[i])*(pos-lo)
}
