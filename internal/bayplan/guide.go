package bayplan

import (
	"go.uber.org/zap"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/reconstruct"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

// guide picks the constraint edges of a run from the rib evidence.
type guide struct {
	params   Params
	nodes    []reconstruct.Node
	boundary []geometry.Edge
	scorer   *ribs.Scorer
	log      *zap.SugaredLogger

	constraints []geometry.Edge
	enabled     []ribs.Family
	support     map[ribs.Family]float64
	reason      string
}

func (g *guide) run() {
	g.enabled = []ribs.Family{}
	g.support = make(map[ribs.Family]float64, len(ribs.Families))
	for _, f := range ribs.Families {
		g.support[f] = 0
	}

	if g.scorer == nil {
		g.reason = ReasonNoRibMask
		g.constraints = g.boundary
		g.log.Warnw("bay plan fallback", "reason", g.reason)
		return
	}

	p := g.params
	g.support = g.scorer.FamilySupport(p.CorridorWidthPx)
	gated := ribs.GateFamilies(g.support, p.FamilyIncludeThreshold, p.FamilyOptionalThreshold)

	guides := reconstruct.SegmentEdges(g.nodes, reconstruct.SegmentsForFamilies(gated), p.CrossTolerance)
	knn := reconstruct.KNNEdges(g.nodes, p.CandidateKNN, p.CandidateMaxDistanceUV)
	candidates := reconstruct.UnionEdges(guides, knn, g.boundary)
	scores := g.scorer.ScoreCandidates(reconstruct.UVs(g.nodes), candidates, p.CorridorWidthPx, g.support, p.FamilyPriorWeight)
	g.log.Debugw("bay plan candidates",
		"gated", gated, "guides", len(guides), "knn", len(knn), "candidates", len(candidates))

	g.constraints = reconstruct.SelectConstraints(g.nodes, scores, reconstruct.SelectOptions{
		MinScore:         p.ConstraintMinScore,
		Protected:        g.boundary,
		PerBossMinScore:  p.ConstraintPerBossMinScore,
		FallbackTopN:     max(4, len(g.nodes)/2),
		EnforcePlanarity: p.EnforcePlanarity,
	})

	for _, e := range g.constraints {
		f, ok := ribs.ClassifyFamily(g.nodes[e.A].UV(), g.nodes[e.B].UV())
		if ok && !contains(g.enabled, f) {
			g.enabled = append(g.enabled, f)
		}
	}

	if len(g.constraints) <= len(g.boundary) {
		g.reason = ReasonWeakSupport
		if len(g.enabled) == 0 {
			g.enabled = append(g.enabled, gated...)
		}
		g.log.Warnw("bay plan fallback", "reason", g.reason, "constraints", len(g.constraints))
	}
}

func contains(fs []ribs.Family, f ribs.Family) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}
