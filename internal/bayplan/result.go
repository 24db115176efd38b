package bayplan

import (
	"time"

	"github.com/ironsheep/vault-geometry-mcp/internal/reconstruct"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

// Fallback reasons reported with a run.
const (
	ReasonNoRibMask   = "No rib masks found in segmentation outputs. Running baseline triangulation."
	ReasonWeakSupport = "Rib support is weak for edge-level constraints; using near-baseline triangulation."
)

// UsedBoss is a boss as placed in the reconstruction, in pixels.
type UsedBoss struct {
	ID     string `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Source string `json:"source"`
}

// ResultEdge is a reconstructed edge between two node indices.
type ResultEdge struct {
	A            int  `json:"a"`
	B            int  `json:"b"`
	IsConstraint bool `json:"isConstraint"`
}

// Result is the persisted outcome of a reconstruction run.
type Result struct {
	RunID                     string                  `json:"runId"`
	RanAt                     time.Time               `json:"ranAt"`
	NodeCount                 int                     `json:"nodeCount"`
	EdgeCount                 int                     `json:"edgeCount"`
	ConstraintEdgeCount       int                     `json:"constraintEdgeCount"`
	IdealBossUsedCount        int                     `json:"idealBossUsedCount"`
	BossCount                 int                     `json:"bossCount"`
	EnabledConstraintFamilies []ribs.Family           `json:"enabledConstraintFamilies"`
	FamilySupportScores       map[ribs.Family]float64 `json:"familySupportScores"`
	FallbackApplied           bool                    `json:"fallbackApplied"`
	FallbackReason            string                  `json:"fallbackReason"`
	Params                    Params                  `json:"params"`
	EdgeKeepThreshold         float64                 `json:"edgeKeepThreshold"`
	Nodes                     []reconstruct.Node      `json:"nodes"`
	Edges                     []ResultEdge            `json:"edges"`
	UsedBosses                []UsedBoss              `json:"usedBosses"`
	IdealBosses               []UsedBoss              `json:"idealBosses"`
	ExtractedBosses           []UsedBoss              `json:"extractedBosses"`
}

// Summary is the short form of a run shown with the state.
type Summary struct {
	RunID                     string        `json:"runId"`
	RanAt                     time.Time     `json:"ranAt"`
	NodeCount                 int           `json:"nodeCount"`
	EdgeCount                 int           `json:"edgeCount"`
	EnabledConstraintFamilies []ribs.Family `json:"enabledConstraintFamilies"`
	FallbackApplied           bool          `json:"fallbackApplied"`
}

// Summary returns the run summary of r.
func (r *Result) Summary() *Summary {
	return &Summary{
		RunID:                     r.RunID,
		RanAt:                     r.RanAt,
		NodeCount:                 r.NodeCount,
		EdgeCount:                 r.EdgeCount,
		EnabledConstraintFamilies: r.EnabledConstraintFamilies,
		FallbackApplied:           r.FallbackApplied,
	}
}

// ConstraintEdges returns the edges of r flagged as constraints.
func (r *Result) ConstraintEdges() []ResultEdge {
	var out []ResultEdge
	for _, e := range r.Edges {
		if e.IsConstraint {
			out = append(out, e)
		}
	}
	return out
}

func filterBosses(bosses []UsedBoss, source string) []UsedBoss {
	out := []UsedBoss{}
	for _, b := range bosses {
		if b.Source == source {
			out = append(out, b)
		}
	}
	return out
}
