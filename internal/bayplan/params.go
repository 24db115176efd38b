package bayplan

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// Params tunes a reconstruction run.
type Params struct {
	IncludeCornerAnchors      bool    `json:"includeCornerAnchors"`
	IncludeHalfAnchors        bool    `json:"includeHalfAnchors"`
	CrossTolerance            float64 `json:"crossTolerance"`
	CorridorWidthPx           int     `json:"corridorWidthPx"`
	FamilyIncludeThreshold    float64 `json:"familyIncludeThreshold"`
	FamilyOptionalThreshold   float64 `json:"familyOptionalThreshold"`
	CandidateKNN              int     `json:"candidateKnn"`
	CandidateMaxDistanceUV    float64 `json:"candidateMaxDistanceUv"`
	FamilyPriorWeight         float64 `json:"familyPriorWeight"`
	ConstraintMinScore        float64 `json:"constraintMinScore"`
	ConstraintPerBossMinScore float64 `json:"constraintPerBossMinScore"`
	EdgeKeepScore             float64 `json:"edgeKeepScore"`
	EnforcePlanarity          bool    `json:"enforcePlanarity"`
}

// DefaultParams returns the stock reconstruction parameters.
func DefaultParams() Params {
	return Params{
		IncludeCornerAnchors:      true,
		IncludeHalfAnchors:        false,
		CrossTolerance:            0.02,
		CorridorWidthPx:           36,
		FamilyIncludeThreshold:    0.25,
		FamilyOptionalThreshold:   0.15,
		CandidateKNN:              6,
		CandidateMaxDistanceUV:    0.95,
		FamilyPriorWeight:         0.20,
		ConstraintMinScore:        0.34,
		ConstraintPerBossMinScore: 0.20,
		EdgeKeepScore:             0.18,
		EnforcePlanarity:          true,
	}
}

// Validate clamps every field into its supported range.
func (p *Params) Validate() {
	p.CrossTolerance = clampFinite(p.CrossTolerance, 0.001, 0.2, 0.02)
	p.CorridorWidthPx = min(256, max(3, p.CorridorWidthPx))
	p.FamilyIncludeThreshold = clampFinite(p.FamilyIncludeThreshold, 0, 1, 0.25)
	p.FamilyOptionalThreshold = clampFinite(p.FamilyOptionalThreshold, 0, 1, 0.15)
	p.CandidateKNN = min(32, max(1, p.CandidateKNN))
	p.CandidateMaxDistanceUV = clampFinite(p.CandidateMaxDistanceUV, 0.1, 2, 0.95)
	p.FamilyPriorWeight = clampFinite(p.FamilyPriorWeight, 0, 1, 0.2)
	p.ConstraintMinScore = clampFinite(p.ConstraintMinScore, 0, 1, 0.34)
	p.ConstraintPerBossMinScore = clampFinite(p.ConstraintPerBossMinScore, 0, 1, 0.2)
	p.EdgeKeepScore = clampFinite(p.EdgeKeepScore, 0, 1, 0.18)
}

func clampFinite(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return geometry.Clamp(v, lo, hi)
}

// Merge applies the fields present in the JSON object raw on top of p and returns the
// validated result. Unknown keys are ignored.
func (p Params) Merge(raw json.RawMessage) (Params, error) {
	if len(raw) == 0 {
		p.Validate()
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Params{}, errors.Wrapf(geomerr.ErrInvalidInput, "bay plan params: %v", err)
	}
	p.Validate()
	return p, nil
}

// pruneWidth is the corridor used when filtering the triangulated edges.
func (p Params) pruneWidth() int {
	return max(3, int(math.RoundToEven(0.7*float64(p.CorridorWidthPx))))
}
