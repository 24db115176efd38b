package project

import (
	"strings"
	"time"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/matching"
	"github.com/ironsheep/vault-geometry-mcp/internal/roicorrect"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

// ROIRecord is 2d_geometry/roi.json.
type ROIRecord struct {
	Params                geometry.ROI                `json:"params"`
	OriginalParams        geometry.ROI                `json:"original_params"`
	CorrectedParams       *geometry.ROI               `json:"corrected_params"`
	CorrectionRequested   bool                        `json:"correction_requested"`
	CorrectionApplied     bool                        `json:"correction_applied"`
	CorrectionSkipReason  string                      `json:"correction_skip_reason,omitempty"`
	AutoCorrection        *roicorrect.Meta            `json:"auto_correction"`
	VaultRatio            float64                     `json:"vault_ratio"`
	RatioSource           string                      `json:"ratio_source,omitempty"`
	VaultRatioSuggestions []templates.RatioSuggestion `json:"vault_ratio_suggestions"`
	ImagePath             string                      `json:"image_path,omitempty"`
	UpdatedAt             time.Time                   `json:"updated_at"`
}

// XY is a pixel position.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UV is a unit-space position.
type UV struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
}

// BossEntry is one boss of the boss report.
type BossEntry struct {
	ID          int  `json:"id"`
	ComponentID int  `json:"component_id"`
	Area        int  `json:"area"`
	CentroidXY  XY   `json:"centroid_xy"`
	CentroidUV  UV   `json:"centroid_uv"`
	OutOfBounds bool `json:"out_of_bounds"`
}

// BossReport is 2d_geometry/boss_report.json.
type BossReport struct {
	CreatedAt        time.Time    `json:"created_at"`
	ROI              geometry.ROI `json:"roi"`
	BossMaskPath     string       `json:"boss_mask_path,omitempty"`
	DetectionMode    string       `json:"detection_mode"`
	BossIDs          []int        `json:"boss_ids"`
	BossCount        int          `json:"boss_count"`
	OutOfBoundsCount int          `json:"out_of_bounds_count"`
	Bosses           []BossEntry  `json:"bosses"`
}

// Points returns the report's bosses as matching points with source "auto".
func (r *BossReport) Points() []matching.Point {
	out := make([]matching.Point, 0, len(r.Bosses))
	for _, b := range r.Bosses {
		out = append(out, matching.Point{ID: b.ID, X: b.CentroidXY.X, Y: b.CentroidXY.Y, Source: "auto"})
	}
	return out
}

// NodePoints is the saved matching point set.
type NodePoints struct {
	UpdatedAt time.Time        `json:"updated_at"`
	NodeCount int              `json:"node_count"`
	Points    []matching.Point `json:"points"`
}

// Segmentation is one entry of segmentations/index.json.
type Segmentation struct {
	GroupID  string `json:"groupId"`
	Label    string `json:"label"`
	MaskFile string `json:"maskFile"`
}

// IsRib reports whether the segmentation outlines ribs.
func (s Segmentation) IsRib() bool {
	return strings.EqualFold(s.GroupID, "rib") || strings.Contains(strings.ToLower(s.Label), "rib")
}

// SegmentationIndex is segmentations/index.json.
type SegmentationIndex struct {
	Segmentations []Segmentation `json:"segmentations"`
}
