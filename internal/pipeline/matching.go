package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/matching"
	"github.com/ironsheep/vault-geometry-mcp/internal/project"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

// MatchingState is what MatchingStage.GetState reports.
type MatchingState struct {
	Points            []matching.PointUV        `json:"points"`
	DetectedPoints    []matching.PointUV        `json:"detectedPoints"`
	ROI               geometry.ROI              `json:"roi"`
	Defaults          matching.Params           `json:"defaults"`
	Params            matching.Params           `json:"params"`
	ParameterSchema   []matching.SchemaField    `json:"parameterSchema"`
	OverlayVariants   []matching.VariantSummary `json:"overlayVariants"`
	LastResultSummary *MatchSummary             `json:"lastResultSummary"`
}

// MatchSummary describes the last matching run.
type MatchSummary struct {
	RunID            string    `json:"runId,omitempty"`
	VariantCount     int       `json:"variantCount"`
	BestVariantLabel *string   `json:"bestVariantLabel"`
	RanAt            time.Time `json:"ranAt"`
}

// SavedPoints is the answer to SavePoints.
type SavedPoints struct {
	SavedCount int                `json:"savedCount"`
	Points     []matching.PointUV `json:"points"`
}

// MatchTable is the persisted per-boss match table.
type MatchTable struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// MatchingStage runs cut-typology matching over a project's node points.
type MatchingStage struct {
	store  *project.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewMatchingStage returns a MatchingStage backed by store.
func NewMatchingStage(store *project.Store, logger *zap.SugaredLogger) *MatchingStage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MatchingStage{store: store, logger: logger, now: time.Now}
}

// GetState reports the editable points, the detected bosses and the parameters of
// the last run. A project without saved points is seeded from its boss report.
func (s *MatchingStage) GetState(ctx context.Context, id string) (*MatchingState, error) {
	roi, err := s.store.LoadROI(ctx, id)
	if err != nil {
		return nil, err
	}
	detected, err := s.detectedPoints(ctx, id)
	if err != nil {
		return nil, err
	}
	points, err := s.loadPoints(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &MatchingState{
		ROI:             roi,
		Defaults:        matching.DefaultParams(),
		Params:          matching.DefaultParams(),
		ParameterSchema: matching.ParameterSchema(),
	}
	if st.Points, err = matching.AttachUV(points, roi); err != nil {
		return nil, err
	}
	if st.DetectedPoints, err = matching.AttachUV(detected, roi); err != nil {
		return nil, err
	}

	last, err := s.store.LoadMatchResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if last != nil {
		if p, err := matching.ResolveParams(last.Params.Patch()); err == nil {
			st.Params = p
		}
		st.LastResultSummary = &MatchSummary{
			RunID:            last.RunID,
			VariantCount:     len(last.Variants),
			BestVariantLabel: last.BestVariantLabel,
			RanAt:            last.RanAt,
		}
	}

	variants, err := matching.BuildVariants(roi, st.Params)
	if err != nil {
		return nil, err
	}
	st.OverlayVariants = matching.Describe(variants)
	return st, nil
}

// SavePoints replaces the project's node points.
func (s *MatchingStage) SavePoints(ctx context.Context, id string, points []matching.Point) (*SavedPoints, error) {
	roi, err := s.store.LoadROI(ctx, id)
	if err != nil {
		return nil, err
	}
	norm, err := matching.NormalisePoints(points)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.SaveNodePoints(ctx, id, norm, s.now().UTC()); err != nil {
		return nil, err
	}
	uv, err := matching.AttachUV(norm, roi)
	if err != nil {
		return nil, err
	}
	return &SavedPoints{SavedCount: len(norm), Points: uv}, nil
}

// Run matches the node points against every enabled template variant and persists
// the result and the match table. Non-nil points replace the saved ones first.
func (s *MatchingStage) Run(ctx context.Context, id string, patch *matching.ParamsPatch, points []matching.Point) (*matching.Result, error) {
	roi, err := s.store.LoadROI(ctx, id)
	if err != nil {
		return nil, err
	}
	params, err := matching.ResolveParams(patch)
	if err != nil {
		return nil, err
	}

	var rows []matching.Point
	if points != nil {
		if rows, err = matching.NormalisePoints(points); err != nil {
			return nil, err
		}
		if _, err := s.store.SaveNodePoints(ctx, id, rows, s.now().UTC()); err != nil {
			return nil, err
		}
	} else if rows, err = s.loadPoints(ctx, id); err != nil {
		return nil, err
	}

	res, err := matching.Run(roi, rows, params)
	if err != nil {
		return nil, err
	}
	res.RunID = uuid.NewString()
	res.RanAt = s.now().UTC()

	table, err := matching.BuildTable(roi, res.PerBoss)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveMatchTable(ctx, id, table); err != nil {
		return nil, err
	}
	if err := s.store.SaveMatchResult(ctx, id, res); err != nil {
		return nil, err
	}

	best := ""
	if res.BestVariantLabel != nil {
		best = *res.BestVariantLabel
	}
	s.logger.Infow("Cut-typology matching finished", "project", id, "run_id", res.RunID,
		"points", len(res.Points), "variants", len(res.Variants), "best", best)
	return res, nil
}

// MatchTable reads back the table written by the last Run.
func (s *MatchingStage) MatchTable(ctx context.Context, id string) (*MatchTable, error) {
	cols, rows, err := s.store.ReadMatchTable(ctx, id)
	if err != nil {
		return nil, err
	}
	return &MatchTable{Columns: cols, Rows: rows}, nil
}

// Overlay returns the drawable template of the variant labelled label, built under
// the parameters of the last run (or the defaults before any run).
func (s *MatchingStage) Overlay(ctx context.Context, id, label string) (geometry.ROI, templates.Overlay, error) {
	roi, err := s.store.LoadROI(ctx, id)
	if err != nil {
		return geometry.ROI{}, templates.Overlay{}, err
	}
	p := matching.DefaultParams()
	last, err := s.store.LoadMatchResult(ctx, id)
	if err != nil {
		return geometry.ROI{}, templates.Overlay{}, err
	}
	if last != nil {
		if resolved, err := matching.ResolveParams(last.Params.Patch()); err == nil {
			p = resolved
		}
	}
	variants, err := matching.BuildVariants(roi, p)
	if err != nil {
		return geometry.ROI{}, templates.Overlay{}, err
	}
	for _, v := range variants {
		if v.Label == label {
			return roi, v.Overlay, nil
		}
	}
	return geometry.ROI{}, templates.Overlay{}, errors.Wrapf(geomerr.ErrInvalidInput, "unknown template variant %q", label)
}

func (s *MatchingStage) detectedPoints(ctx context.Context, id string) ([]matching.Point, error) {
	rep, err := s.store.LoadBossReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return matching.NormalisePoints(rep.Points())
}

// loadPoints returns the saved node points, seeding them from the boss report on
// first use.
func (s *MatchingStage) loadPoints(ctx context.Context, id string) ([]matching.Point, error) {
	np, found, err := s.store.LoadNodePoints(ctx, id)
	if err != nil {
		return nil, err
	}
	if found {
		return matching.NormalisePoints(np.Points)
	}
	points, err := s.detectedPoints(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.SaveNodePoints(ctx, id, points, s.now().UTC()); err != nil {
		return nil, err
	}
	return points, nil
}
