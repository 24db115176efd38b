package bayplan

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/reconstruct"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

// Store is the project persistence the service reads from and writes to.
//
// Loaders report geomerr.ErrMissingUpstreamArtifact for an absent ROI or boss report.
// A project without rib masks yields a nil mask and no error, and a project that has
// never stored params or a result yields nil for those.
type Store interface {
	LoadROI(ctx context.Context, project string) (geometry.ROI, error)
	LoadBossRows(ctx context.Context, project string) ([]reconstruct.BossRow, error)
	LoadRibMask(ctx context.Context, project string) (*ribs.Mask, error)
	LoadBayPlanParams(ctx context.Context, project string) (*Params, error)
	SaveBayPlanParams(ctx context.Context, project string, p Params) error
	LoadBayPlanResult(ctx context.Context, project string) (*Result, error)
	SaveBayPlanResult(ctx context.Context, project string, r *Result) error
}

// State is how far a project has progressed towards a bay plan.
type State string

// Project states.
const (
	StateNoRoi         State = "NoRoi"
	StateHasRoi        State = "HasRoi"
	StateHasBosses     State = "HasBosses"
	StateReconstructed State = "Reconstructed"
)

// StateView is what GetState reports.
type StateView struct {
	State          State      `json:"state"`
	Params         Params     `json:"params"`
	Defaults       Params     `json:"defaults"`
	LastRunSummary *Summary   `json:"lastRunSummary"`
	PreviewBosses  []UsedBoss `json:"previewBosses"`
}

// Service runs reconstructions against a Store.
type Service struct {
	store  Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewService returns a Service backed by store. A nil logger discards output.
func NewService(store Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

func (s *Service) params(ctx context.Context, project string) (Params, error) {
	stored, err := s.store.LoadBayPlanParams(ctx, project)
	if err != nil {
		return Params{}, errors.Wrap(err, "load bay plan params")
	}
	p := DefaultParams()
	if stored != nil {
		p = *stored
	}
	p.Validate()
	return p, nil
}

// GetState reports the current params, the last run and the bosses a run would use.
// It never writes to the store.
func (s *Service) GetState(ctx context.Context, project string) (*StateView, error) {
	p, err := s.params(ctx, project)
	if err != nil {
		return nil, err
	}
	view := &StateView{
		State:         StateNoRoi,
		Params:        p,
		Defaults:      DefaultParams(),
		PreviewBosses: []UsedBoss{},
	}

	roi, err := s.store.LoadROI(ctx, project)
	if err != nil {
		s.logger.Debugw("bay plan state without roi", "project", project, "error", err)
		return view, nil
	}
	view.State = StateHasRoi

	rows, err := s.store.LoadBossRows(ctx, project)
	switch {
	case err != nil:
		s.logger.Debugw("bay plan state without bosses", "project", project, "error", err)
	case len(rows) > 0:
		if used, err := placeBosses(roi, rows); err == nil {
			view.PreviewBosses = used
			view.State = StateHasBosses
		}
	}

	last, err := s.store.LoadBayPlanResult(ctx, project)
	if err != nil {
		return nil, errors.Wrap(err, "load bay plan result")
	}
	if last != nil {
		view.LastRunSummary = last.Summary()
		if view.State == StateHasBosses {
			view.State = StateReconstructed
		}
	}
	return view, nil
}

// UpdateParams merges patch over the stored params, persists and returns them.
func (s *Service) UpdateParams(ctx context.Context, project string, patch json.RawMessage) (Params, error) {
	p, err := s.params(ctx, project)
	if err != nil {
		return Params{}, err
	}
	p, err = p.Merge(patch)
	if err != nil {
		return Params{}, err
	}
	if err := s.store.SaveBayPlanParams(ctx, project, p); err != nil {
		return Params{}, errors.Wrap(err, "save bay plan params")
	}
	return p, nil
}

// ResetParams restores and persists the default params.
func (s *Service) ResetParams(ctx context.Context, project string) (Params, error) {
	p := DefaultParams()
	if err := s.store.SaveBayPlanParams(ctx, project, p); err != nil {
		return Params{}, errors.Wrap(err, "save bay plan params")
	}
	return p, nil
}

func placeBosses(roi geometry.ROI, rows []reconstruct.BossRow) ([]UsedBoss, error) {
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, err
	}
	out := make([]UsedBoss, len(rows))
	for i, r := range rows {
		xy := geometry.RoundPoint(m.ToImage(r.UV))
		src := r.Source
		if src == "" {
			src = reconstruct.BossRaw
		}
		out[i] = UsedBoss{ID: r.ID, X: xy.X, Y: xy.Y, Source: src}
	}
	return out, nil
}

// Run reconstructs the bay plan of project and persists the result.
func (s *Service) Run(ctx context.Context, project string) (*Result, error) {
	p, err := s.params(ctx, project)
	if err != nil {
		return nil, err
	}
	roi, err := s.store.LoadROI(ctx, project)
	if err != nil {
		return nil, errors.Wrap(err, "bay plan needs an roi")
	}
	rows, err := s.store.LoadBossRows(ctx, project)
	if err != nil {
		return nil, errors.Wrap(err, "bay plan needs bosses")
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(geomerr.ErrInsufficientBosses, "no bosses available for reconstruction")
	}
	used, err := placeBosses(roi, rows)
	if err != nil {
		return nil, err
	}
	ideal := 0
	for _, b := range used {
		if b.Source == reconstruct.BossIdeal {
			ideal++
		}
	}

	runID := uuid.NewString()
	log := s.logger.With("project", project, "run", runID)
	log.Infow("bay plan reconstruction started", "bosses", len(rows), "idealBosses", ideal)

	nodes, err := reconstruct.CollectNodes(roi, rows, p.IncludeCornerAnchors, p.IncludeHalfAnchors)
	if err != nil {
		return nil, err
	}
	boundary := reconstruct.SegmentEdges(nodes, reconstruct.BoundarySegments(), p.CrossTolerance)

	mask, err := s.store.LoadRibMask(ctx, project)
	if err != nil {
		return nil, errors.Wrap(err, "load rib mask")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := guide{params: p, nodes: nodes, boundary: boundary, log: log}
	if mask != nil && !mask.Empty() {
		if g.scorer, err = ribs.NewScorer(mask, roi); err != nil {
			return nil, err
		}
	}
	g.run()

	nodes, edges, err := reconstruct.Triangulate(nodes, g.constraints, roi)
	if err != nil {
		return nil, errors.Wrap(err, "triangulate")
	}
	threshold := 0.0
	if g.scorer != nil {
		edges, threshold = reconstruct.PruneEdges(g.scorer, nodes, edges, g.constraints, p.pruneWidth(), p.EdgeKeepScore)
	}

	isCons := map[geometry.Edge]bool{}
	for _, e := range g.constraints {
		isCons[e] = true
	}
	resultEdges := make([]ResultEdge, len(edges))
	for i, e := range edges {
		resultEdges[i] = ResultEdge{A: e.A, B: e.B, IsConstraint: isCons[e]}
	}

	res := &Result{
		RunID:                     runID,
		RanAt:                     s.now(),
		NodeCount:                 len(nodes),
		EdgeCount:                 len(edges),
		ConstraintEdgeCount:       len(g.constraints),
		IdealBossUsedCount:        ideal,
		BossCount:                 len(rows),
		EnabledConstraintFamilies: g.enabled,
		FamilySupportScores:       g.support,
		FallbackApplied:           g.reason != "",
		FallbackReason:            g.reason,
		Params:                    p,
		EdgeKeepThreshold:         threshold,
		Nodes:                     nodes,
		Edges:                     resultEdges,
		UsedBosses:                used,
		IdealBosses:               filterBosses(used, reconstruct.BossIdeal),
		ExtractedBosses:           filterBosses(used, reconstruct.BossRaw),
	}
	if err := s.store.SaveBayPlanResult(ctx, project, res); err != nil {
		return nil, errors.Wrap(err, "save bay plan result")
	}
	log.Infow("bay plan reconstruction finished",
		"nodes", res.NodeCount, "edges", res.EdgeCount, "constraints", res.ConstraintEdgeCount,
		"families", res.EnabledConstraintFamilies, "fallback", res.FallbackApplied)
	return res, nil
}
