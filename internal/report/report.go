package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/project"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

// Report is evidence_report.json.
type Report struct {
	ProjectID             string                `json:"projectId"`
	ProjectDir            string                `json:"projectDir"`
	RanAt                 time.Time             `json:"ranAt"`
	ROIBayProportion      ROISection            `json:"roiBayProportion"`
	NodePreparation       NodeSection           `json:"nodePreparation"`
	CutTypologyMatching   MatchingSection       `json:"cutTypologyMatching"`
	BayPlanReconstruction ReconstructionSection `json:"bayPlanReconstruction"`
	Provenance            Provenance            `json:"provenance"`
}

// ROISection summarises roi.json.
type ROISection struct {
	VaultRatio            *float64                    `json:"vaultRatio"`
	RatioSource           string                      `json:"ratioSource,omitempty"`
	VaultRatioSuggestions []templates.RatioSuggestion `json:"vaultRatioSuggestions"`
	CorrectionApplied     bool                        `json:"correctionApplied"`
	CorrectionRequested   bool                        `json:"correctionRequested"`
	ROIPath               string                      `json:"roiPath"`
}

// NodeSection summarises the boss report and the matching point set.
type NodeSection struct {
	NodeCount    int    `json:"nodeCount"`
	RawBossCount int    `json:"rawBossCount"`
	StatePath    string `json:"statePath"`
}

// MatchingSection summarises the last cut-typology run.
type MatchingSection struct {
	BestVariantLabel *string    `json:"bestVariantLabel"`
	VariantCount     int        `json:"variantCount"`
	Tolerance        *float64   `json:"tolerance"`
	RanAt            *time.Time `json:"ranAt"`
	ResultPath       string     `json:"resultPath"`
	CSVPath          string     `json:"csvPath"`
}

// ReconstructionSection summarises the last bay-plan run.
type ReconstructionSection struct {
	NodeCount                 *int          `json:"nodeCount"`
	EdgeCount                 *int          `json:"edgeCount"`
	EnabledConstraintFamilies []ribs.Family `json:"enabledConstraintFamilies"`
	FallbackApplied           bool          `json:"fallbackApplied"`
	FallbackReason            string        `json:"fallbackReason"`
	RanAt                     *time.Time    `json:"ranAt"`
	ResultPath                string        `json:"resultPath"`
}

// Provenance records what produced the report and where its inputs live.
type Provenance struct {
	SoftwareVersion string                 `json:"softwareVersion"`
	GeneratedAt     time.Time              `json:"generatedAt"`
	Paths           *project.ArtifactPaths `json:"paths"`
}

// Summary is kept in the report state.
type Summary struct {
	RanAt        time.Time `json:"ranAt"`
	NodeCount    int       `json:"nodeCount"`
	EdgeCount    *int      `json:"edgeCount"`
	BestTypology *string   `json:"bestTypology"`
}

// savedState is evidence_report/state.json.
type savedState struct {
	LastGeneratedAt time.Time `json:"lastGeneratedAt"`
	Summary         Summary   `json:"summary"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// State is what GetState reports.
type State struct {
	ProjectDir      string     `json:"projectDir"`
	OutputDir       string     `json:"outputDir"`
	StatePath       string     `json:"statePath"`
	ReportJSONPath  *string    `json:"reportJsonPath"`
	ReportHTMLPath  *string    `json:"reportHtmlPath"`
	LastGeneratedAt *time.Time `json:"lastGeneratedAt"`
	Summary         *Summary   `json:"summary"`
}

// Generated is what Generate reports.
type Generated struct {
	ProjectDir     string    `json:"projectDir"`
	OutputDir      string    `json:"outputDir"`
	StatePath      string    `json:"statePath"`
	ReportJSONPath string    `json:"reportJsonPath"`
	ReportHTMLPath string    `json:"reportHtmlPath"`
	ReportHTML     string    `json:"reportHtml"`
	Summary        Summary   `json:"summary"`
	RanAt          time.Time `json:"ranAt"`
}

// Service builds evidence reports from a project store.
type Service struct {
	store   *project.Store
	version string
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewService returns a Service that stamps reports with version. A nil logger
// discards output.
func NewService(store *project.Store, version string, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, version: version, logger: logger, now: time.Now}
}

// GetState reports where the evidence report of id lives and what the last one found.
func (s *Service) GetState(ctx context.Context, id string) (*State, error) {
	files, err := s.store.ReportFiles(id)
	if err != nil {
		return nil, err
	}
	st := &State{ProjectDir: files.ProjectDir, OutputDir: files.Dir, StatePath: files.State}
	if files.HasJSON {
		st.ReportJSONPath = &files.JSON
	}
	if files.HasHTML {
		st.ReportHTMLPath = &files.HTML
	}

	var saved savedState
	found, err := s.store.LoadReportState(ctx, id, &saved)
	if err != nil {
		return nil, err
	}
	if found {
		st.LastGeneratedAt = &saved.LastGeneratedAt
		st.Summary = &saved.Summary
	}
	return st, nil
}

// Generate builds the report of id, renders it and writes the JSON, the HTML and
// the state.
func (s *Service) Generate(ctx context.Context, id string) (*Generated, error) {
	rep, err := s.Build(ctx, id)
	if err != nil {
		return nil, err
	}
	html, err := RenderHTML(rep)
	if err != nil {
		return nil, err
	}
	sum := Summary{
		RanAt:        rep.RanAt,
		NodeCount:    rep.NodePreparation.NodeCount,
		EdgeCount:    rep.BayPlanReconstruction.EdgeCount,
		BestTypology: rep.CutTypologyMatching.BestVariantLabel,
	}
	state := savedState{LastGeneratedAt: rep.RanAt, Summary: sum, UpdatedAt: s.now().UTC()}
	if err := s.store.SaveReport(ctx, id, rep, html, state); err != nil {
		return nil, err
	}

	files, err := s.store.ReportFiles(id)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("Generated evidence report", "project", id, "html", files.HTML)
	return &Generated{
		ProjectDir:     files.ProjectDir,
		OutputDir:      files.Dir,
		StatePath:      files.State,
		ReportJSONPath: files.JSON,
		ReportHTMLPath: files.HTML,
		ReportHTML:     string(html),
		Summary:        sum,
		RanAt:          rep.RanAt,
	}, nil
}

// Build collects the report of id from whatever artifacts exist.
func (s *Service) Build(ctx context.Context, id string) (*Report, error) {
	paths, err := s.store.ArtifactPaths(id)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ReportFiles(id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rep := &Report{
		ProjectID:  id,
		ProjectDir: files.ProjectDir,
		RanAt:      now,
		ROIBayProportion: ROISection{
			VaultRatioSuggestions: []templates.RatioSuggestion{},
			ROIPath:               paths.ROI,
		},
		NodePreparation: NodeSection{StatePath: paths.NodePoints},
		CutTypologyMatching: MatchingSection{
			ResultPath: paths.MatchResult,
			CSVPath:    paths.MatchTable,
		},
		BayPlanReconstruction: ReconstructionSection{
			EnabledConstraintFamilies: []ribs.Family{},
			ResultPath:                paths.BayPlanResult,
		},
		Provenance: Provenance{SoftwareVersion: s.version, GeneratedAt: now, Paths: paths},
	}

	rec, err := s.store.LoadROIRecord(ctx, id)
	if err := optional(err); err != nil {
		return nil, err
	}
	if rec != nil {
		ratio := rec.VaultRatio
		rep.ROIBayProportion.VaultRatio = &ratio
		rep.ROIBayProportion.RatioSource = rec.RatioSource
		if rec.VaultRatioSuggestions != nil {
			rep.ROIBayProportion.VaultRatioSuggestions = rec.VaultRatioSuggestions
		}
		rep.ROIBayProportion.CorrectionApplied = rec.CorrectionApplied
		rep.ROIBayProportion.CorrectionRequested = rec.CorrectionRequested
	}

	bosses, err := s.store.LoadBossReport(ctx, id)
	if err := optional(err); err != nil {
		return nil, err
	}
	if bosses != nil {
		rep.NodePreparation.RawBossCount = bosses.BossCount
	}
	np, _, err := s.store.LoadNodePoints(ctx, id)
	if err != nil {
		return nil, err
	}
	if np != nil {
		rep.NodePreparation.NodeCount = np.NodeCount
	}

	match, err := s.store.LoadMatchResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if match != nil {
		tol := match.Params.Tolerance
		ranAt := match.RanAt
		rep.CutTypologyMatching.BestVariantLabel = match.BestVariantLabel
		rep.CutTypologyMatching.VariantCount = len(match.Variants)
		rep.CutTypologyMatching.Tolerance = &tol
		rep.CutTypologyMatching.RanAt = &ranAt
	}

	plan, err := s.store.LoadBayPlanResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		nodes, edges, ranAt := plan.NodeCount, plan.EdgeCount, plan.RanAt
		sec := &rep.BayPlanReconstruction
		sec.NodeCount = &nodes
		sec.EdgeCount = &edges
		if plan.EnabledConstraintFamilies != nil {
			sec.EnabledConstraintFamilies = plan.EnabledConstraintFamilies
		}
		sec.FallbackApplied = plan.FallbackApplied
		sec.FallbackReason = plan.FallbackReason
		sec.RanAt = &ranAt
	}
	return rep, nil
}

// optional treats a stage that has not run as empty.
func optional(err error) error {
	if errors.Is(err, geomerr.ErrMissingUpstreamArtifact) {
		return nil
	}
	return err
}
