package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/bayplan"
	"github.com/ironsheep/vault-geometry-mcp/internal/detection"
	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/imaging"
	"github.com/ironsheep/vault-geometry-mcp/internal/matching"
	"github.com/ironsheep/vault-geometry-mcp/internal/pipeline"
	"github.com/ironsheep/vault-geometry-mcp/internal/roicorrect"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
	"github.com/ironsheep/vault-geometry-mcp/internal/worker"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "roi_prepare", "bay_plan_run").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000 whose
// data carries the failure kind.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warnw("Tool failed", "tool", params.Name, "kind", geomerr.KindOf(err), "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", geomerr.AsFailure(err))
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Handlers that search, detect or draw run on the worker pool so a burst of calls
// cannot occupy more than the configured number of CPUs.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// ROI coordinates and templates
	case "roi_image_to_unit":
		return s.handleROIMap(args, geometry.ImageToUnit)
	case "roi_unit_to_image":
		return s.handleROIMap(args, geometry.UnitToImage)
	case "template_keypoints":
		return s.handleTemplateKeypoints(args)
	case "template_ratio_suggestions":
		return s.handleRatioSuggestions(args)

	// Stage 1
	case "roi_prepare":
		return s.offload(ctx, func(ctx context.Context) (interface{}, error) { return s.handleROIPrepare(ctx, args) })
	case "roi_auto_correct":
		return s.offload(ctx, func(ctx context.Context) (interface{}, error) { return s.handleROIAutoCorrect(ctx, args) })
	case "bosses_detect":
		return s.offload(ctx, func(ctx context.Context) (interface{}, error) { return s.handleBossesDetect(ctx, args) })

	// Stage 2
	case "cut_typology_state":
		return s.handleMatchingState(ctx, args)
	case "cut_typology_save_points":
		return s.handleMatchingSavePoints(ctx, args)
	case "cut_typology_run":
		return s.offload(ctx, func(ctx context.Context) (interface{}, error) { return s.handleMatchingRun(ctx, args) })
	case "cut_typology_match_table":
		return s.handleMatchTable(ctx, args)
	case "cut_typology_overlay":
		return s.offload(ctx, func(ctx context.Context) (interface{}, error) { return s.handleMatchingOverlay(ctx, args) })

	// Stage 3
	case "bay_plan_state":
		return s.handleBayPlanState(ctx, args)
	case "bay_plan_update_params":
		return s.handleBayPlanUpdateParams(ctx, args)
	case "bay_plan_run":
		return s.offload(ctx, func(ctx context.Context) (interface{}, error) { return s.handleBayPlanRun(ctx, args) })
	case "bay_plan_render":
		return s.offload(ctx, func(ctx context.Context) (interface{}, error) { return s.handleBayPlanRender(ctx, args) })

	// Evidence report
	case "evidence_report_get_state":
		return s.handleReportState(ctx, args)
	case "evidence_report_generate":
		return s.handleReportGenerate(ctx, args)

	// Images
	case "roi_rectify":
		return s.offload(ctx, func(ctx context.Context) (interface{}, error) { return s.handleROIRectify(ctx, args) })
	case "image_dimensions":
		return s.handleImageDimensions(args)

	default:
		return nil, errors.Wrapf(geomerr.ErrInvalidInput, "unknown tool: %s", name)
	}
}

func (s *Server) offload(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	return worker.Do(ctx, s.pool, fn)
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments, treating missing arguments as an empty object.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return errors.Wrapf(geomerr.ErrInvalidInput, "bad arguments: %v", err)
	}
	return nil
}

func requireProject(id string) error {
	if id == "" {
		return errors.Wrap(geomerr.ErrInvalidInput, "project is required")
	}
	return nil
}

func toPairs(points []r2.Point) [][2]float64 {
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = geometry.Pair(p)
	}
	return out
}

// === ROI and template handlers ===

type roiMapArgs struct {
	ROI    geometry.ROI `json:"roi"`
	Points [][2]float64 `json:"points"`
}

func (s *Server) handleROIMap(args json.RawMessage, mapFn func(r2.Point, geometry.ROI) (r2.Point, error)) (interface{}, error) {
	var a roiMapArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	out := make([]r2.Point, len(a.Points))
	for i, p := range a.Points {
		q, err := mapFn(geometry.FromPair(p), a.ROI)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return map[string]interface{}{"points": toPairs(out)}, nil
}

type templateKeypointsArgs struct {
	Kind string        `json:"kind"`
	N    int           `json:"n"`
	ROI  *geometry.ROI `json:"roi"`
}

func (s *Server) handleTemplateKeypoints(args json.RawMessage) (interface{}, error) {
	var a templateKeypointsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.N == 0 {
		a.N = 4
	}
	kp, err := templates.Keypoints(a.Kind, a.N, a.ROI)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"kind":      a.Kind,
		"keypoints": toPairs(kp),
	}, nil
}

type ratioArgs struct {
	Target float64 `json:"target"`
}

func (s *Server) handleRatioSuggestions(args json.RawMessage) (interface{}, error) {
	var a ratioArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if !(a.Target > 0) {
		return nil, errors.Wrap(geomerr.ErrInvalidInput, "target must be positive")
	}
	return map[string]interface{}{
		"target":      a.Target,
		"suggestions": templates.SuggestRatioPatterns(a.Target, templates.DefaultRatioOptions()),
	}, nil
}

// === Stage 1 handlers ===

type roiPrepareArgs struct {
	Project string `json:"project"`
	pipeline.PrepareRequest
}

// withDefaultPreset fills in the configured preset when the caller named none.
func (s *Server) withDefaultPreset(cfg *roicorrect.Config) *roicorrect.Config {
	if cfg == nil {
		cfg = &roicorrect.Config{}
	}
	if cfg.Preset == "" {
		cfg.Preset = s.cfg.DefaultPreset
	}
	return cfg
}

func (s *Server) handleROIPrepare(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a roiPrepareArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireProject(a.Project); err != nil {
		return nil, err
	}
	a.AutoCorrectConfig = s.withDefaultPreset(a.AutoCorrectConfig)
	return s.roi.Prepare(ctx, a.Project, a.PrepareRequest)
}

type roiAutoCorrectArgs struct {
	ROI    geometry.ROI       `json:"roi"`
	Bosses [][2]float64       `json:"bosses"`
	Config *roicorrect.Config `json:"config"`
}

func (s *Server) handleROIAutoCorrect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a roiAutoCorrectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	bosses := make([]r2.Point, len(a.Bosses))
	for i, b := range a.Bosses {
		bosses[i] = geometry.FromPair(b)
	}
	return roicorrect.AutoCorrect(ctx, a.ROI, bosses, roicorrect.ResolveOptions(s.withDefaultPreset(a.Config)))
}

type bossesDetectArgs struct {
	Project string `json:"project"`
	Path    string `json:"path"`
	MinArea int    `json:"minArea"`
}

func (s *Server) handleBossesDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a bossesDetectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	var (
		mask image.Image
		err  error
	)
	switch {
	case a.Path != "":
		mask, err = s.cache.Load(a.Path)
	case a.Project != "":
		mask, err = s.store.LoadBossMask(ctx, a.Project)
	default:
		err = errors.Wrap(geomerr.ErrInvalidInput, "either project or path is required")
	}
	if err != nil {
		return nil, err
	}
	return detection.DetectBosses(mask, a.MinArea), nil
}

// === Stage 2 handlers ===

type projectArgs struct {
	Project string `json:"project"`
}

func decodeProject(args json.RawMessage) (string, error) {
	var a projectArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if err := requireProject(a.Project); err != nil {
		return "", err
	}
	return a.Project, nil
}

func (s *Server) handleMatchingState(ctx context.Context, args json.RawMessage) (interface{}, error) {
	id, err := decodeProject(args)
	if err != nil {
		return nil, err
	}
	return s.matching.GetState(ctx, id)
}

type savePointsArgs struct {
	Project string           `json:"project"`
	Points  []matching.Point `json:"points"`
}

func (s *Server) handleMatchingSavePoints(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a savePointsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireProject(a.Project); err != nil {
		return nil, err
	}
	return s.matching.SavePoints(ctx, a.Project, a.Points)
}

type matchingRunArgs struct {
	Project string                `json:"project"`
	Params  *matching.ParamsPatch `json:"params"`
	Points  []matching.Point      `json:"points"`
}

func (s *Server) handleMatchingRun(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a matchingRunArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireProject(a.Project); err != nil {
		return nil, err
	}
	return s.matching.Run(ctx, a.Project, a.Params, a.Points)
}

func (s *Server) handleMatchTable(ctx context.Context, args json.RawMessage) (interface{}, error) {
	id, err := decodeProject(args)
	if err != nil {
		return nil, err
	}
	return s.matching.MatchTable(ctx, id)
}

type matchingOverlayArgs struct {
	Project    string `json:"project"`
	Label      string `json:"label"`
	Background string `json:"background"`
	Color      string `json:"color"`
}

func (s *Server) handleMatchingOverlay(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a matchingOverlayArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireProject(a.Project); err != nil {
		return nil, err
	}
	roi, overlay, err := s.matching.Overlay(ctx, a.Project, a.Label)
	if err != nil {
		return nil, err
	}
	base, err := s.loadBackground(a.Background)
	if err != nil {
		return nil, err
	}
	return imaging.RenderTemplateOverlay(base, roi, overlay, a.Color)
}

// === Stage 3 handlers ===

func (s *Server) handleBayPlanState(ctx context.Context, args json.RawMessage) (interface{}, error) {
	id, err := decodeProject(args)
	if err != nil {
		return nil, err
	}
	return s.bayplan.GetState(ctx, id)
}

type updateParamsArgs struct {
	Project string          `json:"project"`
	Params  json.RawMessage `json:"params"`
	Reset   bool            `json:"reset"`
}

func (s *Server) handleBayPlanUpdateParams(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a updateParamsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireProject(a.Project); err != nil {
		return nil, err
	}
	var (
		p   bayplan.Params
		err error
	)
	if a.Reset {
		p, err = s.bayplan.ResetParams(ctx, a.Project)
	} else {
		p, err = s.bayplan.UpdateParams(ctx, a.Project, a.Params)
	}
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"params": p}, nil
}

func (s *Server) handleBayPlanRun(ctx context.Context, args json.RawMessage) (interface{}, error) {
	id, err := decodeProject(args)
	if err != nil {
		return nil, err
	}
	return s.bayplan.Run(ctx, id)
}

type bayPlanRenderArgs struct {
	Project    string `json:"project"`
	Background string `json:"background"`
	imaging.RenderOptions
}

func (s *Server) handleBayPlanRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a := bayPlanRenderArgs{RenderOptions: imaging.RenderOptions{ShowLabels: s.cfg.RenderLabels}}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireProject(a.Project); err != nil {
		return nil, err
	}
	res, err := s.store.LoadBayPlanResult(ctx, a.Project)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.Wrap(geomerr.ErrMissingUpstreamArtifact, "no bay plan yet, run bay_plan_run first")
	}
	roi, err := s.store.LoadROI(ctx, a.Project)
	if err != nil {
		return nil, err
	}
	base, err := s.loadBackground(a.Background)
	if err != nil {
		return nil, err
	}
	edges := make([]imaging.RenderEdge, len(res.Edges))
	for i, e := range res.Edges {
		edges[i] = imaging.RenderEdge{A: e.A, B: e.B, IsConstraint: e.IsConstraint}
	}
	return imaging.RenderReconstruction(base, roi, res.Nodes, edges, a.RenderOptions)
}

// loadBackground returns nil for an empty path so the renderers draw on a blank canvas.
func (s *Server) loadBackground(path string) (image.Image, error) {
	if path == "" {
		return nil, nil
	}
	return s.cache.Load(path)
}

// === Evidence report handlers ===

func (s *Server) handleReportState(ctx context.Context, args json.RawMessage) (interface{}, error) {
	id, err := decodeProject(args)
	if err != nil {
		return nil, err
	}
	return s.report.GetState(ctx, id)
}

func (s *Server) handleReportGenerate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	id, err := decodeProject(args)
	if err != nil {
		return nil, err
	}
	return s.report.Generate(ctx, id)
}

// === Image handlers ===

type rectifyArgs struct {
	Path    string        `json:"path"`
	Project string        `json:"project"`
	ROI     *geometry.ROI `json:"roi"`
	Scale   float64       `json:"scale"`
}

func (s *Server) handleROIRectify(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a rectifyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	var roi geometry.ROI
	switch {
	case a.ROI != nil:
		roi = *a.ROI
	case a.Project != "":
		r, err := s.store.LoadROI(ctx, a.Project)
		if err != nil {
			return nil, err
		}
		roi = r
	default:
		return nil, errors.Wrap(geomerr.ErrInvalidInput, "either roi or project is required")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.RectifyROI(img, roi, a.Scale)
}

type imagePathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}
