package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func pointList(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items": map[string]interface{}{
			"type":     "array",
			"items":    map[string]interface{}{"type": "number"},
			"minItems": 2,
			"maxItems": 2,
		},
	}
}

var (
	roiSchema = object(map[string]interface{}{
		"cx":           prop("number", "Centre X in pixels"),
		"cy":           prop("number", "Centre Y in pixels"),
		"w":            prop("number", "Width in pixels (non-zero)"),
		"h":            prop("number", "Height in pixels (non-zero)"),
		"rotation_deg": prop("number", "Clockwise rotation in degrees"),
	}, "cx", "cy", "w", "h")

	projectProp = prop("string", "Project id under <data>/projects")
	pathProp    = prop("string", "Absolute path to the image file")
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// ROI coordinates and templates
		{
			Name:        "roi_image_to_unit",
			Description: "Map pixel positions into the unit square of a (possibly rotated) ROI.",
			InputSchema: object(map[string]interface{}{
				"roi":    roiSchema,
				"points": pointList("Pixel positions as [x, y]"),
			}, "roi", "points"),
		},
		{
			Name:        "roi_unit_to_image",
			Description: "Map unit-square positions of an ROI back to pixels.",
			InputSchema: object(map[string]interface{}{
				"roi":    roiSchema,
				"points": pointList("Unit positions as [u, v]"),
			}, "roi", "points"),
		},
		{
			Name:        "template_keypoints",
			Description: "Generate cut-typology template keypoints in unit coordinates. kind is 'standard' (n-by-n grid), 'inner' or 'outer' (circlecut, needs roi).",
			InputSchema: object(map[string]interface{}{
				"kind": prop("string", "standard, inner or outer"),
				"n":    prop("integer", "Grid divisor for standard templates (default 4)"),
				"roi":  roiSchema,
			}, "kind"),
		},
		{
			Name:        "template_ratio_suggestions",
			Description: "Suggest simple fractions and square-root proportions close to a vault aspect ratio.",
			InputSchema: object(map[string]interface{}{
				"target": prop("number", "Aspect ratio to approximate (width / height)"),
			}, "target"),
		},

		// Stage 1: ROI and bosses
		{
			Name:        "roi_prepare",
			Description: "Detect (or take manual) bosses, auto-correct the ROI against template grids, and write roi.json and boss_report.json for a project.",
			InputSchema: object(map[string]interface{}{
				"project":          projectProp,
				"roi":              roiSchema,
				"imagePath":        prop("string", "Projection image the ROI was drawn on; the vault ratio comes from its <name>_metadata.json world extents, else its aspect ratio"),
				"vaultRatio":       prop("number", "Explicit vault ratio, overriding imagePath"),
				"ignoreWorldScale": prop("boolean", "Use the image aspect ratio even when projection metadata is present"),
				"manualBosses":     prop("array", "Boss centres as {x, y} objects, replacing mask detection"),
				"minBossArea":      prop("integer", "Smallest boss component in pixels (default 10)"),
				"autoCorrect":      prop("boolean", "Search for a better ROI (default true)"),
				"autoCorrectConfig": object(map[string]interface{}{
					"preset": prop("string", "fast, balanced or precise"),
				}),
			}, "project", "roi"),
		},
		{
			Name:        "roi_auto_correct",
			Description: "Search translations, scales and rotations of an ROI for the best fit of boss positions to standard grids and the inner circlecut.",
			InputSchema: object(map[string]interface{}{
				"roi":    roiSchema,
				"bosses": pointList("Boss centres in pixels"),
				"config": object(map[string]interface{}{
					"preset": prop("string", "fast, balanced or precise"),
				}),
			}, "roi", "bosses"),
		},
		{
			Name:        "bosses_detect",
			Description: "Find boss centroids as 8-connected components of a boss mask. Uses the project's boss mask unless path is given.",
			InputSchema: object(map[string]interface{}{
				"project": projectProp,
				"path":    pathProp,
				"minArea": prop("integer", "Smallest component in pixels (default 10)"),
			}),
		},

		// Stage 2: cut-typology matching
		{
			Name:        "cut_typology_state",
			Description: "Return the editable node points, detected bosses, parameters and template overlays for cut-typology matching.",
			InputSchema: object(map[string]interface{}{"project": projectProp}, "project"),
		},
		{
			Name:        "cut_typology_save_points",
			Description: "Replace the node points used for cut-typology matching.",
			InputSchema: object(map[string]interface{}{
				"project": projectProp,
				"points":  prop("array", "Points as {id, x, y, source}"),
			}, "project", "points"),
		},
		{
			Name:        "cut_typology_run",
			Description: "Match node points against every enabled starcut, circlecut and cross template and write the result and match table.",
			InputSchema: object(map[string]interface{}{
				"project": projectProp,
				"params":  prop("object", "Overrides: starcutMin, starcutMax, includeStarcut, includeInner, includeOuter, allowCrossTemplate, tolerance"),
				"points":  prop("array", "Optional points replacing the saved ones"),
			}, "project"),
		},
		{
			Name:        "cut_typology_match_table",
			Description: "Read back the per-boss match table of the last matching run.",
			InputSchema: object(map[string]interface{}{"project": projectProp}, "project"),
		},
		{
			Name:        "cut_typology_overlay",
			Description: "Draw one template variant (e.g. 'starcut_n=4', 'circlecut_inner') over an image or a blank canvas and return it as base64 PNG.",
			InputSchema: object(map[string]interface{}{
				"project":    projectProp,
				"label":      prop("string", "Variant label as reported by cut_typology_state"),
				"background": prop("string", "Optional image to draw over"),
				"color":      prop("string", "Overlay colour as #rrggbb"),
			}, "project", "label"),
		},

		// Stage 3: bay plan
		{
			Name:        "bay_plan_state",
			Description: "Report how far a project has progressed towards a bay plan, with its parameters and last run summary.",
			InputSchema: object(map[string]interface{}{"project": projectProp}, "project"),
		},
		{
			Name:        "bay_plan_update_params",
			Description: "Merge parameter overrides into the project's bay-plan parameters, or reset them to the defaults.",
			InputSchema: object(map[string]interface{}{
				"project": projectProp,
				"params":  prop("object", "Partial parameters to merge"),
				"reset":   prop("boolean", "Reset to defaults instead of merging"),
			}, "project"),
		},
		{
			Name:        "bay_plan_run",
			Description: "Reconstruct the planar rib graph of a bay from its bosses and rib segmentation.",
			InputSchema: object(map[string]interface{}{"project": projectProp}, "project"),
		},
		{
			Name:        "bay_plan_render",
			Description: "Draw the last bay-plan reconstruction over an image (or a blank canvas) and return it as base64 PNG.",
			InputSchema: object(map[string]interface{}{
				"project":    projectProp,
				"background": prop("string", "Optional image to draw over"),
				"showLabels": prop("boolean", "Label bosses with their ids"),
				"edgeColor":  prop("string", "Edge colour as #rrggbb"),
			}, "project"),
		},

		// Evidence report
		{
			Name:        "evidence_report_get_state",
			Description: "Report where a project's evidence report lives and summarise the last one generated.",
			InputSchema: object(map[string]interface{}{"project": projectProp}, "project"),
		},
		{
			Name:        "evidence_report_generate",
			Description: "Collect the ROI, node, cut-typology and bay-plan artifacts of a project into evidence_report.json and a printable evidence_report.html.",
			InputSchema: object(map[string]interface{}{"project": projectProp}, "project"),
		},

		// Images
		{
			Name:        "roi_rectify",
			Description: "Rotate an image so the ROI is upright and crop it out. The ROI defaults to the project's.",
			InputSchema: object(map[string]interface{}{
				"path":    pathProp,
				"project": projectProp,
				"roi":     roiSchema,
				"scale":   prop("number", "Optional scale factor. Default 1.0"),
			}, "path"),
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width, height and format of an image file.",
			InputSchema: object(map[string]interface{}{"path": pathProp}, "path"),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
