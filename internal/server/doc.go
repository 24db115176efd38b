// Package server implements the MCP (Model Context Protocol) server for the vault
// geometry pipeline.
//
// The server exposes the three Geometry2D stages of a project (ROI preparation,
// cut-typology matching and bay-plan reconstruction) plus a few stateless helpers
// as MCP tools. Projects live under <data_dir>/projects/<id>.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// ROI coordinates and templates:
//   - roi_image_to_unit, roi_unit_to_image: map points through an ROI
//   - template_keypoints: starcut grid and circlecut keypoints
//   - template_ratio_suggestions: fractions close to a vault ratio
//
// Stage 1, ROI and bosses:
//   - roi_prepare: detect bosses, auto-correct and persist the ROI
//   - roi_auto_correct: stateless ROI search
//   - bosses_detect: connected components of a boss mask
//
// Stage 2, cut-typology matching:
//   - cut_typology_state, cut_typology_save_points
//   - cut_typology_run, cut_typology_match_table
//   - cut_typology_overlay: draw one template variant
//
// Stage 3, bay plan:
//   - bay_plan_state, bay_plan_update_params
//   - bay_plan_run, bay_plan_render
//
// Evidence report:
//   - evidence_report_get_state, evidence_report_generate
//
// Images:
//   - roi_rectify: cut the ROI out of an image, upright
//   - image_dimensions: image metadata
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with code -32000.
// The data field is a failure object:
//
//	{"success": false, "kind": "MissingUpstreamArtifact", "message": "..."}
//
// Each tools/call is served on its own goroutine, so responses can come back out of
// request order; match them by id. Search, detection and rendering run on a worker
// pool bounded by the configured worker count.
//
// # Usage
//
//	srv := server.New(cfg, version, logger)
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
