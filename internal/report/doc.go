// Package report assembles the evidence report of a project: one JSON document and
// a printable HTML page summarising the ROI and bay proportion, node preparation,
// cut-typology matching and bay-plan reconstruction artifacts, with their paths.
//
// Stages that have not run yet appear with empty values rather than failing the
// report.
package report
