// Package matching scores boss positions against cut templates.
//
// A template is reduced to its distinct X and Y coordinate values ("ratios"). Each
// boss is matched independently per axis to the nearest ratio and counts as matched
// only when both axes fall within the tolerance. Cross variants take X ratios from one
// template and Y ratios from another.
//
// The package is pure: it reads ROI and point values and returns results. Persistence
// of points, results and the match table lives in the pipeline and project packages.
package matching
