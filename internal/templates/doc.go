// Package templates generates the analytic cut templates that boss positions are
// matched against.
//
// Two families exist:
//   - starcut: the (n+1)x(n+1) grid-line intersections of an n-by-n division of the
//     unit square
//   - circlecut: the construction points of a circle drawn around the ROI (inner radius
//     0.5*max(w,h), outer radius 0.5*hypot(w,h)) and the 16 straight guides that join
//     its cardinals to the ROI corners
//
// Keypoints are always returned in ROI unit coordinates so they compose with any ROI.
// Circle templates depend on the ROI aspect ratio and therefore need the ROI.
package templates
