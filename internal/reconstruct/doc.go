// Package reconstruct builds the bay-plan graph: nodes from bosses and ROI anchors,
// candidate edges, a planar constraint set, and the constrained triangulation that
// honours it.
//
// Node positions live in ROI unit space. Pixel positions are derived through the ROI
// and used wherever a test has to agree with what is drawn on the image.
package reconstruct
