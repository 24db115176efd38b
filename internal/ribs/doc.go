// Package ribs scores line segments against a segmented rib mask.
//
// The mask is the union of every rib-labelled segmentation for a project, in the same
// pixel frame as the ROI. A segment between two unit-space points is mapped through the
// ROI, rasterised as a corridor, and scored by how much of the corridor is rib and how
// close samples along the segment are to the nearest rib pixel.
package ribs
