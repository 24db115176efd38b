// Package detection finds boss stones in segmentation masks.
//
// A boss mask is binarised the same way rib masks are and split into 8-connected
// components. Each component large enough to be a boss is reported with its
// centroid, area and bounding box.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
package detection
