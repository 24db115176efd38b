// Package geometry implements the ROI coordinate model used by every Geometry2D stage.
//
// An ROI is a rectangle of width W and height H centred on (CX, CY) in image pixels and
// rotated by RotationDeg about its centre. It defines a bijection between image pixels
// and the unit square [0,1]x[0,1], whose origin is the rectangle's top-left corner
// before rotation.
//
// # Coordinate System
//
// Pixel coordinates follow the image convention used throughout the repository:
//   - X increases rightward, Y increases downward
//   - Positive rotation turns the ROI clockwise on screen (Y down)
//
// Unit coordinates are named (u, v) and are not clipped: points outside the ROI map
// outside [0,1].
//
// Both spaces use r2.Point from github.com/golang/geo.
package geometry
