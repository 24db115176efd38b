// Package imaging loads, draws and encodes the raster side of the vault pipeline.
//
// It covers the image cache shared by every stage, rendering of reconstructed bay
// plans and template overlays, and rectification of a rotated ROI into an upright
// crop. All functions work with standard Go image.Image types in pixel space,
// where (0,0) is the top-left corner, X increases rightward and Y downward.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Rendering and rectification are
// stateless and never modify their input images.
//
// # Output
//
// Rendered and rectified images come back as EncodedImage: a base64 PNG with its
// dimensions, ready to hand across the MCP boundary.
//
// # Performance Considerations
//
// For repeated operations on the same image, use ImageCache to avoid redundant
// disk reads. Large images may consume significant memory when cached.
// Consider using Evict() or Clear() to manage memory for long-running processes.
package imaging
