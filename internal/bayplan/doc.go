// Package bayplan runs the bay-plan reconstruction for a project: it turns the
// resolved boss positions and the rib segmentation into a planar graph of bosses,
// ROI anchors and steiner points, and keeps the parameters and last result in the
// project store.
package bayplan
