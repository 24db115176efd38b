// Package project is the on-disk store for vault projects.
//
// Every project lives under <data>/projects/<id>/ and keeps its Geometry2D artifacts
// in 2d_geometry/ and its segmentation masks in segmentations/. JSON files are
// written atomically through a temporary file in the same directory.
package project
