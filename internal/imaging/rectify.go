package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// RectifyROI returns the ROI of img as an axis-aligned image.
//
// The image is turned about the ROI centre until the ROI box is upright, then the
// box is cropped out. Parts of the box outside the
// source come back transparent. A scale other than 1 resizes the crop with Lanczos
// resampling.
func RectifyROI(img image.Image, roi geometry.ROI, scale float64) (*EncodedImage, error) {
	if err := roi.Validate(); err != nil {
		return nil, err
	}
	if scale <= 0 || math.IsNaN(scale) {
		return nil, errors.Wrapf(geomerr.ErrInvalidInput, "scale must be positive, got %g", scale)
	}

	src := imaging.Clone(img)
	b := src.Bounds()
	// Shift so the ROI centre is the centre of the canvas before rotating.
	shiftX := int(math.Round(float64(b.Dx())/2 - roi.CX))
	shiftY := int(math.Round(float64(b.Dy())/2 - roi.CY))
	centred := imaging.New(b.Dx(), b.Dy(), color.Transparent)
	centred = imaging.Paste(centred, src, image.Pt(shiftX, shiftY))

	rotated := centred
	if roi.RotationDeg != 0 {
		// imaging rotates counter-clockwise; the ROI angle is clockwise in image space.
		rotated = imaging.Rotate(centred, roi.RotationDeg, color.Transparent)
	}

	rb := rotated.Bounds()
	cx, cy := float64(rb.Dx())/2, float64(rb.Dy())/2
	box := image.Rect(
		int(math.Round(cx-roi.W/2)), int(math.Round(cy-roi.H/2)),
		int(math.Round(cx+roi.W/2)), int(math.Round(cy+roi.H/2)),
	)
	out := imaging.New(box.Dx(), box.Dy(), color.Transparent)
	out = imaging.Paste(out, rotated, image.Pt(-box.Min.X, -box.Min.Y))

	if scale != 1 {
		w := max(1, int(float64(out.Bounds().Dx())*scale))
		h := max(1, int(float64(out.Bounds().Dy())*scale))
		out = imaging.Resize(out, w, h, imaging.Lanczos)
	}
	return Encode(out)
}
