package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// paint returns a blue 100x100 image with r filled red.
func paint(r image.Rectangle) *image.NRGBA {
	img := solid(100, 100, blue)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, red)
		}
	}
	return img
}

func TestRectifyROI(t *testing.T) {
	tests := []struct {
		name  string
		img   image.Image
		roi   geometry.ROI
		scale float64
		wantW int
		wantH int
	}{
		{"axis aligned", paint(image.Rect(20, 30, 60, 50)), geometry.ROI{CX: 40, CY: 40, W: 40, H: 20}, 1, 40, 20},
		{"quarter turn", paint(image.Rect(40, 30, 60, 70)), geometry.ROI{CX: 50, CY: 50, W: 40, H: 20, RotationDeg: 90}, 1, 40, 20},
		{"scaled", paint(image.Rect(20, 30, 60, 50)), geometry.ROI{CX: 40, CY: 40, W: 40, H: 20}, 0.5, 20, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RectifyROI(tt.img, tt.roi, tt.scale)
			if err != nil {
				t.Fatalf("RectifyROI failed: %v", err)
			}
			if result.Width != tt.wantW || result.Height != tt.wantH {
				t.Fatalf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.wantW, tt.wantH)
			}
			img := decode(t, result)
			if got := rgb(img.At(tt.wantW/2, tt.wantH/2)); got != [3]uint8{255, 0, 0} {
				t.Errorf("centre pixel: got %v, want red", got)
			}
		})
	}
}

func TestRectifyROI_OutsideSource(t *testing.T) {
	result, err := RectifyROI(solid(20, 20, blue), geometry.ROI{CX: 0, CY: 0, W: 10, H: 10}, 1)
	if err != nil {
		t.Fatalf("RectifyROI failed: %v", err)
	}
	img := decode(t, result)
	if _, _, _, a := img.At(1, 1).RGBA(); a != 0 {
		t.Errorf("pixel outside the source should be transparent, alpha = %d", a)
	}
	if got := rgb(img.At(8, 8)); got != [3]uint8{0, 0, 255} {
		t.Errorf("pixel inside the source: got %v, want blue", got)
	}
}

func TestRectifyROI_Errors(t *testing.T) {
	img := solid(10, 10, blue)
	if _, err := RectifyROI(img, geometry.ROI{W: 5}, 1); !errors.Is(err, geomerr.ErrDegenerateRoi) {
		t.Errorf("degenerate ROI error = %v", err)
	}
	if _, err := RectifyROI(img, geometry.ROI{CX: 5, CY: 5, W: 5, H: 5}, 0); !errors.Is(err, geomerr.ErrInvalidInput) {
		t.Errorf("zero scale error = %v", err)
	}
}
