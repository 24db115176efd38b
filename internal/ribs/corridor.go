package ribs

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
)

// Corridor rasterises the round-capped stroke of the given pixel width between two
// pixel centres and returns the covered pixels inside a w-by-h raster. Any
// anti-aliased coverage counts.
func Corridor(w, h int, p1, p2 r2.Point, width float64) []image.Point {
	width = math.Max(1, width)
	pad := width/2 + 2
	x0 := max(0, int(math.Floor(math.Min(p1.X, p2.X)-pad)))
	y0 := max(0, int(math.Floor(math.Min(p1.Y, p2.Y)-pad)))
	x1 := min(w, int(math.Ceil(math.Max(p1.X, p2.X)+pad)))
	y1 := min(h, int(math.Ceil(math.Max(p1.Y, p2.Y)+pad)))
	if x1 <= x0 || y1 <= y0 {
		return nil
	}

	dc := gg.NewContext(x1-x0, y1-y0)
	dc.Translate(float64(-x0)+0.5, float64(-y0)+0.5)
	dc.SetRGB(1, 1, 1)
	if p1 == p2 {
		dc.DrawCircle(p1.X, p1.Y, width/2)
		dc.Fill()
	} else {
		dc.SetLineWidth(width)
		dc.SetLineCapRound()
		dc.DrawLine(p1.X, p1.Y, p2.X, p2.Y)
		dc.Stroke()
	}

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil
	}
	var out []image.Point
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			if img.Pix[y*img.Stride+x*4+3] > 0 {
				out = append(out, image.Point{X: x0 + x, Y: y0 + y})
			}
		}
	}
	return out
}

// overlap returns the fraction of corridor pixels set in m.
func overlap(m *Mask, corridor []image.Point) float64 {
	if len(corridor) == 0 {
		return 0
	}
	hit := 0
	for _, p := range corridor {
		if m.At(p.X, p.Y) {
			hit++
		}
	}
	return float64(hit) / float64(len(corridor))
}
