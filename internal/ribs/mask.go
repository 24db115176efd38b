package ribs

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// maskLevel is the threshold for a set pixel: values strictly above 1.
const maskLevel = 2

// Mask is a binary raster.
type Mask struct {
	Width, Height int
	Pix           []bool
}

// NewMask returns an empty mask.
func NewMask(w, h int) *Mask {
	return &Mask{Width: w, Height: h, Pix: make([]bool, w*h)}
}

// At reports whether (x, y) is set; out-of-range positions are unset.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set marks (x, y).
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, p := range m.Pix {
		if p {
			n++
		}
	}
	return n
}

// Empty reports whether the mask has no area.
func (m *Mask) Empty() bool {
	return m == nil || m.Width == 0 || m.Height == 0
}

// Gray renders the mask as black and white.
func (m *Mask) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, p := range m.Pix {
		if p {
			g.Pix[i] = 255
		}
	}
	return g
}

// FromImage binarises a mask image. Images with a non-opaque alpha channel are read
// from alpha, everything else from luminance.
func FromImage(img image.Image) *Mask {
	var src image.Image
	switch g, isGray := img.(*image.Gray); {
	case isGray:
		src = g
	case hasAlpha(img):
		src = alphaChannel(img)
	default:
		src = effect.Grayscale(img)
	}
	return fromGray(segment.Threshold(src, maskLevel))
}

func fromGray(g *image.Gray) *Mask {
	b := g.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			m.Pix[y*m.Width+x] = g.Pix[g.PixOffset(b.Min.X+x, b.Min.Y+y)] > 0
		}
	}
	return m
}

func hasAlpha(img image.Image) bool {
	switch im := img.(type) {
	case *image.NRGBA:
		return !im.Opaque()
	case *image.NRGBA64:
		return !im.Opaque()
	case *image.RGBA:
		return !im.Opaque()
	case *image.RGBA64:
		return !im.Opaque()
	}
	return false
}

func alphaChannel(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(a >> 8)})
		}
	}
	return out
}

// Union binarises each image, resizes it to the largest width and height with
// nearest-neighbour sampling, and ORs them together. It returns nil for no images.
func Union(imgs ...image.Image) *Mask {
	if len(imgs) == 0 {
		return nil
	}
	masks := make([]*Mask, len(imgs))
	w, h := 0, 0
	for i, img := range imgs {
		masks[i] = FromImage(img)
		w = max(w, masks[i].Width)
		h = max(h, masks[i].Height)
	}
	out := NewMask(w, h)
	for _, m := range masks {
		if m.Width != w || m.Height != h {
			m = resize(m, w, h)
		}
		for i, p := range m.Pix {
			if p {
				out.Pix[i] = true
			}
		}
	}
	return out
}

func resize(m *Mask, w, h int) *Mask {
	if m.Empty() {
		return NewMask(w, h)
	}
	r := imaging.Resize(m.Gray(), w, h, imaging.NearestNeighbor)
	out := NewMask(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = r.Pix[y*r.Stride+x*4] > 0
		}
	}
	return out
}
