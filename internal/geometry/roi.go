package geometry

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
)

// ROI is a rotated rectangle that defines the local frame of a single vault bay.
type ROI struct {
	CX          float64 `json:"cx"`
	CY          float64 `json:"cy"`
	W           float64 `json:"w"`
	H           float64 `json:"h"`
	RotationDeg float64 `json:"rotation_deg"`
}

// Validate reports geomerr.ErrDegenerateRoi unless both sides are positive and finite.
func (r ROI) Validate() error {
	if !(r.W > 0) || !(r.H > 0) {
		return errors.Wrapf(geomerr.ErrDegenerateRoi, "roi w=%g h=%g", r.W, r.H)
	}
	for _, v := range []float64{r.CX, r.CY, r.W, r.H, r.RotationDeg} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(geomerr.ErrDegenerateRoi, "roi has non-finite parameters")
		}
	}
	return nil
}

// Centre returns the ROI centre in pixels.
func (r ROI) Centre() r2.Point {
	return r2.Point{X: r.CX, Y: r.CY}
}

func (r ROI) sinCos() (float64, float64) {
	return math.Sincos(r.RotationDeg * math.Pi / 180)
}

// ImageToUnit maps an image pixel position into ROI unit-square coordinates.
func ImageToUnit(p r2.Point, roi ROI) (r2.Point, error) {
	if err := roi.Validate(); err != nil {
		return r2.Point{}, err
	}
	return imageToUnit(p, roi), nil
}

func imageToUnit(p r2.Point, roi ROI) r2.Point {
	s, c := roi.sinCos()
	dx := p.X - roi.CX
	dy := p.Y - roi.CY

	// Undo the rotation, then normalise into [0, 1].
	xl := c*dx + s*dy
	yl := -s*dx + c*dy
	return r2.Point{X: xl/roi.W + 0.5, Y: yl/roi.H + 0.5}
}

// UnitToImage maps ROI unit-square coordinates into image pixel coordinates.
func UnitToImage(p r2.Point, roi ROI) (r2.Point, error) {
	if err := roi.Validate(); err != nil {
		return r2.Point{}, err
	}
	return unitToImage(p, roi), nil
}

func unitToImage(p r2.Point, roi ROI) r2.Point {
	s, c := roi.sinCos()
	xl := (p.X - 0.5) * roi.W
	yl := (p.Y - 0.5) * roi.H
	return r2.Point{
		X: roi.CX + c*xl - s*yl,
		Y: roi.CY + s*xl + c*yl,
	}
}

// Mapper converts between the two spaces for an ROI that has already been validated.
// It is what the hot loops use; construct it with NewMapper.
type Mapper struct {
	roi  ROI
	s, c float64
}

// NewMapper validates roi once and returns a reusable converter.
func NewMapper(roi ROI) (Mapper, error) {
	if err := roi.Validate(); err != nil {
		return Mapper{}, err
	}
	s, c := roi.sinCos()
	return Mapper{roi: roi, s: s, c: c}, nil
}

// ROI returns the rectangle the mapper was built for.
func (m Mapper) ROI() ROI { return m.roi }

// ToUnit maps a pixel position to unit coordinates.
func (m Mapper) ToUnit(p r2.Point) r2.Point {
	dx := p.X - m.roi.CX
	dy := p.Y - m.roi.CY
	return r2.Point{
		X: (m.c*dx+m.s*dy)/m.roi.W + 0.5,
		Y: (-m.s*dx+m.c*dy)/m.roi.H + 0.5,
	}
}

// ToImage maps unit coordinates to a pixel position.
func (m Mapper) ToImage(p r2.Point) r2.Point {
	xl := (p.X - 0.5) * m.roi.W
	yl := (p.Y - 0.5) * m.roi.H
	return r2.Point{
		X: m.roi.CX + m.c*xl - m.s*yl,
		Y: m.roi.CY + m.s*xl + m.c*yl,
	}
}

// Perturb returns a copy of r translated by (dx, dy) pixels, with width and height
// scaled by sw and sh and rotation offset by drot degrees.
func (r ROI) Perturb(dx, dy, sw, sh, drot float64) ROI {
	return ROI{
		CX:          r.CX + dx,
		CY:          r.CY + dy,
		W:           r.W * sw,
		H:           r.H * sh,
		RotationDeg: r.RotationDeg + drot,
	}
}

// Corners returns the pixel positions of the unit corners (0,0), (1,0), (1,1), (0,1).
func (r ROI) Corners() [4]r2.Point {
	return [4]r2.Point{
		unitToImage(r2.Point{X: 0, Y: 0}, r),
		unitToImage(r2.Point{X: 1, Y: 0}, r),
		unitToImage(r2.Point{X: 1, Y: 1}, r),
		unitToImage(r2.Point{X: 0, Y: 1}, r),
	}
}

// RoundPoint rounds a pixel position to the nearest integer pixel.
func RoundPoint(p r2.Point) image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// InsideUnit reports whether p lies in [-margin, 1+margin] on both axes.
func InsideUnit(p r2.Point, margin float64) bool {
	return p.X >= -margin && p.X <= 1+margin && p.Y >= -margin && p.Y <= 1+margin
}

// Pair flattens p into an [x, y] array, the form persisted in JSON payloads.
func Pair(p r2.Point) [2]float64 {
	return [2]float64{p.X, p.Y}
}

// FromPair is the inverse of Pair.
func FromPair(a [2]float64) r2.Point {
	return r2.Point{X: a[0], Y: a[1]}
}
