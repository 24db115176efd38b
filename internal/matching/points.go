package matching

import (
	"sort"
	"strconv"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// Point is a boss position in image pixels.
type Point struct {
	ID     int     `json:"id"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Source string  `json:"source"`
}

// PointUV is a Point with its ROI-unit coordinates attached.
type PointUV struct {
	Point
	U           float64 `json:"u"`
	V           float64 `json:"v"`
	OutOfBounds bool    `json:"outOfBounds"`
}

// UV returns the unit-space position.
func (p PointUV) UV() r2.Point {
	return r2.Point{X: p.U, Y: p.V}
}

// NormalisePoints validates ids, relabels points by id and sorts them.
// A missing source becomes "manual".
func NormalisePoints(points []Point) ([]Point, error) {
	out := make([]Point, 0, len(points))
	seen := make(map[int]bool, len(points))
	for _, p := range points {
		if p.ID <= 0 {
			return nil, errors.Wrapf(geomerr.ErrInvalidInput, "point id must be a positive integer, got %d", p.ID)
		}
		if seen[p.ID] {
			return nil, errors.Wrapf(geomerr.ErrInvalidInput, "duplicate point id: %d", p.ID)
		}
		seen[p.ID] = true
		p.Label = strconv.Itoa(p.ID)
		if p.Source == "" {
			p.Source = "manual"
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AttachUV maps every point into ROI-unit space. Points more than InsideMarginU
// outside the unit square are flagged out of bounds.
func AttachUV(points []Point, roi geometry.ROI) ([]PointUV, error) {
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, err
	}
	out := make([]PointUV, len(points))
	for i, p := range points {
		uv := m.ToUnit(r2.Point{X: p.X, Y: p.Y})
		out[i] = PointUV{
			Point:       p,
			U:           uv.X,
			V:           uv.Y,
			OutOfBounds: !geometry.InsideUnit(uv, InsideMarginU),
		}
	}
	return out, nil
}
