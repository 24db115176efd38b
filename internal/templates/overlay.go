package templates

import (
	"encoding/json"
	"math"

	"github.com/golang/geo/r2"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// circleSamples is the number of polyline vertices used to draw a circlecut circle.
const circleSamples = 72

// Line is a straight overlay stroke in unit coordinates.
type Line [2]r2.Point

// Overlay is presentation geometry for a template variant.
type Overlay struct {
	Lines  []Line
	Points []r2.Point
}

type overlayJSON struct {
	Lines  [][2][2]float64 `json:"linesUv"`
	Points [][2]float64    `json:"pointsUv"`
}

// MarshalJSON writes lines and points as nested [u, v] arrays.
func (o Overlay) MarshalJSON() ([]byte, error) {
	out := overlayJSON{
		Lines:  make([][2][2]float64, len(o.Lines)),
		Points: make([][2]float64, len(o.Points)),
	}
	for i, l := range o.Lines {
		out.Lines[i] = [2][2]float64{geometry.Pair(l[0]), geometry.Pair(l[1])}
	}
	for i, p := range o.Points {
		out.Points[i] = geometry.Pair(p)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (o *Overlay) UnmarshalJSON(data []byte) error {
	var in overlayJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	o.Lines = make([]Line, len(in.Lines))
	for i, l := range in.Lines {
		o.Lines[i] = Line{geometry.FromPair(l[0]), geometry.FromPair(l[1])}
	}
	o.Points = make([]r2.Point, len(in.Points))
	for i, p := range in.Points {
		o.Points[i] = geometry.FromPair(p)
	}
	return nil
}

// Merge concatenates two overlays; cross variants draw both of their sources.
func Merge(a, b Overlay) Overlay {
	out := Overlay{
		Lines:  make([]Line, 0, len(a.Lines)+len(b.Lines)),
		Points: make([]r2.Point, 0, len(a.Points)+len(b.Points)),
	}
	out.Lines = append(append(out.Lines, a.Lines...), b.Lines...)
	out.Points = append(append(out.Points, a.Points...), b.Points...)
	return out
}

// GridOverlay returns the vertical and horizontal division lines of an n-by-n starcut.
func GridOverlay(n int) []Line {
	if n < 2 {
		n = 2
	}
	lines := make([]Line, 0, 2*(n+1))
	for i := 0; i <= n; i++ {
		u := float64(i) / float64(n)
		lines = append(lines,
			Line{{X: u, Y: 0}, {X: u, Y: 1}},
			Line{{X: 0, Y: u}, {X: 1, Y: u}},
		)
	}
	return lines
}

// CircleOverlay returns the circle polyline, the 12 spine guides and the key markers of
// a circlecut variant.
func CircleOverlay(variant Variant, roi geometry.ROI) (Overlay, error) {
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return Overlay{}, err
	}
	radius, err := Radius(variant, roi.W, roi.H)
	if err != nil {
		return Overlay{}, err
	}
	card := rawCardinals(m, radius)
	pt, pr, pb, pl := card.Top, card.Right, card.Bottom, card.Left

	circle := make([]r2.Point, circleSamples)
	angle0 := roi.RotationDeg * math.Pi / 180
	for i := range circle {
		t := 2*math.Pi*float64(i)/circleSamples + angle0
		circle[i] = m.ToUnit(r2.Point{
			X: roi.CX + radius*math.Cos(t),
			Y: roi.CY + radius*math.Sin(t),
		})
	}

	lines := make([]Line, 0, circleSamples+12)
	for i := range circle {
		lines = append(lines, Line{circle[i], circle[(i+1)%circleSamples]})
	}

	c00 := r2.Point{X: 0, Y: 0}
	c10 := r2.Point{X: 1, Y: 0}
	c11 := r2.Point{X: 1, Y: 1}
	c01 := r2.Point{X: 0, Y: 1}
	lines = append(lines,
		Line{c00, c11},
		Line{c10, c01},
		Line{c00, pr},
		Line{c00, pb},
		Line{c10, pl},
		Line{c10, pb},
		Line{c11, pt},
		Line{c11, pl},
		Line{c01, pt},
		Line{c01, pr},
		Line{pt, pb},
		Line{pl, pr},
	)

	return Overlay{
		Lines:  lines,
		Points: []r2.Point{pt, pr, pb, pl, {X: 0.5, Y: 0.5}},
	}, nil
}
