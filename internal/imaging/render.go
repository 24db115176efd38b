package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/reconstruct"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Palette colours, as hex so callers can override them.
const (
	DefaultEdgeColor    = "#00ff00"
	DefaultBossColor    = "#ffff28"
	DefaultAnchorColor  = "#0078ff"
	DefaultSteinerColor = "#c8c8c8"
	DefaultOverlayColor = "#ff00ff"

	blankCanvasGrey = 40
	minCanvasSide   = 10
)

// RenderOptions controls RenderReconstruction. Zero values take the defaults.
type RenderOptions struct {
	EdgeColor    string  `json:"edgeColor,omitempty"`
	BossColor    string  `json:"bossColor,omitempty"`
	AnchorColor  string  `json:"anchorColor,omitempty"`
	SteinerColor string  `json:"steinerColor,omitempty"`
	EdgeWidth    float64 `json:"edgeWidth,omitempty"`
	ShowLabels   bool    `json:"showLabels,omitempty"`
	LabelSize    float64 `json:"labelSize,omitempty"`
}

// RenderEdge is an edge between two node indices.
type RenderEdge struct {
	A, B         int
	IsConstraint bool
}

// parseColor parses "#rrggbb" through go-colorful, falling back to def.
func parseColor(hex, def string) color.Color {
	if hex == "" {
		hex = def
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(def)
	}
	return c
}

// newCanvas draws base onto a fresh context, or a dark canvas of the ROI's size.
func newCanvas(base image.Image, roi geometry.ROI) *gg.Context {
	if base != nil {
		dc := gg.NewContext(base.Bounds().Dx(), base.Bounds().Dy())
		dc.DrawImage(base, -base.Bounds().Min.X, -base.Bounds().Min.Y)
		return dc
	}
	w := max(minCanvasSide, int(math.Round(roi.W)))
	h := max(minCanvasSide, int(math.Round(roi.H)))
	dc := gg.NewContext(w, h)
	dc.SetColor(color.Gray{Y: blankCanvasGrey})
	dc.Clear()
	return dc
}

// RenderReconstruction draws a bay-plan graph in pixel space.
//
// Edges are drawn first, constraint edges thicker, then nodes coloured by source:
// bosses largest, anchors next, steiner points smallest. Edges with an index
// outside nodes are skipped.
func RenderReconstruction(base image.Image, roi geometry.ROI, nodes []reconstruct.Node, edges []RenderEdge, opts RenderOptions) (*EncodedImage, error) {
	if err := roi.Validate(); err != nil {
		return nil, err
	}
	width := opts.EdgeWidth
	if width <= 0 {
		width = 2
	}
	dc := newCanvas(base, roi)

	dc.SetColor(parseColor(opts.EdgeColor, DefaultEdgeColor))
	dc.SetLineCapRound()
	for _, e := range edges {
		if e.A < 0 || e.B < 0 || e.A >= len(nodes) || e.B >= len(nodes) {
			continue
		}
		a, b := nodes[e.A], nodes[e.B]
		w := width
		if e.IsConstraint {
			w = width * 1.5
		}
		dc.SetLineWidth(w)
		dc.DrawLine(float64(a.X), float64(a.Y), float64(b.X), float64(b.Y))
		dc.Stroke()
	}

	boss := parseColor(opts.BossColor, DefaultBossColor)
	anchor := parseColor(opts.AnchorColor, DefaultAnchorColor)
	steiner := parseColor(opts.SteinerColor, DefaultSteinerColor)
	for _, n := range nodes {
		c, r := steiner, 3.0
		switch n.Source {
		case reconstruct.SourceBoss:
			c, r = boss, 6
		case reconstruct.SourceAnchor:
			c, r = anchor, 5
		}
		dc.SetColor(c)
		dc.DrawCircle(float64(n.X), float64(n.Y), r)
		dc.Fill()
	}

	if opts.ShowLabels {
		size := opts.LabelSize
		if size <= 0 {
			size = 12
		}
		dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: size}))
		dc.SetColor(color.White)
		for _, n := range nodes {
			if n.IsBoss() {
				dc.DrawString(n.BossID, float64(n.X)+7, float64(n.Y)-7)
			}
		}
	}
	return Encode(dc.Image())
}

// RenderTemplateOverlay draws a template variant's lines and keypoints over base,
// mapping unit coordinates through roi.
func RenderTemplateOverlay(base image.Image, roi geometry.ROI, overlay templates.Overlay, hex string) (*EncodedImage, error) {
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, err
	}
	if len(overlay.Lines) == 0 && len(overlay.Points) == 0 {
		return nil, errors.Wrap(geomerr.ErrInvalidInput, "overlay has no lines or points")
	}
	dc := newCanvas(base, roi)
	dc.SetColor(parseColor(hex, DefaultOverlayColor))

	corners := roi.Corners()
	dc.SetLineWidth(1)
	for i := range corners {
		a, b := corners[i], corners[(i+1)%len(corners)]
		dc.DrawLine(a.X, a.Y, b.X, b.Y)
	}
	dc.Stroke()

	dc.SetLineWidth(1.5)
	for _, l := range overlay.Lines {
		a, b := m.ToImage(l[0]), m.ToImage(l[1])
		dc.DrawLine(a.X, a.Y, b.X, b.Y)
		dc.Stroke()
	}
	for _, p := range overlay.Points {
		q := m.ToImage(p)
		dc.DrawCircle(q.X, q.Y, 4)
		dc.Fill()
	}
	return Encode(dc.Image())
}
