package reconstruct

import (
	"image"

	"github.com/golang/geo/r2"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// Source says where a node came from.
type Source string

// Node sources.
const (
	SourceBoss    Source = "boss"
	SourceAnchor  Source = "anchor"
	SourceSteiner Source = "steiner"
)

// Node is a vertex of the reconstruction graph.
type Node struct {
	ID     string   `json:"id"`
	BossID string   `json:"bossId,omitempty"`
	Source Source   `json:"source"`
	U      float64  `json:"u"`
	V      float64  `json:"v"`
	X      int      `json:"x"`
	Y      int      `json:"y"`
	Pixel  r2.Point `json:"-"`
}

// UV returns the node's unit-space position.
func (n Node) UV() r2.Point {
	return r2.Point{X: n.U, Y: n.V}
}

// XY returns the node's rounded pixel position.
func (n Node) XY() image.Point {
	return image.Point{X: n.X, Y: n.Y}
}

// IsBoss reports whether the node stands for a boss.
func (n Node) IsBoss() bool {
	return n.Source == SourceBoss
}

// BossRow is a boss resolved to the position it takes in reconstruction.
type BossRow struct {
	ID     string
	UV     r2.Point
	Source string // "ideal" when snapped to a template, "raw" otherwise
}

// Boss position sources.
const (
	BossIdeal = "ideal"
	BossRaw   = "raw"
)

type anchor struct {
	id string
	uv r2.Point
}

var cornerAnchors = []anchor{
	{"roi_corner_00", r2.Point{X: 0, Y: 0}},
	{"roi_corner_10", r2.Point{X: 1, Y: 0}},
	{"roi_corner_11", r2.Point{X: 1, Y: 1}},
	{"roi_corner_01", r2.Point{X: 0, Y: 1}},
}

var halfAnchors = []anchor{
	{"roi_mid_top", r2.Point{X: 0.5, Y: 0}},
	{"roi_mid_right", r2.Point{X: 1, Y: 0.5}},
	{"roi_mid_bottom", r2.Point{X: 0.5, Y: 1}},
	{"roi_mid_left", r2.Point{X: 0, Y: 0.5}},
	{"roi_centre", r2.Point{X: 0.5, Y: 0.5}},
}

// nodeKeyDigits is the rounding used to detect coincident nodes.
const nodeKeyDigits = 4

// CollectNodes returns one node per boss followed by the enabled ROI anchors.
// A node whose unit position rounds to that of an earlier node is dropped.
func CollectNodes(roi geometry.ROI, bosses []BossRow, corners, halves bool) ([]Node, error) {
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, err
	}
	var nodes []Node
	seen := map[[2]float64]bool{}
	add := func(id string, uv r2.Point, src Source, bossID string) {
		key := [2]float64{geometry.Round(uv.X, nodeKeyDigits), geometry.Round(uv.Y, nodeKeyDigits)}
		if seen[key] {
			return
		}
		seen[key] = true
		nodes = append(nodes, newNode(m, id, uv, src, bossID))
	}

	for _, b := range bosses {
		add(b.ID, b.UV, SourceBoss, b.ID)
	}
	if corners {
		for _, a := range cornerAnchors {
			add(a.id, a.uv, SourceAnchor, "")
		}
	}
	if halves {
		for _, a := range halfAnchors {
			add(a.id, a.uv, SourceAnchor, "")
		}
	}
	return nodes, nil
}

func newNode(m geometry.Mapper, id string, uv r2.Point, src Source, bossID string) Node {
	px := m.ToImage(uv)
	xy := geometry.RoundPoint(px)
	return Node{
		ID:     id,
		BossID: bossID,
		Source: src,
		U:      uv.X,
		V:      uv.Y,
		X:      xy.X,
		Y:      xy.Y,
		Pixel:  px,
	}
}

// UVs returns the unit positions of nodes in order.
func UVs(nodes []Node) []r2.Point {
	out := make([]r2.Point, len(nodes))
	for i, n := range nodes {
		out[i] = n.UV()
	}
	return out
}
