package templates

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r2"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

func TestGridOverlay(t *testing.T) {
	lines := GridOverlay(4)
	if len(lines) != 10 {
		t.Fatalf("line count: got %d, want 10", len(lines))
	}
	if lines[2] != (Line{{X: 0.25, Y: 0}, {X: 0.25, Y: 1}}) {
		t.Errorf("third line: got %v", lines[2])
	}
	if got := len(GridOverlay(1)); got != 6 {
		t.Errorf("n clamped to 2: got %d lines, want 6", got)
	}
}

func TestCircleOverlay(t *testing.T) {
	roi := geometry.ROI{CX: 50, CY: 50, W: 100, H: 100, RotationDeg: 10}
	ov, err := CircleOverlay(Inner, roi)
	if err != nil {
		t.Fatalf("CircleOverlay failed: %v", err)
	}
	if len(ov.Lines) != circleSamples+12 {
		t.Errorf("line count: got %d, want %d", len(ov.Lines), circleSamples+12)
	}
	if len(ov.Points) != 5 || ov.Points[4] != (r2.Point{X: 0.5, Y: 0.5}) {
		t.Errorf("markers: got %v", ov.Points)
	}
	// Every circle vertex sits at radius 0.5 from the centre in unit space.
	for i := 0; i < circleSamples; i++ {
		d := ov.Lines[i][0].Sub(r2.Point{X: 0.5, Y: 0.5}).Norm()
		if math.Abs(d-0.5) > 1e-9 {
			t.Fatalf("circle vertex %d at distance %v, want 0.5", i, d)
		}
	}
	// The first vertex starts along the ROI's local +u axis.
	if first := ov.Lines[0][0]; math.Abs(first.X-1) > 1e-9 || math.Abs(first.Y-0.5) > 1e-9 {
		t.Errorf("first circle vertex: got %v, want (1, 0.5)", first)
	}
}

func TestOverlayJSON(t *testing.T) {
	ov := Overlay{
		Lines:  []Line{{{X: 0, Y: 0}, {X: 1, Y: 1}}},
		Points: []r2.Point{{X: 0.5, Y: 0.25}},
	}
	data, err := json.Marshal(ov)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"linesUv":[[[0,0],[1,1]]],"pointsUv":[[0.5,0.25]]}` {
		t.Errorf("json: got %s", data)
	}

	var back Overlay
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back.Lines) != 1 || back.Points[0] != ov.Points[0] {
		t.Errorf("round trip: got %+v", back)
	}
}

func TestMerge(t *testing.T) {
	a := Overlay{Lines: GridOverlay(2), Points: []r2.Point{{X: 0, Y: 0}}}
	b := Overlay{Lines: GridOverlay(3), Points: []r2.Point{{X: 1, Y: 1}}}
	m := Merge(a, b)
	if len(m.Lines) != len(a.Lines)+len(b.Lines) || len(m.Points) != 2 {
		t.Errorf("Merge: got %d lines %d points", len(m.Lines), len(m.Points))
	}
}
