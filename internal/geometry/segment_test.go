package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
)

func pt(x, y float64) r2.Point { return r2.Point{X: x, Y: y} }

func TestSegmentIntersection(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, d r2.Point
		want       r2.Point
		ok         bool
	}{
		{"diagonals", pt(0, 0), pt(1, 1), pt(1, 0), pt(0, 1), pt(0.5, 0.5), true},
		{"touching end", pt(0, 0), pt(1, 0), pt(1, 0), pt(1, 1), pt(1, 0), true},
		{"parallel", pt(0, 0), pt(1, 0), pt(0, 1), pt(1, 1), r2.Point{}, false},
		{"disjoint", pt(0, 0), pt(1, 0), pt(2, -1), pt(2, 1), r2.Point{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SegmentIntersection(tt.a, tt.b, tt.c, tt.d, 1e-9)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if ok && !near(got, tt.want, 1e-12) {
				t.Errorf("point: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSegmentsCross(t *testing.T) {
	tests := []struct {
		name           string
		p1, p2, p3, p4 r2.Point
		want           bool
	}{
		{"x shape", pt(0, 0), pt(1, 1), pt(1, 0), pt(0, 1), true},
		{"shared endpoint", pt(0, 0), pt(1, 1), pt(1, 1), pt(2, 0), false},
		{"t junction", pt(0, 0), pt(2, 0), pt(1, 0), pt(1, 1), true},
		{"collinear overlap", pt(0, 0), pt(2, 0), pt(1, 0), pt(3, 0), true},
		{"collinear apart", pt(0, 0), pt(1, 0), pt(2, 0), pt(3, 0), false},
		{"separate", pt(0, 0), pt(1, 0), pt(0, 1), pt(1, 2), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentsCross(tt.p1, tt.p2, tt.p3, tt.p4); got != tt.want {
				t.Errorf("SegmentsCross: got %v, want %v", got, tt.want)
			}
			if got := SegmentsCross(tt.p3, tt.p4, tt.p1, tt.p2); got != tt.want {
				t.Errorf("SegmentsCross (swapped): got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProject(t *testing.T) {
	tt, dist, ok := Project(pt(0.5, 0.1), Seg(0, 0, 1, 0))
	if !ok {
		t.Fatal("Project: expected ok")
	}
	if math.Abs(tt-0.5) > 1e-12 || math.Abs(dist-0.1) > 1e-12 {
		t.Errorf("Project: got t=%v dist=%v, want 0.5, 0.1", tt, dist)
	}
	if _, _, ok := Project(pt(1, 1), Seg(2, 2, 2, 2)); ok {
		t.Error("Project on zero-length segment: expected !ok")
	}
}

func TestRayAndCircle(t *testing.T) {
	p := RayCirclePoint(pt(0, 0), pt(3, 4), 10)
	if !near(p, pt(6, 8), 1e-12) {
		t.Errorf("RayCirclePoint: got %v, want (6,8)", p)
	}
	if got := RayCirclePoint(pt(1, 1), pt(1, 1), 5); got != pt(1, 1) {
		t.Errorf("RayCirclePoint zero ray: got %v", got)
	}

	hits := LineCircleIntersections(pt(-2, 0), pt(2, 0), pt(0, 0), 1, 1e-9)
	if len(hits) != 2 {
		t.Fatalf("LineCircleIntersections: got %d hits, want 2", len(hits))
	}
	if !near(hits[0], pt(-1, 0), 1e-12) || !near(hits[1], pt(1, 0), 1e-12) {
		t.Errorf("LineCircleIntersections: got %v", hits)
	}
	if hits := LineCircleIntersections(pt(-2, 5), pt(2, 5), pt(0, 0), 1, 1e-9); len(hits) != 0 {
		t.Errorf("miss: got %v, want none", hits)
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(-16, 16, 17)
	if len(got) != 17 || got[0] != -16 || got[16] != 16 || math.Abs(got[1]+14) > 1e-12 {
		t.Errorf("Linspace: got %v", got)
	}
	if got := Linspace(0, 0, 1); len(got) != 1 || got[0] != 0 {
		t.Errorf("Linspace n=1: got %v", got)
	}
	if got := Linspace(0, 1, 0); got != nil {
		t.Errorf("Linspace n=0: got %v", got)
	}
}

func TestRound(t *testing.T) {
	if got := Round(0.123456789, 6); got != 0.123457 {
		t.Errorf("Round: got %v", got)
	}
	if got := Clip01(1.2); got != 1 {
		t.Errorf("Clip01: got %v", got)
	}
}

func TestNewEdge(t *testing.T) {
	e, ok := NewEdge(5, 2)
	if !ok || e != (Edge{A: 2, B: 5}) {
		t.Errorf("NewEdge(5, 2): got %+v %v, want {2 5} true", e, ok)
	}
	if _, ok := NewEdge(3, 3); ok {
		t.Error("NewEdge(3, 3): got ok for self loop")
	}
	if _, ok := NewEdge(-1, 3); ok {
		t.Error("NewEdge(-1, 3): got ok for negative index")
	}
	if !e.SharesNode(Edge{A: 5, B: 9}) || e.SharesNode(Edge{A: 3, B: 4}) {
		t.Error("SharesNode: wrong result")
	}

	edges := []Edge{{A: 2, B: 3}, {A: 0, B: 4}, {A: 0, B: 1}}
	SortEdges(edges)
	want := []Edge{{A: 0, B: 1}, {A: 0, B: 4}, {A: 2, B: 3}}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("SortEdges[%d]: got %+v, want %+v", i, edges[i], want[i])
		}
	}
}
