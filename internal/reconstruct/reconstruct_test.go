package reconstruct

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

var testROI = geometry.ROI{CX: 50, CY: 50, W: 80, H: 80}

func boss(id string, u, v float64) BossRow {
	return BossRow{ID: id, UV: r2.Point{X: u, Y: v}, Source: BossRaw}
}

func mustNodes(t *testing.T, bosses []BossRow, corners, halves bool) []Node {
	t.Helper()
	nodes, err := CollectNodes(testROI, bosses, corners, halves)
	if err != nil {
		t.Fatalf("CollectNodes failed: %v", err)
	}
	return nodes
}

func ids(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func edges(pairs ...[2]int) []geometry.Edge {
	out := make([]geometry.Edge, 0, len(pairs))
	for _, p := range pairs {
		e, _ := geometry.NewEdge(p[0], p[1])
		out = append(out, e)
	}
	return out
}

func TestCollectNodes(t *testing.T) {
	bosses := []BossRow{boss("1", 0.25, 0.25), boss("2", 0.25, 0.25), boss("3", 0, 0)}

	nodes := mustNodes(t, bosses, true, false)
	want := []string{"1", "3", "roi_corner_10", "roi_corner_11", "roi_corner_01"}
	if diff := cmp.Diff(want, ids(nodes)); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if nodes[0].X != 30 || nodes[0].Y != 30 || nodes[0].BossID != "1" || !nodes[0].IsBoss() {
		t.Errorf("boss node: got %+v", nodes[0])
	}
	if nodes[2].Source != SourceAnchor || nodes[2].BossID != "" {
		t.Errorf("anchor node: got %+v", nodes[2])
	}

	if got := len(mustNodes(t, bosses, true, true)); got != 10 {
		t.Errorf("with half anchors: got %d nodes, want 10", got)
	}
	if got := len(mustNodes(t, nil, false, false)); got != 0 {
		t.Errorf("nothing enabled: got %d nodes", got)
	}
	if _, err := CollectNodes(geometry.ROI{W: 0, H: 10}, bosses, true, false); err == nil {
		t.Error("expected error for degenerate roi")
	}
}

func TestSegmentEdges(t *testing.T) {
	nodes := mustNodes(t, []BossRow{boss("1", 0.5, 0.001)}, true, false)
	got := SegmentEdges(nodes, BoundarySegments(), 0.02)
	want := edges([2]int{0, 1}, [2]int{0, 2}, [2]int{1, 4}, [2]int{2, 3}, [2]int{3, 4})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("boundary chain (-want +got):\n%s", diff)
	}

	if got := SegmentEdges(nodes, BoundarySegments(), 0.0001); len(got) != 4 {
		t.Errorf("tight tolerance: got %v, want the four sides", got)
	}
	diag := SegmentsForFamilies([]ribs.Family{ribs.DiagonalBackslash})
	if len(diag) != 5 {
		t.Fatalf("segments: got %d, want 5", len(diag))
	}
	if got := SegmentEdges(nodes, diag, 0.02); !containsEdge(got, geometry.Edge{A: 1, B: 3}) {
		t.Errorf("diagonal edge missing from %v", got)
	}
}

func TestKNNEdges(t *testing.T) {
	nodes := mustNodes(t, nil, true, false)
	want := edges([2]int{0, 1}, [2]int{0, 3}, [2]int{1, 2})
	if diff := cmp.Diff(want, KNNEdges(nodes, 1, 2)); diff != "" {
		t.Errorf("k=1 (-want +got):\n%s", diff)
	}
	if got := KNNEdges(nodes, 1, 0.5); len(got) != 0 {
		t.Errorf("max distance: got %v, want none", got)
	}
	if got := KNNEdges(nodes, 10, 2); len(got) != 6 {
		t.Errorf("k past n: got %d edges, want 6", len(got))
	}
	if got := KNNEdges(nodes[:1], 3, 2); len(got) != 0 {
		t.Errorf("single node: got %v", got)
	}
}

func TestUnionEdges(t *testing.T) {
	got := UnionEdges(edges([2]int{2, 1}), []geometry.Edge{{A: 1, B: 2}, {A: 3, B: 3}, {A: 0, B: 5}})
	want := []geometry.Edge{{A: 0, B: 5}, {A: 1, B: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestSelectConstraints(t *testing.T) {
	nodes := mustNodes(t, []BossRow{boss("1", 0.5, 0.2)}, true, false)
	// 0 boss, 1..4 corners 00, 10, 11, 01
	boundary := edges([2]int{1, 2}, [2]int{2, 3}, [2]int{3, 4}, [2]int{1, 4})
	scores := map[geometry.Edge]ribs.EdgeScore{
		{A: 1, B: 3}: {Score: 0.9},
		{A: 2, B: 4}: {Score: 0.8},
		{A: 0, B: 3}: {Score: 0.15},
		{A: 0, B: 4}: {Score: 0.1},
	}
	opts := SelectOptions{
		MinScore:         0.34,
		Protected:        boundary,
		PerBossMinScore:  0.12,
		FallbackTopN:     2,
		EnforcePlanarity: true,
	}

	t.Run("planar", func(t *testing.T) {
		got := SelectConstraints(nodes, scores, opts)
		want := UnionEdges(boundary, edges([2]int{1, 3}, [2]int{0, 3}))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("crossings allowed", func(t *testing.T) {
		o := opts
		o.EnforcePlanarity = false
		got := SelectConstraints(nodes, scores, o)
		want := UnionEdges(boundary, edges([2]int{1, 3}, [2]int{2, 4}, [2]int{0, 3}))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("boss below floor", func(t *testing.T) {
		o := opts
		o.PerBossMinScore = 0.5
		got := SelectConstraints(nodes, scores, o)
		if hasIncident(setOf(got), 0) {
			t.Errorf("boss should stay uncovered, got %v", got)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		o := opts
		o.MinScore = 0.95
		o.PerBossMinScore = 1
		got := SelectConstraints(nodes, scores, o)
		want := UnionEdges(boundary, edges([2]int{1, 3}))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}

func setOf(es []geometry.Edge) map[geometry.Edge]bool {
	out := map[geometry.Edge]bool{}
	for _, e := range es {
		out[e] = true
	}
	return out
}

func containsEdge(es []geometry.Edge, e geometry.Edge) bool {
	return setOf(es)[e]
}

// assertPlanar fails when two edges without a common node cross.
func assertPlanar(t *testing.T, nodes []Node, es []geometry.Edge, skip map[geometry.Edge]bool) {
	t.Helper()
	for i := range es {
		for j := i + 1; j < len(es); j++ {
			a, b := es[i], es[j]
			if skip[a] || skip[b] || a.SharesNode(b) {
				continue
			}
			if geometry.SegmentsCross(nodes[a.A].UV(), nodes[a.B].UV(), nodes[b.A].UV(), nodes[b.B].UV()) {
				t.Errorf("edges %v and %v cross", a, b)
			}
		}
	}
}

func TestTriangulate(t *testing.T) {
	corners := mustNodes(t, nil, true, false)
	boundary := edges([2]int{0, 1}, [2]int{1, 2}, [2]int{2, 3}, [2]int{0, 3})

	t.Run("unconstrained square", func(t *testing.T) {
		nodes, got, err := Triangulate(corners, nil, testROI)
		if err != nil {
			t.Fatalf("Triangulate failed: %v", err)
		}
		if len(nodes) != 4 || len(got) != 5 {
			t.Fatalf("got %d nodes %d edges, want 4 and 5: %v", len(nodes), len(got), got)
		}
		for _, e := range boundary {
			if !containsEdge(got, e) {
				t.Errorf("hull edge %v missing", e)
			}
		}
	})

	t.Run("forced diagonal", func(t *testing.T) {
		_, got, err := Triangulate(corners, edges([2]int{1, 3}), testROI)
		if err != nil {
			t.Fatalf("Triangulate failed: %v", err)
		}
		want := UnionEdges(boundary, edges([2]int{1, 3}))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("crossing constraints", func(t *testing.T) {
		nodes, got, err := Triangulate(corners, edges([2]int{0, 2}, [2]int{1, 3}), testROI)
		if err != nil {
			t.Fatalf("Triangulate failed: %v", err)
		}
		if len(nodes) != 5 {
			t.Fatalf("got %d nodes, want 5", len(nodes))
		}
		s := nodes[4]
		if s.ID != "steiner_0" || s.Source != SourceSteiner || s.U != 0.5 || s.V != 0.5 || s.X != 50 || s.Y != 50 {
			t.Errorf("steiner node: got %+v", s)
		}
		for i := 0; i < 4; i++ {
			if !containsEdge(got, geometry.Edge{A: i, B: 4}) {
				t.Errorf("spoke %d-4 missing", i)
			}
		}
		if !containsEdge(got, geometry.Edge{A: 0, B: 2}) || !containsEdge(got, geometry.Edge{A: 1, B: 3}) {
			t.Errorf("input constraints must be kept: %v", got)
		}
		if len(got) != 10 {
			t.Errorf("got %d edges, want 10: %v", len(got), got)
		}
	})

	t.Run("constraint through a node", func(t *testing.T) {
		nodes := mustNodes(t, []BossRow{boss("1", 0.5, 0.5)}, true, false)
		out, got, err := Triangulate(nodes, edges([2]int{1, 3}), testROI)
		if err != nil {
			t.Fatalf("Triangulate failed: %v", err)
		}
		if len(out) != 5 {
			t.Errorf("no steiner node expected, got %d nodes", len(out))
		}
		if !containsEdge(got, geometry.Edge{A: 0, B: 1}) || !containsEdge(got, geometry.Edge{A: 0, B: 3}) {
			t.Errorf("split constraint missing: %v", got)
		}
	})

	t.Run("grid", func(t *testing.T) {
		var bosses []BossRow
		for _, v := range []float64{0, 0.5, 1} {
			for _, u := range []float64{0, 0.5, 1} {
				bosses = append(bosses, boss("b", u, v))
			}
		}
		nodes := mustNodes(t, bosses, false, false)
		_, got, err := Triangulate(nodes, nil, testROI)
		if err != nil {
			t.Fatalf("Triangulate failed: %v", err)
		}
		if len(got) != 16 {
			t.Errorf("got %d edges, want 16: %v", len(got), got)
		}
		assertPlanar(t, nodes, got, nil)
	})

	t.Run("scattered with constraint", func(t *testing.T) {
		bosses := []BossRow{
			boss("1", 0.2, 0.3), boss("2", 0.7, 0.15), boss("3", 0.45, 0.55),
			boss("4", 0.85, 0.7), boss("5", 0.3, 0.8), boss("6", 0.6, 0.4),
		}
		nodes := mustNodes(t, bosses, true, false)
		cons := edges([2]int{0, 3})
		_, got, err := Triangulate(nodes, cons, testROI)
		if err != nil {
			t.Fatalf("Triangulate failed: %v", err)
		}
		if !containsEdge(got, cons[0]) {
			t.Errorf("constraint missing: %v", got)
		}
		assertPlanar(t, nodes, got, nil)
	})

	t.Run("too few nodes", func(t *testing.T) {
		nodes, got, err := Triangulate(corners[:1], nil, testROI)
		if err != nil || len(nodes) != 1 || len(got) != 0 {
			t.Errorf("got %v %v %v", nodes, got, err)
		}
	})

	t.Run("bad index", func(t *testing.T) {
		if _, _, err := Triangulate(corners, edges([2]int{0, 7}), testROI); err == nil {
			t.Error("expected error for missing node")
		}
	})
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"empty", nil, 0.35, 0},
		{"single", []float64{0.4}, 0.35, 0.4},
		{"five ranks", []float64{0, 1, 2, 3, 4}, 0.35, 1.4},
		{"four ranks", []float64{0.1, 0.2, 0.6, 0.9}, 0.35, 0.2 + 0.4*0.05},
		{"lowest", []float64{1, 2, 3}, 0, 1},
		{"highest", []float64{1, 2, 3}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quantile(tt.values, tt.q); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("quantile(%v, %v) = %v, want %v", tt.values, tt.q, got, tt.want)
			}
		})
	}
}

func TestPruneEdges(t *testing.T) {
	rib := ribs.NewMask(100, 100)
	for y := 0; y < 100; y++ {
		for x := 46; x <= 54; x++ {
			rib.Set(x, y, true)
		}
	}
	scorer, err := ribs.NewScorer(rib, testROI)
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	nodes := mustNodes(t, []BossRow{boss("1", 0.5, 0.1), boss("2", 0.5, 0.9), boss("3", 0.1, 0.5)}, false, false)
	all := edges([2]int{0, 1}, [2]int{0, 2}, [2]int{1, 2})

	t.Run("no mask", func(t *testing.T) {
		got, thr := PruneEdges(nil, nodes, all, nil, 8, 0.18)
		if thr != 0 || len(got) != 3 {
			t.Errorf("got %v %v", got, thr)
		}
	})

	t.Run("weak edges dropped", func(t *testing.T) {
		got, thr := PruneEdges(scorer, nodes, all, nil, 8, 0.5)
		if thr < 0.5 {
			t.Errorf("threshold %v below the minimum", thr)
		}
		if len(got) != 2 || !containsEdge(got, geometry.Edge{A: 0, B: 1}) {
			t.Errorf("got %v", got)
		}
		if !hasIncident(setOf(got), 2) {
			t.Errorf("boss 3 lost every edge: %v", got)
		}
	})

	t.Run("constraints kept", func(t *testing.T) {
		got, _ := PruneEdges(scorer, nodes, all, edges([2]int{1, 2}), 8, 0.5)
		want := edges([2]int{0, 1}, [2]int{1, 2})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}
