package project

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"

	"github.com/ironsheep/vault-geometry-mcp/internal/bayplan"
	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/matching"
	"github.com/ironsheep/vault-geometry-mcp/internal/reconstruct"
)

const testProject = "vault-a"

var testROI = geometry.ROI{CX: 50, CY: 50, W: 80, H: 80}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir(), nil, zaptest.NewLogger(t).Sugar())
	if err := s.Create(testProject); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return s
}

func testReport() *BossReport {
	return &BossReport{
		ROI:           testROI,
		DetectionMode: "auto",
		BossIDs:       []int{1, 2, 10},
		BossCount:     3,
		Bosses: []BossEntry{
			{ID: 10, CentroidXY: XY{X: 90, Y: 90}, CentroidUV: UV{U: 1, V: 1}},
			{ID: 2, CentroidXY: XY{X: 70, Y: 50}, CentroidUV: UV{U: 0.75, V: 0.5}},
			{ID: 1, CentroidXY: XY{X: 31, Y: 49}, CentroidUV: UV{U: 0.2625, V: 0.4875}},
		},
	}
}

func TestProjectIDs(t *testing.T) {
	s := New(t.TempDir(), nil, nil)
	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := s.Dir(id); !errors.Is(err, geomerr.ErrInvalidInput) {
			t.Errorf("Dir(%q) error = %v, want ErrInvalidInput", id, err)
		}
	}

	ids, err := s.List()
	if err != nil || len(ids) != 0 {
		t.Fatalf("List() = %v, %v, want empty", ids, err)
	}
	for _, id := range []string{"b", "a"} {
		if err := s.Create(id); err != nil {
			t.Fatalf("Create(%q) error = %v", id, err)
		}
	}
	ids, err = s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestROIRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.LoadROI(ctx, testProject); !errors.Is(err, geomerr.ErrMissingUpstreamArtifact) {
		t.Fatalf("LoadROI() before save error = %v, want ErrMissingUpstreamArtifact", err)
	}

	bad := &ROIRecord{Params: geometry.ROI{CX: 1, CY: 1}}
	if err := s.SaveROIRecord(ctx, testProject, bad); !errors.Is(err, geomerr.ErrDegenerateRoi) {
		t.Errorf("SaveROIRecord(degenerate) error = %v, want ErrDegenerateRoi", err)
	}

	rec := &ROIRecord{
		Params:         testROI,
		OriginalParams: testROI,
		VaultRatio:     1,
		UpdatedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.SaveROIRecord(ctx, testProject, rec); err != nil {
		t.Fatalf("SaveROIRecord() error = %v", err)
	}
	got, err := s.LoadROI(ctx, testProject)
	if err != nil {
		t.Fatalf("LoadROI() error = %v", err)
	}
	if got != testROI {
		t.Errorf("LoadROI() = %+v, want %+v", got, testROI)
	}

	// No temporary files survive a write.
	dir, _ := s.Path(testProject, geometryDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name()[0] == '.' {
			t.Errorf("leftover temporary file %s", e.Name())
		}
	}
}

func TestLoadBossRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.LoadBossRows(ctx, testProject); !errors.Is(err, geomerr.ErrMissingUpstreamArtifact) {
		t.Fatalf("LoadBossRows() without report error = %v, want ErrMissingUpstreamArtifact", err)
	}
	if err := s.SaveBossReport(ctx, testProject, testReport()); err != nil {
		t.Fatal(err)
	}

	t.Run("report only", func(t *testing.T) {
		rows, err := s.LoadBossRows(ctx, testProject)
		if err != nil {
			t.Fatalf("LoadBossRows() error = %v", err)
		}
		want := []reconstruct.BossRow{
			{ID: "1", UV: r2.Point{X: 0.2625, Y: 0.4875}, Source: reconstruct.BossRaw},
			{ID: "2", UV: r2.Point{X: 0.75, Y: 0.5}, Source: reconstruct.BossRaw},
			{ID: "10", UV: r2.Point{X: 1, Y: 1}, Source: reconstruct.BossRaw},
		}
		if diff := cmp.Diff(want, rows); diff != "" {
			t.Errorf("LoadBossRows() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("match table", func(t *testing.T) {
		ideal := r2.Point{X: 0.25, Y: 0.5}
		table := []matching.TableRow{
			{BossID: 1, VariantLabel: "starcut_n4", BossUV: r2.Point{X: 0.2625, Y: 0.4875}, TemplateUV: &ideal, Matched: true},
			{BossID: 2, VariantLabel: "None", BossUV: r2.Point{X: 0.75, Y: 0.5}},
		}
		if err := s.SaveMatchTable(ctx, testProject, table); err != nil {
			t.Fatal(err)
		}
		rows, err := s.LoadBossRows(ctx, testProject)
		if err != nil {
			t.Fatalf("LoadBossRows() error = %v", err)
		}
		want := []reconstruct.BossRow{
			{ID: "1", UV: ideal, Source: reconstruct.BossIdeal},
			{ID: "2", UV: r2.Point{X: 0.75, Y: 0.5}, Source: reconstruct.BossRaw},
			{ID: "10", UV: r2.Point{X: 1, Y: 1}, Source: reconstruct.BossRaw},
		}
		if diff := cmp.Diff(want, rows); diff != "" {
			t.Errorf("LoadBossRows() mismatch (-want +got):\n%s", diff)
		}

		header, records, err := s.ReadMatchTable(ctx, testProject)
		if err != nil {
			t.Fatalf("ReadMatchTable() error = %v", err)
		}
		if diff := cmp.Diff(matching.TableColumns, header); diff != "" {
			t.Errorf("header mismatch (-want +got):\n%s", diff)
		}
		if len(records) != 2 || records[0]["boss_id"] != "1" {
			t.Errorf("records = %v", records)
		}
	})
}

func TestSortBossRows(t *testing.T) {
	rows := []reconstruct.BossRow{{ID: "b"}, {ID: "12"}, {ID: "a"}, {ID: "3"}}
	sortBossRows(rows)
	var got []string
	for _, r := range rows {
		got = append(got, r.ID)
	}
	if diff := cmp.Diff([]string{"3", "12", "a", "b"}, got); diff != "" {
		t.Errorf("sortBossRows() mismatch (-want +got):\n%s", diff)
	}
}

func TestNodePointsAndMatchResult(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, found, err := s.LoadNodePoints(ctx, testProject); found || err != nil {
		t.Fatalf("LoadNodePoints() = found %v, err %v, want none", found, err)
	}
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []matching.Point{{ID: 1, X: 10, Y: 20, Source: "manual"}}
	if _, err := s.SaveNodePoints(ctx, testProject, points, at); err != nil {
		t.Fatal(err)
	}
	np, found, err := s.LoadNodePoints(ctx, testProject)
	if err != nil || !found {
		t.Fatalf("LoadNodePoints() = found %v, err %v", found, err)
	}
	if np.NodeCount != 1 || !np.UpdatedAt.Equal(at) {
		t.Errorf("LoadNodePoints() = %+v", np)
	}
	if diff := cmp.Diff(points, np.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}

	r, err := s.LoadMatchResult(ctx, testProject)
	if err != nil || r != nil {
		t.Fatalf("LoadMatchResult() = %v, %v, want nil", r, err)
	}
	if err := s.SaveMatchResult(ctx, testProject, &matching.Result{RunID: "run-1", ROI: testROI}); err != nil {
		t.Fatal(err)
	}
	r, err = s.LoadMatchResult(ctx, testProject)
	if err != nil || r == nil || r.RunID != "run-1" {
		t.Errorf("LoadMatchResult() = %+v, %v", r, err)
	}
}

func writeMask(t *testing.T, s *Store, name string, fill func(x, y int) bool) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if fill(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	if err := s.SaveMask(context.Background(), testProject, segmentationsDir+"/"+name, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadRibMask(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mask, err := s.LoadRibMask(ctx, testProject)
	if err != nil || mask != nil {
		t.Fatalf("LoadRibMask() without index = %v, %v, want nil", mask, err)
	}

	writeMask(t, s, "ribs_v.png", func(x, _ int) bool { return x == 5 })
	writeMask(t, s, "ribs_h.png", func(_, y int) bool { return y == 7 })
	writeMask(t, s, "boss.png", func(x, y int) bool { return x == 15 && y == 15 })
	idx := SegmentationIndex{Segmentations: []Segmentation{
		{GroupID: "rib", Label: "Vertical", MaskFile: "ribs_v.png"},
		{GroupID: "other", Label: "Diagonal Ribs", MaskFile: "ribs_h.png"},
		{GroupID: "boss_stone", Label: "Boss", MaskFile: "boss.png"},
		{GroupID: "rib", Label: "Lost", MaskFile: "missing.png"},
	}}
	if err := s.writeJSON(ctx, testProject, segIndexFile, idx); err != nil {
		t.Fatal(err)
	}

	mask, err = s.LoadRibMask(ctx, testProject)
	if err != nil {
		t.Fatalf("LoadRibMask() error = %v", err)
	}
	if mask == nil {
		t.Fatal("LoadRibMask() = nil")
	}
	if !mask.At(5, 0) || !mask.At(0, 7) {
		t.Error("rib pixels missing from union")
	}
	if mask.At(15, 15) {
		t.Error("boss mask leaked into rib union")
	}
	if got, want := mask.Count(), 39; got != want {
		t.Errorf("Count() = %d, want %d", got, want)
	}
}

func TestLoadRibMaskAllMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	idx := SegmentationIndex{Segmentations: []Segmentation{{GroupID: "rib", MaskFile: "gone.png"}}}
	if err := s.writeJSON(ctx, testProject, segIndexFile, idx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadRibMask(ctx, testProject); err == nil {
		t.Error("LoadRibMask() error = nil, want error")
	}
}

func TestLoadRibMaskOutsideProject(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	writeMask(t, s, "ribs_v.png", func(x, _ int) bool { return x == 5 })
	outside := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range outside.Pix {
		outside.Pix[i] = 255
	}
	if err := s.SaveMask(ctx, testProject, "outside.png", outside); err != nil {
		t.Fatal(err)
	}
	idx := SegmentationIndex{Segmentations: []Segmentation{
		{GroupID: "rib", MaskFile: "ribs_v.png"},
		{GroupID: "rib", MaskFile: "../outside.png"},
		{GroupID: "rib", MaskFile: "../../../other/segmentations/ribs.png"},
	}}
	if err := s.writeJSON(ctx, testProject, segIndexFile, idx); err != nil {
		t.Fatal(err)
	}

	mask, err := s.LoadRibMask(ctx, testProject)
	if err != nil {
		t.Fatalf("LoadRibMask() error = %v", err)
	}
	if got, want := mask.Count(), 20; got != want {
		t.Errorf("Count() = %d, want %d (only ribs_v.png)", got, want)
	}

	idx.Segmentations = idx.Segmentations[1:2]
	if err := s.writeJSON(ctx, testProject, segIndexFile, idx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadRibMask(ctx, testProject); geomerr.KindOf(err) != geomerr.KindInvalidInput {
		t.Errorf("LoadRibMask() error = %v, want InvalidInput", err)
	}
}

func TestPathStaysInProject(t *testing.T) {
	s := newTestStore(t)
	for _, rel := range []string{"../x.json", "/etc/passwd", "geometry/../../x", ""} {
		if _, err := s.Path(testProject, rel); geomerr.KindOf(err) != geomerr.KindInvalidInput {
			t.Errorf("Path(%q) error = %v, want InvalidInput", rel, err)
		}
	}
	if _, err := s.Path(testProject, "geometry/roi.json"); err != nil {
		t.Errorf("Path() error = %v", err)
	}
}

func TestBayPlanArtifacts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.LoadBayPlanParams(ctx, testProject)
	if err != nil || p != nil {
		t.Fatalf("LoadBayPlanParams() = %v, %v, want nil", p, err)
	}
	want := bayplan.DefaultParams()
	want.CandidateKNN = 4
	if err := s.SaveBayPlanParams(ctx, testProject, want); err != nil {
		t.Fatal(err)
	}
	p, err = s.LoadBayPlanParams(ctx, testProject)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, *p); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	res := &bayplan.Result{RunID: "r1", NodeCount: 7}
	if err := s.SaveBayPlanResult(ctx, testProject, res); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadBayPlanResult(ctx, testProject)
	if err != nil || got == nil || got.RunID != "r1" || got.NodeCount != 7 {
		t.Errorf("LoadBayPlanResult() = %+v, %v", got, err)
	}

	path, _ := s.Path(testProject, bayPlanResultFile)
	if filepath.Base(path) != "result.json" {
		t.Errorf("result path = %s", path)
	}
}
