package report

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/ironsheep/vault-geometry-mcp/internal/bayplan"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/matching"
	"github.com/ironsheep/vault-geometry-mcp/internal/project"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

const testProject = "bay-1"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*project.Store, *Service) {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	store := project.New(t.TempDir(), nil, logger)
	svc := NewService(store, "1.2.3", logger)
	svc.now = func() time.Time { return fixedNow }
	return store, svc
}

// populate writes one artifact per stage.
func populate(t *testing.T, store *project.Store) {
	t.Helper()
	ctx := context.Background()
	roi := geometry.ROI{CX: 50, CY: 50, W: 80, H: 80}
	err := store.SaveROIRecord(ctx, testProject, &project.ROIRecord{
		Params:                roi,
		OriginalParams:        roi,
		CorrectionRequested:   true,
		VaultRatio:            1.5,
		RatioSource:           "world",
		VaultRatioSuggestions: templates.SuggestRatioPatterns(1.5, templates.DefaultRatioOptions()),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveBossReport(ctx, testProject, &project.BossReport{ROI: roi, BossCount: 7}); err != nil {
		t.Fatal(err)
	}
	points := []matching.Point{{ID: 1, X: 30, Y: 30}, {ID: 2, X: 70, Y: 30}, {ID: 3, X: 50, Y: 50}}
	if _, err := store.SaveNodePoints(ctx, testProject, points, fixedNow); err != nil {
		t.Fatal(err)
	}
	best := "starcut_n=4"
	params := matching.DefaultParams()
	err = store.SaveMatchResult(ctx, testProject, &matching.Result{
		ROI:              roi,
		Params:           params,
		Variants:         []matching.VariantSummary{{VariantLabel: best}, {VariantLabel: "standard_n=2"}},
		BestVariantLabel: &best,
		RanAt:            fixedNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.SaveBayPlanResult(ctx, testProject, &bayplan.Result{
		RunID:                     "run-1",
		RanAt:                     fixedNow.Add(-time.Minute),
		NodeCount:                 9,
		EdgeCount:                 16,
		EnabledConstraintFamilies: []ribs.Family{ribs.Vertical},
		FallbackApplied:           true,
		FallbackReason:            bayplan.ReasonWeakSupport,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBuildEmptyProject(t *testing.T) {
	_, svc := newService(t)
	rep, err := svc.Build(context.Background(), testProject)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if rep.ROIBayProportion.VaultRatio != nil || rep.CutTypologyMatching.BestVariantLabel != nil {
		t.Errorf("empty project reported values: %+v", rep)
	}
	if rep.BayPlanReconstruction.NodeCount != nil || rep.BayPlanReconstruction.EnabledConstraintFamilies == nil {
		t.Errorf("reconstruction section = %+v", rep.BayPlanReconstruction)
	}
	if rep.Provenance.SoftwareVersion != "1.2.3" || !rep.RanAt.Equal(fixedNow) {
		t.Errorf("provenance = %+v", rep.Provenance)
	}
	if !strings.HasSuffix(rep.Provenance.Paths.ROI, "roi.json") {
		t.Errorf("roi path = %q", rep.Provenance.Paths.ROI)
	}
}

func TestBuild(t *testing.T) {
	store, svc := newService(t)
	populate(t, store)

	rep, err := svc.Build(context.Background(), testProject)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	roi := rep.ROIBayProportion
	if roi.VaultRatio == nil || *roi.VaultRatio != 1.5 || roi.RatioSource != "world" || !roi.CorrectionRequested || roi.CorrectionApplied {
		t.Errorf("roi section = %+v", roi)
	}
	if len(roi.VaultRatioSuggestions) == 0 {
		t.Error("vault ratio suggestions missing")
	}
	if diff := cmp.Diff(NodeSection{NodeCount: 3, RawBossCount: 7, StatePath: rep.Provenance.Paths.NodePoints}, rep.NodePreparation); diff != "" {
		t.Errorf("node section (-want +got):\n%s", diff)
	}

	m := rep.CutTypologyMatching
	if m.BestVariantLabel == nil || *m.BestVariantLabel != "starcut_n=4" || m.VariantCount != 2 {
		t.Errorf("matching section = %+v", m)
	}
	if m.Tolerance == nil || *m.Tolerance != matching.DefaultParams().Tolerance {
		t.Errorf("tolerance = %v", m.Tolerance)
	}

	b := rep.BayPlanReconstruction
	if b.NodeCount == nil || *b.NodeCount != 9 || b.EdgeCount == nil || *b.EdgeCount != 16 {
		t.Errorf("reconstruction counts = %+v", b)
	}
	if !b.FallbackApplied || b.FallbackReason != bayplan.ReasonWeakSupport {
		t.Errorf("fallback = %v %q", b.FallbackApplied, b.FallbackReason)
	}
	if diff := cmp.Diff([]ribs.Family{ribs.Vertical}, b.EnabledConstraintFamilies); diff != "" {
		t.Errorf("families (-want +got):\n%s", diff)
	}
}

func TestGenerateAndState(t *testing.T) {
	ctx := context.Background()
	store, svc := newService(t)

	st, err := svc.GetState(ctx, testProject)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if st.ReportJSONPath != nil || st.ReportHTMLPath != nil || st.Summary != nil || st.LastGeneratedAt != nil {
		t.Errorf("state before generate = %+v", st)
	}

	populate(t, store)
	gen, err := svc.Generate(ctx, testProject)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gen.Summary.NodeCount != 3 || gen.Summary.EdgeCount == nil || *gen.Summary.EdgeCount != 16 {
		t.Errorf("summary = %+v", gen.Summary)
	}
	if gen.Summary.BestTypology == nil || *gen.Summary.BestTypology != "starcut_n=4" {
		t.Errorf("best typology = %v", gen.Summary.BestTypology)
	}
	for _, want := range []string{"<!doctype html>", "Cut-Typology Matching", "starcut_n=4", testProject} {
		if !strings.Contains(gen.ReportHTML, want) {
			t.Errorf("html missing %q", want)
		}
	}
	for _, p := range []string{gen.ReportJSONPath, gen.ReportHTMLPath, gen.StatePath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("artifact not written: %v", err)
		}
	}

	st, err = svc.GetState(ctx, testProject)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if st.ReportJSONPath == nil || *st.ReportJSONPath != gen.ReportJSONPath || st.ReportHTMLPath == nil {
		t.Errorf("report paths = %v %v", st.ReportJSONPath, st.ReportHTMLPath)
	}
	if st.LastGeneratedAt == nil || !st.LastGeneratedAt.Equal(fixedNow) {
		t.Errorf("last generated = %v", st.LastGeneratedAt)
	}
	if diff := cmp.Diff(&gen.Summary, st.Summary); diff != "" {
		t.Errorf("saved summary (-want +got):\n%s", diff)
	}
}

func TestRenderHTMLEscapes(t *testing.T) {
	label := "<script>alert(1)</script>"
	html, err := RenderHTML(&Report{ProjectID: "a&b", CutTypologyMatching: MatchingSection{BestVariantLabel: &label}})
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if strings.Contains(string(html), "<script>") || !strings.Contains(string(html), "a&amp;b") {
		t.Errorf("unescaped output:\n%s", html)
	}
}

func TestInvalidProject(t *testing.T) {
	_, svc := newService(t)
	if _, err := svc.GetState(context.Background(), "../x"); err == nil {
		t.Error("GetState() accepted an escaping project id")
	}
	if _, err := svc.Generate(context.Background(), ""); err == nil {
		t.Error("Generate() accepted an empty project id")
	}
}
