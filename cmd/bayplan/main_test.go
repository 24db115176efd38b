package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"

	"github.com/ironsheep/vault-geometry-mcp/internal/bayplan"
	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/project"
)

func TestParseROI(t *testing.T) {
	roi, err := parseROI("50, 60, 80, 40, 2.5")
	if err != nil {
		t.Fatalf("parseROI: %v", err)
	}
	want := geometry.ROI{CX: 50, CY: 60, W: 80, H: 40, RotationDeg: 2.5}
	if roi != want {
		t.Errorf("got %+v, want %+v", roi, want)
	}

	for _, bad := range []string{"1,2,3", "a,b,c,d", "1,2,0,4"} {
		if _, err := parseROI(bad); err == nil {
			t.Errorf("parseROI(%q) should fail", bad)
		}
	}
	_, err = parseROI("1,2,0,4")
	if errors.Cause(err) != geomerr.ErrDegenerateRoi {
		t.Errorf("zero width: got %v", err)
	}
}

func TestSuggestRatios(t *testing.T) {
	var out bytes.Buffer
	if err := newApp(&out).Run([]string{"bayplan", "suggest-ratios", "1.5"}); err != nil {
		t.Fatalf("suggest-ratios: %v", err)
	}
	if !strings.Contains(out.String(), "3/2") {
		t.Errorf("expected 3/2 among suggestions, got %s", out.String())
	}

	if err := newApp(&out).Run([]string{"bayplan", "suggest-ratios", "-x"}); err == nil {
		t.Error("expected an error for a bad ratio")
	}
}

func TestPipelineCommands(t *testing.T) {
	dir := t.TempDir()
	store := project.New(dir, nil, zaptest.NewLogger(t).Sugar())
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for _, c := range [][2]int{{30, 30}, {70, 30}, {50, 50}, {30, 70}, {70, 70}} {
		for y := c[1] - 2; y <= c[1]+2; y++ {
			for x := c[0] - 2; x <= c[0]+2; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	if err := store.SaveMask(context.Background(), "bay", "segmentations/group_boss_stone.png", img); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		full := append([]string{"bayplan", "--data-dir", dir}, args...)
		if err := newApp(&out).Run(full); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	out := run("prepare-roi", "--project", "bay", "--roi", "50,50,80,80", "--ratio", "1", "--no-correct")
	if !strings.Contains(out, `"boss_count": 5`) {
		t.Errorf("prepare-roi output missing boss count: %s", out)
	}
	out = run("match", "-p", "bay")
	if !strings.Contains(out, "best starcut_n=4") {
		t.Errorf("match output: %s", out)
	}
	run("reconstruct", "-p", "bay")
	out = run("state", "-p", "bay")
	if !strings.Contains(out, string(bayplan.StateReconstructed)) {
		t.Errorf("state output: %s", out)
	}

	png := filepath.Join(dir, "plan.png")
	run("render", "-p", "bay", "--out", png, "--labels")
	if info, err := os.Stat(png); err != nil || info.Size() == 0 {
		t.Errorf("render did not write %s: %v", png, err)
	}

	out = run("report", "-p", "bay")
	if !strings.Contains(out, "evidence_report.html") || !strings.Contains(out, `"bestTypology": "starcut_n=4"`) {
		t.Errorf("report output: %s", out)
	}
}
