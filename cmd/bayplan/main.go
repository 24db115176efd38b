// Package main is a command line driver for the Geometry2D stages of a project.
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ironsheep/vault-geometry-mcp/internal/bayplan"
	"github.com/ironsheep/vault-geometry-mcp/internal/config"
	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/imaging"
	"github.com/ironsheep/vault-geometry-mcp/internal/logging"
	"github.com/ironsheep/vault-geometry-mcp/internal/pipeline"
	"github.com/ironsheep/vault-geometry-mcp/internal/project"
	"github.com/ironsheep/vault-geometry-mcp/internal/report"
	"github.com/ironsheep/vault-geometry-mcp/internal/roicorrect"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

// version is set by ldflags during build.
var version = "dev"

const (
	// Flags.
	flagDataDir    = "data-dir"
	flagDebug      = "debug"
	flagProject    = "project"
	flagROI        = "roi"
	flagImage      = "image"
	flagRatio      = "ratio"
	flagPreset     = "preset"
	flagNoCorrect  = "no-correct"
	flagMinArea    = "min-area"
	flagBackground = "background"
	flagOut        = "out"
	flagLabels     = "labels"
)

// env holds what every command needs once the global flags are parsed.
type env struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	store  *project.Store
}

func newEnv(c *cli.Context) (*env, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if c.IsSet(flagDataDir) {
		cfg.DataDir = c.String(flagDataDir)
	}
	level := "warn"
	if c.Bool(flagDebug) {
		level = "debug"
	}
	logger, err := logging.New("bayplan", level)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		logger: logger,
		store:  project.New(cfg.DataDir, imaging.NewImageCache(), logger.Named("store")),
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot encode output")
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// parseROI reads "cx,cy,w,h[,rotation_deg]".
func parseROI(s string) (geometry.ROI, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return geometry.ROI{}, errors.Wrapf(geomerr.ErrInvalidInput, "roi %q must be cx,cy,w,h[,rotation_deg]", s)
	}
	vals := make([]float64, 5)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.ROI{}, errors.Wrapf(geomerr.ErrInvalidInput, "roi component %q is not a number", p)
		}
		vals[i] = v
	}
	roi := geometry.ROI{CX: vals[0], CY: vals[1], W: vals[2], H: vals[3], RotationDeg: vals[4]}
	return roi, roi.Validate()
}

func projectFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     flagProject,
		Aliases:  []string{"p"},
		Usage:    "project id under the data directory",
		Required: true,
	}
}

func newApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "bayplan",
		Usage:   "run the vault Geometry2D pipeline on a project",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagDataDir,
				Usage: "data directory holding projects/ (overrides " + config.EnvDataDir + ")",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "prepare-roi",
				Usage:     "detect bosses, auto-correct the roi and write the stage 1 artifacts",
				UsageText: "bayplan prepare-roi --project <id> --roi cx,cy,w,h[,rot] [other options]",
				Flags: []cli.Flag{
					projectFlag(),
					&cli.StringFlag{Name: flagROI, Usage: "roi as cx,cy,w,h[,rotation_deg]", Required: true},
					&cli.StringFlag{Name: flagImage, Usage: "projection image the roi was drawn on"},
					&cli.Float64Flag{Name: flagRatio, Usage: "explicit vault ratio"},
					&cli.StringFlag{Name: flagPreset, Usage: "auto-correction preset: fast, balanced or precise"},
					&cli.BoolFlag{Name: flagNoCorrect, Usage: "skip auto-correction"},
					&cli.IntFlag{Name: flagMinArea, Usage: "smallest boss component in pixels"},
				},
				Action: prepareAction,
			},
			{
				Name:   "match",
				Usage:  "match node points against the cut-typology templates",
				Flags:  []cli.Flag{projectFlag()},
				Action: matchAction,
			},
			{
				Name:   "reconstruct",
				Usage:  "reconstruct the bay plan from bosses and rib masks",
				Flags:  []cli.Flag{projectFlag()},
				Action: reconstructAction,
			},
			{
				Name:   "state",
				Usage:  "show how far a project has progressed",
				Flags:  []cli.Flag{projectFlag()},
				Action: stateAction,
			},
			{
				Name:  "render",
				Usage: "draw the last reconstruction to a png",
				Flags: []cli.Flag{
					projectFlag(),
					&cli.StringFlag{Name: flagBackground, Usage: "image to draw over"},
					&cli.StringFlag{Name: flagOut, Usage: "output `FILE`", Value: "bay_plan.png"},
					&cli.BoolFlag{Name: flagLabels, Usage: "label bosses with their ids"},
				},
				Action: renderAction,
			},
			{
				Name:   "report",
				Usage:  "write the evidence report and print where it went",
				Flags:  []cli.Flag{projectFlag()},
				Action: reportAction,
			},
			{
				Name:      "suggest-ratios",
				Usage:     "list simple proportions close to an aspect ratio",
				UsageText: "bayplan suggest-ratios <ratio>",
				Action:    suggestRatiosAction,
			},
		},
	}
	app.Writer = out
	app.ErrWriter = out
	return app
}

func prepareAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	roi, err := parseROI(c.String(flagROI))
	if err != nil {
		return err
	}
	preset := e.cfg.DefaultPreset
	if c.IsSet(flagPreset) {
		preset = c.String(flagPreset)
	}
	correct := !c.Bool(flagNoCorrect)
	req := pipeline.PrepareRequest{
		ROI:               roi,
		ImagePath:         c.String(flagImage),
		MinBossArea:       c.Int(flagMinArea),
		AutoCorrect:       &correct,
		AutoCorrectConfig: &roicorrect.Config{Preset: preset},
	}
	if c.IsSet(flagRatio) {
		r := c.Float64(flagRatio)
		req.VaultRatio = &r
	}
	res, err := pipeline.NewROIStage(e.store, e.logger.Named("roi")).Prepare(c.Context, c.String(flagProject), req)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res)
}

func matchAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	res, err := pipeline.NewMatchingStage(e.store, e.logger.Named("matching")).Run(c.Context, c.String(flagProject), nil, nil)
	if err != nil {
		return err
	}
	best := "none"
	if res.BestVariantLabel != nil {
		best = *res.BestVariantLabel
	}
	fmt.Fprintf(c.App.Writer, "run %s: %d variants, best %s\n", res.RunID, len(res.Variants), best)
	return nil
}

func reconstructAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	res, err := bayplan.NewService(e.store, e.logger.Named("bayplan")).Run(c.Context, c.String(flagProject))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res.Summary())
}

func stateAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	st, err := bayplan.NewService(e.store, e.logger.Named("bayplan")).GetState(c.Context, c.String(flagProject))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, st)
}

func renderAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	id := c.String(flagProject)
	res, err := e.store.LoadBayPlanResult(c.Context, id)
	if err != nil {
		return err
	}
	if res == nil {
		return errors.Wrap(geomerr.ErrMissingUpstreamArtifact, "no bay plan yet, run reconstruct first")
	}
	roi, err := e.store.LoadROI(c.Context, id)
	if err != nil {
		return err
	}
	img, err := renderResult(e, res, roi, c.String(flagBackground), c.Bool(flagLabels) || e.cfg.RenderLabels)
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(img.ImageBase64)
	if err != nil {
		return errors.Wrap(err, "cannot decode rendered image")
	}
	if err := os.WriteFile(c.String(flagOut), raw, 0o644); err != nil {
		return errors.Wrap(err, "cannot write rendered image")
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%dx%d)\n", c.String(flagOut), img.Width, img.Height)
	return nil
}

func renderResult(e *env, res *bayplan.Result, roi geometry.ROI, background string, labels bool) (*imaging.EncodedImage, error) {
	edges := make([]imaging.RenderEdge, len(res.Edges))
	for i, ed := range res.Edges {
		edges[i] = imaging.RenderEdge{A: ed.A, B: ed.B, IsConstraint: ed.IsConstraint}
	}
	opts := imaging.RenderOptions{ShowLabels: labels}
	if background == "" {
		return imaging.RenderReconstruction(nil, roi, res.Nodes, edges, opts)
	}
	img, err := e.store.Images().Load(background)
	if err != nil {
		return nil, err
	}
	return imaging.RenderReconstruction(img, roi, res.Nodes, edges, opts)
}

func reportAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	gen, err := report.NewService(e.store, version, e.logger.Named("report")).Generate(c.Context, c.String(flagProject))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, gen.ReportHTMLPath)
	return printJSON(c.App.Writer, gen.Summary)
}

func suggestRatiosAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.Wrap(geomerr.ErrInvalidInput, "expected exactly one ratio")
	}
	target, err := strconv.ParseFloat(c.Args().First(), 64)
	if err != nil || !(target > 0) {
		return errors.Wrapf(geomerr.ErrInvalidInput, "ratio %q must be a positive number", c.Args().First())
	}
	for _, s := range templates.SuggestRatioPatterns(target, templates.DefaultRatioOptions()) {
		if err := printJSON(c.App.Writer, s); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	app := newApp(os.Stdout)
	app.ErrWriter = os.Stderr
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
