package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/vault-geometry-mcp/internal/detection"
	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/imaging"
	"github.com/ironsheep/vault-geometry-mcp/internal/project"
	"github.com/ironsheep/vault-geometry-mcp/internal/roicorrect"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

// Detection modes recorded in the boss report.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Where the recorded vault ratio came from.
const (
	RatioExplicit = "explicit"
	RatioWorld    = "world"
	RatioImage    = "image"
	RatioROI      = "roi"
)

// SkipTooFewBosses is recorded when auto-correction was requested but could not run.
const SkipTooFewBosses = "not enough boss points to search"

// PrepareRequest configures ROIStage.Prepare.
type PrepareRequest struct {
	ROI geometry.ROI `json:"roi"`

	// ImagePath is the projection image the ROI was drawn on. Unless VaultRatio is
	// given the vault ratio is the world aspect from the image's projection metadata,
	// or the image aspect when there is none or IgnoreWorldScale is set.
	ImagePath        string   `json:"imagePath,omitempty"`
	VaultRatio       *float64 `json:"vaultRatio,omitempty"`
	IgnoreWorldScale bool     `json:"ignoreWorldScale,omitempty"`

	// ManualBosses replaces detection from the boss mask when non-empty.
	ManualBosses []project.XY `json:"manualBosses,omitempty"`
	MinBossArea  int          `json:"minBossArea,omitempty"`

	// AutoCorrect defaults to true.
	AutoCorrect       *bool              `json:"autoCorrect,omitempty"`
	AutoCorrectConfig *roicorrect.Config `json:"autoCorrectConfig,omitempty"`
}

// PrepareResult is what Prepare persisted.
type PrepareResult struct {
	ROI        *project.ROIRecord  `json:"roi"`
	BossReport *project.BossReport `json:"bossReport"`
}

// ROIStage prepares the ROI record and the boss report of a project.
type ROIStage struct {
	store  *project.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewROIStage returns an ROIStage backed by store.
func NewROIStage(store *project.Store, logger *zap.SugaredLogger) *ROIStage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ROIStage{store: store, logger: logger, now: time.Now}
}

// Prepare locates the bosses, optionally corrects the ROI against them and writes
// roi.json and boss_report.json. When the correction is applied the boss report is
// rebuilt under the corrected ROI.
func (s *ROIStage) Prepare(ctx context.Context, id string, req PrepareRequest) (*PrepareResult, error) {
	if err := req.ROI.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(id); err != nil {
		return nil, err
	}

	points, mode, maskPath, err := s.locateBosses(ctx, id, req)
	if err != nil {
		return nil, err
	}
	ratio, source, err := s.vaultRatio(id, req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &project.ROIRecord{
		Params:                req.ROI,
		OriginalParams:        req.ROI,
		CorrectionRequested:   req.AutoCorrect == nil || *req.AutoCorrect,
		VaultRatio:            ratio,
		RatioSource:           source,
		VaultRatioSuggestions: templates.SuggestRatioPatterns(ratio, templates.DefaultRatioOptions()),
		ImagePath:             req.ImagePath,
		UpdatedAt:             now,
	}

	if rec.CorrectionRequested {
		xy := make([]r2.Point, len(points))
		for i, p := range points {
			xy[i] = r2.Point{X: p.X, Y: p.Y}
		}
		corr, err := roicorrect.AutoCorrect(ctx, req.ROI, xy, roicorrect.ResolveOptions(req.AutoCorrectConfig))
		switch {
		case errors.Is(err, geomerr.ErrInsufficientBosses):
			rec.CorrectionSkipReason = SkipTooFewBosses
		case err != nil:
			return nil, err
		default:
			rec.CorrectedParams = &corr.ROI
			rec.AutoCorrection = &corr.Meta
			rec.CorrectionApplied = corr.Meta.Improved
			if corr.Meta.Improved {
				rec.Params = corr.ROI
			}
			s.logger.Infow("ROI auto-correction finished",
				"project", id, "improved", corr.Meta.Improved,
				"gain", corr.Meta.ScoreGain, "evaluations", corr.Meta.Evaluations)
		}
	}

	report, err := buildBossReport(rec.Params, points, mode, maskPath, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveROIRecord(ctx, id, rec); err != nil {
		return nil, err
	}
	if err := s.store.SaveBossReport(ctx, id, report); err != nil {
		return nil, err
	}
	s.logger.Infow("Prepared ROI", "project", id, "mode", mode,
		"bosses", report.BossCount, "out_of_bounds", report.OutOfBoundsCount)
	return &PrepareResult{ROI: rec, BossReport: report}, nil
}

type located struct {
	X, Y float64
	Area int
}

func (s *ROIStage) locateBosses(ctx context.Context, id string, req PrepareRequest) ([]located, string, string, error) {
	if len(req.ManualBosses) > 0 {
		out := make([]located, len(req.ManualBosses))
		for i, p := range req.ManualBosses {
			out[i] = located{X: p.X, Y: p.Y}
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Y != out[j].Y {
				return out[i].Y < out[j].Y
			}
			return out[i].X < out[j].X
		})
		return out, ModeManual, "", nil
	}

	mask, err := s.store.LoadBossMask(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	maskPath, _ := s.store.BossMaskPath(id)
	res := detection.DetectBosses(mask, req.MinBossArea)
	out := make([]located, len(res.Bosses))
	for i, b := range res.Bosses {
		out[i] = located{X: b.X, Y: b.Y, Area: b.Area}
	}
	if res.Discarded > 0 {
		s.logger.Debugw("Discarded small boss components", "project", id, "count", res.Discarded)
	}
	return out, ModeAuto, maskPath, nil
}

func (s *ROIStage) vaultRatio(id string, req PrepareRequest) (float64, string, error) {
	switch {
	case req.VaultRatio != nil:
		if !(*req.VaultRatio > 0) {
			return 0, "", errors.Wrapf(geomerr.ErrInvalidInput, "vault ratio must be positive, got %g", *req.VaultRatio)
		}
		return *req.VaultRatio, RatioExplicit, nil
	case req.ImagePath != "":
		info, err := imaging.LoadImageInfo(s.store.Images(), req.ImagePath)
		if err != nil {
			return 0, "", errors.Wrap(err, "projection image")
		}
		ratio := float64(info.Width) / float64(info.Height)
		if req.IgnoreWorldScale {
			return ratio, RatioImage, nil
		}
		ws, err := imaging.LoadWorldScale(s.store.Images(), req.ImagePath)
		if err != nil {
			s.logger.Warnw("Ignoring projection metadata", "project", id, "image", req.ImagePath, "error", err)
			return ratio, RatioImage, nil
		}
		if ws == nil {
			return ratio, RatioImage, nil
		}
		s.logger.Debugw("Vault ratio from world extents", "project", id,
			"image_ratio", ratio, "anisotropy", ws.Anisotropy)
		return ratio * ws.Anisotropy, RatioWorld, nil
	}
	return req.ROI.W / req.ROI.H, RatioROI, nil
}

// buildBossReport numbers points from 1 in the given order and maps them into roi.
func buildBossReport(roi geometry.ROI, points []located, mode, maskPath string, at time.Time) (*project.BossReport, error) {
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, err
	}
	rep := &project.BossReport{
		CreatedAt:     at,
		ROI:           roi,
		BossMaskPath:  maskPath,
		DetectionMode: mode,
		BossIDs:       make([]int, 0, len(points)),
		Bosses:        make([]project.BossEntry, 0, len(points)),
	}
	for i, p := range points {
		id := i + 1
		uv := m.ToUnit(r2.Point{X: p.X, Y: p.Y})
		oob := !geometry.InsideUnit(uv, 0)
		if oob {
			rep.OutOfBoundsCount++
		}
		rep.BossIDs = append(rep.BossIDs, id)
		rep.Bosses = append(rep.Bosses, project.BossEntry{
			ID:          id,
			ComponentID: id,
			Area:        p.Area,
			CentroidXY:  project.XY{X: p.X, Y: p.Y},
			CentroidUV:  project.UV{U: uv.X, V: uv.Y},
			OutOfBounds: oob,
		})
	}
	rep.BossCount = len(rep.Bosses)
	return rep, nil
}
