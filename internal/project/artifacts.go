package project

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/vault-geometry-mcp/internal/bayplan"
	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/matching"
	"github.com/ironsheep/vault-geometry-mcp/internal/reconstruct"
	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

var _ bayplan.Store = (*Store)(nil)

// LoadROIRecord reads the ROI record.
func (s *Store) LoadROIRecord(ctx context.Context, id string) (*ROIRecord, error) {
	var rec ROIRecord
	if err := s.mustReadJSON(ctx, id, roiFile, "roi_prepare", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveROIRecord writes the ROI record.
func (s *Store) SaveROIRecord(ctx context.Context, id string, rec *ROIRecord) error {
	if err := rec.Params.Validate(); err != nil {
		return err
	}
	return s.writeJSON(ctx, id, roiFile, rec)
}

// LoadROI returns the active ROI.
func (s *Store) LoadROI(ctx context.Context, id string) (geometry.ROI, error) {
	rec, err := s.LoadROIRecord(ctx, id)
	if err != nil {
		return geometry.ROI{}, err
	}
	if err := rec.Params.Validate(); err != nil {
		return geometry.ROI{}, errors.Wrapf(err, "project %s", id)
	}
	return rec.Params, nil
}

// LoadBossReport reads the boss report.
func (s *Store) LoadBossReport(ctx context.Context, id string) (*BossReport, error) {
	var rep BossReport
	if err := s.mustReadJSON(ctx, id, bossReportFile, "roi_prepare", &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// SaveBossReport writes the boss report.
func (s *Store) SaveBossReport(ctx context.Context, id string, rep *BossReport) error {
	return s.writeJSON(ctx, id, bossReportFile, rep)
}

// BossMaskPath returns where the boss segmentation mask lives.
func (s *Store) BossMaskPath(id string) (string, error) {
	return s.Path(id, bossMaskFile)
}

// LoadBossMask reads the boss segmentation mask.
func (s *Store) LoadBossMask(ctx context.Context, id string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.BossMaskPath(id)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(p)
	if os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(geomerr.ErrMissingUpstreamArtifact, "boss mask not found")
	}
	return img, err
}

// SaveMask writes img as a PNG to rel inside the project and evicts any cached copy.
func (s *Store) SaveMask(ctx context.Context, id, rel string, img image.Image) error {
	err := s.writeFile(ctx, id, rel, func(f *os.File) error {
		return png.Encode(f, img)
	})
	if err != nil {
		return err
	}
	if p, err := s.Path(id, rel); err == nil {
		s.cache.Evict(p)
	}
	return nil
}

// LoadNodePoints reads the saved matching points. found is false when none were saved.
func (s *Store) LoadNodePoints(ctx context.Context, id string) (np *NodePoints, found bool, err error) {
	var v NodePoints
	found, err = s.readJSON(ctx, id, nodePointsFile, &v)
	if err != nil || !found {
		return nil, found, err
	}
	return &v, true, nil
}

// SaveNodePoints writes points as the matching point set.
func (s *Store) SaveNodePoints(ctx context.Context, id string, points []matching.Point, at time.Time) (*NodePoints, error) {
	np := &NodePoints{UpdatedAt: at, NodeCount: len(points), Points: points}
	if np.Points == nil {
		np.Points = []matching.Point{}
	}
	return np, s.writeJSON(ctx, id, nodePointsFile, np)
}

// LoadMatchResult reads the last matching result, nil when none exists.
func (s *Store) LoadMatchResult(ctx context.Context, id string) (*matching.Result, error) {
	var r matching.Result
	found, err := s.readJSON(ctx, id, matchResultFile, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// SaveMatchResult writes a matching result.
func (s *Store) SaveMatchResult(ctx context.Context, id string, r *matching.Result) error {
	return s.writeJSON(ctx, id, matchResultFile, r)
}

// SaveMatchTable writes the per-boss match table as CSV.
func (s *Store) SaveMatchTable(ctx context.Context, id string, rows []matching.TableRow) error {
	return s.writeFile(ctx, id, matchTableFile, func(f *os.File) error {
		return matching.WriteTableCSV(f, rows)
	})
}

// ReadMatchTable returns the raw header and records of the match table.
func (s *Store) ReadMatchTable(ctx context.Context, id string) ([]string, []map[string]string, error) {
	f, err := s.openArtifact(ctx, id, matchTableFile, "cut_typology_run")
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return matching.ReadTableRecords(f)
}

func (s *Store) openArtifact(ctx context.Context, id, rel, stage string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(id, rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(geomerr.ErrMissingUpstreamArtifact, "%s not found, run %s first", rel, stage)
	}
	return f, errors.Wrapf(err, "open %s", rel)
}

// LoadBossRows resolves every boss to its reconstruction position.
//
// Bosses matched by the last matching run take their template position. Other rows of
// the match table keep their measured uv, and bosses of the report missing from the
// table are appended with their measured uv. Rows come back ordered by numeric id.
func (s *Store) LoadBossRows(ctx context.Context, id string) ([]reconstruct.BossRow, error) {
	rep, err := s.LoadBossReport(ctx, id)
	if err != nil {
		return nil, err
	}

	var resolved map[int]matching.ResolvedUV
	if s.exists(id, matchTableFile) {
		f, err := s.openArtifact(ctx, id, matchTableFile, "cut_typology_run")
		if err != nil {
			return nil, err
		}
		rows, err := matching.ReadTableCSV(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "project %s", id)
		}
		resolved = matching.UVByBoss(rows)
	}

	out := make([]reconstruct.BossRow, 0, len(rep.Bosses)+len(resolved))
	for bossID, r := range resolved {
		src := reconstruct.BossRaw
		if r.Ideal {
			src = reconstruct.BossIdeal
		}
		out = append(out, reconstruct.BossRow{ID: strconv.Itoa(bossID), UV: r.UV, Source: src})
	}
	for _, b := range rep.Bosses {
		if _, ok := resolved[b.ID]; ok {
			continue
		}
		out = append(out, reconstruct.BossRow{
			ID:     strconv.Itoa(b.ID),
			UV:     r2.Point{X: b.CentroidUV.U, Y: b.CentroidUV.V},
			Source: reconstruct.BossRaw,
		})
	}
	sortBossRows(out)
	return out, nil
}

func sortBossRows(rows []reconstruct.BossRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, errA := strconv.Atoi(rows[i].ID)
		b, errB := strconv.Atoi(rows[j].ID)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return rows[i].ID < rows[j].ID
	})
}

// LoadSegmentationIndex reads segmentations/index.json. found is false when the
// project has no segmentations.
func (s *Store) LoadSegmentationIndex(ctx context.Context, id string) (idx *SegmentationIndex, found bool, err error) {
	var v SegmentationIndex
	found, err = s.readJSON(ctx, id, segIndexFile, &v)
	if err != nil || !found {
		return nil, found, err
	}
	return &v, true, nil
}

// LoadRibMask unions every rib segmentation mask of the project.
//
// A project without rib segmentations yields nil. Masks that fail to load are logged
// and skipped; the error is returned only when none of them loaded.
func (s *Store) LoadRibMask(ctx context.Context, id string) (*ribs.Mask, error) {
	idx, found, err := s.LoadSegmentationIndex(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	var files []string
	for _, seg := range idx.Segmentations {
		if seg.IsRib() && seg.MaskFile != "" {
			files = append(files, seg.MaskFile)
		}
	}
	if len(files) == 0 {
		return nil, nil
	}

	imgs := make([]image.Image, len(files))
	errs := make([]error, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxMaskLoadWorkers)
	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !filepath.IsLocal(filepath.FromSlash(name)) {
				errs[i] = errors.Wrapf(geomerr.ErrInvalidInput, "mask file %q leaves %s", name, segmentationsDir)
				return nil
			}
			p, err := s.Path(id, segmentationsDir+"/"+name)
			if err != nil {
				errs[i] = err
				return nil
			}
			imgs[i], errs[i] = s.cache.Load(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var loaded []image.Image
	for i, img := range imgs {
		if errs[i] == nil {
			loaded = append(loaded, img)
		}
	}
	if combined := multierr.Combine(errs...); combined != nil {
		if len(loaded) == 0 {
			return nil, errors.Wrapf(combined, "load rib masks of %s", id)
		}
		s.logger.Warnw("Skipping unreadable rib masks", "project", id, "error", combined)
	}
	mask := ribs.Union(loaded...)
	if mask == nil || mask.Empty() {
		return nil, nil
	}
	return mask, nil
}

// bayPlanState is bay_plan_reconstruction/state.json.
type bayPlanState struct {
	Params    bayplan.Params `json:"params"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// LoadBayPlanParams returns the stored bay-plan params, nil when none were stored.
func (s *Store) LoadBayPlanParams(ctx context.Context, id string) (*bayplan.Params, error) {
	var st bayPlanState
	found, err := s.readJSON(ctx, id, bayPlanStateFile, &st)
	if err != nil || !found {
		return nil, err
	}
	return &st.Params, nil
}

// SaveBayPlanParams stores bay-plan params.
func (s *Store) SaveBayPlanParams(ctx context.Context, id string, p bayplan.Params) error {
	return s.writeJSON(ctx, id, bayPlanStateFile, bayPlanState{Params: p, UpdatedAt: time.Now().UTC()})
}

// LoadBayPlanResult returns the last reconstruction, nil when none exists.
func (s *Store) LoadBayPlanResult(ctx context.Context, id string) (*bayplan.Result, error) {
	var r bayplan.Result
	found, err := s.readJSON(ctx, id, bayPlanResultFile, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// SaveBayPlanResult stores a reconstruction.
func (s *Store) SaveBayPlanResult(ctx context.Context, id string, r *bayplan.Result) error {
	return s.writeJSON(ctx, id, bayPlanResultFile, r)
}
