package project

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/imaging"
)

// File layout below a project directory.
const (
	geometryDir        = "2d_geometry"
	roiFile            = "2d_geometry/roi.json"
	bossReportFile     = "2d_geometry/boss_report.json"
	matchingDir        = "2d_geometry/cut_typology_matching"
	nodePointsFile     = matchingDir + "/node_points.json"
	matchResultFile    = matchingDir + "/cut_typology_result.json"
	matchTableFile     = matchingDir + "/boss_cut_typology_match.csv"
	bayPlanDir         = "2d_geometry/bay_plan_reconstruction"
	bayPlanStateFile   = bayPlanDir + "/state.json"
	bayPlanResultFile  = bayPlanDir + "/result.json"
	reportDir          = "2d_geometry/evidence_report"
	reportStateFile    = reportDir + "/state.json"
	reportJSONFile     = reportDir + "/evidence_report.json"
	reportHTMLFile     = reportDir + "/evidence_report.html"
	segmentationsDir   = "segmentations"
	segIndexFile       = segmentationsDir + "/index.json"
	bossMaskFile       = segmentationsDir + "/group_boss_stone.png"
	maxMaskLoadWorkers = 4
)

// Store reads and writes project artifacts below a data directory.
type Store struct {
	root   string
	cache  *imaging.ImageCache
	logger *zap.SugaredLogger
}

// New returns a Store rooted at dataDir. A nil cache gets a private one and a nil
// logger discards output.
func New(dataDir string, cache *imaging.ImageCache, logger *zap.SugaredLogger) *Store {
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{root: dataDir, cache: cache, logger: logger}
}

// Images returns the cache the store loads rasters through.
func (s *Store) Images() *imaging.ImageCache { return s.cache }

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

// Dir returns the directory of project id. Ids must be a single path element.
func (s *Store) Dir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", errors.Wrapf(geomerr.ErrInvalidInput, "invalid project id %q", id)
	}
	return filepath.Join(s.root, "projects", id), nil
}

// Path returns the absolute path of rel inside project id. rel must stay inside the
// project directory.
func (s *Store) Path(id, rel string) (string, error) {
	dir, err := s.Dir(id)
	if err != nil {
		return "", err
	}
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return "", errors.Wrapf(geomerr.ErrInvalidInput, "path %q leaves project %s", rel, id)
	}
	return filepath.Join(dir, rel), nil
}

// Create makes the directory skeleton of project id.
func (s *Store) Create(id string) error {
	for _, rel := range []string{geometryDir, matchingDir, bayPlanDir, segmentationsDir} {
		p, err := s.Path(id, rel)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", rel)
		}
	}
	return nil
}

// List returns the ids of every project directory.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "projects"))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	ids := []string{}
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// readJSON decodes the artifact rel of project id into v. found is false when the
// file does not exist.
func (s *Store) readJSON(ctx context.Context, id, rel string, v any) (found bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.Path(id, rel)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read %s", rel)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, errors.Wrapf(err, "decode %s", rel)
	}
	return true, nil
}

// mustReadJSON is readJSON with a missing file reported as a missing upstream
// artifact produced by stage.
func (s *Store) mustReadJSON(ctx context.Context, id, rel, stage string, v any) error {
	found, err := s.readJSON(ctx, id, rel, v)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(geomerr.ErrMissingUpstreamArtifact, "%s not found, run %s first", rel, stage)
	}
	return nil
}

// writeJSON encodes v into the artifact rel of project id through a temporary file.
func (s *Store) writeJSON(ctx context.Context, id, rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", rel)
	}
	return s.writeFile(ctx, id, rel, func(f *os.File) error {
		_, err := f.Write(append(data, '\n'))
		return err
	})
}

func (s *Store) writeFile(ctx context.Context, id, rel string, fill func(*os.File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Path(id, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", rel)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*")
	if err != nil {
		return errors.Wrapf(err, "write %s", rel)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", rel)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "write %s", rel)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), p), "write %s", rel)
}

func (s *Store) exists(id, rel string) bool {
	p, err := s.Path(id, rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}
