package project

import (
	"context"
	"os"
)

// ReportFiles locates the evidence report artifacts of a project.
type ReportFiles struct {
	ProjectDir string
	Dir        string
	State      string
	JSON       string
	HTML       string
	HasJSON    bool
	HasHTML    bool
}

// ReportFiles returns where the evidence report of id lives and which parts exist.
func (s *Store) ReportFiles(id string) (*ReportFiles, error) {
	dir, err := s.Dir(id)
	if err != nil {
		return nil, err
	}
	f := &ReportFiles{ProjectDir: dir}
	for rel, dst := range map[string]*string{
		reportDir:       &f.Dir,
		reportStateFile: &f.State,
		reportJSONFile:  &f.JSON,
		reportHTMLFile:  &f.HTML,
	} {
		if *dst, err = s.Path(id, rel); err != nil {
			return nil, err
		}
	}
	f.HasJSON = s.exists(id, reportJSONFile)
	f.HasHTML = s.exists(id, reportHTMLFile)
	return f, nil
}

// ArtifactPaths names the stage artifacts of a project.
type ArtifactPaths struct {
	ROI           string `json:"roi"`
	BossReport    string `json:"bossReport"`
	NodePoints    string `json:"nodePoints"`
	MatchResult   string `json:"cutTypologyResult"`
	MatchTable    string `json:"cutTypologyCsv"`
	MatchingDir   string `json:"cutTypologyDir"`
	BayPlanDir    string `json:"bayPlanDir"`
	BayPlanResult string `json:"bayPlanResult"`
}

// ArtifactPaths returns the artifact paths of id whether or not they exist yet.
func (s *Store) ArtifactPaths(id string) (*ArtifactPaths, error) {
	var p ArtifactPaths
	for rel, dst := range map[string]*string{
		roiFile:           &p.ROI,
		bossReportFile:    &p.BossReport,
		nodePointsFile:    &p.NodePoints,
		matchResultFile:   &p.MatchResult,
		matchTableFile:    &p.MatchTable,
		matchingDir:       &p.MatchingDir,
		bayPlanDir:        &p.BayPlanDir,
		bayPlanResultFile: &p.BayPlanResult,
	} {
		var err error
		if *dst, err = s.Path(id, rel); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// LoadReportState decodes the report state of id into v. found is false before the
// first report.
func (s *Store) LoadReportState(ctx context.Context, id string, v any) (found bool, err error) {
	return s.readJSON(ctx, id, reportStateFile, v)
}

// SaveReport writes the report document, its HTML rendering and then the state.
func (s *Store) SaveReport(ctx context.Context, id string, report any, html []byte, state any) error {
	if err := s.writeJSON(ctx, id, reportJSONFile, report); err != nil {
		return err
	}
	err := s.writeFile(ctx, id, reportHTMLFile, func(f *os.File) error {
		_, err := f.Write(html)
		return err
	})
	if err != nil {
		return err
	}
	return s.writeJSON(ctx, id, reportStateFile, state)
}
