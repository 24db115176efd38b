package matching

import (
	"encoding/csv"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// TableColumns is the header of the boss match CSV.
var TableColumns = []string{
	"boss_id",
	"variant_label",
	"template_type",
	"x_cut",
	"y_cut",
	"boss_uv",
	"template_uv",
	"boss_xy",
	"template_xy",
	"x_error",
	"y_error",
	"matched",
}

const none = "None"

// TableRow is one boss in the match table, resolved to its simplest match.
// The pointer fields are nil for bosses that matched nothing.
type TableRow struct {
	BossID       int
	VariantLabel string
	TemplateType string
	XCut         string
	YCut         string
	BossUV       r2.Point
	TemplateUV   *r2.Point
	BossXY       image.Point
	TemplateXY   *image.Point
	XError       *float64
	YError       *float64
	Matched      bool
}

// BuildTable resolves each boss to its simplest match.
func BuildTable(roi geometry.ROI, perBoss []BossResult) ([]TableRow, error) {
	m, err := geometry.NewMapper(roi)
	if err != nil {
		return nil, err
	}
	rows := make([]TableRow, 0, len(perBoss))
	for _, b := range perBoss {
		row := TableRow{
			BossID:       b.ID,
			VariantLabel: none,
			TemplateType: none,
			XCut:         none,
			YCut:         none,
			BossUV:       b.UV(),
			BossXY:       geometry.RoundPoint(r2.Point{X: b.X, Y: b.Y}),
		}
		match, ok := SimplestMatch(b.Matches)
		if ok {
			row.VariantLabel = match.VariantLabel
			row.TemplateType = string(match.TemplateType)
			row.XCut, row.YCut = match.VariantLabel, match.VariantLabel
			if match.IsCrossTemplate {
				row.XCut, row.YCut = deref(match.XTemplate), deref(match.YTemplate)
			}
			tuv := r2.Point{X: match.XRatio, Y: match.YRatio}
			txy := geometry.RoundPoint(m.ToImage(tuv))
			xe, ye := match.XError, match.YError
			row.TemplateUV, row.TemplateXY = &tuv, &txy
			row.XError, row.YError = &xe, &ye
			row.Matched = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func deref(s *string) string {
	if s == nil {
		return none
	}
	return *s
}

// WriteTableCSV writes rows with a header line.
func WriteTableCSV(w io.Writer, rows []TableRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TableColumns); err != nil {
		return errors.Wrap(err, "writing match table header")
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.BossID),
			r.VariantLabel,
			r.TemplateType,
			r.XCut,
			r.YCut,
			formatUV(&r.BossUV),
			formatUV(r.TemplateUV),
			formatXY(&r.BossXY),
			formatXY(r.TemplateXY),
			formatOptFloat(r.XError),
			formatOptFloat(r.YError),
			formatBool(r.Matched),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "writing match table row for boss %d", r.BossID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing match table")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatUV(p *r2.Point) string {
	if p == nil {
		return none
	}
	return "[" + formatFloat(p.X) + ", " + formatFloat(p.Y) + "]"
}

func formatXY(p *image.Point) string {
	if p == nil {
		return none
	}
	return "[" + strconv.Itoa(p.X) + ", " + strconv.Itoa(p.Y) + "]"
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return none
	}
	return formatFloat(*v)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ReadTableRecords reads a match CSV as raw string records keyed by column.
func ReadTableRecords(r io.Reader) ([]string, []map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading match table")
	}
	if len(records) == 0 {
		return []string{}, []map[string]string{}, nil
	}
	columns := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}

// ReadTableCSV parses a match CSV back into rows. Rows whose boss_id is not an
// integer are skipped; malformed coordinate cells read as absent.
func ReadTableCSV(r io.Reader) ([]TableRow, error) {
	_, records, err := ReadTableRecords(r)
	if err != nil {
		return nil, err
	}
	rows := make([]TableRow, 0, len(records))
	for _, rec := range records {
		id, err := strconv.Atoi(strings.TrimSpace(rec["boss_id"]))
		if err != nil {
			continue
		}
		row := TableRow{
			BossID:       id,
			VariantLabel: rec["variant_label"],
			TemplateType: rec["template_type"],
			XCut:         rec["x_cut"],
			YCut:         rec["y_cut"],
			TemplateUV:   parsePair(rec["template_uv"]),
			XError:       parseOptFloat(rec["x_error"]),
			YError:       parseOptFloat(rec["y_error"]),
			Matched:      ParseBool(rec["matched"]),
		}
		if p := parsePair(rec["boss_uv"]); p != nil {
			row.BossUV = *p
		}
		if p := parsePair(rec["boss_xy"]); p != nil {
			row.BossXY = geometry.RoundPoint(*p)
		}
		if p := parsePair(rec["template_xy"]); p != nil {
			xy := geometry.RoundPoint(*p)
			row.TemplateXY = &xy
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseBool accepts the truthy spellings found in match tables.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// parsePair reads "[a, b]" (brackets or parentheses optional).
func parsePair(s string) *r2.Point {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, none) {
		return nil
	}
	s = strings.Trim(s, "[]() ")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return &r2.Point{X: x, Y: y}
}

func parseOptFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, none) {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// UVByBoss returns the template uv of matched rows and the boss uv of the others,
// keyed by boss id. The flag is true when the template position was used.
func UVByBoss(rows []TableRow) map[int]ResolvedUV {
	out := make(map[int]ResolvedUV, len(rows))
	for _, r := range rows {
		switch {
		case r.Matched && r.TemplateUV != nil:
			out[r.BossID] = ResolvedUV{UV: *r.TemplateUV, Ideal: true}
		default:
			out[r.BossID] = ResolvedUV{UV: r.BossUV}
		}
	}
	return out
}

// ResolvedUV is the position a boss takes in reconstruction.
type ResolvedUV struct {
	UV    r2.Point
	Ideal bool
}
