package report

import (
	"bytes"
	"encoding/json"
	"html/template"

	"github.com/pkg/errors"
)

var page = template.Must(template.New("report").Funcs(template.FuncMap{"pretty": pretty}).Parse(`<!doctype html>
<html lang="en-GB">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Vault Evidence Report</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; margin: 24px; color: #0f172a; }
    h1 { margin: 0 0 8px; }
    h2 { margin-top: 24px; border-bottom: 1px solid #cbd5e1; padding-bottom: 4px; }
    .meta { color: #475569; margin-bottom: 12px; }
    pre { background: #f8fafc; padding: 12px; border: 1px solid #e2e8f0; border-radius: 6px; overflow: auto; }
    @media print { body { margin: 12mm; } }
  </style>
</head>
<body>
  <h1>Vault Bay Evidence Report</h1>
  <div class="meta">Project {{.ProjectID}}, generated {{.RanAt.Format "2006-01-02 15:04:05 MST"}}</div>

  <h2>ROI &amp; Bay Proportion</h2>
  <pre>{{pretty .ROIBayProportion}}</pre>

  <h2>Node Alignment &amp; Preparation</h2>
  <pre>{{pretty .NodePreparation}}</pre>

  <h2>Cut-Typology Matching</h2>
  <pre>{{pretty .CutTypologyMatching}}</pre>

  <h2>Bay Plan Reconstruction</h2>
  <pre>{{pretty .BayPlanReconstruction}}</pre>

  <h2>Provenance</h2>
  <pre>{{pretty .Provenance}}</pre>
</body>
</html>
`))

func pretty(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	return string(b), err
}

// RenderHTML renders rep as a standalone printable page.
func RenderHTML(rep *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, rep); err != nil {
		return nil, errors.Wrap(err, "render evidence report")
	}
	return buf.Bytes(), nil
}
