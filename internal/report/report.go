package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"pestma/internal/pipeline"
	"pestma/internal/store"
)

const (
	colorBackground = "#0b1020"
	colorText       = "#eceff4"
	colorTextDim    = "#9ca3af"
	colorOk         = "#34d399"
	colorDegraded   = "#f87171"

	chartWidthPx  = 720
	chartHeightPx = 320
)

// Render produces a standalone HTML report for one stored analysis: a
// confidence chart plus the three stage records in readable form.
func Render(a store.Analysis) ([]byte, error) {
	bar := confidenceChart(a.Result)
	snippet := bar.RenderSnippet()

	data := reportData{
		ID:           a.ID,
		Description:  a.Description,
		HasImage:     a.HasImage,
		CreatedAt:    a.CreatedAt.Format("2006-01-02 15:04 UTC"),
		DurationMs:   a.DurationMs,
		Degraded:     a.Result.Degraded(),
		Diagnosis:    stageView("Diagnosis", string(a.Result.Diagnosis.Status), a.Result.Diagnosis.Note, diagnosisLines(a.Result.Diagnosis.Record)),
		Validation:   stageView("Peer Review", string(a.Result.Validation.Status), a.Result.Validation.Note, validationLines(a.Result.Validation.Record)),
		Advisory:     stageView("Advisory", string(a.Result.Advisory.Status), a.Result.Advisory.Note, advisoryLines(a.Result.Advisory.Record)),
		ChartElement: template.HTML(snippet.Element),
		ChartScript:  template.HTML(snippet.Script),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("report: render: %w", err)
	}
	return buf.Bytes(), nil
}

func confidenceChart(r pipeline.PipelineResult) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      "Confidence",
			Subtitle:   "diagnoser vs. peer-reviewed",
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorText, FontSize: 16},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextDim}}),
		charts.WithYAxisOpts(opts.YAxis{
			Min:       0,
			Max:       1,
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
		}),
	)
	values := []struct {
		label    string
		value    float64
		degraded bool
	}{
		{"diagnoser", r.Diagnosis.Record.Confidence, r.Diagnosis.Degraded()},
		{"validator (adjusted)", r.Validation.Record.AdjustedConfidence, r.Validation.Degraded()},
	}
	axis := make([]string, 0, len(values))
	bars := make([]opts.BarData, 0, len(values))
	for _, v := range values {
		color := colorOk
		if v.degraded {
			color = colorDegraded
		}
		axis = append(axis, v.label)
		bars = append(bars, opts.BarData{Value: v.value, ItemStyle: &opts.ItemStyle{Color: color}})
	}
	bar.SetXAxis(axis)
	bar.AddSeries("confidence", bars)
	return bar
}

type reportData struct {
	ID           string
	Description  string
	HasImage     bool
	CreatedAt    string
	DurationMs   int64
	Degraded     bool
	Diagnosis    stageSection
	Validation   stageSection
	Advisory     stageSection
	ChartElement template.HTML
	ChartScript  template.HTML
}

type stageSection struct {
	Title  string
	Status string
	Note   string
	Lines  []reportLine
}

type reportLine struct {
	Label string
	Value string
}

func stageView(title, status, note string, lines []reportLine) stageSection {
	return stageSection{Title: title, Status: status, Note: note, Lines: lines}
}

func diagnosisLines(r pipeline.DiagnosisRecord) []reportLine {
	return []reportLine{
		{"Diagnosis", r.Diagnosis},
		{"Confidence", fmt.Sprintf("%.2f", r.Confidence)},
		{"Evidence", joinList(r.Evidence)},
	}
}

func validationLines(r pipeline.ValidationRecord) []reportLine {
	return []reportLine{
		{"Agreement", r.Agreement},
		{"Adjusted confidence", fmt.Sprintf("%.2f", r.AdjustedConfidence)},
		{"Concerns", joinList(r.Concerns)},
	}
}

func advisoryLines(r pipeline.AdvisoryReport) []reportLine {
	return []reportLine{
		{"Summary", r.Summary},
		{"Recommendations", joinList(r.Recommendations)},
		{"Monitoring plan", r.MonitoringPlan},
		{"Safety notes", r.SafetyNotes},
	}
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, "; ")
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Analysis {{.ID}}</title>
<script src="https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"></script>
<style>
body { background: #0b1020; color: #eceff4; font-family: system-ui, sans-serif; margin: 0; padding: 24px; }
h1 { font-size: 20px; }
h2 { font-size: 16px; margin-bottom: 4px; }
.meta, .note { color: #9ca3af; font-size: 13px; }
.section { background: #131a30; border-radius: 8px; padding: 16px 20px; margin: 12px 0; max-width: 760px; }
.status { font-size: 12px; padding: 2px 8px; border-radius: 10px; margin-left: 8px; }
.status.ok { background: #14532d; color: #34d399; }
.status.degraded { background: #7f1d1d; color: #f87171; }
dt { color: #9ca3af; font-size: 13px; margin-top: 8px; }
dd { margin: 2px 0 0 0; }
</style>
</head>
<body>
<h1>Plant Analysis Report</h1>
<p class="meta">{{.ID}} &middot; {{.CreatedAt}} &middot; {{.DurationMs}} ms &middot; image: {{if .HasImage}}yes{{else}}no{{end}}{{if .Degraded}} &middot; degraded run{{end}}</p>
<div class="section">
<h2>Case</h2>
<p>{{.Description}}</p>
</div>
{{template "stage" .Diagnosis}}
{{template "stage" .Validation}}
{{template "stage" .Advisory}}
<div class="section">{{.ChartElement}}</div>
{{.ChartScript}}
</body>
</html>
{{define "stage"}}
<div class="section">
<h2>{{.Title}}<span class="status {{if eq .Status "ok"}}ok{{else}}degraded{{end}}">{{.Status}}</span></h2>
{{if .Note}}<p class="note">{{.Note}}</p>{{end}}
<dl>
{{range .Lines}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>
{{end}}</dl>
</div>
{{end}}`))
