package editor

import (
	"fmt"
	"html/template"
	"strings"
)

// TableTemplate names one of the insertable tables.
type TableTemplate string

const (
	TableGrid                TableTemplate = "grid"
	TableOffenderInformation TableTemplate = "offender-information"
	TableCharges             TableTemplate = "charges"
	TableSupervisionHistory  TableTemplate = "supervision-history"
	TableViolations          TableTemplate = "violations"
	TableTreatmentPrograms   TableTemplate = "treatment-programs"
	TableRecommendations     TableTemplate = "recommendations"
)

// MaxGridSize bounds each dimension of a grid table.
const MaxGridSize = 20

type namedTable struct {
	Title   string
	Headers []string
}

var namedTables = map[TableTemplate]namedTable{
	TableOffenderInformation: {"Offender Information", []string{"Name", "Date of Birth", "Case Number", "Supervision Level"}},
	TableCharges:             {"Charges", []string{"Offense", "Statute", "Offense Date", "Disposition"}},
	TableSupervisionHistory:  {"Supervision History", []string{"Start Date", "End Date", "Supervision Type", "Outcome"}},
	TableViolations:          {"Violations", []string{"Date", "Violation", "Response", "Status"}},
	TableTreatmentPrograms:   {"Treatment Programs", []string{"Program", "Provider", "Start Date", "Status"}},
	TableRecommendations:     {"Recommendations", []string{"Recommendation", "Rationale", "Responsible Party"}},
}

// Templates lists every table template in menu order.
func Templates() []TableTemplate {
	return []TableTemplate{
		TableGrid,
		TableOffenderInformation,
		TableCharges,
		TableSupervisionHistory,
		TableViolations,
		TableTreatmentPrograms,
		TableRecommendations,
	}
}

// Inline styles are written in the sanitizer's own serialization so the
// markup survives an import unchanged.
const (
	tableStyle  = "border-collapse: collapse; width: 100%"
	headerStyle = "border: 1px solid #000; padding: 4px; font-weight: bold; text-align: left"
	cellStyle   = "border: 1px solid #000; padding: 4px"
)

var tableTmpl = template.Must(template.New("table").Parse(
	`{{if .Title}}<h3>{{.Title}}</h3>{{end}}` +
		`<table style="{{.TableStyle}}"><tbody>` +
		`{{if .Headers}}<tr>{{range .Headers}}<th style="{{$.HeaderStyle}}">{{.}}</th>{{end}}</tr>{{end}}` +
		`{{range .Rows}}<tr>{{range .}}<td style="{{$.CellStyle}}"></td>{{end}}</tr>{{end}}` +
		`</tbody></table>`))

type tableData struct {
	Title       string
	Headers     []string
	Rows        [][]struct{}
	TableStyle  template.CSS
	HeaderStyle template.CSS
	CellStyle   template.CSS
}

// TableHTML returns the markup for a template. rows and cols size the grid
// template and are ignored by the named ones, which carry a header row and
// one empty body row.
func TableHTML(t TableTemplate, rows, cols int) (string, error) {
	data := tableData{
		TableStyle:  tableStyle,
		HeaderStyle: headerStyle,
		CellStyle:   cellStyle,
	}
	if t == TableGrid {
		if rows < 1 || cols < 1 || rows > MaxGridSize || cols > MaxGridSize {
			return "", fmt.Errorf("%w: grid %dx%d", ErrInvalidValue, rows, cols)
		}
		data.Rows = emptyRows(rows, cols)
	} else {
		named, ok := namedTables[t]
		if !ok {
			return "", fmt.Errorf("%w: table %q", ErrInvalidValue, t)
		}
		data.Title = named.Title
		data.Headers = named.Headers
		data.Rows = emptyRows(1, len(named.Headers))
	}

	var b strings.Builder
	if err := tableTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing table template: %w", err)
	}
	return b.String(), nil
}

func emptyRows(rows, cols int) [][]struct{} {
	out := make([][]struct{}, rows)
	for i := range out {
		out[i] = make([]struct{}, cols)
	}
	return out
}
