// Package assemble builds standalone HTML documents from structured form
// data: the project intake form and the brief. Output is deterministic;
// dates are strings supplied by the caller.
//
// The standalone shape (inline style block, 13pt Calibri, 1px solid #000
// borders, fixed-percentage header columns) is what the editor's import
// path expects when it reduces a document back to its body fragment.
package assemble

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/editor"
)

// DateLayout is the format FormatDate uses.
const DateLayout = "January 2, 2006"

// FormatDate renders t for a date field.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Stakeholder is one row of the intake stakeholder table.
type Stakeholder struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// IntakeData is the project intake form.
type IntakeData struct {
	ProjectName  string        `json:"project_name"`
	Requester    string        `json:"requester"`
	Department   string        `json:"department"`
	Email        string        `json:"email"`
	SubmittedOn  string        `json:"submitted_on"`
	Priority     string        `json:"priority"`
	TargetDate   string        `json:"target_date"`
	Budget       string        `json:"budget"`
	Summary      string        `json:"summary"`
	Objectives   []string      `json:"objectives"`
	Stakeholders []Stakeholder `json:"stakeholders"`
	Risks        string        `json:"risks"`
	Notes        string        `json:"notes"`
}

// BriefTable is a table inside a brief section.
type BriefTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// BriefSection is one headed section of a brief.
type BriefSection struct {
	Heading    string      `json:"heading"`
	Paragraphs []string    `json:"paragraphs"`
	Table      *BriefTable `json:"table,omitempty"`
}

// BriefData is the brief metadata and its sections.
type BriefData struct {
	Title       string         `json:"title"`
	CaseNumber  string         `json:"case_number"`
	Subject     string         `json:"subject"`
	PreparedBy  string         `json:"prepared_by"`
	PreparedFor string         `json:"prepared_for"`
	Date        string         `json:"date"`
	Sections    []BriefSection `json:"sections"`
}

var (
	standaloneTmpl = template.Must(template.New("standalone").Parse(standaloneHTML))
	briefTmpl      = template.Must(template.New("brief").Parse(briefHTML))
	intakeTmpl     = template.Must(template.New("intake").Parse(intakeHTML))

	sanitizer = editor.Policy()
)

// Standalone wraps a body fragment in a self-contained document. The body
// is sanitized with the editor's allow-list.
func Standalone(title, body string) (string, error) {
	data := struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		Body:  template.HTML(sanitizer.Sanitize(body)),
	}
	var b strings.Builder
	if err := standaloneTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing standalone template: %w", err)
	}
	return b.String(), nil
}

// canonical re-serializes a rendered fragment through the editor's
// allow-list. html/template escapes text more eagerly than the sanitizer
// (`+` becomes `&#43;`), and an imported body must equal the exported one.
func canonical(fragment string) string {
	return sanitizer.Sanitize(fragment)
}

// BriefBody renders the brief's body fragment.
func BriefBody(data BriefData) (string, error) {
	if strings.TrimSpace(data.Title) == "" {
		return "", fmt.Errorf("%w: title", core.ErrMissingField)
	}
	var b strings.Builder
	if err := briefTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing brief template: %w", err)
	}
	return canonical(b.String()), nil
}

// Brief renders the complete standalone brief.
func Brief(data BriefData) (string, error) {
	body, err := BriefBody(data)
	if err != nil {
		return "", err
	}
	return Standalone(data.Title, body)
}

// IntakeTitle is the document title of every intake form.
const IntakeTitle = "Project Intake Form"

// IntakeBody renders the intake form's body fragment.
func IntakeBody(data IntakeData) (string, error) {
	switch {
	case strings.TrimSpace(data.ProjectName) == "":
		return "", fmt.Errorf("%w: project name", core.ErrMissingField)
	case strings.TrimSpace(data.Requester) == "":
		return "", fmt.Errorf("%w: requester", core.ErrMissingField)
	}
	var b strings.Builder
	if err := intakeTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing intake template: %w", err)
	}
	return canonical(b.String()), nil
}

// IntakeForm renders the complete standalone intake form.
func IntakeForm(data IntakeData) (string, error) {
	body, err := IntakeBody(data)
	if err != nil {
		return "", err
	}
	return Standalone(IntakeTitle, body)
}

const standaloneHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Calibri, Carlito, sans-serif; font-size: 13pt; line-height: 1.4; color: #000; margin: 20mm; }
h1 { font-size: 18pt; margin: 0 0 10pt 0; }
h2 { font-size: 15pt; margin: 14pt 0 6pt 0; }
h3 { font-size: 13pt; margin: 12pt 0 4pt 0; }
p { margin: 0 0 8pt 0; }
table { border-collapse: collapse; width: 100%; margin: 0 0 10pt 0; }
th, td { border: 1px solid #000; padding: 4px; vertical-align: top; text-align: left; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`

// Header tables use fixed 20/30/20/30 columns; label cells are bold.
const briefHTML = `<h1>{{.Title}}</h1>
<table style="border-collapse: collapse; width: 100%"><tbody>
<tr><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Case Number</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.CaseNumber}}</td><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Date</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.Date}}</td></tr>
<tr><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Prepared By</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.PreparedBy}}</td><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Prepared For</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.PreparedFor}}</td></tr>
<tr><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Subject</td><td colspan="3" style="border: 1px solid #000; padding: 4px">{{.Subject}}</td></tr>
</tbody></table>
{{range .Sections}}<h2>{{.Heading}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{with .Table}}<table style="border-collapse: collapse; width: 100%"><tbody>
<tr>{{range .Headers}}<th style="border: 1px solid #000; padding: 4px; font-weight: bold; text-align: left">{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td style="border: 1px solid #000; padding: 4px">{{.}}</td>{{end}}</tr>
{{end}}</tbody></table>
{{end}}{{end}}`

const intakeHTML = `<h1>Project Intake Form</h1>
<table style="border-collapse: collapse; width: 100%"><tbody>
<tr><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Project</td><td colspan="3" style="border: 1px solid #000; padding: 4px">{{.ProjectName}}</td></tr>
<tr><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Requester</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.Requester}}</td><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Department</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.Department}}</td></tr>
<tr><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Email</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.Email}}</td><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Submitted</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.SubmittedOn}}</td></tr>
<tr><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Priority</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.Priority}}</td><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Target Date</td><td style="border: 1px solid #000; padding: 4px; width: 30%">{{.TargetDate}}</td></tr>
<tr><td style="border: 1px solid #000; padding: 4px; width: 20%; font-weight: bold">Budget</td><td colspan="3" style="border: 1px solid #000; padding: 4px">{{.Budget}}</td></tr>
</tbody></table>
<h2>Summary</h2>
<p>{{.Summary}}</p>
{{if .Objectives}}<h2>Objectives</h2>
<ol type="1">
{{range .Objectives}}<li>{{.}}</li>
{{end}}</ol>
{{end}}{{if .Stakeholders}}<h2>Stakeholders</h2>
<table style="border-collapse: collapse; width: 100%"><tbody>
<tr><th style="border: 1px solid #000; padding: 4px; font-weight: bold; text-align: left">Name</th><th style="border: 1px solid #000; padding: 4px; font-weight: bold; text-align: left">Role</th></tr>
{{range .Stakeholders}}<tr><td style="border: 1px solid #000; padding: 4px">{{.Name}}</td><td style="border: 1px solid #000; padding: 4px">{{.Role}}</td></tr>
{{end}}</tbody></table>
{{end}}{{if .Risks}}<h2>Risks</h2>
<p>{{.Risks}}</p>
{{end}}{{if .Notes}}<h2>Notes</h2>
<p>{{.Notes}}</p>
{{end}}`
