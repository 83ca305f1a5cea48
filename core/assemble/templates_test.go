package assemble

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/editor"
)

func sampleBrief() BriefData {
	return BriefData{
		Title:       "Pre-Sentence Brief",
		CaseNumber:  "CR-2024-0117",
		Subject:     "Supervision review",
		PreparedBy:  "J. Alvarez",
		PreparedFor: "District Court",
		Date:        "March 4, 2025",
		Sections: []BriefSection{
			{
				Heading:    "Background",
				Paragraphs: []string{"The subject has reported as directed.", "No new arrests."},
			},
			{
				Heading: "Violations",
				Table: &BriefTable{
					Headers: []string{"Date", "Violation", "Response"},
					Rows:    [][]string{{"Jan 5", "Missed check-in", "Verbal warning"}},
				},
			},
		},
	}
}

func sampleIntake() IntakeData {
	return IntakeData{
		ProjectName: "Policy Portal",
		Requester:   "Dana Reyes",
		Department:  "Community Corrections",
		Email:       "dana@example.org",
		SubmittedOn: "February 1, 2025",
		Priority:    "High",
		TargetDate:  "June 30, 2025",
		Budget:      "40000 USD",
		Summary:     "Centralize policy acknowledgements.",
		Objectives:  []string{"Publish policies", "Track attestations"},
		Stakeholders: []Stakeholder{
			{Name: "Dana Reyes", Role: "Sponsor"},
			{Name: "Lee Park", Role: "Compliance"},
		},
		Risks: "Legacy documents need conversion.",
	}
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestBrief_StandaloneShape(t *testing.T) {
	out, err := Brief(sampleBrief())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Pre-Sentence Brief</title>",
		"font-family: Calibri",
		"font-size: 13pt",
		"border: 1px solid #000",
		"width: 20%",
		"width: 30%",
		"<h2>Violations</h2>",
		"Missed check-in",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("brief missing %q", want)
		}
	}
}

func TestBrief_Deterministic(t *testing.T) {
	a, err := Brief(sampleBrief())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Brief(sampleBrief())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("same input produced different output")
	}

	c, err := IntakeForm(sampleIntake())
	if err != nil {
		t.Fatal(err)
	}
	d, err := IntakeForm(sampleIntake())
	if err != nil {
		t.Fatal(err)
	}
	if c != d {
		t.Error("intake form is not deterministic")
	}
}

func TestRequiredFields(t *testing.T) {
	if _, err := Brief(BriefData{}); !errors.Is(err, core.ErrMissingField) {
		t.Errorf("brief without title err = %v", err)
	}
	if _, err := IntakeForm(IntakeData{Requester: "x"}); !errors.Is(err, core.ErrMissingField) {
		t.Errorf("intake without project err = %v", err)
	}
	if _, err := IntakeForm(IntakeData{ProjectName: "x"}); !errors.Is(err, core.ErrMissingField) {
		t.Errorf("intake without requester err = %v", err)
	}
}

func TestIntakeForm(t *testing.T) {
	out, err := IntakeForm(sampleIntake())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<title>Project Intake Form</title>",
		"Policy Portal",
		`<ol type="1">`,
		"<li>Track attestations</li>",
		"<td style=\"border: 1px solid #000; padding: 4px\">Compliance</td>",
		"<h2>Risks</h2>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("intake form missing %q", want)
		}
	}
	if strings.Contains(out, "<h2>Notes</h2>") {
		t.Error("empty notes section rendered")
	}
}

func TestStandalone_SanitizesBody(t *testing.T) {
	out, err := Standalone("T", `<p onclick="x()">a</p><script>alert(1)</script>`)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "script") || strings.Contains(out, "onclick") {
		t.Errorf("unsafe markup survived: %s", out)
	}
	if !strings.Contains(out, "<p>a</p>") {
		t.Errorf("body lost: %s", out)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)); got != "March 4, 2025" {
		t.Errorf("FormatDate = %q", got)
	}
}

// An exported brief imported back into the editor yields the body it was
// exported from.
func TestBrief_ImportRoundTrip(t *testing.T) {
	body, err := BriefBody(sampleBrief())
	if err != nil {
		t.Fatal(err)
	}
	exported, err := Standalone("Pre-Sentence Brief", body)
	if err != nil {
		t.Fatal(err)
	}

	ed := editor.New(editor.Options{Log: zerolog.Nop()})
	defer ed.Close()
	if err := ed.Import("Pre-Sentence Brief", exported); err != nil {
		t.Fatal(err)
	}
	got := ed.Document().BodyHTML
	if squash(got) != squash(body) {
		t.Errorf("round trip changed the body:\n got %s\nwant %s", got, body)
	}
}

// The same law holds for a body edited in the editor before export.
func TestEditedBody_ImportRoundTrip(t *testing.T) {
	body, err := BriefBody(sampleBrief())
	if err != nil {
		t.Fatal(err)
	}
	src := editor.New(editor.Options{Log: zerolog.Nop()})
	defer src.Close()
	src.SetContent(core.EditableDocument{TitleText: "Brief", BodyHTML: body})
	src.Exec(editor.Command{Name: editor.CmdJustifyCenter, Block: 0})
	if err := src.InsertTable(editor.TableRecommendations, 0, 0); err != nil {
		t.Fatal(err)
	}
	src.FlushAnchors()
	anchors := src.RowAnchors()
	if len(anchors) == 0 {
		t.Fatal("no row anchors")
	}
	if err := src.AppendRow(anchors[len(anchors)-1].Index); err != nil {
		t.Fatal(err)
	}
	before := src.Document().BodyHTML

	exported, err := Standalone("Brief", before)
	if err != nil {
		t.Fatal(err)
	}
	dst := editor.New(editor.Options{Log: zerolog.Nop()})
	defer dst.Close()
	if err := dst.Import("Brief", exported); err != nil {
		t.Fatal(err)
	}
	if got := dst.Document().BodyHTML; squash(got) != squash(before) {
		t.Errorf("round trip changed the body:\n got %s\nwant %s", got, before)
	}
}

// Field text that html/template and the sanitizer escape differently
// survives the export and import cycle unchanged.
func TestBodies_ImportRoundTripEscaping(t *testing.T) {
	brief := sampleBrief()
	brief.Subject = "Curfew +2h / C++"
	brief.PreparedBy = "O'Brien & Søn"
	brief.Sections[0].Paragraphs = []string{`Réunion "café" at 5 < 6 & 7 > 3`}
	brief.Sections[1].Table.Rows = [][]string{{"Jan 5", "Missed check-in + curfew", "Écrit"}}

	intake := sampleIntake()
	intake.ProjectName = "Portal + Tracker"
	intake.Requester = "Zoë D'Arcy"
	intake.Stakeholders = []Stakeholder{{Name: "Ann & Co", Role: "QA+"}}

	tests := []struct {
		name  string
		title string
		body  func() (string, error)
		texts []string
	}{
		{"brief", brief.Title, func() (string, error) { return BriefBody(brief) },
			[]string{"Curfew +2h / C++", "Søn", "Réunion", "Missed check-in + curfew"}},
		{"intake", IntakeTitle, func() (string, error) { return IntakeBody(intake) },
			[]string{"Portal + Tracker", "Zoë", "QA+"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := tt.body()
			if err != nil {
				t.Fatal(err)
			}
			if strings.Contains(body, "&#43;") {
				t.Errorf("body keeps template escaping: %s", body)
			}
			for _, text := range tt.texts {
				if !strings.Contains(body, text) {
					t.Errorf("body missing %q", text)
				}
			}

			exported, err := Standalone(tt.title, body)
			if err != nil {
				t.Fatal(err)
			}
			ed := editor.New(editor.Options{Log: zerolog.Nop()})
			defer ed.Close()
			if err := ed.Import(tt.title, exported); err != nil {
				t.Fatal(err)
			}
			if got := ed.Document().BodyHTML; squash(got) != squash(body) {
				t.Errorf("round trip changed the body:\n got %s\nwant %s", got, body)
			}
		})
	}
}
