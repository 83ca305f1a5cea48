package normalize

import (
	"strings"
	"testing"
)

func normalize(t *testing.T, in string) string {
	t.Helper()
	out, err := New().Normalize(in)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", in, err)
	}
	return out
}

func TestNormalize_SanitizesInjection(t *testing.T) {
	payloads := []string{
		`<script>alert(1)</script>`,
		`<p onclick="steal()">click</p>`,
		`<img src="x" onerror="alert(1)">`,
		`<a href="javascript:alert(1)">link</a>`,
		`<div onmouseover="x()"><script type="text/javascript">alert(2)</script>text</div>`,
		`<svg onload="alert(3)"><p>inner</p></svg>`,
	}
	bodies := []string{"", "<p>before</p>", "<ol><li>1. one</li></ol>"}
	for _, payload := range payloads {
		for _, body := range bodies {
			out := normalize(t, body+payload+"<p>after</p>")
			lower := strings.ToLower(out)
			for _, bad := range []string{"<script", "onclick", "onerror", "onload", "onmouseover", "javascript:"} {
				if strings.Contains(lower, bad) {
					t.Errorf("payload %q left %q in output: %s", payload, bad, out)
				}
			}
		}
	}
}

func TestNormalize_RemovesLegacyHeaderTable(t *testing.T) {
	in := `<table><tbody><tr><td>SECTION</td><td>NUMBER</td></tr>` +
		`<tr><td>SUBJECT</td><td>PAGE 1 of 2</td></tr></tbody></table><p>Body</p>`
	out := normalize(t, in)
	if strings.Contains(out, "<table") {
		t.Errorf("header table should be removed: %s", out)
	}
	if !strings.Contains(out, "<p>Body</p>") {
		t.Errorf("body lost: %s", out)
	}
}

func TestNormalize_KeepsTablesOutsideLeadWindow(t *testing.T) {
	filler := strings.Repeat("<p>filler text paragraph for the lead window</p>", 200)
	in := filler + `<table><tbody><tr><td>section</td><td>number</td><td>subject</td><td>page</td></tr></tbody></table>`
	out := normalize(t, in)
	if !strings.Contains(out, "<table>") {
		t.Error("table past the lead window must be kept")
	}
}

func TestNormalize_KeepsOrdinaryFirstTable(t *testing.T) {
	out := normalize(t, `<table><tbody><tr><td>Role</td><td>Duty</td></tr></tbody></table>`)
	if !strings.Contains(out, "<table>") {
		t.Errorf("non-header table removed: %s", out)
	}
}

func TestNormalize_RemovesLegacyPhrases(t *testing.T) {
	out := normalize(t, `<p>DEPARTMENT OF CORRECTIONS</p><p>Policy and Procedure</p><p>Page 1 of 3</p><p>Body text</p>`)
	if out != "<p>Body text</p>" {
		t.Errorf("got %s", out)
	}
}

func TestNormalize_StripsLeadingImageOnly(t *testing.T) {
	img := `<img src="data:image/png;base64,iVBORw0KGgo=">`
	out := normalize(t, `<p></p><p>`+img+`</p><p>Body</p>`)
	if strings.Contains(out, "<img") {
		t.Errorf("leading logo should be stripped: %s", out)
	}

	out = normalize(t, `<p>Body</p><p>`+img+`</p>`)
	if !strings.Contains(out, "<img") {
		t.Errorf("image after content must be kept: %s", out)
	}
}

func TestNormalize_CollapsesEmptyParagraphRuns(t *testing.T) {
	out := normalize(t, `<p>A</p><p></p><p>&nbsp;</p><p> </p><p>B</p><p></p><p>C</p>`)
	if n := strings.Count(out, `class="spacer"`); n != 1 {
		t.Errorf("want 1 spacer, got %d: %s", n, out)
	}
	if n := strings.Count(out, "<p"); n != 5 {
		t.Errorf("want 5 paragraphs (A, spacer, B, single empty, C), got %d: %s", n, out)
	}
}

func TestNormalize_PromotesLabelParagraphs(t *testing.T) {
	out := normalize(t, `<p><strong>POLICY STATEMENT</strong></p><p>Text</p><p>DEFINITIONS:</p><p>Definitions</p>`)
	for _, want := range []string{"<h2>Policy Statement</h2>", "<h2>Definitions</h2>", "<p>Definitions</p>"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
	if !strings.Contains(out, `<h2>Policy Statement</h2><p class="spacer">`) {
		t.Errorf("policy statement heading needs a spacer: %s", out)
	}
}

func TestNormalize_PolicyStatementSpacerNotDuplicated(t *testing.T) {
	out := normalize(t, `<h2>Policy Statement</h2><p></p><p>Text</p>`)
	if strings.Contains(out, "spacer") {
		t.Errorf("existing empty paragraph already spaces the heading: %s", out)
	}
}

func TestNormalize_Lists(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"typed stays ordered", `<ol type="a"><li>x</li><li>y</li></ol>`, `<ol type="a"><li>x</li><li>y</li></ol>`},
		{"bare ordered demoted", `<ol><li>x</li><li>y</li></ol>`, `<ul><li>x</li><li>y</li></ul>`},
		{"typed-in numbers", `<ol><li>1. x</li><li>2. y</li></ol>`, `<ol type="1"><li>x</li><li>y</li></ol>`},
		{"typed-in letters on ul", `<ul><li>a) x</li><li>b) y</li></ul>`, `<ol type="a"><li>x</li><li>y</li></ol>`},
		{"roman", `<ol><li>i. x</li><li>ii. y</li></ol>`, `<ol type="i"><li>x</li><li>y</li></ol>`},
		{"css marker", `<ol style="list-style-type: upper-roman"><li>x</li></ol>`, `<ol type="I"><li>x</li></ol>`},
		{"plain bullets", `<ul><li>x</li></ul>`, `<ul><li>x</li></ul>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize(t, tt.in); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNormalize_TypedOrderedListsNeverDemoted(t *testing.T) {
	for _, typ := range []string{"1", "a", "A", "i", "I"} {
		for _, items := range []string{"<li>x</li>", "<li>x</li><li>y</li>", "<li>plain</li><li><ol><li>nested</li></ol></li>"} {
			out := normalize(t, `<ol type="`+typ+`">`+items+`</ol>`)
			if !strings.HasPrefix(out, `<ol type="`+typ+`">`) {
				t.Errorf("type=%s %s: got %s", typ, items, out)
			}
		}
	}
}

func TestNormalize_RemovesEmptyListItems(t *testing.T) {
	out := normalize(t, `<ul><li>a</li><li> </li><li></li></ul><ul><li>&nbsp;</li></ul><p>end</p>`)
	if out != `<ul><li>a</li></ul><p>end</p>` {
		t.Errorf("got %s", out)
	}
}

func TestNormalize_MalformedInputNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"<p><b>unclosed <table><tr><td>x",
		"</li></ol><<<>>>",
		"<ol><li><ol><li></ol>",
		"plain text only",
	}
	for _, in := range inputs {
		if _, err := New().Normalize(in); err != nil {
			t.Errorf("Normalize(%q) error: %v", in, err)
		}
	}
}

func TestNormalizeReport_ListsChangedPasses(t *testing.T) {
	_, report, err := New().NormalizeReport(`<p>DEFINITIONS</p><ol><li>x</li></ol>`)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(report.Changed, ",")
	if got != "label-headings,lists" {
		t.Errorf("Changed = %s", got)
	}
}
