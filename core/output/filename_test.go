package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gaurav-prasanna/policypipe/core"
)

func TestPDFFilename(t *testing.T) {
	tests := []struct {
		name   string
		meta   core.Metadata
		source string
		want   string
	}{
		{"number and subject", core.Metadata{Number: "8.01.01", Subject: "Reporting Standards"}, "x.docx", "80101_Reporting_Standards.pdf"},
		{"blank metadata", core.Metadata{}, "uploads/Leave Policy (v2).docx", "Leave_Policy_v2.pdf"},
		{"subject only", core.Metadata{Subject: "Use of Force"}, "x.docx", "Use_of_Force.pdf"},
		{"number only", core.Metadata{Number: "1.2"}, "Old Draft.docx", "12_Old_Draft.pdf"},
		{"windows path", core.Metadata{}, `C:\docs\Intake Form.docx`, "Intake_Form.pdf"},
		{"nothing usable", core.Metadata{Subject: "***"}, "***.docx", "policy.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PDFFilename(tt.meta, tt.source); got != tt.want {
				t.Errorf("PDFFilename = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPDFFilename_NoPathUnsafeCharacters(t *testing.T) {
	unsafe := []string{"/", `\`, ":", "*"}
	values := []string{"a/b", `c\d`, "e:f", "g*h", "/:*\\", "  x / y  ", "8.01/02", "Policy: A*B"}
	for _, number := range values {
		for _, subject := range values {
			got := PDFFilename(core.Metadata{Number: number, Subject: subject}, "src.docx")
			for _, u := range unsafe {
				if strings.Contains(got, u) {
					t.Errorf("PDFFilename(%q, %q) = %q contains %q", number, subject, got, u)
				}
			}
		}
	}
}

func TestDOCXFilename(t *testing.T) {
	if got := DOCXFilename("Brief: State v. Doe"); got != "Brief_State_v_Doe.docx" {
		t.Errorf("got %q", got)
	}
	if got := DOCXFilename("  "); got != "document.docx" {
		t.Errorf("got %q", got)
	}
}

func TestWriter(t *testing.T) {
	out := t.TempDir()
	w, err := New(out)
	if err != nil {
		t.Fatal(err)
	}

	path, err := w.WriteNamed("80101_Reporting", []byte("pdf"), ".pdf")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(out, "80101_Reporting.pdf") {
		t.Errorf("WriteNamed path = %s", path)
	}

	root := filepath.Join("in", "policies")
	path, err = w.WriteMirrored(root, filepath.Join(root, "hr", "leave.docx"), []byte("md"), ".md")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(out, "hr", "leave.md") {
		t.Errorf("WriteMirrored path = %s", path)
	}
	if data, _ := os.ReadFile(path); string(data) != "md" {
		t.Errorf("content = %q", data)
	}
}
