package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

func readParts(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		parts[f.Name] = string(b)
	}
	return parts
}

func TestDOCX(t *testing.T) {
	html := "<!DOCTYPE html><html><body><p>Brief body</p></body></html>"
	data, name, err := DOCX("Brief: Case <7>", html, DOCXOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if name != "Brief_Case_7.docx" {
		t.Errorf("name = %q", name)
	}

	parts := readParts(t, data)
	for _, p := range []string{"[Content_Types].xml", "_rels/.rels", "docProps/core.xml", "word/document.xml", "word/_rels/document.xml.rels", "word/afchunk.htm"} {
		if _, ok := parts[p]; !ok {
			t.Errorf("missing part %s", p)
		}
	}
	if parts["word/afchunk.htm"] != html {
		t.Errorf("chunk = %q", parts["word/afchunk.htm"])
	}
	if !strings.Contains(parts["word/document.xml"], `<w:altChunk r:id="htmlChunk"/>`) {
		t.Error("document does not reference the chunk")
	}
	if !strings.Contains(parts["docProps/core.xml"], "<dc:title>Brief: Case &lt;7&gt;</dc:title>") {
		t.Errorf("core props = %s", parts["docProps/core.xml"])
	}
}

func TestDOCX_Reproducible(t *testing.T) {
	a, _, err := DOCX("T", "<p>x</p>", DOCXOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := DOCX("T", "<p>x</p>", DOCXOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same input produced different archives")
	}
}

func TestDOCX_Empty(t *testing.T) {
	if _, _, err := DOCX("T", "  ", DOCXOptions{}); err == nil {
		t.Error("expected error for empty document")
	}
}
