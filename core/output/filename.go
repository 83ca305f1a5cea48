package output

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gaurav-prasanna/policypipe/core"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Sanitize strips non-word characters and turns whitespace runs into
// single underscores.
func Sanitize(s string) string {
	s = nonWordRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.Trim(s, "_")
}

// Stem returns the base name of a source file without its extension.
func Stem(sourceName string) string {
	base := filepath.Base(strings.ReplaceAll(sourceName, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PDFName returns the base name (no extension) for a policy PDF:
// {number}_{subject}, with the source file's stem standing in for a blank
// subject. Both blank yields the sanitized stem alone.
func PDFName(meta core.Metadata, sourceName string) string {
	number := Sanitize(meta.Number)
	rest := Sanitize(meta.Subject)
	if rest == "" {
		rest = Sanitize(Stem(sourceName))
	}
	var name string
	switch {
	case number == "":
		name = rest
	case rest == "":
		name = number
	default:
		name = number + "_" + rest
	}
	if name == "" {
		return "policy"
	}
	return name
}

// PDFFilename is PDFName plus the .pdf extension.
func PDFFilename(meta core.Metadata, sourceName string) string {
	return PDFName(meta, sourceName) + ".pdf"
}

// DOCXFilename names an exported standalone document.
func DOCXFilename(title string) string {
	name := Sanitize(title)
	if name == "" {
		name = "document"
	}
	return name + ".docx"
}
