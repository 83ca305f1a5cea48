package extract

import (
	"regexp"
	"strings"

	"github.com/gaurav-prasanna/policypipe/core"
)

// labelPatterns match a header label at the start of a line. Group 1 is
// whatever follows the label on the same line.
var labelPatterns = map[string]*regexp.Regexp{
	"section": regexp.MustCompile(`(?i)^section\b[\s:.\-]*(.*)$`),
	"number":  regexp.MustCompile(`(?i)^number\b[\s:.\-]*(.*)$`),
	"subject": regexp.MustCompile(`(?i)^subject\b[\s:.\-]*(.*)$`),
}

// ExtractMetadata scans raw policy text for the SECTION, NUMBER and SUBJECT
// labels. The value is the rest of the label line, or the next non-blank
// line when the label stands alone. The first match wins; a missing label
// yields an empty field.
func ExtractMetadata(text string) core.Metadata {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	return core.Metadata{
		Section: findLabel(lines, labelPatterns["section"]),
		Number:  findLabel(lines, labelPatterns["number"]),
		Subject: findLabel(lines, labelPatterns["subject"]),
	}
}

func findLabel(lines []string, re *regexp.Regexp) string {
	for i, line := range lines {
		m := re.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			return v
		}
		for _, next := range lines[i+1:] {
			if v := strings.TrimSpace(next); v != "" {
				return v
			}
		}
		return ""
	}
	return ""
}
