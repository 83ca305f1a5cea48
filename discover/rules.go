// File selection rules for discovery.
package discover

import (
	"path/filepath"
	"strings"

	"github.com/gaurav-prasanna/policypipe/core/extract"
)

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"__MACOSX":     true,
}

// IsPolicyFile reports whether name is a Word document worth converting.
// Office lock files ("~$name.docx") are not.
func IsPolicyFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") || IsHidden(base) {
		return false
	}
	return extract.IsDocx(base)
}

// IsHidden reports a dot-prefixed entry.
func IsHidden(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// SkipDir reports whether a directory should not be walked.
func SkipDir(name string) bool {
	base := filepath.Base(name)
	return IsHidden(base) || skipDirs[base]
}

// NormalizePath cleans p and resolves it to an absolute path for
// deduplication. Resolution failures keep the cleaned path.
func NormalizePath(p string) string {
	clean := filepath.Clean(p)
	if abs, err := filepath.Abs(clean); err == nil {
		clean = abs
	}
	if real, err := filepath.EvalSymlinks(clean); err == nil {
		return real
	}
	return clean
}
