// Package output handles file naming and writing for policypipe outputs.
// Single-file conversions are named from the policy metadata
// (e.g. 80101_Reporting_Standards.pdf); directory conversions mirror the
// source tree under the output directory.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Writer writes rendered output to disk.
type Writer struct {
	OutputDir string
}

// New creates a Writer targeting the given output directory.
// If outputDir is empty, it defaults to the current working directory.
func New(outputDir string) (*Writer, error) {
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		outputDir = wd
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Writer{OutputDir: outputDir}, nil
}

// WriteNamed writes data as OutputDir/name+ext. name must already be a
// sanitized base name.
func (w *Writer) WriteNamed(name string, data []byte, ext string) (string, error) {
	path := filepath.Join(w.OutputDir, filepath.Base(name)+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", path, err)
	}
	return path, nil
}

// WriteMirrored writes the output for a file found under root, keeping its
// relative directory. Example: root/hr/leave.docx → OutputDir/hr/leave.pdf
func (w *Writer) WriteMirrored(root, source string, data []byte, ext string) (string, error) {
	rel, err := filepath.Rel(root, source)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(source)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	fullPath := filepath.Join(w.OutputDir, rel+ext)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", fullPath, err)
	}
	return fullPath, nil
}
