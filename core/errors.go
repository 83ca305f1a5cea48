package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFile rejects an upload before any processing starts.
	ErrUnsupportedFile = errors.New("unsupported file type: only .docx is accepted")

	// ErrMissingField rejects a request missing a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrEmptyDocument is returned when PDF generation yields no output.
	ErrEmptyDocument = errors.New("pdf generation produced an empty document")
)

// Pipeline stage names, used for error context and metrics labels.
const (
	StageConvert   = "convert"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageRender    = "render"
	StageRasterize = "rasterize"
	StageDecorate  = "decorate"
	StageUpload    = "upload"
	StagePersist   = "persist"
	StageDiff      = "diff"
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage wraps err with the stage name. A nil err stays nil.
func Stage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
