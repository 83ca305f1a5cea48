// Package core defines the pipeline interfaces and shared data types for
// policypipe. Each stage of the conversion pipeline is a clean, testable
// interface; the DTOs mirror the rows owned by the external data store.
package core

import (
	"context"
	"image"
	"time"
)

// Metadata holds the header fields pulled from a policy's source text.
// Any field may be empty; consumers must tolerate blanks.
type Metadata struct {
	Section string `json:"section"`
	Number  string `json:"number"`
	Subject string `json:"subject"`
}

// IsBlank reports whether neither Number nor Subject is set.
func (m Metadata) IsBlank() bool {
	return m.Number == "" && m.Subject == ""
}

// SourceDocument is the result of converting an uploaded file.
type SourceDocument struct {
	FileName string // original upload name
	RawText  string // plain text, one line per paragraph
	HTML     string // semantic, unstyled HTML
}

// Status is the publication state of a policy.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusReview    Status = "Review"
	StatusPublished Status = "Published"
	StatusArchived  Status = "Archived"
)

var statusOrder = map[Status]int{
	StatusDraft:     0,
	StatusReview:    1,
	StatusPublished: 2,
	StatusArchived:  3,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransition reports whether moving from s to next is a single forward
// step (Draft→Review→Published→Archived). There are no cycles back.
func (s Status) CanTransition(next Status) bool {
	from, ok1 := statusOrder[s]
	to, ok2 := statusOrder[next]
	return ok1 && ok2 && to == from+1
}

// PolicyDocument is a row of the policies table.
type PolicyDocument struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Section          string `json:"section"`
	Number           string `json:"number"`
	Subject          string `json:"subject"`
	Status           Status `json:"status"`
	CurrentVersionID string `json:"current_version_id,omitempty"`
}

// PolicyVersion is a row of the policy_versions table.
type PolicyVersion struct {
	ID            string     `json:"id"`
	PolicyID      string     `json:"policy_id"`
	VersionNumber int        `json:"version_number"`
	RenditionRef  string     `json:"rendition_ref"` // blob path
	FileName      string     `json:"file_name"`
	FileSizeBytes int64      `json:"file_size_bytes"`
	ChangeSummary string     `json:"change_summary,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RenderedPage is one rasterized page. It lives in memory only.
type RenderedPage struct {
	PageIndex int
	Bitmap    image.Image // nil marks a placeholder entry
	WidthPx   int
	HeightPx  int
}

// Block is a grid cell on a page, addressed by block index (not pixels).
type Block struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DiffOverlay is the sparse set of changed blocks for one page pair.
type DiffOverlay struct {
	PageIndex int     `json:"page_index"`
	WidthPx   int     `json:"width_px"`  // new page width
	HeightPx  int     `json:"height_px"` // new page height
	BlockSize int     `json:"block_size"`
	Blocks    []Block `json:"blocks"`
}

// EditableDocument is the live state of the rich-text editor.
type EditableDocument struct {
	TitleText string `json:"title"`
	BodyHTML  string `json:"body_html"`
}

// RenderMode selects how the document shell treats the header.
type RenderMode string

const (
	ModePreview RenderMode = "preview"
	ModePDF     RenderMode = "pdf"
)

// Chrome is the per-page decoration drawn around the body: the header
// table and the footer classification line.
type Chrome struct {
	Meta           Metadata
	Department     string
	LogoURL        string
	Classification string
}

// Document is what output renderers consume.
type Document struct {
	SourceName string
	Meta       Metadata
	BodyHTML   string // normalized body fragment
}

// Converter turns an uploaded file into semantic HTML plus raw text.
type Converter interface {
	Convert(fileName string, data []byte) (*SourceDocument, error)
}

// Normalizer cleans converter output into the canonical body fragment.
type Normalizer interface {
	Normalize(html string) (string, error)
}

// Renderer converts a normalized document into a final output format.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
	// Extension returns the file extension for this renderer (e.g. ".md", ".pdf").
	Extension() string
}

// Fetcher retrieves a remote or local asset.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}
