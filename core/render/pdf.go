package render

import (
	"context"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/compose"
)

// Composer turns pdf-mode HTML into a finished PDF.
type Composer interface {
	Compose(ctx context.Context, html string, chrome core.Chrome) (*compose.Result, error)
}

// PDFRenderer renders the pdf-mode shell and hands it to the compositor.
type PDFRenderer struct {
	shell    *Shell
	composer Composer
	chrome   core.Chrome
}

// NewPDFRenderer creates a PDFRenderer. chrome carries the department,
// logo and classification; the metadata comes from each document.
func NewPDFRenderer(shell *Shell, composer Composer, chrome core.Chrome) *PDFRenderer {
	return &PDFRenderer{shell: shell, composer: composer, chrome: chrome}
}

// Render returns the composed PDF bytes.
func (r *PDFRenderer) Render(ctx context.Context, doc core.Document) ([]byte, error) {
	res, err := r.RenderResult(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.PDF, nil
}

// RenderResult is Render plus the verified page count.
func (r *PDFRenderer) RenderResult(ctx context.Context, doc core.Document) (*compose.Result, error) {
	chrome := ChromeFor(r.chrome, doc.Meta)
	html, err := r.shell.Render(doc.BodyHTML, chrome, core.ModePDF)
	if err != nil {
		return nil, core.Stage(core.StageRender, err)
	}
	return r.composer.Compose(ctx, html, chrome)
}

// Extension returns the file extension for PDF output.
func (r *PDFRenderer) Extension() string {
	return ".pdf"
}

// HTMLRenderer renders the preview-mode shell.
type HTMLRenderer struct {
	shell  *Shell
	chrome core.Chrome
}

// NewHTMLRenderer creates an HTMLRenderer.
func NewHTMLRenderer(shell *Shell, chrome core.Chrome) *HTMLRenderer {
	return &HTMLRenderer{shell: shell, chrome: chrome}
}

// Render returns the standalone preview document.
func (r *HTMLRenderer) Render(_ context.Context, doc core.Document) ([]byte, error) {
	html, err := r.shell.Render(doc.BodyHTML, ChromeFor(r.chrome, doc.Meta), core.ModePreview)
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

// Extension returns the file extension for preview output.
func (r *HTMLRenderer) Extension() string {
	return ".html"
}

// ChromeFor copies base and sets the per-document metadata.
func ChromeFor(base core.Chrome, meta core.Metadata) core.Chrome {
	base.Meta = meta
	return base
}
