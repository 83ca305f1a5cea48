// Package compose turns pdf-mode policy HTML into the final PDF in two
// explicit stages: a Rasterizer flows the HTML into page bitmaps, and the
// Decorator places each bitmap on a vector page and draws the header table
// and footer on top.
package compose

import (
	"context"

	"github.com/gaurav-prasanna/policypipe/core"
)

// Page is one rasterized body page.
type Page struct {
	core.RenderedPage
	JPEG []byte // encoded bitmap; the decorator encodes Bitmap when empty
}

// Placeholder reports whether the entry carries no raster at all.
func (p Page) Placeholder() bool {
	return p.Bitmap == nil && len(p.JPEG) == 0
}

// Rasterization is the output of a Rasterizer.
type Rasterization struct {
	Pages []Page

	// Reported is the page count the rasterizer computed itself, or 0 when
	// it only produced the page list.
	Reported int
}

// PageCount prefers the reported count and otherwise counts entries,
// ignoring a leading placeholder entry.
func (r *Rasterization) PageCount() int {
	if r == nil {
		return 0
	}
	if r.Reported > 0 {
		return r.Reported
	}
	n := len(r.Pages)
	if n > 0 && r.Pages[0].Placeholder() {
		n--
	}
	return n
}

// Bodies returns the pages the decorator should place: placeholders
// dropped, trimmed to PageCount.
func (r *Rasterization) Bodies() []Page {
	if r == nil {
		return nil
	}
	out := make([]Page, 0, len(r.Pages))
	for _, p := range r.Pages {
		if !p.Placeholder() {
			out = append(out, p)
		}
	}
	if n := r.PageCount(); n < len(out) {
		out = out[:n]
	}
	return out
}

// Rasterizer flows pdf-mode HTML into body-sized page bitmaps. The body of
// every page is layout.ContentWidthMM × layout.ContentHeightMM.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string, layout core.Layout) (*Rasterization, error)
}
