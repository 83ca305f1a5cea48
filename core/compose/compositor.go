package compose

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/policypipe/core"
)

var errEmptyInput = errors.New("empty input")

// Result is a composed PDF.
type Result struct {
	PDF       []byte
	PageCount int
}

// Compositor runs rasterize then decorate, and checks the result.
type Compositor struct {
	layout     core.Layout
	rasterizer Rasterizer
	decorator  *Decorator
	log        zerolog.Logger
}

// New creates a Compositor.
func New(layout core.Layout, rasterizer Rasterizer, decorator *Decorator, log zerolog.Logger) *Compositor {
	return &Compositor{layout: layout, rasterizer: rasterizer, decorator: decorator, log: log}
}

// Compose turns pdf-mode HTML into the final PDF. Failures are wrapped in
// a core.StageError naming the stage that failed.
func (c *Compositor) Compose(ctx context.Context, html string, chrome core.Chrome) (*Result, error) {
	raster, err := c.rasterizer.Rasterize(ctx, html, c.layout)
	if err != nil {
		return nil, core.Stage(core.StageRasterize, err)
	}

	count := raster.PageCount()
	pages := raster.Bodies()
	if count == 0 || len(pages) == 0 {
		return nil, core.Stage(core.StageRasterize, core.ErrEmptyDocument)
	}
	if len(pages) < count {
		c.log.Warn().Int("reported", count).Int("captured", len(pages)).Msg("rasterizer captured fewer pages than it reported")
	}

	pdf, err := c.decorator.Decorate(ctx, pages, chrome)
	if err != nil {
		return nil, core.Stage(core.StageDecorate, err)
	}
	if len(pdf) == 0 {
		return nil, core.Stage(core.StageDecorate, core.ErrEmptyDocument)
	}

	got, err := PDFPageCount(pdf)
	if err != nil {
		return nil, core.Stage(core.StageDecorate, fmt.Errorf("verifying output: %w", err))
	}
	if got != len(pages) {
		return nil, core.Stage(core.StageDecorate, fmt.Errorf("composed %d pages, pdf has %d", len(pages), got))
	}

	c.log.Debug().Int("pages", got).Int("bytes", len(pdf)).Msg("composed pdf")
	return &Result{PDF: pdf, PageCount: got}, nil
}
