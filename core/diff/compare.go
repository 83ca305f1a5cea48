package diff

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gaurav-prasanna/policypipe/core"
)

// PageSource loads the ordered page renditions of one document version.
type PageSource interface {
	Pages(ctx context.Context) ([]image.Image, error)
}

// PageDiff is the result for one aligned page pair.
type PageDiff struct {
	Overlay core.DiffOverlay
	New     image.Image // the new page, for painting
}

// Highlighted returns the number of changed blocks.
func (d PageDiff) Highlighted() int {
	return len(d.Overlay.Blocks)
}

// Compare loads both versions concurrently, aligns them to the shorter
// page count and diffs every pair concurrently.
func Compare(ctx context.Context, oldSrc, newSrc PageSource, opts Options) ([]PageDiff, error) {
	var oldPages, newPages []image.Image

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pages, err := oldSrc.Pages(gctx)
		if err != nil {
			return fmt.Errorf("loading old version: %w", err)
		}
		oldPages = pages
		return nil
	})
	g.Go(func() error {
		pages, err := newSrc.Pages(gctx)
		if err != nil {
			return fmt.Errorf("loading new version: %w", err)
		}
		newPages = pages
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, core.Stage(core.StageDiff, err)
	}

	diffs, err := ComparePages(ctx, oldPages, newPages, opts)
	if err != nil {
		return nil, core.Stage(core.StageDiff, err)
	}
	return diffs, nil
}

// ComparePages diffs page lists that are already loaded.
func ComparePages(ctx context.Context, oldPages, newPages []image.Image, opts Options) ([]PageDiff, error) {
	n := min(len(oldPages), len(newPages))
	diffs := make([]PageDiff, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			diff, err := comparePair(gctx, oldPages[i], newPages[i], opts)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			diff.Overlay.PageIndex = i
			diffs[i] = diff
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return diffs, nil
}

// comparePair paints both canvases concurrently, then runs the overlay
// pass once both are ready.
func comparePair(ctx context.Context, oldPage, newPage image.Image, opts Options) (PageDiff, error) {
	if oldPage == nil || newPage == nil {
		return PageDiff{}, fmt.Errorf("missing page rendition")
	}
	width := newPage.Bounds().Dx()

	var oldC, newC *image.RGBA
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		newC = canvas(newPage, 0)
		return nil
	})
	g.Go(func() error {
		oldC = canvas(oldPage, width)
		return nil
	})
	if err := g.Wait(); err != nil {
		return PageDiff{}, err
	}
	return PageDiff{Overlay: compareCanvases(oldC, newC, opts), New: newC}, nil
}
