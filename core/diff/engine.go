// Package diff compares two renditions of a policy page by page and marks
// the blocks whose brightness changed. It is a pure raster comparison:
// nothing here knows about text.
package diff

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/gaurav-prasanna/policypipe/core"
)

const (
	DefaultBlockSize = 5
	DefaultThreshold = 18

	// whiteLuma is the level above which a sample is background on both
	// sides and carries no signal.
	whiteLuma = 245
)

// Options tunes the comparison.
type Options struct {
	BlockSize int     `yaml:"block_size"`
	Threshold float64 `yaml:"threshold"`
}

// DefaultOptions returns block size 5 and threshold 18.
func DefaultOptions() Options {
	return Options{BlockSize: DefaultBlockSize, Threshold: DefaultThreshold}
}

func (o Options) withDefaults() Options {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Luma is the perceptual brightness of c on a 0-255 scale.
func Luma(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
}

// ComparePage diffs one page pair. The old page is scaled to the new page's
// width first; the overlay always has the new page's size.
func ComparePage(oldPage, newPage image.Image, opts Options) core.DiffOverlay {
	newC := canvas(newPage, 0)
	oldC := canvas(oldPage, newC.Bounds().Dx())
	return compareCanvases(oldC, newC, opts)
}

func compareCanvases(oldC, newC *image.RGBA, opts Options) core.DiffOverlay {
	opts = opts.withDefaults()
	nb := newC.Bounds()
	ob := oldC.Bounds()
	overlay := core.DiffOverlay{
		WidthPx:   nb.Dx(),
		HeightPx:  nb.Dy(),
		BlockSize: opts.BlockSize,
		Blocks:    []core.Block{},
	}

	w := min(nb.Dx(), ob.Dx())
	h := min(nb.Dy(), ob.Dy())
	bs := opts.BlockSize
	for by := 0; by*bs < h; by++ {
		y0 := by * bs
		y1 := min(y0+bs, h) - 1
		for bx := 0; bx*bs < w; bx++ {
			x0 := bx * bs
			x1 := min(x0+bs, w) - 1
			if blockChanged(oldC, newC, ob.Min, nb.Min, x0, y0, x1, y1, opts.Threshold) {
				overlay.Blocks = append(overlay.Blocks, core.Block{X: bx, Y: by})
			}
		}
	}
	return overlay
}

// blockChanged samples the four corners and the centre of the block.
func blockChanged(oldC, newC *image.RGBA, oldMin, newMin image.Point, x0, y0, x1, y1 int, threshold float64) bool {
	points := [5]image.Point{
		{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1},
		{(x0 + x1) / 2, (y0 + y1) / 2},
	}
	var sum float64
	valid := 0
	for _, p := range points {
		lo := Luma(oldC.RGBAAt(oldMin.X+p.X, oldMin.Y+p.Y))
		ln := Luma(newC.RGBAAt(newMin.X+p.X, newMin.Y+p.Y))
		if lo > whiteLuma && ln > whiteLuma {
			continue
		}
		d := ln - lo
		if d < 0 {
			d = -d
		}
		sum += d
		valid++
	}
	if valid == 0 {
		return false
	}
	return sum/float64(valid) >= threshold
}

// canvas converts img to RGBA, scaling it to width (keeping the aspect
// ratio) when width is positive and differs from the image's own.
func canvas(img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	if width > 0 && b.Dx() > 0 && width != b.Dx() {
		height := int(float64(b.Dy())*float64(width)/float64(b.Dx()) + 0.5)
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		return dst
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}
