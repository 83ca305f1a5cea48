package diff

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/gaurav-prasanna/policypipe/core"
)

// Highlight is the translucent fill used for changed blocks.
var Highlight = color.NRGBA{R: 255, G: 40, B: 40, A: 96}

// Paint returns a copy of the new page with the overlay's blocks filled.
func Paint(newPage image.Image, overlay core.DiffOverlay) *image.RGBA {
	b := newPage.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), newPage, b.Min, xdraw.Src)

	bs := overlay.BlockSize
	if bs <= 0 {
		bs = DefaultBlockSize
	}
	fill := image.NewUniform(Highlight)
	for _, blk := range overlay.Blocks {
		r := image.Rect(blk.X*bs, blk.Y*bs, (blk.X+1)*bs, (blk.Y+1)*bs).Intersect(out.Bounds())
		xdraw.Draw(out, r, fill, image.Point{}, xdraw.Over)
	}
	return out
}
