package diff

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/gaurav-prasanna/policypipe/core/compose"
)

// Images is an in-memory page list.
type Images []image.Image

// Pages returns the images as-is.
func (s Images) Pages(context.Context) ([]image.Image, error) {
	return s, nil
}

// ImageFiles loads one PNG or JPEG file per page.
type ImageFiles []string

// Pages decodes every file in order.
func (s ImageFiles) Pages(ctx context.Context) ([]image.Image, error) {
	pages := make([]image.Image, 0, len(s))
	for _, path := range s {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := decodeFile(path)
		if err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}
	return pages, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// PDFSource reads page renditions out of a composed policy PDF: for each
// page, the largest embedded image is the rasterized body.
type PDFSource struct {
	Data []byte
}

// PDFFile reads a PDF from disk into a PDFSource.
func PDFFile(path string) (*PDFSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &PDFSource{Data: data}, nil
}

// Pages extracts one image per PDF page.
func (s *PDFSource) Pages(ctx context.Context) ([]image.Image, error) {
	pdf, err := compose.ReadPDF(s.Data)
	if err != nil {
		return nil, err
	}
	pages := make([]image.Image, 0, pdf.PageCount)
	for pageNr := 1; pageNr <= pdf.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := pageImage(pdf, pageNr)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

func pageImage(pdf *model.Context, pageNr int) (image.Image, error) {
	var best *types.StreamDict
	bestArea := 0
	for _, objNr := range pdfcpu.ImageObjNrs(pdf, pageNr) {
		entry, ok := pdf.Table[objNr]
		if !ok || entry == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		w, h := sd.IntEntry("Width"), sd.IntEntry("Height")
		if w == nil || h == nil {
			continue
		}
		if area := *w * *h; area > bestArea {
			bestArea = area
			best = &sd
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no page rendition image")
	}
	return decodeImageStream(best)
}

// decodeImageStream handles the two encodings the decorator writes: raw
// JPEG (DCTDecode) and deflated 8-bit RGB or gray samples.
func decodeImageStream(sd *types.StreamDict) (image.Image, error) {
	filters := sd.FilterPipeline
	if n := len(filters); n > 0 && filters[n-1].Name == "DCTDecode" {
		img, err := jpeg.Decode(bytes.NewReader(sd.Raw))
		if err != nil {
			return nil, fmt.Errorf("decoding jpeg stream: %w", err)
		}
		return img, nil
	}

	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("decoding image stream: %w", err)
	}
	w, h := *sd.IntEntry("Width"), *sd.IntEntry("Height")
	if bpc := sd.IntEntry("BitsPerComponent"); bpc != nil && *bpc != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", *bpc)
	}
	channels := 3
	if cs := sd.NameEntry("ColorSpace"); cs != nil && *cs == "DeviceGray" {
		channels = 1
	}
	data := sd.Content
	if len(data) < w*h*channels {
		return nil, fmt.Errorf("short image stream: %d bytes for %dx%d", len(data), w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * channels
			if channels == 1 {
				img.SetRGBA(x, y, color.RGBA{data[i], data[i], data[i], 255})
				continue
			}
			img.SetRGBA(x, y, color.RGBA{data[i], data[i+1], data[i+2], 255})
		}
	}
	return img, nil
}
