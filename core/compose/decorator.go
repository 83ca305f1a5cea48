package compose

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/policypipe/core"
)

// Header column widths as fractions of the content width.
const (
	brandColumn  = 0.30
	middleColumn = 0.50
	narrowColumn = 0.20
)

// DecoratorOptions tunes the vector pass.
type DecoratorOptions struct {
	Compress     bool      // deflate content streams
	JPEGQuality  int       // used when a page only carries a bitmap
	CreationDate time.Time // zero leaves gofpdf's default
}

// Decorator builds the final PDF: one page per raster page, the body image
// in the content area, header table and footer drawn as vector content.
type Decorator struct {
	layout  core.Layout
	fetcher core.Fetcher
	opts    DecoratorOptions
	log     zerolog.Logger
}

// NewDecorator creates a Decorator. fetcher loads the logo and may be nil,
// in which case the brand cell is always text-only.
func NewDecorator(layout core.Layout, fetcher core.Fetcher, opts DecoratorOptions, log zerolog.Logger) *Decorator {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 92
	}
	return &Decorator{layout: layout, fetcher: fetcher, opts: opts, log: log}
}

type logoImage struct {
	name   string
	typ    string
	width  int
	height int
}

// Decorate places pages and draws "PAGE x of N" chrome on each of them.
func (d *Decorator) Decorate(ctx context.Context, pages []Page, chrome core.Chrome) ([]byte, error) {
	if len(pages) == 0 {
		return nil, core.ErrEmptyDocument
	}

	l := d.layout
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: l.PageWidthMM, Ht: l.PageHeightMM},
	})
	pdf.SetCompression(d.opts.Compress)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(strings.TrimSpace(chrome.Meta.Number+" "+chrome.Meta.Subject), true)
	pdf.SetCreator("policypipe", true)
	if !d.opts.CreationDate.IsZero() {
		pdf.SetCreationDate(d.opts.CreationDate)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	logo := d.registerLogo(ctx, pdf, chrome.LogoURL)

	total := len(pages)
	for i, p := range pages {
		data, err := d.pageJPEG(p)
		if err != nil {
			return nil, fmt.Errorf("encoding page %d: %w", i+1, err)
		}
		name := fmt.Sprintf("page-%d", i+1)
		opt := gofpdf.ImageOptions{ImageType: "JPG"}
		pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(data))

		pdf.AddPage()
		pdf.ImageOptions(name, l.MarginMM, l.TopMarginMM(), l.ContentWidthMM(), 0, false, opt, 0, "")
		d.drawHeader(pdf, tr, chrome, logo, i+1, total)
		d.drawFooter(pdf, tr, chrome.Classification)

		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("drawing page %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	if buf.Len() == 0 {
		return nil, core.ErrEmptyDocument
	}
	return buf.Bytes(), nil
}

func (d *Decorator) pageJPEG(p Page) ([]byte, error) {
	if len(p.JPEG) > 0 {
		return p.JPEG, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, p.Bitmap, &jpeg.Options{Quality: d.opts.JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// registerLogo fetches and registers the logo. Any failure degrades to a
// text-only brand cell.
func (d *Decorator) registerLogo(ctx context.Context, pdf *gofpdf.Fpdf, location string) *logoImage {
	if location == "" || d.fetcher == nil {
		return nil
	}
	data, err := d.fetcher.Fetch(ctx, location)
	if err != nil {
		d.log.Warn().Err(err).Str("logo", location).Msg("logo unavailable, using text-only header")
		return nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		d.log.Warn().Err(err).Str("logo", location).Msg("logo is not a PNG or JPEG, using text-only header")
		return nil
	}
	typ := "PNG"
	if format == "jpeg" {
		typ = "JPG"
	}
	logo := &logoImage{name: "logo", typ: typ, width: cfg.Width, height: cfg.Height}
	pdf.RegisterImageOptionsReader(logo.name, gofpdf.ImageOptions{ImageType: typ}, bytes.NewReader(data))
	if !pdf.Ok() {
		d.log.Warn().Err(pdf.Error()).Str("logo", location).Msg("logo rejected, using text-only header")
		pdf.ClearError()
		return nil
	}
	return logo
}

func (d *Decorator) drawHeader(pdf *gofpdf.Fpdf, tr func(string) string, chrome core.Chrome, logo *logoImage, pageNr, total int) {
	l := d.layout
	x, y := l.MarginMM, l.MarginMM
	w, h := l.ContentWidthMM(), l.HeaderBandMM
	rowH := h / 2
	brandW := w * brandColumn
	middleW := w * middleColumn
	narrowW := w * narrowColumn

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.SetTextColor(0, 0, 0)

	// Brand cell spans both rows.
	pdf.Rect(x, y, brandW, h, "D")
	d.drawBrand(pdf, tr, chrome.Department, logo, x, y, brandW, h)

	mx := x + brandW
	nx := mx + middleW
	pdf.Rect(mx, y, middleW, rowH, "D")
	pdf.Rect(nx, y, narrowW, rowH, "D")
	pdf.Rect(mx, y+rowH, middleW, rowH, "D")
	pdf.Rect(nx, y+rowH, narrowW, rowH, "D")

	labelledCell(pdf, tr, "SECTION", chrome.Meta.Section, mx, y, middleW, rowH)
	labelledCell(pdf, tr, "NUMBER", chrome.Meta.Number, nx, y, narrowW, rowH)
	// SUBJECT sits under SECTION; the brand cell keeps both rows.
	labelledCell(pdf, tr, "SUBJECT", chrome.Meta.Subject, mx, y+rowH, middleW, rowH)
	labelledCell(pdf, tr, "PAGE", fmt.Sprintf("%d of %d", pageNr, total), nx, y+rowH, narrowW, rowH)
}

func (d *Decorator) drawBrand(pdf *gofpdf.Fpdf, tr func(string) string, department string, logo *logoImage, x, y, w, h float64) {
	const pad = 1.5
	textH := 0.0
	var lines []string
	if department != "" {
		pdf.SetFont("Helvetica", "B", 8)
		lines = fitLines(pdf, tr(department), w-2*pad, 3)
		textH = float64(len(lines)) * 3.5
	}

	top := y + pad
	if logo != nil && logo.width > 0 && logo.height > 0 {
		maxW := w - 2*pad
		maxH := h - 2*pad - textH - 1
		lw := maxW
		lh := lw * float64(logo.height) / float64(logo.width)
		if lh > maxH {
			lh = maxH
			lw = lh * float64(logo.width) / float64(logo.height)
		}
		if lh > 0 {
			pdf.ImageOptions(logo.name, x+(w-lw)/2, top, lw, lh, false, gofpdf.ImageOptions{ImageType: logo.typ}, 0, "")
			top += lh + 1
		}
	} else {
		// Text-only: centre the department vertically.
		top = y + (h-textH)/2
	}

	pdf.SetFont("Helvetica", "B", 8)
	for i, line := range lines {
		pdf.SetXY(x+pad, top+float64(i)*3.5)
		pdf.CellFormat(w-2*pad, 3.5, line, "", 0, "C", false, 0, "")
	}
}

// labelledCell draws a small bold label with the value under it, clipped
// to the lines that fit the cell.
func labelledCell(pdf *gofpdf.Fpdf, tr func(string) string, label, value string, x, y, w, h float64) {
	const pad = 1.5
	pdf.SetFont("Helvetica", "B", 6.5)
	pdf.SetXY(x+pad, y+pad)
	pdf.CellFormat(w-2*pad, 3, label, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	maxLines := int((h - 3 - 2*pad) / 4)
	if maxLines < 1 {
		maxLines = 1
	}
	for i, line := range fitLines(pdf, tr(value), w-2*pad, maxLines) {
		pdf.SetXY(x+pad, y+pad+3+float64(i)*4)
		pdf.CellFormat(w-2*pad, 4, line, "", 0, "L", false, 0, "")
	}
}

func fitLines(pdf *gofpdf.Fpdf, text string, w float64, max int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := pdf.SplitText(text, w)
	if len(lines) > max {
		lines = lines[:max]
	}
	return lines
}

func (d *Decorator) drawFooter(pdf *gofpdf.Fpdf, tr func(string) string, classification string) {
	l := d.layout
	y := l.PageHeightMM - l.MarginMM - l.FooterBandMM + 2
	pdf.SetLineWidth(0.3)
	pdf.Line(l.MarginMM, y, l.PageWidthMM-l.MarginMM, y)
	if classification == "" {
		return
	}
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(l.MarginMM, y+1.5)
	pdf.CellFormat(l.ContentWidthMM(), 4, tr(classification), "", 0, "C", false, 0, "")
}
