// Package render wraps normalized policy bodies into output formats.
// The Shell produces the paginated HTML document (preview or pdf mode);
// the renderers in this package turn a core.Document into PDF, HTML,
// Markdown, or outline JSON bytes.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/policypipe/core"
)

// Shell wraps a body fragment in the fixed-width document shell.
type Shell struct {
	layout core.Layout
	tmpl   *template.Template
}

// NewShell creates a Shell for the given page geometry.
func NewShell(layout core.Layout) *Shell {
	return &Shell{
		layout: layout,
		tmpl:   template.Must(template.New("shell").Parse(shellTemplate)),
	}
}

// Layout returns the geometry the shell was built for.
func (s *Shell) Layout() core.Layout {
	return s.layout
}

type geometry struct {
	PageWidth    float64
	PageHeight   float64
	ContentWidth float64
	Margin       float64
	Top          float64
	Bottom       float64
}

type shellData struct {
	Preview bool
	Title   string
	Chrome  core.Chrome
	Logo    template.URL
	Geo     geometry
	Body    template.HTML
}

// Render returns a complete standalone HTML document. In preview mode the
// header table sits at the top of the flow; in pdf mode it is left out and
// its band is reserved as margin for the decorator.
func (s *Shell) Render(body string, chrome core.Chrome, mode core.RenderMode) (string, error) {
	if mode != core.ModePreview && mode != core.ModePDF {
		return "", fmt.Errorf("unknown render mode %q", mode)
	}
	data := shellData{
		Preview: mode == core.ModePreview,
		Title:   strings.TrimSpace(chrome.Meta.Number + " " + chrome.Meta.Subject),
		Chrome:  chrome,
		Logo:    safeLogo(chrome.LogoURL),
		Geo: geometry{
			PageWidth:    s.layout.PageWidthMM,
			PageHeight:   s.layout.PageHeightMM,
			ContentWidth: s.layout.ContentWidthMM(),
			Margin:       s.layout.MarginMM,
			Top:          s.layout.TopMarginMM(),
			Bottom:       s.layout.BottomMarginMM(),
		},
		// The body has already been through the normalizer's sanitizer.
		Body: template.HTML(markLists(body)),
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing shell template: %w", err)
	}
	return buf.String(), nil
}

var markerNames = map[string]string{
	"1": "decimal",
	"a": "lower-alpha",
	"A": "upper-alpha",
	"i": "lower-roman",
	"I": "upper-roman",
}

// markLists copies each ordered list's type into data-marker, where the
// CSS can match it case-sensitively, and turns start into a counter reset.
func markLists(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	changed := false
	doc.Find("body ol").Each(func(_ int, ol *goquery.Selection) {
		if t, ok := ol.Attr("type"); ok {
			if name, ok := markerNames[t]; ok {
				ol.SetAttr("data-marker", name)
				changed = true
			}
		}
		if start, ok := ol.Attr("start"); ok {
			if n, err := strconv.Atoi(start); err == nil {
				reset := fmt.Sprintf("counter-reset: item %d", n-1)
				if style, ok := ol.Attr("style"); ok && strings.TrimSpace(style) != "" {
					reset = strings.TrimRight(style, "; ") + "; " + reset
				}
				ol.SetAttr("style", reset)
				changed = true
			}
		}
	})
	if !changed {
		return body
	}
	out, err := doc.Find("body").Html()
	if err != nil {
		return body
	}
	return out
}

// safeLogo only lets http(s) and inline image URLs through.
func safeLogo(u string) template.URL {
	switch {
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "data:image/"):
		return template.URL(u)
	}
	return ""
}

const shellTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
{{- if .Preview}}
html { background: #e9e9e9; }
body { margin: 0; padding: 16px 0; }
.doc { width: {{printf "%.2f" .Geo.PageWidth}}mm; margin: 0 auto; background: #fff; box-sizing: border-box; padding: {{printf "%.2f" .Geo.Margin}}mm; }
.doc-header { position: sticky; top: 0; z-index: 1; background: #fff; padding-bottom: 4mm; }
{{- else}}
@page { size: {{printf "%.2f" .Geo.PageWidth}}mm {{printf "%.2f" .Geo.PageHeight}}mm; margin: {{printf "%.2f" .Geo.Top}}mm {{printf "%.2f" .Geo.Margin}}mm {{printf "%.2f" .Geo.Bottom}}mm {{printf "%.2f" .Geo.Margin}}mm; }
html, body { margin: 0; padding: 0; background: #fff; }
.doc { width: {{printf "%.2f" .Geo.ContentWidth}}mm; }
{{- end}}
.doc { font-family: Calibri, Carlito, Arial, sans-serif; font-size: 11pt; line-height: 1.35; color: #000; }
.doc-body { width: {{printf "%.2f" .Geo.ContentWidth}}mm; }
.doc-body p { margin: 0 0 6pt 0; }
.doc-body p.spacer { margin: 0; }
.doc-body h1, .doc-body h2, .doc-body h3, .doc-body h4, .doc-body h5, .doc-body h6 { margin: 10pt 0 4pt 0; break-after: avoid; page-break-after: avoid; break-inside: avoid; page-break-inside: avoid; }
.doc-body table { border-collapse: collapse; width: 100%; break-inside: avoid; page-break-inside: avoid; }
.doc-body tr, .doc-body li, .doc-body img { break-inside: avoid; page-break-inside: avoid; }
.doc-body ol, .doc-body ul { break-inside: auto; page-break-inside: auto; margin: 0 0 6pt 0; padding-left: 9mm; list-style: none; }
.doc-body td, .doc-body th { border: 1px solid #000; padding: 2pt 4pt; vertical-align: top; }
.doc-body img { max-width: 100%; }
.doc-body ol { counter-reset: item; }
.doc-body ol > li { counter-increment: item; position: relative; }
.doc-body ol > li::before { position: absolute; left: -9mm; width: 7mm; text-align: right; content: counter(item, decimal) "."; }
.doc-body ol ol > li::before { content: counter(item, lower-alpha) "."; }
.doc-body ol ol ol > li::before { content: counter(item, lower-roman) "."; }
.doc-body ol[data-marker="decimal"] > li::before { content: counter(item, decimal) "."; }
.doc-body ol[data-marker="lower-alpha"] > li::before { content: counter(item, lower-alpha) "."; }
.doc-body ol[data-marker="upper-alpha"] > li::before { content: counter(item, upper-alpha) "."; }
.doc-body ol[data-marker="lower-roman"] > li::before { content: counter(item, lower-roman) "."; }
.doc-body ol[data-marker="upper-roman"] > li::before { content: counter(item, upper-roman) "."; }
.doc-body ul > li { position: relative; }
.doc-body ul > li::before { position: absolute; left: -5mm; content: "\2022"; }
.chrome { border-collapse: collapse; width: 100%; table-layout: fixed; font-size: 9pt; }
.chrome td { border: 1px solid #000; padding: 2pt 4pt; vertical-align: top; }
.chrome .brand { text-align: center; vertical-align: middle; font-weight: bold; }
.chrome .brand img { max-height: 14mm; max-width: 100%; display: block; margin: 0 auto 2pt auto; }
.chrome .label { display: block; font-size: 7pt; font-weight: bold; }
.doc-footer { border-top: 1px solid #000; margin-top: 6mm; padding-top: 2pt; font-size: 8pt; text-align: center; }
</style>
</head>
<body>
<div class="doc">
{{- if .Preview}}
<header class="doc-header">
<table class="chrome">
<colgroup><col style="width:30%"><col style="width:50%"><col style="width:20%"></colgroup>
<tr>
<td class="brand" rowspan="2">{{if .Logo}}<img src="{{.Logo}}" alt="">{{end}}{{.Chrome.Department}}</td>
<td><span class="label">SECTION</span>{{.Chrome.Meta.Section}}</td>
<td><span class="label">NUMBER</span>{{.Chrome.Meta.Number}}</td>
</tr>
<tr>
<td><span class="label">SUBJECT</span>{{.Chrome.Meta.Subject}}</td>
<td><span class="label">PAGE</span></td>
</tr>
</table>
</header>
{{- end}}
<main class="doc-body">
{{.Body}}
</main>
{{- if and .Preview .Chrome.Classification}}
<footer class="doc-footer">{{.Chrome.Classification}}</footer>
{{- end}}
</div>
</body>
</html>
`
