// Package extract pulls structure out of uploaded policy documents:
//  1. DOCX archives are converted to semantic HTML plus plain text
//  2. Header metadata (Section/Number/Subject) is read from the plain text
//  3. Standalone HTML documents are reduced to their body fragment,
//     with noise elements (styles, scripts, saved editor controls) removed
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultNoise are elements dropped when a standalone document is reduced
// to its body fragment. They never belong inside the editable body.
var DefaultNoise = []string{
	"style", "script", "noscript", "link", "meta", "title",
	"button.add-row-btn", "[data-add-row]",
}

// HTMLExtractor reduces a standalone HTML document to its body fragment.
type HTMLExtractor struct {
	Noise []string
}

// New creates an HTMLExtractor with DefaultNoise.
func New() *HTMLExtractor {
	return &HTMLExtractor{Noise: DefaultNoise}
}

// Extract takes a full HTML document (or a fragment) and returns the inner
// HTML of its body with noise elements removed.
func (e *HTMLExtractor) Extract(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	// Head content never survives; noise is removed from the whole tree.
	doc.Find("head").Remove()
	for _, sel := range e.Noise {
		doc.Find(sel).Remove()
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return "", fmt.Errorf("no body element found in HTML")
	}

	result, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("serializing body: %w", err)
	}
	return strings.TrimSpace(result), nil
}
