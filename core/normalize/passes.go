package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// headerTableWords must all appear in the legacy header table.
var headerTableWords = []string{"section", "number", "subject", "page"}

// removeHeaderTable drops the first table when it is the legacy header:
// inside the lead window and mentioning every header label.
func (n *HTMLNormalizer) removeHeaderTable(body *goquery.Selection) bool {
	table := body.Find("table").First()
	if table.Length() == 0 {
		return false
	}
	if !n.inLead(body, table) {
		return false
	}
	text := strings.ToLower(table.Text())
	for _, w := range headerTableWords {
		if !strings.Contains(text, w) {
			return false
		}
	}
	table.Remove()
	return true
}

// removeLegacyParagraphs drops known legacy header lines near the top.
func (n *HTMLNormalizer) removeLegacyParagraphs(body *goquery.Selection) bool {
	changed := false
	lead := leadChildren(body, n.opts.LeadWindow)
	body.Find("p, h1, h2, h3, h4, h5, h6, div").Each(func(_ int, s *goquery.Selection) {
		if !lead[topLevel(body, s)] {
			return
		}
		if s.Find("p, div, table, img, ul, ol").Length() > 0 {
			return
		}
		text := collapseSpace(strings.ToLower(strings.Trim(textOf(s), " :")))
		if text == "" {
			return
		}
		if n.phrases[text] || pageLineRe.MatchString(text) {
			s.Remove()
			changed = true
		}
	})
	return changed
}

// stripLeadingImage removes a standalone image (the legacy logo) when it
// is the first meaningful element of the body.
func (n *HTMLNormalizer) stripLeadingImage(body *goquery.Selection) bool {
	changed := false
	body.Children().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "img" {
			s.Remove()
			changed = true
			return false
		}
		text := strings.TrimSpace(textOf(s))
		imgs := s.Find("img")
		switch {
		case text == "" && imgs.Length() == 0:
			return true
		case text == "" && imgs.Length() == 1 && s.Is("p, div, span, a"):
			s.Remove()
			changed = true
		}
		return false
	})
	return changed
}

// collapseEmptyParagraphs replaces runs of two or more empty paragraphs
// with a single spacer paragraph.
func collapseEmptyParagraphs(body *goquery.Selection) bool {
	changed := false
	var run []*goquery.Selection
	flush := func() {
		if len(run) >= 2 {
			run[0].ReplaceWithHtml(SpacerHTML)
			for _, r := range run[1:] {
				r.Remove()
			}
			changed = true
		}
		run = nil
	}
	body.Children().Each(func(_ int, s *goquery.Selection) {
		if isEmptyParagraph(s) {
			run = append(run, s)
			return
		}
		flush()
	})
	flush()
	return changed
}

// promoteLabels turns all-caps label paragraphs into title-cased headings.
func (n *HTMLNormalizer) promoteLabels(body *goquery.Selection) bool {
	changed := false
	caser := cases.Title(language.English)
	body.Find("p").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("table, li").Length() > 0 {
			return
		}
		label := strings.TrimRight(collapseSpace(textOf(s)), ": ")
		if label == "" || label != strings.ToUpper(label) || !n.labels[label] {
			return
		}
		s.ReplaceWithHtml("<h2>" + html.EscapeString(caser.String(strings.ToLower(label))) + "</h2>")
		changed = true
	})
	return changed
}

// ensurePolicyStatementSpacer guarantees one spacer after a
// "Policy Statement" heading.
func ensurePolicyStatementSpacer(body *goquery.Selection) bool {
	changed := false
	body.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(collapseSpace(textOf(s)), "policy statement") {
			return
		}
		if next := s.Next(); next.Length() > 0 && isEmptyParagraph(next) {
			return
		}
		s.AfterHtml(SpacerHTML)
		changed = true
	})
	return changed
}

func isEmptyParagraph(s *goquery.Selection) bool {
	return goquery.NodeName(s) == "p" &&
		strings.TrimSpace(textOf(s)) == "" &&
		s.Find("img, table, hr, input").Length() == 0
}

// textOf returns the text of s with non-breaking spaces folded to spaces.
func textOf(s *goquery.Selection) string {
	return strings.ReplaceAll(s.Text(), "\u00a0", " ")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (n *HTMLNormalizer) inLead(body, s *goquery.Selection) bool {
	return leadChildren(body, n.opts.LeadWindow)[topLevel(body, s)]
}

// leadChildren returns the top-level body children that start within the
// first window bytes of serialized body content.
func leadChildren(body *goquery.Selection, window int) map[*html.Node]bool {
	set := map[*html.Node]bool{}
	if body.Length() == 0 {
		return set
	}
	offset := 0
	for c := body.Nodes[0].FirstChild; c != nil && offset < window; c = c.NextSibling {
		set[c] = true
		var cw countingWriter
		if err := html.Render(&cw, c); err != nil {
			break
		}
		offset += cw.n
	}
	return set
}

// topLevel walks up from s to its ancestor that is a direct body child.
func topLevel(body, s *goquery.Selection) *html.Node {
	if body.Length() == 0 || s.Length() == 0 {
		return nil
	}
	root := body.Nodes[0]
	n := s.Nodes[0]
	for n != nil && n.Parent != root {
		n = n.Parent
	}
	return n
}

type countingWriter struct{ n int }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
