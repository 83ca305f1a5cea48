package render

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/policypipe/core"
)

// JSONRenderer produces the outline JSON rendition: metadata, Markdown,
// heading-delimited sections and structural counts.
type JSONRenderer struct{}

// NewJSONRenderer creates a JSONRenderer.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

// Render converts doc into indented outline JSON.
func (r *JSONRenderer) Render(_ context.Context, doc core.Document) ([]byte, error) {
	outline, err := Outline(doc)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(outline, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return data, nil
}

// Extension returns the file extension for JSON output.
func (r *JSONRenderer) Extension() string {
	return ".json"
}

// Outline builds the PolicyOutline for doc.
func Outline(doc core.Document) (*core.PolicyOutline, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(doc.BodyHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing body: %w", err)
	}
	markdown, err := toMarkdown(doc.BodyHTML)
	if err != nil {
		return nil, err
	}

	body := dom.Find("body")
	headings := outlineHeadings(body)
	return &core.PolicyOutline{
		Source:   doc.SourceName,
		Metadata: doc.Meta,
		Text:     stripMarkdown(markdown),
		Markdown: markdown,
		Sections: buildSections(markdown),
		Structure: core.OutlineStructure{
			Headings:  headings,
			Links:     outlineLinks(body),
			Tables:    body.Find("table").Length(),
			Lists:     body.Find("ol, ul").Length(),
			ListItems: body.Find("li").Length(),
			Images:    body.Find("img").Length(),
		},
	}, nil
}

func outlineHeadings(body *goquery.Selection) []core.Heading {
	headings := []core.Heading{}
	body.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		level := int(goquery.NodeName(s)[1] - '0')
		headings = append(headings, core.Heading{Level: level, Text: text})
	})
	return headings
}

func outlineLinks(body *goquery.Selection) []core.Link {
	links := []core.Link{}
	body.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, core.Link{
			Text: strings.TrimSpace(s.Text()),
			Href: href,
		})
	})
	return links
}

var headingRegex = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// buildSections splits the Markdown at each heading line. Text before the
// first heading is not part of any section.
func buildSections(md string) []core.Section {
	var sections []core.Section
	var current *core.Section
	var lines []string

	flush := func() {
		if current != nil {
			current.Text = strings.TrimSpace(strings.Join(lines, "\n"))
			sections = append(sections, *current)
		}
	}
	for _, line := range strings.Split(md, "\n") {
		if m := headingRegex.FindStringSubmatch(line); m != nil {
			flush()
			current = &core.Section{Heading: strings.TrimSpace(m[2]), Level: len(m[1])}
			lines = nil
			continue
		}
		if current != nil {
			lines = append(lines, line)
		}
	}
	flush()
	return sections
}

var (
	linkRegex     = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
	emphasisRegex = regexp.MustCompile(`\*{1,3}([^*]+)\*{1,3}`)
	escapeRegex   = regexp.MustCompile(`\\([\\*_.()\[\]#+-])`)
	blankRunRegex = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common Markdown formatting to produce plain text.
func stripMarkdown(md string) string {
	text := headingRegex.ReplaceAllString(md, "$2")
	text = emphasisRegex.ReplaceAllString(text, "$1")
	text = linkRegex.ReplaceAllString(text, "$1")
	text = escapeRegex.ReplaceAllString(text, "$1")
	text = blankRunRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
