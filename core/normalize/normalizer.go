// Package normalize implements the Normalizer interface.
// It cleans converter-produced policy HTML into the canonical body fragment
// every downstream renderer consumes. Passes run on a parsed tree, in a
// fixed order, and a pass that finds nothing to change is a no-op.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultLeadWindow bounds how far into the document the legacy
// header/footer passes look, in bytes of serialized body content.
const DefaultLeadWindow = 6000

// DefaultLegacyPhrases are legacy header lines removed near the top.
var DefaultLegacyPhrases = []string{
	"policy and procedure",
	"policy and procedures",
	"policy & procedure",
	"policy and procedure manual",
	"department of corrections",
	"division of community corrections",
	"section", "number", "subject", "page",
}

// DefaultLabels are all-caps paragraphs promoted to headings.
var DefaultLabels = []string{
	"POLICY STATEMENT", "DEFINITIONS", "STANDARDS", "PROCEDURES",
	"SCOPE", "PURPOSE", "BACKGROUND", "RESPONSIBILITIES",
}

// SpacerHTML is the single spacer paragraph used by the collapse and
// policy-statement passes.
const SpacerHTML = `<p class="spacer">&nbsp;</p>`

var pageLineRe = regexp.MustCompile(`^page\s*\d*\s*(of\s*\d+)?$`)

// Options configures the normalizer passes.
type Options struct {
	LeadWindow    int      `yaml:"lead_window"`
	LegacyPhrases []string `yaml:"legacy_phrases"`
	Labels        []string `yaml:"labels"`
}

// DefaultOptions returns the standard pass configuration.
func DefaultOptions() Options {
	return Options{
		LeadWindow:    DefaultLeadWindow,
		LegacyPhrases: DefaultLegacyPhrases,
		Labels:        DefaultLabels,
	}
}

// Report lists the passes that changed the tree, in execution order.
type Report struct {
	Changed []string
}

// HTMLNormalizer runs the normalization passes and the sanitizer.
type HTMLNormalizer struct {
	opts    Options
	phrases map[string]bool
	labels  map[string]bool
	policy  *bluemonday.Policy
}

// New creates an HTMLNormalizer with DefaultOptions.
func New() *HTMLNormalizer {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates an HTMLNormalizer; zero-valued options fall back
// to the defaults.
func NewWithOptions(opts Options) *HTMLNormalizer {
	if opts.LeadWindow <= 0 {
		opts.LeadWindow = DefaultLeadWindow
	}
	if len(opts.LegacyPhrases) == 0 {
		opts.LegacyPhrases = DefaultLegacyPhrases
	}
	if len(opts.Labels) == 0 {
		opts.Labels = DefaultLabels
	}
	n := &HTMLNormalizer{
		opts:    opts,
		phrases: make(map[string]bool, len(opts.LegacyPhrases)),
		labels:  make(map[string]bool, len(opts.Labels)),
		policy:  Policy(),
	}
	for _, p := range opts.LegacyPhrases {
		n.phrases[collapseSpace(strings.ToLower(p))] = true
	}
	for _, l := range opts.Labels {
		n.labels[strings.ToUpper(l)] = true
	}
	return n
}

// Policy is the allow-list used for policy bodies: user-generated-content
// elements plus ordered-list types, spacer paragraphs, alignment and
// inline data-URI images.
func Policy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("s", "u", "strike")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^(1|a|A|i|I|disc|circle|square)$`)).OnElements("ol", "ul")
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^spacer$`)).OnElements("p")
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")
	p.AllowStyles("text-align").MatchingEnum("left", "right", "center", "justify").Globally()
	p.AllowDataURIImages()
	return p
}

// Normalize cleans a converted HTML fragment and returns the sanitized body.
func (n *HTMLNormalizer) Normalize(html string) (string, error) {
	out, _, err := n.NormalizeReport(html)
	return out, err
}

// NormalizeReport is Normalize plus the list of passes that made changes.
func (n *HTMLNormalizer) NormalizeReport(html string) (string, Report, error) {
	var report Report

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", report, fmt.Errorf("parsing HTML: %w", err)
	}
	body := doc.Find("body").First()

	passes := []struct {
		name string
		run  func(*goquery.Selection) bool
	}{
		{"header-table", n.removeHeaderTable},
		{"legacy-phrases", n.removeLegacyParagraphs},
		{"leading-image", n.stripLeadingImage},
		{"empty-paragraphs", collapseEmptyParagraphs},
		{"label-headings", n.promoteLabels},
		{"policy-statement-spacer", ensurePolicyStatementSpacer},
		{"lists", normalizeLists},
		{"empty-list-items", removeEmptyListItems},
	}
	for _, p := range passes {
		if p.run(body) {
			report.Changed = append(report.Changed, p.name)
		}
	}

	cleaned, err := body.Html()
	if err != nil {
		return "", report, fmt.Errorf("serializing body: %w", err)
	}
	return strings.TrimSpace(n.policy.Sanitize(cleaned)), report, nil
}
