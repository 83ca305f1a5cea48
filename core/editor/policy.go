package editor

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var unsafeCSS = []string{"expression", "url(", "javascript", "@import", "behavior", "<", "\\"}

func safeCSSValue(v string) bool {
	v = strings.ToLower(v)
	for _, bad := range unsafeCSS {
		if strings.Contains(v, bad) {
			return false
		}
	}
	return true
}

// Policy is the allow-list for editor content: the policy-body profile
// plus the inline styles produced by formatting commands, table templates
// and assembly templates.
func Policy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("s", "u", "strike", "font")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^(1|a|A|i|I|disc|circle|square)$`)).OnElements("ol", "ul")
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).Globally()
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")
	p.AllowStyles(
		"text-align", "vertical-align", "font-weight", "font-style", "font-family", "font-size",
		"text-decoration", "color", "background-color", "margin", "margin-left", "margin-top",
		"margin-bottom", "padding", "border", "border-collapse", "width", "line-height",
	).MatchingHandler(safeCSSValue).Globally()
	p.AllowDataURIImages()
	return p
}
