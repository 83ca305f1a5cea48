package editor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/atom"
)

func parseBody(fragment string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parsing body: %w", err)
	}
	return doc.Find("body").First(), nil
}

func serialize(body *goquery.Selection) (string, error) {
	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("serializing body: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// rename changes the tag of every element in s, keeping attributes and
// children.
func rename(s *goquery.Selection, tag string) {
	for _, n := range s.Nodes {
		n.Data = tag
		n.DataAtom = atom.Lookup([]byte(tag))
	}
}

type declaration struct {
	prop  string
	value string
}

func parseStyle(style string) []declaration {
	var decls []declaration
	for _, part := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" || value == "" {
			continue
		}
		decls = append(decls, declaration{prop: prop, value: value})
	}
	return decls
}

// writeStyle serializes declarations the way the sanitizer does, so a
// styled element survives a sanitize pass unchanged.
func writeStyle(s *goquery.Selection, decls []declaration) {
	if len(decls) == 0 {
		s.RemoveAttr("style")
		return
	}
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.prop + ": " + d.value
	}
	s.SetAttr("style", strings.Join(parts, "; "))
}

func styleValue(s *goquery.Selection, prop string) string {
	style, _ := s.Attr("style")
	for _, d := range parseStyle(style) {
		if d.prop == prop {
			return d.value
		}
	}
	return ""
}

// setStyle sets prop on every element in s. An empty value removes it.
func setStyle(s *goquery.Selection, prop, value string) {
	s.Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		decls := parseStyle(style)
		out := decls[:0]
		replaced := false
		for _, d := range decls {
			if d.prop != prop {
				out = append(out, d)
				continue
			}
			if value != "" && !replaced {
				out = append(out, declaration{prop: prop, value: value})
				replaced = true
			}
		}
		if value != "" && !replaced {
			out = append(out, declaration{prop: prop, value: value})
		}
		writeStyle(el, out)
	})
}

// unwrapAll removes the elements in s, keeping their children in place.
func unwrapAll(s *goquery.Selection) {
	s.Each(func(_ int, el *goquery.Selection) {
		if el.Contents().Length() == 0 {
			el.Remove()
			return
		}
		el.Contents().Unwrap()
	})
}
