package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// markerRe matches a typed-in list marker such as "1.", "a)", "(iv)".
var markerRe = regexp.MustCompile(`^\s*\(?([0-9]{1,3}|[a-zA-Z]|[ivxlc]{1,6}|[IVXLC]{1,6})[.)](?:\s+|$)`)

var styleTypeRe = regexp.MustCompile(`(?i)list-style-type\s*:\s*([a-z-]+)`)

var cssListType = map[string]string{
	"decimal":     "1",
	"lower-alpha": "a",
	"lower-latin": "a",
	"upper-alpha": "A",
	"upper-latin": "A",
	"lower-roman": "i",
	"upper-roman": "I",
}

// normalizeLists keeps ordered semantics only for lists that carry an
// explicit numbering or lettering, and gives those an explicit type.
// Ordered lists without any marker are demoted to unordered lists.
func normalizeLists(body *goquery.Selection) bool {
	changed := false
	body.Find("ol, ul").Each(func(_ int, list *goquery.Selection) {
		tag := goquery.NodeName(list)
		items := list.ChildrenFiltered("li")

		if tag == "ol" {
			if t, ok := list.Attr("type"); ok && strings.TrimSpace(t) != "" {
				return
			}
			if style, ok := list.Attr("style"); ok {
				if m := styleTypeRe.FindStringSubmatch(style); m != nil {
					if t, ok := cssListType[strings.ToLower(m[1])]; ok {
						list.SetAttr("type", t)
						changed = true
						return
					}
				}
			}
		}

		minItems := 1
		if tag == "ul" {
			minItems = 2
		}
		if typ, ok := explicitMarkers(items, minItems); ok {
			items.Each(func(_ int, li *goquery.Selection) { stripMarker(li) })
			if tag == "ul" {
				rename(list, "ol")
			}
			list.SetAttr("type", typ)
			changed = true
			return
		}

		if tag == "ol" {
			rename(list, "ul")
			list.RemoveAttr("type")
			list.RemoveAttr("start")
			changed = true
		}
	})
	return changed
}

// explicitMarkers reports whether every item starts with a typed marker and
// returns the list type implied by the first one.
func explicitMarkers(items *goquery.Selection, minItems int) (string, bool) {
	if items.Length() < minItems {
		return "", false
	}
	var first string
	ok := true
	items.EachWithBreak(func(i int, li *goquery.Selection) bool {
		m := markerRe.FindStringSubmatch(textOf(li))
		if m == nil {
			ok = false
			return false
		}
		if i == 0 {
			first = m[1]
		}
		return true
	})
	if !ok {
		return "", false
	}
	return markerType(first), true
}

func markerType(token string) string {
	switch {
	case token[0] >= '0' && token[0] <= '9':
		return "1"
	case token == "i" || len(token) > 1 && token == strings.ToLower(token):
		return "i"
	case token == "I" || len(token) > 1:
		return "I"
	case token == strings.ToLower(token):
		return "a"
	default:
		return "A"
	}
}

// stripMarker removes the typed marker from the first text of an item,
// since the rendered list draws its own.
func stripMarker(li *goquery.Selection) {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			n.Data = markerRe.ReplaceAllString(n.Data, "")
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	for _, n := range li.Nodes {
		walk(n)
	}
}

func rename(s *goquery.Selection, tag string) {
	for _, n := range s.Nodes {
		n.Data = tag
		n.DataAtom = atom.Lookup([]byte(tag))
	}
}

// removeEmptyListItems drops items with no text and no image, then any
// list left without items.
func removeEmptyListItems(body *goquery.Selection) bool {
	changed := false
	body.Find("li").Each(func(_ int, li *goquery.Selection) {
		if strings.TrimSpace(textOf(li)) == "" && li.Find("img").Length() == 0 {
			li.Remove()
			changed = true
		}
	})
	body.Find("ol, ul").Each(func(_ int, list *goquery.Selection) {
		if list.ChildrenFiltered("li").Length() == 0 {
			list.Remove()
			changed = true
		}
	})
	return changed
}
