package editor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Anchor is a heading immediately followed by a table: the place an
// "add row" control floats.
type Anchor struct {
	Index int    `json:"index"` // position among anchors, in document order
	Level int    `json:"level"`
	Text  string `json:"text"`
	Rows  int    `json:"rows"`
}

const headingSelector = "h1, h2, h3, h4, h5, h6"

// ScanAnchors finds every heading whose next element sibling is a table.
func ScanAnchors(body string) ([]Anchor, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	var anchors []Anchor
	eachAnchor(root, func(h, table *goquery.Selection) {
		anchors = append(anchors, Anchor{
			Index: len(anchors),
			Level: int(goquery.NodeName(h)[1] - '0'),
			Text:  strings.Join(strings.Fields(h.Text()), " "),
			Rows:  tableRows(table).Length(),
		})
	})
	return anchors, nil
}

func eachAnchor(root *goquery.Selection, fn func(heading, table *goquery.Selection)) {
	root.Find(headingSelector).Each(func(_ int, h *goquery.Selection) {
		if next := h.Next(); goquery.NodeName(next) == "table" {
			fn(h, next)
		}
	})
}

// tableRows are the rows of table itself, not of tables nested in cells.
func tableRows(table *goquery.Selection) *goquery.Selection {
	return table.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr").
		AddSelection(table.ChildrenFiltered("tr"))
}

// appendRow copies the last row of the table under the anchor at index,
// with bold styling stripped and header cells turned into data cells, and
// inserts the copy after it.
func appendRow(body string, index int) (string, error) {
	root, err := parseBody(body)
	if err != nil {
		return "", err
	}
	var table *goquery.Selection
	n := 0
	eachAnchor(root, func(_, t *goquery.Selection) {
		if n == index {
			table = t
		}
		n++
	})
	if table == nil || index < 0 {
		return "", fmt.Errorf("%w: no table anchor %d", ErrNoBlock, index)
	}

	last := tableRows(table).Last()
	if last.Length() == 0 {
		return "", fmt.Errorf("%w: table under anchor %d has no rows", ErrNoBlock, index)
	}
	row := last.Clone()
	unwrapAll(row.Find("b, strong"))
	setStyle(row.Find("*").AddSelection(row), "font-weight", "")
	rename(row.Find("th"), "td")
	last.AfterSelection(row)
	return serialize(root)
}
