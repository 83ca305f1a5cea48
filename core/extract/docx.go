package extract

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gaurav-prasanna/policypipe/core"
	"golang.org/x/net/html"
)

const defaultMaxDocxSize = 50 * 1024 * 1024

// DocxConverter turns a Word .docx upload into semantic, unstyled HTML and
// the plain text the metadata extractor scans.
type DocxConverter struct {
	MaxFileSize int64
}

// NewDocxConverter creates a DocxConverter with a 50 MB upload limit.
func NewDocxConverter() *DocxConverter {
	return &DocxConverter{MaxFileSize: defaultMaxDocxSize}
}

// IsDocx reports whether fileName carries the .docx extension.
func IsDocx(fileName string) bool {
	return strings.EqualFold(filepath.Ext(fileName), ".docx")
}

// Convert reads word/document.xml (plus numbering and relationships) from
// the archive and renders paragraphs, headings, lists, tables, links and
// images as HTML.
func (c *DocxConverter) Convert(fileName string, data []byte) (*core.SourceDocument, error) {
	if !IsDocx(fileName) {
		return nil, fmt.Errorf("%q: %w", fileName, core.ErrUnsupportedFile)
	}
	if c.MaxFileSize > 0 && int64(len(data)) > c.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", len(data), c.MaxFileSize)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var doc xmlNode
	if err := readXMLPart(files, "word/document.xml", &doc); err != nil {
		return nil, err
	}

	w := &docxWriter{files: files, numbering: map[string]map[int]string{}, rels: map[string]string{}}

	var numDoc xmlNode
	if err := readXMLPart(files, "word/numbering.xml", &numDoc); err == nil {
		w.numbering = parseNumbering(&numDoc)
	}
	var relDoc xmlNode
	if err := readXMLPart(files, "word/_rels/document.xml.rels", &relDoc); err == nil {
		for _, r := range relDoc.children("Relationship") {
			w.rels[r.attr("Id")] = r.attr("Target")
		}
	}

	body := doc.child("body")
	if body == nil {
		return nil, fmt.Errorf("word/document.xml has no body")
	}
	w.blocks(body)
	w.lists.closeAll(&w.buf)

	return &core.SourceDocument{
		FileName: fileName,
		RawText:  strings.Join(w.lines, "\n"),
		HTML:     w.buf.String(),
	}, nil
}

func readXMLPart(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// xmlNode is a generic WordprocessingML element. Order of children is kept,
// which matters for interleaved paragraphs and tables.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func (n *xmlNode) attr(local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) child(local string) *xmlNode {
	if n == nil {
		return nil
	}
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *xmlNode) children(local string) []*xmlNode {
	if n == nil {
		return nil
	}
	var out []*xmlNode
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			out = append(out, &n.Nodes[i])
		}
	}
	return out
}

// find returns the first descendant with the given local name.
func (n *xmlNode) find(local string) *xmlNode {
	if n == nil {
		return nil
	}
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
		if d := n.Nodes[i].find(local); d != nil {
			return d
		}
	}
	return nil
}

// on reads a WordprocessingML toggle property such as <w:b/> or <w:b w:val="0"/>.
func (n *xmlNode) on() bool {
	if n == nil {
		return false
	}
	switch strings.ToLower(n.attr("val")) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

// parseNumbering maps numId → ilvl → numFmt.
func parseNumbering(root *xmlNode) map[string]map[int]string {
	abstract := map[string]map[int]string{}
	for _, an := range root.children("abstractNum") {
		levels := map[int]string{}
		for _, lvl := range an.children("lvl") {
			ilvl, err := strconv.Atoi(lvl.attr("ilvl"))
			if err != nil {
				continue
			}
			levels[ilvl] = lvl.child("numFmt").attr("val")
		}
		abstract[an.attr("abstractNumId")] = levels
	}
	out := map[string]map[int]string{}
	for _, num := range root.children("num") {
		if levels, ok := abstract[num.child("abstractNumId").attr("val")]; ok {
			out[num.attr("numId")] = levels
		}
	}
	return out
}

// listTag maps a Word numFmt onto an HTML list tag and type attribute.
func listTag(numFmt string) (tag, typ string) {
	switch numFmt {
	case "decimal", "decimalZero":
		return "ol", "1"
	case "lowerLetter":
		return "ol", "a"
	case "upperLetter":
		return "ol", "A"
	case "lowerRoman":
		return "ol", "i"
	case "upperRoman":
		return "ol", "I"
	default:
		return "ul", ""
	}
}

// headingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Title" → 1.
func headingLevel(style string) int {
	lower := strings.ToLower(style)
	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := strings.TrimSpace(lower[len(prefix):])
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}

type docxWriter struct {
	files     map[string]*zip.File
	numbering map[string]map[int]string
	rels      map[string]string
	buf       strings.Builder
	lines     []string
	lists     listStack
}

func (w *docxWriter) blocks(parent *xmlNode) {
	for i := range parent.Nodes {
		n := &parent.Nodes[i]
		switch n.XMLName.Local {
		case "p":
			w.paragraph(n)
		case "tbl":
			w.lists.closeAll(&w.buf)
			w.table(n)
		case "sdt":
			w.blocks(n.child("sdtContent"))
		}
	}
}

func (w *docxWriter) paragraph(p *xmlNode) {
	ppr := p.child("pPr")
	inline, text := w.inline(p)
	w.lines = append(w.lines, text)

	if numPr := ppr.child("numPr"); numPr != nil {
		numID := numPr.child("numId").attr("val")
		if numID != "" && numID != "0" {
			ilvl, _ := strconv.Atoi(numPr.child("ilvl").attr("val"))
			ilvl = clampLevel(ilvl)
			tag, typ := listTag(w.numbering[numID][ilvl])
			w.lists.item(&w.buf, ilvl, tag, typ, inline)
			return
		}
	}
	w.lists.closeAll(&w.buf)

	tag := "p"
	if lvl := headingLevel(ppr.child("pStyle").attr("val")); lvl > 0 {
		tag = "h" + strconv.Itoa(lvl)
	}
	w.buf.WriteString("<" + tag)
	switch jc := ppr.child("jc").attr("val"); jc {
	case "center", "right":
		w.buf.WriteString(` style="text-align:` + jc + `"`)
	case "both":
		w.buf.WriteString(` style="text-align:justify"`)
	}
	w.buf.WriteString(">" + inline + "</" + tag + ">")
}

// inline renders the runs of a paragraph and returns the HTML plus the
// plain text of the paragraph.
func (w *docxWriter) inline(parent *xmlNode) (string, string) {
	var hb, tb strings.Builder
	w.inlineInto(parent, &hb, &tb)
	return hb.String(), strings.TrimSpace(tb.String())
}

func (w *docxWriter) inlineInto(parent *xmlNode, hb, tb *strings.Builder) {
	for i := range parent.Nodes {
		n := &parent.Nodes[i]
		switch n.XMLName.Local {
		case "r":
			w.run(n, hb, tb)
		case "hyperlink":
			target := w.rels[n.attr("id")]
			if target == "" {
				w.inlineInto(n, hb, tb)
				continue
			}
			hb.WriteString(`<a href="` + html.EscapeString(target) + `">`)
			w.inlineInto(n, hb, tb)
			hb.WriteString("</a>")
		case "ins", "smartTag", "fldSimple", "customXml":
			w.inlineInto(n, hb, tb)
		}
	}
}

func (w *docxWriter) run(r *xmlNode, hb, tb *strings.Builder) {
	rpr := r.child("rPr")
	var content strings.Builder
	for i := range r.Nodes {
		n := &r.Nodes[i]
		switch n.XMLName.Local {
		case "t":
			content.WriteString(html.EscapeString(n.Text))
			tb.WriteString(n.Text)
		case "tab":
			content.WriteString(" ")
			tb.WriteString(" ")
		case "br", "cr":
			if n.attr("type") == "page" {
				continue
			}
			content.WriteString("<br>")
			tb.WriteString(" ")
		case "drawing", "pict":
			if img := w.image(n); img != "" {
				content.WriteString(img)
			}
		}
	}
	s := content.String()
	if s == "" {
		return
	}
	if rpr.child("strike").on() || rpr.child("dstrike").on() {
		s = "<s>" + s + "</s>"
	}
	if rpr.child("u").on() {
		s = "<u>" + s + "</u>"
	}
	if rpr.child("i").on() {
		s = "<em>" + s + "</em>"
	}
	if rpr.child("b").on() {
		s = "<strong>" + s + "</strong>"
	}
	hb.WriteString(s)
}

// image inlines an embedded picture as a data URI.
func (w *docxWriter) image(n *xmlNode) string {
	id := n.find("blip").attr("embed")
	if id == "" {
		id = n.find("imagedata").attr("id")
	}
	target := w.rels[id]
	if target == "" {
		return ""
	}
	f, ok := w.files[path.Join("word", target)]
	if !ok {
		return ""
	}
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return ""
	}
	ct := mime.TypeByExtension(path.Ext(target))
	if ct == "" {
		ct = "image/png"
	}
	return `<img src="data:` + ct + ";base64," + base64.StdEncoding.EncodeToString(data) + `">`
}

func (w *docxWriter) table(tbl *xmlNode) {
	w.buf.WriteString("<table><tbody>")
	for _, tr := range tbl.children("tr") {
		w.buf.WriteString("<tr>")
		for _, tc := range tr.children("tc") {
			w.buf.WriteString("<td")
			if span := tc.child("tcPr").child("gridSpan").attr("val"); span != "" && span != "1" {
				w.buf.WriteString(` colspan="` + html.EscapeString(span) + `"`)
			}
			w.buf.WriteString(">")
			for i := range tc.Nodes {
				n := &tc.Nodes[i]
				switch n.XMLName.Local {
				case "p":
					inline, text := w.inline(n)
					w.lines = append(w.lines, text)
					w.buf.WriteString("<p>" + inline + "</p>")
				case "tbl":
					w.table(n)
				}
			}
			w.buf.WriteString("</td>")
		}
		w.buf.WriteString("</tr>")
	}
	w.buf.WriteString("</tbody></table>")
}

// maxListLevel is the deepest w:ilvl a numbering definition can declare.
const maxListLevel = 8

func clampLevel(level int) int {
	return min(max(level, 0), maxListLevel)
}

// listStack rebuilds nested HTML lists from flat numbered paragraphs.
type listStack struct {
	tags []string
}

func (s *listStack) item(buf *strings.Builder, level int, tag, typ, content string) {
	level = clampLevel(level)
	for len(s.tags) > level+1 {
		s.pop(buf)
	}
	if len(s.tags) == level+1 && s.tags[level] != tag {
		s.pop(buf)
	}
	if len(s.tags) == level+1 {
		buf.WriteString("</li><li>" + content)
		return
	}
	for len(s.tags) < level+1 {
		buf.WriteString("<" + tag)
		if typ != "" {
			buf.WriteString(` type="` + typ + `"`)
		}
		buf.WriteString("><li>")
		s.tags = append(s.tags, tag)
	}
	buf.WriteString(content)
}

func (s *listStack) pop(buf *strings.Builder) {
	top := s.tags[len(s.tags)-1]
	buf.WriteString("</li></" + top + ">")
	s.tags = s.tags[:len(s.tags)-1]
}

func (s *listStack) closeAll(buf *strings.Builder) {
	for len(s.tags) > 0 {
		s.pop(buf)
	}
}
