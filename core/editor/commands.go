package editor

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNoBlock means the command addressed a block index that does not exist.
	ErrNoBlock = errors.New("no block at index")

	// ErrUnknownCommand means the command name is not supported.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidValue means the command value was rejected.
	ErrInvalidValue = errors.New("invalid command value")
)

// Command names, matching the browser's rich-text command set.
const (
	CmdBold                 = "bold"
	CmdItalic               = "italic"
	CmdUnderline            = "underline"
	CmdStrikeThrough        = "strikeThrough"
	CmdJustifyLeft          = "justifyLeft"
	CmdJustifyCenter        = "justifyCenter"
	CmdJustifyRight         = "justifyRight"
	CmdJustifyFull          = "justifyFull"
	CmdInsertOrderedList    = "insertOrderedList"
	CmdInsertUnorderedList  = "insertUnorderedList"
	CmdIndent               = "indent"
	CmdOutdent              = "outdent"
	CmdCreateLink           = "createLink"
	CmdUnlink               = "unlink"
	CmdFormatBlock          = "formatBlock"
	CmdInsertHorizontalRule = "insertHorizontalRule"
	CmdFontName             = "fontName"
	CmdFontSize             = "fontSize"
	CmdForeColor            = "foreColor"
	CmdHiliteColor          = "hiliteColor"
)

// Command is one formatting request against the body. Block is the index
// of the top-level body element it applies to.
type Command struct {
	Name  string `json:"name"`
	Block int    `json:"block"`
	Value string `json:"value,omitempty"`
}

// Executor applies a command to a body fragment and returns the new body.
type Executor interface {
	Exec(body string, cmd Command) (string, error)
}

// DOMExecutor applies commands to a parsed tree of the body.
type DOMExecutor struct{}

// NewDOMExecutor creates a DOMExecutor.
func NewDOMExecutor() *DOMExecutor {
	return &DOMExecutor{}
}

var inlineTags = map[string]string{
	CmdBold:          "strong",
	CmdItalic:        "em",
	CmdUnderline:     "u",
	CmdStrikeThrough: "s",
}

var alignments = map[string]string{
	CmdJustifyLeft:   "left",
	CmdJustifyCenter: "center",
	CmdJustifyRight:  "right",
	CmdJustifyFull:   "justify",
}

// Legacy font sizes 1-7 in points.
var fontSizes = map[string]string{
	"1": "8pt", "2": "10pt", "3": "12pt", "4": "14pt",
	"5": "18pt", "6": "24pt", "7": "36pt",
}

var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true,
}

var (
	fontNameRe = regexp.MustCompile(`^[A-Za-z0-9 ,\-]+$`)
	colorRe    = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[a-zA-Z]+)$`)
)

const indentStepPx = 40

// Exec applies cmd to the Nth top-level element of body.
func (x *DOMExecutor) Exec(body string, cmd Command) (string, error) {
	root, err := parseBody(body)
	if err != nil {
		return "", err
	}
	block := root.Children().Eq(cmd.Block)
	if cmd.Block < 0 || block.Length() == 0 {
		return "", fmt.Errorf("%w: %d", ErrNoBlock, cmd.Block)
	}

	if tag, ok := inlineTags[cmd.Name]; ok {
		textTargets(block).Each(func(_ int, s *goquery.Selection) {
			toggleInline(s, tag)
		})
		return serialize(root)
	}
	if align, ok := alignments[cmd.Name]; ok {
		setStyle(block, "text-align", align)
		return serialize(root)
	}

	switch cmd.Name {
	case CmdInsertOrderedList:
		toggleList(block, "ol")
	case CmdInsertUnorderedList:
		toggleList(block, "ul")
	case CmdIndent:
		shiftIndent(block, indentStepPx)
	case CmdOutdent:
		shiftIndent(block, -indentStepPx)
	case CmdCreateLink:
		href, err := linkTarget(cmd.Value)
		if err != nil {
			return "", err
		}
		textTargets(block).Each(func(_ int, s *goquery.Selection) {
			unwrapAll(s.Find("a"))
			s.WrapInnerHtml("<a></a>")
			s.ChildrenFiltered("a").Last().SetAttr("href", href)
		})
	case CmdUnlink:
		unwrapAll(block.Find("a"))
	case CmdFormatBlock:
		tag := strings.ToLower(strings.Trim(strings.TrimSpace(cmd.Value), "<>"))
		if !blockTags[tag] {
			return "", fmt.Errorf("%w: block %q", ErrInvalidValue, cmd.Value)
		}
		rename(block, tag)
	case CmdInsertHorizontalRule:
		block.AfterHtml("<hr>")
	case CmdFontName:
		if !fontNameRe.MatchString(cmd.Value) {
			return "", fmt.Errorf("%w: font %q", ErrInvalidValue, cmd.Value)
		}
		setStyle(block, "font-family", cmd.Value)
	case CmdFontSize:
		size, ok := fontSizes[strings.TrimSpace(cmd.Value)]
		if !ok {
			return "", fmt.Errorf("%w: font size %q", ErrInvalidValue, cmd.Value)
		}
		setStyle(block, "font-size", size)
	case CmdForeColor, CmdHiliteColor:
		if !colorRe.MatchString(cmd.Value) {
			return "", fmt.Errorf("%w: color %q", ErrInvalidValue, cmd.Value)
		}
		prop := "color"
		if cmd.Name == CmdHiliteColor {
			prop = "background-color"
		}
		setStyle(block, prop, cmd.Value)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	return serialize(root)
}

// textTargets are the elements whose content inline formatting wraps:
// list items and cells for structured blocks, the block itself otherwise.
func textTargets(block *goquery.Selection) *goquery.Selection {
	switch goquery.NodeName(block) {
	case "ol", "ul":
		return block.Find("li")
	case "table":
		return block.Find("td, th")
	}
	return block
}

// toggleInline wraps the content of s in tag, or unwraps it when s already
// holds nothing but one tag element.
func toggleInline(s *goquery.Selection, tag string) {
	kids := s.Children()
	if kids.Length() == 1 && goquery.NodeName(kids) == tag &&
		strings.TrimSpace(kids.Text()) == strings.TrimSpace(s.Text()) {
		unwrapAll(kids)
		return
	}
	s.WrapInnerHtml("<" + tag + "></" + tag + ">")
}

func toggleList(block *goquery.Selection, tag string) {
	switch name := goquery.NodeName(block); name {
	case tag:
		items := block.ChildrenFiltered("li")
		rename(items, "p")
		unwrapAll(block)
	case "ol", "ul":
		rename(block, tag)
		block.RemoveAttr("type")
	default:
		inner, _ := block.Html()
		block.ReplaceWithHtml("<" + tag + "><li>" + inner + "</li></" + tag + ">")
	}
}

func shiftIndent(block *goquery.Selection, delta int) {
	current := 0
	if v := strings.TrimSuffix(styleValue(block, "margin-left"), "px"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			current = n
		}
	}
	next := current + delta
	if next <= 0 {
		setStyle(block, "margin-left", "")
		return
	}
	setStyle(block, "margin-left", strconv.Itoa(next)+"px")
}

func linkTarget(value string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%w: link %q", ErrInvalidValue, value)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "", fmt.Errorf("%w: link %q", ErrInvalidValue, value)
		}
	case "mailto":
	default:
		return "", fmt.Errorf("%w: link %q", ErrInvalidValue, value)
	}
	return u.String(), nil
}
