package render

import (
	"context"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gaurav-prasanna/policypipe/core"
)

// MarkdownRenderer converts the normalized body to Markdown, headed by the
// policy number and subject when they are known.
type MarkdownRenderer struct{}

// NewMarkdownRenderer creates a MarkdownRenderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// Render returns the Markdown rendition of doc.
func (r *MarkdownRenderer) Render(_ context.Context, doc core.Document) ([]byte, error) {
	body, err := toMarkdown(doc.BodyHTML)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if title := documentTitle(doc.Meta); title != "" {
		b.WriteString("# " + title + "\n\n")
	}
	if doc.Meta.Section != "" {
		b.WriteString("**Section:** " + doc.Meta.Section + "\n\n")
	}
	b.WriteString(body)
	b.WriteString("\n")
	return []byte(b.String()), nil
}

// Extension returns the file extension for Markdown output.
func (r *MarkdownRenderer) Extension() string {
	return ".md"
}

func toMarkdown(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

func documentTitle(meta core.Metadata) string {
	return strings.TrimSpace(meta.Number + " " + meta.Subject)
}
