// Package export packages standalone HTML documents for download.
//
// DOCX output embeds the HTML as an altChunk: Word converts the chunk into
// native content when the file is opened, so no HTML to WordprocessingML
// translation happens here.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/gaurav-prasanna/policypipe/core/output"
)

const chunkPart = "word/afchunk.htm"

// DOCXOptions controls package metadata.
type DOCXOptions struct {
	Creator  string
	Modified time.Time // zero uses a fixed epoch so output is reproducible
}

var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// DOCX packages html into a .docx and returns its bytes and file name.
func DOCX(title, html string, opts DOCXOptions) ([]byte, string, error) {
	if strings.TrimSpace(html) == "" {
		return nil, "", fmt.Errorf("exporting %q: empty document", title)
	}
	if opts.Modified.IsZero() {
		opts.Modified = epoch
	}
	if opts.Creator == "" {
		opts.Creator = "policypipe"
	}

	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"docProps/core.xml", corePropsXML(title, opts)},
		{"word/document.xml", documentXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{chunkPart, html},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: opts.Modified,
		})
		if err != nil {
			return nil, "", fmt.Errorf("adding %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.data)); err != nil {
			return nil, "", fmt.Errorf("writing %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing docx: %w", err)
	}
	return buf.Bytes(), output.DOCXFilename(title), nil
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func corePropsXML(title string, opts DOCXOptions) string {
	stamp := opts.Modified.UTC().Format(time.RFC3339)
	return xml.Header +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + escapeXML(title) + `</dc:title>` +
		`<dc:creator>` + escapeXML(opts.Creator) + `</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:modified>` +
		`</cp:coreProperties>`
}

const contentTypesXML = xml.Header +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="htm" ContentType="text/html"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentXML = xml.Header +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
	`<w:body><w:altChunk r:id="htmlChunk"/>` +
	`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
	`<w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134" w:header="709" w:footer="709" w:gutter="0"/>` +
	`</w:sectPr></w:body></w:document>`

const documentRelsXML = xml.Header +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="htmlChunk" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/aFChunk" Target="afchunk.htm"/>` +
	`</Relationships>`
