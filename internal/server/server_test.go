package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/compose"
	"github.com/gaurav-prasanna/policypipe/core/pipeline"
	"github.com/gaurav-prasanna/policypipe/core/storage"
	"github.com/gaurav-prasanna/policypipe/internal/metrics"
)

const wNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func policyDocx(t *testing.T) []byte {
	t.Helper()
	var body strings.Builder
	for _, line := range []string{"SECTION", "Electronic Supervision", "NUMBER", "8.01.01", "SUBJECT", "Reporting Standards", "Officers report daily."} {
		body.WriteString(`<w:p><w:r><w:t>` + line + `</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte(`<w:document ` + wNS + `><w:body>` + body.String() + `<w:sectPr/></w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type onePage struct{}

func (onePage) Rasterize(context.Context, string, core.Layout) (*compose.Rasterization, error) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 160))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 10, 40, 40), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return &compose.Rasterization{Pages: []compose.Page{{RenderedPage: core.RenderedPage{Bitmap: img, WidthPx: 120, HeightPx: 160}}}}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store := storage.NewPolicyStore(db)
	t.Cleanup(func() { store.Close() })
	blobs, err := storage.NewFSBlobStore(t.TempDir(), "http://policies.test", []byte("k"))
	if err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	layout := core.DefaultLayout()
	dec := compose.NewDecorator(layout, nil, compose.DecoratorOptions{}, zerolog.Nop())
	p := pipeline.New(pipeline.Config{
		Composer: compose.New(layout, onePage{}, dec, zerolog.Nop()),
		Blobs:    blobs,
		Store:    store,
		Metrics:  m,
	})
	return New(Config{Pipeline: p, Policies: store, Blobs: blobs, Metrics: m})
}

func upload(t *testing.T, target, name string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postJSON(s *Server, target string, v any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return do(s, req)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %s: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	if w := do(s, httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
	w := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `policypipe_http_requests_total{route="/health",status="200"} 1`) {
		t.Errorf("health request not counted:\n%s", w.Body.String())
	}
}

func TestConvert(t *testing.T) {
	s := newTestServer(t)
	w := do(s, upload(t, "/api/convert", "reporting.docx", policyDocx(t), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "application/pdf" || w.Header().Get("X-Page-Count") != "1" {
		t.Errorf("headers = %v", w.Header())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "80101_Reporting_Standards.pdf") {
		t.Errorf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a pdf")
	}

	w = do(s, upload(t, "/api/convert", "reporting.pdf", []byte("%PDF"), nil))
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("non-docx status = %d", w.Code)
	}
}

func TestPreview(t *testing.T) {
	s := newTestServer(t)
	w := do(s, upload(t, "/api/preview", "reporting.docx", policyDocx(t), nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Officers report daily.") {
		t.Fatalf("preview = %d %s", w.Code, w.Body.String())
	}
}

func TestPublishAndServeRendition(t *testing.T) {
	s := newTestServer(t)
	w := do(s, upload(t, "/api/policies", "reporting.docx", policyDocx(t), map[string]string{"change_summary": "initial"}))
	if w.Code != http.StatusCreated {
		t.Fatalf("publish = %d: %s", w.Code, w.Body.String())
	}
	pub := decode[pipeline.Publication](t, w)
	if pub.Version.ChangeSummary != "initial" || pub.Version.VersionNumber != 1 {
		t.Errorf("version = %+v", pub.Version)
	}

	w = do(s, upload(t, "/api/policies/"+pub.Policy.ID+"/versions", "reporting.docx", policyDocx(t), nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("revision = %d: %s", w.Code, w.Body.String())
	}

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/policies/"+pub.Policy.ID+"/versions", nil))
	versions := decode[[]core.PolicyVersion](t, w)
	if len(versions) != 2 || versions[1].VersionNumber != 2 {
		t.Fatalf("versions = %+v", versions)
	}

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/versions/"+versions[0].ID+"/url", nil))
	link := decode[map[string]string](t, w)["url"]
	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}

	w = do(s, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("blob = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if int64(w.Body.Len()) != versions[0].FileSizeBytes {
		t.Errorf("served %d bytes, want %d", w.Body.Len(), versions[0].FileSizeBytes)
	}

	q := u.Query()
	q.Set("sig", strings.Repeat("0", 64))
	w = do(s, httptest.NewRequest(http.MethodGet, u.Path+"?"+q.Encode(), nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("tampered signature status = %d", w.Code)
	}

	w = postJSON(s, "/api/compare", map[string]any{"old_version_id": versions[0].ID, "new_version_id": versions[1].ID, "paint": true})
	if w.Code != http.StatusOK {
		t.Fatalf("compare = %d: %s", w.Code, w.Body.String())
	}
	cmp := decode[struct {
		Pages []comparePage `json:"pages"`
	}](t, w)
	if len(cmp.Pages) != 1 || cmp.Pages[0].Highlighted != 0 || !strings.HasPrefix(cmp.Pages[0].Image, "data:image/png;base64,") {
		t.Errorf("compare = %+v", cmp.Pages)
	}
}

func TestNotFoundAndConflicts(t *testing.T) {
	s := newTestServer(t)

	if w := do(s, httptest.NewRequest(http.MethodGet, "/api/policies/missing", nil)); w.Code != http.StatusNotFound {
		t.Errorf("missing policy = %d", w.Code)
	}
	if w := do(s, upload(t, "/api/policies/missing/versions", "reporting.docx", policyDocx(t), nil)); w.Code != http.StatusNotFound {
		t.Errorf("revision of missing policy = %d", w.Code)
	}
	if w := postJSON(s, "/api/compare", map[string]string{"old_version_id": "a", "new_version_id": "b"}); w.Code != http.StatusNotFound {
		t.Errorf("compare missing = %d", w.Code)
	}

	w := do(s, upload(t, "/api/policies", "reporting.docx", policyDocx(t), nil))
	pub := decode[pipeline.Publication](t, w)
	status := func(st string) int {
		b, _ := json.Marshal(map[string]string{"status": st})
		req := httptest.NewRequest(http.MethodPut, "/api/policies/"+pub.Policy.ID+"/status", bytes.NewReader(b))
		return do(s, req).Code
	}
	if c := status("Review"); c != http.StatusOK {
		t.Errorf("to Review = %d", c)
	}
	if c := status("Archived"); c != http.StatusConflict {
		t.Errorf("skip to Archived = %d", c)
	}
	if c := status("Bogus"); c != http.StatusBadRequest {
		t.Errorf("unknown status = %d", c)
	}
}

func TestAssemble(t *testing.T) {
	s := newTestServer(t)
	intake := map[string]any{"project_name": "Records Portal", "requester": "J. Doe"}

	w := postJSON(s, "/api/assemble/intake", intake)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Records Portal") {
		t.Fatalf("intake = %d %s", w.Code, w.Body.String())
	}

	w = postJSON(s, "/api/assemble/intake?format=docx", intake)
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Disposition"), ".docx") {
		t.Fatalf("intake docx = %d %v", w.Code, w.Header())
	}
	if _, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len())); err != nil {
		t.Errorf("docx is not an archive: %v", err)
	}

	if w := postJSON(s, "/api/assemble/brief", map[string]any{"case_number": "7"}); w.Code != http.StatusBadRequest {
		t.Errorf("brief without title = %d", w.Code)
	}
	if w := postJSON(s, "/api/assemble/memo", map[string]any{}); w.Code != http.StatusNotFound {
		t.Errorf("unknown template = %d", w.Code)
	}
}

func TestEditorEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(s, "/api/editor/import", map[string]string{
		"title":    "Brief",
		"document": `<html><head><style>p{}</style></head><body><h3>Charges</h3><table><tbody><tr><th>Offense</th></tr><tr><td>x</td></tr></tbody></table><button class="add-row-btn">+</button></body></html>`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d: %s", w.Code, w.Body.String())
	}
	imported := decode[editorResponse](t, w)
	if strings.Contains(imported.Document.BodyHTML, "button") || strings.Contains(imported.Document.BodyHTML, "style") {
		t.Errorf("import kept chrome: %s", imported.Document.BodyHTML)
	}
	if len(imported.Anchors) != 1 || imported.Anchors[0].Rows != 2 {
		t.Fatalf("anchors = %+v", imported.Anchors)
	}

	w = postJSON(s, "/api/editor/append-row", map[string]any{"document": imported.Document, "index": 0})
	grown := decode[editorResponse](t, w)
	if w.Code != http.StatusOK || grown.Anchors[0].Rows != 3 {
		t.Fatalf("append-row = %d %+v", w.Code, grown.Anchors)
	}
	if w := postJSON(s, "/api/editor/append-row", map[string]any{"document": imported.Document, "index": 5}); w.Code != http.StatusBadRequest {
		t.Errorf("append-row past anchors = %d", w.Code)
	}

	w = postJSON(s, "/api/editor/exec", map[string]any{
		"document": core.EditableDocument{BodyHTML: "<p>hello</p>"},
		"command":  map[string]any{"name": "bold", "block": 0},
	})
	execd := decode[editorResponse](t, w)
	if execd.Document.BodyHTML != "<p><strong>hello</strong></p>" {
		t.Errorf("exec body = %q", execd.Document.BodyHTML)
	}
	if w := postJSON(s, "/api/editor/exec", map[string]any{
		"document": core.EditableDocument{BodyHTML: "<p>hello</p>"},
		"command":  map[string]any{"name": "explode"},
	}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown command = %d", w.Code)
	}

	w = postJSON(s, "/api/editor/tables", map[string]any{"template": "charges"})
	if w.Code != http.StatusOK || !strings.Contains(decode[map[string]string](t, w)["html"], "Statute") {
		t.Errorf("tables = %d %s", w.Code, w.Body.String())
	}
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader("not multipart"))
	if w := do(s, req); w.Code != http.StatusBadRequest {
		t.Errorf("plain body = %d", w.Code)
	}

	small := New(Config{Pipeline: s.pipe, Policies: s.policies, Blobs: s.blobs, MaxUploadBytes: 64})
	w := do(small, upload(t, "/api/convert", "reporting.docx", bytes.Repeat([]byte("x"), 1024), nil))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized = %d", w.Code)
	}
	io.Copy(io.Discard, w.Body)
}
