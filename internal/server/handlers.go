package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/assemble"
	"github.com/gaurav-prasanna/policypipe/core/diff"
	"github.com/gaurav-prasanna/policypipe/core/editor"
	"github.com/gaurav-prasanna/policypipe/core/export"
	"github.com/gaurav-prasanna/policypipe/core/pipeline"
	"github.com/gaurav-prasanna/policypipe/core/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// writeError maps domain errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrUnsupportedFile):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrMissingField),
		errors.Is(err, editor.ErrNoBlock),
		errors.Is(err, editor.ErrUnknownCommand),
		errors.Is(err, editor.ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidTransition):
		status = http.StatusConflict
	}

	body := errorBody{Error: err.Error()}
	var se *core.StageError
	if errors.As(err, &se) {
		body.Stage = se.Stage
		if status == http.StatusInternalServerError && se.Stage != core.StageUpload && se.Stage != core.StagePersist {
			status = http.StatusUnprocessableEntity
		}
	}
	if status == http.StatusInternalServerError {
		s.zlog.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// readUpload reads the "file" part of a multipart upload.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if r.ContentLength > s.maxUpload {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "upload too large"})
		return "", nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "upload too large"})
			return "", nil, false
		}
		s.badRequest(w, "multipart form with a file part required")
		return "", nil, false
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, "file part required")
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.badRequest(w, "failed to read upload")
		return "", nil, false
	}
	return header.Filename, data, true
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 8<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", core.ErrMissingField, err)
	}
	return nil
}

func attachment(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConvert returns the composed PDF for an uploaded policy.
// POST /api/convert (multipart: file)
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	res, err := s.pipe.Convert(r.Context(), name, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("X-Page-Count", strconv.Itoa(res.PageCount))
	attachment(w, res.FileName, "application/pdf", res.PDF)
}

// handlePreview returns the preview-mode HTML for an uploaded policy.
// POST /api/preview (multipart: file)
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	html, _, err := s.pipe.Preview(r.Context(), name, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, html)
}

// handlePublish converts an upload and stores it as a new policy or as
// the next version of an existing one.
// POST /api/policies, POST /api/policies/{policyID}/versions
// (multipart: file, change_summary)
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	pub, err := s.pipe.Publish(r.Context(), pipeline.PublishRequest{
		PolicyID:      chi.URLParam(r, "policyID"),
		FileName:      name,
		Data:          data,
		ChangeSummary: r.FormValue("change_summary"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.zlog.Info().
		Str("policy_id", pub.Policy.ID).
		Str("version_id", pub.Version.ID).
		Int("version", pub.Version.VersionNumber).
		Msg("version published")
	writeJSON(w, http.StatusCreated, pub)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.policies.GetPolicy(r.Context(), chi.URLParam(r, "policyID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")
	if _, err := s.policies.GetPolicy(r.Context(), policyID); err != nil {
		s.writeError(w, err)
		return
	}
	versions, err := s.policies.ListVersions(r.Context(), policyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if versions == nil {
		versions = []core.PolicyVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

// handleSetStatus moves a policy one step through its lifecycle.
// PUT /api/policies/{policyID}/status {"status": "Review"}
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status core.Status `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if !req.Status.Valid() {
		s.badRequest(w, fmt.Sprintf("unknown status %q", req.Status))
		return
	}
	policyID := chi.URLParam(r, "policyID")
	if err := s.policies.SetStatus(r.Context(), policyID, req.Status); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetPolicy(w, r)
}

func (s *Server) handleVersionURL(w http.ResponseWriter, r *http.Request) {
	url, err := s.pipe.VersionURL(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleBlob serves a stored rendition behind a signed URL.
// GET /blobs/{path}?expires=&sig=
func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	q := r.URL.Query()
	if err := s.blobs.Verify(path, q.Get("expires"), q.Get("sig")); err != nil {
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
		return
	}
	data, err := s.blobs.Download(r.Context(), path)
	if err != nil {
		if errors.Is(err, storage.ErrBadPath) {
			s.badRequest(w, err.Error())
			return
		}
		s.writeError(w, err)
		return
	}
	contentType := mime.TypeByExtension(strings.ToLower(pathExt(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func pathExt(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 && !strings.Contains(p[i:], "/") {
		return p[i:]
	}
	return ""
}

type compareRequest struct {
	OldVersionID string  `json:"old_version_id"`
	NewVersionID string  `json:"new_version_id"`
	BlockSize    int     `json:"block_size"`
	Threshold    float64 `json:"threshold"`
	Paint        bool    `json:"paint"`
}

type comparePage struct {
	Overlay     core.DiffOverlay `json:"overlay"`
	Highlighted int              `json:"highlighted"`
	Image       string           `json:"image,omitempty"` // data URI of the painted page
}

// handleCompare diffs two stored versions page by page.
// POST /api/compare
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.OldVersionID == "" || req.NewVersionID == "" {
		s.badRequest(w, "old_version_id and new_version_id required")
		return
	}
	diffs, err := s.pipe.CompareVersions(r.Context(), req.OldVersionID, req.NewVersionID,
		diff.Options{BlockSize: req.BlockSize, Threshold: req.Threshold})
	if err != nil {
		s.writeError(w, err)
		return
	}

	pages := make([]comparePage, 0, len(diffs))
	for _, d := range diffs {
		page := comparePage{Overlay: d.Overlay, Highlighted: d.Highlighted()}
		if req.Paint {
			var buf bytes.Buffer
			if err := png.Encode(&buf, diff.Paint(d.New, d.Overlay)); err != nil {
				s.writeError(w, err)
				return
			}
			page.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		}
		pages = append(pages, page)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

// handleAssemble fills a document template. ?format=docx returns a Word
// document instead of HTML.
// POST /api/assemble/{intake|brief}
func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var title, html string
	var err error
	switch kind := chi.URLParam(r, "kind"); kind {
	case "intake":
		var data assemble.IntakeData
		if err = decodeJSON(r, &data); err == nil {
			title = assemble.IntakeTitle
			html, err = assemble.IntakeForm(data)
		}
	case "brief":
		var data assemble.BriefData
		if err = decodeJSON(r, &data); err == nil {
			title = data.Title
			html, err = assemble.Brief(data)
		}
	default:
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("unknown template %q", kind)})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "docx" {
		data, name, err := export.DOCX(title, html, export.DOCXOptions{Creator: "policypipe"})
		if err != nil {
			s.writeError(w, err)
			return
		}
		attachment(w, name, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, html)
}

type editorResponse struct {
	Document core.EditableDocument `json:"document"`
	Anchors  []editor.Anchor       `json:"anchors"`
}

func (s *Server) editorResponse(w http.ResponseWriter, doc core.EditableDocument) {
	anchors, err := editor.ScanAnchors(doc.BodyHTML)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if anchors == nil {
		anchors = []editor.Anchor{}
	}
	writeJSON(w, http.StatusOK, editorResponse{Document: doc, Anchors: anchors})
}

// handleEditorImport loads a saved standalone document into the editor
// model: only its sanitized body survives.
// POST /api/editor/import {"title": "...", "document": "<!DOCTYPE html>..."}
func (s *Server) handleEditorImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Document string `json:"document"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ed := editor.New(editor.Options{Log: s.zlog})
	defer ed.Close()
	if err := ed.Import(req.Title, req.Document); err != nil {
		s.writeError(w, err)
		return
	}
	s.editorResponse(w, ed.Document())
}

// handleEditorExec applies one formatting command.
// POST /api/editor/exec {"document": {...}, "command": {...}}
func (s *Server) handleEditorExec(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Document core.EditableDocument `json:"document"`
		Command  editor.Command        `json:"command"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	body, err := editor.NewDOMExecutor().Exec(req.Document.BodyHTML, req.Command)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req.Document.BodyHTML = body
	s.editorResponse(w, req.Document)
}

// handleEditorTable returns the markup for a table template.
// POST /api/editor/tables {"template": "charges", "rows": 2, "cols": 3}
func (s *Server) handleEditorTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template editor.TableTemplate `json:"template"`
		Rows     int                  `json:"rows"`
		Cols     int                  `json:"cols"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	html, err := editor.TableHTML(req.Template, req.Rows, req.Cols)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": html})
}

// handleEditorAppendRow adds a row to the table after the given anchor.
// POST /api/editor/append-row {"document": {...}, "index": 0}
func (s *Server) handleEditorAppendRow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Document core.EditableDocument `json:"document"`
		Index    int                   `json:"index"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ed := editor.New(editor.Options{Log: s.zlog})
	defer ed.Close()
	ed.SetContent(req.Document)
	if err := ed.AppendRow(req.Index); err != nil {
		s.writeError(w, err)
		return
	}
	s.editorResponse(w, ed.Document())
}
