// Package editor is the rich-text editor core: it owns the live document,
// applies formatting commands, inserts and grows tables, and tells
// programmatic content replacement apart from the user's own edits.
//
// Every internal mutation is echoed to the caller as a serialized snapshot.
// External replacement (template load, import) is not echoed back; the next
// change event it causes is swallowed instead.
package editor

import (
	"fmt"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/extract"
)

// DefaultAnchorDelay is how long anchor recomputation waits for edits to
// settle.
const DefaultAnchorDelay = 150 * time.Millisecond

// Options configures an Editor.
type Options struct {
	Executor    Executor                     // nil uses a DOMExecutor
	OnChange    func(core.EditableDocument) // receives every echoed snapshot
	AnchorDelay time.Duration
	Log         zerolog.Logger
}

// Editor holds one EditableDocument.
type Editor struct {
	exec     Executor
	onChange func(core.EditableDocument)
	log      zerolog.Logger
	policy   *bluemonday.Policy
	importer *extract.HTMLExtractor
	anchorsD *Debouncer

	mu      sync.Mutex
	doc     core.EditableDocument
	state   SyncState
	anchors []Anchor
}

// New creates an empty Editor.
func New(opts Options) *Editor {
	if opts.Executor == nil {
		opts.Executor = NewDOMExecutor()
	}
	if opts.AnchorDelay <= 0 {
		opts.AnchorDelay = DefaultAnchorDelay
	}
	e := &Editor{
		exec:     opts.Executor,
		onChange: opts.OnChange,
		log:      opts.Log,
		policy:   Policy(),
		importer: extract.New(),
	}
	e.anchorsD = NewDebouncer(opts.AnchorDelay, e.refreshAnchors)
	return e
}

// Document returns the current snapshot.
func (e *Editor) Document() core.EditableDocument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// State returns the sync state.
func (e *Editor) State() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetContent replaces the document wholesale. The caller already holds the
// new content, so nothing is echoed; the change event the surface fires
// for it will be swallowed by Observe.
func (e *Editor) SetContent(doc core.EditableDocument) {
	e.mu.Lock()
	e.doc = doc
	e.state = ApplyingProgrammaticUpdate
	e.mu.Unlock()
	e.anchorsD.Trigger()
}

// Observe handles a change event carrying the surface's serialized body.
// It reports whether the change was echoed as an internal change.
func (e *Editor) Observe(body string) bool {
	e.mu.Lock()
	e.doc.BodyHTML = body
	if e.state == ApplyingProgrammaticUpdate {
		e.state = Idle
		e.mu.Unlock()
		e.anchorsD.Trigger()
		return false
	}
	snapshot := e.doc
	e.mu.Unlock()

	e.anchorsD.Trigger()
	e.echo(snapshot)
	return true
}

// SetTitle updates the title text as an internal change.
func (e *Editor) SetTitle(title string) {
	e.mu.Lock()
	e.doc.TitleText = title
	snapshot := e.doc
	e.mu.Unlock()
	e.echo(snapshot)
}

// Exec runs a formatting command. Failures are not retried or reported;
// the body is left as it was. The current snapshot is echoed either way.
func (e *Editor) Exec(cmd Command) {
	e.mu.Lock()
	body := e.doc.BodyHTML
	e.mu.Unlock()

	out, err := e.exec.Exec(body, cmd)
	if err != nil {
		e.log.Debug().Err(err).Str("command", cmd.Name).Int("block", cmd.Block).Msg("editor command failed")
		out = body
	}
	e.commit(out)
}

// InsertTable appends a table template to the end of the body.
func (e *Editor) InsertTable(t TableTemplate, rows, cols int) error {
	markup, err := TableHTML(t, rows, cols)
	if err != nil {
		return err
	}
	e.mu.Lock()
	body := e.doc.BodyHTML
	e.mu.Unlock()
	e.commit(body + markup)
	return nil
}

// AppendRow grows the table under the anchor at index by one row.
func (e *Editor) AppendRow(index int) error {
	e.mu.Lock()
	body := e.doc.BodyHTML
	e.mu.Unlock()

	out, err := appendRow(body, index)
	if err != nil {
		return err
	}
	e.commit(out)
	return nil
}

// commit stores an internally produced body and echoes the result. A
// pending programmatic flag stays set: only the surface's next change
// event clears it.
func (e *Editor) commit(body string) {
	e.mu.Lock()
	e.doc.BodyHTML = body
	snapshot := e.doc
	e.mu.Unlock()

	e.anchorsD.Trigger()
	e.echo(snapshot)
}

func (e *Editor) echo(doc core.EditableDocument) {
	if e.onChange != nil {
		e.onChange(doc)
	}
}

// RowAnchors returns the anchors from the last recomputation.
func (e *Editor) RowAnchors() []Anchor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Anchor(nil), e.anchors...)
}

// FlushAnchors recomputes anchors now if a recomputation is pending.
func (e *Editor) FlushAnchors() {
	e.anchorsD.Flush()
}

// Close cancels pending work.
func (e *Editor) Close() {
	e.anchorsD.Stop()
}

func (e *Editor) refreshAnchors() {
	e.mu.Lock()
	body := e.doc.BodyHTML
	e.mu.Unlock()

	anchors, err := ScanAnchors(body)
	if err != nil {
		e.log.Debug().Err(err).Msg("scanning row anchors")
		return
	}
	e.mu.Lock()
	e.anchors = anchors
	e.mu.Unlock()
}

// Import loads a standalone HTML document (or a fragment) as an external
// change: only the sanitized body fragment is kept, without style blocks
// or saved add-row controls.
func (e *Editor) Import(title, document string) error {
	body, err := e.importer.Extract(document)
	if err != nil {
		return fmt.Errorf("importing document: %w", err)
	}
	e.SetContent(core.EditableDocument{
		TitleText: title,
		BodyHTML:  e.policy.Sanitize(body),
	})
	return nil
}
