package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/policypipe/core"
)

// ErrNotLoaded is returned by Save before the first load completed.
var ErrNotLoaded = errors.New("document not loaded yet")

// SaveFunc persists a snapshot.
type SaveFunc func(ctx context.Context, doc core.EditableDocument) error

// Saver persists editor snapshots, immediately on Save or debounced on
// Schedule, and only once the gate is Loaded.
type Saver struct {
	save SaveFunc
	log  zerolog.Logger
	d    *Debouncer

	mu      sync.Mutex
	gate    SaveGate
	pending core.EditableDocument
}

// NewSaver creates a Saver in the Uninitialized state.
func NewSaver(save SaveFunc, delay time.Duration, log zerolog.Logger) *Saver {
	s := &Saver{save: save, log: log}
	s.d = NewDebouncer(delay, s.flush)
	return s
}

// Gate returns the current gate.
func (s *Saver) Gate() SaveGate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate
}

// MarkLoaded opens the gate.
func (s *Saver) MarkLoaded() {
	s.mu.Lock()
	s.gate = Loaded
	s.mu.Unlock()
}

// Save persists doc now.
func (s *Saver) Save(ctx context.Context, doc core.EditableDocument) error {
	if s.Gate() != Loaded {
		return ErrNotLoaded
	}
	return s.save(ctx, doc)
}

// Schedule records doc and saves it once edits settle. Snapshots seen
// before the gate opens are dropped.
func (s *Saver) Schedule(doc core.EditableDocument) {
	s.mu.Lock()
	if s.gate != Loaded {
		s.mu.Unlock()
		return
	}
	s.pending = doc
	s.mu.Unlock()
	s.d.Trigger()
}

// Flush saves a scheduled snapshot now.
func (s *Saver) Flush() {
	s.d.Flush()
}

// Close drops a scheduled snapshot.
func (s *Saver) Close() {
	s.d.Stop()
}

func (s *Saver) flush() {
	s.mu.Lock()
	doc := s.pending
	s.mu.Unlock()
	if err := s.save(context.Background(), doc); err != nil {
		s.log.Warn().Err(err).Msg("auto-save failed")
	}
}
