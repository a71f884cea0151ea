// Package notes synthesizes and persists SOAP documentation for a
// consultation.
package notes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"visitscribe/internal/domain"
	"visitscribe/internal/ports"
)

const (
	defaultQuietWindow = 2 * time.Second
	flushTimeout       = 10 * time.Second
)

// Synthesizer owns the in-memory clinical note for one consultation. Edits
// apply immediately in memory and persist on a debounce timer; generation
// replaces the note wholesale from the transcript.
type Synthesizer struct {
	gen            ports.NoteGenerator
	store          ports.RecordStore
	events         ports.EventSink
	consultationID string

	mu        sync.Mutex
	note      domain.ClinicalNote
	dirty     bool
	closed    bool
	debounced func(f func())
}

func NewSynthesizer(gen ports.NoteGenerator, store ports.RecordStore, events ports.EventSink, consultationID string, quiet time.Duration) *Synthesizer {
	if quiet <= 0 {
		quiet = defaultQuietWindow
	}
	return &Synthesizer{
		gen:            gen,
		store:          store,
		events:         events,
		consultationID: consultationID,
		debounced:      debounce.New(quiet),
	}
}

// Load pulls any previously saved note into memory.
func (s *Synthesizer) Load(ctx context.Context) error {
	saved, err := s.store.GetNote(ctx, s.consultationID)
	if err != nil {
		return &domain.PersistenceError{Op: "load note", Err: err}
	}
	if saved == nil {
		return nil
	}

	s.mu.Lock()
	s.note = *saved
	s.mu.Unlock()
	return nil
}

// Generate sends the transcript to the generation service and replaces the
// in-memory note with the returned sections. A failed generation never
// touches previously saved note state.
func (s *Synthesizer) Generate(ctx context.Context, messages []domain.TranscriptMessage) (domain.ClinicalNote, error) {
	if len(messages) == 0 {
		return domain.ClinicalNote{}, domain.ErrEmptyTranscript
	}

	generated, err := s.gen.Generate(ctx, domain.PromptText(messages))
	if err != nil {
		s.events.PipelineError(s.consultationID, domain.ErrorCodeGeneration, err.Error())
		return domain.ClinicalNote{}, err
	}

	s.mu.Lock()
	s.note = generated
	s.dirty = true
	s.mu.Unlock()

	s.debounced(s.flush)
	return generated, nil
}

// ApplyEdit updates one section immediately and schedules a debounced write.
// Edits within the quiet window collapse into a single persisted write
// reflecting only the latest values.
func (s *Synthesizer) ApplyEdit(field domain.NoteField, text string) {
	if !domain.ValidNoteField(field) {
		return
	}

	s.mu.Lock()
	s.note.SetField(field, text)
	s.dirty = true
	s.mu.Unlock()

	s.debounced(s.flush)
}

// Save forces an immediate write bypassing the debounce window.
func (s *Synthesizer) Save(ctx context.Context) error {
	s.mu.Lock()
	note := s.note
	s.mu.Unlock()

	if err := s.store.UpsertNote(ctx, s.consultationID, note); err != nil {
		perr := &domain.PersistenceError{Op: "save note", Err: err}
		s.events.PipelineError(s.consultationID, domain.ErrorCodePersistence, perr.Error())
		return perr
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	s.events.NoteSaved(s.consultationID, note)
	return nil
}

// Note returns the current in-memory note.
func (s *Synthesizer) Note() domain.ClinicalNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note
}

// Close stops future debounced writes; in-flight edits are abandoned.
func (s *Synthesizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// flush runs on the debounce timer. A persistence failure is surfaced but
// keeps the note dirty; the in-memory edits stay authoritative.
func (s *Synthesizer) flush() {
	s.mu.Lock()
	if s.closed || !s.dirty {
		s.mu.Unlock()
		return
	}
	note := s.note
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := s.store.UpsertNote(ctx, s.consultationID, note); err != nil {
		slog.Warn("note autosave failed", "consultation_id", s.consultationID, "error", err)
		s.events.PipelineError(s.consultationID, domain.ErrorCodePersistence, err.Error())
		return
	}

	// Close may have raced in while the write was in flight; a closed
	// synthesizer emits nothing.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.note == note {
		s.dirty = false
	}
	s.mu.Unlock()

	s.events.NoteSaved(s.consultationID, note)
}
