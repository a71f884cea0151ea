package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"visitscribe/internal/notes"
	"visitscribe/internal/ports"
)

// Pipeline bundles the per-consultation recording session and note
// synthesizer.
type Pipeline struct {
	Session *SessionController
	Notes   *notes.Synthesizer
}

// ManagerDeps are the shared collaborators each pipeline is built from.
type ManagerDeps struct {
	Audio         ports.AudioCapture
	Transcriber   Transcriber
	Generator     ports.NoteGenerator
	Store         ports.RecordStore
	Events        ports.EventSink
	Clock         clock.Clock
	Capture       Config
	AutosaveQuiet time.Duration
}

// Manager creates and caches one pipeline per consultation.
type Manager struct {
	deps ManagerDeps

	mu        sync.Mutex
	pipelines map[string]*Pipeline
}

func NewManager(deps ManagerDeps) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Manager{deps: deps, pipelines: make(map[string]*Pipeline)}
}

// Get returns the pipeline for a consultation, creating it on first use and
// loading any previously saved note.
func (m *Manager) Get(ctx context.Context, consultationID string) (*Pipeline, error) {
	m.mu.Lock()
	if p, ok := m.pipelines[consultationID]; ok {
		m.mu.Unlock()
		return p, nil
	}
	m.mu.Unlock()

	synth := notes.NewSynthesizer(m.deps.Generator, m.deps.Store, m.deps.Events, consultationID, m.deps.AutosaveQuiet)
	if err := synth.Load(ctx); err != nil {
		synth.Close()
		return nil, err
	}

	p := &Pipeline{
		Session: NewSessionController(
			consultationID,
			m.deps.Audio,
			m.deps.Transcriber,
			m.deps.Store,
			m.deps.Events,
			m.deps.Clock,
			m.deps.Capture,
		),
		Notes: synth,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pipelines[consultationID]; ok {
		p.Session.Close()
		p.Notes.Close()
		return existing, nil
	}
	m.pipelines[consultationID] = p
	return p, nil
}

// Close tears down every pipeline.
func (m *Manager) Close() {
	m.mu.Lock()
	pipelines := m.pipelines
	m.pipelines = make(map[string]*Pipeline)
	m.mu.Unlock()

	for _, p := range pipelines {
		p.Session.Close()
		p.Notes.Close()
	}
}
