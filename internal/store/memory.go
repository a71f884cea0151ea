// Package store persists consultation records. Three backends share the same
// surface: postgres for deployments, sqlite for single-host installs, and an
// in-memory map for tests.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"visitscribe/internal/domain"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu          sync.Mutex
	notes       map[string]domain.ClinicalNote
	transcripts map[string]string
	patients    map[string]domain.PatientContext
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notes:       make(map[string]domain.ClinicalNote),
		transcripts: make(map[string]string),
		patients:    make(map[string]domain.PatientContext),
	}
}

// CreateConsultation registers a patient and returns a new consultation id.
func (s *MemoryStore) CreateConsultation(ctx context.Context, patient domain.PatientContext) (string, error) {
	consultationID := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[consultationID] = patient
	return consultationID, nil
}

func (s *MemoryStore) GetNote(ctx context.Context, consultationID string) (*domain.ClinicalNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[consultationID]
	if !ok {
		return nil, nil
	}
	return &note, nil
}

func (s *MemoryStore) UpsertNote(ctx context.Context, consultationID string, note domain.ClinicalNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[consultationID] = note
	return nil
}

func (s *MemoryStore) GetTranscript(ctx context.Context, consultationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcripts[consultationID], nil
}

func (s *MemoryStore) SetTranscript(ctx context.Context, consultationID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[consultationID] = text
	return nil
}

func (s *MemoryStore) GetPatientContext(ctx context.Context, consultationID string) (*domain.PatientContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patient, ok := s.patients[consultationID]
	if !ok {
		return nil, nil
	}
	return &patient, nil
}

// SetPatientContext seeds patient background for a consultation.
func (s *MemoryStore) SetPatientContext(consultationID string, patient domain.PatientContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[consultationID] = patient
}
