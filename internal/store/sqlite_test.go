package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"visitscribe/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "visitscribe.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteNoteUpsertAndFetch(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConsultation(ctx, domain.PatientContext{FullName: "Jane Moreau"})
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}

	if note, err := s.GetNote(ctx, id); err != nil || note != nil {
		t.Fatalf("fresh consultation note = %+v, err %v", note, err)
	}

	first := domain.ClinicalNote{Subjective: "Seizure last week.", Plan: "Continue regimen."}
	if err := s.UpsertNote(ctx, id, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second := first
	second.Plan = "Order EEG."
	if err := s.UpsertNote(ctx, id, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetNote(ctx, id)
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if got == nil || *got != second {
		t.Fatalf("note = %+v, want %+v", got, second)
	}
}

func TestSQLiteTranscriptRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConsultation(ctx, domain.PatientContext{FullName: "Jane Moreau"})
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}

	if body, err := s.GetTranscript(ctx, id); err != nil || body != "" {
		t.Fatalf("fresh transcript = %q, err %v", body, err)
	}

	messages := []domain.TranscriptMessage{
		{Speaker: domain.SpeakerDoctor, Text: "How are you?", TimestampMillis: 100},
		{Speaker: domain.SpeakerPatient, Text: "Better.", TimestampMillis: 2500},
	}
	if err := s.SetTranscript(ctx, id, domain.FormatTranscript(messages)); err != nil {
		t.Fatalf("set transcript: %v", err)
	}

	body, err := s.GetTranscript(ctx, id)
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	if got := domain.ParseTranscript(body); !reflect.DeepEqual(got, messages) {
		t.Fatalf("round trip = %+v, want %+v", got, messages)
	}
}

func TestSQLitePatientContext(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	patient := domain.PatientContext{
		FullName:           "Jane Moreau",
		Diagnosis:          "Focal epilepsy",
		Allergies:          []string{"penicillin", "latex"},
		CurrentMedications: "levetiracetam 500 mg BID",
	}
	id, err := s.CreateConsultation(ctx, patient)
	if err != nil {
		t.Fatalf("create consultation: %v", err)
	}

	got, err := s.GetPatientContext(ctx, id)
	if err != nil {
		t.Fatalf("get patient context: %v", err)
	}
	if got == nil || !reflect.DeepEqual(*got, patient) {
		t.Fatalf("patient = %+v, want %+v", got, patient)
	}

	if missing, err := s.GetPatientContext(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("unknown consultation = %+v, err %v", missing, err)
	}
}
