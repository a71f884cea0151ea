package ports

import (
	"context"

	"visitscribe/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// CaptureSession is a live microphone capture accumulating audio segments.
// Pause and Resume are idempotent no-ops outside the recording and paused
// states respectively. Stop flushes buffered segments into a single buffer
// and releases the device; stopping a session that is not recording returns
// an empty buffer.
type CaptureSession interface {
	Pause() error
	Resume() error
	Stop() ([]byte, error)
}

// AudioCapture opens microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (CaptureSession, error)
}

// UploadStore receives a finished audio buffer and returns a public URL.
type UploadStore interface {
	Upload(ctx context.Context, audio []byte) (string, error)
}

// TranscriptionService is the remote speech-to-text job API, polled until a
// terminal status.
type TranscriptionService interface {
	CreateJob(ctx context.Context, audioURL string) (string, error)
	GetJob(ctx context.Context, jobID string) (domain.TranscriptionJob, error)
}

// NoteGenerator turns flattened transcript text into the four SOAP sections.
// Any other response shape is a contract violation reported as a
// *domain.GenerationError.
type NoteGenerator interface {
	Generate(ctx context.Context, promptText string) (domain.ClinicalNote, error)
}

// RecordStore persists notes and transcripts keyed by consultation id.
type RecordStore interface {
	GetNote(ctx context.Context, consultationID string) (*domain.ClinicalNote, error)
	UpsertNote(ctx context.Context, consultationID string, note domain.ClinicalNote) error
	GetTranscript(ctx context.Context, consultationID string) (string, error)
	SetTranscript(ctx context.Context, consultationID string, text string) error
}

// PatientContextProvider looks up read-only patient background.
type PatientContextProvider interface {
	GetPatientContext(ctx context.Context, consultationID string) (*domain.PatientContext, error)
}

// EventSink receives typed pipeline events for any presentation layer.
// TranscriptAppended carries the full ordered transcript after a successful
// transcription run.
type EventSink interface {
	SessionStateChanged(consultationID string, state domain.RecordingState, reason domain.StateReason)
	TranscriptAppended(consultationID string, messages []domain.TranscriptMessage)
	NoteSaved(consultationID string, note domain.ClinicalNote)
	PipelineError(consultationID string, code domain.ErrorCode, detail string)
}
