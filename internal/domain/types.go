package domain

import "time"

// RecordingState models the consultation recording lifecycle.
type RecordingState string

const (
	StateIdle       RecordingState = "idle"
	StateRecording  RecordingState = "recording"
	StatePaused     RecordingState = "paused"
	StateProcessing RecordingState = "processing"
	StateError      RecordingState = "error"
)

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonRecordingStarted    StateReason = "recording_started"
	ReasonRecordingPaused     StateReason = "recording_paused"
	ReasonRecordingResumed    StateReason = "recording_resumed"
	ReasonTranscribing        StateReason = "transcribing"
	ReasonTranscriptReady     StateReason = "transcript_ready"
	ReasonNoAudioCaptured     StateReason = "no_audio_captured"
	ReasonCaptureFailed       StateReason = "capture_failed"
	ReasonTranscriptionFailed StateReason = "transcription_failed"
	ReasonSessionReset        StateReason = "session_reset"
)

// ErrorCode identifies pipeline error origins for event subscribers.
type ErrorCode string

const (
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeGeneration    ErrorCode = "generation"
	ErrorCodePersistence   ErrorCode = "persistence"
)

// Speaker attributes an utterance to a party in the consultation.
type Speaker string

const (
	SpeakerDoctor  Speaker = "Doctor"
	SpeakerPatient Speaker = "Patient"
	SpeakerUnknown Speaker = "Unknown"
)

// TranscriptMessage is one speaker-attributed utterance. Messages are
// append-only within a session and timestamps are non-decreasing.
type TranscriptMessage struct {
	Speaker         Speaker `json:"speaker"`
	Text            string  `json:"text"`
	TimestampMillis int64   `json:"timestampMillis"`
}

// JobStatus is the remote transcription job lifecycle. Completed and
// JobError are terminal.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Terminal reports whether no further status transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// Utterance is a diarized segment as returned by the transcription service.
type Utterance struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	StartMillis int64  `json:"startMillis"`
}

// TranscriptionJob is the polled view of a remote transcription job. It is
// discarded once terminal; only the derived TranscriptMessages persist.
type TranscriptionJob struct {
	ID         string      `json:"id"`
	Status     JobStatus   `json:"status"`
	Text       string      `json:"text,omitempty"`
	Utterances []Utterance `json:"utterances,omitempty"`
	Failure    string      `json:"failure,omitempty"`
}

// NoteField names one of the four SOAP sections.
type NoteField string

const (
	FieldSubjective NoteField = "subjective"
	FieldObjective  NoteField = "objective"
	FieldAssessment NoteField = "assessment"
	FieldPlan       NoteField = "plan"
)

// ValidNoteField reports whether f names a SOAP section.
func ValidNoteField(f NoteField) bool {
	switch f {
	case FieldSubjective, FieldObjective, FieldAssessment, FieldPlan:
		return true
	}
	return false
}

// ClinicalNote is a SOAP note keyed 1:1 by consultation id.
type ClinicalNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// Field returns the named section.
func (n ClinicalNote) Field(f NoteField) string {
	switch f {
	case FieldSubjective:
		return n.Subjective
	case FieldObjective:
		return n.Objective
	case FieldAssessment:
		return n.Assessment
	case FieldPlan:
		return n.Plan
	}
	return ""
}

// SetField replaces the named section.
func (n *ClinicalNote) SetField(f NoteField, text string) {
	switch f {
	case FieldSubjective:
		n.Subjective = text
	case FieldObjective:
		n.Objective = text
	case FieldAssessment:
		n.Assessment = text
	case FieldPlan:
		n.Plan = text
	}
}

// Empty reports whether no section has content.
func (n ClinicalNote) Empty() bool {
	return n.Subjective == "" && n.Objective == "" && n.Assessment == "" && n.Plan == ""
}

// InsightKind classifies a clinical insight.
type InsightKind string

const (
	InsightWarning        InsightKind = "warning"
	InsightGuideline      InsightKind = "guideline"
	InsightRecommendation InsightKind = "recommendation"
	InsightInfo           InsightKind = "info"
)

// ClinicalInsight is one decision-support alert. Insight lists are recomputed
// whole, never mutated in place.
type ClinicalInsight struct {
	Kind    InsightKind `json:"kind"`
	Title   string      `json:"title"`
	Content string      `json:"content"`
}

// PatientContext is read-only patient background for insight evaluation.
type PatientContext struct {
	FullName           string   `json:"fullName"`
	Diagnosis          string   `json:"diagnosis,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
	CurrentMedications string   `json:"currentMedications,omitempty"`
}

// SessionStatus summarizes the recording session for API consumers.
type SessionStatus struct {
	State           RecordingState `json:"state"`
	DurationSeconds int64          `json:"durationSeconds"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	Message         string         `json:"message,omitempty"`
}
