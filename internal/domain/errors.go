package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the microphone could not be acquired.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrEmptyTranscript means note generation was requested with no messages.
	ErrEmptyTranscript = errors.New("transcript is empty")

	// ErrTranscriptionTimeout means the poll loop hit its configured ceiling.
	ErrTranscriptionTimeout = errors.New("transcription timed out")

	// ErrInvalidTransition means an operation is not legal in the current state.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// DeviceError is any capture failure other than a permission problem.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("audio device error: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// UploadError means the audio buffer could not reach the upload store.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("audio upload failed: %v", e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// JobSubmissionError means the transcription job could not be created.
type JobSubmissionError struct {
	Err error
}

func (e *JobSubmissionError) Error() string { return fmt.Sprintf("job submission failed: %v", e.Err) }
func (e *JobSubmissionError) Unwrap() error { return e.Err }

// TranscriptionFailedError means the remote job reached its error state.
type TranscriptionFailedError struct {
	JobID  string
	Reason string
}

func (e *TranscriptionFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transcription job %s failed", e.JobID)
	}
	return fmt.Sprintf("transcription job %s failed: %s", e.JobID, e.Reason)
}

// GenerationError maps any note service failure, including contract
// violations in the response shape.
type GenerationError struct {
	Code    string
	Message string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("note generation failed (%s): %s", e.Code, e.Message)
}

// PersistenceError surfaces record store failures without aborting editing.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
