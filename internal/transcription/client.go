package transcription

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"visitscribe/internal/domain"
	"visitscribe/internal/ports"
)

const (
	defaultPollInterval = time.Second
	defaultTimeout      = 120 * time.Second
)

// JobHandle identifies a submitted transcription job.
type JobHandle struct {
	ID          string
	SubmittedAt time.Time
}

// Config controls the poll loop.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client uploads finished audio buffers and drives remote transcription jobs
// to a terminal status.
type Client struct {
	uploads ports.UploadStore
	service ports.TranscriptionService
	clk     clock.Clock
	cfg     Config
}

func NewClient(uploads ports.UploadStore, service ports.TranscriptionService, clk clock.Clock, cfg Config) *Client {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{uploads: uploads, service: service, clk: clk, cfg: cfg}
}

// Submit uploads the buffer and creates a remote job.
func (c *Client) Submit(ctx context.Context, audio []byte) (JobHandle, error) {
	audioURL, err := c.uploads.Upload(ctx, audio)
	if err != nil {
		return JobHandle{}, &domain.UploadError{Err: err}
	}

	jobID, err := c.service.CreateJob(ctx, audioURL)
	if err != nil {
		return JobHandle{}, &domain.JobSubmissionError{Err: err}
	}

	slog.Debug("transcription job submitted", "job_id", jobID)
	return JobHandle{ID: jobID, SubmittedAt: c.clk.Now()}, nil
}

// Poll queries the job status once; the caller drives repetition.
func (c *Client) Poll(ctx context.Context, handle JobHandle) (domain.TranscriptionJob, error) {
	return c.service.GetJob(ctx, handle.ID)
}

// Transcribe submits the buffer and polls on a fixed interval until the job
// is terminal, then normalizes the result into ordered transcript messages.
// priorCount seeds the speaker fallback for results without diarization.
func (c *Client) Transcribe(ctx context.Context, audio []byte, priorCount int) ([]domain.TranscriptMessage, error) {
	handle, err := c.Submit(ctx, audio)
	if err != nil {
		return nil, err
	}

	deadline := handle.SubmittedAt.Add(c.cfg.Timeout)
	for {
		job, err := c.Poll(ctx, handle)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case domain.JobCompleted:
			return Normalize(job, priorCount, handle.SubmittedAt), nil
		case domain.JobError:
			return nil, &domain.TranscriptionFailedError{JobID: handle.ID, Reason: job.Failure}
		}

		if !c.clk.Now().Before(deadline) {
			return nil, domain.ErrTranscriptionTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clk.After(c.cfg.PollInterval):
		}
	}
}

// Normalize converts a completed job into transcript messages. Diarized
// utterances keep their speaker labels and relative offsets; flat text
// becomes a single message attributed by message-count parity.
func Normalize(job domain.TranscriptionJob, priorCount int, submittedAt time.Time) []domain.TranscriptMessage {
	base := submittedAt.UnixMilli()

	if len(job.Utterances) > 0 {
		messages := make([]domain.TranscriptMessage, 0, len(job.Utterances))
		for _, u := range job.Utterances {
			text := strings.TrimSpace(u.Text)
			if text == "" {
				continue
			}
			messages = append(messages, domain.TranscriptMessage{
				Speaker:         domain.ParseSpeaker(u.Speaker),
				Text:            text,
				TimestampMillis: base + u.StartMillis,
			})
		}
		return messages
	}

	text := strings.TrimSpace(job.Text)
	if text == "" {
		return nil
	}
	return []domain.TranscriptMessage{{
		Speaker:         domain.FallbackSpeaker(priorCount),
		Text:            text,
		TimestampMillis: base,
	}}
}
