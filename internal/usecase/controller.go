package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"visitscribe/internal/domain"
	"visitscribe/internal/ports"
)

// Transcriber converts a finished audio buffer into transcript messages.
// priorCount is the number of messages already on the consultation transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, priorCount int) ([]domain.TranscriptMessage, error)
}

// Config controls capture behavior for a recording session.
type Config struct {
	Audio ports.AudioConfig
}

// SessionController drives the recording lifecycle of one consultation:
// idle, recording, paused, processing, error. Transitions outside the
// lifecycle graph are rejected with domain.ErrInvalidTransition.
type SessionController struct {
	consultationID string
	audio          ports.AudioCapture
	transcriber    Transcriber
	store          ports.RecordStore
	events         ports.EventSink
	clk            clock.Clock
	cfg            Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    domain.RecordingState
	starting bool
	session  ports.CaptureSession
	started  *time.Time
	elapsed  int64
	message  string
	tickStop chan struct{}
	closed   bool

	processing sync.WaitGroup
}

func NewSessionController(
	consultationID string,
	audio ports.AudioCapture,
	transcriber Transcriber,
	store ports.RecordStore,
	events ports.EventSink,
	clk clock.Clock,
	cfg Config,
) *SessionController {
	if clk == nil {
		clk = clock.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionController{
		consultationID: consultationID,
		audio:          audio,
		transcriber:    transcriber,
		store:          store,
		events:         events,
		clk:            clk,
		cfg:            cfg,
		ctx:            ctx,
		cancel:         cancel,
		state:          domain.StateIdle,
	}
}

// Start opens microphone capture and moves the session to recording. A
// session in the error state must be Reset first. The starting flag is
// claimed under the lock before the capture call so a second concurrent
// Start cannot pass the idle gate and open a second device session.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if c.state != domain.StateIdle || c.starting {
		state := c.state
		c.mu.Unlock()
		return transitionErr("start", state)
	}
	c.starting = true
	c.mu.Unlock()

	session, err := c.audio.Start(c.ctx, c.cfg.Audio)
	if err != nil {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
		c.events.PipelineError(c.consultationID, domain.ErrorCodeCapture, err.Error())
		return err
	}

	now := c.clk.Now()
	stop := make(chan struct{})

	c.mu.Lock()
	c.starting = false
	if c.closed {
		c.mu.Unlock()
		_, _ = session.Stop()
		return domain.ErrInvalidTransition
	}
	c.state = domain.StateRecording
	c.session = session
	c.started = &now
	c.elapsed = 0
	c.message = ""
	c.tickStop = stop
	c.mu.Unlock()

	go c.tickDuration(stop)

	c.events.SessionStateChanged(c.consultationID, domain.StateRecording, domain.ReasonRecordingStarted)
	return nil
}

// Pause suspends capture without releasing the device. Pausing an already
// paused session is a no-op.
func (c *SessionController) Pause() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	switch c.state {
	case domain.StatePaused:
		c.mu.Unlock()
		return nil
	case domain.StateRecording:
	default:
		state := c.state
		c.mu.Unlock()
		return transitionErr("pause", state)
	}
	session := c.session
	c.mu.Unlock()

	// The session call runs outside the lock; the state flip commits only
	// after it succeeds, and only if the session is still the current one.
	if err := session.Pause(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || c.state != domain.StateRecording || c.session != session {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.StatePaused
	c.mu.Unlock()

	c.events.SessionStateChanged(c.consultationID, domain.StatePaused, domain.ReasonRecordingPaused)
	return nil
}

// Resume continues a paused recording. Resuming an active recording is a
// no-op.
func (c *SessionController) Resume() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	switch c.state {
	case domain.StateRecording:
		c.mu.Unlock()
		return nil
	case domain.StatePaused:
	default:
		state := c.state
		c.mu.Unlock()
		return transitionErr("resume", state)
	}
	session := c.session
	c.mu.Unlock()

	if err := session.Resume(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || c.state != domain.StatePaused || c.session != session {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.StateRecording
	c.mu.Unlock()

	c.events.SessionStateChanged(c.consultationID, domain.StateRecording, domain.ReasonRecordingResumed)
	return nil
}

// Stop ends capture and hands the buffer to the transcription pipeline. The
// session reports processing until the transcript lands (or fails); an empty
// buffer returns the session straight to idle.
func (c *SessionController) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	switch c.state {
	case domain.StateRecording, domain.StatePaused:
	default:
		state := c.state
		c.mu.Unlock()
		return transitionErr("stop", state)
	}
	session := c.session
	c.session = nil
	c.state = domain.StateProcessing
	c.stopTickerLocked()
	c.mu.Unlock()

	c.events.SessionStateChanged(c.consultationID, domain.StateProcessing, domain.ReasonTranscribing)

	audio, err := session.Stop()
	if err != nil {
		c.events.PipelineError(c.consultationID, domain.ErrorCodeCapture, err.Error())
		c.finish(domain.StateError, domain.ReasonCaptureFailed, err.Error())
		return err
	}
	if len(audio) == 0 {
		c.finish(domain.StateIdle, domain.ReasonNoAudioCaptured, "no audio captured")
		return nil
	}

	c.processing.Add(1)
	go c.process(audio)
	return nil
}

// Reset clears the error state so a new recording can start.
func (c *SessionController) Reset() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if c.state != domain.StateError {
		state := c.state
		c.mu.Unlock()
		return transitionErr("reset", state)
	}
	c.state = domain.StateIdle
	c.message = ""
	c.started = nil
	c.elapsed = 0
	c.mu.Unlock()

	c.events.SessionStateChanged(c.consultationID, domain.StateIdle, domain.ReasonSessionReset)
	return nil
}

// Status reports the current state, one-second-resolution recording
// duration, and the last pipeline message.
func (c *SessionController) Status() domain.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.SessionStatus{
		State:           c.state,
		DurationSeconds: c.elapsed,
		StartedAt:       c.started,
		Message:         c.message,
	}
}

// Close tears the session down: any live capture is discarded, in-flight
// processing is cancelled and awaited, and no state or event is emitted
// afterwards.
func (c *SessionController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	session := c.session
	c.session = nil
	c.stopTickerLocked()
	c.mu.Unlock()

	c.cancel()
	if session != nil {
		if _, err := session.Stop(); err != nil {
			slog.Warn("discarding capture on close failed", "consultation_id", c.consultationID, "error", err)
		}
	}
	c.processing.Wait()
}

func (c *SessionController) process(audio []byte) {
	defer c.processing.Done()

	prior := c.loadPrior()

	messages, err := c.transcriber.Transcribe(c.ctx, audio, len(prior))
	if err != nil {
		c.events.PipelineError(c.consultationID, domain.ErrorCodeTranscription, err.Error())
		c.finish(domain.StateError, domain.ReasonTranscriptionFailed, err.Error())
		return
	}
	if len(messages) == 0 {
		c.finish(domain.StateIdle, domain.ReasonNoAudioCaptured, "no speech detected")
		return
	}

	// Subscribers get the full ordered transcript even if persistence
	// fails; the failure is surfaced as its own pipeline error.
	combined := append(prior, messages...)
	c.events.TranscriptAppended(c.consultationID, combined)

	if err := c.store.SetTranscript(c.ctx, c.consultationID, domain.FormatTranscript(combined)); err != nil {
		perr := &domain.PersistenceError{Op: "set transcript", Err: err}
		c.events.PipelineError(c.consultationID, domain.ErrorCodePersistence, perr.Error())
		slog.Error("transcript persistence failed", "consultation_id", c.consultationID, "error", err)
	}

	c.finish(domain.StateIdle, domain.ReasonTranscriptReady, "")
}

func (c *SessionController) loadPrior() []domain.TranscriptMessage {
	raw, err := c.store.GetTranscript(c.ctx, c.consultationID)
	if err != nil {
		slog.Warn("loading prior transcript failed", "consultation_id", c.consultationID, "error", err)
		return nil
	}
	return domain.ParseTranscript(raw)
}

func (c *SessionController) finish(state domain.RecordingState, reason domain.StateReason, message string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.message = message
	c.mu.Unlock()

	c.events.SessionStateChanged(c.consultationID, state, reason)
}

// tickDuration advances the visible recording duration once per second,
// counting only time spent in the recording state.
func (c *SessionController) tickDuration(stop chan struct{}) {
	ticker := c.clk.Ticker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state == domain.StateRecording {
				c.elapsed++
			}
			c.mu.Unlock()
		}
	}
}

func (c *SessionController) stopTickerLocked() {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

func transitionErr(op string, from domain.RecordingState) error {
	return fmt.Errorf("%w: cannot %s from %s", domain.ErrInvalidTransition, op, from)
}
