package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"visitscribe/internal/domain"
	"visitscribe/internal/ports"
)

// FFMPEGCapture records microphone PCM audio through an ffmpeg subprocess.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.CaptureSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &domain.DeviceError{Err: fmt.Errorf("create ffmpeg stdout pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return nil, &domain.DeviceError{Err: fmt.Errorf("start ffmpeg: %w", err)}
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if isPermissionDenied(detail) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPermissionDenied, detail)
		}
		if err != nil {
			return nil, &domain.DeviceError{Err: fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)}
		}
		return nil, &domain.DeviceError{Err: errors.New("ffmpeg exited before capture started")}
	case <-time.After(250 * time.Millisecond):
	}

	session := &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}
	session.readDone.Add(1)
	go session.readLoop()

	return session, nil
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	mu       sync.Mutex
	segments [][]byte
	paused   bool
	stopped  bool

	readDone sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// readLoop drains ffmpeg stdout into the segment buffer. Segments produced
// while paused are discarded so they never reach the transcript.
func (s *ffmpegSession) readLoop() {
	defer s.readDone.Done()

	buf := make([]byte, 4096)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			s.mu.Lock()
			if !s.paused && !s.stopped {
				segment := make([]byte, n)
				copy(segment, buf[:n])
				s.segments = append(s.segments, segment)
			}
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (s *ffmpegSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.paused {
		return nil
	}
	s.paused = true
	return nil
}

func (s *ffmpegSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.paused {
		return nil
	}
	s.paused = false
	return nil
}

func (s *ffmpegSession) Stop() ([]byte, error) {
	var buffer []byte

	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}
		s.readDone.Wait()

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
		if s.stopErr != nil {
			s.stopErr = &domain.DeviceError{Err: s.stopErr}
		}
	})

	s.mu.Lock()
	buffer = bytes.Join(s.segments, nil)
	s.segments = nil
	s.mu.Unlock()

	return buffer, s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func isPermissionDenied(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
