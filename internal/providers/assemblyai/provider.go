// Package assemblyai binds the upload store and transcription service ports
// to the AssemblyAI v2 HTTP API.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"visitscribe/internal/domain"
)

const requestTimeout = 2 * time.Minute

// Config controls the AssemblyAI binding.
type Config struct {
	APIKey     string
	APIBaseURL string
}

type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewProvider(cfg Config) *Provider {
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.assemblyai.com/v2"
	}
	return &Provider{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Upload pushes raw audio bytes and returns the service-hosted URL.
func (p *Provider) Upload(ctx context.Context, audio []byte) (string, error) {
	if err := p.ensureAPIKey(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", p.decodeAPIError(resp)
	}

	var payload struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return payload.UploadURL, nil
}

// CreateJob requests a diarized transcription of the uploaded audio.
func (p *Provider) CreateJob(ctx context.Context, audioURL string) (string, error) {
	if err := p.ensureAPIKey(); err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{
		"audio_url":      audioURL,
		"speaker_labels": true,
	})
	if err != nil {
		return "", fmt.Errorf("encode job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create job request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", p.decodeAPIError(resp)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode job response: %w", err)
	}
	if payload.ID == "" {
		return "", errors.New("job response missing id")
	}
	return payload.ID, nil
}

// GetJob queries job status once and maps the response into the domain view.
func (p *Provider) GetJob(ctx context.Context, jobID string) (domain.TranscriptionJob, error) {
	if err := p.ensureAPIKey(); err != nil {
		return domain.TranscriptionJob{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return domain.TranscriptionJob{}, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.TranscriptionJob{}, fmt.Errorf("poll job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.TranscriptionJob{}, p.decodeAPIError(resp)
	}

	var payload struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		Text       string `json:"text"`
		Error      string `json:"error"`
		Utterances []struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
			Start   int64  `json:"start"`
		} `json:"utterances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.TranscriptionJob{}, fmt.Errorf("decode poll response: %w", err)
	}

	job := domain.TranscriptionJob{
		ID:      payload.ID,
		Status:  mapStatus(payload.Status),
		Text:    payload.Text,
		Failure: payload.Error,
	}
	for _, u := range payload.Utterances {
		job.Utterances = append(job.Utterances, domain.Utterance{
			Speaker:     u.Speaker,
			Text:        u.Text,
			StartMillis: u.Start,
		})
	}
	return job, nil
}

func mapStatus(status string) domain.JobStatus {
	switch status {
	case "queued":
		return domain.JobQueued
	case "processing":
		return domain.JobProcessing
	case "completed":
		return domain.JobCompleted
	case "error":
		return domain.JobError
	}
	return domain.JobProcessing
}

func (p *Provider) decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("assemblyai api error: status %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("assemblyai api error: status %d body %s", resp.StatusCode, string(body))
}

func (p *Provider) ensureAPIKey() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return errors.New("assemblyai api key is not configured")
	}
	return nil
}
