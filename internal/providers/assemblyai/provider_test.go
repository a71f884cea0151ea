package assemblyai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"visitscribe/internal/domain"
)

func TestUploadReturnsHostedURL(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("missing api key header")
		}
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio-1"})
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "test-key", APIBaseURL: server.URL})
	url, err := provider.Upload(context.Background(), []byte("pcm"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if url != "https://cdn.example/audio-1" {
		t.Fatalf("unexpected url: %q", url)
	}
}

func TestUploadNonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad key"})
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "test-key", APIBaseURL: server.URL})
	_, err := provider.Upload(context.Background(), []byte("pcm"))
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestCreateJobRequestsSpeakerLabels(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["audio_url"] != "https://cdn.example/audio-1" {
			t.Errorf("unexpected audio_url: %v", payload["audio_url"])
		}
		if payload["speaker_labels"] != true {
			t.Errorf("diarization not requested")
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "job-9", "status": "queued"})
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "test-key", APIBaseURL: server.URL})
	id, err := provider.CreateJob(context.Background(), "https://cdn.example/audio-1")
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	if id != "job-9" {
		t.Fatalf("unexpected job id: %q", id)
	}
}

func TestGetJobMapsStatusAndUtterances(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/transcript/job-9") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "job-9",
			"status": "completed",
			"text":   "How are you? Fine.",
			"utterances": []map[string]any{
				{"speaker": "A", "text": "How are you?", "start": 120},
				{"speaker": "B", "text": "Fine.", "start": 2400},
			},
		})
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "test-key", APIBaseURL: server.URL})
	job, err := provider.GetJob(context.Background(), "job-9")
	if err != nil {
		t.Fatalf("get job failed: %v", err)
	}
	if job.Status != domain.JobCompleted {
		t.Fatalf("unexpected status: %s", job.Status)
	}
	if len(job.Utterances) != 2 || job.Utterances[1].StartMillis != 2400 {
		t.Fatalf("utterances not mapped: %+v", job.Utterances)
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Parallel()

	provider := NewProvider(Config{})
	if _, err := provider.Upload(context.Background(), nil); err == nil {
		t.Fatalf("expected missing key error")
	}
}
