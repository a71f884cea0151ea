package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"visitscribe/internal/domain"
	"visitscribe/internal/insights"
	"visitscribe/internal/ports"
	"visitscribe/internal/store"
	"visitscribe/internal/usecase"
)

func setupTestServer(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemoryStore()
	hub := NewHub()
	t.Cleanup(hub.Close)
	manager := usecase.NewManager(usecase.ManagerDeps{
		Audio: &fakeAudioCapture{},
		Transcriber: &fakeTranscriber{messages: []domain.TranscriptMessage{
			{Speaker: domain.SpeakerPatient, Text: "I had a seizure on Tuesday.", TimestampMillis: 1000},
		}},
		Generator:     &fakeGenerator{},
		Store:         mem,
		Events:        hub,
		AutosaveQuiet: 50 * time.Millisecond,
	})
	t.Cleanup(manager.Close)

	engine := gin.New()
	engine.Use(gin.Recovery())
	api := NewAPI(mem, manager, insights.NewEngine(), hub)
	registerRoutes(engine, api)

	return engine, mem
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func createConsultation(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/api/consultations",
		`{"fullName":"Jane Moreau","diagnosis":"Focal epilepsy","allergies":["penicillin"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create consultation = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.ID
}

func TestHealthHandler(t *testing.T) {
	engine, _ := setupTestServer(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRecordingLifecycleOverHTTP(t *testing.T) {
	engine, _ := setupTestServer(t)
	id := createConsultation(t, engine)

	rec := doJSON(t, engine, http.MethodGet, "/api/consultations/"+id+"/status", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"idle"`) {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	// Stopping before starting is rejected.
	rec = doJSON(t, engine, http.MethodPost, "/api/consultations/"+id+"/recording/stop", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("stop while idle = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/consultations/"+id+"/recording/start", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"recording"`) {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/consultations/"+id+"/recording/pause", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"paused"`) {
		t.Fatalf("pause = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/consultations/"+id+"/recording/resume", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resume = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/consultations/"+id+"/recording/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop = %d: %s", rec.Code, rec.Body.String())
	}

	// Transcription runs async after stop; poll until the transcript lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = doJSON(t, engine, http.MethodGet, "/api/consultations/"+id+"/transcript", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("transcript = %d: %s", rec.Code, rec.Body.String())
		}
		if strings.Contains(rec.Body.String(), "seizure on Tuesday") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transcript never appeared: %s", rec.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNoteEditValidation(t *testing.T) {
	engine, _ := setupTestServer(t)
	id := createConsultation(t, engine)

	rec := doJSON(t, engine, http.MethodPatch, "/api/consultations/"+id+"/note",
		`{"field":"impression","text":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad field = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPatch, "/api/consultations/"+id+"/note",
		`{"field":"plan","text":"Order EEG."}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Order EEG.") {
		t.Fatalf("edit = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/consultations/"+id+"/note", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Order EEG.") {
		t.Fatalf("get note = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateNoteRequiresTranscript(t *testing.T) {
	engine, _ := setupTestServer(t)
	id := createConsultation(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/consultations/"+id+"/note/generate", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("generate without transcript = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateNoteFromTranscript(t *testing.T) {
	engine, mem := setupTestServer(t)
	id := createConsultation(t, engine)

	messages := []domain.TranscriptMessage{
		{Speaker: domain.SpeakerPatient, Text: "I had a seizure.", TimestampMillis: 100},
	}
	if err := mem.SetTranscript(context.Background(), id, domain.FormatTranscript(messages)); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}

	rec := doJSON(t, engine, http.MethodPost, "/api/consultations/"+id+"/note/generate", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Reported seizure") {
		t.Fatalf("generate = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInsightsEndpoint(t *testing.T) {
	engine, _ := setupTestServer(t)
	id := createConsultation(t, engine)

	rec := doJSON(t, engine, http.MethodPatch, "/api/consultations/"+id+"/note",
		`{"field":"subjective","text":"One seizure last week."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/consultations/"+id+"/insights", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("insights = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Insights []domain.ClinicalInsight `json:"insights"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Insights) != 1 || body.Insights[0].Kind != domain.InsightGuideline {
		t.Fatalf("insights = %+v", body.Insights)
	}
}

func TestPatientContextEndpoint(t *testing.T) {
	engine, _ := setupTestServer(t)
	id := createConsultation(t, engine)

	rec := doJSON(t, engine, http.MethodGet, "/api/consultations/"+id+"/patient", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Jane Moreau") {
		t.Fatalf("patient = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/consultations/unknown/patient", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown consultation = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNotePDFEndpoint(t *testing.T) {
	engine, _ := setupTestServer(t)
	id := createConsultation(t, engine)

	rec := doJSON(t, engine, http.MethodGet, "/api/consultations/"+id+"/note/pdf", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatal("body is not a pdf")
	}
}

type fakeCaptureSession struct{}

func (fakeCaptureSession) Pause() error          { return nil }
func (fakeCaptureSession) Resume() error         { return nil }
func (fakeCaptureSession) Stop() ([]byte, error) { return []byte("pcm"), nil }

type fakeAudioCapture struct{}

func (fakeAudioCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.CaptureSession, error) {
	return fakeCaptureSession{}, nil
}

type fakeTranscriber struct {
	messages []domain.TranscriptMessage
	err      error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, priorCount int) ([]domain.TranscriptMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

type fakeGenerator struct {
	err error
}

func (f *fakeGenerator) Generate(ctx context.Context, promptText string) (domain.ClinicalNote, error) {
	if f.err != nil {
		return domain.ClinicalNote{}, f.err
	}
	if strings.TrimSpace(promptText) == "" {
		return domain.ClinicalNote{}, errors.New("empty prompt")
	}
	return domain.ClinicalNote{
		Subjective: "Reported seizure activity.",
		Objective:  "Well appearing.",
		Assessment: "Breakthrough seizure.",
		Plan:       "Continue regimen.",
	}, nil
}
