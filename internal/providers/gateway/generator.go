// Package gateway binds the note generator port to an OpenAI-compatible
// chat-completions gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"visitscribe/internal/domain"
)

const requestTimeout = 2 * time.Minute

const systemPrompt = `You are a medical documentation assistant specialized in creating SOAP notes for epilepsy consultations.
Generate structured, professional SOAP notes from consultation transcripts.

Return ONLY a JSON object with these exact fields:
- subjective: Patient's reported symptoms, concerns, and history
- objective: Observable findings, vital signs, examination results
- assessment: Medical assessment and diagnosis
- plan: Treatment plan, medications, follow-up instructions

Keep medical terminology accurate and professional.`

// Config controls the gateway binding.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
}

type Generator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewGenerator(cfg Config) *Generator {
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://ai.gateway.lovable.dev/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "google/gemini-2.5-flash"
	}
	return &Generator{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Generate sends the flattened transcript and expects exactly the four SOAP
// sections back. Every failure mode maps to *domain.GenerationError.
func (g *Generator) Generate(ctx context.Context, promptText string) (domain.ClinicalNote, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "not_configured", Message: "gateway api key is not configured"}
	}

	payload := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": "Generate SOAP notes from this consultation transcript:\n\n" + promptText},
		},
		"temperature": 0.3,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "encode", Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", buf)
	if err != nil {
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "request", Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "transport", Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "rate_limited", Message: "rate limit exceeded, try again later"}
	case resp.StatusCode == http.StatusPaymentRequired:
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "payment_required", Message: "credits exhausted"}
	case resp.StatusCode >= http.StatusBadRequest:
		return domain.ClinicalNote{}, &domain.GenerationError{
			Code:    fmt.Sprintf("status_%d", resp.StatusCode),
			Message: "generation service rejected the request",
		}
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "bad_response", Message: "undecodable response body"}
	}
	if len(response.Choices) == 0 {
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "bad_response", Message: "no choices returned"}
	}

	return parseNote(response.Choices[0].Message.Content)
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseNote extracts the four-field JSON object, tolerating markdown code
// fences around it. Any other shape is a contract violation.
func parseNote(content string) (domain.ClinicalNote, error) {
	trimmed := strings.TrimSpace(content)
	if match := codeFence.FindStringSubmatch(trimmed); match != nil {
		trimmed = strings.TrimSpace(match[1])
	}

	var note struct {
		Subjective *string `json:"subjective"`
		Objective  *string `json:"objective"`
		Assessment *string `json:"assessment"`
		Plan       *string `json:"plan"`
	}
	if err := json.Unmarshal([]byte(trimmed), &note); err != nil {
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "bad_response", Message: "response is not a JSON note"}
	}
	if note.Subjective == nil || note.Objective == nil || note.Assessment == nil || note.Plan == nil {
		return domain.ClinicalNote{}, &domain.GenerationError{Code: "bad_response", Message: "response is missing note sections"}
	}

	return domain.ClinicalNote{
		Subjective: strings.TrimSpace(*note.Subjective),
		Objective:  strings.TrimSpace(*note.Objective),
		Assessment: strings.TrimSpace(*note.Assessment),
		Plan:       strings.TrimSpace(*note.Plan),
	}, nil
}
