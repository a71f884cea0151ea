package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visitscribe/internal/domain"
	"visitscribe/internal/export"
	"visitscribe/internal/insights"
	"visitscribe/internal/ports"
	"visitscribe/internal/usecase"
)

// Store is the persistence surface the API needs.
type Store interface {
	ports.RecordStore
	ports.PatientContextProvider
	CreateConsultation(ctx context.Context, patient domain.PatientContext) (string, error)
}

type API struct {
	store    Store
	sessions *usecase.Manager
	engine   *insights.Engine
	hub      *Hub
}

func NewAPI(store Store, sessions *usecase.Manager, engine *insights.Engine, hub *Hub) *API {
	return &API{store: store, sessions: sessions, engine: engine, hub: hub}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.POST("/consultations", api.handleCreateConsultation)
		apiGroup.GET("/consultations/:id/status", api.handleStatus)

		apiGroup.POST("/consultations/:id/recording/start", api.handleRecordingStart)
		apiGroup.POST("/consultations/:id/recording/pause", api.handleRecordingPause)
		apiGroup.POST("/consultations/:id/recording/resume", api.handleRecordingResume)
		apiGroup.POST("/consultations/:id/recording/stop", api.handleRecordingStop)
		apiGroup.POST("/consultations/:id/recording/reset", api.handleRecordingReset)

		apiGroup.GET("/consultations/:id/transcript", api.handleGetTranscript)

		apiGroup.GET("/consultations/:id/note", api.handleGetNote)
		apiGroup.PATCH("/consultations/:id/note", api.handleEditNote)
		apiGroup.POST("/consultations/:id/note/save", api.handleSaveNote)
		apiGroup.POST("/consultations/:id/note/generate", api.handleGenerateNote)
		apiGroup.GET("/consultations/:id/note/pdf", api.handleNotePDF)

		apiGroup.GET("/consultations/:id/insights", api.handleInsights)
		apiGroup.GET("/consultations/:id/patient", api.handleGetPatient)

		apiGroup.GET("/events", api.hub.HandleWS)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleCreateConsultation(c *gin.Context) {
	var payload struct {
		FullName           string   `json:"fullName" binding:"required"`
		Diagnosis          string   `json:"diagnosis"`
		Allergies          []string `json:"allergies"`
		CurrentMedications string   `json:"currentMedications"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	id, err := a.store.CreateConsultation(c.Request.Context(), domain.PatientContext{
		FullName:           payload.FullName,
		Diagnosis:          payload.Diagnosis,
		Allergies:          payload.Allergies,
		CurrentMedications: payload.CurrentMedications,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (a *API) handleStatus(c *gin.Context) {
	pipeline, ok := a.pipeline(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, pipeline.Session.Status())
}

func (a *API) handleRecordingStart(c *gin.Context) {
	a.recordingOp(c, func(p *usecase.Pipeline) error {
		return p.Session.Start(c.Request.Context())
	})
}

func (a *API) handleRecordingPause(c *gin.Context) {
	a.recordingOp(c, func(p *usecase.Pipeline) error {
		return p.Session.Pause()
	})
}

func (a *API) handleRecordingResume(c *gin.Context) {
	a.recordingOp(c, func(p *usecase.Pipeline) error {
		return p.Session.Resume()
	})
}

func (a *API) handleRecordingStop(c *gin.Context) {
	a.recordingOp(c, func(p *usecase.Pipeline) error {
		return p.Session.Stop(c.Request.Context())
	})
}

func (a *API) handleRecordingReset(c *gin.Context) {
	a.recordingOp(c, func(p *usecase.Pipeline) error {
		return p.Session.Reset()
	})
}

func (a *API) recordingOp(c *gin.Context, op func(*usecase.Pipeline) error) {
	pipeline, ok := a.pipeline(c)
	if !ok {
		return
	}
	if err := op(pipeline); err != nil {
		respondError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, pipeline.Session.Status())
}

func (a *API) handleGetTranscript(c *gin.Context) {
	raw, err := a.store.GetTranscript(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	messages := domain.ParseTranscript(raw)
	if messages == nil {
		messages = []domain.TranscriptMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (a *API) handleGetNote(c *gin.Context) {
	pipeline, ok := a.pipeline(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, pipeline.Notes.Note())
}

func (a *API) handleEditNote(c *gin.Context) {
	var payload struct {
		Field domain.NoteField `json:"field" binding:"required"`
		Text  string           `json:"text"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if !domain.ValidNoteField(payload.Field) {
		respondMessage(c, http.StatusBadRequest, fmt.Sprintf("unknown note field %q", payload.Field))
		return
	}

	pipeline, ok := a.pipeline(c)
	if !ok {
		return
	}
	pipeline.Notes.ApplyEdit(payload.Field, payload.Text)
	c.JSON(http.StatusOK, pipeline.Notes.Note())
}

func (a *API) handleSaveNote(c *gin.Context) {
	pipeline, ok := a.pipeline(c)
	if !ok {
		return
	}
	if err := pipeline.Notes.Save(c.Request.Context()); err != nil {
		respondError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, pipeline.Notes.Note())
}

func (a *API) handleGenerateNote(c *gin.Context) {
	pipeline, ok := a.pipeline(c)
	if !ok {
		return
	}

	raw, err := a.store.GetTranscript(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	note, err := pipeline.Notes.Generate(c.Request.Context(), domain.ParseTranscript(raw))
	if err != nil {
		respondError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (a *API) handleNotePDF(c *gin.Context) {
	pipeline, ok := a.pipeline(c)
	if !ok {
		return
	}

	patient, err := a.store.GetPatientContext(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	data, err := export.NotePDF(pipeline.Notes.Note(), patient, time.Now())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=consultation-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (a *API) handleInsights(c *gin.Context) {
	pipeline, ok := a.pipeline(c)
	if !ok {
		return
	}

	var patient domain.PatientContext
	if p, err := a.store.GetPatientContext(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	} else if p != nil {
		patient = *p
	}

	result := a.engine.Evaluate(pipeline.Notes.Note(), patient)
	c.JSON(http.StatusOK, gin.H{"insights": result})
}

func (a *API) handleGetPatient(c *gin.Context) {
	patient, err := a.store.GetPatientContext(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if patient == nil {
		respondMessage(c, http.StatusNotFound, "consultation not found")
		return
	}
	c.JSON(http.StatusOK, patient)
}

func (a *API) pipeline(c *gin.Context) (*usecase.Pipeline, bool) {
	pipeline, err := a.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return nil, false
	}
	return pipeline, true
}

func statusForError(err error) int {
	var gerr *domain.GenerationError
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTranscriptionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusServiceUnavailable
	case errors.As(err, &gerr):
		switch gerr.Code {
		case "rate_limited":
			return http.StatusTooManyRequests
		case "payment_required":
			return http.StatusPaymentRequired
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
