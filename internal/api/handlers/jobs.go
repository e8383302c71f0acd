package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/design2code/internal/cache"
	"github.com/nikhilbhutani/design2code/internal/prompt"
	"github.com/nikhilbhutani/design2code/internal/queue"
)

type Enqueuer interface {
	EnqueueCodegen(payload queue.CodegenPayload) error
}

type JobsHandler struct {
	queue  Enqueuer
	jobs   *cache.JobStore
	logger *slog.Logger
}

func NewJobsHandler(q Enqueuer, jobs *cache.JobStore, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{queue: q, jobs: jobs, logger: logger}
}

type createJobRequest struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text input is required")
		return
	}
	source := prompt.SourceText
	if prompt.Source(req.Source) == prompt.SourceVoice {
		source = prompt.SourceVoice
	}

	id := uuid.NewString()
	if err := h.jobs.MarkQueued(r.Context(), id); err != nil {
		writeInternal(w, h.logger, err)
		return
	}
	err := h.queue.EnqueueCodegen(queue.CodegenPayload{
		JobID:       id,
		Source:      string(source),
		Description: req.Text,
		Prompt:      req.Prompt,
		Provider:    req.Provider,
		Model:       req.Model,
	})
	if err != nil {
		h.jobs.MarkFailed(r.Context(), id, err)
		writeInternal(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(cache.JobQueued)})
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	res, err := h.jobs.Get(r.Context(), id)
	switch {
	case errors.Is(err, cache.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case err != nil:
		writeInternal(w, h.logger, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
