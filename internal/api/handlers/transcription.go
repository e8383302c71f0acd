package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/design2code/internal/session"
)

// SessionController is the live transcription session.
type SessionController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
	Status() session.Status
}

type TranscriptionHandler struct {
	sessions SessionController
	logger   *slog.Logger
}

func NewTranscriptionHandler(s SessionController, logger *slog.Logger) *TranscriptionHandler {
	return &TranscriptionHandler{sessions: s, logger: logger}
}

func (h *TranscriptionHandler) Start(w http.ResponseWriter, r *http.Request) {
	err := h.sessions.Start(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "started",
			"message": "Transcription stream started successfully",
		})
	case errors.Is(err, session.ErrAlreadyActive):
		writeError(w, http.StatusBadRequest, "Transcription already in progress")
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "Server is shutting down")
	default:
		writeInternal(w, h.logger, err)
	}
}

func (h *TranscriptionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	text, err := h.sessions.Stop(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":        "completed",
			"transcription": text,
		})
	case errors.Is(err, session.ErrNotActive):
		writeError(w, http.StatusBadRequest, "No active transcription session")
	default:
		writeInternal(w, h.logger, err)
	}
}

type statusResponse struct {
	IsActive      bool   `json:"isActive"`
	Transcription string `json:"transcription"`
	State         string `json:"state"`
	Error         string `json:"error,omitempty"`
}

func (h *TranscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Status()
	resp := statusResponse{
		IsActive:      st.Active,
		Transcription: st.Transcription,
		State:         st.State.String(),
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
