package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/design2code/internal/history"
)

type HistoryHandler struct {
	history history.Recorder
	logger  *slog.Logger
}

func NewHistoryHandler(rec history.Recorder, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: rec, logger: logger}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	items, err := h.history.List(r.Context(), history.ClampLimit(limit))
	switch {
	case errors.Is(err, history.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeInternal(w, h.logger, err)
	default:
		if items == nil {
			items = []history.Generation{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"generations": items})
	}
}
