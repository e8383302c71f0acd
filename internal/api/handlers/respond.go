package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure reports a server-side error with its message.
func writeFailure(w http.ResponseWriter, logger *slog.Logger, status int, title string, err error) {
	logger.Error(title, "error", err)
	writeJSON(w, status, map[string]string{"error": title, "message": err.Error()})
}

func writeInternal(w http.ResponseWriter, logger *slog.Logger, err error) {
	writeFailure(w, logger, http.StatusInternalServerError, "Internal Server Error", err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst)
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
