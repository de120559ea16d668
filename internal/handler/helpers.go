package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/agora/internal/comments"
	"github.com/agora/internal/counter"
	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/service"
	"github.com/agora/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps the shared error taxonomy onto HTTP statuses; any
// error outside it is a 500 with a generic body.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrUnknownKind):
		writeError(w, http.StatusBadRequest, "unknown content kind")
	case errors.Is(err, model.ErrInvalidRoom):
		writeError(w, http.StatusBadRequest, "invalid room")
	case errors.Is(err, service.ErrEmptyBody), errors.Is(err, comments.ErrEmptyBody):
		writeError(w, http.StatusBadRequest, "body required")
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, comments.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, counter.ErrBadDelta):
		writeError(w, http.StatusBadRequest, "delta must be +1 or -1")
	default:
		logger.Errorf("handler: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
