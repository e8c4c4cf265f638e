package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/go-chi/chi/v5/middleware"
)

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// writeError maps domain errors onto HTTP statuses. notFound is the message
// used when err is a not-found error.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case common.IsValidation(err):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case common.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, notFound)
	case common.IsUnavailable(err):
		slog.Error("store unavailable", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeMessage(w, http.StatusServiceUnavailable, "store unavailable, try again later")
	default:
		slog.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
