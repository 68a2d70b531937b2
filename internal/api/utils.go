package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v with the given status as an application/json body
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}

// writeError writes a JSON error body. Server side failures are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error(msg,
			zap.String("requestid", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// statusFor maps controller errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// bookIDParam parses the {id} URL parameter
func bookIDParam(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid book ID %q", idStr)
	}
	return id, nil
}
