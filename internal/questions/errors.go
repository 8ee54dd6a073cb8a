package questions

import (
	"errors"
	"log"
	"net/http"

	"github.com/sat-prep/backend/internal/grading"
	"github.com/sat-prep/backend/internal/models"
)

var (
	ErrNotFound        = errors.New("question not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("authentication required")
)

// writeServiceError maps a service error onto a status code and a machine
// readable code. Anything unrecognised is an upstream failure and its message
// is passed through.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, code := http.StatusInternalServerError, "upstream_failure"
	switch {
	case errors.Is(err, ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, grading.ErrMissingSelection):
		status, code = http.StatusBadRequest, "missing_selection"
	case errors.Is(err, grading.ErrMissingResponse):
		status, code = http.StatusBadRequest, "missing_response"
	case errors.Is(err, grading.ErrMissingAnswerKey):
		status, code = http.StatusBadRequest, "missing_answer_key"
	case errors.Is(err, grading.ErrUnsupportedType):
		status, code = http.StatusBadRequest, "unsupported_type"
	}
	if status >= http.StatusInternalServerError {
		log.Printf("[handler] %s error: %v", op, err)
	}
	writeJSON(w, status, models.ErrorResponse{Error: err.Error(), Code: code})
}
