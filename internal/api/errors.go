package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/pihome/internal/automation"
	"github.com/nerrad567/pihome/internal/entity"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnknownKind      = "unknown_kind"
	ErrCodeInternal         = "internal_error"
	ErrCodeValidation       = "validation_error"
	ErrCodeHardware         = "hardware_error"
	ErrCodeUnavailable      = "value_unavailable"
	ErrCodeEvaluationFailed = "evaluation_failed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeEntityError maps an entity or rule error onto a response.
// what names the thing being handled ("sensor", "rule evaluation") and is
// used for not-found and internal messages.
func (s *Server) writeEntityError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, entity.ErrRecordMissing):
		writeNotFound(w, what+" not found")
	case errors.Is(err, entity.ErrInvalidEntity),
		errors.Is(err, entity.ErrInvalidCondition),
		errors.Is(err, automation.ErrUnknownOperator):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, entity.ErrEntityNotFound):
		writeError(w, http.StatusNotFound, ErrCodeUnknownKind, err.Error())
	case errors.Is(err, entity.ErrHardwareRead):
		s.logger.Warn("hardware read failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeHardware, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, what+" timed out")
	case errors.Is(err, automation.ErrRuleCycle):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeEvaluationFailed, err.Error())
	default:
		s.logger.Error("request failed", "what", what, "error", err)
		writeInternalError(w, "failed to handle "+what)
	}
}
