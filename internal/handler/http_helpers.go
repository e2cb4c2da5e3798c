package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdf-layout-server/internal/domain"
	apperrors "pdf-layout-server/pkg/errors"
)

// writeJSON writes a JSON response (helper function)
func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// writeError writes a structured error response (helper function)
func writeError(w http.ResponseWriter, appErr *apperrors.AppError) {
	writeJSON(w, appErr.StatusCode, map[string]interface{}{"error": appErr})
}

// toAppError maps domain errors onto HTTP-facing application errors.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return apperrors.NewNotFoundError("document not found")
	case errors.Is(err, domain.ErrPageNotFound):
		return apperrors.NewNotFoundError("page not found")
	case errors.Is(err, domain.ErrNoTextOnPage):
		return apperrors.NewNotFoundError("no text on page")
	case errors.Is(err, domain.ErrPageNotReady):
		return apperrors.NewConflictError("page not processed yet")
	case errors.Is(err, domain.ErrPageFailed):
		return apperrors.NewConflictError("page processing failed")
	case errors.Is(err, domain.ErrJobAlreadyRunning):
		return apperrors.NewConflictError("a processing job is already running for this document")
	case errors.Is(err, domain.ErrNoActiveJob):
		return apperrors.NewConflictError("no active processing job for this document")
	case errors.Is(err, domain.ErrInvalidFile):
		return apperrors.NewValidationError("invalid file", err.Error())
	case errors.Is(err, domain.ErrQueueTimeout), errors.Is(err, domain.ErrSchedulerClosed):
		return apperrors.NewUnavailableError("processing queue is saturated", err)
	}
	return apperrors.NewInternalError("internal server error", err)
}
