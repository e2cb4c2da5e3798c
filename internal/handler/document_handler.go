// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"io"
	"net/http"

	"pdf-layout-server/internal/domain"
	apperrors "pdf-layout-server/pkg/errors"

	"github.com/gorilla/mux"
)

// DocumentService is the document ingestion and job-control API the handlers
// depend on.
type DocumentService interface {
	Upload(ctx context.Context, originalName string, file io.Reader, size int64) (*domain.Document, *domain.ProcessingJob, error)
	Reprocess(ctx context.Context, documentID string) (*domain.ProcessingJob, error)
	Cancel(documentID string) error
	Get(ctx context.Context, documentID string) (*domain.Document, []*domain.Page, error)
}

// DocumentHandler handles document-related HTTP requests
type DocumentHandler struct {
	documents DocumentService
	logger    domain.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents DocumentService, logger domain.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger,
	}
}

// UploadDocument accepts a multipart PDF upload and starts its processing
// job. It responds 202 as soon as the job is dispatched.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.NewValidationError("multipart field 'file' is required"))
		return
	}
	defer file.Close()

	doc, job, err := h.documents.Upload(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		h.logger.Warn("upload rejected", "name", header.Filename, "error", err)
		writeError(w, toAppError(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"document": doc,
		"job":      job,
	})
}

// GetDocument returns the document record with its per-page statuses.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]

	doc, pages, err := h.documents.Get(r.Context(), documentID)
	if err != nil {
		writeError(w, toAppError(err))
		return
	}
	if pages == nil {
		pages = make([]*domain.Page, 0)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document": doc,
		"pages":    pages,
	})
}

// ReprocessDocument restarts processing for an existing document.
func (h *DocumentHandler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]

	job, err := h.documents.Reprocess(r.Context(), documentID)
	if err != nil {
		writeError(w, toAppError(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job": job})
}

// CancelProcessing stops the document's active processing job.
func (h *DocumentHandler) CancelProcessing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]

	if err := h.documents.Cancel(documentID); err != nil {
		writeError(w, toAppError(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "cancelling"})
}
