package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-layout-server/internal/domain"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// JobCoordinator is the slice of the pipeline coordinator the document
// service depends on.
type JobCoordinator interface {
	StartJob(ctx context.Context, doc *domain.Document) (*domain.ProcessingJob, error)
	Cancel(documentID string) error
	ActiveJob(documentID string) (*domain.ProcessingJob, bool)
}

// ReplayDropper clears retained status events for a document. Implemented by
// the pipeline broadcaster.
type ReplayDropper interface {
	DropReplay(documentID string)
}

// QueryInvalidator drops cached page indices for a document. Implemented by
// the query service.
type QueryInvalidator interface {
	Invalidate(documentID string)
}

// DocumentService handles document ingestion and job control.
type DocumentService struct {
	store       domain.DocumentStore
	coordinator JobCoordinator
	replays     ReplayDropper
	queries     QueryInvalidator
	config      domain.Config
	logger      domain.Logger

	pageCount func(path string) (int, error)
}

// NewDocumentService creates a new document service
func NewDocumentService(
	store domain.DocumentStore,
	coordinator JobCoordinator,
	replays ReplayDropper,
	queries QueryInvalidator,
	config domain.Config,
	logger domain.Logger,
) *DocumentService {
	return &DocumentService{
		store:       store,
		coordinator: coordinator,
		replays:     replays,
		queries:     queries,
		config:      config,
		logger:      logger,
		pageCount:   api.PageCountFile,
	}
}

// Upload stores an uploaded PDF, validates it, creates the document record
// and starts its processing job. The call returns as soon as the job is
// dispatched; processing completes asynchronously.
func (s *DocumentService) Upload(ctx context.Context, originalName string, file io.Reader, size int64) (*domain.Document, *domain.ProcessingJob, error) {
	if !strings.HasSuffix(strings.ToLower(originalName), ".pdf") {
		return nil, nil, fmt.Errorf("%w: only PDF files are supported", domain.ErrInvalidFile)
	}
	maxSize := s.config.GetMaxFileSize()
	if size > 0 && size > maxSize {
		return nil, nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidFile, maxSize)
	}

	docID := uuid.NewString()
	sourcePath, written, err := s.saveSource(docID, file, maxSize)
	if err != nil {
		return nil, nil, err
	}

	// PageCountFile parses the cross-reference table, so it doubles as
	// structural validation of the upload.
	pageCount, err := s.pageCount(sourcePath)
	if err != nil {
		os.Remove(sourcePath)
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidFile, err)
	}
	if pageCount <= 0 {
		os.Remove(sourcePath)
		return nil, nil, fmt.Errorf("%w: document has no pages", domain.ErrInvalidFile)
	}

	now := time.Now()
	doc := &domain.Document{
		ID:           docID,
		OriginalName: originalName,
		Title:        strings.TrimSuffix(originalName, filepath.Ext(originalName)),
		PageCount:    pageCount,
		Status:       domain.DocumentStatusPending,
		SourcePath:   sourcePath,
		FileSize:     written,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		os.Remove(sourcePath)
		return nil, nil, fmt.Errorf("failed to create document record: %w", err)
	}

	s.logger.Info("document uploaded", "id", doc.ID, "name", originalName, "pages", pageCount, "size", written)

	job, err := s.coordinator.StartJob(ctx, doc)
	if err != nil {
		return doc, nil, err
	}
	return doc, job, nil
}

// Reprocess restarts processing for an existing document. Cached query
// indices and retained status events from earlier runs are discarded first.
func (s *DocumentService) Reprocess(ctx context.Context, documentID string) (*domain.ProcessingJob, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, running := s.coordinator.ActiveJob(documentID); running {
		return nil, domain.ErrJobAlreadyRunning
	}

	s.queries.Invalidate(documentID)
	s.replays.DropReplay(documentID)

	s.logger.Info("reprocessing document", "id", documentID, "pages", doc.PageCount)
	return s.coordinator.StartJob(ctx, doc)
}

// Cancel stops the document's active processing job.
func (s *DocumentService) Cancel(documentID string) error {
	return s.coordinator.Cancel(documentID)
}

// Get returns the document with its per-page statuses.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, []*domain.Page, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	pages, err := s.store.ListPages(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	return doc, pages, nil
}

// saveSource streams the upload to the configured upload directory. Reads
// one byte past the limit so oversized bodies with an unknown length are
// still rejected.
func (s *DocumentService) saveSource(docID string, file io.Reader, maxSize int64) (string, int64, error) {
	uploadPath := s.config.GetUploadPath()
	if err := os.MkdirAll(uploadPath, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create upload directory: %w", err)
	}

	sourcePath := filepath.Join(uploadPath, docID+".pdf")
	out, err := os.Create(sourcePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create source file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, io.LimitReader(file, maxSize+1))
	if err != nil {
		os.Remove(sourcePath)
		return "", 0, fmt.Errorf("failed to save upload: %w", err)
	}
	if written > maxSize {
		os.Remove(sourcePath)
		return "", 0, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidFile, maxSize)
	}

	return sourcePath, written, nil
}
