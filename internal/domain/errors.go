package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrPageNotFound      = errors.New("page not found")
	ErrNoTextOnPage      = errors.New("no text on page")
	ErrPageFailed        = errors.New("page processing failed")
	ErrPageNotReady      = errors.New("page not processed yet")
	ErrJobAlreadyRunning = errors.New("a processing job is already running for this document")
	ErrNoActiveJob       = errors.New("no active processing job for this document")
	ErrQueueTimeout      = errors.New("timed out waiting for queue capacity")
	ErrCancelled         = errors.New("processing cancelled")
	ErrOCRUnavailable    = errors.New("ocr unavailable")
	ErrInvalidFile       = errors.New("invalid file")
	ErrSchedulerClosed   = errors.New("scheduler is shut down")
)

// Worker pipeline stages, used in error details and failure codes.
const (
	StageRender  = "render"
	StageExtract = "extract"
	StageIndex   = "index"
	StagePersist = "persist"
)

// WorkerError wraps a failure from one page-pipeline stage. Transient
// failures (I/O timeouts, resource exhaustion) are retried by the scheduler;
// permanent ones (malformed page, bad spans) are not.
type WorkerError struct {
	Stage     string
	Transient bool
	Err       error
}

func (e *WorkerError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, kind, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// NewRenderError wraps a rasterization failure.
func NewRenderError(err error, transient bool) *WorkerError {
	return &WorkerError{Stage: StageRender, Transient: transient, Err: err}
}

// NewExtractionError wraps a text-layout extraction failure.
func NewExtractionError(err error, transient bool) *WorkerError {
	return &WorkerError{Stage: StageExtract, Transient: transient, Err: err}
}

// NewIndexBuildError wraps a spatial-index construction failure. Always
// permanent: rebuilding from the same spans cannot succeed.
func NewIndexBuildError(err error) *WorkerError {
	return &WorkerError{Stage: StageIndex, Transient: false, Err: err}
}

// NewPersistError wraps a storage failure while saving page results.
func NewPersistError(err error, transient bool) *WorkerError {
	return &WorkerError{Stage: StagePersist, Transient: transient, Err: err}
}

// IsTransient reports whether the error may succeed on retry. Cancellation
// is never retryable.
func IsTransient(err error) bool {
	if errors.Is(err, ErrCancelled) {
		return false
	}
	var we *WorkerError
	if errors.As(err, &we) {
		return we.Transient
	}
	return false
}

// DispatchError is a coordinator-level failure to even fan out page work
// (zero pages, corrupt metadata). The job goes straight from Queued to
// Failed carrying this detail.
type DispatchError struct {
	Reason string
}

func (e *DispatchError) Error() string {
	return "dispatch failed: " + e.Reason
}

// FailureDetail converts a worker or coordinator error into the structured
// detail stored on a Failed page.
func FailureDetail(err error) *PageError {
	if err == nil {
		return nil
	}
	var we *WorkerError
	if errors.As(err, &we) {
		return &PageError{Code: we.Stage, Message: we.Err.Error()}
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return &PageError{Code: "dispatch", Message: de.Reason}
	}
	switch {
	case errors.Is(err, ErrCancelled):
		return &PageError{Code: "cancelled", Message: ErrCancelled.Error()}
	case errors.Is(err, ErrQueueTimeout):
		return &PageError{Code: "queue_timeout", Message: ErrQueueTimeout.Error()}
	}
	return &PageError{Code: "internal", Message: err.Error()}
}
