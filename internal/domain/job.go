package domain

import "time"

// JobStatus represents the lifecycle state of a processing job.
type JobStatus string

const (
	JobStatusQueued          JobStatus = "queued"
	JobStatusRunning         JobStatus = "running"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusFailed          JobStatus = "failed"
	JobStatusPartiallyFailed JobStatus = "partially_failed"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusPartiallyFailed
}

// PageOutcome records the terminal state one page reached during a job.
type PageOutcome struct {
	PageIndex int        `json:"page_index"`
	Status    PageStatus `json:"status"`
	Error     *PageError `json:"error,omitempty"`
}

// ProcessingJob is one attempt to fully process a document. A document has
// at most one non-terminal job at any time.
type ProcessingJob struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Status     JobStatus `json:"status"`

	Outcomes []PageOutcome `json:"outcomes,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DocumentSubject is the PageIndex value marking a document-level event.
const DocumentSubject = -1

// EventSubject identifies what a status event describes.
type EventSubject string

const (
	SubjectPage     EventSubject = "page"
	SubjectDocument EventSubject = "document"
	SubjectJob      EventSubject = "job"
)

// StatusEvent is an immutable record of one state transition. Subject tells
// page, document and job transitions apart; document and job events both
// carry PageIndex == DocumentSubject.
type StatusEvent struct {
	Subject    EventSubject `json:"subject"`
	JobID      string       `json:"job_id"`
	DocumentID string       `json:"document_id"`
	PageIndex  int          `json:"page_index"`

	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Error     string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// DocumentLevel reports whether the event concerns the document itself
// rather than a specific page.
func (e StatusEvent) DocumentLevel() bool {
	return e.PageIndex == DocumentSubject
}
