package domain

import "time"

// DocumentStatus represents the aggregate processing state of a document.
type DocumentStatus string

const (
	DocumentStatusPending         DocumentStatus = "pending"
	DocumentStatusProcessing      DocumentStatus = "processing"
	DocumentStatusCompleted       DocumentStatus = "completed"
	DocumentStatusFailed          DocumentStatus = "failed"
	DocumentStatusPartiallyFailed DocumentStatus = "partially_failed"
)

// PageStatus represents the processing state of a single page.
type PageStatus string

const (
	PageStatusPending        PageStatus = "pending"
	PageStatusRendering      PageStatus = "rendering"
	PageStatusExtractingText PageStatus = "extracting_text"
	PageStatusIndexed        PageStatus = "indexed"
	PageStatusFailed         PageStatus = "failed"
)

// Terminal reports whether a page can no longer change state.
func (s PageStatus) Terminal() bool {
	return s == PageStatusIndexed || s == PageStatusFailed
}

// Document represents an uploaded PDF and its processing state.
// Status is mutated only by the job coordinator.
type Document struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	Title        string `json:"title"`

	PageCount  int            `json:"page_count"`
	Status     DocumentStatus `json:"status"`
	SourcePath string         `json:"source_path,omitempty"`
	FileSize   int64          `json:"file_size"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageError is the structured failure detail attached to a Failed page.
type PageError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Page represents one page of a document. Status, asset reference and spans
// are written only by the worker the page is assigned to; once the page is
// Indexed or Failed it is immutable until the document is reprocessed.
type Page struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"page_index"`

	Status   PageStatus `json:"status"`
	AssetRef string     `json:"asset_ref,omitempty"`
	Spans    []TextSpan `json:"spans,omitempty"`

	// HasTextLayer is false when the source page had no extractable text
	// layer; spans then come from OCR, or are empty if OCR is unavailable.
	HasTextLayer bool `json:"has_text_layer"`

	Error *PageError `json:"error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// AggregateDocumentStatus derives a document's final status from its
// terminal page counts. Completed iff every page indexed, Failed iff every
// page failed, PartiallyFailed for any mix.
func AggregateDocumentStatus(indexed, failed, total int) DocumentStatus {
	switch {
	case total == 0 || indexed+failed < total:
		return DocumentStatusProcessing
	case failed == 0:
		return DocumentStatusCompleted
	case indexed == 0:
		return DocumentStatusFailed
	default:
		return DocumentStatusPartiallyFailed
	}
}
