package domain

import (
	"context"
	"time"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetUploadPath() string
	GetMaxFileSize() int64
	GetLogLevel() string

	GetWorkerCount() int
	GetQueueSize() int
	GetEnqueueTimeout() time.Duration
	GetMaxRetries() int
	GetRetryBackoff() time.Duration

	GetEventRetention() int
	GetGridResolution() int

	GetSupabaseURL() string
	GetSupabaseKey() string
	GetStorageBucket() string
	GetOCRCommand() string
}

// PageRef identifies one page of a stored source document.
type PageRef struct {
	DocumentID string
	PageIndex  int
	SourcePath string
}

// RenderedPage is the result of rasterizing one page.
type RenderedPage struct {
	PNG []byte
	// Page extent in page-coordinate units (points).
	WidthPt  float64
	HeightPt float64
	// Raster extent in pixels. OCR output is in this space and must be
	// scaled back into points before indexing.
	WidthPx  int
	HeightPx int
}

// PageLayout is the result of text-layout extraction for one page.
type PageLayout struct {
	Spans []TextSpan
	// HasTextLayer is false for image-only pages; callers should fall back
	// to OCR when a provider is configured.
	HasTextLayer bool
}

// Renderer rasterizes a page of a stored document.
type Renderer interface {
	RenderPage(ctx context.Context, ref PageRef) (*RenderedPage, error)
}

// LayoutExtractor produces the ordered text spans of a page.
type LayoutExtractor interface {
	ExtractLayout(ctx context.Context, ref PageRef) (*PageLayout, error)
}

// OCRProvider recognizes text spans on a rasterized page image. Optional;
// used only for pages with no extractable text layer.
type OCRProvider interface {
	Recognize(ctx context.Context, png []byte) ([]TextSpan, error)
}

// AssetStore persists rendered page assets and returns an opaque reference.
type AssetStore interface {
	SaveAsset(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// DocumentStore defines persistence operations for documents and pages.
// The core treats it as a durable key-value store keyed by document id and
// (document id, page index).
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus) error

	// CreatePage upserts the page record, resetting spans and asset ref.
	CreatePage(ctx context.Context, page *Page) error
	GetPage(ctx context.Context, documentID string, index int) (*Page, error)
	ListPages(ctx context.Context, documentID string) ([]*Page, error)
	UpdatePageStatus(ctx context.Context, documentID string, index int, status PageStatus, detail *PageError) error
	// SavePageResult persists spans and the asset reference together with
	// the terminal Indexed status.
	SavePageResult(ctx context.Context, page *Page) error
}
