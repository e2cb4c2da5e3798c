// Package extract produces rendered page images and positioned text spans
// from stored PDF sources.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"strings"
	"time"

	"pdf-layout-server/internal/domain"

	"github.com/gen2brain/go-fitz"
)

const pageTimeout = 90 * time.Second

// Engine implements the Renderer and LayoutExtractor contracts on top of
// go-fitz (MuPDF).
type Engine struct {
	logger domain.Logger

	// hasTextLayer decides whether a page carries an extractable text
	// layer. Pluggable because the right heuristic is source-dependent;
	// the default treats an empty trimmed page text as "no text layer".
	hasTextLayer func(pageText string) bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTextLayerPredicate overrides the no-text-layer detection heuristic.
func WithTextLayerPredicate(f func(pageText string) bool) Option {
	return func(e *Engine) {
		if f != nil {
			e.hasTextLayer = f
		}
	}
}

// NewEngine creates a new extraction engine
func NewEngine(logger domain.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger: logger,
		hasTextLayer: func(pageText string) bool {
			return strings.TrimSpace(pageText) != ""
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RenderPage rasterizes one page to PNG.
func (e *Engine) RenderPage(ctx context.Context, ref domain.PageRef) (*domain.RenderedPage, error) {
	doc, err := fitz.New(ref.SourcePath)
	if err != nil {
		return nil, domain.NewRenderError(fmt.Errorf("failed to open PDF: %w", err), false)
	}
	defer doc.Close()

	if ref.PageIndex < 0 || ref.PageIndex >= doc.NumPage() {
		return nil, domain.NewRenderError(fmt.Errorf("page %d out of range (document has %d pages)", ref.PageIndex, doc.NumPage()), false)
	}

	png, err := doc.ImagePNG(ref.PageIndex, 300.0)
	if err != nil {
		return nil, domain.NewRenderError(fmt.Errorf("failed to rasterize page %d: %w", ref.PageIndex, err), false)
	}

	rendered := &domain.RenderedPage{PNG: png}
	if bound, berr := doc.Bound(ref.PageIndex); berr == nil {
		rendered.WidthPt = float64(bound.Dx())
		rendered.HeightPt = float64(bound.Dy())
	}
	if cfg, _, derr := image.DecodeConfig(bytes.NewReader(png)); derr == nil {
		rendered.WidthPx = cfg.Width
		rendered.HeightPx = cfg.Height
	}
	return rendered, nil
}

// ExtractLayout produces the ordered text spans of one page, in the reading
// order the source content stream declares. Pages without a text layer
// return HasTextLayer=false and no spans; OCR fallback is the caller's
// decision.
func (e *Engine) ExtractLayout(ctx context.Context, ref domain.PageRef) (*domain.PageLayout, error) {
	doc, err := fitz.New(ref.SourcePath)
	if err != nil {
		return nil, domain.NewExtractionError(fmt.Errorf("failed to open PDF: %w", err), false)
	}
	defer doc.Close()

	if ref.PageIndex < 0 || ref.PageIndex >= doc.NumPage() {
		return nil, domain.NewExtractionError(fmt.Errorf("page %d out of range (document has %d pages)", ref.PageIndex, doc.NumPage()), false)
	}

	type pageResult struct {
		text string
		html string
		err  error
	}
	resultCh := make(chan pageResult, 1)
	go func(idx int) {
		text, terr := doc.Text(idx)
		if terr != nil {
			resultCh <- pageResult{err: terr}
			return
		}
		html, herr := doc.HTML(idx, true)
		resultCh <- pageResult{text: text, html: html, err: herr}
	}(ref.PageIndex)

	var text, pageHTML string
	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, domain.NewExtractionError(res.err, false)
		}
		text, pageHTML = res.text, res.html
	case <-time.After(pageTimeout):
		e.logger.Warn("page text extraction timeout", "document_id", ref.DocumentID, "page_index", ref.PageIndex, "timeout_sec", int(pageTimeout.Seconds()))
		go func() { <-resultCh }() // drain so goroutine can exit
		return nil, domain.NewExtractionError(fmt.Errorf("timeout after %v", pageTimeout), true)
	case <-ctx.Done():
		go func() { <-resultCh }()
		return nil, domain.ErrCancelled
	}

	if !e.hasTextLayer(text) {
		return &domain.PageLayout{HasTextLayer: false}, nil
	}

	spans := ParseLayout([]byte(pageHTML))
	if len(spans) == 0 {
		// Styled export carried no usable geometry; fall back to estimated
		// line boxes so the page still answers point queries.
		spans = synthesizeLineSpans(text)
	}
	return &domain.PageLayout{Spans: spans, HasTextLayer: true}, nil
}
