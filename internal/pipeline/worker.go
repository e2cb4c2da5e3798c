package pipeline

import (
	"context"
	"fmt"
	"time"

	"pdf-layout-server/internal/domain"
	"pdf-layout-server/internal/index"
)

// TransitionReporter receives page state transitions synchronously, before
// the worker proceeds to the next stage. Implemented by the coordinator.
type TransitionReporter interface {
	PageTransition(task PageTask, from, to domain.PageStatus, detail *domain.PageError)
}

// stage is the closed set of page-pipeline stages.
type stage int

const (
	stageRender stage = iota
	stageExtract
	stageIndex
)

// Worker executes the full per-page pipeline: rasterize, extract layout,
// build the spatial index, persist results. All failures are converted into
// errors for the scheduler's retry classification; they never escape as
// panics or partial state.
type Worker struct {
	renderer   domain.Renderer
	extractor  domain.LayoutExtractor
	ocr        domain.OCRProvider
	store      domain.DocumentStore
	assets     domain.AssetStore
	resolution int
	logger     domain.Logger
}

// NewWorker creates a page worker. ocr may be nil when no OCR fallback is
// configured.
func NewWorker(
	renderer domain.Renderer,
	extractor domain.LayoutExtractor,
	ocr domain.OCRProvider,
	store domain.DocumentStore,
	assets domain.AssetStore,
	resolution int,
	logger domain.Logger,
) *Worker {
	if resolution <= 0 {
		resolution = index.DefaultResolution
	}
	return &Worker{
		renderer:   renderer,
		extractor:  extractor,
		ocr:        ocr,
		store:      store,
		assets:     assets,
		resolution: resolution,
		logger:     logger,
	}
}

// Execute runs the page pipeline. Each stage transition is persisted and
// reported before the stage runs. Cancellation is checked between stages
// only; a stage that has started runs to completion.
func (w *Worker) Execute(ctx context.Context, task PageTask) error {
	page := task.Page
	ref := domain.PageRef{
		DocumentID: task.Document.ID,
		PageIndex:  page.Index,
		SourcePath: task.Document.SourcePath,
	}

	var rendered *domain.RenderedPage
	var layout *domain.PageLayout

	for _, st := range []stage{stageRender, stageExtract, stageIndex} {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}

		switch st {
		case stageRender:
			if err := w.transition(ctx, task, domain.PageStatusRendering); err != nil {
				return err
			}
			rp, err := w.renderer.RenderPage(ctx, ref)
			if err != nil {
				return err
			}
			rendered = rp

		case stageExtract:
			if err := w.transition(ctx, task, domain.PageStatusExtractingText); err != nil {
				return err
			}
			l, err := w.extractor.ExtractLayout(ctx, ref)
			if err != nil {
				return err
			}
			if !l.HasTextLayer && w.ocr != nil {
				spans, ocrErr := w.ocr.Recognize(ctx, rendered.PNG)
				if ocrErr != nil {
					// OCR failure is not fatal: the page indexes with an
					// empty span collection and queries report NoTextOnPage.
					w.logger.Warn("OCR fallback failed, indexing page without text",
						"document_id", page.DocumentID, "page_index", page.Index, "error", ocrErr)
				} else {
					l.Spans = scaleToPagePoints(spans, rendered)
				}
			}
			layout = l

		case stageIndex:
			// Build validates span geometry; the query path rebuilds the
			// index from persisted spans, which is deterministic.
			if _, err := index.Build(layout.Spans, w.resolution); err != nil {
				return err
			}

			assetPath := fmt.Sprintf("documents/%s/pages/%d.png", task.Document.ID, page.Index)
			assetRef, err := w.assets.SaveAsset(ctx, assetPath, rendered.PNG, "image/png")
			if err != nil {
				return domain.NewPersistError(err, true)
			}

			from := page.Status
			page.AssetRef = assetRef
			page.Spans = layout.Spans
			page.HasTextLayer = layout.HasTextLayer
			page.Status = domain.PageStatusIndexed
			page.Error = nil
			page.UpdatedAt = time.Now()
			if err := w.store.SavePageResult(ctx, page); err != nil {
				page.Status = from
				return domain.NewPersistError(err, true)
			}
			task.Reporter.PageTransition(task, from, domain.PageStatusIndexed, nil)
		}
	}

	return nil
}

// Abort marks the page terminally Failed with the causing error captured as
// structured detail. Called by the scheduler for permanent failures,
// exhausted retries and cancellation.
func (w *Worker) Abort(ctx context.Context, task PageTask, cause error) {
	page := task.Page
	detail := domain.FailureDetail(cause)
	from := page.Status

	if err := w.store.UpdatePageStatus(ctx, page.DocumentID, page.Index, domain.PageStatusFailed, detail); err != nil {
		w.logger.Error("failed to persist page failure", err,
			"document_id", page.DocumentID, "page_index", page.Index)
	}
	page.Status = domain.PageStatusFailed
	page.Error = detail
	page.UpdatedAt = time.Now()

	task.Reporter.PageTransition(task, from, domain.PageStatusFailed, detail)
}

// scaleToPagePoints converts OCR boxes from raster pixels into page points
// so they live in the same coordinate space as text-layer spans. Spans are
// returned unscaled when the rendered extents are unknown.
func scaleToPagePoints(spans []domain.TextSpan, rendered *domain.RenderedPage) []domain.TextSpan {
	if rendered == nil || rendered.WidthPx <= 0 || rendered.HeightPx <= 0 ||
		rendered.WidthPt <= 0 || rendered.HeightPt <= 0 {
		return spans
	}
	sx := rendered.WidthPt / float64(rendered.WidthPx)
	sy := rendered.HeightPt / float64(rendered.HeightPx)

	out := make([]domain.TextSpan, len(spans))
	for i, s := range spans {
		s.Box.MinX *= sx
		s.Box.MaxX *= sx
		s.Box.MinY *= sy
		s.Box.MaxY *= sy
		out[i] = s
	}
	return out
}

// transition persists a non-terminal page status and reports it to the
// coordinator before the worker proceeds.
func (w *Worker) transition(ctx context.Context, task PageTask, to domain.PageStatus) error {
	from := task.Page.Status
	if err := w.store.UpdatePageStatus(ctx, task.Page.DocumentID, task.Page.Index, to, nil); err != nil {
		return domain.NewPersistError(err, true)
	}
	task.Page.Status = to
	task.Page.UpdatedAt = time.Now()
	task.Reporter.PageTransition(task, from, to, nil)
	return nil
}
