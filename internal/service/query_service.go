package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pdf-layout-server/internal/domain"
	"pdf-layout-server/internal/index"
)

// QueryService answers coordinate-to-text queries against indexed pages.
// Page indices are rebuilt from persisted spans on first use and cached until
// the document is reprocessed.
type QueryService struct {
	store      domain.DocumentStore
	resolution int
	logger     domain.Logger

	mu    sync.RWMutex
	cache map[string]*index.Grid
}

// NewQueryService creates a new query service
func NewQueryService(store domain.DocumentStore, resolution int, logger domain.Logger) *QueryService {
	return &QueryService{
		store:      store,
		resolution: resolution,
		logger:     logger,
		cache:      make(map[string]*index.Grid),
	}
}

// ResolveText returns the text span at a page coordinate. Pages that are not
// yet indexed fail with ErrPageNotReady; failed pages with ErrPageFailed.
func (s *QueryService) ResolveText(ctx context.Context, documentID string, pageIndex int, x, y float64) (*domain.SpanMatch, error) {
	grid, err := s.pageGrid(ctx, documentID, pageIndex)
	if err != nil {
		return nil, err
	}

	span, err := grid.Query(x, y)
	if err != nil {
		return nil, err
	}

	return &domain.SpanMatch{
		DocumentID: documentID,
		PageIndex:  pageIndex,
		Text:       span.Text,
		Box:        span.Box,
		Seq:        span.Seq,
	}, nil
}

// Invalidate drops all cached page indices for a document.
func (s *QueryService) Invalidate(documentID string) {
	prefix := documentID + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.cache {
		if strings.HasPrefix(key, prefix) {
			delete(s.cache, key)
		}
	}
}

func (s *QueryService) pageGrid(ctx context.Context, documentID string, pageIndex int) (*index.Grid, error) {
	key := fmt.Sprintf("%s/%d", documentID, pageIndex)

	s.mu.RLock()
	grid, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return grid, nil
	}

	page, err := s.store.GetPage(ctx, documentID, pageIndex)
	if err != nil {
		return nil, err
	}

	switch page.Status {
	case domain.PageStatusIndexed:
	case domain.PageStatusFailed:
		return nil, domain.ErrPageFailed
	default:
		return nil, domain.ErrPageNotReady
	}

	grid, err = index.Build(page.Spans, s.resolution)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Another query may have built it concurrently; the builds are
	// deterministic so either copy serves.
	if cached, ok := s.cache[key]; ok {
		grid = cached
	} else {
		s.cache[key] = grid
	}
	s.mu.Unlock()

	s.logger.Debug("page index built", "document_id", documentID, "page_index", pageIndex, "spans", grid.Len())
	return grid, nil
}
