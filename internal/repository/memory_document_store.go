package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"pdf-layout-server/internal/domain"
)

// MemoryDocumentStore is an in-memory DocumentStore. It backs deployments
// without Supabase credentials and the test suites.
type MemoryDocumentStore struct {
	mu    sync.RWMutex
	docs  map[string]*domain.Document
	pages map[string]map[int]*domain.Page
}

// NewMemoryDocumentStore creates an empty in-memory store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs:  make(map[string]*domain.Document),
		pages: make(map[string]map[int]*domain.Page),
	}
}

// CreateDocument stores a new document record.
func (s *MemoryDocumentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *doc
	s.docs[doc.ID] = &d
	return nil
}

// GetDocument retrieves a document by ID.
func (s *MemoryDocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	d := *doc
	return &d, nil
}

// UpdateDocumentStatus updates the document's processing status.
func (s *MemoryDocumentStore) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.Status = status
	doc.UpdatedAt = time.Now()
	return nil
}

// CreatePage upserts a page record, resetting any previous result.
func (s *MemoryDocumentStore) CreatePage(ctx context.Context, page *domain.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages[page.DocumentID] == nil {
		s.pages[page.DocumentID] = make(map[int]*domain.Page)
	}
	p := *page
	p.Spans = append([]domain.TextSpan(nil), page.Spans...)
	s.pages[page.DocumentID][page.Index] = &p
	return nil
}

// GetPage retrieves one page of a document.
func (s *MemoryDocumentStore) GetPage(ctx context.Context, documentID string, index int) (*domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[documentID][index]
	if !ok {
		if _, docExists := s.docs[documentID]; !docExists {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, domain.ErrPageNotFound
	}
	return copyPage(page), nil
}

// ListPages returns all pages of a document ordered by page index.
func (s *MemoryDocumentStore) ListPages(ctx context.Context, documentID string) ([]*domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := make([]*domain.Page, 0, len(s.pages[documentID]))
	for _, page := range s.pages[documentID] {
		pages = append(pages, copyPage(page))
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}

// UpdatePageStatus updates a page's status and failure detail.
func (s *MemoryDocumentStore) UpdatePageStatus(ctx context.Context, documentID string, index int, status domain.PageStatus, detail *domain.PageError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[documentID][index]
	if !ok {
		return domain.ErrPageNotFound
	}
	page.Status = status
	page.Error = detail
	page.UpdatedAt = time.Now()
	return nil
}

// SavePageResult persists the page's spans, asset reference and terminal
// status in one write.
func (s *MemoryDocumentStore) SavePageResult(ctx context.Context, page *domain.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages[page.DocumentID] == nil {
		s.pages[page.DocumentID] = make(map[int]*domain.Page)
	}
	s.pages[page.DocumentID][page.Index] = copyPage(page)
	return nil
}

func copyPage(page *domain.Page) *domain.Page {
	p := *page
	p.Spans = append([]domain.TextSpan(nil), page.Spans...)
	if page.Error != nil {
		e := *page.Error
		p.Error = &e
	}
	return &p
}

var _ domain.DocumentStore = (*MemoryDocumentStore)(nil)
