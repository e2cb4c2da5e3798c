package pipeline

import (
	"context"
	"fmt"
	"sync"

	"pdf-layout-server/internal/domain"
)

type testLogger struct{}

func (testLogger) Info(msg string, fields ...interface{})             {}
func (testLogger) Error(msg string, err error, fields ...interface{}) {}
func (testLogger) Debug(msg string, fields ...interface{})            {}
func (testLogger) Warn(msg string, fields ...interface{})             {}

// fakeStore is an in-memory DocumentStore for pipeline tests.
type fakeStore struct {
	mu    sync.Mutex
	docs  map[string]*domain.Document
	pages map[string]map[int]*domain.Page

	failCreatePage bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:  make(map[string]*domain.Document),
		pages: make(map[string]map[int]*domain.Page),
	}
}

func (s *fakeStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *doc
	s.docs[doc.ID] = &d
	return nil
}

func (s *fakeStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	d := *doc
	return &d, nil
}

func (s *fakeStore) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[id]; ok {
		doc.Status = status
	}
	return nil
}

func (s *fakeStore) CreatePage(ctx context.Context, page *domain.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreatePage {
		return fmt.Errorf("storage unavailable")
	}
	if s.pages[page.DocumentID] == nil {
		s.pages[page.DocumentID] = make(map[int]*domain.Page)
	}
	p := *page
	s.pages[page.DocumentID][page.Index] = &p
	return nil
}

func (s *fakeStore) GetPage(ctx context.Context, documentID string, index int) (*domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[documentID][index]
	if !ok {
		return nil, domain.ErrPageNotFound
	}
	p := *page
	return &p, nil
}

func (s *fakeStore) ListPages(ctx context.Context, documentID string) ([]*domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Page
	for _, page := range s.pages[documentID] {
		p := *page
		out = append(out, &p)
	}
	return out, nil
}

func (s *fakeStore) UpdatePageStatus(ctx context.Context, documentID string, index int, status domain.PageStatus, detail *domain.PageError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page, ok := s.pages[documentID][index]; ok {
		page.Status = status
		page.Error = detail
	}
	return nil
}

func (s *fakeStore) SavePageResult(ctx context.Context, page *domain.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages[page.DocumentID] == nil {
		s.pages[page.DocumentID] = make(map[int]*domain.Page)
	}
	p := *page
	s.pages[page.DocumentID][page.Index] = &p
	return nil
}

func (s *fakeStore) pageStatus(documentID string, index int) domain.PageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page, ok := s.pages[documentID][index]; ok {
		return page.Status
	}
	return ""
}

var _ domain.DocumentStore = (*fakeStore)(nil)

// fakeAssets records saved assets without real storage.
type fakeAssets struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{saved: make(map[string][]byte)}
}

func (a *fakeAssets) SaveAsset(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved[path] = data
	return "asset://" + path, nil
}

// recordingReporter collects page transitions in call order.
type recordingReporter struct {
	mu          sync.Mutex
	transitions []domain.PageStatus
	details     []*domain.PageError
}

func (r *recordingReporter) PageTransition(task PageTask, from, to domain.PageStatus, detail *domain.PageError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, to)
	r.details = append(r.details, detail)
}

func (r *recordingReporter) seen() []domain.PageStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PageStatus(nil), r.transitions...)
}
