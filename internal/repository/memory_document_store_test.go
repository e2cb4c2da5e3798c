package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pdf-layout-server/internal/domain"
)

func seedDocument(t *testing.T, store *MemoryDocumentStore, id string, pages int) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:        id,
		Title:     "Test Document",
		PageCount: pages,
		Status:    domain.DocumentStatusPending,
		CreatedAt: time.Now(),
	}
	if err := store.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	return doc
}

func TestMemoryStoreDocumentLifecycle(t *testing.T) {
	store := NewMemoryDocumentStore()
	seedDocument(t, store, "doc-1", 2)

	got, err := store.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Title != "Test Document" || got.Status != domain.DocumentStatusPending {
		t.Errorf("unexpected document: %+v", got)
	}

	if err := store.UpdateDocumentStatus(context.Background(), "doc-1", domain.DocumentStatusProcessing); err != nil {
		t.Fatalf("UpdateDocumentStatus failed: %v", err)
	}
	got, _ = store.GetDocument(context.Background(), "doc-1")
	if got.Status != domain.DocumentStatusProcessing {
		t.Errorf("status = %q, want processing", got.Status)
	}

	if _, err := store.GetDocument(context.Background(), "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := store.UpdateDocumentStatus(context.Background(), "missing", domain.DocumentStatusFailed); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestMemoryStorePageLifecycle(t *testing.T) {
	store := NewMemoryDocumentStore()
	seedDocument(t, store, "doc-1", 2)

	for i := 0; i < 2; i++ {
		page := &domain.Page{ID: "page", DocumentID: "doc-1", Index: i, Status: domain.PageStatusPending}
		if err := store.CreatePage(context.Background(), page); err != nil {
			t.Fatalf("CreatePage failed: %v", err)
		}
	}

	detail := &domain.PageError{Code: "render", Message: "corrupt page"}
	if err := store.UpdatePageStatus(context.Background(), "doc-1", 1, domain.PageStatusFailed, detail); err != nil {
		t.Fatalf("UpdatePageStatus failed: %v", err)
	}
	page, err := store.GetPage(context.Background(), "doc-1", 1)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if page.Status != domain.PageStatusFailed || page.Error == nil || page.Error.Code != "render" {
		t.Errorf("unexpected page: %+v", page)
	}

	spans := []domain.TextSpan{{Text: "hello", Box: domain.BoundingBox{MinX: 10, MinY: 10, MaxX: 60, MaxY: 24}}}
	result := &domain.Page{
		ID:           "page",
		DocumentID:   "doc-1",
		Index:        0,
		Status:       domain.PageStatusIndexed,
		AssetRef:     "assets/doc-1/0.png",
		Spans:        spans,
		HasTextLayer: true,
	}
	if err := store.SavePageResult(context.Background(), result); err != nil {
		t.Fatalf("SavePageResult failed: %v", err)
	}

	page, _ = store.GetPage(context.Background(), "doc-1", 0)
	if page.Status != domain.PageStatusIndexed || len(page.Spans) != 1 || page.AssetRef == "" {
		t.Errorf("result not persisted: %+v", page)
	}

	// Mutating the returned copy must not affect the store.
	page.Spans[0].Text = "mutated"
	again, _ := store.GetPage(context.Background(), "doc-1", 0)
	if again.Spans[0].Text != "hello" {
		t.Error("store returned a shared span slice")
	}

	if _, err := store.GetPage(context.Background(), "doc-1", 9); !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
	if _, err := store.GetPage(context.Background(), "missing", 0); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestMemoryStoreListPagesOrdered(t *testing.T) {
	store := NewMemoryDocumentStore()
	seedDocument(t, store, "doc-1", 3)

	for _, i := range []int{2, 0, 1} {
		page := &domain.Page{ID: "page", DocumentID: "doc-1", Index: i, Status: domain.PageStatusPending}
		if err := store.CreatePage(context.Background(), page); err != nil {
			t.Fatalf("CreatePage failed: %v", err)
		}
	}

	pages, err := store.ListPages(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("listed %d pages, want 3", len(pages))
	}
	for i, page := range pages {
		if page.Index != i {
			t.Errorf("page %d has index %d", i, page.Index)
		}
	}
}

func TestMemoryStoreCreatePageResetsResult(t *testing.T) {
	store := NewMemoryDocumentStore()
	seedDocument(t, store, "doc-1", 1)

	indexed := &domain.Page{
		ID:           "page",
		DocumentID:   "doc-1",
		Index:        0,
		Status:       domain.PageStatusIndexed,
		AssetRef:     "assets/doc-1/0.png",
		Spans:        []domain.TextSpan{{Text: "old"}},
		HasTextLayer: true,
	}
	if err := store.SavePageResult(context.Background(), indexed); err != nil {
		t.Fatalf("SavePageResult failed: %v", err)
	}

	fresh := &domain.Page{ID: "page2", DocumentID: "doc-1", Index: 0, Status: domain.PageStatusPending}
	if err := store.CreatePage(context.Background(), fresh); err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}

	page, _ := store.GetPage(context.Background(), "doc-1", 0)
	if page.Status != domain.PageStatusPending || len(page.Spans) != 0 || page.AssetRef != "" {
		t.Errorf("reprocessed page kept stale result: %+v", page)
	}
}
