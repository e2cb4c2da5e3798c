package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"pdf-layout-server/internal/domain"
)

// SupabaseDocumentStore implements domain.DocumentStore on Supabase tables.
// Documents live in "documents", pages in "pages" keyed by
// (document_id, page_index) with spans stored as JSONB.
type SupabaseDocumentStore struct {
	supabaseClient *SupabaseClient
	logger         domain.Logger
}

// NewSupabaseDocumentStore creates a new Supabase-backed document store
func NewSupabaseDocumentStore(supabaseClient *SupabaseClient, logger domain.Logger) domain.DocumentStore {
	return &SupabaseDocumentStore{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// CreateDocument inserts a new document row
func (r *SupabaseDocumentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	client := r.supabaseClient.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	data := map[string]interface{}{
		"id":            doc.ID,
		"original_name": doc.OriginalName,
		"title":         doc.Title,
		"page_count":    doc.PageCount,
		"status":        string(doc.Status),
		"source_path":   doc.SourcePath,
		"file_size":     doc.FileSize,
		"created_at":    doc.CreatedAt,
		"updated_at":    doc.UpdatedAt,
	}

	_, _, err := client.From("documents").Insert(data, false, "", "", "").Execute()
	if err != nil {
		r.logger.Error("Failed to insert document in Supabase", err, "doc_id", doc.ID)
		return fmt.Errorf("failed to create document: %w", err)
	}

	r.logger.Info("Document created", "id", doc.ID, "pages", doc.PageCount)
	return nil
}

// GetDocument retrieves a document by ID
func (r *SupabaseDocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	client := r.supabaseClient.GetSupabaseClient()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("documents").
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrDocumentNotFound
	}

	return r.mapToDocument(rows[0])
}

// UpdateDocumentStatus updates the document's processing status
func (r *SupabaseDocumentStore) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	client := r.supabaseClient.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	data := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}

	_, _, err := client.From("documents").
		Update(data, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	return nil
}

// CreatePage upserts a page row, clearing any previous result
func (r *SupabaseDocumentStore) CreatePage(ctx context.Context, page *domain.Page) error {
	client := r.supabaseClient.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	data := map[string]interface{}{
		"id":             page.ID,
		"document_id":    page.DocumentID,
		"page_index":     page.Index,
		"status":         string(page.Status),
		"asset_ref":      "",
		"spans":          []interface{}{},
		"has_text_layer": false,
		"error_code":     nil,
		"error_message":  nil,
		"updated_at":     page.UpdatedAt,
	}

	_, _, err := client.From("pages").Insert(data, true, "document_id,page_index", "", "").Execute()
	if err != nil {
		r.logger.Error("Failed to upsert page in Supabase", err,
			"document_id", page.DocumentID, "page_index", page.Index)
		return fmt.Errorf("failed to create page: %w", err)
	}

	return nil
}

// GetPage retrieves one page of a document
func (r *SupabaseDocumentStore) GetPage(ctx context.Context, documentID string, index int) (*domain.Page, error) {
	client := r.supabaseClient.GetSupabaseClient()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("pages").
		Select("*", "", false).
		Eq("document_id", documentID).
		Eq("page_index", fmt.Sprintf("%d", index)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrPageNotFound
	}

	return r.mapToPage(rows[0])
}

// ListPages returns all pages of a document ordered by page index
func (r *SupabaseDocumentStore) ListPages(ctx context.Context, documentID string) ([]*domain.Page, error) {
	client := r.supabaseClient.GetSupabaseClient()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("pages").
		Select("*", "", false).
		Eq("document_id", documentID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var pages []*domain.Page
	for _, row := range rows {
		page, err := r.mapToPage(row)
		if err != nil {
			r.logger.Error("Failed to map page", err, "document_id", documentID, "row_id", row["id"])
			continue
		}
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	return pages, nil
}

// UpdatePageStatus updates a page's status and failure detail
func (r *SupabaseDocumentStore) UpdatePageStatus(ctx context.Context, documentID string, index int, status domain.PageStatus, detail *domain.PageError) error {
	client := r.supabaseClient.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	data := map[string]interface{}{
		"status":        string(status),
		"error_code":    nil,
		"error_message": nil,
		"updated_at":    time.Now(),
	}
	if detail != nil {
		data["error_code"] = detail.Code
		data["error_message"] = detail.Message
	}

	_, _, err := client.From("pages").
		Update(data, "", "").
		Eq("document_id", documentID).
		Eq("page_index", fmt.Sprintf("%d", index)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update page status: %w", err)
	}

	return nil
}

// SavePageResult persists the page's spans, asset reference and terminal
// status in one write
func (r *SupabaseDocumentStore) SavePageResult(ctx context.Context, page *domain.Page) error {
	client := r.supabaseClient.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	// Marshal spans through interface{} so the client serializes them as
	// proper JSONB rather than an escaped string.
	spansJSON, err := json.Marshal(page.Spans)
	if err != nil {
		return fmt.Errorf("failed to marshal spans: %w", err)
	}
	var spansData interface{}
	if err := json.Unmarshal(spansJSON, &spansData); err != nil {
		return fmt.Errorf("failed to normalize spans JSON: %w", err)
	}
	if spansData == nil {
		spansData = []interface{}{}
	}

	data := map[string]interface{}{
		"status":         string(page.Status),
		"asset_ref":      page.AssetRef,
		"spans":          spansData,
		"has_text_layer": page.HasTextLayer,
		"error_code":     nil,
		"error_message":  nil,
		"updated_at":     page.UpdatedAt,
	}

	_, _, err = client.From("pages").
		Update(data, "", "").
		Eq("document_id", page.DocumentID).
		Eq("page_index", fmt.Sprintf("%d", page.Index)).
		Execute()
	if err != nil {
		r.logger.Error("Failed to save page result in Supabase", err,
			"document_id", page.DocumentID, "page_index", page.Index)
		return fmt.Errorf("failed to save page result: %w", err)
	}

	return nil
}

// mapToDocument converts a Supabase row to a domain Document
func (r *SupabaseDocumentStore) mapToDocument(row map[string]interface{}) (*domain.Document, error) {
	doc := &domain.Document{}

	if id, ok := row["id"].(string); ok {
		doc.ID = id
	}
	if name, ok := row["original_name"].(string); ok {
		doc.OriginalName = name
	}
	if title, ok := row["title"].(string); ok {
		doc.Title = title
	}
	if pageCount, ok := row["page_count"].(float64); ok {
		doc.PageCount = int(pageCount)
	}
	if status, ok := row["status"].(string); ok {
		doc.Status = domain.DocumentStatus(status)
	}
	if path, ok := row["source_path"].(string); ok {
		doc.SourcePath = path
	}
	if size, ok := row["file_size"].(float64); ok {
		doc.FileSize = int64(size)
	}
	if createdAt, ok := row["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			doc.CreatedAt = t
		}
	}
	if updatedAt, ok := row["updated_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			doc.UpdatedAt = t
		}
	}

	if doc.ID == "" {
		return nil, fmt.Errorf("document row missing id")
	}
	return doc, nil
}

// mapToPage converts a Supabase row to a domain Page
func (r *SupabaseDocumentStore) mapToPage(row map[string]interface{}) (*domain.Page, error) {
	page := &domain.Page{}

	if id, ok := row["id"].(string); ok {
		page.ID = id
	}
	if docID, ok := row["document_id"].(string); ok {
		page.DocumentID = docID
	}
	if index, ok := row["page_index"].(float64); ok {
		page.Index = int(index)
	}
	if status, ok := row["status"].(string); ok {
		page.Status = domain.PageStatus(status)
	}
	if ref, ok := row["asset_ref"].(string); ok {
		page.AssetRef = ref
	}
	if hasText, ok := row["has_text_layer"].(bool); ok {
		page.HasTextLayer = hasText
	}
	if spansRaw, ok := row["spans"]; ok && spansRaw != nil {
		spansJSON, err := json.Marshal(spansRaw)
		if err != nil {
			return nil, fmt.Errorf("failed to re-marshal spans: %w", err)
		}
		if err := json.Unmarshal(spansJSON, &page.Spans); err != nil {
			return nil, fmt.Errorf("failed to unmarshal spans: %w", err)
		}
	}
	if code, ok := row["error_code"].(string); ok && code != "" {
		msg, _ := row["error_message"].(string)
		page.Error = &domain.PageError{Code: code, Message: msg}
	}
	if updatedAt, ok := row["updated_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			page.UpdatedAt = t
		}
	}

	if page.DocumentID == "" {
		return nil, fmt.Errorf("page row missing document_id")
	}
	return page, nil
}
