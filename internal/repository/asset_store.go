package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"pdf-layout-server/internal/domain"
)

// SupabaseAssetStore uploads rendered page assets to a Supabase storage
// bucket over its raw HTTP API.
type SupabaseAssetStore struct {
	baseURL string
	apiKey  string
	bucket  string
}

// NewSupabaseAssetStore creates a storage-bucket asset store.
func NewSupabaseAssetStore(baseURL, apiKey, bucket string) *SupabaseAssetStore {
	return &SupabaseAssetStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		bucket:  bucket,
	}
}

// SaveAsset uploads the asset and returns its bucket-relative reference.
func (s *SupabaseAssetStore) SaveAsset(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	objectPath := s.bucket + "/" + path

	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		s.baseURL+"/storage/v1/object/"+objectPath,
		bytes.NewReader(data),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", contentType)
	// Re-runs of a page overwrite its previous asset.
	req.Header.Set("x-upsert", "true")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", errors.New("storage upload failed")
	}

	return objectPath, nil
}

var _ domain.AssetStore = (*SupabaseAssetStore)(nil)

// LocalAssetStore writes assets under a base directory on disk. Used when no
// Supabase storage is configured.
type LocalAssetStore struct {
	baseDir string
}

// NewLocalAssetStore creates a disk-backed asset store rooted at baseDir.
func NewLocalAssetStore(baseDir string) *LocalAssetStore {
	return &LocalAssetStore{baseDir: baseDir}
}

// SaveAsset writes the asset to disk and returns its absolute path.
func (s *LocalAssetStore) SaveAsset(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	return fullPath, nil
}

var _ domain.AssetStore = (*LocalAssetStore)(nil)
