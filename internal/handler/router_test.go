package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdf-layout-server/internal/config"
)

func newTestContainer(t *testing.T) *config.Container {
	t.Helper()
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "")
	t.Setenv("UPLOAD_PATH", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("WORKER_COUNT", "2")

	container, err := config.NewContainer()
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		container.Shutdown(ctx)
	})
	return container
}

func TestNewRouter_Health(t *testing.T) {
	router := NewRouter(newTestContainer(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestNewRouter_UnknownDocument(t *testing.T) {
	router := NewRouter(newTestContainer(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/nope", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
