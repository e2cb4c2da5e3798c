package handler

import (
	"context"
	"net/http"
	"strconv"

	"pdf-layout-server/internal/domain"
	apperrors "pdf-layout-server/pkg/errors"

	"github.com/gorilla/mux"
)

// QueryService resolves page coordinates to text spans.
type QueryService interface {
	ResolveText(ctx context.Context, documentID string, pageIndex int, x, y float64) (*domain.SpanMatch, error)
}

// QueryHandler handles coordinate-to-text HTTP requests
type QueryHandler struct {
	queries QueryService
	logger  domain.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queries QueryService, logger domain.Logger) *QueryHandler {
	return &QueryHandler{
		queries: queries,
		logger:  logger,
	}
}

// ResolveText answers GET /documents/{id}/pages/{page}/text?x=&y= with the
// span at (or nearest to) the given page coordinate.
func (h *QueryHandler) ResolveText(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]

	pageIndex, err := strconv.Atoi(vars["page"])
	if err != nil || pageIndex < 0 {
		writeError(w, apperrors.NewValidationError("page index must be a non-negative integer"))
		return
	}

	x, xErr := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, yErr := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if xErr != nil || yErr != nil {
		writeError(w, apperrors.NewValidationError("query parameters x and y must be numbers"))
		return
	}

	match, err := h.queries.ResolveText(r.Context(), documentID, pageIndex, x, y)
	if err != nil {
		writeError(w, toAppError(err))
		return
	}

	writeJSON(w, http.StatusOK, match)
}
