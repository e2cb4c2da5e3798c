package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"pdf-layout-server/internal/domain"
	"pdf-layout-server/internal/pipeline"
	apperrors "pdf-layout-server/pkg/errors"

	"github.com/gorilla/mux"
)

// EventsHandler streams document status events over Server-Sent Events.
type EventsHandler struct {
	broadcaster *pipeline.Broadcaster
	logger      domain.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(broadcaster *pipeline.Broadcaster, logger domain.Logger) *EventsHandler {
	return &EventsHandler{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// StreamEvents handles GET /documents/{id}/events. Retained events are
// replayed first, then live events until the client disconnects.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.NewInternalError("streaming unsupported", nil))
		return
	}

	// Subscribe before replaying so no event between the two is lost; the
	// subscription may then deliver a duplicate of the last replayed event,
	// which clients de-duplicate by timestamp.
	sub := h.broadcaster.Subscribe(documentID, 0)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, ev := range h.broadcaster.Replay(documentID) {
		if err := writeEvent(w, ev); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case ev, open := <-sub.C:
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev domain.StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
	return err
}
