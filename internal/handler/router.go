package handler

import (
	"net/http"

	"pdf-layout-server/internal/config"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(container *config.Container) http.Handler {
	router := mux.NewRouter()

	// API prefix
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(LoggingMiddleware(container.GetLogger()))

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"pdf-layout-server"}`))
	}).Methods("GET")

	// Initialize handlers
	documentHandler := NewDocumentHandler(container.DocumentService, container.GetLogger())
	queryHandler := NewQueryHandler(container.QueryService, container.GetLogger())
	eventsHandler := NewEventsHandler(container.Broadcaster, container.GetLogger())

	// Document routes
	api.HandleFunc("/documents", documentHandler.UploadDocument).Methods("POST")
	api.HandleFunc("/documents/{id}", documentHandler.GetDocument).Methods("GET")
	api.HandleFunc("/documents/{id}/reprocess", documentHandler.ReprocessDocument).Methods("POST")
	api.HandleFunc("/documents/{id}/cancel", documentHandler.CancelProcessing).Methods("POST")

	// Query and event routes
	api.HandleFunc("/documents/{id}/pages/{page}/text", queryHandler.ResolveText).Methods("GET")
	api.HandleFunc("/documents/{id}/events", eventsHandler.StreamEvents).Methods("GET")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:4173",
			"http://localhost:3000",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		ExposedHeaders: []string{
			"Link",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler(router)
}
