package config

import (
	"context"
	"path/filepath"

	"pdf-layout-server/internal/domain"
	"pdf-layout-server/internal/extract"
	"pdf-layout-server/internal/ocr"
	"pdf-layout-server/internal/pipeline"
	"pdf-layout-server/internal/repository"
	"pdf-layout-server/internal/service"
	"pdf-layout-server/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config domain.Config
	Logger domain.Logger

	DocumentStore domain.DocumentStore
	AssetStore    domain.AssetStore

	Broadcaster *pipeline.Broadcaster
	Scheduler   *pipeline.Scheduler
	Coordinator *pipeline.Coordinator

	DocumentService *service.DocumentService
	QueryService    *service.QueryService
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	config := NewConfig()
	appLogger := logger.NewLogger(config.GetLogLevel())

	// Persistence: Supabase when credentials are configured, otherwise
	// in-memory records with page assets on local disk.
	var documentStore domain.DocumentStore
	var assetStore domain.AssetStore
	if config.GetSupabaseURL() != "" && config.GetSupabaseKey() != "" {
		supabaseClient := repository.NewSupabaseClient(config, appLogger)
		if err := supabaseClient.Initialize(); err != nil {
			return nil, err
		}
		documentStore = repository.NewSupabaseDocumentStore(supabaseClient, appLogger)
		assetStore = repository.NewSupabaseAssetStore(config.GetSupabaseURL(), config.GetSupabaseKey(), config.GetStorageBucket())
	} else {
		appLogger.Warn("no Supabase credentials configured, using in-memory store and local assets")
		documentStore = repository.NewMemoryDocumentStore()
		assetStore = repository.NewLocalAssetStore(filepath.Join(config.GetUploadPath(), "assets"))
	}

	engine := extract.NewEngine(appLogger)

	var ocrProvider domain.OCRProvider
	if cmd := config.GetOCRCommand(); cmd != "" {
		ocrProvider = ocr.NewTesseract(cmd, appLogger)
	}

	broadcaster := pipeline.NewBroadcaster(config.GetEventRetention(), appLogger)
	worker := pipeline.NewWorker(engine, engine, ocrProvider, documentStore, assetStore, config.GetGridResolution(), appLogger)

	schedulerOpts := []pipeline.SchedulerOption{
		pipeline.WithQueueSize(config.GetQueueSize()),
		pipeline.WithMaxRetries(config.GetMaxRetries()),
		pipeline.WithRetryBackoff(config.GetRetryBackoff()),
	}
	if n := config.GetWorkerCount(); n > 0 {
		schedulerOpts = append(schedulerOpts, pipeline.WithWorkers(n))
	}
	scheduler := pipeline.NewScheduler(worker, appLogger, schedulerOpts...)

	coordinator := pipeline.NewCoordinator(documentStore, scheduler, broadcaster, config.GetEnqueueTimeout(), appLogger)

	queryService := service.NewQueryService(documentStore, config.GetGridResolution(), appLogger)
	documentService := service.NewDocumentService(documentStore, coordinator, broadcaster, queryService, config, appLogger)

	return &Container{
		Config:          config,
		Logger:          appLogger,
		DocumentStore:   documentStore,
		AssetStore:      assetStore,
		Broadcaster:     broadcaster,
		Scheduler:       scheduler,
		Coordinator:     coordinator,
		DocumentService: documentService,
		QueryService:    queryService,
	}, nil
}

// Shutdown drains in-flight page work and detaches event subscribers.
func (c *Container) Shutdown(ctx context.Context) {
	c.Scheduler.Shutdown(ctx)
	c.Broadcaster.Close()
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}
