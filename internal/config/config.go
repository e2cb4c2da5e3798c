package config

import (
	"os"
	"strconv"
	"time"

	"pdf-layout-server/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort  string
	UploadPath  string
	MaxFileSize int64
	LogLevel    string

	WorkerCount    int
	QueueSize      int
	EnqueueTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	EventRetention int
	GridResolution int

	SupabaseURL   string
	SupabaseKey   string
	StorageBucket string
	OCRCommand    string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:  getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		UploadPath:  getEnvOrDefault("UPLOAD_PATH", "./uploads"),
		MaxFileSize: getEnvInt64OrDefault("MAX_FILE_SIZE", 50*1024*1024), // 50MB default
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),

		// WORKER_COUNT 0 means one worker per CPU.
		WorkerCount:    getEnvIntOrDefault("WORKER_COUNT", 0),
		QueueSize:      getEnvIntOrDefault("QUEUE_SIZE", 256),
		EnqueueTimeout: getEnvDurationOrDefault("ENQUEUE_TIMEOUT", 30*time.Second),
		MaxRetries:     getEnvIntOrDefault("MAX_RETRIES", 2),
		RetryBackoff:   getEnvDurationOrDefault("RETRY_BACKOFF", 500*time.Millisecond),

		EventRetention: getEnvIntOrDefault("EVENT_RETENTION", 200),
		GridResolution: getEnvIntOrDefault("GRID_RESOLUTION", 32),

		SupabaseURL:   getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:   getEnvOrDefault("SUPABASE_SERVICE_KEY", ""),
		StorageBucket: getEnvOrDefault("STORAGE_BUCKET", "page-assets"),
		OCRCommand:    getEnvOrDefault("OCR_COMMAND", ""),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetUploadPath returns the upload directory path
func (c *AppConfig) GetUploadPath() string {
	return c.UploadPath
}

// GetMaxFileSize returns the maximum allowed file size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetWorkerCount returns the page worker pool size
func (c *AppConfig) GetWorkerCount() int {
	return c.WorkerCount
}

// GetQueueSize returns the pending page task queue capacity
func (c *AppConfig) GetQueueSize() int {
	return c.QueueSize
}

// GetEnqueueTimeout returns how long dispatch waits for queue capacity
func (c *AppConfig) GetEnqueueTimeout() time.Duration {
	return c.EnqueueTimeout
}

// GetMaxRetries returns the per-page transient failure retry budget
func (c *AppConfig) GetMaxRetries() int {
	return c.MaxRetries
}

// GetRetryBackoff returns the base delay of the retry backoff
func (c *AppConfig) GetRetryBackoff() time.Duration {
	return c.RetryBackoff
}

// GetEventRetention returns the per-document status event replay window
func (c *AppConfig) GetEventRetention() int {
	return c.EventRetention
}

// GetGridResolution returns the spatial index grid resolution per axis
func (c *AppConfig) GetGridResolution() int {
	return c.GridResolution
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase service key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetStorageBucket returns the page asset storage bucket name
func (c *AppConfig) GetStorageBucket() string {
	return c.StorageBucket
}

// GetOCRCommand returns the OCR binary path, empty when OCR is disabled
func (c *AppConfig) GetOCRCommand() string {
	return c.OCRCommand
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
