package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/lessonpage/internal/paginate"
)

type Config struct {
	Port string

	// Auth
	LessonpageAPIKey string

	// Progress delivery. When ProgressURL is empty events go straight to
	// the local progress store.
	ProgressURL         string
	ProgressAPIKey      string
	ProgressHTTPTimeout time.Duration
	ReportConcurrency   int

	// Progress store: memory, sqlite or redis.
	ProgressStore    string
	ProgressStoreDSN string

	// Lesson content. ContentURL wins over ContentDir.
	ContentURL    string
	ContentAPIKey string
	ContentDir    string

	// Rendering
	PageMarker string

	// Views
	ViewTTL time.Duration

	// Upload limits
	MaxUploadBytes int64
	MaxBatchFiles  int

	// PDF
	PDFFallbackPdftotext bool

	// Shutdown
	ShutdownDrainTimeout time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		LessonpageAPIKey: os.Getenv("LESSONPAGE_API_KEY"),

		ProgressURL:         os.Getenv("PROGRESS_URL"),
		ProgressAPIKey:      os.Getenv("PROGRESS_API_KEY"),
		ProgressHTTPTimeout: envDuration("PROGRESS_HTTP_TIMEOUT", 0),
		ReportConcurrency:   envInt("REPORT_CONCURRENCY", 8),

		ProgressStore:    envOr("PROGRESS_STORE", "memory"),
		ProgressStoreDSN: os.Getenv("PROGRESS_STORE_DSN"),

		ContentURL:    os.Getenv("CONTENT_URL"),
		ContentAPIKey: os.Getenv("CONTENT_API_KEY"),
		ContentDir:    envOr("CONTENT_DIR", "lessons"),

		PageMarker: envOr("PAGE_MARKER", string(paginate.MarkerLine)),

		ViewTTL: envDuration("VIEW_TTL", 2*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		MaxBatchFiles:  envInt("MAX_BATCH_FILES", 20),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		ShutdownDrainTimeout: envDuration("SHUTDOWN_DRAIN_TIMEOUT", 5*time.Second),
	}

	if cfg.ProgressStoreDSN == "" {
		switch cfg.ProgressStore {
		case "sqlite":
			cfg.ProgressStoreDSN = envOr("SQLITE_PATH", "lessonpage.db")
		case "redis":
			cfg.ProgressStoreDSN = envOr("REDIS_ADDR", "localhost:6379")
		}
	}

	if cfg.ProgressHTTPTimeout < 0 {
		cfg.ProgressHTTPTimeout = 0
	}
	if cfg.ReportConcurrency <= 0 {
		cfg.ReportConcurrency = 8
	}
	if cfg.ViewTTL <= 0 {
		cfg.ViewTTL = 2 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxBatchFiles <= 0 {
		cfg.MaxBatchFiles = 20
	}
	if cfg.ShutdownDrainTimeout <= 0 {
		cfg.ShutdownDrainTimeout = 5 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	if c.LessonpageAPIKey == "" {
		return fmt.Errorf("LESSONPAGE_API_KEY is required")
	}
	if _, err := paginate.ParseMarker(c.PageMarker); err != nil {
		return fmt.Errorf("PAGE_MARKER: %w", err)
	}
	switch c.ProgressStore {
	case "memory":
	case "sqlite", "redis":
		if c.ProgressStoreDSN == "" {
			return fmt.Errorf("PROGRESS_STORE_DSN is required for %s", c.ProgressStore)
		}
	default:
		return fmt.Errorf("PROGRESS_STORE must be memory, sqlite or redis, got %q", c.ProgressStore)
	}
	if c.ProgressURL != "" && c.ProgressAPIKey == "" {
		return fmt.Errorf("PROGRESS_API_KEY is required when PROGRESS_URL is set")
	}
	return nil
}

// Marker returns the parsed page marker. Call after Validate.
func (c Config) Marker() paginate.Marker {
	m, _ := paginate.ParseMarker(c.PageMarker)
	return m
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
