package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pdftext/internal/extraction"
	"pdftext/internal/logger"
)

// OCR providers accepted in OCR_PROVIDER.
const (
	OCRTesseract  = "tesseract"
	OCRVision     = "vision"
	OCRDocumentAI = "documentai"
	OCRNone       = "none"
)

// DefaultAIBaseURL is the OpenAI-compatible endpoint of the Gemini API.
const DefaultAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

type Config struct {
	// Hosted vision model
	AIAPIKey            string
	AIBaseURL           string
	AIModel             string
	AIMaxConcurrent     int
	AIRequestsPerMinute int
	AIMaxRetries        int

	// OCR
	OCRProvider   string
	TesseractLang string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Reconciliation and scheduling
	Strategy       string
	FallbackText   string
	Workers        int
	BackendTimeout time.Duration

	// External tools
	PdftoppmPath  string
	PdftotextPath string
	TesseractPath string
	RasterDPI     int

	// Optional Google Sheets export
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		AIAPIKey:                   getEnv("AI_API_KEY", os.Getenv("GEMINI_API_KEY")),
		AIBaseURL:                  getEnv("AI_BASE_URL", DefaultAIBaseURL),
		AIModel:                    getEnv("AI_MODEL", "gemini-2.0-flash"),
		AIMaxConcurrent:            getIntEnv("AI_MAX_CONCURRENT", 2),
		AIRequestsPerMinute:        getIntEnv("AI_REQUESTS_PER_MINUTE", 60),
		AIMaxRetries:               getIntEnv("AI_MAX_RETRIES", 3),
		OCRProvider:                strings.ToLower(getEnv("OCR_PROVIDER", OCRTesseract)),
		TesseractLang:              getEnv("TESSERACT_LANG", "eng"),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		Strategy:                   getEnv("RECONCILE_STRATEGY", "ai-preferred"),
		FallbackText:               lookupEnv("FALLBACK_TEXT", extraction.DefaultFallbackText),
		Workers:                    getIntEnv("EXTRACT_WORKERS", 4),
		BackendTimeout:             getDurationEnv("BACKEND_TIMEOUT", 60*time.Second),
		PdftoppmPath:               getEnv("PDFTOPPM_PATH", "pdftoppm"),
		PdftotextPath:              getEnv("PDFTOTEXT_PATH", "pdftotext"),
		TesseractPath:              getEnv("TESSERACT_PATH", "tesseract"),
		RasterDPI:                  getIntEnv("RASTER_DPI", 300),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", "Extractions"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks enumerations and numeric bounds. Missing credentials are
// not errors: the affected backend is reported unavailable at run time.
func (c *Config) Validate() error {
	switch c.OCRProvider {
	case OCRTesseract, OCRVision, OCRDocumentAI, OCRNone:
	default:
		return fmt.Errorf("OCR_PROVIDER must be one of %s, %s, %s, %s (got %q)",
			OCRTesseract, OCRVision, OCRDocumentAI, OCRNone, c.OCRProvider)
	}
	if _, err := extraction.ParseStrategy(c.Strategy, c.FallbackText); err != nil {
		return fmt.Errorf("RECONCILE_STRATEGY: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("EXTRACT_WORKERS must be at least 1")
	}
	if c.AIMaxConcurrent < 1 {
		return fmt.Errorf("AI_MAX_CONCURRENT must be at least 1")
	}
	if c.AIRequestsPerMinute < 1 {
		return fmt.Errorf("AI_REQUESTS_PER_MINUTE must be at least 1")
	}
	if c.AIMaxRetries < 1 {
		return fmt.Errorf("AI_MAX_RETRIES must be at least 1")
	}
	if c.RasterDPI < 36 || c.RasterDPI > 1200 {
		return fmt.Errorf("RASTER_DPI must be between 36 and 1200 (got %d)", c.RasterDPI)
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must not be negative")
	}
	if c.OCRProvider == OCRDocumentAI && c.GoogleCloudProject == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when OCR_PROVIDER=%s", OCRDocumentAI)
	}
	return nil
}

// HasAIKey reports whether a hosted-model key is configured.
func (c *Config) HasAIKey() bool {
	return strings.TrimSpace(c.AIAPIKey) != ""
}

// With returns a validated copy of c with fn applied. The receiver is left
// untouched so backends built from it keep their settings.
func (c *Config) With(fn func(*Config)) (*Config, error) {
	next := *c
	fn(&next)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv is getEnv for keys where an explicitly empty value is meaningful.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare numbers are seconds
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
