// config.go - Configuration loaded from environment variables

package configs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	// Server Configuration
	PORT              string
	ALLOWED_ORIGINS   string
	UPLOAD_DIR        string
	OUTPUT_DIR        string
	OUTPUT_URL_PREFIX string
	MAX_FILE_SIZE     int64

	// Concurrency settings
	MAX_CONCURRENCY          int
	MAX_CONCURRENT_OCR_TASKS int // Admission capacity: how many engine calls may run at once

	// Inference engine settings
	ENGINE_PROVIDER        string // "http" or "gemini"
	INFERENCE_URL          string
	INFERENCE_HEALTH_URL   string
	INFERENCE_AUTH_TOKEN   string
	ENGINE_TIMEOUT_SECONDS int // 0 means no timeout
	ENGINE_RATE_PER_MINUTE int // 0 disables the engine rate limiter

	// Gemini Configuration
	GEMINI_API_KEY string
	MODEL_NAME     string

	// Task retention
	TASK_RETENTION_MINUTES      int // 0 keeps finished tasks forever
	TASK_SWEEP_INTERVAL_SECONDS int

	// MongoDB Configuration (optional task archive)
	MONGO_URI     string
	MONGO_DB_NAME string

	// PDF rasterisation
	PDF_DPI int

	// Logging
	LOG_LEVEL  string
	LOG_FORMAT string
)

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	PORT = getEnv("PORT", "8000")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")
	UPLOAD_DIR = getEnv("UPLOAD_DIR", "uploads")
	OUTPUT_DIR = getEnv("OUTPUT_DIR", "outputs")
	OUTPUT_URL_PREFIX = strings.TrimRight(getEnv("OUTPUT_URL_PREFIX", "/outputs"), "/")
	MAX_FILE_SIZE = int64(getEnvInt("MAX_FILE_SIZE", 10*1024*1024)) // 10MB

	MAX_CONCURRENCY = getEnvInt("MAX_CONCURRENCY", 10)
	// GPU memory is the real limit, so admission never defaults above 3
	MAX_CONCURRENT_OCR_TASKS = getEnvInt("MAX_CONCURRENT_OCR_TASKS", min(MAX_CONCURRENCY, 3))
	if MAX_CONCURRENT_OCR_TASKS < 1 {
		log.Warnf("MAX_CONCURRENT_OCR_TASKS=%d is invalid, using 1", MAX_CONCURRENT_OCR_TASKS)
		MAX_CONCURRENT_OCR_TASKS = 1
	}

	ENGINE_PROVIDER = strings.ToLower(getEnv("ENGINE_PROVIDER", "http"))
	INFERENCE_URL = getEnv("INFERENCE_URL", "http://127.0.0.1:9000/infer")
	INFERENCE_HEALTH_URL = getEnv("INFERENCE_HEALTH_URL", deriveHealthURL(INFERENCE_URL))
	INFERENCE_AUTH_TOKEN = getEnv("INFERENCE_AUTH_TOKEN", "")
	ENGINE_TIMEOUT_SECONDS = getEnvInt("ENGINE_TIMEOUT_SECONDS", 0)
	ENGINE_RATE_PER_MINUTE = getEnvInt("ENGINE_RATE_PER_MINUTE", 0)

	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	MODEL_NAME = getEnv("MODEL_NAME", "gemini-2.5-flash")
	if ENGINE_PROVIDER == "gemini" && GEMINI_API_KEY == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required when ENGINE_PROVIDER=gemini")
	}

	TASK_RETENTION_MINUTES = getEnvInt("TASK_RETENTION_MINUTES", 24*60)
	TASK_SWEEP_INTERVAL_SECONDS = getEnvInt("TASK_SWEEP_INTERVAL_SECONDS", 60)

	MONGO_URI = getEnv("MONGO_URI", "")
	MONGO_DB_NAME = getEnv("MONGO_DB_NAME", "deepseek_ocr")

	PDF_DPI = getEnvInt("PDF_DPI", 144)

	LOG_LEVEL = getEnv("LOG_LEVEL", "info")
	LOG_FORMAT = getEnv("LOG_FORMAT", "text")

	log.Info("✓ Configuration loaded successfully")
}

// EngineTimeout returns the per-call engine bound, zero when unbounded.
func EngineTimeout() time.Duration {
	return time.Duration(ENGINE_TIMEOUT_SECONDS) * time.Second
}

// TaskRetention returns how long finished tasks stay in memory.
func TaskRetention() time.Duration {
	return time.Duration(TASK_RETENTION_MINUTES) * time.Minute
}

// TaskSweepInterval returns the janitor period.
func TaskSweepInterval() time.Duration {
	if TASK_SWEEP_INTERVAL_SECONDS <= 0 {
		return time.Minute
	}
	return time.Duration(TASK_SWEEP_INTERVAL_SECONDS) * time.Second
}

// deriveHealthURL swaps the last path element of the inference URL for /health.
func deriveHealthURL(inferURL string) string {
	idx := strings.LastIndex(inferURL, "/")
	if idx <= len("https://") {
		return strings.TrimRight(inferURL, "/") + "/health"
	}
	return inferURL[:idx] + "/health"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warnf("Invalid integer for %s=%q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}
