package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Intake modes supported by the worker.
const (
	IntakePoll  = "poll"
	IntakeQueue = "queue"
)

type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string
	RedisURL    string

	IntakeMode   string
	PollInterval time.Duration
	PollBatch    int
	Concurrency  int
	SweepEvery   time.Duration
	ReclaimAfter time.Duration

	GenerationProvider string
	GenerationAPIKey   string
	GenerationBaseURL  string
	GenerationModel    string
	GenerationTimeout  time.Duration
	GenerationRetries  int
	GenerationRPS      float64

	// MessageKey is the AES-256 key for inbound payloads, decoded from
	// MESSAGE_ENC_KEY (64 hex chars). Validated once here, not per message.
	MessageKey []byte

	SenderRegion string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		IntakeMode:         strings.ToLower(getEnv("INTAKE_MODE", IntakePoll)),
		PollInterval:       parseDuration(getEnv("POLL_INTERVAL", "5s")),
		PollBatch:          parseInt(getEnv("POLL_BATCH", "50")),
		Concurrency:        parseInt(getEnv("PIPELINE_CONCURRENCY", "5")),
		SweepEvery:         parseDuration(getEnv("SWEEP_INTERVAL", "1m")),
		ReclaimAfter:       parseDuration(getEnv("RECLAIM_AFTER", "15m")),
		GenerationProvider: strings.ToLower(getEnv("GENERATION_PROVIDER", "gemini")),
		GenerationAPIKey:   getEnv("GENERATION_API_KEY", ""),
		GenerationBaseURL:  getEnv("GENERATION_BASE_URL", ""),
		GenerationModel:    getEnv("GENERATION_MODEL", ""),
		GenerationTimeout:  parseDuration(getEnv("GENERATION_TIMEOUT", "10s")),
		GenerationRetries:  parseInt(getEnv("GENERATION_RETRIES", "2")),
		GenerationRPS:      parseFloat(getEnv("GENERATION_RPS", "2")),
		SenderRegion:       getEnv("SENDER_REGION", "US"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.GenerationAPIKey == "" {
		return nil, fmt.Errorf("GENERATION_API_KEY is required")
	}
	if cfg.GenerationProvider != "gemini" && cfg.GenerationProvider != "chatcomp" {
		return nil, fmt.Errorf("GENERATION_PROVIDER must be gemini or chatcomp")
	}
	if cfg.IntakeMode != IntakePoll && cfg.IntakeMode != IntakeQueue {
		return nil, fmt.Errorf("INTAKE_MODE must be poll or queue")
	}
	if cfg.IntakeMode == IntakeQueue && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when INTAKE_MODE is queue")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("PIPELINE_CONCURRENCY must be at least 1")
	}

	key, err := decodeMessageKey(getEnv("MESSAGE_ENC_KEY", ""))
	if err != nil {
		return nil, err
	}
	cfg.MessageKey = key

	return cfg, nil
}

// decodeMessageKey enforces the key contract at startup: exactly 64 hex
// characters decoding to a 32-byte AES-256 key.
func decodeMessageKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("MESSAGE_ENC_KEY is required")
	}
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("MESSAGE_ENC_KEY must be 64 hex characters, got %d", len(hexKey))
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("MESSAGE_ENC_KEY must be hex encoded: %w", err)
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func parseDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func parseInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
