// Package config loads worker fleet configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider selects which transcription backend the fleet talks to.
type Provider string

const (
	ProviderAssemblyAI Provider = "assemblyai"
	ProviderMock        Provider = "mock"
)

// Config holds every environment-derived setting named in the external
// interfaces contract, plus the tuning constants.
type Config struct {
	RedisURL string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string

	TranscriptionProvider Provider
	AssemblyAIAPIKey      string

	MaxRetries           int
	InitialBackoff       time.Duration
	MaxGlobalConcurrency int
	MaxAIConcurrency     int
	TranscribePollEvery  time.Duration
	TranscribeMaxPoll    time.Duration
	PresignExpiry        time.Duration

	MaxSubmissionsPerMinute int
	MaxConcurrentProcessing int

	TmpRoot string
}

// Load reads and validates configuration from the process environment.
// Missing required variables fail fast, matching cmd/worker and cmd/api's
// existing "construct-or-Fatalf" startup style.
func Load() (*Config, error) {
	cfg := &Config{
		RedisURL:              os.Getenv("REDIS_URL"),
		AWSRegion:              os.Getenv("AWS_REGION"),
		AWSAccessKeyID:         os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Bucket:               os.Getenv("S3_BUCKET_NAME"),
		TranscriptionProvider:  Provider(envOr("TRANSCRIPTION_PROVIDER", string(ProviderMock))),
		AssemblyAIAPIKey:       os.Getenv("ASSEMBLYAI_API_KEY"),
		MaxRetries:             envInt("MAX_RETRIES", 3),
		InitialBackoff:         envDuration("INITIAL_BACKOFF_MS", 2000*time.Millisecond),
		MaxGlobalConcurrency:   envInt("MAX_GLOBAL_CONCURRENCY", 5),
		MaxAIConcurrency:       envInt("MAX_AI_CONCURRENCY", 2),
		TranscribePollEvery:    envDuration("TRANSCRIBE_POLL_MS", 3000*time.Millisecond),
		TranscribeMaxPoll:      envDuration("TRANSCRIBE_MAX_POLL", 0),
		PresignExpiry:          time.Duration(envInt("PRESIGN_EXPIRY_S", 60)) * time.Second,
		MaxSubmissionsPerMinute: envInt("MAX_SUBMISSIONS_PER_MINUTE", 60),
		MaxConcurrentProcessing: envInt("MAX_CONCURRENT_PROCESSING", 100),
		TmpRoot:                envOr("TMP_ROOT", os.TempDir()),
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("config: REDIS_URL is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("config: S3_BUCKET_NAME is required")
	}
	if cfg.TranscriptionProvider != ProviderMock {
		if cfg.AWSRegion == "" || cfg.AWSAccessKeyID == "" || cfg.AWSSecretAccessKey == "" {
			return nil, fmt.Errorf("config: AWS_REGION, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required when TRANSCRIPTION_PROVIDER=%s", cfg.TranscriptionProvider)
		}
	}
	if cfg.TranscriptionProvider == ProviderAssemblyAI && cfg.AssemblyAIAPIKey == "" {
		return nil, fmt.Errorf("config: ASSEMBLYAI_API_KEY is required when TRANSCRIPTION_PROVIDER=assemblyai")
	}
	if cfg.TranscriptionProvider != ProviderAssemblyAI && cfg.TranscriptionProvider != ProviderMock {
		return nil, fmt.Errorf("config: TRANSCRIPTION_PROVIDER must be %q or %q, got %q", ProviderAssemblyAI, ProviderMock, cfg.TranscriptionProvider)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
