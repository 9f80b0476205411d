package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// app config for the interview gateway
type Config struct {
	Port           string
	BackendURL     string // websocket URL of the interview backend
	TTSBaseURL     string
	RedisAddr      string
	PostgresDSN    string
	DevMode        bool // serve the built-in scripted/Gemini interviewer
	ExportDir      string
	ExportSchedule string // cron spec for archive export
	PruneMaxAge    time.Duration
	TokenTTL       time.Duration
}

// loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Port:           getEnvOrDefault("PORT", "8087"),
		BackendURL:     getEnvOrDefault("INTERVIEW_BACKEND_URL", "ws://localhost:8088/interview"),
		TTSBaseURL:     getEnvOrDefault("TTS_BASE_URL", "http://localhost:5002"),
		RedisAddr:      getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		DevMode:        getEnvBool("DEV_MODE", false),
		ExportDir:      getEnvOrDefault("EXPORT_DIR", "./exports"),
		ExportSchedule: getEnvOrDefault("EXPORT_SCHEDULE", "0 * * * *"),
		PruneMaxAge:    getEnvDuration("SESSION_PRUNE_MAX_AGE", 2*time.Hour),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 4*time.Hour),
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.BackendURL == "" && !config.DevMode {
		return errors.New("INTERVIEW_BACKEND_URL is required unless DEV_MODE is set")
	}
	if config.PruneMaxAge <= 0 {
		return errors.New("SESSION_PRUNE_MAX_AGE must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
