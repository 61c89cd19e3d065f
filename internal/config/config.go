package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the memory proxy service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	GeminiAPIKey    string
	GeminiURL       string
	GenerateTimeout time.Duration

	StoragePath string
	DatabaseURL string

	HistoryCap    int
	ContextWindow int

	HistoryViewSecret string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "recall"),
		AllowAnyOrigin:   false,
		GeminiAPIKey:     stringsTrimSpace("GEMINI_API_KEY"),
		GeminiURL:        envOrDefault("GEMINI_URL", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"),
		StoragePath:      envOrDefault("MEMORY_FILE", "memory.json"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		// Read gate for the history view; empty means the view is open.
		HistoryViewSecret: stringsTrimSpace("HISTORY_VIEW_SECRET"),
		HistoryCap:        200,
		ContextWindow:     60,
		GenerateTimeout:   25 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}

	// Older deployments exported API_KEY before the GEMINI_ prefix existed.
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = stringsTrimSpace("API_KEY")
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerateTimeout, err = durationFromEnv("GEMINI_TIMEOUT", cfg.GenerateTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryCap, err = intFromEnv("HISTORY_CAP", cfg.HistoryCap)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextWindow, err = intFromEnv("CONTEXT_WINDOW", cfg.ContextWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.StoragePath) == "" {
		return Config{}, fmt.Errorf("MEMORY_FILE must not be empty")
	}
	if cfg.HistoryCap <= 0 {
		return Config{}, fmt.Errorf("HISTORY_CAP must be positive")
	}
	if cfg.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("CONTEXT_WINDOW must be positive")
	}
	if cfg.GenerateTimeout < time.Second {
		return Config{}, fmt.Errorf("GEMINI_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
