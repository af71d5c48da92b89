package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"live-clientv1/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Session API
	APIBaseURL    string
	RealtimeURL   string
	RealtimeToken string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	JournalPath   string
	MetricsAddr   string

	// Client-side retention caps
	BarCap    int
	MarkerCap int

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		APIBaseURL:    mustEnv("API_BASE_URL"),
		RealtimeURL:   mustEnv("REALTIME_URL"),
		RealtimeToken: getEnv("REALTIME_TOKEN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JournalPath:   getEnv("JOURNAL_PATH", "data/session.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		BarCap:    getEnvInt("BAR_CAP", 500),
		MarkerCap: getEnvInt("MARKER_CAP", 100),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// LoadSessionFile reads a session definition from a YAML file.
func LoadSessionFile(path string) (model.SessionConfig, error) {
	var cfg model.SessionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read session file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse session file %s: %w", path, err)
	}
	return cfg, nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring invalid %s value: %q", key, v)
		return fallback
	}
	return n
}
