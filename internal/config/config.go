// Package config reads formguard settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Draft backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	DBPath       string
	DraftBackend string
	RedisURL     string
	DraftTTL     time.Duration
	// Empty means the built-in CRM forms.
	SchemaDir string
	LogLevel  string
}

func Load() Config {
	return Config{
		DBPath:       getenv("FORMGUARD_DB", "./formguard.db"),
		DraftBackend: strings.ToLower(getenv("FORMGUARD_DRAFT_BACKEND", BackendSQLite)),
		RedisURL:     getenv("FORMGUARD_REDIS_URL", "redis://localhost:6379/0"),
		DraftTTL:     time.Duration(getenvInt("FORMGUARD_DRAFT_TTL_SECONDS", 604800)) * time.Second,
		SchemaDir:    getenv("FORMGUARD_SCHEMA_DIR", ""),
		LogLevel:     getenv("FORMGUARD_LOG_LEVEL", "info"),
	}
}

// Validate rejects an unknown draft backend.
func (c Config) Validate() error {
	switch c.DraftBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
		return nil
	}
	return fmt.Errorf("unknown draft backend %q (want sqlite, redis or memory)", c.DraftBackend)
}

// Level maps LogLevel to a slog level. Unknown names fall back to info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
