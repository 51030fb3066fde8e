package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"FORMGUARD_DB", "FORMGUARD_DRAFT_BACKEND", "FORMGUARD_REDIS_URL",
		"FORMGUARD_DRAFT_TTL_SECONDS",
		"FORMGUARD_SCHEMA_DIR", "FORMGUARD_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "./formguard.db", cfg.DBPath)
	assert.Equal(t, BackendSQLite, cfg.DraftBackend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 7*24*time.Hour, cfg.DraftTTL)
	assert.Empty(t, cfg.SchemaDir)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FORMGUARD_DB", "/var/lib/formguard/drafts.db")
	t.Setenv("FORMGUARD_DRAFT_BACKEND", "Redis")
	t.Setenv("FORMGUARD_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("FORMGUARD_DRAFT_TTL_SECONDS", "3600")
	t.Setenv("FORMGUARD_SCHEMA_DIR", "./forms")
	t.Setenv("FORMGUARD_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "/var/lib/formguard/drafts.db", cfg.DBPath)
	assert.Equal(t, BackendRedis, cfg.DraftBackend)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, time.Hour, cfg.DraftTTL)
	assert.Equal(t, "./forms", cfg.SchemaDir)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadBadNumbersFallBack(t *testing.T) {
	t.Setenv("FORMGUARD_DRAFT_TTL_SECONDS", "a week")

	cfg := Load()
	assert.Equal(t, 7*24*time.Hour, cfg.DraftTTL)
}

func TestValidate(t *testing.T) {
	cfg := Config{DraftBackend: "etcd"}
	err := cfg.Validate()
	assert.ErrorContains(t, err, `unknown draft backend "etcd"`)

	for _, b := range []string{BackendSQLite, BackendRedis, BackendMemory} {
		assert.NoError(t, Config{DraftBackend: b}.Validate())
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "WARN"}.Level())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.Level())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "chatty"}.Level())
}
