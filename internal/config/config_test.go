package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QUEUE_BUCKET", "QUEUE_PREFIX", "GCP_PROJECT", "GCP_REGION",
		"VERTEX_IMAGE", "VERTEX_MACHINE_TYPE", "LAUNCH_TIMEOUT",
		"LAUNCH_POLICY_FILE", "MAX_LAUNCH_ATTEMPTS", "MAX_CONFLICT_RETRIES",
		"MAX_DRAIN_TICKS", "STALE_AFTER", "DRAIN_CRON", "DRAIN_QUEUE", "LISTEN_ADDR",
		"LOG_LEVEL", "ENV", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_BUCKET", "ml-queues")
	t.Setenv("QUEUE_PREFIX", "teams/research")
	t.Setenv("GCP_PROJECT", "acme-ml")
	t.Setenv("GCP_REGION", "europe-west4")
	t.Setenv("VERTEX_IMAGE", "gcr.io/acme-ml/trainer:v3")
	t.Setenv("MAX_LAUNCH_ATTEMPTS", "5")
	t.Setenv("STALE_AFTER", "45m")
	t.Setenv("DRAIN_CRON", "@every 10m")
	t.Setenv("DRAIN_QUEUE", "bench")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "ml-queues", cfg.QueueBucket)
	assert.Equal(t, "teams/research", cfg.QueuePrefix)
	assert.Equal(t, "acme-ml", cfg.Vertex.Project)
	assert.Equal(t, "gcr.io/acme-ml/trainer:v3", cfg.Vertex.Image)
	assert.Equal(t, 5, cfg.MaxLaunchAttempts)
	assert.Equal(t, 45*time.Minute, cfg.StaleAfter)
	assert.Equal(t, "@every 10m", cfg.DrainCron)
	assert.Equal(t, "bench", cfg.DrainQueue)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_DrainCronRequiresQueue(t *testing.T) {
	clearEnv(t)
	t.Setenv("DRAIN_CRON", "@every 5m")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DRAIN_QUEUE")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Empty(t, cfg.QueueBucket)
	assert.Equal(t, "queues", cfg.QueuePrefix)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, float64(100), cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "n1-standard-4", cfg.Vertex.MachineType)
	assert.False(t, cfg.HasBucket())
	assert.NotEmpty(t, cfg.Warnings, "dev mode fallback is warned about")
}

func TestLoadFromEnv_PartialVertexConfigRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("GCP_PROJECT", "acme-ml")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GCP_REGION")
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative_attempts", "MAX_LAUNCH_ATTEMPTS", "-1"},
		{"non_numeric_retries", "MAX_CONFLICT_RETRIES", "lots"},
		{"bad_duration", "LAUNCH_TIMEOUT", "5 minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadFromEnv_ProductionRequiresRealBackends(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ml.example.com")

	_, err := LoadFromEnv()
	require.Error(t, err, "in-memory fallback is not allowed in production")

	t.Setenv("QUEUE_BUCKET", "ml-queues")
	_, err = LoadFromEnv()
	require.Error(t, err, "Vertex config is required in production")

	t.Setenv("GCP_PROJECT", "acme-ml")
	t.Setenv("GCP_REGION", "europe-west4")
	t.Setenv("VERTEX_IMAGE", "gcr.io/acme-ml/trainer:v3")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoadFromEnv_ProductionRejectsCORSWildcard(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("QUEUE_BUCKET", "ml-queues")
	t.Setenv("GCP_PROJECT", "acme-ml")
	t.Setenv("GCP_REGION", "europe-west4")
	t.Setenv("VERTEX_IMAGE", "gcr.io/acme-ml/trainer:v3")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"garbage", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.level)
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_KEY=test_value\n# comment\nTEST_QUOTED=\"quoted\"\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	if val := os.Getenv("TEST_QUOTED"); val != "quoted" {
		t.Errorf("TEST_QUOTED = %q, want %q", val, "quoted")
	}
	_ = os.Unsetenv("TEST_KEY")
	_ = os.Unsetenv("TEST_QUOTED")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
