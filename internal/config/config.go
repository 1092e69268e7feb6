// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// VertexConfig holds the Vertex AI launch backend configuration.
type VertexConfig struct {
	Project     string // GCP project ID
	Region      string // Vertex AI region (e.g. europe-west4)
	Image       string // default training container image URI
	MachineType string // default machine type (default: n1-standard-4)
}

// Validate checks that the Vertex configuration is internally consistent.
func (v *VertexConfig) Validate() error {
	if v.Project == "" {
		return fmt.Errorf("GCP_PROJECT is required when launching on Vertex AI")
	}
	if v.Region == "" {
		return fmt.Errorf("GCP_REGION is required when launching on Vertex AI")
	}
	if v.Image == "" {
		return fmt.Errorf("VERTEX_IMAGE is required when launching on Vertex AI")
	}
	return nil
}

// Config holds the configuration for the queue engine, the HTTP API and the
// optional Vertex AI launch backend.
type Config struct {
	// Queue document storage. Bucket is optional; when unset the app runs
	// in dev mode against an in-memory store and a local stub launcher.
	QueueBucket string // GCS bucket holding queue documents
	QueuePrefix string // object prefix inside the bucket (default "queues")

	// Tick engine limits. Zero values fall back to the engine defaults.
	MaxLaunchAttempts  int           // launch attempts per entry (default 3)
	MaxConflictRetries int           // conditional-write retries per operation (default 5)
	MaxDrainTicks      int           // tick bound per drain loop (default 100)
	StaleAfter         time.Duration // age before a LAUNCHING claim counts as wedged (default 30m)
	LaunchTimeout      time.Duration // deadline per backend launch call (default 5m)
	LaunchPolicyFile   string        // YAML retry policy table (optional)

	// Scheduled drains run only when both are set.
	DrainCron  string // cron spec for scheduled drains (e.g. "@every 5m")
	DrainQueue string // queue the scheduler drains

	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Vertex holds the launch backend configuration.
	Vertex VertexConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// HasBucket returns true when a queue document bucket is configured.
func (c *Config) HasBucket() bool {
	return c.QueueBucket != ""
}

// HasVertexConfig returns true when any Vertex launch backend setting is present.
func (c *Config) HasVertexConfig() bool {
	return c.Vertex.Project != "" || c.Vertex.Region != "" || c.Vertex.Image != ""
}

// LoadFromEnv loads configuration from environment variables.
// Storage and backend variables are optional; the app can start without them
// in dev mode.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		QueueBucket:      os.Getenv("QUEUE_BUCKET"),
		QueuePrefix:      os.Getenv("QUEUE_PREFIX"),
		LaunchPolicyFile: os.Getenv("LAUNCH_POLICY_FILE"),
		DrainCron:        os.Getenv("DRAIN_CRON"),
		DrainQueue:       os.Getenv("DRAIN_QUEUE"),
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Env:              os.Getenv("ENV"),
	}

	// Engine limits
	var err error
	if cfg.MaxLaunchAttempts, err = parseIntEnv("MAX_LAUNCH_ATTEMPTS"); err != nil {
		return nil, err
	}
	if cfg.MaxConflictRetries, err = parseIntEnv("MAX_CONFLICT_RETRIES"); err != nil {
		return nil, err
	}
	if cfg.MaxDrainTicks, err = parseIntEnv("MAX_DRAIN_TICKS"); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = parseDurationEnv("STALE_AFTER"); err != nil {
		return nil, err
	}
	if cfg.LaunchTimeout, err = parseDurationEnv("LAUNCH_TIMEOUT"); err != nil {
		return nil, err
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Vertex config
	cfg.Vertex = VertexConfig{
		Project:     os.Getenv("GCP_PROJECT"),
		Region:      os.Getenv("GCP_REGION"),
		Image:       os.Getenv("VERTEX_IMAGE"),
		MachineType: os.Getenv("VERTEX_MACHINE_TYPE"),
	}

	// Defaults
	if cfg.QueuePrefix == "" {
		cfg.QueuePrefix = "queues"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Vertex.MachineType == "" {
		cfg.Vertex.MachineType = "n1-standard-4"
	}
	if cfg.DrainCron != "" && cfg.DrainQueue == "" {
		return nil, fmt.Errorf("DRAIN_QUEUE is required when DRAIN_CRON is set")
	}

	// A partially-configured backend is a misconfiguration, not dev mode.
	if cfg.HasVertexConfig() {
		if err := cfg.Vertex.Validate(); err != nil {
			return nil, err
		}
	}
	if !cfg.HasBucket() {
		cfg.Warnings = append(cfg.Warnings, "QUEUE_BUCKET not set; running dev mode with in-memory storage")
	} else if !cfg.HasVertexConfig() {
		cfg.Warnings = append(cfg.Warnings, "Vertex AI is not configured; launches use the local stub backend")
	}

	// Production mode: dev fallbacks are fatal errors.
	if cfg.IsProduction() {
		if !cfg.HasBucket() {
			return nil, fmt.Errorf("QUEUE_BUCKET must be set in production (ENV=production)")
		}
		if err := cfg.Vertex.Validate(); err != nil {
			return nil, fmt.Errorf("%w (ENV=production)", err)
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseIntEnv(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid value %q", key, v)
	}
	return n, nil
}

func parseDurationEnv(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
