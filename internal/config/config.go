// Package config loads and validates all environment variables at startup.
// Every other package receives typed values; nothing reads os.Getenv directly.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port       string // default "8080"; serves HTTP and gRPC health on one listener
	Env        string // "development" | "staging" | "production"
	CORSOrigin string // allowed origin in production, default "*"

	// ── Explanation service (primary) ─────────────────────────────────────────
	// An empty or malformed URL is not a startup error: every explain request
	// fails with service-unavailable until it is fixed.
	MLAPIURL       string        // default "http://localhost:8000"
	ExplainTimeout time.Duration // default 30s

	// ── Text generation (secondary) ───────────────────────────────────────────
	// All keys are optional. With none set, humanization is disabled.
	GeminiAPIKey    string
	GeminiModel     string // default "gemini-2.0-flash"
	AnthropicAPIKey string
	AnthropicModel  string // default "claude-sonnet-4-5"
	DeepSeekAPIKey  string
	DeepSeekModel   string        // default "deepseek-chat"
	HumanizeTimeout time.Duration // default 8s

	// ── Audit log ─────────────────────────────────────────────────────────────
	// Optional. When empty, outcomes are only logged.
	DatabaseURL     string
	AuditWorkers    int // default 2
	AuditMaxRetries int // default 3

	// ── Health ────────────────────────────────────────────────────────────────
	HealthInterval time.Duration // default 15s
}

// Load reads all environment variables and returns a validated Config.
// It automatically loads a .env file from the working directory when present,
// so plain `go run ./cmd/api` works in development without any wrapper.
// Real environment variables always take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv(".env")

	c := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		CORSOrigin:      getEnv("CORS_ORIGIN", "*"),
		MLAPIURL:        strings.TrimRight(getEnv("ML_API_URL", "http://localhost:8000"), "/"),
		ExplainTimeout:  getEnvAsDuration("EXPLAIN_TIMEOUT", 30*time.Second),
		GeminiAPIKey:    strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		DeepSeekAPIKey:  strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY")),
		DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		HumanizeTimeout: getEnvAsDuration("HUMANIZE_TIMEOUT", 8*time.Second),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AuditWorkers:    getEnvAsInt("AUDIT_WORKERS", 2),
		AuditMaxRetries: getEnvAsInt("AUDIT_MAX_RETRIES", 3),
		HealthInterval:  getEnvAsDuration("HEALTH_INTERVAL", 15*time.Second),
	}

	return c, c.validate()
}

// HumanizationEnabled reports whether at least one text-generation
// credential is present.
func (c *Config) HumanizationEnabled() bool {
	return c.GeminiAPIKey != "" || c.AnthropicAPIKey != "" || c.DeepSeekAPIKey != ""
}

// requestSlack is the headroom above the two stage bounds given to a whole
// request, covering decoding, validation and the response write.
const requestSlack = 15 * time.Second

// RequestTimeout is the outer bound for one HTTP request. It is derived from
// EXPLAIN_TIMEOUT and HUMANIZE_TIMEOUT so the router never cuts a stage short.
func (c *Config) RequestTimeout() time.Duration {
	return c.ExplainTimeout + c.HumanizeTimeout + requestSlack
}

// MLAPIURLValid reports whether MLAPIURL is an absolute http(s) URL. Startup
// logs a warning when it is not.
func (c *Config) MLAPIURLValid() bool {
	u, err := url.Parse(c.MLAPIURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (c *Config) validate() error {
	var errs []error

	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT: %q", c.Port))
	}

	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("invalid ENV: %q (want development, staging or production)", c.Env))
	}

	durations := map[string]time.Duration{
		"EXPLAIN_TIMEOUT":  c.ExplainTimeout,
		"HUMANIZE_TIMEOUT": c.HumanizeTimeout,
		"HEALTH_INTERVAL":  c.HealthInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	if c.AuditWorkers <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_WORKERS must be positive, got %d", c.AuditWorkers))
	}
	if c.AuditMaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_MAX_RETRIES must be positive, got %d", c.AuditMaxRetries))
	}

	return errors.Join(errs...)
}

// ─── DOT-ENV LOADER ──────────────────────────────────────────────────────────

// loadDotEnv reads key=value pairs from path and sets them in the environment,
// but only for keys that are not already set. This means real env vars (e.g.
// from Docker or your shell) always win over the file.
// Missing file, blank lines, and #-comments are all silently ignored.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // file absent, that's fine
	}
	defer f.Close()

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
		// Strip optional surrounding quotes: KEY="value" or KEY='value'
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration syntax ("30s", "5m") or a plain
// integer, which is read as seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}
