// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/structured"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port   string
	LLM    LLMConfig
	Policy agent.Policy
	Store  StoreConfig
	NATS   NATSConfig
	Log    LogConfig
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// ModelValidation enables the check_field second opinion.
	ModelValidation bool
	// ModelIntent asks the model when keyword intent matching finds nothing.
	ModelIntent bool
	Lang        string
	// Sampling for the extraction and reply-writing calls.
	ExtractTemperature float32
	ComposeTemperature float32
}

type StoreConfig struct {
	Driver      string
	DBPath      string
	DatabaseURL string
}

// NATSConfig enables submission events when URL is set.
type NATSConfig struct {
	URL     string
	Token   string
	Subject string
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		LLM: LLMConfig{
			APIKey:          getEnv("LLM_API_KEY", ""),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			Model:           getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:         getEnvDuration("LLM_TIMEOUT", 8*time.Second),
			ModelValidation: getEnvBool("MODEL_VALIDATION", true),
			ModelIntent:     getEnvBool("MODEL_INTENT", false),
			Lang:            getEnv("DIALOGUE_LANG", "English"),

			ExtractTemperature: getEnvFloat("EXTRACT_TEMPERATURE", 0.1),
			ComposeTemperature: getEnvFloat("COMPOSE_TEMPERATURE", 0.7),
		},
		Policy: agent.Policy{
			NoProgressLimit: getEnvInt("NO_PROGRESS_LIMIT", 3),
			SkipAfter:       getEnvInt("SKIP_AFTER_ATTEMPTS", 2),
			ContextMessages: getEnvInt("CONTEXT_MESSAGES", 3),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			DBPath:      getEnv("DB_PATH", "./data/intake.db"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Token:   getEnv("NATS_TOKEN", ""),
			Subject: getEnv("NATS_SUBJECT", "intake.record.submitted"),
		},
		Log: LogConfig{
			Level:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 15),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	for name, t := range map[string]float32{
		"EXTRACT_TEMPERATURE": c.LLM.ExtractTemperature,
		"COMPOSE_TEMPERATURE": c.LLM.ComposeTemperature,
	} {
		if t < 0 || t > 2 {
			return fmt.Errorf("%s must be between 0 and 2", name)
		}
	}
	if c.Policy.NoProgressLimit <= 0 {
		return fmt.Errorf("NO_PROGRESS_LIMIT must be > 0")
	}
	if c.Policy.SkipAfter <= 0 {
		return fmt.Errorf("SKIP_AFTER_ATTEMPTS must be > 0")
	}
	if c.Policy.ContextMessages < 0 {
		return fmt.Errorf("CONTEXT_MESSAGES cannot be negative")
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown LOG_LEVEL %q", c.Log.Level)
	}
	return nil
}

// RequireLLM checks the settings needed to talk to the model.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	return nil
}

// ModelConfig maps the LLM settings onto the per-component call settings.
func (c *Config) ModelConfig() agent.ModelConfig {
	mc := agent.DefaultModelConfig()
	for _, call := range []*structured.CallConfig{&mc.Extract, &mc.Validate, &mc.Intent, &mc.Compose} {
		call.Timeout = c.LLM.Timeout
	}
	mc.Extract.Temperature = structured.Float32(c.LLM.ExtractTemperature)
	mc.Compose.Temperature = structured.Float32(c.LLM.ComposeTemperature)
	mc.ModelValidation = c.LLM.ModelValidation
	mc.ModelIntent = c.LLM.ModelIntent
	mc.Lang = c.LLM.Lang
	return mc
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("8s") or plain seconds ("8").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvFloat(key string, fallback float32) float32 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}
