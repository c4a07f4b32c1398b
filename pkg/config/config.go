// Package config loads runtime configuration: environment variables first,
// with an optional YAML profile file merged underneath.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server and CLI configuration.
type Config struct {
	Port         string `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
	DBDriver     string `yaml:"db_driver"` // "sqlite" or "postgres"
	DBDSN        string `yaml:"db_dsn"`
	ExcerptLimit int    `yaml:"excerpt_limit"`
	AssistantURL string `yaml:"assistant_url"`

	// APIKey authenticates against the assistant upstream. Env only,
	// never read from a profile file and never logged.
	APIKey string `yaml:"-"`
}

// Load builds configuration from the environment, merging an optional
// YAML profile named by SONNUN_CONFIG underneath.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         "8787",
		LogLevel:     "INFO",
		DBDriver:     "sqlite",
		DBDSN:        "sonnun.db",
		ExcerptLimit: 50,
		AssistantURL: "https://api.openai.com/v1/chat/completions",
	}

	if path := os.Getenv("SONNUN_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read profile: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse profile: %w", err)
		}
	}

	if v := os.Getenv("SONNUN_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("SONNUN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SONNUN_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("SONNUN_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("SONNUN_EXCERPT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: SONNUN_EXCERPT_LIMIT must be a positive integer, got %q", v)
		}
		cfg.ExcerptLimit = n
	}
	if v := os.Getenv("SONNUN_ASSISTANT_URL"); v != "" {
		cfg.AssistantURL = v
	}
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("config: unknown db driver %q", cfg.DBDriver)
	}

	return cfg, nil
}
