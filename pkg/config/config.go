package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for veridata-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (result cache)
	Redis RedisConfig `yaml:"redis"`

	// Catalog service configuration
	Catalog CatalogConfig `yaml:"catalog"`

	// AI classification provider configuration
	AI AIConfig `yaml:"ai"`

	// Discovery pipeline tuning
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"veridata"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"veridata_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis connection configuration for the result cache.
// Redis is optional: when Host is empty, classification results are always
// recomputed.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// CatalogConfig holds settings for the catalog/asset service client.
type CatalogConfig struct {
	BaseURL string `yaml:"base_url" env:"CATALOG_BASE_URL" env-default:"http://localhost:3100"`
	// ListTimeoutSeconds bounds the asset list fetch for a data source.
	ListTimeoutSeconds int `yaml:"list_timeout_seconds" env:"CATALOG_LIST_TIMEOUT_SECONDS" env-default:"10"`
	// DetailTimeoutSeconds bounds the per-asset column detail fetch.
	DetailTimeoutSeconds int `yaml:"detail_timeout_seconds" env:"CATALOG_DETAIL_TIMEOUT_SECONDS" env-default:"5"`
	// AssetLimit caps the number of table assets fetched per discovery run.
	AssetLimit int `yaml:"asset_limit" env:"CATALOG_ASSET_LIMIT" env-default:"500"`
}

// AIConfig holds the AI classification provider configuration.
// When BaseURL or Model is empty the classifier runs in rule-based mode only.
type AIConfig struct {
	// Provider selects the client implementation: "openai" (default, covers
	// any OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"AI_BASE_URL" env-default:""`
	Model    string `yaml:"model" env:"AI_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
	// RequestTimeoutSeconds bounds a single classification call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" env:"AI_REQUEST_TIMEOUT_SECONDS" env-default:"30"`
}

// IsAvailable returns true if an AI provider is configured.
func (c *AIConfig) IsAvailable() bool {
	return c.BaseURL != "" && c.Model != ""
}

// DiscoveryConfig holds discovery pipeline tuning.
type DiscoveryConfig struct {
	// BatchWidth is the number of table groups classified concurrently.
	BatchWidth int `yaml:"batch_width" env:"DISCOVERY_BATCH_WIDTH" env-default:"10"`
	// CacheTTLMinutes is how long field classification results stay cached.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" env:"DISCOVERY_CACHE_TTL_MINUTES" env-default:"60"`
	// StaleSessionMinutes is how long a session may sit in processing without
	// progress before reconciliation marks it failed.
	StaleSessionMinutes int `yaml:"stale_session_minutes" env:"DISCOVERY_STALE_SESSION_MINUTES" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, REDIS_PASSWORD, AI_API_KEY) must come from environment
// variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate rejects settings the pipeline cannot run with.
func (c *Config) validate() error {
	if c.Discovery.BatchWidth < 1 {
		return fmt.Errorf("discovery.batch_width must be at least 1, got %d", c.Discovery.BatchWidth)
	}
	if c.Discovery.CacheTTLMinutes < 0 {
		return fmt.Errorf("discovery.cache_ttl_minutes must not be negative, got %d", c.Discovery.CacheTTLMinutes)
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
