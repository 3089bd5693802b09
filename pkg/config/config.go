package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for staylens-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys, OAuth client secrets) must only come from
// environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Authentication of dashboard users
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Upstream provider call behavior
	Upstream UpstreamConfig `yaml:"upstream"`

	// OAuth application credentials, one app per provider family
	Google GoogleOAuthConfig `yaml:"google"`
	Meta   MetaOAuthConfig   `yaml:"meta"`

	// TokenCipherKey encrypts refresh/access tokens at rest.
	// A 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	TokenCipherKey string `yaml:"-" env:"TOKEN_CIPHER_KEY"` // Secret - not in YAML

	// StateSigningKey signs the OAuth state parameter that round-trips the
	// project id through the provider redirect.
	StateSigningKey string `yaml:"-" env:"STATE_SIGNING_KEY"` // Secret - not in YAML
}

// AuthConfig holds dashboard-session authentication settings.
type AuthConfig struct {
	// EnableVerification controls whether bearer tokens are validated.
	// Set to false for local development without an identity provider.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWTSecret verifies HS256 dashboard session tokens.
	JWTSecret string `yaml:"-" env:"AUTH_JWT_SECRET"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"staylens"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"staylens_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// UpstreamConfig controls how provider APIs are called.
type UpstreamConfig struct {
	// TimeoutSeconds is the per-upstream-call timeout. A timeout is treated
	// as an unrecoverable report fetch failure.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"UPSTREAM_TIMEOUT_SECONDS" env-default:"30"`
	// RatePerSecond caps outbound calls per provider client.
	RatePerSecond float64 `yaml:"rate_per_second" env:"UPSTREAM_RATE_PER_SECOND" env-default:"10"`
	// RateBurst is the rate limiter burst size.
	RateBurst int `yaml:"rate_burst" env:"UPSTREAM_RATE_BURST" env-default:"5"`
}

// GoogleOAuthConfig is the OAuth app registered with Google, shared by the
// Analytics, Ads, Search Console, YouTube, Sheets and Drive sources.
type GoogleOAuthConfig struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"GOOGLE_CLIENT_SECRET"` // Secret - not in YAML
	// AdsDeveloperToken is required by the Google Ads API in addition to OAuth.
	AdsDeveloperToken string `yaml:"-" env:"GOOGLE_ADS_DEVELOPER_TOKEN"` // Secret - not in YAML
}

// MetaOAuthConfig is the OAuth app registered with Meta, shared by the
// Ads and Facebook Page sources.
type MetaOAuthConfig struct {
	ClientID     string `yaml:"client_id" env:"META_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"META_CLIENT_SECRET"` // Secret - not in YAML
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Missing config.yaml is tolerated (env-only deployments).
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.TokenCipherKey == "" {
		return nil, fmt.Errorf("TOKEN_CIPHER_KEY must be set")
	}
	if cfg.StateSigningKey == "" {
		return nil, fmt.Errorf("STATE_SIGNING_KEY must be set")
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// RedirectURL returns the provider redirect URI for a source's callback.
func (c *Config) RedirectURL(source string) string {
	return fmt.Sprintf("%s/oauth/%s/callback", c.BaseURL, source)
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
