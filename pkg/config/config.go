package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the publishers service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	TaskService TaskServiceConfig `yaml:"task_service"`
	Statistics  StatisticsConfig  `yaml:"statistics"`
	Integration IntegrationConfig `yaml:"integration"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen            string          `yaml:"listen"`
	CORSOrigins       []string        `yaml:"cors_origins"`
	TrustProxyHeaders bool            `yaml:"trust_proxy_headers"`
	RequestTimeout    time.Duration   `yaml:"request_timeout"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains rate limits for each endpoint tier.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Public        RateLimitTier `yaml:"public"`
	Registration  RateLimitTier `yaml:"registration"`
	Authenticated RateLimitTier `yaml:"authenticated"`
}

// RateLimitTier is the request budget for one tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig contains the statistics backend settings.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AuthConfig contains credential extraction and internal trust settings.
type AuthConfig struct {
	APIKeyHeader string         `yaml:"api_key_header"`
	Internal     InternalConfig `yaml:"internal"`
}

// InternalConfig describes how trusted internal callers are recognised.
type InternalConfig struct {
	Header          string   `yaml:"header"`
	TrustedNetworks []string `yaml:"trusted_networks"`
}

// TaskServiceConfig contains downstream task service settings.
type TaskServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StatisticsConfig contains statistics query and retention settings.
type StatisticsConfig struct {
	DefaultRange            time.Duration `yaml:"default_range"`
	MaxRange                time.Duration `yaml:"max_range"`
	Retention               time.Duration `yaml:"retention"`
	RevenuePerCompletedTask float64       `yaml:"revenue_per_completed_task"`
}

// IntegrationConfig contains settings used when rendering integration snippets.
type IntegrationConfig struct {
	SDKURL string `yaml:"sdk_url"`
}

// Load reads and parses configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from raw YAML, expanding environment variables
// and applying defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var (
	bracedVarRe = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	bareVarRe   = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)`)
)

// expandEnvVars replaces ${VAR} and $VAR patterns with environment variable values.
// Unset variables are left untouched.
func expandEnvVars(s string) string {
	s = bracedVarRe.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}

		return match
	})

	return bareVarRe.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[1:]); ok {
			return val
		}

		return match
	})
}

// applyDefaults sets default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}

	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}

	if cfg.Server.RateLimit.Public.RequestsPerMinute == 0 {
		cfg.Server.RateLimit.Public.RequestsPerMinute = 120
	}

	if cfg.Server.RateLimit.Registration.RequestsPerMinute == 0 {
		cfg.Server.RateLimit.Registration.RequestsPerMinute = 10
	}

	if cfg.Server.RateLimit.Authenticated.RequestsPerMinute == 0 {
		cfg.Server.RateLimit.Authenticated.RequestsPerMinute = 600
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}

	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "./publishers.db"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}

	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "publishers:"
	}

	if cfg.Auth.APIKeyHeader == "" {
		cfg.Auth.APIKeyHeader = "X-API-Key"
	}

	if cfg.Auth.Internal.Header == "" {
		cfg.Auth.Internal.Header = "X-Internal-Service"
	}

	if cfg.TaskService.BaseURL == "" {
		cfg.TaskService.BaseURL = "http://localhost:8001"
	}

	if cfg.TaskService.Timeout == 0 {
		cfg.TaskService.Timeout = 10 * time.Second
	}

	if cfg.Statistics.DefaultRange == 0 {
		cfg.Statistics.DefaultRange = 7 * 24 * time.Hour
	}

	if cfg.Statistics.MaxRange == 0 {
		cfg.Statistics.MaxRange = 366 * 24 * time.Hour
	}

	if cfg.Statistics.Retention == 0 {
		cfg.Statistics.Retention = 400 * 24 * time.Hour
	}

	if cfg.Statistics.RevenuePerCompletedTask == 0 {
		cfg.Statistics.RevenuePerCompletedTask = 0.05
	}

	if cfg.Integration.SDKURL == "" {
		cfg.Integration.SDKURL = "https://cdn.hotlabel.io/sdk/v1/hotlabel.js"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required when driver is sqlite")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("postgres.host is required when driver is postgres")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("postgres.database is required when driver is postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if _, err := url.ParseRequestURI(c.TaskService.BaseURL); err != nil {
		return fmt.Errorf("task_service.base_url is invalid: %w", err)
	}

	if c.TaskService.Timeout > 10*time.Second {
		return fmt.Errorf("task_service.timeout must not exceed 10s")
	}

	if _, err := c.TrustedNetworks(); err != nil {
		return err
	}

	if c.Statistics.DefaultRange > c.Statistics.MaxRange {
		return fmt.Errorf("statistics.default_range must not exceed statistics.max_range")
	}

	rl := c.Server.RateLimit
	if rl.Public.RequestsPerMinute < 0 || rl.Registration.RequestsPerMinute < 0 ||
		rl.Authenticated.RequestsPerMinute < 0 {
		return fmt.Errorf("server.rate_limit requests_per_minute must be positive")
	}

	return nil
}

// TrustedNetworks parses auth.internal.trusted_networks. Bare IPs are
// treated as single-host networks.
func (c *Config) TrustedNetworks() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.Auth.Internal.TrustedNetworks))

	for _, entry := range c.Auth.Internal.TrustedNetworks {
		entry = strings.TrimSpace(entry)

		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("auth.internal.trusted_networks: invalid address %q", entry)
			}

			bits := 128
			if v4 := ip.To4(); v4 != nil {
				ip, bits = v4, 32
			}

			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})

			continue
		}

		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("auth.internal.trusted_networks: invalid network %q: %w", entry, err)
		}

		nets = append(nets, n)
	}

	return nets, nil
}

// GetDSN returns the database connection string.
func (c *Config) GetDSN() string {
	switch c.Database.Driver {
	case "sqlite":
		return c.Database.SQLite.Path
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Database.Postgres.Host,
			c.Database.Postgres.Port,
			c.Database.Postgres.User,
			c.Database.Postgres.Password,
			c.Database.Postgres.Database,
			c.Database.Postgres.SSLMode,
		)
	default:
		return ""
	}
}

// String returns a sanitized string representation of the config (no secrets).
func (c *Config) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Server: listen=%s trust_proxy_headers=%t rate_limit=%t\n",
		c.Server.Listen, c.Server.TrustProxyHeaders, c.Server.RateLimit.Enabled))
	sb.WriteString(fmt.Sprintf("Database: driver=%s\n", c.Database.Driver))
	sb.WriteString(fmt.Sprintf("Redis: enabled=%t addr=%s\n", c.Redis.Enabled, c.Redis.Addr))
	sb.WriteString(fmt.Sprintf("Auth: api_key_header=%s internal_header=%s trusted_networks=%d\n",
		c.Auth.APIKeyHeader, c.Auth.Internal.Header, len(c.Auth.Internal.TrustedNetworks)))
	sb.WriteString(fmt.Sprintf("TaskService: base_url=%s timeout=%s\n",
		c.TaskService.BaseURL, c.TaskService.Timeout))
	sb.WriteString(fmt.Sprintf("Statistics: default_range=%s max_range=%s\n",
		c.Statistics.DefaultRange, c.Statistics.MaxRange))

	return sb.String()
}
