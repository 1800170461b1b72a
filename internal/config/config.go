// Package config
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/pluginhub/pluginhub/internal/plugins"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PLUGINHUB_"

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Catalog     CatalogConfig     `yaml:"catalog"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
}

type AuthConfig struct {
	AdminUsername  string `yaml:"admin_username"`
	AdminPassword  string `yaml:"admin_password"`
	JWTSecret      string `yaml:"jwt_secret"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type DiscoveryConfig struct {
	Sources       []string `yaml:"sources"`
	Concurrency   int      `yaml:"concurrency"`
	HTTPTimeoutMS int      `yaml:"http_timeout_ms"`
}

type CredentialsConfig struct {
	Static []StaticCredential `yaml:"static"`
	Vault  VaultConfig        `yaml:"vault"`
	Tokens []TokenConfig      `yaml:"tokens"`
}

// StaticCredential is a credential for one host given in clear text
type StaticCredential struct {
	Host     string `yaml:"host"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

type VaultConfig struct {
	Path       string `yaml:"path"`
	Passphrase string `yaml:"passphrase"`
}

// TokenConfig describes bearer tokens minted locally for a set of hosts
type TokenConfig struct {
	Name       string   `yaml:"name"`
	Secret     string   `yaml:"secret"`
	Subject    string   `yaml:"subject"`
	TTLSeconds int      `yaml:"ttl_seconds"`
	Hosts      []string `yaml:"hosts"`
}

type PoolConfig struct {
	MaxConns                 int `yaml:"max_conns"`
	MinConns                 int `yaml:"min_conns"`
	MaxConnLifetimeMinutes   int `yaml:"max_conn_lifetime_minutes"`
	MaxConnIdleTimeMinutes   int `yaml:"max_conn_idle_time_minutes"`
	HealthCheckPeriodSeconds int `yaml:"health_check_period_seconds"`
}

type CatalogConfig struct {
	DSN  string     `yaml:"dsn"`
	Pool PoolConfig `yaml:"pool"`
}

// Default returns a configuration usable without a config file
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeoutMS:  30000,
			WriteTimeoutMS: 30000,
		},
		Auth: AuthConfig{
			AdminUsername:  "admin",
			JWTExpiryHours: 24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Discovery: DiscoveryConfig{
			Concurrency:   8,
			HTTPTimeoutMS: 10000,
		},
	}
	cfg.Catalog.Pool.ApplyDefaults()
	return cfg
}

// Load reads configuration from file and applies environment variable overrides
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML over the defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Catalog.Pool.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads configPath when it is set and falls back to the
// defaults plus environment overrides otherwise.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath != "" {
		return Load(configPath)
	}

	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	if !c.Logging.IsLogLevelValid() {
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging format must be text or json, got %q", c.Logging.Format)
	}

	if _, err := c.Discovery.PluginSources(); err != nil {
		return fmt.Errorf("discovery.sources: %w", err)
	}
	if c.Discovery.Concurrency < 0 {
		return errors.New("discovery.concurrency must not be negative")
	}

	for i, s := range c.Credentials.Static {
		if s.Host == "" {
			return fmt.Errorf("credentials.static[%d]: host is required", i)
		}
		switch s.Scheme {
		case credentials.SchemeBasic, credentials.SchemeBearer:
		default:
			return fmt.Errorf("credentials.static[%d]: scheme must be %s or %s", i, credentials.SchemeBasic, credentials.SchemeBearer)
		}
	}

	if c.Credentials.Vault.Path != "" && c.Credentials.Vault.Passphrase == "" {
		return errors.New("PLUGINHUB_CREDENTIALS_VAULT_PASSPHRASE is required when a vault path is set")
	}

	for i, t := range c.Credentials.Tokens {
		if len(t.Secret) < 32 {
			return fmt.Errorf("credentials.tokens[%d]: secret must be at least 32 characters", i)
		}
		if len(t.Hosts) == 0 {
			return fmt.Errorf("credentials.tokens[%d]: at least one host is required", i)
		}
	}

	return nil
}

// ValidateServer checks the additional settings the HTTP server requires
func (c *Config) ValidateServer() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("PLUGINHUB_AUTH_JWT_SECRET is required (minimum 32 characters)")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.Auth.AdminPassword == "" || c.Auth.AdminPassword == "changeme" {
		return errors.New("PLUGINHUB_AUTH_ADMIN_PASSWORD must be set to a strong password")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}

// applyEnvOverrides checks for environment variables with the PLUGINHUB_ prefix
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if v := os.Getenv(envPrefix + "SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv(envPrefix + "SERVER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}

	// Auth overrides
	if v := os.Getenv(envPrefix + "AUTH_ADMIN_USERNAME"); v != "" {
		cfg.Auth.AdminUsername = v
	}
	if v := os.Getenv(envPrefix + "AUTH_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := os.Getenv(envPrefix + "AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// Logging overrides
	if v := os.Getenv(envPrefix + "LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Discovery overrides
	if v := os.Getenv(envPrefix + "DISCOVERY_SOURCES"); v != "" {
		cfg.Discovery.Sources = splitList(v)
	}
	if v := os.Getenv(envPrefix + "DISCOVERY_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Discovery.Concurrency)
	}
	if v := os.Getenv(envPrefix + "DISCOVERY_HTTP_TIMEOUT_MS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Discovery.HTTPTimeoutMS)
	}

	// Credential overrides
	if v := os.Getenv(envPrefix + "CREDENTIALS_VAULT_PATH"); v != "" {
		cfg.Credentials.Vault.Path = v
	}
	if v := os.Getenv(envPrefix + "CREDENTIALS_VAULT_PASSPHRASE"); v != "" {
		cfg.Credentials.Vault.Passphrase = v
	}

	// Catalog overrides
	if v := os.Getenv(envPrefix + "CATALOG_DSN"); v != "" {
		cfg.Catalog.DSN = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ReadTimeout returns the read timeout as a duration
func (s *ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the write timeout as a duration
func (s *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// JWTExpiry returns JWT expiry as duration
func (a *AuthConfig) JWTExpiry() time.Duration {
	return time.Duration(a.JWTExpiryHours) * time.Hour
}

// IsLogLevelValid checks if the log level is valid
func (l *LoggingConfig) IsLogLevelValid() bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	return slices.Contains(validLevels, strings.ToLower(l.Level))
}

// PluginSources parses the configured source locators
func (d *DiscoveryConfig) PluginSources() ([]plugins.Source, error) {
	return plugins.ParseSources(d.Sources)
}

// HTTPTimeout returns the per-request timeout of HTTP discoverers
func (d *DiscoveryConfig) HTTPTimeout() time.Duration {
	return time.Duration(d.HTTPTimeoutMS) * time.Millisecond
}

// StaticEntries returns the static credentials keyed by host
func (c *CredentialsConfig) StaticEntries() map[string]credentials.Credential {
	entries := make(map[string]credentials.Credential, len(c.Static))
	for _, s := range c.Static {
		entries[s.Host] = credentials.Credential{
			Scheme:   s.Scheme,
			Username: s.Username,
			Password: s.Password,
			Token:    s.Token,
		}
	}
	return entries
}

// TTL returns the lifetime of minted tokens as a duration
func (t *TokenConfig) TTL() time.Duration {
	return time.Duration(t.TTLSeconds) * time.Second
}

// ApplyDefaults sets default values for pool configuration
func (p *PoolConfig) ApplyDefaults() {
	if p.MaxConns == 0 {
		p.MaxConns = 10
	}
	if p.MinConns == 0 {
		p.MinConns = 1
	}
	if p.MaxConnLifetimeMinutes == 0 {
		p.MaxConnLifetimeMinutes = 60
	}
	if p.MaxConnIdleTimeMinutes == 0 {
		p.MaxConnIdleTimeMinutes = 15
	}
	if p.HealthCheckPeriodSeconds == 0 {
		p.HealthCheckPeriodSeconds = 30
	}
}

// MaxConnLifetime returns the max connection lifetime as a duration
func (p *PoolConfig) MaxConnLifetime() time.Duration {
	return time.Duration(p.MaxConnLifetimeMinutes) * time.Minute
}

// MaxConnIdleTime returns the max connection idle time as a duration
func (p *PoolConfig) MaxConnIdleTime() time.Duration {
	return time.Duration(p.MaxConnIdleTimeMinutes) * time.Minute
}

// HealthCheckPeriod returns the health check period as a duration
func (p *PoolConfig) HealthCheckPeriod() time.Duration {
	return time.Duration(p.HealthCheckPeriodSeconds) * time.Second
}

// Redacted returns the catalog DSN with its password masked, for logs
func (c *CatalogConfig) Redacted() string {
	u, err := url.Parse(c.DSN)
	if err != nil || u.User == nil {
		return c.DSN
	}
	return u.Redacted()
}
