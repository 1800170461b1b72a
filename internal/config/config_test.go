package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_AppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
logging:
  level: debug
discovery:
  sources:
    - file:///srv/plugins
    - https://hub.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Discovery.Concurrency != 8 {
		t.Errorf("Discovery.Concurrency = %d, want default 8", cfg.Discovery.Concurrency)
	}
	if cfg.Catalog.Pool.MaxConns != 10 {
		t.Errorf("Catalog.Pool.MaxConns = %d, want default 10", cfg.Catalog.Pool.MaxConns)
	}

	sources, err := cfg.Discovery.PluginSources()
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[1].Scheme() != "https" {
		t.Errorf("unexpected sources %v", sources)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	t.Setenv("PLUGINHUB_SERVER_PORT", "7070")
	t.Setenv("PLUGINHUB_DISCOVERY_SOURCES", "file:///a, http://b ,")
	t.Setenv("PLUGINHUB_CATALOG_DSN", "postgres://u:p@db/hub")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if got := cfg.Discovery.Sources; len(got) != 2 || got[0] != "file:///a" || got[1] != "http://b" {
		t.Errorf("Discovery.Sources = %v", got)
	}
	if cfg.Catalog.DSN != "postgres://u:p@db/hub" {
		t.Errorf("Catalog.DSN = %q", cfg.Catalog.DSN)
	}
	if redacted := cfg.Catalog.Redacted(); strings.Contains(redacted, ":p@") {
		t.Errorf("Redacted() leaked the password: %s", redacted)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid logging level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
		{"source without scheme", func(c *Config) { c.Discovery.Sources = []string{"/no/scheme"} }, "discovery.sources"},
		{"negative concurrency", func(c *Config) { c.Discovery.Concurrency = -1 }, "concurrency"},
		{"static without host", func(c *Config) {
			c.Credentials.Static = []StaticCredential{{Scheme: "Basic"}}
		}, "host is required"},
		{"static with unknown scheme", func(c *Config) {
			c.Credentials.Static = []StaticCredential{{Host: "h", Scheme: "Digest"}}
		}, "scheme must be"},
		{"vault without passphrase", func(c *Config) { c.Credentials.Vault.Path = "v" }, "VAULT_PASSPHRASE"},
		{"short token secret", func(c *Config) {
			c.Credentials.Tokens = []TokenConfig{{Secret: "short", Hosts: []string{"h"}}}
		}, "at least 32"},
		{"token without hosts", func(c *Config) {
			c.Credentials.Tokens = []TokenConfig{{Secret: strings.Repeat("s", 32)}}
		}, "at least one host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("expected missing jwt secret to fail")
	}

	cfg.Auth.JWTSecret = strings.Repeat("k", 32)
	cfg.Auth.AdminPassword = "changeme"
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("expected default admin password to fail")
	}

	cfg.Auth.AdminPassword = "s3cret-pass"
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("ValidateServer() error = %v", err)
	}
}

func TestDumpExampleConfig_Loads(t *testing.T) {
	var buf bytes.Buffer
	if err := DumpExampleConfig(&buf); err != nil {
		t.Fatalf("DumpExampleConfig() error = %v", err)
	}

	cfg, err := Load(writeConfig(t, buf.String()))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if len(cfg.Discovery.Sources) != 3 {
		t.Errorf("expected 3 example sources, got %d", len(cfg.Discovery.Sources))
	}
	if entries := cfg.Credentials.StaticEntries(); entries["plugins.example.com"].Token != "replace-me" {
		t.Errorf("unexpected static entries %v", entries)
	}
}

func TestInitLogger_Level(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	tests := []struct {
		level string
		debug bool
		warn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"ERROR", false, false},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := InitLogger(LoggingConfig{Level: tt.level, Format: "json", Output: "stderr"})
			ctx := context.Background()
			if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
			if got := logger.Enabled(ctx, slog.LevelWarn); got != tt.warn {
				t.Errorf("warn enabled = %v, want %v", got, tt.warn)
			}
			if slog.Default() != logger {
				t.Error("InitLogger must install the logger as default")
			}
		})
	}
}
