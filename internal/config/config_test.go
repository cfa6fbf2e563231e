package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks variables that would otherwise leak in from the host.
func clearEnv(t *testing.T) {
	t.Helper()
	for key, env := range envBindings {
		t.Setenv(env, "")
		t.Setenv("GATEWAY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), "")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  capture_timeout_seconds: 30
  redirect_url: https://example.org
upstream:
  endpoint: https://renderer.internal/
  auth_token: secret
cache:
  max_age: 60
  stale_while_revalidate: 30
logging:
  development: true
  file: /tmp/gateway.log
  max_backups: 7
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.RedirectURL != "https://example.org" {
		t.Fatalf("expected redirect override, got %q", cfg.Server.RedirectURL)
	}
	if cfg.Upstream.Endpoint != "https://renderer.internal" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Upstream.Endpoint)
	}
	if cfg.Upstream.AuthToken != "secret" {
		t.Fatalf("expected auth token from file")
	}
	if got := cfg.Cache.CacheControl(); got != "public, max-age=60, stale-while-revalidate=30" {
		t.Fatalf("unexpected cache control %q", got)
	}
	if got := cfg.CaptureTimeout(); got != 30*time.Second {
		t.Fatalf("expected capture timeout 30s, got %v", got)
	}
	if !cfg.Logging.Development || cfg.Logging.File != "/tmp/gateway.log" || cfg.Logging.MaxBackups != 7 {
		t.Fatalf("expected logging overrides to apply: %+v", cfg.Logging)
	}
	if cfg.Logging.MaxSizeMB != 100 {
		t.Fatalf("expected default max size to survive partial override, got %d", cfg.Logging.MaxSizeMB)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.CaptureTimeout() != 120*time.Second {
		t.Fatalf("expected default capture timeout 120s, got %v", cfg.CaptureTimeout())
	}
	if cfg.Upstream.Endpoint != defaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", cfg.Upstream.Endpoint)
	}
	if cfg.Upstream.AuthToken != "" {
		t.Fatalf("expected empty default auth token")
	}
	if cfg.Cache.MaxAge != 1209600 || cfg.Cache.StaleWhileRevalidate != 604800 {
		t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Server.RedirectURL != defaultRedirectURL {
		t.Fatalf("unexpected redirect default %q", cfg.Server.RedirectURL)
	}
}

func TestLoadLegacyEnvironmentNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLOUD_RUN_ENDPOINT", "https://legacy.example.com")
	t.Setenv("CLOUD_RUN_AUTH_TOKEN", "legacy-token")
	t.Setenv("PIXASHOT_CACHE_MAX_AGE", "120")
	t.Setenv("PIXASHOT_CACHE_SWR", "10")
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.Endpoint != "https://legacy.example.com" || cfg.Upstream.AuthToken != "legacy-token" {
		t.Fatalf("expected legacy upstream env to apply: %+v", cfg.Upstream)
	}
	if cfg.Cache.MaxAge != 120 || cfg.Cache.StaleWhileRevalidate != 10 {
		t.Fatalf("expected legacy cache env to apply: %+v", cfg.Cache)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected PORT to apply, got %d", cfg.Server.Port)
	}
}

func TestLoadPrefixedEnvironmentWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLOUD_RUN_AUTH_TOKEN", "legacy-token")
	t.Setenv("GATEWAY_UPSTREAM_AUTH_TOKEN", "prefixed-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Upstream.AuthToken != "prefixed-token" {
		t.Fatalf("expected prefixed token, got %q", cfg.Upstream.AuthToken)
	}
}

func TestLoadReadError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read config error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080, CaptureTimeoutSeconds: 120},
		Upstream: UpstreamConfig{Endpoint: "https://renderer.example.com"},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "bad timeout", mutate: func(c *Config) { c.Server.CaptureTimeoutSeconds = 0 }, wantErr: "capture_timeout_seconds"},
		{name: "relative endpoint", mutate: func(c *Config) { c.Upstream.Endpoint = "renderer/capture" }, wantErr: "upstream.endpoint"},
		{name: "empty endpoint", mutate: func(c *Config) { c.Upstream.Endpoint = "" }, wantErr: "upstream.endpoint"},
		{name: "negative max age", mutate: func(c *Config) { c.Cache.MaxAge = -1 }, wantErr: "cache.max_age"},
		{name: "negative swr", mutate: func(c *Config) { c.Cache.StaleWhileRevalidate = -1 }, wantErr: "stale_while_revalidate"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
