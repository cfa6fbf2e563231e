// Package config loads and validates gateway configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	CaptureTimeoutSeconds int    `mapstructure:"capture_timeout_seconds"`
	RedirectURL           string `mapstructure:"redirect_url"`
}

// UpstreamConfig points at the screenshot rendering service.
type UpstreamConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig holds the Cache-Control directives attached to captured images, in seconds.
type CacheConfig struct {
	MaxAge               int `mapstructure:"max_age"`
	StaleWhileRevalidate int `mapstructure:"stale_while_revalidate"`
}

// LoggingConfig toggles zap development features and optional file rotation.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

const (
	defaultEndpoint    = "https://pixashot-544054581516.us-central1.run.app"
	defaultRedirectURL = "https://pixashot.com"
	day                = 60 * 60 * 24
)

// envBindings maps config keys to the environment names the deployment already uses.
var envBindings = map[string]string{
	"server.port":                  "PORT",
	"upstream.endpoint":            "CLOUD_RUN_ENDPOINT",
	"upstream.auth_token":          "CLOUD_RUN_AUTH_TOKEN",
	"cache.max_age":                "PIXASHOT_CACHE_MAX_AGE",
	"cache.stale_while_revalidate": "PIXASHOT_CACHE_SWR",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range envBindings {
		// Prefixed names still win; the legacy name is only a fallback.
		if err := v.BindEnv(key, "GATEWAY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Upstream.Endpoint = strings.TrimRight(cfg.Upstream.Endpoint, "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.capture_timeout_seconds", 120)
	v.SetDefault("server.redirect_url", defaultRedirectURL)
	v.SetDefault("upstream.endpoint", defaultEndpoint)
	v.SetDefault("upstream.auth_token", "")
	v.SetDefault("cache.max_age", 14*day)
	v.SetDefault("cache.stale_while_revalidate", 7*day)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.CaptureTimeoutSeconds <= 0 {
		return fmt.Errorf("server.capture_timeout_seconds must be > 0")
	}
	u, err := url.Parse(c.Upstream.Endpoint)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("upstream.endpoint must be an absolute URL, got %q", c.Upstream.Endpoint)
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must be >= 0")
	}
	if c.Cache.StaleWhileRevalidate < 0 {
		return fmt.Errorf("cache.stale_while_revalidate must be >= 0")
	}
	return nil
}

// CaptureTimeout is the overall handling budget for a single capture request.
func (c Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Server.CaptureTimeoutSeconds) * time.Second
}

// CacheControl renders the Cache-Control header value for successful captures.
func (c CacheConfig) CacheControl() string {
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", c.MaxAge, c.StaleWhileRevalidate)
}
