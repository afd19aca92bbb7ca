package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// FileName is the optional config file looked up in each search path.
const FileName = "vaultstats.toml"

// envKeys maps supported environment variables to config keys.
var envKeys = map[string]string{
	"VAULTWARDEN_URL":            "vaultwarden.url",
	"ADMIN_TOKEN":                "vaultwarden.admin_token",
	"VAULTSTATS_REQUEST_TIMEOUT": "vaultwarden.request_timeout",
	"CACHE_TIMEOUT":              "cache.timeout",
	"VAULTSTATS_HOST":            "server.host",
	"VAULTSTATS_PORT":            "server.port",
	"VAULTSTATS_LOG_LEVEL":       "debug.log_level",
}

// Config represents the entire application configuration.
type Config struct {
	Vaultwarden Vaultwarden `koanf:"vaultwarden"`
	Cache       Cache       `koanf:"cache"`
	Server      Server      `koanf:"server"`
	Debug       Debug       `koanf:"debug"`
}

// Vaultwarden contains the upstream admin interface settings.
type Vaultwarden struct {
	// Base URL of the Vaultwarden server.
	URL string `koanf:"url" validate:"required,url"`
	// Admin secret. Checked when stats are requested, not at startup.
	AdminToken string `koanf:"admin_token"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout" validate:"gt=0"`
}

// Cache contains statistics cache settings.
type Cache struct {
	// Seconds a computed snapshot is served before refetching, 0 disables caching.
	Timeout int `koanf:"timeout" validate:"min=0"`
	// Query the diagnostics endpoint on each refresh.
	Diagnostics bool `koanf:"diagnostics"`
}

// Server contains HTTP listener settings.
type Server struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	// Maximum log session directories to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep" validate:"min=1"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines" validate:"min=1"`
	// Enable pprof debugging.
	EnablePprof bool `koanf:"enable_pprof"`
	// pprof server port.
	PprofPort int `koanf:"pprof_port" validate:"min=1,max=65535"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Vaultwarden: Vaultwarden{
			URL:            "http://vaultwarden:80",
			RequestTimeout: 10000,
		},
		Cache: Cache{
			Timeout:     300,
			Diagnostics: true,
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Debug: Debug{
			LogLevel:      "info",
			MaxLogsToKeep: 10,
			MaxLogLines:   10000,
			PprofPort:     6060,
		},
	}
}

// CacheTTL returns the statistics cache window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.Timeout) * time.Second
}

// RequestTimeout returns the per-request upstream timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Vaultwarden.RequestTimeout) * time.Millisecond
}

// writeMargin is the time left for encoding and writing a response after the
// upstream calls of a refresh have used their full timeouts.
const writeMargin = 5 * time.Second

// WriteTimeout returns the HTTP server write timeout. A refresh makes at most
// two upstream calls on the response path: login and the user list.
func (c *Config) WriteTimeout() time.Duration {
	return 2*c.RequestTimeout() + writeMargin
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoadConfig builds the configuration from defaults, an optional config file
// and the environment. It returns the directory the file was read from, or an
// empty string when none was found.
func LoadConfig(configDir string) (*Config, string, error) {
	k := koanf.New(".")

	// Optional config file; first match wins
	var usedConfigPath string
	for _, path := range searchPaths(configDir) {
		configPath := filepath.Join(path, FileName)
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, "", fmt.Errorf("failed to parse %s: %w", configPath, err)
		}

		usedConfigPath = path
		break
	}

	// Environment overrides the file
	provider := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		mapped, ok := envKeys[key]
		if !ok || value == "" {
			return "", nil
		}
		return mapped, value
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, "", fmt.Errorf("failed to load environment: %w", err)
	}

	config := Default()
	if err := k.Unmarshal("", config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, "", err
	}

	return config, usedConfigPath, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// searchPaths lists the directories checked for the config file.
func searchPaths(configDir string) []string {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}

	paths = append(paths, ".vaultstats")
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".vaultstats"))
	}

	return append(paths, "/etc/vaultstats", "/config", ".")
}
