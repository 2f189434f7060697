// Package config loads process settings from the environment and provider
// templates from TOML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	CacheRedis  = "redis"
	CacheMongo  = "mongo"
	CacheSQLite = "sqlite"
)

// Config is the process configuration: Settings from the environment plus
// the resolved provider templates.
type Config struct {
	Settings
	Providers []ProviderConfig
}

// Settings are read from INTEGRATIONS_* variables.
type Settings struct {
	ListenAddr    string `env:"INTEGRATIONS_LISTEN_ADDR" envDefault:":8000"`
	CacheBackend  string `env:"INTEGRATIONS_CACHE_BACKEND" envDefault:"redis"`
	CachePrefix   string `env:"INTEGRATIONS_CACHE_PREFIX"`
	RedisAddr     string `env:"INTEGRATIONS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"INTEGRATIONS_REDIS_PASSWORD"`
	RedisDB       int    `env:"INTEGRATIONS_REDIS_DB" envDefault:"0"`
	MongoURI      string `env:"INTEGRATIONS_MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"INTEGRATIONS_MONGO_DATABASE" envDefault:"integrations"`
	// MongoIntegrations enables per-org OAuth app overrides stored in Mongo.
	MongoIntegrations bool   `env:"INTEGRATIONS_MONGO_INTEGRATIONS"`
	SQLitePath        string `env:"INTEGRATIONS_SQLITE_PATH" envDefault:"integrations.db"`

	SessionSecret string `env:"INTEGRATIONS_SESSION_SECRET"`
	ProvidersFile string `env:"INTEGRATIONS_PROVIDERS_FILE"`

	StateTTL       time.Duration `env:"INTEGRATIONS_STATE_TTL" envDefault:"10m"`
	CredentialsTTL time.Duration `env:"INTEGRATIONS_CREDENTIALS_TTL" envDefault:"10m"`
	RequestTimeout time.Duration `env:"INTEGRATIONS_REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel       string        `env:"INTEGRATIONS_LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from environ, or from the process environment
// when environ is nil, and resolves provider templates and secrets.
func Load(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(&cfg.Settings, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	providers, err := LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	lookup := os.LookupEnv
	if environ != nil {
		lookup = func(key string) (string, bool) {
			v, ok := environ[key]
			return v, ok
		}
	}
	for i := range providers {
		providers[i].applySecrets(lookup)
	}
	cfg.Providers = providers
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.CacheBackend {
	case CacheRedis, CacheMongo, CacheSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}
	if c.StateTTL <= 0 || c.CredentialsTTL <= 0 {
		errs = append(errs, errors.New("state and credential TTLs must be positive"))
	}
	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("no providers configured"))
	}
	for _, p := range c.Providers {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Provider returns the named provider template.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
