// Package config loads the service configuration from a YAML file with
// environment variable overrides for deployment secrets.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lnfunding/tipcards/internal/lnbits"
	"github.com/lnfunding/tipcards/internal/lnurlauth"
	"github.com/lnfunding/tipcards/internal/session"
)

// Config holds the full service configuration.
type Config struct {
	Listen string `yaml:"listen"` // HTTP listen address, e.g. ":4000".

	// APIOrigin is the externally reachable base URL of this service, used
	// for gateway webhook callbacks.
	APIOrigin string `yaml:"api-origin"`

	Database struct {
		DSN string `yaml:"dsn"` // Postgres DSN or sqlite file path.
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Lnbits lnbits.Config `yaml:"lnbits"`

	LnurlAuth lnurlauth.Config `yaml:"lnurl-auth"`

	Session session.Config `yaml:"session"`

	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"` // Empty logs to stdout only.
		MaxSizeMB  int    `yaml:"max-size-mb"`
		MaxBackups int    `yaml:"max-backups"`
	} `yaml:"log"`

	// Origins allowed for cross-site requests from the web frontend.
	AllowedOrigins []string `yaml:"allowed-origins"`
}

// Load reads and validates the configuration file. Secrets can be injected
// through TIPCARDS_DATABASE_DSN, TIPCARDS_REDIS_ADDR, TIPCARDS_JWT_SECRET,
// TIPCARDS_LNBITS_ADMIN_KEY and TIPCARDS_LNBITS_INVOICE_KEY.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Database.DSN == "" {
		return nil, errors.New("config: database.dsn is required")
	}
	if cfg.Lnbits.Origin == "" {
		return nil, errors.New("config: lnbits.origin is required")
	}
	if cfg.Session.JWTSecret == "" {
		return nil, errors.New("config: session.jwt-secret is required")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if value := os.Getenv("TIPCARDS_DATABASE_DSN"); value != "" {
		cfg.Database.DSN = value
	}
	if value := os.Getenv("TIPCARDS_REDIS_ADDR"); value != "" {
		cfg.Redis.Addr = value
	}
	if value := os.Getenv("TIPCARDS_JWT_SECRET"); value != "" {
		cfg.Session.JWTSecret = value
	}
	if value := os.Getenv("TIPCARDS_LNBITS_ADMIN_KEY"); value != "" {
		cfg.Lnbits.AdminKey = value
	}
	if value := os.Getenv("TIPCARDS_LNBITS_INVOICE_KEY"); value != "" {
		cfg.Lnbits.InvoiceReadKey = value
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = ":4000"
	}
	if cfg.APIOrigin == "" {
		cfg.APIOrigin = "http://localhost" + cfg.Listen
	}
	if cfg.LnurlAuth.AuthOrigin == "" {
		cfg.LnurlAuth.AuthOrigin = cfg.APIOrigin
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
