// Package config loads runtime settings from the environment, an optional
// .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

// Storage backends selectable through HBNB_TYPE_STORAGE.
const (
	StorageFile = "file"
	StorageDB   = "db"
)

// FileEnv names the variable pointing at the YAML overlay.
const FileEnv = "CATALOG_CONFIG_FILE"

// Config is the full runtime configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// StorageConfig selects the storage engine.
type StorageConfig struct {
	Type     string `env:"HBNB_TYPE_STORAGE,default=file" yaml:"type"`
	FilePath string `env:"HBNB_FILE_PATH,default=file.json" yaml:"file_path"`
}

// DatabaseConfig configures the relational backend.
type DatabaseConfig struct {
	Driver       string `env:"CATALOG_DB_DRIVER,default=postgres" yaml:"driver"`
	DSN          string `env:"CATALOG_DB_DSN" yaml:"dsn"`
	MaxOpenConns int    `env:"CATALOG_DB_MAX_OPEN_CONNS,default=10" yaml:"max_open_conns"`
	MaxIdleConns int    `env:"CATALOG_DB_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	// ConnMaxLifetime is in seconds.
	ConnMaxLifetime int `env:"CATALOG_DB_CONN_MAX_LIFETIME,default=300" yaml:"conn_max_lifetime"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `env:"HBNB_API_HOST,default=0.0.0.0" yaml:"host"`
	Port int    `env:"HBNB_API_PORT,default=5000" yaml:"port"`
	// CORSOrigins is a comma separated allow-list.
	CORSOrigins string `env:"CATALOG_CORS_ORIGINS,default=*" yaml:"cors_origins"`
}

// LoggingConfig mirrors logger.LoggingConfig with environment bindings.
type LoggingConfig struct {
	Level      string `env:"CATALOG_LOG_LEVEL,default=info" yaml:"level"`
	Format     string `env:"CATALOG_LOG_FORMAT,default=text" yaml:"format"`
	Output     string `env:"CATALOG_LOG_OUTPUT,default=stdout" yaml:"output"`
	FilePrefix string `env:"CATALOG_LOG_FILE_PREFIX,default=catalog" yaml:"file_prefix"`
}

// RateLimitConfig configures the per-client token bucket. RPS <= 0 disables
// the limiter.
type RateLimitConfig struct {
	RPS   float64 `env:"CATALOG_RATE_LIMIT_RPS,default=0" yaml:"rps"`
	Burst int     `env:"CATALOG_RATE_LIMIT_BURST,default=20" yaml:"burst"`
}

// Load reads .env (when present), decodes the environment and applies the
// YAML file named by CATALOG_CONFIG_FILE on top.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv decodes the process environment without reading any files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// LoadFile applies the YAML file at path on top of the environment.
func LoadFile(path string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.overlay(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate normalises the backend choice and checks the settings it needs.
func (c *Config) Validate() error {
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	switch c.Storage.Type {
	case "", StorageFile:
		c.Storage.Type = StorageFile
	case StorageDB:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("storage type db requires CATALOG_DB_DSN")
		}
		if c.Database.Driver == "" {
			c.Database.Driver = "postgres"
		}
	default:
		return fmt.Errorf("unknown storage type %q (want %q or %q)", c.Storage.Type, StorageFile, StorageDB)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return errors.New("rate limit burst must be positive")
	}
	return nil
}

// UseDatabase reports whether the relational backend is selected.
func (c *Config) UseDatabase() bool {
	return c.Storage.Type == StorageDB
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Origins splits the CORS allow-list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// LoggerConfig converts the logging section for pkg/logger.
func (c *Config) LoggerConfig() logger.LoggingConfig {
	return logger.LoggingConfig{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Output:     c.Logging.Output,
		FilePrefix: c.Logging.FilePrefix,
	}
}
