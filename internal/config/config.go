package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Sources   SourcesConfig   `yaml:"sources"`
	Reindexer ReindexerConfig `yaml:"reindexer"`
	Backup    BackupConfig    `yaml:"backup"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SourcesConfig holds external source credentials.
type SourcesConfig struct {
	DiscogsToken        string `yaml:"discogs_token"`
	SpotifyClientID     string `yaml:"spotify_client_id"`
	SpotifyClientSecret string `yaml:"spotify_client_secret"`
}

// ReindexerConfig tunes the background repair loop.
type ReindexerConfig struct {
	Tick       time.Duration `yaml:"tick"`
	MaxRetries int           `yaml:"max_retries"`
	Interval   time.Duration `yaml:"interval"`
}

// BackupConfig controls scheduled database snapshots.
type BackupConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	Retention int           `yaml:"retention"`
	Interval  time.Duration `yaml:"interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "/data/cantata.db",
		},
		Reindexer: ReindexerConfig{
			Tick:       60 * time.Second,
			MaxRetries: 5,
			Interval:   6 * time.Hour,
		},
		Backup: BackupConfig{
			Retention: 7,
			Interval:  24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("CANTATA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("CANTATA_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CANTATA_DISCOGS_TOKEN"); v != "" {
		c.Sources.DiscogsToken = v
	}
	if v := os.Getenv("CANTATA_SPOTIFY_CLIENT_ID"); v != "" {
		c.Sources.SpotifyClientID = v
	}
	if v := os.Getenv("CANTATA_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Sources.SpotifyClientSecret = v
	}
	if v := os.Getenv("CANTATA_REINDEX_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Reindexer.Tick = d
		}
	}
	if v := os.Getenv("CANTATA_REINDEX_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Reindexer.MaxRetries = n
		}
	}
	if v := os.Getenv("CANTATA_REINDEX_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Reindexer.Interval = d
		}
	}
	if v := os.Getenv("CANTATA_BACKUP_ENABLED"); v != "" {
		c.Backup.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CANTATA_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
	if v := os.Getenv("CANTATA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CANTATA_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CANTATA_LOG_DIR"); v != "" {
		c.Logging.Dir = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Reindexer.Tick <= 0 {
		return fmt.Errorf("reindexer tick must be positive")
	}
	if c.Reindexer.MaxRetries < 1 {
		return fmt.Errorf("reindexer max retries must be at least 1")
	}
	if c.Backup.Enabled && c.Backup.Retention < 1 {
		return fmt.Errorf("backup retention must be at least 1")
	}
	return nil
}
