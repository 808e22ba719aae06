package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceFile     = "file"
	SourceBolt     = "bolt"
	SourcePostgres = "postgres"
)

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type WebUIConfig struct {
	Listen      string `yaml:"listen"`
	AllowPublic bool   `yaml:"allow_public"`
}

type Config struct {
	Target        string `yaml:"target"`
	CatalogPath   string `yaml:"catalog_path"`
	CatalogSource string `yaml:"catalog_source"`

	TimeoutMs       int   `yaml:"timeout_ms"`
	ICMP            *bool `yaml:"icmp"`
	Privileged      bool  `yaml:"icmp_privileged"`
	Concurrency     int   `yaml:"concurrency"`
	GroupByProtocol bool  `yaml:"group_by_protocol"`

	ShowClosed      bool   `yaml:"show_closed"`
	Progress        *bool  `yaml:"progress"`
	DisplayTimezone string `yaml:"display_timezone"`
	LogLevel        string `yaml:"log_level"`

	DBPath   string         `yaml:"db_path"`
	Database DatabaseConfig `yaml:"database"`
	WebUI    WebUIConfig    `yaml:"webui"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Target == "" {
		c.Target = "127.0.0.1"
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "configs/ports.yaml"
	}
	if c.CatalogSource == "" {
		c.CatalogSource = SourceFile
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 1000
	}
	if c.ICMP == nil {
		c.ICMP = boolPtr(true)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Progress == nil {
		c.Progress = boolPtr(true)
	}
	if c.DisplayTimezone == "" {
		c.DisplayTimezone = "America/Los_Angeles"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DBPath == "" {
		c.DBPath = "data/catalog.db"
	}
	if c.WebUI.Listen == "" {
		c.WebUI.Listen = "127.0.0.1:8088"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORTY_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PORTY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PORTY_TARGET"); v != "" {
		c.Target = v
	}
}

func (c *Config) Validate() error {
	if c.TimeoutMs <= 0 {
		return errors.New("timeout_ms must be positive")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	switch c.CatalogSource {
	case SourceFile, SourceBolt, SourcePostgres:
	default:
		return fmt.Errorf("unknown catalog_source %q", c.CatalogSource)
	}
	if c.CatalogSource == SourcePostgres && c.Database.DSN == "" {
		return errors.New("catalog_source postgres requires database.dsn")
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c *Config) ICMPEnabled() bool {
	return c.ICMP == nil || *c.ICMP
}

func (c *Config) ProgressEnabled() bool {
	return c.Progress == nil || *c.Progress
}

// Location resolves DisplayTimezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func boolPtr(b bool) *bool {
	return &b
}
