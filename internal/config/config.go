package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andreiashu/geoselect"
)

// Config is the service and CLI configuration.
type Config struct {
	Server   ServerConfig           `yaml:"server"`
	Database DatabaseConfig         `yaml:"database"`
	Table    TableConfig            `yaml:"table"`
	Upload   geoselect.UploadLimits `yaml:"upload"`
	Pairs    []geoselect.PairConfig `yaml:"pairs"`
	Log      LogConfig              `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig locates the unit database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TableConfig controls how long a built lookup table is served.
type TableConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "./geoselect-data/units.db"},
		Table:    TableConfig{TTL: 5 * time.Minute},
		Upload:   geoselect.DefaultUploadLimits(),
	}
}

// Load reads the YAML file at path over the defaults (an empty path skips
// the file) and then applies GEOSELECT_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("GEOSELECT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("GEOSELECT_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GEOSELECT_TABLE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GEOSELECT_TABLE_TTL: %w", err)
		}
		cfg.Table.TTL = d
	}
	if v := os.Getenv("GEOSELECT_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GEOSELECT_DEBUG: %w", err)
		}
		cfg.Log.Debug = b
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Table.TTL < 0 {
		return fmt.Errorf("table.ttl must not be negative")
	}
	for i, p := range c.Pairs {
		if p.CountryField == "" || p.CityField == "" {
			return fmt.Errorf("pairs[%d]: country and city are required", i)
		}
	}
	return nil
}
