package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up when --config is not given.
const FileName = "invoicemap.yaml"

// Config represents the top-level invoicemap.yaml configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Import   ImportConfig   `yaml:"import"`
	RunLog   string         `yaml:"run_log"`
	Git      GitConfig      `yaml:"git"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or mysql
	DSN    string `yaml:"dsn"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ImportConfig controls how input files are found and read.
type ImportConfig struct {
	Dir       string `yaml:"dir"`
	Encoding  string `yaml:"encoding,omitempty"`  // utf-8 or windows-1252
	Delimiter string `yaml:"delimiter,omitempty"` // single character, "," when empty
	Sheet     string `yaml:"sheet,omitempty"`     // xlsx sheet, first sheet when empty
}

// GitConfig controls committing exported mapping bundles.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads an invoicemap.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault reads path, falling back to Default when the file does not
// exist. Environment overrides are applied either way.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config for a local SQLite database.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "invoicemap.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Import: ImportConfig{
			Dir:      "import",
			Encoding: "utf-8",
		},
		RunLog: "logs/import-log.csv",
		Git: GitConfig{
			AuthorName:  "invoicemap",
			AuthorEmail: "invoicemap@localhost",
		},
	}
}

// ApplyEnv loads a .env file if present and lets DATABASE_URL,
// DATABASE_DRIVER, LOG_LEVEL and LOG_FORMAT override the file values.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	override(&c.Database.DSN, "DATABASE_URL")
	override(&c.Database.Driver, "DATABASE_DRIVER")
	override(&c.Log.Level, "LOG_LEVEL")
	override(&c.Log.Format, "LOG_FORMAT")
	return nil
}

// DelimiterRune returns the configured CSV delimiter, ',' when unset.
func (c ImportConfig) DelimiterRune() (rune, error) {
	d := c.Delimiter
	if d == `\t` || strings.EqualFold(d, "tab") {
		return '\t', nil
	}
	r := []rune(d)
	switch len(r) {
	case 0:
		return ',', nil
	case 1:
		return r[0], nil
	}
	return 0, fmt.Errorf("invalid delimiter %q: want a single character", d)
}

func override(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}
