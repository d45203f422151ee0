package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/coa/internal/auditlog"
	"github.com/cleared-dev/coa/internal/model"
)

// FileName is the name of the configuration file at the repository root.
const FileName = "coa.yaml"

// Config represents the top-level coa.yaml configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	User     UserConfig     `yaml:"user"`
	Accounts AccountsConfig `yaml:"accounts"`
	Audit    AuditConfig    `yaml:"audit"`
	Git      GitConfig      `yaml:"git"`
}

// DatabaseConfig locates the SQLite database, relative to the repository root.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // console or json
}

// UserConfig identifies who runs structural operations.
type UserConfig struct {
	Name      string  `yaml:"name"`
	Companies []int64 `yaml:"companies"` // empty = every company
	ReadOnly  bool    `yaml:"read_only,omitempty"`
}

// AccountsConfig holds account creation defaults.
type AccountsConfig struct {
	DefaultType string `yaml:"default_type"`
}

// AuditConfig controls the CSV audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// GitConfig controls chart snapshots committed after structural changes.
type GitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a coa.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
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

// Default returns a Config with sensible defaults for a new repository.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "coa.db"},
		Log:      LogConfig{Level: "info", Encoding: "console"},
		User:     UserConfig{Name: "admin"},
		Accounts: AccountsConfig{DefaultType: string(model.AccountTypeCurrentAsset)},
		Audit:    AuditConfig{Enabled: true, Path: auditlog.DefaultPath},
		Git:      GitConfig{AuthorName: "coa", AuthorEmail: "coa@localhost"},
	}
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("invalid config: database.path is required")
	}
	if !model.AccountType(c.Accounts.DefaultType).Valid() {
		return fmt.Errorf("invalid config: accounts.default_type: %s", model.UnknownAccountType(c.DefaultAccountType()))
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("invalid config: audit.path is required when audit is enabled")
	}
	if c.Git.Enabled && (c.Git.AuthorName == "" || c.Git.AuthorEmail == "") {
		return fmt.Errorf("invalid config: git.author_name and git.author_email are required when git is enabled")
	}
	return nil
}

// DefaultAccountType returns the account type used when nothing precedes a new code.
func (c *Config) DefaultAccountType() model.AccountType {
	return model.AccountType(c.Accounts.DefaultType)
}
