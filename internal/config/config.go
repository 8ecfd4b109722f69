package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// Config represents the main configuration for notion2sheets.
type Config struct {
	BaseDir     string             `toml:"base_dir"`
	LogDir      string             `toml:"log_dir"`
	LogLevel    string             `toml:"log_level"` // "debug", "info", "warn" or "error"
	Locale      string             `toml:"locale"`    // BCP 47 tag; empty renders raw values
	Timezone    string             `toml:"timezone"`  // IANA name used to render date-times
	Notion      NotionConfig       `toml:"notion"`
	Transport   TransportConfig    `toml:"transport"`
	Database    DatabaseConfig     `toml:"database"`
	Checkpoint  CheckpointConfig   `toml:"checkpoint"`
	Secrets     SecretsConfig      `toml:"secrets"`
	Collections []CollectionConfig `toml:"collections"`
}

// NotionConfig holds Notion API client settings.
type NotionConfig struct {
	BaseURL  string `toml:"base_url,omitempty"`
	Version  string `toml:"version,omitempty"`
	PageSize int    `toml:"page_size"`
}

// TransportConfig controls request pacing and retries shared by the Notion
// and Google Sheets clients.
type TransportConfig struct {
	MinIntervalMS int `toml:"min_interval_ms"`
	MaxRetries    int `toml:"max_retries"`
	RetryBaseMS   int `toml:"retry_base_ms"`
}

// MinInterval returns the minimum spacing between requests.
func (t TransportConfig) MinInterval() time.Duration {
	return time.Duration(t.MinIntervalMS) * time.Millisecond
}

// RetryBase returns the first backoff delay.
func (t TransportConfig) RetryBase() time.Duration {
	return time.Duration(t.RetryBaseMS) * time.Millisecond
}

// DatabaseConfig represents configuration for the state database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// CheckpointConfig selects where checkpoints are persisted.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CheckpointConfig struct {
	Type string `toml:"type"` // "database", "file", "s3" or "memory"

	// File-specific fields (only used when Type == "file")
	Path string `toml:"path,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Key      string `toml:"s3_key,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible services such as MinIO or R2

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// SecretsConfig holds paths to the age identity and the sealed credentials.
type SecretsConfig struct {
	IdentityPath  string `toml:"identity_path"`
	RecipientPath string `toml:"recipient_path"`
	SecretsPath   string `toml:"secrets_path"`
}

// CollectionConfig maps a Notion database to a Google Sheets tab.
type CollectionConfig struct {
	Name             string `toml:"name"`
	NotionDatabaseID string `toml:"notion_database_id"`
	GoogleSheetID    string `toml:"google_sheet_id"`
	GoogleSheetName  string `toml:"google_sheet_name"`
}

// Collection converts the entry to its sync form.
func (c CollectionConfig) Collection() n2s.Collection {
	return n2s.Collection{
		Name:          c.Name,
		DatabaseID:    c.NotionDatabaseID,
		SpreadsheetID: c.GoogleSheetID,
		TabName:       c.GoogleSheetName,
	}
}

// SyncCollections returns the configured collections in file order.
func (c *Config) SyncCollections() []n2s.Collection {
	collections := make([]n2s.Collection, len(c.Collections))
	for i, cc := range c.Collections {
		collections[i] = cc.Collection()
	}
	return collections
}

// Location resolves Timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ApplyDefaults fills zero-valued settings with their defaults.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Notion.PageSize == 0 {
		c.Notion.PageSize = n2s.DefaultPageSize
	}
	if c.Transport.MinIntervalMS == 0 {
		c.Transport.MinIntervalMS = 334
	}
	if c.Transport.MaxRetries == 0 {
		c.Transport.MaxRetries = 3
	}
	if c.Transport.RetryBaseMS == 0 {
		c.Transport.RetryBaseMS = 500
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Checkpoint.Type == "" {
		c.Checkpoint.Type = "database"
	}
}

// NewConfig creates a new Config with default paths under baseDir.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Checkpoint: CheckpointConfig{
			Type: "database",
			Path: filepath.Join(baseDir, "data", "last_updated_time.json"),
		},
		Secrets: SecretsConfig{
			IdentityPath:  filepath.Join(baseDir, "keys", "notion2sheets.key"),
			RecipientPath: filepath.Join(baseDir, "keys", "notion2sheets.pub"),
			SecretsPath:   filepath.Join(baseDir, "keys", "credentials.age"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and applies defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
// LOCALE in the environment overrides the configured locale.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if locale := os.Getenv("LOCALE"); locale != "" {
		cfg.Locale = locale
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
