// Package config holds all wrdsquery configuration. Configuration is
// explicit: it is loaded once at startup and passed into component
// constructors, never read from package-level state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all wrdsquery configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configures the completion service used by the parser, the
	// catalog's table selection, and the validator.
	LLM LLMConfig `yaml:"llm"`

	// Warehouse configures the external financial data warehouse.
	Warehouse WarehouseConfig `yaml:"warehouse"`

	// Catalog configures the schema knowledge base.
	Catalog CatalogConfig `yaml:"catalog"`

	// Storage configures the structured store and flat exports.
	Storage StorageConfig `yaml:"storage"`

	// Pipeline bounds the end-to-end run.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging configures the zap logger.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion service client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// WarehouseConfig configures the warehouse connection. WRDS serves its
// tables over Postgres.
type WarehouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// CatalogConfig configures the schema catalog.
type CatalogConfig struct {
	// SnapshotPath points at the persisted JSON schema snapshot. When the
	// file is absent or unreadable the built-in catalog is used.
	SnapshotPath string `yaml:"snapshot_path"`
}

// StorageConfig configures the persistence layer.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ExportDir    string `yaml:"export_dir"`
}

// PipelineConfig bounds the orchestrator.
type PipelineConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	Budget        string `yaml:"budget"`
}

// BudgetDuration parses the wall-clock budget, falling back to 60s.
func (p PipelineConfig) BudgetDuration() time.Duration {
	d, err := time.ParseDuration(p.Budget)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "wrdsquery",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},

		Warehouse: WarehouseConfig{
			Host:     "wrds-pgdata.wharton.upenn.edu",
			Port:     9737,
			Database: "wrds",
			SSLMode:  "require",
		},

		Catalog: CatalogConfig{
			SnapshotPath: "data/wrds_schema.json",
		},

		Storage: StorageConfig{
			DatabasePath: "data/wrds_data.db",
			ExportDir:    "data",
		},

		Pipeline: PipelineConfig{
			MaxIterations: 20,
			Budget:        "60s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables override both.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides layers environment variables over the loaded values.
// The credential variables keep the names the original deployment used.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("WRDSQUERY_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("WRDSQUERY_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("WRDSQUERY_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("WRDS_USERNAME"); v != "" {
		c.Warehouse.Username = v
	}
	if v := os.Getenv("WRDS_PASSWORD"); v != "" {
		c.Warehouse.Password = v
	}
	if v := os.Getenv("WRDSQUERY_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("WRDSQUERY_EXPORT_DIR"); v != "" {
		c.Storage.ExportDir = v
	}
	if v := os.Getenv("WRDSQUERY_SCHEMA_SNAPSHOT"); v != "" {
		c.Catalog.SnapshotPath = v
	}
	if v := os.Getenv("WRDSQUERY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// LLMTimeout parses the completion client timeout, falling back to 120s.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
