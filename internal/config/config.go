// Package config loads the assistant configuration from an optional YAML
// file, then applies environment-variable overrides. The connection identity
// (server + database) may legitimately be empty at startup: the MCP client
// can supply it at runtime through the configure_database tool.
package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
)

// Config is the top-level assistant configuration.
type Config struct {
	Fabric  FabricConfig   `yaml:"fabric"`
	Azure   AzureConfig    `yaml:"azure"`
	LLM     LLMConfig      `yaml:"llm"`
	Server  ServerConfig   `yaml:"server"`
	Archive *ArchiveConfig `yaml:"archive"` // nil disables snapshot archival
	Logging LoggingConfig  `yaml:"logging"`
}

// FabricConfig identifies the Fabric SQL endpoint.
type FabricConfig struct {
	// Server is the SQL endpoint host, e.g.
	// "yourserver.datawarehouse.fabric.microsoft.com".
	Server   string `yaml:"server"`
	Database string `yaml:"database"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
}

// AzureConfig holds the Entra ID application identity used to mint SQL tokens.
type AzureConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"` // empty selects the device-code flow
}

// LLMConfig configures the NL-to-SQL generator.
type LLMConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// ServerConfig configures the MCP transport.
type ServerConfig struct {
	// ListenAddr enables the streamable HTTP transport when non-empty.
	// Empty means stdio, which is what desktop MCP clients use.
	ListenAddr string `yaml:"listen_addr"`
	MaxRows    int    `yaml:"max_rows"` // default row cap for query tools
}

// ArchiveConfig configures the optional S3-compatible snapshot archive.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Fabric: FabricConfig{
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-0",
			MaxTokens: 1024,
		},
		Server: ServerConfig{
			MaxRows: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("cannot read config file %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("cannot parse config file %s", path), err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with the environment variables the original
// deployment documented.
func (c *Config) applyEnv() {
	setIfPresent(&c.Fabric.Server, "FABRIC_SQL_SERVER")
	setIfPresent(&c.Fabric.Database, "FABRIC_DATABASE")
	setIfPresent(&c.Azure.TenantID, "AZURE_TENANT_ID")
	setIfPresent(&c.Azure.ClientID, "AZURE_CLIENT_ID")
	setIfPresent(&c.Azure.ClientSecret, "AZURE_CLIENT_SECRET")
	setIfPresent(&c.LLM.Model, "ANTHROPIC_MODEL")
	setIfPresent(&c.Logging.Level, "LOG_LEVEL")
}

func setIfPresent(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects malformed configuration. A missing Fabric server/database
// is not an error here; tools report it when they need a connection.
func (c *Config) Validate() error {
	if c.Azure.TenantID == "" || c.Azure.ClientID == "" {
		return errs.New(errs.ErrKindInvalidInput,
			"azure tenant_id and client_id are required (set AZURE_TENANT_ID and AZURE_CLIENT_ID)")
	}
	if c.Fabric.ConnectTimeout <= 0 || c.Fabric.QueryTimeout <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "fabric timeouts must be positive")
	}
	if c.Server.MaxRows <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "server max_rows must be positive")
	}
	if c.LLM.Model == "" {
		return errs.New(errs.ErrKindInvalidInput, "llm model must not be empty")
	}
	if c.Archive != nil {
		if c.Archive.Endpoint == "" || c.Archive.Bucket == "" {
			return errs.New(errs.ErrKindInvalidInput, "archive endpoint and bucket are required when archive is configured")
		}
	}
	return nil
}
