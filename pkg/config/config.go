// Package config provides configuration management for the callgrind analyzer.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Parse     ParseConfig     `mapstructure:"parse"`
	Output    OutputConfig    `mapstructure:"output"`
	Export    ExportConfig    `mapstructure:"export"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ParseConfig holds parser configuration.
type ParseConfig struct {
	DefaultPositions []string `mapstructure:"default_positions"`
	StrictMode       bool     `mapstructure:"strict_mode"`
	MaxDiagnostics   int      `mapstructure:"max_diagnostics"`
	ProgressInterval int      `mapstructure:"progress_interval"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format     string  `mapstructure:"format"` // text, json, callgraph or dot
	TopN       int     `mapstructure:"top_n"`
	Event      string  `mapstructure:"event"` // empty selects the first event
	SortBy     string  `mapstructure:"sort_by"`
	MinNodePct float64 `mapstructure:"min_node_pct"`
	MinEdgePct float64 `mapstructure:"min_edge_pct"`
	Pretty     bool    `mapstructure:"pretty"`
}

// ExportConfig selects and configures exporters.
type ExportConfig struct {
	Targets     []string      `mapstructure:"targets"` // metrics, storage, database
	Compression string        `mapstructure:"compression"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds the metric ingestion endpoint configuration.
type MetricsConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Prefix      string        `mapstructure:"prefix"`
	BatchSize   int           `mapstructure:"batch_size"`
	Concurrency int           `mapstructure:"concurrency"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // postgres, mysql or sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"` // file path for sqlite
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// TelemetryConfig overrides the OTEL_* environment for tracing. Empty
// fields keep the environment value.
type TelemetryConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	ServiceName string            `mapstructure:"service_name"`
	Endpoint    string            `mapstructure:"endpoint"`
	Protocol    string            `mapstructure:"protocol"` // grpc or http/protobuf
	Insecure    bool              `mapstructure:"insecure"`
	Headers     map[string]string `mapstructure:"headers"`
	Sampler     string            `mapstructure:"sampler"`
	SamplerArg  string            `mapstructure:"sampler_arg"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"` // empty logs to stderr
}

// Export target names.
const (
	TargetMetrics  = "metrics"
	TargetStorage  = "storage"
	TargetDatabase = "database"
)

// EnvPrefix prefixes environment overrides, e.g. CALLGRIND_LOG_LEVEL.
const EnvPrefix = "CALLGRIND"

// Load reads configuration from the specified file path. An empty path
// searches the standard locations and falls back to defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/callgrind-analysis")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case configPath != "" && os.IsNotExist(err):
			return nil, fmt.Errorf("config file %s not found: %w", configPath, err)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return decode(v)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("parse.default_positions", []string{})
	v.SetDefault("parse.strict_mode", false)
	v.SetDefault("parse.max_diagnostics", 1000)
	v.SetDefault("parse.progress_interval", 0)

	v.SetDefault("output.format", "text")
	v.SetDefault("output.top_n", 20)
	v.SetDefault("output.event", "")
	v.SetDefault("output.sort_by", "self")
	v.SetDefault("output.min_node_pct", 0.0)
	v.SetDefault("output.min_edge_pct", 0.0)
	v.SetDefault("output.pretty", true)

	v.SetDefault("export.targets", []string{})
	v.SetDefault("export.compression", "zstd")
	v.SetDefault("export.key_prefix", "callgrind")
	v.SetDefault("export.metrics.endpoint", "")
	v.SetDefault("export.metrics.api_key", "")
	v.SetDefault("export.metrics.prefix", "callgrind")
	v.SetDefault("export.metrics.batch_size", 500)
	v.SetDefault("export.metrics.concurrency", 4)
	v.SetDefault("export.metrics.max_retries", 5)
	v.SetDefault("export.metrics.timeout", 10*time.Second)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "callgrind.db")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./storage")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.secret_id", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.domain", "")
	v.SetDefault("storage.scheme", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.protocol", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.sampler", "")
	v.SetDefault("telemetry.sampler_arg", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Parse.MaxDiagnostics < 0 {
		return fmt.Errorf("parse.max_diagnostics must not be negative")
	}
	if c.Parse.ProgressInterval < 0 {
		return fmt.Errorf("parse.progress_interval must not be negative")
	}

	switch c.Output.Format {
	case "text", "json", "callgraph", "dot":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}
	if c.Output.TopN < 0 {
		return fmt.Errorf("output.top_n must not be negative")
	}

	switch strings.ToLower(c.Telemetry.Protocol) {
	case "", "grpc", "http", "http/protobuf":
	default:
		return fmt.Errorf("unsupported telemetry protocol: %s", c.Telemetry.Protocol)
	}

	switch c.Export.Compression {
	case "zstd", "gzip", "none":
	default:
		return fmt.Errorf("unsupported compression: %s", c.Export.Compression)
	}
	for _, target := range c.Export.Targets {
		switch target {
		case TargetMetrics:
			if err := c.Export.Metrics.validate(); err != nil {
				return err
			}
		case TargetStorage:
		case TargetDatabase:
			if err := c.Database.validate(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown export target: %s", target)
		}
	}

	// Storage config validation is delegated to the storage package.
	return nil
}

func (m MetricsConfig) validate() error {
	if m.Endpoint == "" {
		return fmt.Errorf("export.metrics.endpoint is required")
	}
	if m.APIKey == "" {
		return fmt.Errorf("export.metrics.api_key is required")
	}
	if m.BatchSize < 1 {
		return fmt.Errorf("export.metrics.batch_size must be at least 1")
	}
	if m.Concurrency < 1 {
		return fmt.Errorf("export.metrics.concurrency must be at least 1")
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	switch d.Type {
	case "sqlite":
		if d.Database == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case "postgres", "mysql":
		if d.Host == "" {
			return fmt.Errorf("database host is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", d.Type)
	}
	return nil
}

// HasTarget reports whether the named exporter is enabled.
func (c *Config) HasTarget(name string) bool {
	for _, target := range c.Export.Targets {
		if target == name {
			return true
		}
	}
	return false
}
