package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Paths of the intermediate data files
	Paths PathsConfig `mapstructure:"paths"`

	// Oracle configuration
	Oracle OracleConfig `mapstructure:"oracle"`

	// Cache configuration for oracle responses
	Cache CacheConfig `mapstructure:"cache"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Fusion configuration
	Fusion FusionConfig `mapstructure:"fusion"`

	// Importer configuration
	Importer ImporterConfig `mapstructure:"importer"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// PathsConfig locates the intermediate files. Every directory is relative to
// DataDir unless given as an absolute path.
type PathsConfig struct {
	DataDir          string `mapstructure:"data_dir"`
	ChunksDir        string `mapstructure:"chunks_dir"`
	ExtractionMapDir string `mapstructure:"extraction_map_dir"`
	RelationshipDir  string `mapstructure:"relationship_dir"`
	EntityDir        string `mapstructure:"entity_dir"`
	KGEntityDir      string `mapstructure:"kg_entity_dir"`
	KGRelationDir    string `mapstructure:"kg_relationship_dir"`
}

// OracleConfig holds configuration for the extraction oracle
type OracleConfig struct {
	Provider    string  `mapstructure:"provider"` // openai (any OpenAI-compatible endpoint)
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // in seconds
	MaxRetries  int     `mapstructure:"max_retries"`
	UsageDir    string  `mapstructure:"usage_dir"`
}

// CacheConfig holds configuration for the oracle response cache
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	TTL     int    `mapstructure:"ttl"` // in hours, 0 keeps entries forever
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	MinRequests      uint32  `mapstructure:"min_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// DatabaseConfig holds graph store configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j, memory
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// FusionConfig holds entity fusion configuration
type FusionConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// ImporterConfig holds graph import configuration
type ImporterConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// PipelineConfig holds stage orchestration configuration
type PipelineConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	ReportPath  string `mapstructure:"report_path"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v, applying defaults and environment overrides
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("GRAPHFUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that would make a stage misbehave
func (c *Config) Validate() error {
	if c.Fusion.BatchSize < 2 {
		return fmt.Errorf("fusion.batch_size must be at least 2, got %d", c.Fusion.BatchSize)
	}
	if c.Importer.BatchSize < 1 {
		return fmt.Errorf("importer.batch_size must be positive, got %d", c.Importer.BatchSize)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be positive, got %d", c.Pipeline.Concurrency)
	}
	switch c.Database.Driver {
	case "neo4j", "memory":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Path defaults follow the upstream extraction layout
	v.SetDefault("paths.data_dir", "./data")
	v.SetDefault("paths.chunks_dir", "raw/overview/json")
	v.SetDefault("paths.extraction_map_dir", "extraction_map")
	v.SetDefault("paths.relationship_dir", "relationship")
	v.SetDefault("paths.entity_dir", "entity")
	v.SetDefault("paths.kg_entity_dir", "KG/entity")
	v.SetDefault("paths.kg_relationship_dir", "KG/relationship")

	// Oracle defaults
	v.SetDefault("oracle.provider", "openai")
	v.SetDefault("oracle.model", "qwen2.5-7b-instruct")
	v.SetDefault("oracle.base_url", "http://localhost:8000")
	v.SetDefault("oracle.temperature", 0.1)
	v.SetDefault("oracle.max_tokens", 4096)
	v.SetDefault("oracle.timeout", 180)
	v.SetDefault("oracle.max_retries", 3)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "./data/cache/oracle")
	v.SetDefault("cache.ttl", 0)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.min_requests", 3)
	v.SetDefault("circuit_breaker.interval", 60)
	v.SetDefault("circuit_breaker.timeout", 30)
	v.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Database defaults
	v.SetDefault("database.driver", "neo4j")
	v.SetDefault("database.uri", "bolt://localhost:7687")
	v.SetDefault("database.username", "neo4j")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "neo4j")

	v.SetDefault("fusion.batch_size", 10)
	v.SetDefault("importer.batch_size", 1000)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.report_path", "")

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		v.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.graphfuse/telemetry", home))
	}

	v.SetDefault("alert.smtp_port", 587)
}

// overrideWithEnv applies the conventional unprefixed environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.Oracle.APIKey == "" {
		config.Oracle.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Oracle.BaseURL = baseURL
	}

	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		config.Database.Database = db
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
