// =============================================================================
// Configuration loader
// =============================================================================
// Unified config loading: YAML file + environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENTMEM").
//	    Load()
//
// Precedence: defaults -> YAML file -> environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the memory engine, matching
// §6's documented environment variables.
type Config struct {
	// Database selects and tunes the storage backend (C2).
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis backs the event bus (C9's change notifications). The
	// KV-cache (C3) is in-process only and does not use it.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// VectorStore names the external vector collaborator C6 issues
	// probes against. This repo never implements the store itself
	// (Non-goal); it only carries enough configuration to construct a
	// client for it.
	VectorStore VectorStoreConfig `yaml:"vector_store" env:"VECTOR_STORE"`

	// LLM and Embedding describe the external model collaborators used
	// by intelligence scoring (C4) and search reranking (C6).
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Router tunes the adaptive strategy router (C7).
	Router RouterConfig `yaml:"router" env:"ROUTER"`

	// Consolidation tunes duplicate detection, merge scheduling and
	// forgetting (C9).
	Consolidation ConsolidationConfig `yaml:"consolidation" env:"CONSOLIDATION"`

	// Cache tunes the bounded working-set KV-cache (C3).
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Log and Telemetry are ambient concerns carried regardless of the
	// spec's Non-goal on an HTTP metrics surface.
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// DatabaseConfig selects the storage backend (§4.2: Embedded or Server)
// and tunes its connection pool.
type DatabaseConfig struct {
	// Backend is "embedded" or "server".
	Backend string `yaml:"backend" env:"BACKEND"`
	// EmbeddedPath is the sqlite file path used when Backend=embedded.
	EmbeddedPath string `yaml:"embedded_path" env:"EMBEDDED_PATH"`
	// URL is the postgres:// or mysql DSN used when Backend=server.
	URL string `yaml:"url" env:"URL"`
	// AutoMigrate runs pending migrations on startup.
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
	// Pool tuning, mirrored onto internal/database.PoolConfig.
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// RedisConfig configures the event bus's pub/sub transport.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// VectorStoreConfig names the external vector-search collaborator.
type VectorStoreConfig struct {
	// Provider is "inmemory" (dev/test, C6's InMemoryVectorStore),
	// "qdrant", "weaviate" or "pinecone".
	Provider   string `yaml:"provider" env:"PROVIDER"`
	URL        string `yaml:"url" env:"URL"`
	APIKey     string `yaml:"api_key" env:"API_KEY"`
	Collection string `yaml:"collection" env:"COLLECTION"`
}

// LLMConfig names the external LLM collaborator used for reranking and
// conflict resolution narration.
type LLMConfig struct {
	Provider   string        `yaml:"provider" env:"PROVIDER"`
	Model      string        `yaml:"model" env:"MODEL"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
}

// EmbeddingConfig names the external embedding collaborator.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" env:"PROVIDER"`
	Model      string `yaml:"model" env:"MODEL"`
	Dimensions int    `yaml:"dimensions" env:"DIMENSIONS"`
}

// RouterConfig tunes the Thompson-Sampling adaptive router (§4.7).
type RouterConfig struct {
	ExplorationRate float64 `yaml:"exploration_rate" env:"EXPLORATION_RATE"`
	MaxHistorySize  int     `yaml:"max_history_size" env:"MAX_HISTORY_SIZE"`
}

// ConsolidationConfig tunes duplicate detection, scheduled consolidation
// and forgetting (§4.9).
type ConsolidationConfig struct {
	DuplicateThreshold     float64       `yaml:"duplicate_threshold" env:"DUPLICATE_THRESHOLD"`
	ConsolidationThreshold int           `yaml:"consolidation_threshold" env:"CONSOLIDATION_THRESHOLD"`
	Interval               time.Duration `yaml:"interval" env:"INTERVAL"`
	ConflictSensitivity    float64       `yaml:"conflict_sensitivity" env:"CONFLICT_SENSITIVITY"`
}

// CacheConfig tunes the bounded KV-cache (§4.3).
type CacheConfig struct {
	MaxSizeMB  int           `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	TTL        time.Duration `yaml:"ttl" env:"TTL"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OpenTelemetry tracer and meter providers
// wrapped around engine operations. There is no metrics HTTP endpoint
// (Non-goal); this only governs OTLP span and metric export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader is a builder for loading Config from defaults, an optional YAML
// file, and environment variable overrides, in that order.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the default "AGENTMEM" env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTMEM",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator registers an additional validation pass.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves a Config: defaults, then YAML file, then env vars.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv recursively walks cfg's struct fields, applying
// AGENTMEM_<PATH>_<TAG> environment overrides.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads config from path, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads config from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks cross-field invariants the reflection-based loader
// cannot express via tags alone.
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Backend {
	case "embedded":
		if c.Database.EmbeddedPath == "" {
			problems = append(problems, "database.embedded_path must be set for the embedded backend")
		}
	case "server":
		if c.Database.URL == "" {
			problems = append(problems, "database.url must be set for the server backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("database.backend must be \"embedded\" or \"server\", got %q", c.Database.Backend))
	}

	if c.Router.ExplorationRate < 0 || c.Router.ExplorationRate > 1 {
		problems = append(problems, "router.exploration_rate must be between 0 and 1")
	}

	if c.Consolidation.DuplicateThreshold < 0 || c.Consolidation.DuplicateThreshold > 1 {
		problems = append(problems, "consolidation.duplicate_threshold must be between 0 and 1")
	}
	if c.Consolidation.ConsolidationThreshold <= 0 {
		problems = append(problems, "consolidation.consolidation_threshold must be positive")
	}

	if c.Cache.MaxSizeMB <= 0 {
		problems = append(problems, "cache.max_size_mb must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(problems, "; "))
	}

	return nil
}

// DSN returns the driver-specific connection string for the server
// backend's postgres/mysql dialects. Embedded sqlite uses EmbeddedPath
// directly and never calls this.
func (d *DatabaseConfig) DSN() string {
	return d.URL
}

// PoolTuning implements the narrow interface internal/database's
// PoolConfigFromDatabaseConfig reads, so that package can build a
// database.PoolConfig from this config without importing it (database
// is a leaf package; config sits above it).
func (d DatabaseConfig) PoolTuning() (maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	return d.MaxOpenConns, d.MaxIdleConns, d.ConnMaxLifetime, d.ConnMaxIdleTime
}
