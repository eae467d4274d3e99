// =============================================================================
// Default configuration
// =============================================================================
// Reasonable defaults for every configuration section, matching §6 and
// the per-component defaults documented across §4.
// =============================================================================
package config

import "time"

// DefaultConfig returns the baseline configuration: an embedded sqlite
// database, in-memory vector store, and conservative router/consolidation
// tuning — suitable for local development without any external services.
func DefaultConfig() *Config {
	return &Config{
		Database:      DefaultDatabaseConfig(),
		Redis:         DefaultRedisConfig(),
		VectorStore:   DefaultVectorStoreConfig(),
		LLM:           DefaultLLMConfig(),
		Embedding:     DefaultEmbeddingConfig(),
		Router:        DefaultRouterConfig(),
		Consolidation: DefaultConsolidationConfig(),
		Cache:         DefaultCacheConfig(),
		Log:           DefaultLogConfig(),
		Telemetry:     DefaultTelemetryConfig(),
	}
}

// DefaultDatabaseConfig matches AGENTMEM_DB_PATH's documented default of
// an embedded sqlite file in the working directory.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Backend:         "embedded",
		EmbeddedPath:    "agentmem.db",
		AutoMigrate:     true,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// DefaultRedisConfig is the standard local Redis address, used by the
// event bus when configured to run distributed.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultVectorStoreConfig defaults to the in-memory store (C6's
// InMemoryVectorStore), requiring no external service for development.
func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		Provider:   "inmemory",
		Collection: "agentmem_vectors",
	}
}

// DefaultLLMConfig leaves credentials empty; callers must set
// AGENTMEM_LLM_* or the corresponding provider API key env var.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:   "",
		Model:      "",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// DefaultEmbeddingConfig assumes a 1536-dimension embedding model
// (the common OpenAI/Anthropic-compatible default) until overridden.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "",
		Model:      "",
		Dimensions: 1536,
	}
}

// DefaultRouterConfig matches §4.7's documented default exploration
// rate and bounded performance history.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ExplorationRate: 0.1,
		MaxHistorySize:  10000,
	}
}

// DefaultConsolidationConfig matches §4.9's documented thresholds: a
// duplicate-rejection similarity of 0.85, consolidation triggered at
// 100 pending memories or hourly, and a conflict-detection sensitivity
// of 0.8 shared with C4's ConflictResolver.
func DefaultConsolidationConfig() ConsolidationConfig {
	return ConsolidationConfig{
		DuplicateThreshold:     0.85,
		ConsolidationThreshold: 100,
		Interval:               time.Hour,
		ConflictSensitivity:    0.8,
	}
}

// DefaultCacheConfig matches §4.3's documented 512MB working set and
// one-hour entry TTL.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSizeMB: 512,
		TTL:       time.Hour,
	}
}

// DefaultLogConfig matches the zap bootstrap conventions used elsewhere
// in this module.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig leaves tracing disabled until an OTLP endpoint
// is configured.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentmem",
		SampleRate:   0.1,
	}
}
