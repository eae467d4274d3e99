package storage

import (
	appconfig "github.com/agentmem/agentmem/config"
	"github.com/agentmem/agentmem/internal/database"
)

// ConfigFromDatabaseConfig builds a factory Config from config.DatabaseConfig,
// the same backend-to-dialect inference migration.NewMigratorFromDatabaseConfig
// uses, with Pool derived via database.PoolConfigFromDatabaseConfig so the
// connection-pool knobs §6 documents as environment variables actually reach
// the GORM pool instead of always falling back to DefaultPoolConfig.
func ConfigFromDatabaseConfig(dbCfg appconfig.DatabaseConfig) Config {
	cfg := Config{
		AutoMigrate: dbCfg.AutoMigrate,
		Pool:        database.PoolConfigFromDatabaseConfig(dbCfg),
		RetryPolicy: DefaultRetryPolicy(),
	}

	switch dbCfg.Backend {
	case "server":
		cfg.Backend = BackendServer
		cfg.DatabaseURL = dbCfg.URL
	default:
		cfg.Backend = BackendEmbedded
		cfg.EmbeddedPath = dbCfg.EmbeddedPath
		if cfg.EmbeddedPath == "" {
			cfg.EmbeddedPath = "agentmem.db"
		}
	}

	return cfg
}
