package migration

import (
	"fmt"
	"strings"

	appconfig "github.com/agentmem/agentmem/config"
)

// NewMigratorFromConfig creates a new migrator from application configuration.
func NewMigratorFromConfig(cfg *appconfig.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	return NewMigratorFromDatabaseConfig(cfg.Database)
}

// NewMigratorFromDatabaseConfig creates a new migrator from database
// configuration, following the same backend-to-dialect inference as
// storage.dialectFor: "embedded" always maps to sqlite against
// EmbeddedPath, "server" infers postgres or mysql from the URL scheme.
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig) (*DefaultMigrator, error) {
	var dbType DatabaseType
	var dbURL string

	switch dbCfg.Backend {
	case "embedded", "":
		dbType = DatabaseTypeSQLite
		path := dbCfg.EmbeddedPath
		if path == "" {
			path = "agentmem.db"
		}
		dbURL = path
	case "server":
		switch {
		case strings.HasPrefix(dbCfg.URL, "postgres://") || strings.HasPrefix(dbCfg.URL, "postgresql://"):
			dbType = DatabaseTypePostgres
		case strings.Contains(dbCfg.URL, "@tcp(") || strings.HasPrefix(dbCfg.URL, "mysql://"):
			dbType = DatabaseTypeMySQL
		default:
			return nil, fmt.Errorf("cannot infer server SQL dialect from database.url %q", dbCfg.URL)
		}
		dbURL = strings.TrimPrefix(dbCfg.URL, "mysql://")
	default:
		return nil, fmt.Errorf("unknown database backend %q", dbCfg.Backend)
	}

	migCfg := &Config{
		DatabaseType: dbType,
		DatabaseURL:  dbURL,
		TableName:    "schema_migrations",
	}

	return NewMigrator(migCfg)
}

// NewMigratorFromURL creates a new migrator from a database URL
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}

	return NewMigrator(&Config{
		DatabaseType: dt,
		DatabaseURL:  dbURL,
		TableName:    "schema_migrations",
	})
}
