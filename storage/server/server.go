// Package server configures the networked storage.Bundle: a postgres or
// mysql connection, dialect inferred from the DSN scheme. This is the
// second of the two implementations behind storage.Backend (§4.2); the
// Server split is an architectural choice, not a cap on SQL dialect —
// it covers both gorm.io/driver/postgres and gorm.io/driver/mysql.
package server

import (
	"go.uber.org/zap"

	"github.com/agentmem/agentmem/internal/database"
	"github.com/agentmem/agentmem/storage"
)

// Options configures the server backend.
type Options struct {
	// DatabaseURL is a postgres://, postgresql:// or mysql DSN.
	DatabaseURL string
	AutoMigrate bool
	Pool        database.PoolConfig
	Retry       storage.RetryPolicy
}

// DefaultOptions matches storage.DefaultRetryPolicy/database.DefaultPoolConfig
// but leaves DatabaseURL for the caller to fill in.
func DefaultOptions(databaseURL string) Options {
	return Options{
		DatabaseURL: databaseURL,
		AutoMigrate: true,
		Pool:        database.DefaultPoolConfig(),
		Retry:       storage.DefaultRetryPolicy(),
	}
}

// Open builds a repository bundle against a networked postgres or mysql
// server, running pending migrations first when opts.AutoMigrate is set.
func Open(opts Options, logger *zap.Logger) (*storage.Bundle, error) {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = storage.DefaultRetryPolicy()
	}

	return storage.New(storage.Config{
		Backend:     storage.BackendServer,
		DatabaseURL: opts.DatabaseURL,
		Pool:        opts.Pool,
		AutoMigrate: opts.AutoMigrate,
		RetryPolicy: opts.Retry,
	}, logger)
}
