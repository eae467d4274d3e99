// Package embedded configures the file-backed storage.Bundle: a single
// sqlite database file, opened through the pure-Go glebarez/modernc
// driver. Schema migrations run through golang-migrate's sqlite3
// driver, which is the cgo-based mattn/go-sqlite3. This is one of the two
// implementations behind storage.Backend (§4.2); the other is
// storage/server.
package embedded

import (
	"go.uber.org/zap"

	"github.com/agentmem/agentmem/internal/database"
	"github.com/agentmem/agentmem/storage"
)

// Options configures the embedded backend.
type Options struct {
	// Path is the sqlite file path. Defaults to "agentmem.db".
	Path string
	// AutoMigrate runs pending migrations before the bundle is usable.
	AutoMigrate bool
	Pool        database.PoolConfig
	Retry       storage.RetryPolicy
}

// DefaultOptions matches storage.DefaultConfig's embedded defaults.
func DefaultOptions() Options {
	return Options{
		Path:        "agentmem.db",
		AutoMigrate: true,
		Pool:        database.DefaultPoolConfig(),
		Retry:       storage.DefaultRetryPolicy(),
	}
}

// Open builds a repository bundle against a local sqlite file.
func Open(opts Options, logger *zap.Logger) (*storage.Bundle, error) {
	if opts.Path == "" {
		opts.Path = "agentmem.db"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = storage.DefaultRetryPolicy()
	}

	return storage.New(storage.Config{
		Backend:      storage.BackendEmbedded,
		EmbeddedPath: opts.Path,
		Pool:         opts.Pool,
		AutoMigrate:  opts.AutoMigrate,
		RetryPolicy:  opts.Retry,
	}, logger)
}
