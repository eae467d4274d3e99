package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentmem/agentmem/errs"
	"github.com/agentmem/agentmem/internal/database"
	"github.com/agentmem/agentmem/internal/migration"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// BackendKind selects which of the two repository implementations the
// factory builds: an embedded file database or a networked server
// database. Per §4.2 this is an architectural split, not a cap on the
// number of SQL dialects a Server backend may speak — Server covers both
// postgres and mysql connection strings.
type BackendKind string

const (
	BackendEmbedded BackendKind = "embedded"
	BackendServer   BackendKind = "server"
)

// Config is the single configuration object the factory reads. The
// config package loads the matching settings into config.DatabaseConfig
// from AGENTMEM_DATABASE_BACKEND, AGENTMEM_DATABASE_URL and
// AGENTMEM_DATABASE_EMBEDDED_PATH (default prefix). DATABASE_URL,
// AGENTMEM_DB_BACKEND, AGENTMEM_DB_PATH and POSTGRES_URL are not read,
// and the backend is chosen by Backend, not inferred from a URL prefix.
type Config struct {
	Backend     BackendKind
	DatabaseURL string
	EmbeddedPath string
	Pool        database.PoolConfig
	AutoMigrate bool
	RetryPolicy RetryPolicy
}

// DefaultConfig returns an embedded sqlite configuration suitable for
// local development, matching AGENTMEM_DB_PATH's documented default.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendEmbedded,
		EmbeddedPath: "agentmem.db",
		Pool:         database.DefaultPoolConfig(),
		AutoMigrate:  true,
		RetryPolicy:  DefaultRetryPolicy(),
	}
}

// Bundle is the set of repositories the factory hands back, one per
// §4.2's enumerated store plus the five memory-type stores.
type Bundle struct {
	DB *gorm.DB

	Users         Repository[User]
	Organizations Repository[Organization]
	Agents        Repository[Agent]
	Messages      Repository[Message]
	Tools         Repository[Tool]
	ApiKeys       Repository[ApiKey]
	Memories      Repository[MemoryRow]
	Blocks        Repository[Block]
	Associations  Repository[Association]

	Episodic   Repository[EpisodicEventRow]
	Semantic   Repository[SemanticMemoryRow]
	Procedural Repository[ProceduralMemoryRow]
	Core       Repository[CoreMemoryRow]
	Working    Repository[WorkingMemoryRow]

	MergeHistory       Repository[MergeHistoryRow]
	RouterArms         Repository[RouterArmRow]
	RouterPerformance  Repository[RouterPerformanceRow]
	LearningFeedback   Repository[LearningFeedbackRow]

	Pool *database.PoolManager
}

// New builds the repository bundle for cfg, running migrations first
// when cfg.AutoMigrate is set. Migration failure is fatal and the
// returned error wraps the underlying cause; the embedded
// golang-migrate-backed runner only ever applies idempotent DDL, so a
// failed run leaves the database re-runnable without manual repair.
func New(cfg Config, logger *zap.Logger) (*Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialectType, gormDialector, err := dialectFor(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := runMigrations(dialectType, cfg); err != nil {
			return nil, errs.New(errs.CodeConfig, "migration failed").WithCause(err).WithOperation("storage.New")
		}
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{})
	if err != nil {
		return nil, errs.New(errs.CodeStorage, "failed to open database").WithCause(err)
	}

	poolMgr, err := database.NewPoolManager(db, cfg.Pool, logger)
	if err != nil {
		return nil, errs.New(errs.CodeStorage, "failed to configure pool").WithCause(err)
	}

	retry := cfg.RetryPolicy
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}

	return &Bundle{
		DB:            db,
		Users:         NewGormRepository[User](db, retry, logger),
		Organizations: NewGormRepository[Organization](db, retry, logger),
		Agents:        NewGormRepository[Agent](db, retry, logger),
		Messages:      NewGormRepository[Message](db, retry, logger),
		Tools:         NewGormRepository[Tool](db, retry, logger),
		ApiKeys:       NewGormRepository[ApiKey](db, retry, logger),
		Memories:      NewGormRepository[MemoryRow](db, retry, logger),
		Blocks:        NewGormRepository[Block](db, retry, logger),
		Associations:  NewGormRepository[Association](db, retry, logger),

		Episodic:   NewGormRepository[EpisodicEventRow](db, retry, logger),
		Semantic:   NewGormRepository[SemanticMemoryRow](db, retry, logger),
		Procedural: NewGormRepository[ProceduralMemoryRow](db, retry, logger),
		Core:       NewGormRepository[CoreMemoryRow](db, retry, logger),
		Working:    NewGormRepository[WorkingMemoryRow](db, retry, logger),

		MergeHistory:      NewGormRepository[MergeHistoryRow](db, retry, logger),
		RouterArms:        NewGormRepository[RouterArmRow](db, retry, logger),
		RouterPerformance: NewGormRepository[RouterPerformanceRow](db, retry, logger),
		LearningFeedback:  NewGormRepository[LearningFeedbackRow](db, retry, logger),

		Pool: poolMgr,
	}, nil
}

func dialectFor(cfg Config) (migration.DatabaseType, gorm.Dialector, error) {
	switch cfg.Backend {
	case BackendEmbedded:
		path := cfg.EmbeddedPath
		if path == "" {
			path = "agentmem.db"
		}
		return migration.DatabaseTypeSQLite, sqlite.Open(path), nil
	case BackendServer:
		url := cfg.DatabaseURL
		switch {
		case strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://"):
			return migration.DatabaseTypePostgres, postgres.Open(url), nil
		case strings.Contains(url, "@tcp(") || strings.HasPrefix(url, "mysql://"):
			return migration.DatabaseTypeMySQL, mysql.Open(strings.TrimPrefix(url, "mysql://")), nil
		default:
			return "", nil, errs.New(errs.CodeConfig, fmt.Sprintf("cannot infer server SQL dialect from DATABASE_URL %q", url))
		}
	default:
		return "", nil, errs.New(errs.CodeConfig, fmt.Sprintf("unknown backend kind %q", cfg.Backend))
	}
}

func runMigrations(dbType migration.DatabaseType, cfg Config) error {
	url := cfg.DatabaseURL
	if cfg.Backend == BackendEmbedded {
		path := cfg.EmbeddedPath
		if path == "" {
			path = "agentmem.db"
		}
		url = path
	}

	m, err := migration.NewMigrator(&migration.Config{
		DatabaseType: dbType,
		DatabaseURL:  url,
		LockTimeout:  15 * time.Second,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Up(context.Background())
}
