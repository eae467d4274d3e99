package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	// 创建 mock DB
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	// 创建 GORM DB
	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	return mockDB, mock, gormDB
}

func TestNewPoolManager(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	config := PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	manager, err := NewPoolManager(gormDB, config, logger)
	require.NoError(t, err)

	assert.NotNil(t, manager)
	assert.NotNil(t, manager.db)
	assert.NotNil(t, manager.logger)
	assert.Equal(t, config, manager.config)
}

func TestPoolManager_GetDB(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	config := PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}

	manager, err := NewPoolManager(gormDB, config, logger)
	require.NoError(t, err)

	db := manager.DB()

	assert.NotNil(t, db)
	assert.Equal(t, gormDB, db)
}

func TestPoolManager_HealthCheck(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	config := PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}

	manager, err := NewPoolManager(gormDB, config, logger)
	require.NoError(t, err)

	ctx := context.Background()

	mock.ExpectPing()

	err = manager.Ping(ctx)
	assert.NoError(t, err)

	err = mock.ExpectationsWereMet()
	assert.NoError(t, err)
}

func TestPoolManager_HealthCheckFailed(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	config := PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}

	manager, err := NewPoolManager(gormDB, config, logger)
	require.NoError(t, err)

	ctx := context.Background()

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	err = manager.Ping(ctx)
	assert.Error(t, err)
}

func TestPoolManager_PingAfterClose(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)

	logger := zap.NewNop()
	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, logger)
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, manager.Close())

	err = manager.Ping(context.Background())
	assert.Error(t, err, "a closed pool must refuse Ping rather than touch a closed *sql.DB")
}

func TestPoolManager_GetStats(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	config := PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}

	manager, err := NewPoolManager(gormDB, config, logger)
	require.NoError(t, err)

	stats := manager.GetStats()
	assert.GreaterOrEqual(t, stats.MaxOpenConnections, 0)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.GreaterOrEqual(t, stats.InUse, 0)
	assert.GreaterOrEqual(t, stats.Idle, 0)
}

func TestPoolManager_WithTransaction(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, logger)
	require.NoError(t, err)

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = manager.WithTransaction(ctx, func(tx *gorm.DB) error { return nil })
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRollback(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, logger)
	require.NoError(t, err)

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = manager.WithTransaction(ctx, func(tx *gorm.DB) error { return assert.AnError })
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPoolManager_WithTransactionRetry_TransientRecovers exercises §4.2's
// "retried under a configurable retry policy (default: 3 attempts,
// exponential backoff) for transient errors only" against a deadlock on
// the first attempt and success on the second.
func TestPoolManager_WithTransactionRetry_TransientRecovers(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, logger)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	err = manager.WithTransactionRetry(context.Background(), policy, func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			return errors.New("deadlock detected")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPoolManager_WithTransactionRetry_NonTransientFailsFast checks that
// a non-transient error (a plain business-logic failure, not a driver
// error) is never retried.
func TestPoolManager_WithTransactionRetry_NonTransientFailsFast(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, logger)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err = manager.WithTransactionRetry(context.Background(), DefaultTransactionRetryPolicy(), func(tx *gorm.DB) error {
		attempts++
		return errors.New("memory not found")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "a non-transient failure must not be retried")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_Close(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)

	logger := zap.NewNop()
	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, logger)
	require.NoError(t, err)

	mock.ExpectClose()

	err = manager.Close()
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Close is idempotent.
	assert.NoError(t, manager.Close())
}

func TestPoolManager_StartHealthCheck(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	logger := zap.NewNop()
	config := PoolConfig{
		MaxOpenConns:        10,
		MaxIdleConns:        5,
		HealthCheckInterval: 20 * time.Millisecond,
	}

	manager, err := NewPoolManager(gormDB, config, logger)
	require.NoError(t, err)

	// healthCheckLoop runs in the background off NewPoolManager; give it
	// room for a few ticks and accept any number of pings (timing isn't
	// deterministic under test), the same way the teacher's suite treats
	// ticker-driven background loops.
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 5; i++ {
		mock.ExpectPing()
	}

	time.Sleep(120 * time.Millisecond)
}

// testDBConfig is a minimal databaseConfig double standing in for
// config.DatabaseConfig without this package importing config (database
// sits below config in the dependency graph).
type testDBConfig struct {
	maxOpen, maxIdle     int
	maxLifetime, maxIdle2 time.Duration
}

func (c testDBConfig) PoolTuning() (int, int, time.Duration, time.Duration) {
	return c.maxOpen, c.maxIdle, c.maxLifetime, c.maxIdle2
}

func TestPoolConfigFromDatabaseConfig(t *testing.T) {
	cfg := PoolConfigFromDatabaseConfig(testDBConfig{maxOpen: 50, maxIdle: 5, maxLifetime: 2 * time.Hour, maxIdle2: 15 * time.Minute})

	assert.Equal(t, 50, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 2*time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 15*time.Minute, cfg.ConnMaxIdleTime)
	// HealthCheckInterval isn't one of config.DatabaseConfig's fields;
	// it keeps DefaultPoolConfig's cadence.
	assert.Equal(t, DefaultPoolConfig().HealthCheckInterval, cfg.HealthCheckInterval)
}

func TestPoolConfigFromDatabaseConfig_ZeroFallsBackToDefaults(t *testing.T) {
	cfg := PoolConfigFromDatabaseConfig(testDBConfig{})
	assert.Equal(t, DefaultPoolConfig(), cfg)
}
