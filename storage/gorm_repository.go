package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/agentmem/agentmem/errs"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository is the one generic implementation of Repository[T] both
// backends (embedded and server) instantiate — "one interface implemented
// twice", never inheritance, per §9's polymorphism note.
type GormRepository[T Identifiable] struct {
	db     *gorm.DB
	retry  RetryPolicy
	logger *zap.Logger
}

// NewGormRepository builds a repository over db for row type T.
func NewGormRepository[T Identifiable](db *gorm.DB, retry RetryPolicy, logger *zap.Logger) *GormRepository[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormRepository[T]{db: db, retry: retry, logger: logger.With(zap.String("component", "repository"))}
}

// Create inserts item and returns the round-tripped row so callers
// observe server-side defaults.
func (r *GormRepository[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return zero, wrapStorageErr("create", err)
	}
	return item, nil
}

// Update persists changes to item and returns the round-tripped row.
func (r *GormRepository[T]) Update(ctx context.Context, item T) (T, error) {
	var zero T
	if err := r.db.WithContext(ctx).Save(&item).Error; err != nil {
		return zero, wrapStorageErr("update", err)
	}
	return item, nil
}

// FindByID returns the row for id, excluding soft-deleted rows.
func (r *GormRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var out T
	err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, errs.New(errs.CodeNotFound, fmt.Sprintf("no row with id %q", id)).WithOperation("FindByID")
	}
	if err != nil {
		return out, wrapStorageErr("find_by_id", err)
	}
	return out, nil
}

// List returns rows honoring opts.Limit/Offset, excluding soft-deleted
// rows unless opts.IncludeDeleted is set.
func (r *GormRepository[T]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	var out []T
	q := r.db.WithContext(ctx)
	if !opts.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapStorageErr("list", err)
	}
	return out, nil
}

// Delete hard-deletes the row by primary key. Soft-delete semantics are
// the caller's responsibility, implemented by Update-ing IsDeleted=true.
func (r *GormRepository[T]) Delete(ctx context.Context, id string) error {
	var zero T
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&zero).Error; err != nil {
		return wrapStorageErr("delete", err)
	}
	return nil
}

// BatchCreate issues one multi-row insert per chunk of at most
// BatchChunkSize items, with ON CONFLICT (id) DO NOTHING, retrying each
// chunk under r.retry for transient errors only.
func (r *GormRepository[T]) BatchCreate(ctx context.Context, items []T) (BatchResult, error) {
	result := BatchResult{}
	for start := 0; start < len(items); start += BatchChunkSize {
		end := start + BatchChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		affected, err := r.insertChunkWithRetry(ctx, chunk)
		if err != nil {
			return result, err
		}
		result.RowsAffected += affected
		result.Chunks++
	}
	return result, nil
}

func (r *GormRepository[T]) insertChunkWithRetry(ctx context.Context, chunk []T) (int64, error) {
	var lastErr error
	delay := r.retry.InitialDelay
	attempts := r.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&chunk)
		if tx.Error == nil {
			return tx.RowsAffected, nil
		}
		lastErr = tx.Error
		if !isTransient(tx.Error) || attempt == attempts {
			break
		}
		wait := delay
		if r.retry.MaxDelay > 0 && wait > r.retry.MaxDelay {
			wait = r.retry.MaxDelay
		}
		jitter := time.Duration(rand.Int63n(int64(wait/2 + 1)))
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(wait + jitter):
		}
		if r.retry.Multiplier > 1 {
			delay = time.Duration(math.Min(float64(r.retry.MaxDelay), float64(delay)*r.retry.Multiplier))
		}
	}
	return 0, wrapStorageErr("batch_create", lastErr).WithRetryable(isTransient(lastErr))
}

// isTransient classifies an underlying driver error as retryable. GORM
// does not give us a portable transient/non-transient taxonomy across
// sqlite/postgres/mysql, so we key off gorm's own sentinel for a lost
// connection plus context deadline — anything else (constraint
// violations, type errors) fails fast, per §5/§7's "non-transient errors
// fail fast".
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

func wrapStorageErr(op string, err error) *errs.Error {
	return errs.New(errs.CodeStorage, err.Error()).WithOperation(op).WithCause(err)
}
