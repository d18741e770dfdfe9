package helpers

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WrapTxAndCommit executes fn within a transaction. When tx is nil a new transaction is
// opened and committed on success or rolled back on error; an existing tx is used as-is
// and left for the caller to finish.
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	exists := tx != nil

	if !exists {
		tx = db.Begin()
		if tx.Error != nil {
			var zero T
			return zero, tx.Error
		}
	}

	res, err := fn(tx)

	if err != nil && !exists {
		tx.Rollback()
	}
	if err == nil && !exists {
		if cErr := tx.Commit().Error; cErr != nil {
			return res, cErr
		}
	}
	return res, err
}

// RetryConfig bounds the exponential backoff used for transient database failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    time.Second,
}

// IsTransientError reports whether err is a connectivity or concurrency failure
// that is worth retrying as-is.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientSqlState(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return isTransientSqlState(string(pqErr.Code))
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "database is locked")
}

func isTransientSqlState(code string) bool {
	// class 08: connection exception
	if strings.HasPrefix(code, "08") {
		return true
	}
	switch code {
	case "40001", "40P01", "57P01", "57P03":
		return true
	}
	return false
}

// WithRetry runs fn, retrying transient failures with exponential backoff.
// Non-transient errors are returned immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, l *zap.Logger, operation string, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.BaseDelay

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsTransientError(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		l.Sugar().Warnw("Transient database error, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}

func isSqlite(grm *gorm.DB) bool {
	return grm.Dialector.Name() == "sqlite"
}

// TimestampColumnType returns the column type used for timestamps on the connected dialect.
func TimestampColumnType(grm *gorm.DB) string {
	if isSqlite(grm) {
		return "datetime"
	}
	return "timestamp with time zone"
}

// NumericColumnType returns the column type used for arbitrary precision amounts.
// sqlite would coerce numerics to REAL, so amounts are kept as text there.
func NumericColumnType(grm *gorm.DB) string {
	if isSqlite(grm) {
		return "text"
	}
	return "numeric"
}

// SerialColumn returns an auto-incrementing primary key column definition.
func SerialColumn(grm *gorm.DB, name string) string {
	if isSqlite(grm) {
		return name + " integer primary key autoincrement"
	}
	return name + " serial primary key"
}
