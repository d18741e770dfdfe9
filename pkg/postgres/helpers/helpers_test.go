package helpers

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_IsTransientError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("query failed: %w", driver.ErrBadConn), true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pq admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"pq syntax error", &pq.Error{Code: "42601"}, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"plain error", errors.New("record not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransientError(tt.err))
		})
	}
}

func Test_WithRetry(t *testing.T) {
	l := zap.NewNop()
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("Should retry transient errors until success", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), cfg, l, "test", func() error {
			calls++
			if calls < 3 {
				return driver.ErrBadConn
			}
			return nil
		})
		assert.Nil(t, err)
		assert.Equal(t, 3, calls)
	})
	t.Run("Should give up after the max attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), cfg, l, "test", func() error {
			calls++
			return driver.ErrBadConn
		})
		assert.ErrorIs(t, err, driver.ErrBadConn)
		assert.Equal(t, 3, calls)
	})
	t.Run("Should not retry permanent errors", func(t *testing.T) {
		calls := 0
		permanent := errors.New("constraint violated")
		err := WithRetry(context.Background(), cfg, l, "test", func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})
	t.Run("Should stop when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, RetryConfig{MaxAttempts: 3, BaseDelay: time.Second}, l, "test", func() error {
			return driver.ErrBadConn
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
