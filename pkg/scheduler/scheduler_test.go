package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_Scheduler(t *testing.T) {
	t.Run("Should run jobs on their interval until cancelled", func(t *testing.T) {
		s := NewScheduler(zap.NewNop())
		var fast, failing atomic.Int32
		s.Add(&Job{Name: "fast", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
			fast.Add(1)
			return nil
		}})
		s.Add(&Job{Name: "failing", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
			failing.Add(1)
			return errors.New("boom")
		}})

		ctx, cancel := context.WithCancel(context.Background())
		s.Start(ctx)
		assert.Eventually(t, func() bool {
			return fast.Load() >= 3 && failing.Load() >= 3
		}, time.Second, 5*time.Millisecond)
		cancel()
		s.Wait()

		stopped := fast.Load()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, stopped, fast.Load())
	})
	t.Run("Should run immediately when asked to", func(t *testing.T) {
		s := NewScheduler(zap.NewNop())
		var runs atomic.Int32
		s.Add(&Job{Name: "startup", Interval: time.Hour, RunOnStart: true, Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		}})

		ctx, cancel := context.WithCancel(context.Background())
		s.Start(ctx)
		assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
		cancel()
		s.Wait()
	})
	t.Run("Should keep running after a job panics", func(t *testing.T) {
		s := NewScheduler(zap.NewNop())
		var runs atomic.Int32
		s.Add(&Job{Name: "panics", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
			runs.Add(1)
			panic("unexpected")
		}})

		ctx, cancel := context.WithCancel(context.Background())
		s.Start(ctx)
		assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
		cancel()
		s.Wait()
	})
	t.Run("Should ignore jobs without an interval", func(t *testing.T) {
		s := NewScheduler(zap.NewNop())
		s.Add(&Job{Name: "disabled", Run: func(ctx context.Context) error { return nil }})
		assert.Len(t, s.Jobs(), 0)
	})
}
