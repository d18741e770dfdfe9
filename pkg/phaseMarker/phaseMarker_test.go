package phaseMarker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hedgefund-labs/fund-settler/internal/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runTrackerSuite(t *testing.T, newTracker func() Tracker) {
	ctx := context.Background()

	t.Run("Should start at the initial phase", func(t *testing.T) {
		tracker := newTracker()
		phase, err := tracker.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, Phase_Step3End, phase)
	})

	t.Run("Should swap only from the expected phase", func(t *testing.T) {
		tracker := newTracker()

		swapped, err := tracker.CompareAndSwap(ctx, Phase_Step1End, Phase_Step2Start)
		require.NoError(t, err)
		assert.False(t, swapped)

		swapped, err = tracker.CompareAndSwap(ctx, Phase_Step3End, Phase_Step1Start)
		require.NoError(t, err)
		assert.True(t, swapped)

		phase, err := tracker.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, Phase_Step1Start, phase)
	})

	t.Run("Should reject unknown phases", func(t *testing.T) {
		tracker := newTracker()
		_, err := tracker.CompareAndSwap(ctx, Phase_Step3End, Phase("STEP4_START"))
		assert.NotNil(t, err)
		assert.NotNil(t, tracker.Set(ctx, Phase("")))
	})

	t.Run("Should overwrite with Set", func(t *testing.T) {
		tracker := newTracker()
		require.NoError(t, tracker.Set(ctx, Phase_Step2End))
		phase, err := tracker.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, Phase_Step2End, phase)
	})

	t.Run("Should let exactly one concurrent claim win", func(t *testing.T) {
		tracker := newTracker()

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				swapped, err := tracker.CompareAndSwap(ctx, Phase_Step3End, Phase_Step1Start)
				if err == nil && swapped {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})
}

func Test_InMemoryTracker(t *testing.T) {
	runTrackerSuite(t, func() Tracker {
		return NewInMemoryTracker()
	})
}

func Test_PostgresTracker(t *testing.T) {
	cfg := tests.GetConfig()
	l := zap.NewNop()

	runTrackerSuite(t, func() Tracker {
		grm, err := tests.GetTestDatabase(cfg, l)
		require.NoError(t, err)
		t.Cleanup(func() { tests.TeardownTestDatabase(grm) })
		return NewPostgresTracker(grm, "", l)
	})

	t.Run("Should survive a new tracker on the same database", func(t *testing.T) {
		grm, err := tests.GetTestDatabase(cfg, l)
		require.NoError(t, err)
		defer tests.TeardownTestDatabase(grm)

		ctx := context.Background()
		first := NewPostgresTracker(grm, "settlement", l)
		_, err = first.CompareAndSwap(ctx, Phase_Step3End, Phase_Step1Start)
		require.NoError(t, err)

		second := NewPostgresTracker(grm, "settlement", l)
		phase, err := second.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, Phase_Step1Start, phase)
	})
}
