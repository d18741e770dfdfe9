package snapshotStore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_SnapshotState(t *testing.T) {
	t.Run("Should only move forward", func(t *testing.T) {
		assert.True(t, SnapshotState_UnlockStarted.CanTransitionTo(SnapshotState_UnstakeStarted))
		assert.True(t, SnapshotState_UnstakeStarted.CanTransitionTo(SnapshotState_Distributed))
		assert.True(t, SnapshotState_Unstaked.CanTransitionTo(SnapshotState_Unstaked))
		assert.False(t, SnapshotState_Distributed.CanTransitionTo(SnapshotState_Unstaked))
		assert.False(t, SnapshotState_UnstakeStarted.CanTransitionTo(SnapshotState_UnlockStarted))
	})
	t.Run("Should reject unknown states", func(t *testing.T) {
		assert.False(t, SnapshotState("paused").IsValid())
		assert.False(t, SnapshotState("paused").CanTransitionTo(SnapshotState_Distributed))
		assert.False(t, SnapshotState_UnlockStarted.CanTransitionTo(SnapshotState("paused")))
	})
}

func Test_NormalizeDate(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2025, 10, 1, 14, 0, 0, 999999999, loc)

	out := NormalizeDate(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 0, out.Nanosecond())
	assert.Equal(t, 12, out.Hour())
}

func Test_ParseSnapshotDate(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"2025-10-01T12:00:00.5Z", time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)},
		{"2025-10-01T14:00:00+02:00", time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)},
		{"2025-10-01 12:00:00", time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)},
		{"2025-10-01", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			parsed, err := ParseSnapshotDate(tt.input)
			assert.Nil(t, err)
			assert.True(t, tt.expected.Equal(parsed))
		})
	}

	_, err := ParseSnapshotDate("yesterday")
	assert.NotNil(t, err)
}
