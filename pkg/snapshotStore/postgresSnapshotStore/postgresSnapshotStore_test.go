package postgresSnapshotStore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hedgefund-labs/fund-settler/internal/tests"
	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (
	*gorm.DB,
	*zap.Logger,
	error,
) {
	cfg := tests.GetConfig()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	grm, err := tests.GetTestDatabase(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	return grm, l, nil
}

func Test_PostgresSnapshotStore(t *testing.T) {
	grm, l, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	defer tests.TeardownTestDatabase(grm)

	store := NewPostgresSnapshotStore(grm, l)
	ctx := context.Background()

	date := time.Date(2025, 10, 1, 12, 30, 15, 987654321, time.UTC)
	normalized := snapshotStore.NormalizeDate(date)

	t.Run("Should create a snapshot with accounts and a normalized date", func(t *testing.T) {
		snapshot, err := store.UpsertSnapshot(ctx, date, snapshotStore.SnapshotState_UnlockStarted, map[string]string{
			"account_b": "300",
			"account_a": "100.5",
		}, true, nil)
		require.NoError(t, err)
		assert.True(t, normalized.Equal(snapshot.Date))
		assert.Equal(t, snapshotStore.SnapshotState_UnlockStarted, snapshot.State)
		assert.Nil(t, snapshot.ClaimNftId)

		found, err := store.GetSnapshot(ctx, date.Add(-300*time.Millisecond))
		require.NoError(t, err)
		assert.True(t, normalized.Equal(found.Date))

		_, err = store.GetSnapshot(ctx, date.Add(300*time.Millisecond))
		assert.ErrorIs(t, err, snapshotStore.ErrSnapshotNotFound)

		accounts, err := store.GetSnapshotAccounts(ctx, date, nil)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "account_a", accounts[0].Account)
		assert.Equal(t, "100.5", accounts[0].LsuAmount)
		assert.False(t, accounts[0].FundUnitsSent)
	})

	t.Run("Should keep accounts when not updating them", func(t *testing.T) {
		snapshot, err := store.UpsertSnapshot(ctx, date, snapshotStore.SnapshotState_UnstakeStarted, map[string]string{}, false, snapshotStore.StringPtr("{claim-1}"))
		require.NoError(t, err)
		assert.Equal(t, snapshotStore.SnapshotState_UnstakeStarted, snapshot.State)
		require.NotNil(t, snapshot.ClaimNftId)
		assert.Equal(t, "{claim-1}", *snapshot.ClaimNftId)

		accounts, err := store.GetSnapshotAccounts(ctx, date, nil)
		require.NoError(t, err)
		assert.Len(t, accounts, 2)
	})

	t.Run("Should keep the claim id when a later update omits it", func(t *testing.T) {
		_, err := store.UpsertSnapshot(ctx, date, snapshotStore.SnapshotState_Unstaked, nil, false, nil)
		require.NoError(t, err)

		found, err := store.GetSnapshot(ctx, date)
		require.NoError(t, err)
		require.NotNil(t, found.ClaimNftId)
		assert.Equal(t, "{claim-1}", *found.ClaimNftId)
		assert.Equal(t, snapshotStore.SnapshotState_Unstaked, found.State)
	})

	t.Run("Should reject a backwards state transition", func(t *testing.T) {
		_, err := store.UpsertSnapshot(ctx, date, snapshotStore.SnapshotState_UnlockStarted, nil, false, nil)
		assert.ErrorIs(t, err, snapshotStore.ErrInvalidStateTransition)

		found, err := store.GetSnapshot(ctx, date)
		require.NoError(t, err)
		assert.Equal(t, snapshotStore.SnapshotState_Unstaked, found.State)
	})

	t.Run("Should reject an unknown state", func(t *testing.T) {
		_, err := store.UpsertSnapshot(ctx, date, snapshotStore.SnapshotState("paused"), nil, false, nil)
		assert.ErrorIs(t, err, snapshotStore.ErrInvalidState)
	})

	t.Run("Should reject invalid amounts without writing anything", func(t *testing.T) {
		other := date.Add(time.Hour)
		_, err := store.UpsertSnapshot(ctx, other, snapshotStore.SnapshotState_UnlockStarted, map[string]string{"account_x": "abc"}, true, nil)
		assert.NotNil(t, err)

		_, err = store.GetSnapshot(ctx, other)
		assert.ErrorIs(t, err, snapshotStore.ErrSnapshotNotFound)
	})

	t.Run("Should mark fund units sent and filter pending accounts", func(t *testing.T) {
		err := store.MarkFundUnitsSent(ctx, date, []string{"account_a"})
		require.NoError(t, err)

		pending, err := store.GetSnapshotAccounts(ctx, date, snapshotStore.BoolPtr(false))
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "account_b", pending[0].Account)

		sent, err := store.GetSnapshotAccounts(ctx, date, snapshotStore.BoolPtr(true))
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, "account_a", sent[0].Account)
	})

	t.Run("Should roll back marking when an address is unknown", func(t *testing.T) {
		err := store.MarkFundUnitsSent(ctx, date, []string{"account_b", "account_unknown"})
		assert.ErrorIs(t, err, snapshotStore.ErrAccountCountMismatch)

		pending, err := store.GetSnapshotAccounts(ctx, date, snapshotStore.BoolPtr(false))
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("Should treat an empty mark request as a no-op", func(t *testing.T) {
		assert.Nil(t, store.MarkFundUnitsSent(ctx, date, nil))
	})

	t.Run("Should delete a snapshot together with its accounts", func(t *testing.T) {
		deleted, err := store.DeleteSnapshot(ctx, date)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		_, err = store.GetSnapshot(ctx, date)
		assert.ErrorIs(t, err, snapshotStore.ErrSnapshotNotFound)

		accounts, err := store.GetSnapshotAccounts(ctx, date, nil)
		require.NoError(t, err)
		assert.Len(t, accounts, 0)

		_, err = store.DeleteSnapshot(ctx, date)
		assert.ErrorIs(t, err, snapshotStore.ErrSnapshotNotFound)
	})

	t.Run("Should ping the database", func(t *testing.T) {
		assert.Nil(t, store.Ping(ctx))
	})
}

func Test_PostgresSnapshotStore_Queries(t *testing.T) {
	grm, l, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	defer tests.TeardownTestDatabase(grm)

	store := NewPostgresSnapshotStore(grm, l)
	ctx := context.Background()

	now := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		date  time.Time
		state snapshotStore.SnapshotState
		claim *string
	}{
		{now.AddDate(0, 0, -40), snapshotStore.SnapshotState_UnlockStarted, nil},
		{now.AddDate(0, 0, -20), snapshotStore.SnapshotState_UnlockStarted, nil},
		{now.AddDate(0, 0, -10), snapshotStore.SnapshotState_UnlockStarted, nil},
		{now.AddDate(0, 0, -5), snapshotStore.SnapshotState_UnstakeStarted, snapshotStore.StringPtr("{claim-5}")},
		{now.AddDate(0, 0, -1), snapshotStore.SnapshotState_Distributed, snapshotStore.StringPtr("{claim-1}")},
	}
	for _, s := range seed {
		_, err := store.UpsertSnapshot(ctx, s.date, s.state, map[string]string{"account_a": "10"}, true, s.claim)
		require.NoError(t, err)
	}

	t.Run("Should return the oldest snapshot inside the lookback window", func(t *testing.T) {
		found, err := store.GetOldestSnapshotInState(ctx, snapshotStore.SnapshotState_UnlockStarted, 29*24*time.Hour, now)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, now.AddDate(0, 0, -20).Equal(found.Date))
	})

	t.Run("Should return nil when nothing matches", func(t *testing.T) {
		found, err := store.GetOldestSnapshotInState(ctx, snapshotStore.SnapshotState_Unstaked, 29*24*time.Hour, now)
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = store.GetOldestSnapshotInState(ctx, snapshotStore.SnapshotState_UnstakeStarted, 2*24*time.Hour, now)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Should list snapshots newest first with filters", func(t *testing.T) {
		all, err := store.ListSnapshots(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.True(t, now.AddDate(0, 0, -1).Equal(all[0].Date))

		before := now.AddDate(0, 0, -6)
		older, err := store.ListSnapshots(ctx, &snapshotStore.ListSnapshotsFilter{BeforeDate: &before})
		require.NoError(t, err)
		assert.Len(t, older, 3)

		unclaimed, err := store.ListSnapshots(ctx, &snapshotStore.ListSnapshotsFilter{ClaimNftIdNull: true})
		require.NoError(t, err)
		assert.Len(t, unclaimed, 3)

		claimed, err := store.ListSnapshots(ctx, &snapshotStore.ListSnapshotsFilter{ClaimNftId: "{claim-5}"})
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, snapshotStore.SnapshotState_UnstakeStarted, claimed[0].State)

		limited, err := store.ListSnapshots(ctx, &snapshotStore.ListSnapshotsFilter{State: snapshotStore.SnapshotState_UnlockStarted, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func Test_ExportSnapshotAccounts(t *testing.T) {
	grm, l, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	defer tests.TeardownTestDatabase(grm)

	store := NewPostgresSnapshotStore(grm, l)
	ctx := context.Background()

	t.Run("Should fail when there is no snapshot", func(t *testing.T) {
		var buf bytes.Buffer
		_, _, err := snapshotStore.ExportSnapshotAccounts(ctx, store, nil, &buf)
		assert.ErrorIs(t, err, snapshotStore.ErrSnapshotNotFound)
	})

	first := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.UpsertSnapshot(ctx, first, snapshotStore.SnapshotState_UnlockStarted, map[string]string{"account_z": "1"}, true, nil)
	require.NoError(t, err)
	_, err = store.UpsertSnapshot(ctx, latest, snapshotStore.SnapshotState_UnlockStarted, map[string]string{
		"account_b": "300",
		"account_a": "100.5",
	}, true, nil)
	require.NoError(t, err)
	require.NoError(t, store.MarkFundUnitsSent(ctx, latest, []string{"account_a"}))

	t.Run("Should export the most recent snapshot by default", func(t *testing.T) {
		var buf bytes.Buffer
		snapshot, count, err := snapshotStore.ExportSnapshotAccounts(ctx, store, nil, &buf)
		require.NoError(t, err)
		assert.True(t, latest.Equal(snapshot.Date))
		assert.Equal(t, 2, count)
		assert.Equal(t, "date,account,lsu_amount,fund_units_sent\n"+
			"2025-10-01T00:00:00Z,account_a,100.5,true\n"+
			"2025-10-01T00:00:00Z,account_b,300,false\n", buf.String())
	})

	t.Run("Should export the requested snapshot", func(t *testing.T) {
		var buf bytes.Buffer
		_, count, err := snapshotStore.ExportSnapshotAccounts(ctx, store, &first, &buf)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Contains(t, buf.String(), "account_z,1,false")
	})
}
