// Package snapshotStore defines the persisted record of depositor balances captured for a settlement cycle.
package snapshotStore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type SnapshotState string

const (
	SnapshotState_UnlockStarted  SnapshotState = "unlock_started"
	SnapshotState_UnstakeStarted SnapshotState = "unstake_started"
	SnapshotState_Unstaked       SnapshotState = "unstaked"
	SnapshotState_Distributed    SnapshotState = "distributed"
)

var stateOrder = map[SnapshotState]int{
	SnapshotState_UnlockStarted:  0,
	SnapshotState_UnstakeStarted: 1,
	SnapshotState_Unstaked:       2,
	SnapshotState_Distributed:    3,
}

func (s SnapshotState) String() string {
	return string(s)
}

func (s SnapshotState) IsValid() bool {
	_, ok := stateOrder[s]
	return ok
}

// CanTransitionTo reports whether next is the same state or a later one.
func (s SnapshotState) CanTransitionTo(next SnapshotState) bool {
	cur, ok := stateOrder[s]
	if !ok {
		return false
	}
	n, ok := stateOrder[next]
	if !ok {
		return false
	}
	return n >= cur
}

var (
	ErrSnapshotNotFound       = errors.New("snapshot not found")
	ErrInvalidStateTransition = errors.New("invalid snapshot state transition")
	ErrInvalidState           = errors.New("invalid snapshot state")
	ErrAccountCountMismatch   = errors.New("updated account count does not match request")
)

type Snapshot struct {
	Date       time.Time `gorm:"primaryKey"`
	State      SnapshotState
	ClaimNftId *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Snapshot) TableName() string {
	return "snapshots"
}

type SnapshotAccount struct {
	Date          time.Time `gorm:"primaryKey"`
	Account       string    `gorm:"primaryKey"`
	LsuAmount     string
	FundUnitsSent bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (SnapshotAccount) TableName() string {
	return "snapshot_accounts"
}

// ListSnapshotsFilter narrows ListSnapshots. Zero values are ignored.
type ListSnapshotsFilter struct {
	BeforeDate     *time.Time
	DaysAgo        int
	State          SnapshotState
	ClaimNftId     string
	ClaimNftIdNull bool
	Limit          int
}

type SnapshotStore interface {
	// UpsertSnapshot creates or updates the snapshot for date. When updateAccounts is true the
	// stored accounts are replaced with accounts. A nil claimNftId keeps the stored value.
	UpsertSnapshot(ctx context.Context, date time.Time, state SnapshotState, accounts map[string]string, updateAccounts bool, claimNftId *string) (*Snapshot, error)
	GetSnapshot(ctx context.Context, date time.Time) (*Snapshot, error)
	// GetOldestSnapshotInState returns the oldest snapshot in state no older than lookback, or nil.
	GetOldestSnapshotInState(ctx context.Context, state SnapshotState, lookback time.Duration, now time.Time) (*Snapshot, error)
	ListSnapshots(ctx context.Context, filter *ListSnapshotsFilter) ([]*Snapshot, error)
	// GetSnapshotAccounts returns accounts of the snapshot, optionally filtered on fund_units_sent.
	GetSnapshotAccounts(ctx context.Context, date time.Time, fundUnitsSent *bool) ([]*SnapshotAccount, error)
	MarkFundUnitsSent(ctx context.Context, date time.Time, addresses []string) error
	DeleteSnapshot(ctx context.Context, date time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// NormalizeDate truncates t to whole seconds in UTC. Snapshot dates are always stored normalized.
func NormalizeDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ParseSnapshotDate accepts RFC3339 timestamps and plain dates.
func ParseSnapshotDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized snapshot date '%s'", s)
}

func BoolPtr(b bool) *bool {
	return &b
}

func StringPtr(s string) *string {
	return &s
}
