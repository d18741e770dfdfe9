// Package postgresSnapshotStore implements snapshotStore.SnapshotStore on top of gorm.
package postgresSnapshotStore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hedgefund-labs/fund-settler/pkg/postgres/helpers"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore"
	"github.com/hedgefund-labs/fund-settler/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const accountInsertBatchSize = 500

type PostgresSnapshotStore struct {
	Db          *gorm.DB
	Logger      *zap.Logger
	retryConfig helpers.RetryConfig
}

func NewPostgresSnapshotStore(db *gorm.DB, l *zap.Logger) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{
		Db:          db,
		Logger:      l,
		retryConfig: helpers.DefaultRetryConfig,
	}
}

func (s *PostgresSnapshotStore) withRetry(ctx context.Context, operation string, fn func() error) error {
	return helpers.WithRetry(ctx, s.retryConfig, s.Logger, operation, fn)
}

func buildAccountRows(date time.Time, accounts map[string]string, now time.Time) ([]*snapshotStore.SnapshotAccount, error) {
	addresses := make([]string, 0, len(accounts))
	for address := range accounts {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	rows := make([]*snapshotStore.SnapshotAccount, 0, len(addresses))
	for _, address := range addresses {
		amount, err := decimal.NewFromString(accounts[address])
		if err != nil {
			return nil, fmt.Errorf("invalid lsu amount '%s' for account '%s': %w", accounts[address], address, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("negative lsu amount '%s' for account '%s'", accounts[address], address)
		}
		rows = append(rows, &snapshotStore.SnapshotAccount{
			Date:          date,
			Account:       address,
			LsuAmount:     amount.String(),
			FundUnitsSent: false,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return rows, nil
}

func (s *PostgresSnapshotStore) UpsertSnapshot(
	ctx context.Context,
	date time.Time,
	state snapshotStore.SnapshotState,
	accounts map[string]string,
	updateAccounts bool,
	claimNftId *string,
) (*snapshotStore.Snapshot, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: '%s'", snapshotStore.ErrInvalidState, state)
	}
	date = snapshotStore.NormalizeDate(date)
	now := time.Now().UTC()

	var rows []*snapshotStore.SnapshotAccount
	if updateAccounts {
		var err error
		if rows, err = buildAccountRows(date, accounts, now); err != nil {
			return nil, err
		}
	}

	var snapshot *snapshotStore.Snapshot
	err := s.withRetry(ctx, "UpsertSnapshot", func() error {
		var txErr error
		snapshot, txErr = helpers.WrapTxAndCommit(func(tx *gorm.DB) (*snapshotStore.Snapshot, error) {
			existing := &snapshotStore.Snapshot{}
			res := tx.Where("date = ?", date).First(existing)
			switch {
			case res.Error == nil:
				if !existing.State.CanTransitionTo(state) {
					return nil, fmt.Errorf("%w: %s -> %s", snapshotStore.ErrInvalidStateTransition, existing.State, state)
				}
				updates := map[string]interface{}{
					"state":      state,
					"updated_at": now,
				}
				if claimNftId != nil {
					updates["claim_nft_id"] = *claimNftId
					existing.ClaimNftId = claimNftId
				}
				if res = tx.Model(&snapshotStore.Snapshot{}).Where("date = ?", date).Updates(updates); res.Error != nil {
					return nil, res.Error
				}
				existing.State = state
				existing.UpdatedAt = now
			case errors.Is(res.Error, gorm.ErrRecordNotFound):
				existing = &snapshotStore.Snapshot{
					Date:       date,
					State:      state,
					ClaimNftId: claimNftId,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if res = tx.Create(existing); res.Error != nil {
					return nil, res.Error
				}
			default:
				return nil, res.Error
			}

			if updateAccounts {
				if res = tx.Where("date = ?", date).Delete(&snapshotStore.SnapshotAccount{}); res.Error != nil {
					return nil, res.Error
				}
				if len(rows) > 0 {
					if res = tx.CreateInBatches(rows, accountInsertBatchSize); res.Error != nil {
						return nil, res.Error
					}
				}
			}
			return existing, nil
		}, s.Db.WithContext(ctx), nil)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Sugar().Debugw("Upserted snapshot",
		zap.Time("date", date),
		zap.String("state", state.String()),
		zap.Bool("updateAccounts", updateAccounts),
		zap.Int("accounts", len(rows)),
	)
	return snapshot, nil
}

func (s *PostgresSnapshotStore) GetSnapshot(ctx context.Context, date time.Time) (*snapshotStore.Snapshot, error) {
	date = snapshotStore.NormalizeDate(date)

	var snapshot *snapshotStore.Snapshot
	err := s.withRetry(ctx, "GetSnapshot", func() error {
		found := &snapshotStore.Snapshot{}
		res := s.Db.WithContext(ctx).Where("date = ?", date).First(found)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return snapshotStore.ErrSnapshotNotFound
			}
			return res.Error
		}
		snapshot = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *PostgresSnapshotStore) GetOldestSnapshotInState(
	ctx context.Context,
	state snapshotStore.SnapshotState,
	lookback time.Duration,
	now time.Time,
) (*snapshotStore.Snapshot, error) {
	cutoff := snapshotStore.NormalizeDate(now.Add(-lookback))

	var snapshot *snapshotStore.Snapshot
	err := s.withRetry(ctx, "GetOldestSnapshotInState", func() error {
		found := &snapshotStore.Snapshot{}
		res := s.Db.WithContext(ctx).
			Where("state = ? AND date >= ?", state, cutoff).
			Order("date asc").
			First(found)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				snapshot = nil
				return nil
			}
			return res.Error
		}
		snapshot = found
		return nil
	})
	return snapshot, err
}

func (s *PostgresSnapshotStore) ListSnapshots(ctx context.Context, filter *snapshotStore.ListSnapshotsFilter) ([]*snapshotStore.Snapshot, error) {
	if filter == nil {
		filter = &snapshotStore.ListSnapshotsFilter{}
	}

	snapshots := make([]*snapshotStore.Snapshot, 0)
	err := s.withRetry(ctx, "ListSnapshots", func() error {
		query := s.Db.WithContext(ctx).Model(&snapshotStore.Snapshot{})
		if filter.BeforeDate != nil {
			query = query.Where("date < ?", snapshotStore.NormalizeDate(*filter.BeforeDate))
		}
		if filter.DaysAgo > 0 {
			cutoff := snapshotStore.NormalizeDate(time.Now().AddDate(0, 0, -filter.DaysAgo))
			query = query.Where("date >= ?", cutoff)
		}
		if filter.State != "" {
			query = query.Where("state = ?", filter.State)
		}
		if filter.ClaimNftIdNull {
			query = query.Where("claim_nft_id IS NULL")
		} else if filter.ClaimNftId != "" {
			query = query.Where("claim_nft_id = ?", filter.ClaimNftId)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		found := make([]*snapshotStore.Snapshot, 0)
		if res := query.Order("date desc").Find(&found); res.Error != nil {
			return res.Error
		}
		snapshots = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *PostgresSnapshotStore) GetSnapshotAccounts(ctx context.Context, date time.Time, fundUnitsSent *bool) ([]*snapshotStore.SnapshotAccount, error) {
	date = snapshotStore.NormalizeDate(date)

	accounts := make([]*snapshotStore.SnapshotAccount, 0)
	err := s.withRetry(ctx, "GetSnapshotAccounts", func() error {
		query := s.Db.WithContext(ctx).Where("date = ?", date)
		if fundUnitsSent != nil {
			query = query.Where("fund_units_sent = ?", *fundUnitsSent)
		}
		found := make([]*snapshotStore.SnapshotAccount, 0)
		if res := query.Order("account asc").Find(&found); res.Error != nil {
			return res.Error
		}
		accounts = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// MarkFundUnitsSent flags the given accounts as paid in a single transaction. The whole update
// is rolled back when any address does not belong to the snapshot.
func (s *PostgresSnapshotStore) MarkFundUnitsSent(ctx context.Context, date time.Time, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	date = snapshotStore.NormalizeDate(date)

	unique := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		unique[a] = struct{}{}
	}
	deduped := make([]string, 0, len(unique))
	for a := range unique {
		deduped = append(deduped, a)
	}
	sort.Strings(deduped)

	return s.withRetry(ctx, "MarkFundUnitsSent", func() error {
		_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (int64, error) {
			var updated int64
			now := time.Now().UTC()
			for _, chunk := range utils.Chunk(deduped, accountInsertBatchSize) {
				res := tx.Model(&snapshotStore.SnapshotAccount{}).
					Where("date = ? AND account IN ?", date, chunk).
					Updates(map[string]interface{}{
						"fund_units_sent": true,
						"updated_at":      now,
					})
				if res.Error != nil {
					return 0, res.Error
				}
				updated += res.RowsAffected
			}
			if updated != int64(len(deduped)) {
				return updated, fmt.Errorf("%w: updated %d of %d", snapshotStore.ErrAccountCountMismatch, updated, len(deduped))
			}
			return updated, nil
		}, s.Db.WithContext(ctx), nil)
		return err
	})
}

// DeleteSnapshot removes the snapshot and its accounts, returning the number of accounts removed.
func (s *PostgresSnapshotStore) DeleteSnapshot(ctx context.Context, date time.Time) (int64, error) {
	date = snapshotStore.NormalizeDate(date)

	var deletedAccounts int64
	err := s.withRetry(ctx, "DeleteSnapshot", func() error {
		var txErr error
		deletedAccounts, txErr = helpers.WrapTxAndCommit(func(tx *gorm.DB) (int64, error) {
			res := tx.Where("date = ?", date).Delete(&snapshotStore.SnapshotAccount{})
			if res.Error != nil {
				return 0, res.Error
			}
			accounts := res.RowsAffected

			res = tx.Where("date = ?", date).Delete(&snapshotStore.Snapshot{})
			if res.Error != nil {
				return 0, res.Error
			}
			if res.RowsAffected == 0 {
				return 0, snapshotStore.ErrSnapshotNotFound
			}
			return accounts, nil
		}, s.Db.WithContext(ctx), nil)
		return txErr
	})
	if err != nil {
		return 0, err
	}

	s.Logger.Sugar().Infow("Deleted snapshot",
		zap.Time("date", date),
		zap.Int64("accounts", deletedAccounts),
	)
	return deletedAccounts, nil
}

func (s *PostgresSnapshotStore) Ping(ctx context.Context) error {
	db, err := s.Db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
