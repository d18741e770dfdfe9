// Package distribution turns snapshot balances into fund unit payouts and submits them in batches.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hedgefund-labs/fund-settler/pkg/manifest"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore"
	"github.com/hedgefund-labs/fund-settler/pkg/txExecutor"
	"github.com/hedgefund-labs/fund-settler/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// AmountPrecision is the number of decimal places of a payout. Amounts are truncated, never rounded up.
	AmountPrecision  = 18
	DefaultBatchSize = 50

	sharePrecision = 36
	recordTimeout  = 15 * time.Second
)

var ErrEmptyPopulation = errors.New("no balance to compute shares against")

type Item struct {
	Address string
	Amount  string
}

func parseBalances(accounts []*snapshotStore.SnapshotAccount) (map[string]decimal.Decimal, decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(accounts))
	total := decimal.Zero
	for _, a := range accounts {
		amount, err := decimal.NewFromString(a.LsuAmount)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("invalid lsu amount '%s' for %s: %w", a.LsuAmount, a.Account, err)
		}
		if amount.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("negative lsu amount '%s' for %s", a.LsuAmount, a.Account)
		}
		balances[a.Account] = balances[a.Account].Add(amount)
		total = total.Add(amount)
	}
	if !total.IsPositive() {
		return nil, decimal.Zero, ErrEmptyPopulation
	}
	return balances, total, nil
}

// ComputeShares returns each account's fraction of the summed balance of the given accounts.
// Shares are truncated to 36 places so they never add up to more than one.
func ComputeShares(accounts []*snapshotStore.SnapshotAccount) (map[string]decimal.Decimal, decimal.Decimal, error) {
	balances, total, err := parseBalances(accounts)
	if err != nil {
		return nil, decimal.Zero, err
	}
	shares := make(map[string]decimal.Decimal, len(balances))
	for address, balance := range balances {
		share, _ := balance.QuoRem(total, sharePrecision)
		shares[address] = share
	}
	return shares, total, nil
}

// ComputeDistribution splits total across accounts by their share of the accounts' summed balance.
// Each amount is total * share truncated to AmountPrecision places, so the items never add up to
// more than total. Items are sorted by address.
func ComputeDistribution(total decimal.Decimal, accounts []*snapshotStore.SnapshotAccount) ([]Item, error) {
	if total.IsNegative() {
		return nil, fmt.Errorf("distributable amount cannot be negative: %s", total)
	}
	shares, _, err := ComputeShares(accounts)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(shares))
	for address := range shares {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	items := make([]Item, 0, len(addresses))
	for _, address := range addresses {
		amount := total.Mul(shares[address]).Truncate(AmountPrecision)
		items = append(items, Item{
			Address: address,
			Amount:  amount.StringFixed(AmountPrecision),
		})
	}
	return items, nil
}

// Batches splits items into consecutive batches of at most size items.
func Batches(items []Item, size int) [][]Item {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return utils.Chunk(items, size)
}

type Engine struct {
	executor    txExecutor.TransactionExecutor
	store       snapshotStore.SnapshotStore
	fundManager *manifest.FundManager
	batchSize   int
	feeLock     decimal.Decimal
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger
}

func NewEngine(
	executor txExecutor.TransactionExecutor,
	store snapshotStore.SnapshotStore,
	fundManager *manifest.FundManager,
	batchSize int,
	feeLock decimal.Decimal,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &Engine{
		executor:    executor,
		store:       store,
		fundManager: fundManager,
		batchSize:   batchSize,
		feeLock:     feeLock,
		metricsSink: ms,
		logger:      l,
	}
}

func isZeroAmount(item Item) bool {
	amount, err := decimal.NewFromString(item.Amount)
	return err == nil && amount.IsZero()
}

// recordSent marks a committed batch as paid. It ignores ctx cancellation so a shutdown between
// commit and record cannot make the batch look unpaid.
func (e *Engine) recordSent(ctx context.Context, date time.Time, addresses []string) error {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	return e.store.MarkFundUnitsSent(recordCtx, date, addresses)
}

// Distribute pays out items batch by batch, in order, and returns the addresses whose payout was
// confirmed. The first failed batch stops the run; later batches are not attempted. An error is
// returned only when the run must be aborted, e.g. a confirmed batch could not be recorded.
// Zero amounts are recorded as sent without a transaction.
func (e *Engine) Distribute(ctx context.Context, date time.Time, items []Item) ([]string, error) {
	confirmed := make([]string, 0, len(items))

	zero := utils.Filter(items, isZeroAmount)
	payable := utils.Filter(items, func(i Item) bool { return !isZeroAmount(i) })

	if len(zero) > 0 {
		addresses := utils.Map(zero, func(i Item, _ uint64) string { return i.Address })
		if err := e.store.MarkFundUnitsSent(ctx, date, addresses); err != nil {
			return confirmed, fmt.Errorf("failed to record zero amount accounts: %w", err)
		}
		confirmed = append(confirmed, addresses...)
		e.logger.Sugar().Infow("Recorded zero amount accounts without payout", zap.Int("accounts", len(addresses)))
	}

	batches := Batches(payable, e.batchSize)
	for i, batch := range batches {
		moreLeft := i < len(batches)-1
		payouts := utils.Map(batch, func(item Item, _ uint64) manifest.Payout {
			return manifest.Payout{Address: item.Address, Amount: item.Amount}
		})

		program, err := e.fundManager.FundUnitsDistribution(payouts, moreLeft)
		if err != nil {
			return confirmed, fmt.Errorf("failed to build distribution batch %d: %w", i+1, err)
		}

		res := e.executor.Execute(ctx, program, e.feeLock)
		if !res.Success {
			_ = e.metricsSink.Incr(metricsTypes.Metric_Incr_DistributionBatch, []metricsTypes.MetricsLabel{{Name: "outcome", Value: "failure"}}, 1)
			e.logger.Sugar().Errorw("Distribution batch failed, stopping",
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.String("txId", res.TxId),
				zap.Error(res.Error),
			)
			return confirmed, nil
		}

		addresses := utils.Map(batch, func(item Item, _ uint64) string { return item.Address })
		if err := e.recordSent(ctx, date, addresses); err != nil {
			return confirmed, fmt.Errorf("batch %d committed in %s but could not be recorded: %w", i+1, res.TxId, err)
		}
		confirmed = append(confirmed, addresses...)

		_ = e.metricsSink.Incr(metricsTypes.Metric_Incr_DistributionBatch, []metricsTypes.MetricsLabel{{Name: "outcome", Value: "success"}}, 1)
		_ = e.metricsSink.Incr(metricsTypes.Metric_Incr_DistributedAccounts, nil, float64(len(addresses)))
		e.logger.Sugar().Infow("Distribution batch committed",
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("accounts", len(addresses)),
			zap.Bool("moreLeft", moreLeft),
			zap.String("txId", res.TxId),
		)
	}
	return confirmed, nil
}

// CloseDistribution submits an empty final batch so the fund manager closes a distribution left
// open by a run that stopped midway.
func (e *Engine) CloseDistribution(ctx context.Context) *txExecutor.Result {
	program, err := e.fundManager.FundUnitsDistribution(nil, false)
	if err != nil {
		return &txExecutor.Result{Error: err}
	}
	return e.executor.Execute(ctx, program, e.feeLock)
}
