package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hedgefund-labs/fund-settler/pkg/distribution"
	"github.com/hedgefund-labs/fund-settler/pkg/manifest"
	"github.com/hedgefund-labs/fund-settler/pkg/phaseMarker"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore"
	"go.uber.org/zap"
)

func (p *Pipeline) unlock(ctx context.Context, res *StepResult) (phaseMarker.Phase, error) {
	stats, err := p.gateway.GetValidatorStakeStats(ctx, p.config.Validator)
	if err != nil {
		return "", fmt.Errorf("failed to fetch validator stake: %w", err)
	}
	if stats.LockedOwnerStakeUnits.LessThan(p.config.UnlockThreshold) {
		p.logger.Sugar().Infow("Not enough locked owner stake to start an unlock",
			zap.String("locked", stats.LockedOwnerStakeUnits.String()),
			zap.String("threshold", p.config.UnlockThreshold.String()),
		)
		res.Status = StatusInsufficientLockedStake
		return phaseMarker.Phase_Step1End, nil
	}

	depositors, err := p.holders.GetHolders(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch depositors: %w", err)
	}
	if len(depositors) == 0 {
		return "", ErrNoDepositors
	}

	date := snapshotStore.NormalizeDate(p.now())
	if _, err := p.store.UpsertSnapshot(ctx, date, snapshotStore.SnapshotState_UnlockStarted, depositors, true, nil); err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}
	res.SnapshotDate = &date

	program, err := p.fundManager.StartUnlockOwnerStakeUnits(stats.LockedOwnerStakeUnits)
	if err == nil {
		txRes := p.executor.Execute(ctx, program, p.config.FeeLock)
		if txRes.TxId != "" {
			res.TxIds = append(res.TxIds, txRes.TxId)
		}
		if !txRes.Success {
			err = fmt.Errorf("unlock transaction failed: %w", txRes.Error)
		}
	}
	if err != nil {
		cleanupCtx, cancel := cleanupContext(ctx)
		defer cancel()
		if _, delErr := p.store.DeleteSnapshot(cleanupCtx, date); delErr != nil {
			p.logger.Sugar().Errorw("Failed to remove snapshot of failed unlock",
				zap.Time("date", date),
				zap.Error(delErr),
			)
		}
		return "", err
	}

	p.logger.Sugar().Infow("Started owner stake unlock",
		zap.Time("snapshot", date),
		zap.Int("depositors", len(depositors)),
		zap.String("amount", stats.LockedOwnerStakeUnits.String()),
	)
	res.Status = StatusCompleted
	return phaseMarker.Phase_Step1End, nil
}

// firstClaimId picks the first id of the comma separated ids event field.
func firstClaimId(event map[string]string) string {
	for _, id := range strings.Split(event[claimIdsField], ",") {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

func (p *Pipeline) unstake(ctx context.Context, res *StepResult) (phaseMarker.Phase, error) {
	stats, err := p.gateway.GetValidatorStakeStats(ctx, p.config.Validator)
	if err != nil {
		return "", fmt.Errorf("failed to fetch validator stake: %w", err)
	}
	if !stats.UnlockedOwnerStakeUnits.IsPositive() {
		p.logger.Sugar().Infow("No unlocked owner stake yet",
			zap.String("pending", stats.PendingOwnerStakeUnitUnlock.String()),
		)
		res.Status = StatusNothingUnlocked
		return phaseMarker.Phase_Step1End, nil
	}

	snapshot, err := p.store.GetOldestSnapshotInState(ctx, snapshotStore.SnapshotState_UnlockStarted, p.config.UnstakeLookback, p.now())
	if err != nil {
		return "", fmt.Errorf("failed to look up unlock snapshot: %w", err)
	}
	if snapshot == nil {
		p.logger.Sugar().Warnw("No unlock snapshot inside the lookback window",
			zap.Duration("lookback", p.config.UnstakeLookback),
		)
		res.Status = StatusNoSnapshot
		return phaseMarker.Phase_Step2End, nil
	}
	date := snapshot.Date
	res.SnapshotDate = &date

	program, err := p.fundManager.StartUnstake()
	if err != nil {
		return "", err
	}
	txRes := p.executor.Execute(ctx, program, p.config.FeeLock)
	if txRes.TxId != "" {
		res.TxIds = append(res.TxIds, txRes.TxId)
	}
	if !txRes.Success {
		return "", fmt.Errorf("unstake transaction failed: %w", txRes.Error)
	}

	// the unstake is committed, record its claim even when ctx is cancelled
	recordCtx, cancel := cleanupContext(ctx)
	defer cancel()
	event, err := p.gateway.GetTransactionEvent(recordCtx, txRes.TxId, ClaimEventName)
	if err != nil {
		return "", fmt.Errorf("failed to read claim receipt of %s: %w", txRes.TxId, err)
	}
	claimId := firstClaimId(event)
	if claimId == "" {
		return "", fmt.Errorf("%w: %s", ErrClaimIdMissing, txRes.TxId)
	}

	if _, err := p.store.UpsertSnapshot(recordCtx, date, snapshotStore.SnapshotState_UnstakeStarted, nil, false, &claimId); err != nil {
		return "", fmt.Errorf("failed to record claim %s: %w", claimId, err)
	}

	p.logger.Sugar().Infow("Started unstake",
		zap.Time("snapshot", date),
		zap.String("claimNftId", claimId),
		zap.String("unlocked", stats.UnlockedOwnerStakeUnits.String()),
	)
	res.ClaimNftId = claimId
	res.Status = StatusCompleted
	return phaseMarker.Phase_Step2End, nil
}

func (p *Pipeline) distribute(ctx context.Context, res *StepResult) (phaseMarker.Phase, error) {
	now := p.now()

	resumable, err := p.store.GetOldestSnapshotInState(ctx, snapshotStore.SnapshotState_Unstaked, p.config.DistributionLookback, now)
	if err != nil {
		return "", fmt.Errorf("failed to look up unstaked snapshot: %w", err)
	}
	if resumable != nil {
		p.logger.Sugar().Infow("Resuming distribution of unstaked snapshot", zap.Time("snapshot", resumable.Date))
		date := resumable.Date
		res.SnapshotDate = &date
		if resumable.ClaimNftId != nil {
			res.ClaimNftId = *resumable.ClaimNftId
		}
		if err := p.distributeSnapshot(ctx, date, res); err != nil {
			return "", err
		}
		return phaseMarker.Phase_Step3End, nil
	}

	snapshot, err := p.store.GetOldestSnapshotInState(ctx, snapshotStore.SnapshotState_UnstakeStarted, p.config.DistributionLookback, now)
	if err != nil {
		return "", fmt.Errorf("failed to look up unstaking snapshot: %w", err)
	}
	if snapshot == nil {
		p.logger.Sugar().Infow("No unstaking snapshot inside the distribution window",
			zap.Duration("lookback", p.config.DistributionLookback),
		)
		res.Status = StatusNoSnapshot
		return phaseMarker.Phase_Step3End, nil
	}
	date := snapshot.Date
	res.SnapshotDate = &date
	if snapshot.ClaimNftId == nil || *snapshot.ClaimNftId == "" {
		return "", fmt.Errorf("snapshot %s is unstaking without a claim receipt id", date.Format(time.RFC3339))
	}
	claimId := *snapshot.ClaimNftId
	res.ClaimNftId = claimId

	stats, err := p.gateway.GetValidatorStakeStats(ctx, p.config.Validator)
	if err != nil {
		return "", fmt.Errorf("failed to fetch validator stake: %w", err)
	}
	claimEpoch, err := p.gateway.GetClaimReceiptEpoch(ctx, stats.ClaimNftResource, claimId)
	if err != nil {
		return "", fmt.Errorf("failed to read claim receipt %s: %w", claimId, err)
	}
	currentEpoch, err := p.gateway.GetCurrentEpoch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch current epoch: %w", err)
	}
	if claimEpoch > currentEpoch {
		p.logger.Sugar().Infow("Claim receipt is not redeemable yet",
			zap.String("claimNftId", claimId),
			zap.Int64("claimEpoch", claimEpoch),
			zap.Int64("currentEpoch", currentEpoch),
		)
		res.Status = StatusClaimNotReady
		return phaseMarker.Phase_Step3End, nil
	}

	quote, err := p.oracle.FetchSignedQuote(ctx, p.config.MarketId)
	if err != nil {
		return "", fmt.Errorf("failed to fetch price quote: %w", err)
	}
	program, err := p.fundManager.FinishUnstake(claimId, []manifest.PriceMessage{{
		Resource:  p.config.XrdResource,
		Message:   quote.Message(),
		Signature: quote.Signature,
	}})
	if err != nil {
		return "", err
	}
	txRes := p.executor.Execute(ctx, program, p.config.FeeLock)
	if txRes.TxId != "" {
		res.TxIds = append(res.TxIds, txRes.TxId)
	}
	if !txRes.Success {
		return "", fmt.Errorf("finish unstake transaction failed: %w", txRes.Error)
	}

	recordCtx, cancel := cleanupContext(ctx)
	defer cancel()
	if _, err := p.store.UpsertSnapshot(recordCtx, date, snapshotStore.SnapshotState_Unstaked, nil, false, nil); err != nil {
		return "", fmt.Errorf("failed to mark snapshot unstaked: %w", err)
	}
	p.logger.Sugar().Infow("Finished unstake", zap.Time("snapshot", date), zap.String("claimNftId", claimId))

	if err := p.distributeSnapshot(ctx, date, res); err != nil {
		return "", err
	}
	return phaseMarker.Phase_Step3End, nil
}

// distributeSnapshot pays every pending account of the snapshot its share of the fund units held
// by the fund manager. Shares are computed against the pending accounts only.
func (p *Pipeline) distributeSnapshot(ctx context.Context, date time.Time, res *StepResult) error {
	pending, err := p.store.GetSnapshotAccounts(ctx, date, snapshotStore.BoolPtr(false))
	if err != nil {
		return fmt.Errorf("failed to fetch pending accounts: %w", err)
	}

	if len(pending) > 0 {
		total, err := p.gateway.GetFungibleBalance(ctx, p.fundManager.Component, p.config.FundUnitResource)
		if err != nil {
			return fmt.Errorf("failed to fetch distributable fund units: %w", err)
		}
		if !total.IsPositive() {
			return ErrNothingToDistribute
		}

		items, err := distribution.ComputeDistribution(total, pending)
		if err != nil {
			return fmt.Errorf("failed to compute distribution: %w", err)
		}
		res.Attempted = len(items)

		confirmed, err := p.distributor.Distribute(ctx, date, items)
		res.Distributed = len(confirmed)
		if err != nil {
			return fmt.Errorf("distribution aborted after %d of %d accounts: %w", len(confirmed), len(items), err)
		}
		if len(confirmed) != len(items) {
			return fmt.Errorf("%w: %d of %d", ErrDistributionMismatch, len(confirmed), len(items))
		}
		p.logger.Sugar().Infow("Distributed fund units",
			zap.Time("snapshot", date),
			zap.String("total", total.String()),
			zap.Int("accounts", len(confirmed)),
		)
	}

	if _, err := p.store.UpsertSnapshot(ctx, date, snapshotStore.SnapshotState_Distributed, nil, false, nil); err != nil {
		return fmt.Errorf("failed to mark snapshot distributed: %w", err)
	}
	res.Status = StatusCompleted
	return nil
}
