// Package settlement sequences the three settlement steps: unlock the owner stake, unstake it and
// finally redeem the claim and distribute fund units to depositors.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/pkg/alerting"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/gateway"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/oracle"
	"github.com/hedgefund-labs/fund-settler/pkg/distribution"
	"github.com/hedgefund-labs/fund-settler/pkg/manifest"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"github.com/hedgefund-labs/fund-settler/pkg/phaseMarker"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore"
	"github.com/hedgefund-labs/fund-settler/pkg/txExecutor"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

type Step string

const (
	Step_Unlock     Step = "step1"
	Step_Unstake    Step = "step2"
	Step_Distribute Step = "step3"
)

func (s Step) String() string {
	return string(s)
}

type Status string

const (
	StatusCompleted               Status = "completed"
	StatusInsufficientLockedStake Status = "insufficient_locked_stake"
	StatusNothingUnlocked         Status = "nothing_unlocked"
	StatusNoSnapshot              Status = "no_snapshot"
	StatusClaimNotReady           Status = "claim_not_ready"

	statusError = "error"
)

const (
	// ClaimEventName is the event emitted when the validator mints the unstake claim receipt.
	ClaimEventName = "MintNonFungibleResourceEvent"
	claimIdsField  = "ids"
)

var (
	ErrDistributionMismatch = errors.New("confirmed distribution count does not match attempted count")
	ErrClaimIdMissing       = errors.New("unstake transaction did not report a claim receipt id")
	ErrNoDepositors         = errors.New("no depositors found")
	ErrNothingToDistribute  = errors.New("fund manager holds no fund units to distribute")
	ErrResetFailed          = errors.New("failed to close the distribution")
)

// StepResult describes a step invocation that ran. A nil result means the step was not due.
type StepResult struct {
	Step         Step       `json:"step"`
	Status       Status     `json:"status"`
	SnapshotDate *time.Time `json:"snapshotDate,omitempty"`
	ClaimNftId   string     `json:"claimNftId,omitempty"`
	TxIds        []string   `json:"txIds,omitempty"`
	Attempted    int        `json:"attempted,omitempty"`
	Distributed  int        `json:"distributed,omitempty"`
}

type Gateway interface {
	GetValidatorStakeStats(ctx context.Context, validator string) (*gateway.ValidatorStakeStats, error)
	GetFungibleBalance(ctx context.Context, address string, resource string) (decimal.Decimal, error)
	GetCurrentEpoch(ctx context.Context) (int64, error)
	GetClaimReceiptEpoch(ctx context.Context, resource string, id string) (int64, error)
	GetTransactionEvent(ctx context.Context, intentHash string, eventName string) (map[string]string, error)
}

type HolderSource interface {
	GetHolders(ctx context.Context) (map[string]string, error)
}

type PriceOracle interface {
	FetchSignedQuote(ctx context.Context, marketId string) (*oracle.Quote, error)
}

type Distributor interface {
	Distribute(ctx context.Context, date time.Time, items []distribution.Item) ([]string, error)
	CloseDistribution(ctx context.Context) *txExecutor.Result
}

type Config struct {
	Validator            string
	XrdResource          string
	FundUnitResource     string
	MarketId             string
	UnlockThreshold      decimal.Decimal
	FeeLock              decimal.Decimal
	UnstakeLookback      time.Duration
	DistributionLookback time.Duration
	FeeBalanceThreshold  decimal.Decimal
}

func NewConfig(cfg *config.Config, addrs *config.LedgerAddresses) *Config {
	return &Config{
		Validator:            addrs.Validator,
		XrdResource:          addrs.XrdResource,
		FundUnitResource:     addrs.FundUnitResource,
		MarketId:             cfg.OracleConfig.MarketId,
		UnlockThreshold:      cfg.PipelineConfig.UnlockThreshold,
		FeeLock:              cfg.PipelineConfig.FeeLock,
		UnstakeLookback:      cfg.PipelineConfig.UnstakeLookback,
		DistributionLookback: cfg.PipelineConfig.DistributionLookback,
		FeeBalanceThreshold:  cfg.PipelineConfig.FeeBalanceThreshold,
	}
}

type Pipeline struct {
	config      *Config
	gateway     Gateway
	holders     HolderSource
	store       snapshotStore.SnapshotStore
	tracker     phaseMarker.Tracker
	executor    txExecutor.TransactionExecutor
	distributor Distributor
	oracle      PriceOracle
	fundManager *manifest.FundManager
	notifier    alerting.Notifier
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger

	now func() time.Time
}

func NewPipeline(
	cfg *Config,
	gw Gateway,
	hs HolderSource,
	store snapshotStore.SnapshotStore,
	tracker phaseMarker.Tracker,
	executor txExecutor.TransactionExecutor,
	distributor Distributor,
	po PriceOracle,
	fundManager *manifest.FundManager,
	notifier alerting.Notifier,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Pipeline {
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &Pipeline{
		config:      cfg,
		gateway:     gw,
		holders:     hs,
		store:       store,
		tracker:     tracker,
		executor:    executor,
		distributor: distributor,
		oracle:      po,
		fundManager: fundManager,
		notifier:    notifier,
		metricsSink: ms,
		logger:      l,
		now:         time.Now,
	}
}

// stepBody performs the work of a claimed step. It returns the result and the phase the marker
// moves to when it succeeds.
type stepBody func(ctx context.Context, res *StepResult) (phaseMarker.Phase, error)

// cleanupTimeout bounds marker and snapshot writes made after a step body returned.
const cleanupTimeout = 15 * time.Second

// cleanupContext detaches from ctx cancellation so a step interrupted by shutdown still settles
// its marker and removes what it created.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// startPredecessor maps each step start marker to the marker the step was claimed from.
var startPredecessor = map[phaseMarker.Phase]phaseMarker.Phase{
	phaseMarker.Phase_Step1Start: phaseMarker.Phase_Step3End,
	phaseMarker.Phase_Step2Start: phaseMarker.Phase_Step1End,
	phaseMarker.Phase_Step3Start: phaseMarker.Phase_Step2End,
}

var phaseIndex = map[phaseMarker.Phase]float64{
	phaseMarker.Phase_Step1Start: 1,
	phaseMarker.Phase_Step1End:   2,
	phaseMarker.Phase_Step2Start: 3,
	phaseMarker.Phase_Step2End:   4,
	phaseMarker.Phase_Step3Start: 5,
	phaseMarker.Phase_Step3End:   6,
}

// runStep claims the step by moving the marker from predecessor to start, runs body and settles
// the marker. Any error reverts the marker to predecessor so the next tick retries the step.
func (p *Pipeline) runStep(ctx context.Context, step Step, predecessor phaseMarker.Phase, start phaseMarker.Phase, body stepBody) (*StepResult, error) {
	span, ctx := ddTracer.StartSpanFromContext(ctx, fmt.Sprintf("settlement.%s", step))
	span.SetTag("step", step.String())
	defer span.Finish()

	claimed, err := p.tracker.CompareAndSwap(ctx, predecessor, start)
	if err != nil {
		err = fmt.Errorf("failed to claim %s: %w", step, err)
		p.notifier.Notify(ctx, err.Error())
		return nil, err
	}
	if !claimed {
		current, _ := p.tracker.Get(ctx)
		p.logger.Sugar().Infow("Step is not due, skipping",
			zap.String("step", step.String()),
			zap.String("expected", predecessor.String()),
			zap.String("current", current.String()),
		)
		span.SetTag("skipped", true)
		return nil, nil
	}
	p.recordPhase(start)

	startTime := time.Now()
	res := &StepResult{Step: step}
	next, err := body(ctx, res)
	if err == nil {
		settleCtx, cancel := cleanupContext(ctx)
		defer cancel()
		if setErr := p.tracker.Set(settleCtx, next); setErr != nil {
			err = fmt.Errorf("failed to advance marker to %s: %w", next, setErr)
		} else {
			p.recordPhase(next)
		}
	}

	status := string(res.Status)
	if err != nil {
		status = statusError
		cleanupCtx, cancel := cleanupContext(ctx)
		defer cancel()
		if revertErr := p.tracker.Set(cleanupCtx, predecessor); revertErr != nil {
			p.logger.Sugar().Errorw("Failed to revert phase marker",
				zap.String("step", step.String()),
				zap.String("phase", predecessor.String()),
				zap.Error(revertErr),
			)
		} else {
			p.recordPhase(predecessor)
		}
		span.SetTag("error", true)
		span.SetTag("error.message", err.Error())
		p.logger.Sugar().Errorw("Step failed",
			zap.String("step", step.String()),
			zap.Strings("txIds", res.TxIds),
			zap.Error(err),
		)
		p.notifier.Notify(cleanupCtx, fmt.Sprintf("%s failed: %v", step, err))
	} else {
		span.SetTag("status", status)
		p.logger.Sugar().Infow("Step finished",
			zap.String("step", step.String()),
			zap.String("status", status),
			zap.Strings("txIds", res.TxIds),
			zap.String("phase", next.String()),
		)
	}

	duration := time.Since(startTime)
	labels := []metricsTypes.MetricsLabel{
		{Name: "step", Value: step.String()},
		{Name: "status", Value: status},
	}
	_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_StepRun, labels, 1)
	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_StepDuration, duration, labels)

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) recordPhase(phase phaseMarker.Phase) {
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_PhaseMarker, phaseIndex[phase], nil)
}

// RunStep1 starts unlocking the owner stake units and snapshots the current depositors.
func (p *Pipeline) RunStep1(ctx context.Context) (*StepResult, error) {
	return p.runStep(ctx, Step_Unlock, phaseMarker.Phase_Step3End, phaseMarker.Phase_Step1Start, p.unlock)
}

// RunStep2 unstakes the unlocked owner stake units of the oldest pending snapshot.
func (p *Pipeline) RunStep2(ctx context.Context) (*StepResult, error) {
	return p.runStep(ctx, Step_Unstake, phaseMarker.Phase_Step1End, phaseMarker.Phase_Step2Start, p.unstake)
}

// RunStep3 redeems the claim receipt of the oldest unstaking snapshot and distributes fund units.
func (p *Pipeline) RunStep3(ctx context.Context) (*StepResult, error) {
	return p.runStep(ctx, Step_Distribute, phaseMarker.Phase_Step2End, phaseMarker.Phase_Step3Start, p.distribute)
}

func (p *Pipeline) GetPhase(ctx context.Context) (phaseMarker.Phase, error) {
	return p.tracker.Get(ctx)
}

// SetPhase overwrites the marker. Operators use it to unstick a pipeline.
func (p *Pipeline) SetPhase(ctx context.Context, phase phaseMarker.Phase) error {
	if err := p.tracker.Set(ctx, phase); err != nil {
		return err
	}
	p.logger.Sugar().Warnw("Phase marker overwritten", zap.String("phase", phase.String()))
	p.recordPhase(phase)
	return nil
}

// RecoverInterruptedStep reverts a marker left at a step start by a process that died mid-step, so
// the step is retried on the next tick. It must only run while no step is in flight. The returned
// phase is the marker after recovery.
func (p *Pipeline) RecoverInterruptedStep(ctx context.Context) (phaseMarker.Phase, error) {
	current, err := p.tracker.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read phase marker: %w", err)
	}
	predecessor, ok := startPredecessor[current]
	if !ok {
		return current, nil
	}
	swapped, err := p.tracker.CompareAndSwap(ctx, current, predecessor)
	if err != nil {
		return "", fmt.Errorf("failed to revert phase marker: %w", err)
	}
	if !swapped {
		return p.tracker.Get(ctx)
	}
	p.recordPhase(predecessor)
	p.logger.Sugar().Warnw("Reverted phase marker of an interrupted step",
		zap.String("from", current.String()),
		zap.String("to", predecessor.String()),
	)
	p.notifier.Notify(ctx, fmt.Sprintf("found phase marker %s at startup, reverted to %s", current, predecessor))
	return predecessor, nil
}
