// Package txExecutor submits manifests to the ledger and waits for them to be committed.
package txExecutor

import (
	"context"
	"fmt"
	"time"

	"github.com/hedgefund-labs/fund-settler/pkg/clients/gateway"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/signer"
	"github.com/hedgefund-labs/fund-settler/pkg/manifest"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrTransactionFailed  = errors.New("transaction failed")
	ErrTransactionTimeout = errors.New("transaction was not committed in time")
)

// Result never carries a nil Error when Success is false. TxId is set whenever the transaction
// reached the gateway, including failed ones.
type Result struct {
	Success bool
	TxId    string
	Error   error
}

type TransactionExecutor interface {
	Execute(ctx context.Context, program *manifest.Manifest, feeLock decimal.Decimal) *Result
}

type Gateway interface {
	SubmitTransaction(ctx context.Context, notarizedTransactionHex string) error
	GetTransactionStatus(ctx context.Context, intentHash string) (*gateway.TransactionStatusResult, error)
}

type Notary interface {
	GetAccount(ctx context.Context) (*signer.Account, error)
	Notarize(ctx context.Context, manifest string) (*signer.NotarizedTransaction, error)
}

type ExecutorConfig struct {
	RetryDelay   time.Duration
	PollInterval time.Duration
	PollAttempts int
}

type Executor struct {
	gateway     Gateway
	notary      Notary
	config      ExecutorConfig
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger
}

func NewExecutor(gw Gateway, notary Notary, cfg ExecutorConfig, ms *metrics.MetricsSink, l *zap.Logger) *Executor {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &Executor{
		gateway:     gw,
		notary:      notary,
		config:      cfg,
		metricsSink: ms,
		logger:      l,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func methodLabel(program *manifest.Manifest) string {
	methods := program.Methods()
	if len(methods) == 0 {
		return "none"
	}
	return methods[len(methods)-1]
}

// Execute submits program behind a fee lock and waits for it to commit. The whole sequence is
// retried once after the configured delay; no further attempts are made since fees are charged
// for failed transactions too.
func (e *Executor) Execute(ctx context.Context, program *manifest.Manifest, feeLock decimal.Decimal) *Result {
	method := methodLabel(program)
	start := time.Now()

	result := e.attempt(ctx, program, feeLock)
	if !result.Success && ctx.Err() == nil {
		e.logger.Sugar().Warnw("Transaction attempt failed, retrying once",
			zap.String("method", method),
			zap.String("txId", result.TxId),
			zap.Error(result.Error),
		)
		if err := sleep(ctx, e.config.RetryDelay); err == nil {
			result = e.attempt(ctx, program, feeLock)
		}
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
		e.logger.Sugar().Errorw("Transaction failed",
			zap.String("method", method),
			zap.String("txId", result.TxId),
			zap.Error(result.Error),
		)
	} else {
		e.logger.Sugar().Infow("Transaction committed",
			zap.String("method", method),
			zap.String("txId", result.TxId),
		)
	}
	labels := []metricsTypes.MetricsLabel{
		{Name: "method", Value: method},
		{Name: "outcome", Value: outcome},
	}
	_ = e.metricsSink.Incr(metricsTypes.Metric_Incr_TransactionSubmitted, labels, 1)
	_ = e.metricsSink.Timing(metricsTypes.Metric_Timing_TransactionDuration, time.Since(start), labels)
	return result
}

func (e *Executor) attempt(ctx context.Context, program *manifest.Manifest, feeLock decimal.Decimal) *Result {
	account, err := e.notary.GetAccount(ctx)
	if err != nil {
		return &Result{Error: errors.Wrap(err, "failed to get bot account")}
	}

	rendered := program.Prepend(manifest.LockFee(account.Address, feeLock)).Render()

	notarized, err := e.notary.Notarize(ctx, rendered)
	if err != nil {
		return &Result{Error: errors.Wrap(err, "failed to notarize transaction")}
	}
	txId := notarized.IntentHash

	if err := e.gateway.SubmitTransaction(ctx, notarized.NotarizedTransactionHex); err != nil {
		return &Result{TxId: txId, Error: errors.Wrap(err, "failed to submit transaction")}
	}

	if err := e.waitForCommit(ctx, txId); err != nil {
		return &Result{TxId: txId, Error: err}
	}
	return &Result{Success: true, TxId: txId}
}

func (e *Executor) waitForCommit(ctx context.Context, txId string) error {
	var lastErr error
	for i := 0; i < e.config.PollAttempts; i++ {
		if i > 0 {
			if err := sleep(ctx, e.config.PollInterval); err != nil {
				return errors.Wrap(err, "stopped waiting for transaction")
			}
		}
		status, err := e.gateway.GetTransactionStatus(ctx, txId)
		if err != nil {
			lastErr = err
			e.logger.Sugar().Debugw("Failed to fetch transaction status", zap.String("txId", txId), zap.Error(err))
			continue
		}
		if !status.IntentStatus.IsTerminal() {
			continue
		}
		if status.IntentStatus == gateway.TransactionStatus_CommittedSuccess {
			return nil
		}
		return fmt.Errorf("%w: %s %s", ErrTransactionFailed, status.IntentStatus, status.ErrorMessage)
	}
	if lastErr != nil {
		return errors.Wrapf(ErrTransactionTimeout, "last status error: %v", lastErr)
	}
	return ErrTransactionTimeout
}
