package settlement

import (
	"context"
	"fmt"

	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ResetStuckDistribution closes a distribution the fund manager still considers open, which
// happens when a run stopped before submitting its last batch. It returns the transaction id.
func (p *Pipeline) ResetStuckDistribution(ctx context.Context) (string, error) {
	res := p.distributor.CloseDistribution(ctx)
	if !res.Success {
		err := fmt.Errorf("%w: %v", ErrResetFailed, res.Error)
		p.notifier.Notify(ctx, err.Error())
		return res.TxId, err
	}
	p.logger.Sugar().Infow("Closed stuck distribution", zap.String("txId", res.TxId))
	return res.TxId, nil
}

type FeeBalance struct {
	Account   string          `json:"account"`
	Balance   decimal.Decimal `json:"balance"`
	Threshold decimal.Decimal `json:"threshold"`
	Low       bool            `json:"low"`
}

// CheckFeeBalance reads the XRD balance the bot pays fees from and alerts when it is at or below
// the configured threshold.
func (p *Pipeline) CheckFeeBalance(ctx context.Context) (*FeeBalance, error) {
	balance, err := p.gateway.GetFungibleBalance(ctx, p.fundManager.BotAccount, p.config.XrdResource)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fee balance: %w", err)
	}
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_FeeBalance, balance.InexactFloat64(), nil)

	fb := &FeeBalance{
		Account:   p.fundManager.BotAccount,
		Balance:   balance,
		Threshold: p.config.FeeBalanceThreshold,
		Low:       balance.LessThanOrEqual(p.config.FeeBalanceThreshold),
	}
	if fb.Low {
		p.logger.Sugar().Warnw("Fee balance is low",
			zap.String("account", fb.Account),
			zap.String("balance", balance.String()),
		)
		p.notifier.Notify(ctx, fmt.Sprintf("fee balance of %s is low: %s XRD left", fb.Account, balance.String()))
	}
	return fb, nil
}
