package txExecutor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hedgefund-labs/fund-settler/pkg/clients/gateway"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/signer"
	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/hedgefund-labs/fund-settler/pkg/manifest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotary struct {
	mu        sync.Mutex
	manifests []string
	err       error
}

func (f *fakeNotary) GetAccount(ctx context.Context) (*signer.Account, error) {
	return &signer.Account{Address: "account_bot"}, nil
}

func (f *fakeNotary) Notarize(ctx context.Context, m string) (*signer.NotarizedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.manifests = append(f.manifests, m)
	return &signer.NotarizedTransaction{IntentHash: "txid_" + string(rune('0'+len(f.manifests))), NotarizedTransactionHex: "0a"}, nil
}

type fakeGateway struct {
	submitErrs []error
	statuses   [][]gateway.TransactionStatus
	submits    int
	polls      int
}

func (f *fakeGateway) SubmitTransaction(ctx context.Context, hex string) error {
	f.submits++
	if len(f.submitErrs) >= f.submits {
		return f.submitErrs[f.submits-1]
	}
	return nil
}

func (f *fakeGateway) GetTransactionStatus(ctx context.Context, intentHash string) (*gateway.TransactionStatusResult, error) {
	f.polls++
	attempt := f.submits - 1
	if attempt >= len(f.statuses) {
		return &gateway.TransactionStatusResult{IntentStatus: gateway.TransactionStatus_CommittedSuccess}, nil
	}
	seq := f.statuses[attempt]
	if len(seq) == 0 {
		return &gateway.TransactionStatusResult{IntentStatus: gateway.TransactionStatus_Pending}, nil
	}
	s := seq[0]
	f.statuses[attempt] = seq[1:]
	return &gateway.TransactionStatusResult{IntentStatus: s, ErrorMessage: "boom"}, nil
}

func newExecutor(gw Gateway, n Notary) *Executor {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	return NewExecutor(gw, n, ExecutorConfig{RetryDelay: 0, PollInterval: 1, PollAttempts: 3}, nil, l)
}

func testProgram(t *testing.T) *manifest.Manifest {
	fm := &manifest.FundManager{BotAccount: "account_bot", BotBadge: "resource_badge", Component: "component_fund"}
	m, err := fm.StartUnstake()
	require.NoError(t, err)
	return m
}

func Test_Execute(t *testing.T) {
	t.Run("Should prepend the fee lock and succeed on commit", func(t *testing.T) {
		n := &fakeNotary{}
		gw := &fakeGateway{statuses: [][]gateway.TransactionStatus{{gateway.TransactionStatus_Pending, gateway.TransactionStatus_CommittedSuccess}}}
		res := newExecutor(gw, n).Execute(context.Background(), testProgram(t), decimal.NewFromInt(100))

		require.True(t, res.Success)
		assert.Nil(t, res.Error)
		assert.Equal(t, "txid_1", res.TxId)
		require.Len(t, n.manifests, 1)
		assert.True(t, strings.HasPrefix(n.manifests[0], "CALL_METHOD\n    Address(\"account_bot\")\n    \"lock_fee\"\n    Decimal(\"100\")"))
		assert.Equal(t, 2, gw.polls)
	})
	t.Run("Should retry exactly once after a committed failure", func(t *testing.T) {
		n := &fakeNotary{}
		gw := &fakeGateway{statuses: [][]gateway.TransactionStatus{
			{gateway.TransactionStatus_CommittedFailure},
			{gateway.TransactionStatus_CommittedSuccess},
		}}
		res := newExecutor(gw, n).Execute(context.Background(), testProgram(t), decimal.NewFromInt(100))

		require.True(t, res.Success)
		assert.Equal(t, "txid_2", res.TxId)
		assert.Equal(t, 2, gw.submits)
	})
	t.Run("Should give up after the second failure and keep the tx id", func(t *testing.T) {
		n := &fakeNotary{}
		gw := &fakeGateway{statuses: [][]gateway.TransactionStatus{
			{gateway.TransactionStatus_CommittedFailure},
			{gateway.TransactionStatus_PermanentlyRejected},
		}}
		res := newExecutor(gw, n).Execute(context.Background(), testProgram(t), decimal.NewFromInt(100))

		assert.False(t, res.Success)
		assert.Equal(t, "txid_2", res.TxId)
		assert.ErrorIs(t, res.Error, ErrTransactionFailed)
		assert.Equal(t, 2, gw.submits)
	})
	t.Run("Should fold submission errors into the result", func(t *testing.T) {
		n := &fakeNotary{}
		gw := &fakeGateway{submitErrs: []error{errors.New("gateway down"), errors.New("gateway down")}}
		res := newExecutor(gw, n).Execute(context.Background(), testProgram(t), decimal.NewFromInt(100))

		assert.False(t, res.Success)
		require.NotNil(t, res.Error)
		assert.Contains(t, res.Error.Error(), "gateway down")
		assert.Equal(t, 0, gw.polls)
	})
	t.Run("Should time out when the status never becomes terminal", func(t *testing.T) {
		n := &fakeNotary{}
		gw := &fakeGateway{statuses: [][]gateway.TransactionStatus{{}, {}}}
		res := newExecutor(gw, n).Execute(context.Background(), testProgram(t), decimal.NewFromInt(100))

		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Error, ErrTransactionTimeout)
		assert.Equal(t, 6, gw.polls)
	})
	t.Run("Should not submit when notarization fails", func(t *testing.T) {
		n := &fakeNotary{err: errors.New("signer down")}
		gw := &fakeGateway{}
		res := newExecutor(gw, n).Execute(context.Background(), testProgram(t), decimal.NewFromInt(100))

		assert.False(t, res.Success)
		assert.Empty(t, res.TxId)
		assert.Equal(t, 0, gw.submits)
	})
}
