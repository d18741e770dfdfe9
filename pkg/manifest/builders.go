package manifest

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	Method_LockFee                    = "lock_fee"
	Method_CreateProofOfAmount        = "create_proof_of_amount"
	Method_StartUnlockOwnerStakeUnits = "start_unlock_owner_stake_units"
	Method_StartUnstake               = "start_unstake"
	Method_FinishUnstake              = "finish_unstake"
	Method_FundUnitsDistribution      = "fund_units_distribution"
)

// FundManager carries the addresses every fund manager call needs: the bot account holding the
// badge, the badge itself and the component.
type FundManager struct {
	BotAccount string
	BotBadge   string
	Component  string
}

func (f *FundManager) validate() error {
	if f.BotAccount == "" || f.BotBadge == "" || f.Component == "" {
		return errors.New("fund manager addresses are incomplete")
	}
	return nil
}

func LockFee(account string, amount decimal.Decimal) *CallMethod {
	return &CallMethod{
		Address: account,
		Method:  Method_LockFee,
		Args:    []Value{Decimal(amount.String())},
	}
}

func CreateProofOfAmount(account string, resource string, amount decimal.Decimal) *CallMethod {
	return &CallMethod{
		Address: account,
		Method:  Method_CreateProofOfAmount,
		Args:    []Value{Address(resource), Decimal(amount.String())},
	}
}

func (f *FundManager) badgeProof() *CallMethod {
	return CreateProofOfAmount(f.BotAccount, f.BotBadge, decimal.NewFromInt(1))
}

func (f *FundManager) call(method string, args ...Value) (*Manifest, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	return New(
		f.badgeProof(),
		&CallMethod{Address: f.Component, Method: method, Args: args},
	), nil
}

func (f *FundManager) StartUnlockOwnerStakeUnits(amount decimal.Decimal) (*Manifest, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("unlock amount must be positive, got %s", amount)
	}
	return f.call(Method_StartUnlockOwnerStakeUnits, Decimal(amount.String()))
}

func (f *FundManager) StartUnstake() (*Manifest, error) {
	return f.call(Method_StartUnstake)
}

// PriceMessage is a signed oracle quote keyed by the resource it prices.
type PriceMessage struct {
	Resource  string
	Message   string
	Signature string
}

func (f *FundManager) FinishUnstake(claimNftId string, prices []PriceMessage) (*Manifest, error) {
	if claimNftId == "" {
		return nil, errors.New("claim nft id is required")
	}
	priceMap := NewMap("Address", "Tuple")
	for _, p := range prices {
		if err := priceMap.Set(Address(p.Resource), Tuple(String(p.Message), String(p.Signature))); err != nil {
			return nil, err
		}
	}
	return f.call(Method_FinishUnstake, NonFungibleLocalId(claimNftId), priceMap)
}

type Payout struct {
	Address string
	Amount  string
}

// FundUnitsDistribution pays out one batch. moreLeft tells the component whether further batches follow.
func (f *FundManager) FundUnitsDistribution(payouts []Payout, moreLeft bool) (*Manifest, error) {
	payoutMap := NewMap("Address", "Decimal")
	for _, p := range payouts {
		if _, err := decimal.NewFromString(p.Amount); err != nil {
			return nil, fmt.Errorf("invalid payout amount '%s' for %s: %w", p.Amount, p.Address, err)
		}
		if err := payoutMap.Set(Address(p.Address), Decimal(p.Amount)); err != nil {
			return nil, err
		}
	}
	return f.call(Method_FundUnitsDistribution, payoutMap, Bool(moreLeft))
}
