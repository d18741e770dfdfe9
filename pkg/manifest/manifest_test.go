package manifest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFundManager() *FundManager {
	return &FundManager{
		BotAccount: "account_tdx_2_bot",
		BotBadge:   "resource_tdx_2_badge",
		Component:  "component_tdx_2_fund",
	}
}

func Test_Values(t *testing.T) {
	t.Run("Should render scalar values", func(t *testing.T) {
		assert.Equal(t, `Address("account_1")`, Address("account_1").Render())
		assert.Equal(t, `Decimal("1.5")`, Decimal("1.5").Render())
		assert.Equal(t, `"hello"`, String("hello").Render())
		assert.Equal(t, `true`, Bool(true).Render())
		assert.Equal(t, `NonFungibleLocalId("{abc}")`, NonFungibleLocalId("{abc}").Render())
	})
	t.Run("Should escape quotes inside strings", func(t *testing.T) {
		assert.Equal(t, `"a\"b"`, String(`a"b`).Render())
	})
	t.Run("Should render tuples", func(t *testing.T) {
		assert.Equal(t, `Tuple("m", "s")`, Tuple(String("m"), String("s")).Render())
	})
	t.Run("Should render maps in insertion order and replace existing keys", func(t *testing.T) {
		m := NewMap("Address", "Decimal")
		require.NoError(t, m.Set(Address("account_b"), Decimal("2")))
		require.NoError(t, m.Set(Address("account_a"), Decimal("1")))
		require.NoError(t, m.Set(Address("account_b"), Decimal("3")))

		assert.Equal(t, 2, m.Len())
		assert.Equal(t, `Map<Address, Decimal>(Address("account_b") => Decimal("3"), Address("account_a") => Decimal("1"))`, m.Render())
	})
	t.Run("Should reject entries of the wrong kind", func(t *testing.T) {
		m := NewMap("Address", "Decimal")
		assert.NotNil(t, m.Set(String("account_a"), Decimal("1")))
		assert.NotNil(t, m.Set(Address("account_a"), Bool(true)))
	})
	t.Run("Should render an empty map", func(t *testing.T) {
		assert.Equal(t, "Map<Address, Decimal>()", NewMap("Address", "Decimal").Render())
	})
}

func Test_Builders(t *testing.T) {
	fm := testFundManager()

	t.Run("Should build the unlock manifest behind a badge proof", func(t *testing.T) {
		m, err := fm.StartUnlockOwnerStakeUnits(decimal.RequireFromString("1500.25"))
		require.NoError(t, err)
		assert.Equal(t, []string{Method_CreateProofOfAmount, Method_StartUnlockOwnerStakeUnits}, m.Methods())

		rendered := m.Render()
		assert.Contains(t, rendered, `Address("account_tdx_2_bot")`)
		assert.Contains(t, rendered, `"create_proof_of_amount"`)
		assert.Contains(t, rendered, `Address("resource_tdx_2_badge")`)
		assert.Contains(t, rendered, `Decimal("1")`)
		assert.Contains(t, rendered, `"start_unlock_owner_stake_units"`)
		assert.Contains(t, rendered, `Decimal("1500.25")`)
		assert.Equal(t, 2, strings.Count(rendered, ";"))
	})
	t.Run("Should reject a non positive unlock amount", func(t *testing.T) {
		_, err := fm.StartUnlockOwnerStakeUnits(decimal.Zero)
		assert.NotNil(t, err)
	})
	t.Run("Should build the start unstake manifest", func(t *testing.T) {
		m, err := fm.StartUnstake()
		require.NoError(t, err)
		assert.Equal(t, []string{Method_CreateProofOfAmount, Method_StartUnstake}, m.Methods())
	})
	t.Run("Should build the finish unstake manifest with price messages", func(t *testing.T) {
		m, err := fm.FinishUnstake("{claim-1}", []PriceMessage{
			{Resource: "resource_xrd", Message: "GATEIO:XRD_USDT-0.01-1-1700000000", Signature: "sig"},
		})
		require.NoError(t, err)
		rendered := m.Render()
		assert.Contains(t, rendered, `NonFungibleLocalId("{claim-1}")`)
		assert.Contains(t, rendered, `Map<Address, Tuple>(Address("resource_xrd") => Tuple("GATEIO:XRD_USDT-0.01-1-1700000000", "sig"))`)
	})
	t.Run("Should require a claim id to finish the unstake", func(t *testing.T) {
		_, err := fm.FinishUnstake("", nil)
		assert.NotNil(t, err)
	})
	t.Run("Should build a distribution batch with the more left flag", func(t *testing.T) {
		m, err := fm.FundUnitsDistribution([]Payout{
			{Address: "account_a", Amount: "10.000000000000000000"},
			{Address: "account_b", Amount: "30.000000000000000000"},
		}, true)
		require.NoError(t, err)
		rendered := m.Render()
		assert.Contains(t, rendered, `Map<Address, Decimal>(Address("account_a") => Decimal("10.000000000000000000"), Address("account_b") => Decimal("30.000000000000000000"))`)
		assert.True(t, strings.HasSuffix(rendered, "true\n;"))
	})
	t.Run("Should build an empty closing distribution", func(t *testing.T) {
		m, err := fm.FundUnitsDistribution(nil, false)
		require.NoError(t, err)
		assert.Contains(t, m.Render(), "Map<Address, Decimal>()")
		assert.True(t, strings.HasSuffix(m.Render(), "false\n;"))
	})
	t.Run("Should reject invalid payout amounts", func(t *testing.T) {
		_, err := fm.FundUnitsDistribution([]Payout{{Address: "account_a", Amount: "ten"}}, false)
		assert.NotNil(t, err)
	})
	t.Run("Should fail when addresses are missing", func(t *testing.T) {
		incomplete := &FundManager{BotAccount: "account_tdx_2_bot"}
		_, err := incomplete.StartUnstake()
		assert.NotNil(t, err)
	})
	t.Run("Should prepend a lock fee without mutating the original", func(t *testing.T) {
		m, err := fm.StartUnstake()
		require.NoError(t, err)
		withFee := m.Prepend(LockFee(fm.BotAccount, decimal.NewFromInt(100)))

		assert.Equal(t, []string{Method_LockFee, Method_CreateProofOfAmount, Method_StartUnstake}, withFee.Methods())
		assert.Len(t, m.Instructions, 2)
		assert.Contains(t, withFee.Render(), `Decimal("100")`)
	})
}
