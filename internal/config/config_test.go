package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestParseNetwork(t *testing.T) {
	tests := []struct {
		input    string
		expected NetworkName
		hasError bool
	}{
		{"mainnet", Network_Mainnet, false},
		{"stokenet", Network_Stokenet, false},
		{"", "", true},
		{"holesky", "", true},
	}

	for _, test := range tests {
		result, err := ParseNetwork(test.input)
		if test.hasError {
			assert.Error(t, err, test.input)
		} else {
			assert.NoError(t, err, test.input)
		}
		assert.Equal(t, test.expected, result)
	}
}

func Test_NewConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("Should fall back to defaults", func(t *testing.T) {
		viper.Reset()
		cfg := NewConfig()

		assert.Equal(t, Network_Mainnet, cfg.Network)
		assert.Equal(t, 50, cfg.PipelineConfig.BatchSize)
		assert.True(t, decimal.NewFromInt(100).Equal(cfg.PipelineConfig.FeeLock))
		assert.True(t, decimal.NewFromInt(8).Equal(cfg.PipelineConfig.FeeBalanceThreshold))
		assert.Equal(t, 29*24*time.Hour, cfg.PipelineConfig.UnstakeLookback)
		assert.Equal(t, 8*24*time.Hour, cfg.PipelineConfig.DistributionLookback)
		assert.Equal(t, 500*time.Millisecond, cfg.PipelineConfig.TxRetryDelay)
		assert.False(t, cfg.TelegramConfig.Enabled())
	})

	t.Run("Should read values set in viper", func(t *testing.T) {
		viper.Reset()
		viper.Set(KebabToSnakeCase(Network), "stokenet")
		viper.Set(KebabToSnakeCase(PipelineUnlockThreshold), "2500.5")
		viper.Set(KebabToSnakeCase(PipelineBatchSize), 25)
		viper.Set(KebabToSnakeCase(RpcCorsOrigins), "https://a.example,https://b.example")
		viper.Set(KebabToSnakeCase(TelegramBotToken), "token")
		viper.Set(KebabToSnakeCase(TelegramChatId), "-100")

		cfg := NewConfig()
		assert.Equal(t, Network_Stokenet, cfg.Network)
		assert.Equal(t, "2500.5", cfg.PipelineConfig.UnlockThreshold.String())
		assert.Equal(t, 25, cfg.PipelineConfig.BatchSize)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.RpcConfig.CorsOrigins)
		assert.True(t, cfg.TelegramConfig.Enabled())
	})

	t.Run("Should ignore an unparsable decimal", func(t *testing.T) {
		viper.Reset()
		viper.Set(KebabToSnakeCase(PipelineFeeLock), "not-a-number")

		cfg := NewConfig()
		assert.Equal(t, "100", cfg.PipelineConfig.FeeLock.String())
	})
}

func Test_GetLedgerAddresses(t *testing.T) {
	t.Run("Stokenet defaults are complete", func(t *testing.T) {
		cfg := &Config{Network: Network_Stokenet}
		addrs, err := cfg.GetLedgerAddresses()
		assert.NoError(t, err)
		assert.Contains(t, addrs.Validator, "validator_tdx_2_")
		assert.Empty(t, addrs.CollateralNftResource)
	})
	t.Run("Mainnet requires the fund addresses to be configured", func(t *testing.T) {
		cfg := &Config{Network: Network_Mainnet}
		_, err := cfg.GetLedgerAddresses()
		assert.Error(t, err)
	})
	t.Run("Overrides are applied", func(t *testing.T) {
		cfg := &Config{
			Network: Network_Mainnet,
			LedgerOverrides: LedgerOverrides{
				FundManagerComponent:  "component_rdx1fund",
				FundBotBadge:          "resource_rdx1badge",
				FundUnitResource:      "resource_rdx1units",
				CollateralNftResource: "resource_rdx1collateral",
			},
		}
		addrs, err := cfg.GetLedgerAddresses()
		assert.NoError(t, err)
		assert.Equal(t, "component_rdx1fund", addrs.FundManagerComponent)
		assert.Equal(t, "resource_rdx1collateral", addrs.CollateralNftResource)

		defaults, _ := GetAddressesForNetwork(Network_Mainnet)
		assert.Empty(t, defaults.FundManagerComponent)
	})
}
