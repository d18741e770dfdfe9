package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type NetworkName string

const (
	Network_Mainnet  NetworkName = "mainnet"
	Network_Stokenet NetworkName = "stokenet"
)

func (n NetworkName) String() string {
	return string(n)
}

func ParseNetwork(name string) (NetworkName, error) {
	switch NetworkName(name) {
	case Network_Mainnet, Network_Stokenet:
		return NetworkName(name), nil
	}
	return "", fmt.Errorf("unsupported network '%s'", name)
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

type GatewayConfig struct {
	Url          string
	PollInterval time.Duration
	PollAttempts int
}

type OracleConfig struct {
	Url      string
	MarketId string
	NftId    string
}

type SignerConfig struct {
	Url      string
	ApiToken string
}

type TelegramConfig struct {
	BotToken string
	ChatId   string
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatId != ""
}

type RpcConfig struct {
	HttpPort    int
	AdminSecret string
	CorsOrigins []string
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type TracingConfig struct {
	Enabled bool
}

type DataDogConfig struct {
	StatsdConfig  StatsdConfig
	TracingConfig TracingConfig
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

// PipelineConfig holds the settlement thresholds and windows.
type PipelineConfig struct {
	// UnlockThreshold is the minimum amount of locked owner stake units required to start an unlock.
	UnlockThreshold decimal.Decimal
	// FeeLock is the fee locked on the bot account for unlock/unstake transactions.
	FeeLock decimal.Decimal
	// DistributionFeeLock is the fee locked for each distribution batch.
	DistributionFeeLock decimal.Decimal
	BatchSize           int
	// UnstakeLookback bounds how old an unlock_started snapshot may be when starting the unstake.
	UnstakeLookback time.Duration
	// DistributionLookback bounds how old an unstake_started snapshot may be when finishing the unstake.
	DistributionLookback time.Duration
	TxRetryDelay         time.Duration
	FeeBalanceThreshold  decimal.Decimal
	// MinHolderBalance excludes depositors holding this amount or less.
	MinHolderBalance decimal.Decimal
}

type ScheduleConfig struct {
	Enabled          bool
	Step1Interval    time.Duration
	Step2Interval    time.Duration
	Step3Interval    time.Duration
	FeeCheckInterval time.Duration
}

type Config struct {
	Debug            bool
	Network          NetworkName
	DatabaseConfig   DatabaseConfig
	GatewayConfig    GatewayConfig
	OracleConfig     OracleConfig
	SignerConfig     SignerConfig
	TelegramConfig   TelegramConfig
	RpcConfig        RpcConfig
	DataDogConfig    DataDogConfig
	PrometheusConfig PrometheusConfig
	PipelineConfig   PipelineConfig
	ScheduleConfig   ScheduleConfig
	LedgerOverrides  LedgerOverrides
}

type LedgerOverrides struct {
	FundManagerComponent  string
	FundBotBadge          string
	FundUnitResource      string
	CollateralNftResource string
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

func getDecimal(key string, fallback string) decimal.Decimal {
	raw := viper.GetString(normalizeFlagName(key))
	if raw == "" {
		raw = fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.RequireFromString(fallback)
	}
	return d
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d := viper.GetDuration(normalizeFlagName(key))
	if d <= 0 {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := viper.GetInt(normalizeFlagName(key))
	if v <= 0 {
		return fallback
	}
	return v
}

// NewConfig reads the current viper state into a Config.
// Values not set through flags or environment fall back to the documented defaults.
func NewConfig() *Config {
	network, err := ParseNetwork(viper.GetString(normalizeFlagName(Network)))
	if err != nil {
		network = Network_Mainnet
	}

	return &Config{
		Debug:   viper.GetBool(normalizeFlagName(Debug)),
		Network: network,

		DatabaseConfig: DatabaseConfig{
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
		},

		GatewayConfig: GatewayConfig{
			Url:          viper.GetString(normalizeFlagName(GatewayUrl)),
			PollInterval: getDuration(GatewayPollInterval, 2*time.Second),
			PollAttempts: getInt(GatewayPollAttempts, 30),
		},

		OracleConfig: OracleConfig{
			Url:      viper.GetString(normalizeFlagName(OracleUrl)),
			MarketId: viper.GetString(normalizeFlagName(OracleMarketId)),
			NftId:    viper.GetString(normalizeFlagName(OracleNftId)),
		},

		SignerConfig: SignerConfig{
			Url:      viper.GetString(normalizeFlagName(SignerUrl)),
			ApiToken: viper.GetString(normalizeFlagName(SignerApiToken)),
		},

		TelegramConfig: TelegramConfig{
			BotToken: viper.GetString(normalizeFlagName(TelegramBotToken)),
			ChatId:   viper.GetString(normalizeFlagName(TelegramChatId)),
		},

		RpcConfig: RpcConfig{
			HttpPort:    viper.GetInt(normalizeFlagName(RpcHttpPort)),
			AdminSecret: viper.GetString(normalizeFlagName(RpcAdminSecret)),
			CorsOrigins: parseStringAsList(viper.GetString(normalizeFlagName(RpcCorsOrigins))),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
			TracingConfig: TracingConfig{
				Enabled: viper.GetBool(normalizeFlagName(DataDogTracingEnabled)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		PipelineConfig: PipelineConfig{
			UnlockThreshold:      getDecimal(PipelineUnlockThreshold, "1000"),
			FeeLock:              getDecimal(PipelineFeeLock, "100"),
			DistributionFeeLock:  getDecimal(PipelineDistributionFeeLock, "100"),
			BatchSize:            getInt(PipelineBatchSize, 50),
			UnstakeLookback:      getDuration(PipelineUnstakeLookback, 29*24*time.Hour),
			DistributionLookback: getDuration(PipelineDistributionLookback, 8*24*time.Hour),
			TxRetryDelay:         getDuration(PipelineTxRetryDelay, 500*time.Millisecond),
			FeeBalanceThreshold:  getDecimal(PipelineFeeBalanceThreshold, "8"),
			MinHolderBalance:     getDecimal(PipelineMinHolderBalance, "1"),
		},

		ScheduleConfig: ScheduleConfig{
			Enabled:          viper.GetBool(normalizeFlagName(ScheduleEnabled)),
			Step1Interval:    getDuration(ScheduleStep1Interval, 24*time.Hour),
			Step2Interval:    getDuration(ScheduleStep2Interval, time.Hour),
			Step3Interval:    getDuration(ScheduleStep3Interval, time.Hour),
			FeeCheckInterval: getDuration(ScheduleFeeCheckInterval, 24*time.Hour),
		},

		LedgerOverrides: LedgerOverrides{
			FundManagerComponent:  viper.GetString(normalizeFlagName(LedgerFundManagerComponent)),
			FundBotBadge:          viper.GetString(normalizeFlagName(LedgerFundBotBadge)),
			FundUnitResource:      viper.GetString(normalizeFlagName(LedgerFundUnitResource)),
			CollateralNftResource: viper.GetString(normalizeFlagName(LedgerCollateralNftResource)),
		},
	}
}

// LedgerAddresses are the on-ledger entities the settler interacts with.
type LedgerAddresses struct {
	DappDefinition       string
	Validator            string
	FundManagerComponent string
	FundBotBadge         string
	FundUnitResource     string
	NodeLsuResource      string
	XrdResource          string
	OracleNftResource    string
	// CollateralNftResource is the lending protocol's collateral position NFT. Empty disables the collateral merge.
	CollateralNftResource string
}

func (a *LedgerAddresses) Validate() error {
	required := map[string]string{
		"validator":              a.Validator,
		"fund manager component": a.FundManagerComponent,
		"fund bot badge":         a.FundBotBadge,
		"fund unit resource":     a.FundUnitResource,
		"node lsu resource":      a.NodeLsuResource,
		"xrd resource":           a.XrdResource,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("ledger address for %s is not configured", name)
		}
	}
	return nil
}

var addressesByNetwork = map[NetworkName]LedgerAddresses{
	Network_Mainnet: {
		DappDefinition:    "account_rdx128er8y5hetcj98krndumys93jyerq659ug0uyk6l6ljdtd9mrcevwf",
		Validator:         "validator_rdx1swez5cqmw4d6tls0mcldehnfhpxge0mq7cmnypnjz909apqqjgx6n9",
		NodeLsuResource:   "resource_rdx1t4d3ka2x2j35e30gh75j6hma6fccwdsft88h2v2ul4qmqshnwjmxf7",
		XrdResource:       "resource_rdx1tknxxxxxxxxxradxrdxxxxxxxxx009923554798xxxxxxxxxradxrd",
		OracleNftResource: "resource_rdx1nfeeyrpqdkrcjmng09tdrtr6cpknlz0qadra0p3wc3ffg7p6w848gd",
	},
	Network_Stokenet: {
		DappDefinition:       "account_tdx_2_129zymzhffm45w5jyccyu9x0tv5xs7qs76zxzrfsd7gn76f7k5reus2",
		Validator:            "validator_tdx_2_1svff7mkddhm9dy325f3ckx72cxqsl49ewy74667pchqfkxl7wxpa8r",
		FundManagerComponent: "component_tdx_2_1cpdhxgf8nmvzczs9ttvaf3307lq8m4wdky66rpn4zy5qdaat0av5sg",
		FundBotBadge:         "resource_tdx_2_1t40pyc05pfmsqvslxpnystfyxe654h856r049gfxc009cjrp6kluta",
		FundUnitResource:     "resource_tdx_2_1t4ny2slhdk7dgshdaxggs3efddfp8j3uf838km74fcys9f8lwttd3n",
		NodeLsuResource:      "resource_tdx_2_1thrg4addeue0w87wksukm86updhptw9zr7z4xlrjpecltgpfpxhxce",
		XrdResource:          "resource_tdx_2_1tknxxxxxxxxxradxrdxxxxxxxxx009923554798xxxxxxxxxtfd2jc",
		OracleNftResource:    "resource_tdx_2_1nt8kpf7m6g9l0p6w6yu4jd0pc4vac564s8f20qmzf782r90fmrgrpt",
	},
}

// GetAddressesForNetwork returns the network defaults.
func GetAddressesForNetwork(network NetworkName) (*LedgerAddresses, error) {
	addrs, ok := addressesByNetwork[network]
	if !ok {
		return nil, fmt.Errorf("no addresses configured for network '%s'", network)
	}
	return &addrs, nil
}

// GetLedgerAddresses returns the network defaults with any configured overrides applied.
func (c *Config) GetLedgerAddresses() (*LedgerAddresses, error) {
	addrs, err := GetAddressesForNetwork(c.Network)
	if err != nil {
		return nil, err
	}
	o := c.LedgerOverrides
	if o.FundManagerComponent != "" {
		addrs.FundManagerComponent = o.FundManagerComponent
	}
	if o.FundBotBadge != "" {
		addrs.FundBotBadge = o.FundBotBadge
	}
	if o.FundUnitResource != "" {
		addrs.FundUnitResource = o.FundUnitResource
	}
	if o.CollateralNftResource != "" {
		addrs.CollateralNftResource = o.CollateralNftResource
	}
	return addrs, addrs.Validate()
}

// DefaultOracleUrl returns the price oracle backend for the network.
func (c *Config) DefaultOracleUrl() string {
	if c.Network == Network_Stokenet {
		return "https://dev-test-radix-oracle-api.morpher.com"
	}
	return "https://radix-oracle-api.morpher.com"
}

// DefaultGatewayUrl returns the public ledger gateway for the network.
func (c *Config) DefaultGatewayUrl() string {
	if c.Network == Network_Stokenet {
		return "https://stokenet.radixdlt.com"
	}
	return "https://mainnet.radixdlt.com"
}
