package config

import (
	"regexp"
	"strings"
)

const ENV_PREFIX = "SETTLER"

// Flag and viper keys. Dots separate sections, dashes separate words.
const (
	Debug   = "debug"
	Network = "network"

	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"

	GatewayUrl          = "gateway.url"
	GatewayPollInterval = "gateway.poll-interval"
	GatewayPollAttempts = "gateway.poll-attempts"

	OracleUrl      = "oracle.url"
	OracleMarketId = "oracle.market-id"
	OracleNftId    = "oracle.nft-id"

	SignerUrl      = "signer.url"
	SignerApiToken = "signer.api-token"

	TelegramBotToken = "telegram.bot-token"
	TelegramChatId   = "telegram.chat-id"

	RpcHttpPort    = "rpc.http-port"
	RpcAdminSecret = "rpc.admin-secret"
	RpcCorsOrigins = "rpc.cors-origins"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"
	DataDogTracingEnabled   = "datadog.tracing.enabled"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	PipelineUnlockThreshold      = "pipeline.unlock-threshold"
	PipelineFeeLock              = "pipeline.fee-lock"
	PipelineDistributionFeeLock  = "pipeline.distribution-fee-lock"
	PipelineBatchSize            = "pipeline.batch-size"
	PipelineUnstakeLookback      = "pipeline.unstake-lookback"
	PipelineDistributionLookback = "pipeline.distribution-lookback"
	PipelineTxRetryDelay         = "pipeline.tx-retry-delay"
	PipelineFeeBalanceThreshold  = "pipeline.fee-balance-threshold"
	PipelineMinHolderBalance     = "pipeline.min-holder-balance"

	ScheduleEnabled          = "schedule.enabled"
	ScheduleStep1Interval    = "schedule.step1-interval"
	ScheduleStep2Interval    = "schedule.step2-interval"
	ScheduleStep3Interval    = "schedule.step3-interval"
	ScheduleFeeCheckInterval = "schedule.fee-check-interval"

	LedgerFundManagerComponent  = "ledger.fund-manager-component"
	LedgerFundBotBadge          = "ledger.fund-bot-badge"
	LedgerFundUnitResource      = "ledger.fund-unit-resource"
	LedgerCollateralNftResource = "ledger.collateral-nft-resource"

	SnapshotExportDate   = "snapshot.date"
	SnapshotExportOutput = "snapshot.output"
)

var matchFirstCap = regexp.MustCompile("([A-Z])([A-Z][a-z])")
var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")

// KebabToSnakeCase converts a flag name into the key viper stores it under.
// Section separators (dots) are preserved.
func KebabToSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(strings.ReplaceAll(snake, "-", "_"))
}

func parseStringAsList(envVar string) []string {
	if envVar == "" {
		return []string{}
	}
	stringList := strings.Split(envVar, ",")

	l := make([]string, 0)
	for _, s := range stringList {
		s = strings.TrimSpace(s)
		if s != "" {
			l = append(l, s)
		}
	}
	return l
}
