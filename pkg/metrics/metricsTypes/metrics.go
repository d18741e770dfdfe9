package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_StepRun              = "settlement.step.run"
	Metric_Incr_TransactionSubmitted = "transaction.submitted"
	Metric_Incr_DistributionBatch    = "distribution.batch"
	Metric_Incr_DistributedAccounts  = "distribution.accounts"
	Metric_Incr_AlertSent            = "alert.sent"
	Metric_Incr_HttpRequest          = "rpc.http.request"

	Metric_Gauge_FeeBalance  = "bot.fee.balance"
	Metric_Gauge_PhaseMarker = "settlement.phase"

	Metric_Timing_StepDuration        = "settlement.step.duration"
	Metric_Timing_TransactionDuration = "transaction.duration"
	Metric_Timing_HttpDuration        = "rpc.http.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name: Metric_Incr_StepRun,
			Labels: []string{
				"step",
				"status",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_TransactionSubmitted,
			Labels: []string{
				"method",
				"outcome",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_DistributionBatch,
			Labels: []string{
				"outcome",
			},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_DistributedAccounts,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_AlertSent,
			Labels: []string{
				"outcome",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_HttpRequest,
			Labels: []string{
				"method",
				"pattern",
				"status_code",
			},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_FeeBalance,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_PhaseMarker,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_StepDuration,
			Labels: []string{
				"step",
				"status",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_TransactionDuration,
			Labels: []string{
				"method",
				"outcome",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_HttpDuration,
			Labels: []string{
				"method",
				"pattern",
				"status_code",
			},
		},
	},
}
