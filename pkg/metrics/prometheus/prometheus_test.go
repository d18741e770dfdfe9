package prometheus

import (
	"testing"
	"time"

	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *PrometheusMetricsClient {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	pmc, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
		Metrics:    metricsTypes.MetricTypes,
		Registerer: prometheus.NewRegistry(),
	}, l)
	require.Nil(t, err)
	return pmc
}

func Test_UnexpectedLabelsParsing(t *testing.T) {
	pmc := setup(t)

	t.Run("Should return no error for all labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_StepDuration, []metricsTypes.MetricsLabel{
			{Name: "step", Value: "step1"},
			{Name: "status", Value: "completed"},
		})
		assert.Nil(t, err)
	})
	t.Run("Should return no error for a subset labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_StepDuration, []metricsTypes.MetricsLabel{
			{Name: "step", Value: "step1"},
		})
		assert.Nil(t, err)
	})
	t.Run("Should return an error for unexpected labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_StepDuration, []metricsTypes.MetricsLabel{
			{Name: "step", Value: "step1"},
			{Name: "unexpectedLabel", Value: "unexpectedValue"},
		})
		assert.NotNil(t, err)
	})
	t.Run("Should return an error for unexpected labels when expecting 0 labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Gauge, metricsTypes.Metric_Gauge_FeeBalance, []metricsTypes.MetricsLabel{
			{Name: "step", Value: "step1"},
		})
		assert.NotNil(t, err)
	})
}

func Test_Recording(t *testing.T) {
	pmc := setup(t)

	t.Run("Should count with partial labels", func(t *testing.T) {
		require.Nil(t, pmc.Incr(metricsTypes.Metric_Incr_StepRun, []metricsTypes.MetricsLabel{{Name: "step", Value: "step1"}}, 1))
		require.Nil(t, pmc.Incr(metricsTypes.Metric_Incr_StepRun, []metricsTypes.MetricsLabel{{Name: "step", Value: "step1"}}, 2))
		assert.Equal(t, float64(3), testutil.ToFloat64(pmc.counters[metricsTypes.Metric_Incr_StepRun].WithLabelValues("step1", "")))
	})
	t.Run("Should set gauges", func(t *testing.T) {
		require.Nil(t, pmc.Gauge(metricsTypes.Metric_Gauge_FeeBalance, 12.5, nil))
		assert.Equal(t, 12.5, testutil.ToFloat64(pmc.gauges[metricsTypes.Metric_Gauge_FeeBalance]))
	})
	t.Run("Should observe timings", func(t *testing.T) {
		require.Nil(t, pmc.Timing(metricsTypes.Metric_Timing_StepDuration, 50*time.Millisecond, []metricsTypes.MetricsLabel{
			{Name: "step", Value: "step2"},
			{Name: "status", Value: "completed"},
		}))
		assert.Equal(t, 1, testutil.CollectAndCount(pmc.histograms[metricsTypes.Metric_Timing_StepDuration]))
	})
	t.Run("Should ignore unknown metrics", func(t *testing.T) {
		assert.Nil(t, pmc.Incr("unknown.metric", nil, 1))
	})
	t.Run("Should sanitize metric names", func(t *testing.T) {
		assert.Equal(t, "settlement_step_run", metricName(metricsTypes.Metric_Incr_StepRun))
	})
}
