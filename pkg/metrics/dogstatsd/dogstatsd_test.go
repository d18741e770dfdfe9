package dogstatsd

import (
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

func Test_DogStatsdMetricsClient(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	client := NewDogStatsdMetricsClientWithClient(&statsd.NoOpClient{}, 0, l)

	assert.Equal(t, float64(1), client.sampleRate)
	assert.Nil(t, client.Incr(metricsTypes.Metric_Incr_StepRun, []metricsTypes.MetricsLabel{{Name: "step", Value: "step1"}}, 1))
	assert.Nil(t, client.Gauge(metricsTypes.Metric_Gauge_FeeBalance, 10, nil))
	assert.Nil(t, client.Timing(metricsTypes.Metric_Timing_StepDuration, time.Second, nil))
	client.Flush()
}

func Test_FormatTags(t *testing.T) {
	assert.Equal(t, []string{"step:step1", "status:completed"}, formatTags([]metricsTypes.MetricsLabel{
		{Name: "step", Value: "step1"},
		{Name: "status", Value: "completed"},
	}))
	assert.Len(t, formatTags(nil), 0)
}
