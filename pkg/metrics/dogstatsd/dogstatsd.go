package dogstatsd

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

type DogStatsdMetricsClient struct {
	client     statsd.ClientInterface
	sampleRate float64
	logger     *zap.Logger
}

func NewDogStatsdMetricsClient(addr string, sampleRate float64, l *zap.Logger) (*DogStatsdMetricsClient, error) {
	client, err := statsd.New(addr, statsd.WithNamespace("settler."))
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}
	return NewDogStatsdMetricsClientWithClient(client, sampleRate, l), nil
}

func NewDogStatsdMetricsClientWithClient(client statsd.ClientInterface, sampleRate float64, l *zap.Logger) *DogStatsdMetricsClient {
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1
	}
	return &DogStatsdMetricsClient{
		client:     client,
		sampleRate: sampleRate,
		logger:     l,
	}
}

func formatTags(labels []metricsTypes.MetricsLabel) []string {
	tags := make([]string, 0, len(labels))
	for _, l := range labels {
		tags = append(tags, fmt.Sprintf("%s:%s", l.Name, l.Value))
	}
	return tags
}

func (d *DogStatsdMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	return d.client.Count(name, int64(value), formatTags(labels), d.sampleRate)
}

func (d *DogStatsdMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return d.client.Gauge(name, value, formatTags(labels), d.sampleRate)
}

func (d *DogStatsdMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return d.client.Timing(name, value, formatTags(labels), d.sampleRate)
}

func (d *DogStatsdMetricsClient) Flush() {
	if err := d.client.Flush(); err != nil {
		d.logger.Sugar().Warnw("Failed to flush statsd client", zap.Error(err))
	}
}
