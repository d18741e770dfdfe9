// Package metrics fans metric writes out to every configured backend.
package metrics

import (
	"errors"
	"time"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/dogstatsd"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/prometheus"
	"go.uber.org/zap"
)

type MetricsSinkConfig struct {
	// DefaultLabels are appended to every metric written through the sink
	DefaultLabels []metricsTypes.MetricsLabel
}

type MetricsSink struct {
	config  *MetricsSinkConfig
	clients []metricsTypes.IMetricsClient
}

func NewMetricsSink(cfg *MetricsSinkConfig, clients []metricsTypes.IMetricsClient) (*MetricsSink, error) {
	if cfg == nil {
		cfg = &MetricsSinkConfig{}
	}
	return &MetricsSink{
		config:  cfg,
		clients: clients,
	}, nil
}

// NewNoopMetricsSink returns a sink without backends.
func NewNoopMetricsSink() *MetricsSink {
	return &MetricsSink{config: &MetricsSinkConfig{}}
}

func (ms *MetricsSink) withDefaults(labels []metricsTypes.MetricsLabel) []metricsTypes.MetricsLabel {
	if len(ms.config.DefaultLabels) == 0 {
		return labels
	}
	out := make([]metricsTypes.MetricsLabel, 0, len(labels)+len(ms.config.DefaultLabels))
	out = append(out, labels...)
	return append(out, ms.config.DefaultLabels...)
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	var errs []error
	for _, client := range ms.clients {
		errs = append(errs, client.Incr(name, ms.withDefaults(labels), value))
	}
	return errors.Join(errs...)
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	var errs []error
	for _, client := range ms.clients {
		errs = append(errs, client.Gauge(name, value, ms.withDefaults(labels)))
	}
	return errors.Join(errs...)
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	var errs []error
	for _, client := range ms.clients {
		errs = append(errs, client.Timing(name, value, ms.withDefaults(labels)))
	}
	return errors.Join(errs...)
}

func (ms *MetricsSink) Flush() {
	for _, client := range ms.clients {
		client.Flush()
	}
}

// InitMetricsSinksFromConfig builds a client for every backend enabled in cfg.
func InitMetricsSinksFromConfig(cfg *config.Config, l *zap.Logger) ([]metricsTypes.IMetricsClient, error) {
	clients := make([]metricsTypes.IMetricsClient, 0)

	if cfg.DataDogConfig.StatsdConfig.Enabled {
		dd, err := dogstatsd.NewDogStatsdMetricsClient(cfg.DataDogConfig.StatsdConfig.Url, cfg.DataDogConfig.StatsdConfig.SampleRate, l)
		if err != nil {
			return nil, err
		}
		l.Sugar().Infow("DataDog statsd metrics enabled", zap.String("url", cfg.DataDogConfig.StatsdConfig.Url))
		clients = append(clients, dd)
	}

	if cfg.PrometheusConfig.Enabled {
		pc, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		if err != nil {
			return nil, err
		}
		l.Sugar().Infow("Prometheus metrics enabled", zap.Int("port", cfg.PrometheusConfig.Port))
		clients = append(clients, pc)
	}
	return clients, nil
}
