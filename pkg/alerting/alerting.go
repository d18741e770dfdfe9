// Package alerting routes operator alerts from the event bus to a messaging channel.
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hedgefund-labs/fund-settler/pkg/eventBus/eventBusTypes"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

// Notifier is the alerting channel consumed by the settlement pipeline. Notify is best effort and never blocks.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Sender delivers a rendered alert, e.g. the telegram client.
type Sender interface {
	SendMessage(ctx context.Context, text string) error
}

// BusNotifier publishes alerts on the event bus.
type BusNotifier struct {
	bus    eventBusTypes.IEventBus
	source string
}

func NewBusNotifier(bus eventBusTypes.IEventBus, source string) *BusNotifier {
	return &BusNotifier{bus: bus, source: source}
}

func (n *BusNotifier) Notify(ctx context.Context, message string) {
	n.bus.Publish(&eventBusTypes.Event{
		Name: eventBusTypes.Event_Alert,
		Data: &eventBusTypes.AlertData{
			Severity: eventBusTypes.AlertSeverity_Error,
			Source:   n.source,
			Message:  message,
			Time:     time.Now().UTC(),
		},
	})
}

// LogSender is used when no messaging channel is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(l *zap.Logger) *LogSender {
	return &LogSender{logger: l}
}

func (s *LogSender) SendMessage(ctx context.Context, text string) error {
	s.logger.Sugar().Warnw("Alert", zap.String("message", text))
	return nil
}

type Dispatcher struct {
	bus         eventBusTypes.IEventBus
	sender      Sender
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger
	prefix      string
	sendTimeout time.Duration

	consumer *eventBusTypes.Consumer
	wg       sync.WaitGroup
}

func NewDispatcher(bus eventBusTypes.IEventBus, sender Sender, prefix string, ms *metrics.MetricsSink, l *zap.Logger) *Dispatcher {
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &Dispatcher{
		bus:         bus,
		sender:      sender,
		metricsSink: ms,
		logger:      l,
		prefix:      prefix,
		sendTimeout: 10 * time.Second,
	}
}

func (d *Dispatcher) render(alert *eventBusTypes.AlertData) string {
	msg := alert.Message
	if alert.Source != "" {
		msg = fmt.Sprintf("%s: %s", alert.Source, msg)
	}
	if d.prefix != "" {
		msg = fmt.Sprintf("[%s] %s", d.prefix, msg)
	}
	return msg
}

func (d *Dispatcher) handle(ctx context.Context, event *eventBusTypes.Event) {
	if event.Name != eventBusTypes.Event_Alert {
		return
	}
	alert, ok := event.Data.(*eventBusTypes.AlertData)
	if !ok {
		d.logger.Sugar().Errorw("Alert event carried unexpected data", zap.Any("data", event.Data))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.sender.SendMessage(sendCtx, d.render(alert)); err != nil {
		_ = d.metricsSink.Incr(metricsTypes.Metric_Incr_AlertSent, []metricsTypes.MetricsLabel{{Name: "outcome", Value: "failure"}}, 1)
		d.logger.Sugar().Errorw("Failed to deliver alert",
			zap.String("message", alert.Message),
			zap.Error(err),
		)
		return
	}
	_ = d.metricsSink.Incr(metricsTypes.Metric_Incr_AlertSent, []metricsTypes.MetricsLabel{{Name: "outcome", Value: "success"}}, 1)
}

// Start subscribes to the bus and delivers alerts until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.consumer = &eventBusTypes.Consumer{
		Id:      eventBusTypes.ConsumerId(fmt.Sprintf("alerting-%s", uuid.New().String())),
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, 100),
	}
	d.bus.Subscribe(d.consumer)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.bus.Unsubscribe(d.consumer)
		for {
			select {
			case <-ctx.Done():
				d.drain()
				return
			case event := <-d.consumer.Channel:
				d.handle(ctx, event)
			}
		}
	}()
}

// drain delivers alerts already queued at shutdown.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.consumer.Channel:
			d.handle(context.Background(), event)
		default:
			return
		}
	}
}

// Wait blocks until the dispatch loop exits.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
