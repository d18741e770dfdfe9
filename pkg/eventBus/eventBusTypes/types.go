// Package eventBusTypes defines the events passed between settlement components.
package eventBusTypes

import (
	"context"
	"sync"
	"time"
)

type EventName string

func (en *EventName) String() string {
	return string(*en)
}

var (
	// Event_Alert carries a message for the operators.
	Event_Alert EventName = "alert"
)

type Event struct {
	Name EventName
	Data any
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

// ConsumerList is a thread-safe collection of consumers.
type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

// Remove removes the consumer with a matching Id.
func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

// GetAll returns a snapshot of the current consumers.
func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]*Consumer, len(cl.consumers))
	copy(out, cl.consumers)
	return out
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}

type AlertSeverity string

const (
	AlertSeverity_Info    AlertSeverity = "info"
	AlertSeverity_Warning AlertSeverity = "warning"
	AlertSeverity_Error   AlertSeverity = "error"
)

// AlertData is the payload of Event_Alert.
type AlertData struct {
	Severity AlertSeverity
	Source   string
	Message  string
	Time     time.Time
}
