package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"spinnergy/events"

	log "github.com/sirupsen/logrus"
)

// DefaultPublishTimeout bounds one outbound publish
const DefaultPublishTimeout = 5 * time.Second

// EventSubscriber is satisfied by *events.Bus
type EventSubscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler)
}

// EventMetrics is satisfied by *observability.MetricsProvider
type EventMetrics interface {
	RecordEventPublished(sink, eventType string)
}

// EventForwarder relays committed ledger events from the in-process bus to a message bus.
// Delivery is best effort: a failed publish is logged and never affects the ledger.
type EventForwarder struct {
	publisher MessagePublisher
	sink      string
	metrics   EventMetrics
	timeout   time.Duration
	now       func() time.Time
}

// NewEventForwarder creates a forwarder. metrics may be nil.
func NewEventForwarder(publisher MessagePublisher, sink string, metrics EventMetrics) *EventForwarder {
	return &EventForwarder{
		publisher: publisher,
		sink:      sink,
		metrics:   metrics,
		timeout:   DefaultPublishTimeout,
		now:       time.Now,
	}
}

// Attach subscribes the forwarder to every ledger event type
func (f *EventForwarder) Attach(bus EventSubscriber) {
	bus.Subscribe(events.EventTypeAccountCreated, f.forward)
	bus.Subscribe(events.EventTypeLedgerCommitted, f.forward)
}

func (f *EventForwarder) forward(ctx context.Context, event events.Event) {
	subject := MapEventToSubject(event)
	logger := log.WithFields(log.Fields{
		"sink":      f.sink,
		"subject":   subject,
		"eventType": event.Type(),
	})

	envelope, err := NewEventEnvelope(event, f.now())
	if err != nil {
		logger.WithError(err).Error("Failed to build event envelope")
		return
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		logger.WithError(err).Error("Failed to marshal event envelope")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.publisher.Publish(ctx, subject, partitionKey(event), data); err != nil {
		logger.WithError(err).Error("Failed to publish event")
		return
	}

	if f.metrics != nil {
		f.metrics.RecordEventPublished(f.sink, string(event.Type()))
	}
}
