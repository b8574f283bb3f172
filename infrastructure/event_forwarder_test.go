package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"spinnergy/events"
	"spinnergy/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	key     string
	data    []byte
}

// MockMessagePublisher records published messages
type MockMessagePublisher struct {
	mu           sync.Mutex
	Messages     []publishedMessage
	PublishError error
}

func (m *MockMessagePublisher) Publish(ctx context.Context, subject, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.Messages = append(m.Messages, publishedMessage{subject: subject, key: key, data: data})
	return nil
}

func (m *MockMessagePublisher) Close() error { return nil }

type countingMetrics struct {
	mu        sync.Mutex
	published map[string]int
}

func (c *countingMetrics) RecordEventPublished(sink, eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.published == nil {
		c.published = make(map[string]int)
	}
	c.published[sink+"/"+eventType]++
}

func TestMapEventToSubject(t *testing.T) {
	assert.Equal(t, SubjectAccountCreated, MapEventToSubject(events.AccountCreatedEvent{}))
	assert.Equal(t, SubjectLedgerCommitted, MapEventToSubject(events.LedgerCommittedEvent{}))
	assert.ElementsMatch(t, []string{SubjectAccountCreated, SubjectLedgerCommitted}, GetAllSubjects())
}

func TestEventForwarder_PublishesCommittedEvents(t *testing.T) {
	bus := events.NewBus()
	publisher := &MockMessagePublisher{}
	metrics := &countingMetrics{}

	forwarder := NewEventForwarder(publisher, "nats", metrics)
	forwarder.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	forwarder.Attach(bus)

	bus.Emit(context.Background(), events.LedgerCommittedEvent{
		EventID:   "e-1",
		AccountID: "u_alice",
		Kind:      models.EventKindCredit,
		Amount:    decimal.RequireFromString("2.5"),
		Balance:   decimal.RequireFromString("12.5"),
		Version:   3,
		Reason:    models.ReasonSpin,
	})
	bus.Wait()

	require.Len(t, publisher.Messages, 1)
	msg := publisher.Messages[0]
	assert.Equal(t, SubjectLedgerCommitted, msg.subject)
	assert.Equal(t, "u_alice", msg.key)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.data, &envelope))
	assert.Equal(t, string(events.EventTypeLedgerCommitted), envelope.EventType)
	assert.Equal(t, SourceService, envelope.SourceService)
	assert.NotEmpty(t, envelope.EventID)

	var payload events.LedgerCommittedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, int64(3), payload.Version)
	assert.True(t, decimal.RequireFromString("12.5").Equal(payload.Balance))

	assert.Equal(t, 1, metrics.published["nats/ledger_committed"])
}

func TestEventForwarder_PublishFailureIsSwallowed(t *testing.T) {
	bus := events.NewBus()
	publisher := &MockMessagePublisher{PublishError: errors.New("broker down")}
	metrics := &countingMetrics{}

	NewEventForwarder(publisher, "kafka", metrics).Attach(bus)

	bus.Emit(context.Background(), events.AccountCreatedEvent{AccountID: "u_bob", Name: "Bob"})
	bus.Wait()

	assert.Empty(t, publisher.Messages)
	assert.Empty(t, metrics.published)
}

func TestEventForwarder_NilMetrics(t *testing.T) {
	bus := events.NewBus()
	publisher := &MockMessagePublisher{}

	NewEventForwarder(publisher, "nats", nil).Attach(bus)
	bus.Emit(context.Background(), events.AccountCreatedEvent{AccountID: "u_bob", Name: "Bob"})
	bus.Wait()

	require.Len(t, publisher.Messages, 1)
	assert.Equal(t, SubjectAccountCreated, publisher.Messages[0].subject)
	assert.Equal(t, "u_bob", publisher.Messages[0].key)
}

func TestBuildKafkaMessage(t *testing.T) {
	msg := buildKafkaMessage(SubjectLedgerCommitted, "u_alice", []byte(`{}`))

	assert.Equal(t, []byte("u_alice"), msg.Key)
	assert.Equal(t, []byte(`{}`), msg.Value)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, subjectHeader, msg.Headers[0].Key)
	assert.Equal(t, []byte(SubjectLedgerCommitted), msg.Headers[0].Value)
}

func TestNATSClient_PublishWithoutConnection(t *testing.T) {
	client := NewNATSClient("nats://localhost:4222")
	assert.False(t, client.IsConnected())

	err := client.Publish(context.Background(), SubjectLedgerCommitted, "u_alice", []byte(`{}`))
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}
