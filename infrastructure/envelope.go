package infrastructure

import (
	"encoding/json"
	"fmt"
	"time"

	"spinnergy/events"

	"github.com/google/uuid"
)

// SourceService identifies this process in published envelopes
const SourceService = "spinnergy"

// EventEnvelope wraps an event payload with routing metadata
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes event into an envelope
func NewEventEnvelope(event events.Event, now time.Time) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     now.UTC(),
		SourceService: SourceService,
		Payload:       payload,
	}, nil
}

// partitionKey returns the account an event belongs to so per-account order survives partitioning
func partitionKey(event events.Event) string {
	switch e := event.(type) {
	case events.AccountCreatedEvent:
		return e.AccountID
	case events.LedgerCommittedEvent:
		return e.AccountID
	default:
		return ""
	}
}
