package infrastructure

import (
	"fmt"

	"spinnergy/events"
)

// Subjects published by the ledger
const (
	SubjectAccountCreated  = "ledger.account_created"
	SubjectLedgerCommitted = "ledger.committed"
)

// MapEventToSubject converts a domain event to its message bus subject
func MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeAccountCreated:
		return SubjectAccountCreated
	case events.EventTypeLedgerCommitted:
		return SubjectLedgerCommitted
	default:
		// Fallback for unknown event types
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// GetAllSubjects returns all subjects that the ledger publishes to
func GetAllSubjects() []string {
	return []string{
		SubjectAccountCreated,
		SubjectLedgerCommitted,
	}
}
