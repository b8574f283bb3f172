package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"spinnergy/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func committed(accountID string, version int64) LedgerCommittedEvent {
	return LedgerCommittedEvent{
		EventID:   "evt-" + accountID,
		AccountID: accountID,
		Kind:      models.EventKindCredit,
		Amount:    decimal.NewFromInt(10),
		Balance:   decimal.NewFromInt(10 * version),
		Version:   version,
		Reason:    models.ReasonSpin,
	}
}

// TestTransactionalBusFlush tests that flushed events reach subscribers
func TestTransactionalBusFlush(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventsReceived := make(chan LedgerCommittedEvent, 3)
	var wg sync.WaitGroup
	wg.Add(3)

	mainBus.Subscribe(EventTypeLedgerCommitted, func(ctx context.Context, event Event) {
		defer wg.Done()
		if e, ok := event.(LedgerCommittedEvent); ok {
			eventsReceived <- e
		}
	})

	for i, id := range []string{"u_1", "u_2", "u_3"} {
		transactionalBus.Publish(committed(id, int64(i+1)))
	}

	require.NoError(t, transactionalBus.Flush(context.Background()))
	wg.Wait()
	close(eventsReceived)

	ids := make(map[string]bool)
	for e := range eventsReceived {
		ids[e.AccountID] = true
	}
	assert.Len(t, ids, 3)
	assert.True(t, ids["u_1"])
	assert.True(t, ids["u_2"])
	assert.True(t, ids["u_3"])
}

// TestTransactionalBusDiscard tests that discarded events are not delivered
func TestTransactionalBusDiscard(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan bool, 1)
	mainBus.Subscribe(EventTypeLedgerCommitted, func(ctx context.Context, event Event) {
		eventReceived <- true
	})

	transactionalBus.Publish(committed("u_1", 1))
	transactionalBus.Discard()
	require.NoError(t, transactionalBus.Flush(context.Background()))

	select {
	case <-eventReceived:
		t.Fatal("Event was received despite being discarded")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusRoutesByType(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var created, ledger int
	bus.Subscribe(EventTypeAccountCreated, func(ctx context.Context, event Event) {
		mu.Lock()
		defer mu.Unlock()
		created++
	})
	bus.Subscribe(EventTypeLedgerCommitted, func(ctx context.Context, event Event) {
		mu.Lock()
		defer mu.Unlock()
		ledger++
	})

	bus.Emit(context.Background(), AccountCreatedEvent{AccountID: "u_1", Name: "Ada"})
	bus.Emit(context.Background(), committed("u_1", 1))
	bus.Emit(context.Background(), committed("u_1", 2))
	bus.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 2, ledger)
}

func TestBusRecoversHandlerPanic(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{})
	bus.Subscribe(EventTypeAccountCreated, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeAccountCreated, func(ctx context.Context, event Event) {
		close(done)
	})

	bus.Emit(context.Background(), AccountCreatedEvent{AccountID: "u_1"})
	bus.Wait()

	select {
	case <-done:
	default:
		t.Fatal("second handler did not run")
	}
}
