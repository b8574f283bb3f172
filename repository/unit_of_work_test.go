package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"spinnergy/events"
	"spinnergy/models"
	"spinnergy/repository/testutil"
	"spinnergy/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestUnitOfWork_RollbackDiscardsWritesAndEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	var mu sync.Mutex
	var delivered []events.Event
	bus.Subscribe(events.EventTypeAccountCreated, func(ctx context.Context, e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, e)
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.AccountRepository().Create(ctx, testutil.CreateTestAccount("u_ghost", "Ghost")))
	uow.EventBus().Publish(events.AccountCreatedEvent{AccountID: "u_ghost"})
	require.NoError(t, uow.Rollback())
	bus.Wait()

	account, err := NewAccountRepository(testDB.DB).GetByID(ctx, "u_ghost")
	require.NoError(t, err)
	assert.Nil(t, account)

	mu.Lock()
	assert.Empty(t, delivered)
	mu.Unlock()

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.AccountRepository().Create(ctx, testutil.CreateTestAccount("u_ghost", "Ghost")))
	uow.EventBus().Publish(events.AccountCreatedEvent{AccountID: "u_ghost"})
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback())
	bus.Wait()

	mu.Lock()
	assert.Len(t, delivered, 1)
	mu.Unlock()
}

func TestLedgerService_Postgres(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ledger := service.NewLedgerService(factory, service.LedgerOptions{
		StorageTimeout: 5 * time.Second,
		MaxAttempts:    50,
	})

	_, err := ledger.OpenAccount(ctx, "u_alice", "Alice")
	require.NoError(t, err)

	t.Run("concurrent credits from separate services", func(t *testing.T) {
		// A second service instance shares no lock with the first, so only the version check serializes them
		other := service.NewLedgerService(NewUnitOfWorkFactory(testDB.DB, bus), service.LedgerOptions{
			StorageTimeout: 5 * time.Second,
			MaxAttempts:    50,
		})

		var g errgroup.Group
		for i := 0; i < 20; i++ {
			l := ledger
			if i%2 == 1 {
				l = other
			}
			g.Go(func() error {
				_, err := l.Credit(ctx, "u_alice", decimal.NewFromInt(1), models.ReasonSpin)
				return err
			})
		}
		require.NoError(t, g.Wait())

		balance, err := ledger.GetBalance(ctx, "u_alice")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(20).Equal(balance), balance.String())
	})

	t.Run("debit beyond balance", func(t *testing.T) {
		_, err := ledger.Debit(ctx, "u_alice", decimal.NewFromInt(1000), models.ReasonMinigameSpend)
		assert.ErrorIs(t, err, service.ErrInsufficientFunds)
	})

	t.Run("audit is clean", func(t *testing.T) {
		mismatches, err := ledger.Audit(ctx)
		require.NoError(t, err)
		assert.Empty(t, mismatches)
	})
}
