package memory

import (
	"context"
	"testing"
	"time"

	"spinnergy/events"
	"spinnergy/models"
	"spinnergy/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func begin(t *testing.T, factory service.UnitOfWorkFactory) service.UnitOfWork {
	t.Helper()
	uow := factory.Create()
	require.NoError(t, uow.Begin(context.Background()))
	return uow
}

func seedAccount(t *testing.T, factory service.UnitOfWorkFactory, id string) {
	t.Helper()
	uow := begin(t, factory)
	require.NoError(t, uow.AccountRepository().Create(context.Background(), &models.Account{ID: id, Name: id}))
	require.NoError(t, uow.Commit())
}

func TestUnitOfWork_StagedWritesInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(NewStore(), events.NewBus())
	seedAccount(t, factory, "u_1")

	writer := begin(t, factory)
	updated, err := writer.AccountRepository().CompareAndSetBalance(ctx, "u_1", decimal.NewFromInt(50), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	// The writer sees its own staged balance
	own, err := writer.AccountRepository().GetByID(ctx, "u_1")
	require.NoError(t, err)
	assert.True(t, own.Balance.Equal(decimal.NewFromInt(50)))

	reader := begin(t, factory)
	before, err := reader.AccountRepository().GetByID(ctx, "u_1")
	require.NoError(t, err)
	assert.True(t, before.Balance.IsZero())
	assert.Equal(t, int64(0), before.Version)
	require.NoError(t, reader.Rollback())

	require.NoError(t, writer.Commit())

	reader = begin(t, factory)
	after, err := reader.AccountRepository().GetByID(ctx, "u_1")
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(1), after.Version)
}

func TestUnitOfWork_StaleCompareAndSetFailsAtCommit(t *testing.T) {
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(NewStore(), nil)
	seedAccount(t, factory, "u_1")

	first := begin(t, factory)
	second := begin(t, factory)

	_, err := first.AccountRepository().CompareAndSetBalance(ctx, "u_1", decimal.NewFromInt(10), 0)
	require.NoError(t, err)
	_, err = second.AccountRepository().CompareAndSetBalance(ctx, "u_1", decimal.NewFromInt(20), 0)
	require.NoError(t, err)

	require.NoError(t, first.Commit())
	assert.ErrorIs(t, second.Commit(), service.ErrVersionConflict)
	require.NoError(t, second.Rollback())

	check := begin(t, factory)
	account, err := check.AccountRepository().GetByID(ctx, "u_1")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(10)))
}

func TestUnitOfWork_CompareAndSetWrongVersion(t *testing.T) {
	factory := NewUnitOfWorkFactory(NewStore(), nil)
	seedAccount(t, factory, "u_1")

	uow := begin(t, factory)
	_, err := uow.AccountRepository().CompareAndSetBalance(context.Background(), "u_1", decimal.NewFromInt(10), 3)
	assert.ErrorIs(t, err, service.ErrVersionConflict)

	_, err = uow.AccountRepository().CompareAndSetBalance(context.Background(), "missing", decimal.NewFromInt(10), 0)
	assert.ErrorIs(t, err, service.ErrAccountNotFound)
}

func TestUnitOfWork_DuplicateCreate(t *testing.T) {
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(NewStore(), nil)

	first := begin(t, factory)
	second := begin(t, factory)
	require.NoError(t, first.AccountRepository().Create(ctx, &models.Account{ID: "u_1"}))
	require.NoError(t, second.AccountRepository().Create(ctx, &models.Account{ID: "u_1"}))

	require.NoError(t, first.Commit())
	assert.ErrorIs(t, second.Commit(), service.ErrAccountExists)

	third := begin(t, factory)
	assert.ErrorIs(t, third.AccountRepository().Create(ctx, &models.Account{ID: "u_1"}), service.ErrAccountExists)
}

func TestUnitOfWork_ExpiredContextCommitsNothing(t *testing.T) {
	store := NewStore()
	factory := NewUnitOfWorkFactory(store, nil)
	seedAccount(t, factory, "u_1")

	ctx, cancel := context.WithCancel(context.Background())
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.AccountRepository().CompareAndSetBalance(ctx, "u_1", decimal.NewFromInt(10), 0)
	require.NoError(t, err)

	cancel()
	assert.ErrorIs(t, uow.Commit(), context.Canceled)
	require.NoError(t, uow.Rollback())

	assert.True(t, store.account("u_1").Balance.IsZero())
}

func TestUnitOfWork_EventsFlushOnlyOnCommit(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(NewStore(), bus)

	received := make(chan events.Event, 2)
	bus.Subscribe(events.EventTypeAccountCreated, func(ctx context.Context, e events.Event) {
		received <- e
	})

	rolledBack := begin(t, factory)
	require.NoError(t, rolledBack.AccountRepository().Create(ctx, &models.Account{ID: "u_1"}))
	rolledBack.EventBus().Publish(events.AccountCreatedEvent{AccountID: "u_1"})
	require.NoError(t, rolledBack.Rollback())

	committed := begin(t, factory)
	require.NoError(t, committed.AccountRepository().Create(ctx, &models.Account{ID: "u_2"}))
	committed.EventBus().Publish(events.AccountCreatedEvent{AccountID: "u_2"})
	require.NoError(t, committed.Commit())
	bus.Wait()

	require.Len(t, received, 1)
	assert.Equal(t, "u_2", (<-received).(events.AccountCreatedEvent).AccountID)
}

func TestLedgerEventRepository_QueryNewestFirst(t *testing.T) {
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(NewStore(), nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	uow := begin(t, factory)
	for i, offset := range []time.Duration{0, time.Hour, time.Hour, 3 * time.Hour} {
		require.NoError(t, uow.LedgerEventRepository().Append(ctx, &models.LedgerEvent{
			ID:        string(rune('a' + i)),
			AccountID: "u_1",
			Amount:    decimal.NewFromInt(int64(i + 1)),
			Version:   int64(i + 1),
			CreatedAt: base.Add(offset),
		}))
	}
	require.NoError(t, uow.Commit())

	reader := begin(t, factory)
	got, err := reader.LedgerEventRepository().Query(ctx, "u_1", base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{4, 3, 2}, []int64{got[0].Version, got[1].Version, got[2].Version})

	sum, count, err := reader.LedgerEventRepository().SumByAccount(ctx, "u_1")
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 4, count)
}

func TestChatRepository_LimitAndPrune(t *testing.T) {
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(NewStore(), nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	uow := begin(t, factory)
	for day := 0; day < 5; day++ {
		require.NoError(t, uow.ChatRepository().Save(ctx, &models.ChatTurn{
			ID:        string(rune('a' + day)),
			AccountID: "u_1",
			Message:   "hi",
			CreatedAt: now.AddDate(0, 0, -day*10),
		}))
	}
	require.NoError(t, uow.Commit())

	reader := begin(t, factory)
	turns, err := reader.ChatRepository().GetByAccountSince(ctx, "u_1", now.AddDate(0, 0, -30), 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.True(t, turns[0].CreatedAt.Before(turns[1].CreatedAt))
	assert.Equal(t, now, turns[1].CreatedAt)
	require.NoError(t, reader.Rollback())

	pruner := begin(t, factory)
	n, err := pruner.ChatRepository().DeleteByAccountBefore(ctx, "u_1", now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, pruner.Commit())

	reader = begin(t, factory)
	turns, err = reader.ChatRepository().GetByAccountSince(ctx, "u_1", time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestStore_RebuildBalances(t *testing.T) {
	store := NewStore()
	store.Apply(&Batch{
		Accounts: []AccountWrite{{Account: &models.Account{ID: "u_1", Balance: decimal.NewFromInt(999), Version: 7}}},
		Events: []*models.LedgerEvent{
			{ID: "e1", AccountID: "u_1", Amount: decimal.NewFromInt(50), Version: 1},
			{ID: "e2", AccountID: "u_1", Amount: decimal.NewFromInt(-20), Version: 2},
		},
	})

	assert.Equal(t, []string{"u_1"}, store.RebuildBalances())

	account := store.account("u_1")
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, int64(2), account.Version)
	assert.Empty(t, store.RebuildBalances())
}
