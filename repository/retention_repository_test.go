package repository

import (
	"context"
	"testing"
	"time"

	"spinnergy/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	require.NoError(t, NewAccountRepository(testDB.DB).Create(context.Background(), testutil.CreateTestAccount("u_alice", "Alice")))
	require.NoError(t, NewAccountRepository(testDB.DB).Create(context.Background(), testutil.CreateTestAccount("u_bob", "Bob")))

	repo := newChatRepositoryWithTx(testDB.DB.Pool)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, testutil.CreateTestChatTurn("u_alice", "q", base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Save(ctx, testutil.CreateTestChatTurn("u_bob", "q", base)))

	t.Run("most recent turns oldest first", func(t *testing.T) {
		turns, err := repo.GetByAccountSince(ctx, "u_alice", base, 3)
		require.NoError(t, err)
		require.Len(t, turns, 3)
		assert.Equal(t, base.Add(2*time.Hour), turns[0].CreatedAt.UTC())
		assert.Equal(t, base.Add(4*time.Hour), turns[2].CreatedAt.UTC())
	})

	t.Run("since is inclusive", func(t *testing.T) {
		turns, err := repo.GetByAccountSince(ctx, "u_alice", base.Add(4*time.Hour), 10)
		require.NoError(t, err)
		assert.Len(t, turns, 1)
	})

	t.Run("delete by account", func(t *testing.T) {
		deleted, err := repo.DeleteByAccountBefore(ctx, "u_alice", base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		turns, err := repo.GetByAccountSince(ctx, "u_bob", base, 10)
		require.NoError(t, err)
		assert.Len(t, turns, 1)
	})

	t.Run("delete all before", func(t *testing.T) {
		deleted, err := repo.DeleteBefore(ctx, base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})
}

func TestMealRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	require.NoError(t, NewAccountRepository(testDB.DB).Create(context.Background(), testutil.CreateTestAccount("u_alice", "Alice")))

	repo := newMealRepositoryWithTx(testDB.DB.Pool)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	early := testutil.CreateTestMealEntry("u_alice", base)
	late := testutil.CreateTestMealEntry("u_alice", base.Add(48*time.Hour))
	late.Items = append(late.Items, testutil.CreateTestMealEntry("u_alice", base).Items[0])
	require.NoError(t, repo.Save(ctx, early))
	require.NoError(t, repo.Save(ctx, late))

	t.Run("range newest first with items", func(t *testing.T) {
		entries, err := repo.GetByAccountInRange(ctx, "u_alice", base, base.Add(48*time.Hour))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, late.ID, entries[0].ID)
		require.Len(t, entries[0].Items, 2)
		assert.Equal(t, "oatmeal", entries[0].Items[0].Name)
		assert.True(t, decimal.NewFromInt(300).Equal(entries[0].TotalCalories()))
	})

	t.Run("delete before", func(t *testing.T) {
		deleted, err := repo.DeleteBefore(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		entries, err := repo.GetByAccountInRange(ctx, "u_alice", base, base.Add(72*time.Hour))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, late.ID, entries[0].ID)
	})
}
