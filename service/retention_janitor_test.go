package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRetentionJanitor_PruneOnce(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks()
	chats := new(MockChatRepository)
	meals := new(MockMealRepository)
	m.uow.SetRepositories(m.accounts, m.events, chats, meals, m.bus)
	metrics := &recordingMetrics{}

	janitor := NewRetentionJanitor(m.factory, 30, 90, metrics, func() time.Time { return fixedNow })

	chats.On("DeleteBefore", mock.Anything, fixedNow.Add(-30*24*time.Hour)).Return(int64(3), nil)
	meals.On("DeleteBefore", mock.Anything, fixedNow.Add(-90*24*time.Hour)).Return(int64(1), nil)
	m.uow.On("Commit").Return(nil)

	result, err := janitor.PruneOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, PruneResult{ChatTurns: 3, MealEntries: 1}, result)
	assert.Equal(t, int64(3), metrics.pruned["chat"])
	assert.Equal(t, int64(1), metrics.pruned["meal"])
	m.events.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestRetentionJanitor_PruneFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks()
	chats := new(MockChatRepository)
	meals := new(MockMealRepository)
	m.uow.SetRepositories(m.accounts, m.events, chats, meals, m.bus)

	janitor := NewRetentionJanitor(m.factory, 30, 90, nil, func() time.Time { return fixedNow })

	chats.On("DeleteBefore", mock.Anything, mock.Anything).Return(int64(0), errors.New("disk full"))

	_, err := janitor.PruneOnce(ctx)

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	m.uow.AssertNotCalled(t, "Commit")
	m.uow.AssertCalled(t, "Rollback")
}

func TestRetentionJanitor_ScheduleRejectsBadSpec(t *testing.T) {
	janitor := NewRetentionJanitor(new(MockUnitOfWorkFactory), 30, 90, nil, nil)

	err := janitor.Schedule("not a cron spec", "broken", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}
