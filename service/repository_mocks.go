package service

import (
	"context"
	"time"

	"spinnergy/events"
	"spinnergy/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) CompareAndSetBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) (*models.Account, error) {
	args := m.Called(ctx, id, balance, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

// MockLedgerEventRepository is a mock implementation of LedgerEventRepository
type MockLedgerEventRepository struct {
	mock.Mock
}

func (m *MockLedgerEventRepository) Append(ctx context.Context, event *models.LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockLedgerEventRepository) Query(ctx context.Context, accountID string, from, to time.Time) ([]*models.LedgerEvent, error) {
	args := m.Called(ctx, accountID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEvent), args.Error(1)
}

func (m *MockLedgerEventRepository) SumByAccount(ctx context.Context, accountID string) (decimal.Decimal, int, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Int(1), args.Error(2)
}

// MockChatRepository is a mock implementation of ChatRepository
type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Save(ctx context.Context, turn *models.ChatTurn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *MockChatRepository) GetByAccountSince(ctx context.Context, accountID string, since time.Time, limit int) ([]*models.ChatTurn, error) {
	args := m.Called(ctx, accountID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatTurn), args.Error(1)
}

func (m *MockChatRepository) DeleteByAccountBefore(ctx context.Context, accountID string, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, accountID, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChatRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockMealRepository is a mock implementation of MealRepository
type MockMealRepository struct {
	mock.Mock
}

func (m *MockMealRepository) Save(ctx context.Context, entry *models.MealEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockMealRepository) GetByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*models.MealEntry, error) {
	args := m.Called(ctx, accountID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MealEntry), args.Error(1)
}

func (m *MockMealRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockRankingCache is a mock implementation of RankingCache
type MockRankingCache struct {
	mock.Mock
}

func (m *MockRankingCache) Upsert(ctx context.Context, update models.RankingUpdate) (bool, error) {
	args := m.Called(ctx, update)
	return args.Bool(0), args.Error(1)
}

func (m *MockRankingCache) Top(ctx context.Context, n int) ([]*models.LeaderboardEntry, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LeaderboardEntry), args.Error(1)
}

func (m *MockRankingCache) Rank(ctx context.Context, accountID string) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	accountRepo     AccountRepository
	ledgerEventRepo LedgerEventRepository
	chatRepo        ChatRepository
	mealRepo        MealRepository
	eventBus        EventPublisher
}

// SetRepositories wires the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(accountRepo AccountRepository, ledgerEventRepo LedgerEventRepository, chatRepo ChatRepository, mealRepo MealRepository, eventBus EventPublisher) {
	m.accountRepo = accountRepo
	m.ledgerEventRepo = ledgerEventRepo
	m.chatRepo = chatRepo
	m.mealRepo = mealRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository         { return m.accountRepo }
func (m *MockUnitOfWork) LedgerEventRepository() LedgerEventRepository { return m.ledgerEventRepo }
func (m *MockUnitOfWork) ChatRepository() ChatRepository               { return m.chatRepo }
func (m *MockUnitOfWork) MealRepository() MealRepository               { return m.mealRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                     { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
