package service

import (
	"context"
	"time"

	"spinnergy/events"
	"spinnergy/models"
	"spinnergy/retention"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// Create inserts a new account, failing with ErrAccountExists on a duplicate id
	Create(ctx context.Context, account *models.Account) error

	// GetByID retrieves an account, returning nil when it does not exist
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// CompareAndSetBalance writes a new balance if the stored version still equals expectedVersion.
	// The returned account carries the incremented version. A lost race yields ErrVersionConflict.
	CompareAndSetBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) (*models.Account, error)

	// GetAll returns all accounts
	GetAll(ctx context.Context) ([]*models.Account, error)
}

// LedgerEventRepository defines the interface for the append-only event trail
type LedgerEventRepository interface {
	// Append records a ledger event
	Append(ctx context.Context, event *models.LedgerEvent) error

	// Query returns events for an account within [from, to], newest first
	Query(ctx context.Context, accountID string, from, to time.Time) ([]*models.LedgerEvent, error)

	// SumByAccount returns the sum of all event amounts for an account and how many there are
	SumByAccount(ctx context.Context, accountID string) (decimal.Decimal, int, error)
}

// ChatRepository defines the interface for chat turn storage
type ChatRepository interface {
	// Save stores a chat turn
	Save(ctx context.Context, turn *models.ChatTurn) error

	// GetByAccountSince returns at most limit of the most recent turns at or after since, oldest first
	GetByAccountSince(ctx context.Context, accountID string, since time.Time, limit int) ([]*models.ChatTurn, error)

	// DeleteByAccountBefore removes one account's turns older than cutoff
	DeleteByAccountBefore(ctx context.Context, accountID string, cutoff time.Time) (int64, error)

	// DeleteBefore removes every turn older than cutoff
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MealRepository defines the interface for meal log storage
type MealRepository interface {
	// Save stores a meal entry
	Save(ctx context.Context, entry *models.MealEntry) error

	// GetByAccountInRange returns entries eaten within [from, to], newest first
	GetByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*models.MealEntry, error)

	// DeleteBefore removes every entry eaten before cutoff
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// EventSubscriber is satisfied by *events.Bus
type EventSubscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler)
}

// Metrics receives measurements from the services. *observability.MetricsProvider satisfies it.
type Metrics interface {
	RecordLedgerOperation(operation, result string, duration time.Duration)
	RecordLeaderboardSyncFailure(reason string)
	RecordRetentionPruned(collection string, count int64)
}

// RankingCache is an external sorted structure of account scores.
// Implementations must ignore updates whose version is not newer than the stored one.
type RankingCache interface {
	// Upsert applies an update, reporting whether it was newer than what was stored
	Upsert(ctx context.Context, update models.RankingUpdate) (bool, error)

	// Top returns the first n entries, score descending then account id ascending
	Top(ctx context.Context, n int) ([]*models.LeaderboardEntry, error)

	// Rank returns the 1-based position of an account or models.NotRanked
	Rank(ctx context.Context, accountID string) (int, error)
}

// LedgerService defines the interface for balance mutations and the event trail
type LedgerService interface {
	// OpenAccount creates an account with a zero balance
	OpenAccount(ctx context.Context, id, name string) (*models.Account, error)

	// Credit adds a positive amount to an account
	Credit(ctx context.Context, id string, amount decimal.Decimal, reason string) (decimal.Decimal, error)

	// Debit removes a positive amount from an account, never going below zero
	Debit(ctx context.Context, id string, amount decimal.Decimal, reason string) (decimal.Decimal, error)

	// GetBalance returns the committed balance
	GetBalance(ctx context.Context, id string) (decimal.Decimal, error)

	// GetAccount returns the committed account
	GetAccount(ctx context.Context, id string) (*models.Account, error)

	// ListAccounts returns every committed account
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	// History returns events within the clamped range, newest first
	History(ctx context.Context, id string, from, to *time.Time) (retention.Range, []*models.LedgerEvent, error)

	// Replay sums the event trail of an account
	Replay(ctx context.Context, id string) (decimal.Decimal, error)

	// Audit replays every account and reports the ones whose balance disagrees with its events
	Audit(ctx context.Context) ([]AuditMismatch, error)
}

// Leaderboard defines the ranked view over all balances
type Leaderboard interface {
	// TopN returns at most n entries, score descending then account id ascending
	TopN(ctx context.Context, n int) ([]*models.LeaderboardEntry, error)

	// PositionOf returns the 1-based rank of an account or models.NotRanked
	PositionOf(ctx context.Context, id string) (int, error)
}

// ChatHistoryService defines the interface for the windowed chat history
type ChatHistoryService interface {
	// Record stores a chat exchange and prunes the account's expired turns
	Record(ctx context.Context, accountID, message, reply string) (*models.ChatTurn, error)

	// History returns the retained turns, oldest first
	History(ctx context.Context, accountID string) ([]*models.ChatTurn, error)
}

// MealLogService defines the interface for the windowed meal log
type MealLogService interface {
	// Add stores a meal entry and returns its total calories
	Add(ctx context.Context, accountID string, entry *models.MealEntry) (decimal.Decimal, error)

	// List returns entries within the clamped range, newest first
	List(ctx context.Context, accountID string, from, to *time.Time) (retention.Range, []*models.MealEntry, error)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction. A backend that validates versions at commit
	// returns ErrVersionConflict when a staged compare-and-set went stale.
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	AccountRepository() AccountRepository
	LedgerEventRepository() LedgerEventRepository
	ChatRepository() ChatRepository
	MealRepository() MealRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
