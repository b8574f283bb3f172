package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spinnergy/events"
	"spinnergy/models"
	"spinnergy/retention"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Ledger defaults
const (
	DefaultStorageTimeout = 2 * time.Second
	DefaultMaxAttempts    = 5
	AmountPlaces          = 1 // Balances and amounts are kept to one decimal place
)

// MaxBalance is the largest amount or balance any backend can store (NUMERIC(20,1))
var MaxBalance = decimal.RequireFromString("9999999999999999999.9")

// LedgerOptions tunes the ledger service. Zero values fall back to the defaults.
type LedgerOptions struct {
	StorageTimeout    time.Duration
	MaxAttempts       int
	HistoryWindowDays int
	Metrics           Metrics
	Now               func() time.Time
}

// AuditMismatch describes an account whose stored balance disagrees with its event trail
type AuditMismatch struct {
	AccountID string
	Balance   decimal.Decimal
	Replayed  decimal.Decimal
	Version   int64
	Events    int
}

// ledgerService implements the LedgerService interface
type ledgerService struct {
	uowFactory        UnitOfWorkFactory
	locks             *keyedMutex
	storageTimeout    time.Duration
	maxAttempts       int
	historyWindowDays int
	metrics           Metrics
	now               func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory, opts LedgerOptions) LedgerService {
	s := &ledgerService{
		uowFactory:        uowFactory,
		locks:             newKeyedMutex(),
		storageTimeout:    opts.StorageTimeout,
		maxAttempts:       opts.MaxAttempts,
		historyWindowDays: opts.HistoryWindowDays,
		metrics:           metricsOrNoop(opts.Metrics),
		now:               opts.Now,
	}
	if s.storageTimeout <= 0 {
		s.storageTimeout = DefaultStorageTimeout
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.historyWindowDays <= 0 {
		s.historyWindowDays = retention.HistoryWindowDays
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// NormalizeAmount rounds an amount to one decimal place and rejects anything
// not strictly positive or above MaxBalance
func NormalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	normalized := amount.Round(AmountPlaces)
	if !normalized.IsPositive() || normalized.GreaterThan(MaxBalance) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return normalized, nil
}

// OpenAccount creates an account with a zero balance
func (s *ledgerService) OpenAccount(ctx context.Context, id, name string) (account *models.Account, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordLedgerOperation("open", resultOf(err), time.Since(start)) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidAccountID
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, storageError("wait for account lock", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer uow.Rollback()

	existing, err := uow.AccountRepository().GetByID(ctx, id)
	if err != nil {
		return nil, storageError("check existing account", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, id)
	}

	now := s.now()
	account = &models.Account{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uow.AccountRepository().Create(ctx, account); err != nil {
		return nil, storageError("create account", err)
	}

	uow.EventBus().Publish(events.AccountCreatedEvent{
		AccountID: account.ID,
		Name:      account.Name,
		CreatedAt: account.CreatedAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, storageError("commit transaction", err)
	}

	log.WithFields(log.Fields{
		"accountID": account.ID,
		"name":      account.Name,
	}).Info("Opened account")

	return account, nil
}

// Credit adds a positive amount to an account
func (s *ledgerService) Credit(ctx context.Context, id string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	return s.mutate(ctx, models.EventKindCredit, id, amount, reason)
}

// Debit removes a positive amount from an account, never going below zero
func (s *ledgerService) Debit(ctx context.Context, id string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	return s.mutate(ctx, models.EventKindDebit, id, amount, reason)
}

// mutate serializes same-account writers on the keyed mutex and retries
// optimistic conflicts from writers outside this process.
func (s *ledgerService) mutate(ctx context.Context, kind models.EventKind, id string, amount decimal.Decimal, reason string) (balance decimal.Decimal, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordLedgerOperation(string(kind), resultOf(err), time.Since(start)) }()

	delta, err := NormalizeAmount(amount)
	if err != nil {
		return decimal.Zero, err
	}
	if kind == models.EventKindDebit {
		delta = delta.Neg()
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return decimal.Zero, storageError("wait for account lock", err)
	}
	defer unlock()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		balance, err = s.apply(ctx, kind, id, delta, reason)
		if !errors.Is(err, ErrVersionConflict) {
			return balance, err
		}

		log.WithFields(log.Fields{
			"accountID": id,
			"kind":      kind,
			"attempt":   attempt,
		}).Debug("Ledger version conflict, retrying")
	}

	return decimal.Zero, fmt.Errorf("%w: account %s after %d attempts", ErrConcurrentModificationExceeded, id, s.maxAttempts)
}

// apply runs one read-check-write attempt in its own unit of work
func (s *ledgerService) apply(ctx context.Context, kind models.EventKind, id string, delta decimal.Decimal, reason string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, storageError("begin transaction", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, storageError("get account", err)
	}
	if account == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}

	newBalance := account.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, account.Balance.String(), delta.Neg().String())
	}
	if newBalance.GreaterThan(MaxBalance) {
		return decimal.Zero, fmt.Errorf("%w: balance %s would exceed %s", ErrInvalidAmount, newBalance.String(), MaxBalance.String())
	}

	updated, err := uow.AccountRepository().CompareAndSetBalance(ctx, id, newBalance, account.Version)
	if err != nil {
		return decimal.Zero, storageError("update balance", err)
	}

	event := &models.LedgerEvent{
		ID:           uuid.NewString(),
		AccountID:    id,
		Kind:         kind,
		Amount:       delta,
		BalanceAfter: newBalance,
		Version:      updated.Version,
		Reason:       reason,
		CreatedAt:    s.now(),
	}
	if err := uow.LedgerEventRepository().Append(ctx, event); err != nil {
		return decimal.Zero, storageError("append ledger event", err)
	}

	uow.EventBus().Publish(events.LedgerCommittedEvent{
		EventID:    event.ID,
		AccountID:  id,
		Name:       account.Name,
		Kind:       kind,
		Amount:     delta,
		Balance:    newBalance,
		Version:    updated.Version,
		Reason:     reason,
		OccurredAt: event.CreatedAt,
	})

	if err := uow.Commit(); err != nil {
		return decimal.Zero, storageError("commit transaction", err)
	}

	return newBalance, nil
}

// GetBalance returns the committed balance
func (s *ledgerService) GetBalance(ctx context.Context, id string) (balance decimal.Decimal, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordLedgerOperation("get_balance", resultOf(err), time.Since(start)) }()

	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// GetAccount returns the committed account
func (s *ledgerService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account *models.Account
	err := s.read(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		account, err = requireAccount(ctx, uow, id)
		return err
	})
	return account, err
}

// ListAccounts returns every committed account
func (s *ledgerService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	err := s.read(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		accounts, err = uow.AccountRepository().GetAll(ctx)
		if err != nil {
			return storageError("get accounts", err)
		}
		return nil
	})
	return accounts, err
}

// History returns an account's events within the clamped range, newest first
func (s *ledgerService) History(ctx context.Context, id string, from, to *time.Time) (retention.Range, []*models.LedgerEvent, error) {
	window := retention.ClampRange(from, to, s.historyWindowDays, s.now())

	var history []*models.LedgerEvent
	err := s.read(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if _, err := requireAccount(ctx, uow, id); err != nil {
			return err
		}

		var err error
		history, err = uow.LedgerEventRepository().Query(ctx, id, window.From, window.To)
		if err != nil {
			return storageError("query ledger events", err)
		}
		return nil
	})
	if err != nil {
		return window, nil, err
	}
	return window, history, nil
}

// Replay sums the event trail of an account
func (s *ledgerService) Replay(ctx context.Context, id string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.read(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if _, err := requireAccount(ctx, uow, id); err != nil {
			return err
		}

		var err error
		sum, _, err = uow.LedgerEventRepository().SumByAccount(ctx, id)
		if err != nil {
			return storageError("sum ledger events", err)
		}
		return nil
	})
	return sum, err
}

// Audit replays every account and reports the ones whose balance disagrees with its events
func (s *ledgerService) Audit(ctx context.Context) ([]AuditMismatch, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	var mismatches []AuditMismatch
	for _, account := range accounts {
		var sum decimal.Decimal
		var count int
		err := s.read(ctx, func(ctx context.Context, uow UnitOfWork) error {
			var err error
			sum, count, err = uow.LedgerEventRepository().SumByAccount(ctx, account.ID)
			if err != nil {
				return storageError("sum ledger events", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if !sum.Equal(account.Balance) || int64(count) != account.Version {
			mismatches = append(mismatches, AuditMismatch{
				AccountID: account.ID,
				Balance:   account.Balance,
				Replayed:  sum,
				Version:   account.Version,
				Events:    count,
			})
		}
	}

	log.WithFields(log.Fields{
		"accounts":   len(accounts),
		"mismatches": len(mismatches),
	}).Info("Ledger audit finished")

	return mismatches, nil
}

// read runs fn in a unit of work that is always rolled back
func (s *ledgerService) read(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storageError("begin transaction", err)
	}
	defer uow.Rollback()

	return fn(ctx, uow)
}

func requireAccount(ctx context.Context, uow UnitOfWork, id string) (*models.Account, error) {
	account, err := uow.AccountRepository().GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get account", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return account, nil
}
