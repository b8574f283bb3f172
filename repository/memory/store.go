// Package memory is the in-process storage backend. Writes are staged in a unit
// of work and applied atomically at commit, so readers only see committed state.
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"spinnergy/models"
	"spinnergy/service"

	"github.com/shopspring/decimal"
)

// AccountWrite is a staged account mutation
type AccountWrite struct {
	Account         *models.Account `json:"account"`
	ExpectedVersion int64           `json:"expected_version"`
	Create          bool            `json:"create,omitempty"`
}

// ChatDelete removes chat turns older than Before. An empty AccountID applies to every account.
type ChatDelete struct {
	AccountID string    `json:"account_id,omitempty"`
	Before    time.Time `json:"before"`
}

// Batch is everything one unit of work commits
type Batch struct {
	Accounts    []AccountWrite        `json:"accounts,omitempty"`
	Events      []*models.LedgerEvent `json:"events,omitempty"`
	Chats       []*models.ChatTurn    `json:"chats,omitempty"`
	Meals       []*models.MealEntry   `json:"meals,omitempty"`
	ChatDeletes []ChatDelete          `json:"chat_deletes,omitempty"`
	MealDeletes []time.Time           `json:"meal_deletes,omitempty"`
}

// Empty reports whether the batch carries no writes
func (b *Batch) Empty() bool {
	return len(b.Accounts) == 0 && len(b.Events) == 0 && len(b.Chats) == 0 &&
		len(b.Meals) == 0 && len(b.ChatDeletes) == 0 && len(b.MealDeletes) == 0
}

// CommitHook runs under the store lock after a batch validated and before it becomes
// visible. An error aborts the commit.
type CommitHook func(batch *Batch) error

// Option configures a Store
type Option func(*Store)

// WithCommitHook installs a hook that sees every committed batch
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) {
		s.onCommit = hook
	}
}

// Store holds committed state
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	events   map[string][]*models.LedgerEvent
	chats    map[string][]*models.ChatTurn
	meals    map[string][]*models.MealEntry
	onCommit CommitHook
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[string]*models.Account),
		events:   make(map[string][]*models.LedgerEvent),
		chats:    make(map[string][]*models.ChatTurn),
		meals:    make(map[string][]*models.MealEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// commit validates versions against committed state, runs the hook and applies the batch
func (s *Store) commit(batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(batch); err != nil {
		return err
	}

	if s.onCommit != nil {
		if err := s.onCommit(batch); err != nil {
			return fmt.Errorf("failed to persist batch: %w", err)
		}
	}

	s.apply(batch)
	return nil
}

func (s *Store) validate(batch *Batch) error {
	versions := make(map[string]int64)
	for _, w := range batch.Accounts {
		id := w.Account.ID
		current, seen := versions[id]
		if !seen {
			if existing, ok := s.accounts[id]; ok {
				current, seen = existing.Version, true
			}
		}

		if w.Create {
			if seen {
				return fmt.Errorf("%w: %s", service.ErrAccountExists, id)
			}
		} else if !seen || current != w.ExpectedVersion {
			return fmt.Errorf("%w: account %s expected version %d", service.ErrVersionConflict, id, w.ExpectedVersion)
		}
		versions[id] = w.Account.Version
	}
	return nil
}

// Apply writes a batch without validation. Used when replaying a journal.
func (s *Store) Apply(batch *Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(batch)
}

func (s *Store) apply(batch *Batch) {
	for _, w := range batch.Accounts {
		s.accounts[w.Account.ID] = w.Account.Clone()
	}
	for _, e := range batch.Events {
		ev := *e
		s.events[e.AccountID] = append(s.events[e.AccountID], &ev)
	}
	for _, c := range batch.Chats {
		turn := *c
		s.chats[c.AccountID] = append(s.chats[c.AccountID], &turn)
	}
	for _, m := range batch.Meals {
		s.meals[m.AccountID] = append(s.meals[m.AccountID], cloneMeal(m))
	}
	for _, d := range batch.ChatDeletes {
		if d.AccountID != "" {
			s.chats[d.AccountID] = keepChatsFrom(s.chats[d.AccountID], d.Before)
			continue
		}
		for id, turns := range s.chats {
			s.chats[id] = keepChatsFrom(turns, d.Before)
		}
	}
	for _, cutoff := range batch.MealDeletes {
		for id, entries := range s.meals {
			s.meals[id] = keepMealsFrom(entries, cutoff)
		}
	}
}

// RebuildBalances recomputes every account's balance and version from its event trail.
// It returns the ids of accounts whose stored values disagreed.
func (s *Store) RebuildBalances() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var corrected []string
	for id, account := range s.accounts {
		sum := decimal.Zero
		var version int64
		for _, e := range s.events[id] {
			sum = sum.Add(e.Amount)
			if e.Version > version {
				version = e.Version
			}
		}
		if !sum.Equal(account.Balance) || version != account.Version {
			account.Balance = sum
			account.Version = version
			corrected = append(corrected, id)
		}
	}
	sort.Strings(corrected)
	return corrected
}

func (s *Store) account(id string) *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[id].Clone()
}

func keepChatsFrom(turns []*models.ChatTurn, cutoff time.Time) []*models.ChatTurn {
	kept := turns[:0]
	for _, t := range turns {
		if !t.CreatedAt.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func keepMealsFrom(entries []*models.MealEntry, cutoff time.Time) []*models.MealEntry {
	kept := entries[:0]
	for _, m := range entries {
		if !m.EatenAt.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	return kept
}

func cloneMeal(m *models.MealEntry) *models.MealEntry {
	c := *m
	c.Items = append([]models.MealItem(nil), m.Items...)
	return &c
}
