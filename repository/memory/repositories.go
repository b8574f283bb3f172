package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"spinnergy/models"
	"spinnergy/service"

	"github.com/shopspring/decimal"
)

type accountRepository struct {
	uow *unitOfWork
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := r.uow.active(ctx); err != nil {
		return err
	}
	if r.get(account.ID) != nil {
		return fmt.Errorf("%w: %s", service.ErrAccountExists, account.ID)
	}

	stored := account.Clone()
	r.uow.staged[account.ID] = stored
	r.uow.batch.Accounts = append(r.uow.batch.Accounts, AccountWrite{Account: stored.Clone(), Create: true})
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if err := r.uow.active(ctx); err != nil {
		return nil, err
	}
	return r.get(id), nil
}

// get prefers this unit of work's staged copy over committed state
func (r *accountRepository) get(id string) *models.Account {
	if staged, ok := r.uow.staged[id]; ok {
		return staged.Clone()
	}
	return r.uow.store.account(id)
}

func (r *accountRepository) CompareAndSetBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) (*models.Account, error) {
	if err := r.uow.active(ctx); err != nil {
		return nil, err
	}

	current := r.get(id)
	if current == nil {
		return nil, fmt.Errorf("%w: %s", service.ErrAccountNotFound, id)
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: account %s at version %d, expected %d", service.ErrVersionConflict, id, current.Version, expectedVersion)
	}

	current.Balance = balance
	current.Version = expectedVersion + 1
	current.UpdatedAt = time.Now().UTC()

	r.uow.staged[id] = current
	r.uow.batch.Accounts = append(r.uow.batch.Accounts, AccountWrite{Account: current.Clone(), ExpectedVersion: expectedVersion})
	return current.Clone(), nil
}

func (r *accountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	if err := r.uow.active(ctx); err != nil {
		return nil, err
	}

	store := r.uow.store
	store.mu.RLock()
	defer store.mu.RUnlock()

	accounts := make([]*models.Account, 0, len(store.accounts))
	for _, account := range store.accounts {
		accounts = append(accounts, account.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

type ledgerEventRepository struct {
	uow *unitOfWork
}

func (r *ledgerEventRepository) Append(ctx context.Context, event *models.LedgerEvent) error {
	if err := r.uow.active(ctx); err != nil {
		return err
	}
	ev := *event
	r.uow.batch.Events = append(r.uow.batch.Events, &ev)
	return nil
}

func (r *ledgerEventRepository) Query(ctx context.Context, accountID string, from, to time.Time) ([]*models.LedgerEvent, error) {
	if err := r.uow.active(ctx); err != nil {
		return nil, err
	}

	store := r.uow.store
	store.mu.RLock()
	var out []*models.LedgerEvent
	for _, e := range store.events[accountID] {
		if e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		ev := *e
		out = append(out, &ev)
	}
	store.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Version > out[j].Version
	})
	return out, nil
}

func (r *ledgerEventRepository) SumByAccount(ctx context.Context, accountID string) (decimal.Decimal, int, error) {
	if err := r.uow.active(ctx); err != nil {
		return decimal.Zero, 0, err
	}

	store := r.uow.store
	store.mu.RLock()
	defer store.mu.RUnlock()

	sum := decimal.Zero
	for _, e := range store.events[accountID] {
		sum = sum.Add(e.Amount)
	}
	return sum, len(store.events[accountID]), nil
}

type chatRepository struct {
	uow *unitOfWork
}

func (r *chatRepository) Save(ctx context.Context, turn *models.ChatTurn) error {
	if err := r.uow.active(ctx); err != nil {
		return err
	}
	t := *turn
	r.uow.batch.Chats = append(r.uow.batch.Chats, &t)
	return nil
}

func (r *chatRepository) GetByAccountSince(ctx context.Context, accountID string, since time.Time, limit int) ([]*models.ChatTurn, error) {
	if err := r.uow.active(ctx); err != nil {
		return nil, err
	}

	store := r.uow.store
	store.mu.RLock()
	var out []*models.ChatTurn
	for _, t := range store.chats[accountID] {
		if t.CreatedAt.Before(since) {
			continue
		}
		turn := *t
		out = append(out, &turn)
	}
	store.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *chatRepository) DeleteByAccountBefore(ctx context.Context, accountID string, cutoff time.Time) (int64, error) {
	if err := r.uow.active(ctx); err != nil {
		return 0, err
	}

	store := r.uow.store
	store.mu.RLock()
	n := countChatsBefore(store.chats[accountID], cutoff)
	store.mu.RUnlock()

	r.uow.batch.ChatDeletes = append(r.uow.batch.ChatDeletes, ChatDelete{AccountID: accountID, Before: cutoff})
	return n, nil
}

func (r *chatRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := r.uow.active(ctx); err != nil {
		return 0, err
	}

	store := r.uow.store
	store.mu.RLock()
	var n int64
	for _, turns := range store.chats {
		n += countChatsBefore(turns, cutoff)
	}
	store.mu.RUnlock()

	r.uow.batch.ChatDeletes = append(r.uow.batch.ChatDeletes, ChatDelete{Before: cutoff})
	return n, nil
}

func countChatsBefore(turns []*models.ChatTurn, cutoff time.Time) int64 {
	var n int64
	for _, t := range turns {
		if t.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n
}

type mealRepository struct {
	uow *unitOfWork
}

func (r *mealRepository) Save(ctx context.Context, entry *models.MealEntry) error {
	if err := r.uow.active(ctx); err != nil {
		return err
	}
	r.uow.batch.Meals = append(r.uow.batch.Meals, cloneMeal(entry))
	return nil
}

func (r *mealRepository) GetByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*models.MealEntry, error) {
	if err := r.uow.active(ctx); err != nil {
		return nil, err
	}

	store := r.uow.store
	store.mu.RLock()
	var out []*models.MealEntry
	for _, m := range store.meals[accountID] {
		if m.EatenAt.Before(from) || m.EatenAt.After(to) {
			continue
		}
		out = append(out, cloneMeal(m))
	}
	store.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].EatenAt.After(out[j].EatenAt) })
	return out, nil
}

func (r *mealRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := r.uow.active(ctx); err != nil {
		return 0, err
	}

	store := r.uow.store
	store.mu.RLock()
	var n int64
	for _, entries := range store.meals {
		for _, m := range entries {
			if m.EatenAt.Before(cutoff) {
				n++
			}
		}
	}
	store.mu.RUnlock()

	r.uow.batch.MealDeletes = append(r.uow.batch.MealDeletes, cutoff)
	return n, nil
}
