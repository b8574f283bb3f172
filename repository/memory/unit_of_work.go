package memory

import (
	"context"
	"fmt"

	"spinnergy/events"
	"spinnergy/models"
	"spinnergy/service"
)

// unitOfWork stages writes against a Store until Commit
type unitOfWork struct {
	store            *Store
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	batch            *Batch
	staged           map[string]*models.Account
	accountRepo      service.AccountRepository
	ledgerEventRepo  service.LedgerEventRepository
	chatRepo         service.ChatRepository
	mealRepo         service.MealRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory over store
func NewUnitOfWorkFactory(store *Store, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		store:    store,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	store    *Store
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.batch != nil {
		return fmt.Errorf("transaction already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	u.ctx = ctx
	u.batch = &Batch{}
	u.staged = make(map[string]*models.Account)

	u.accountRepo = &accountRepository{uow: u}
	u.ledgerEventRepo = &ledgerEventRepository{uow: u}
	u.chatRepo = &chatRepository{uow: u}
	u.mealRepo = &mealRepository{uow: u}

	return nil
}

// Commit applies the staged batch. Nothing becomes visible if the context expired.
func (u *unitOfWork) Commit() error {
	if u.batch == nil {
		return fmt.Errorf("no transaction to commit")
	}
	if err := u.ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if !u.batch.Empty() {
		if err := u.store.commit(u.batch); err != nil {
			return err
		}
	}

	u.batch = nil
	u.staged = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback drops the staged batch
func (u *unitOfWork) Rollback() error {
	if u.batch == nil {
		return nil
	}

	u.batch = nil
	u.staged = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

func (u *unitOfWork) LedgerEventRepository() service.LedgerEventRepository {
	if u.ledgerEventRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerEventRepo
}

func (u *unitOfWork) ChatRepository() service.ChatRepository {
	if u.chatRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.chatRepo
}

func (u *unitOfWork) MealRepository() service.MealRepository {
	if u.mealRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.mealRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}

// active fails once the unit of work is finished or its context expired
func (u *unitOfWork) active(ctx context.Context) error {
	if u.batch == nil {
		return fmt.Errorf("unit of work is not active")
	}
	return ctx.Err()
}
