package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spinnergy/models"
	"spinnergy/retention"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// mealLogService implements the MealLogService interface
type mealLogService struct {
	uowFactory     UnitOfWorkFactory
	windowDays     int
	storageTimeout time.Duration
	now            func() time.Time
}

// NewMealLogService creates a meal log whose queries are clamped to windowDays
func NewMealLogService(uowFactory UnitOfWorkFactory, windowDays int, now func() time.Time) MealLogService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &mealLogService{
		uowFactory:     uowFactory,
		windowDays:     windowDays,
		storageTimeout: DefaultStorageTimeout,
		now:            now,
	}
}

func validateMeal(entry *models.MealEntry) error {
	if entry == nil || len(entry.Items) == 0 {
		return fmt.Errorf("%w: items required", ErrInvalidMeal)
	}
	for i, item := range entry.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidMeal, i)
		}
		if item.Calories.IsNegative() {
			return fmt.Errorf("%w: item %q has negative calories", ErrInvalidMeal, item.Name)
		}
	}
	return nil
}

// Add stores a meal entry and returns its total calories
func (s *mealLogService) Add(ctx context.Context, accountID string, entry *models.MealEntry) (decimal.Decimal, error) {
	if err := validateMeal(entry); err != nil {
		return decimal.Zero, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, storageError("begin transaction", err)
	}
	defer uow.Rollback()

	if _, err := requireAccount(ctx, uow, accountID); err != nil {
		return decimal.Zero, err
	}

	now := s.now()
	stored := &models.MealEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		EatenAt:   entry.EatenAt,
		MealType:  strings.TrimSpace(entry.MealType),
		Items:     append([]models.MealItem(nil), entry.Items...),
		Notes:     entry.Notes,
		CreatedAt: now,
	}
	if stored.EatenAt.IsZero() {
		stored.EatenAt = now
	}
	if stored.MealType == "" {
		stored.MealType = models.MealTypeOther
	}

	if err := uow.MealRepository().Save(ctx, stored); err != nil {
		return decimal.Zero, storageError("save meal entry", err)
	}
	if err := uow.Commit(); err != nil {
		return decimal.Zero, storageError("commit transaction", err)
	}

	*entry = *stored
	return stored.TotalCalories(), nil
}

// List returns entries eaten within the clamped range, newest first
func (s *mealLogService) List(ctx context.Context, accountID string, from, to *time.Time) (retention.Range, []*models.MealEntry, error) {
	window := retention.ClampRange(from, to, s.windowDays, s.now())

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return window, nil, storageError("begin transaction", err)
	}
	defer uow.Rollback()

	if _, err := requireAccount(ctx, uow, accountID); err != nil {
		return window, nil, err
	}

	entries, err := uow.MealRepository().GetByAccountInRange(ctx, accountID, window.From, window.To)
	if err != nil {
		return window, nil, storageError("get meal entries", err)
	}
	return window, entries, nil
}
