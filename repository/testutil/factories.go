package testutil

import (
	"time"

	"spinnergy/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTestAccount creates a test account with a zero balance
func CreateTestAccount(id, name string) *models.Account {
	now := time.Now().UTC()
	return &models.Account{
		ID:        id,
		Name:      name,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestLedgerEvent creates a credit event that moves an account to version
func CreateTestLedgerEvent(accountID string, amount, balanceAfter decimal.Decimal, version int64, at time.Time) *models.LedgerEvent {
	kind := models.EventKindCredit
	if amount.IsNegative() {
		kind = models.EventKindDebit
	}
	return &models.LedgerEvent{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Version:      version,
		Reason:       models.ReasonSpin,
		CreatedAt:    at,
	}
}

// CreateTestChatTurn creates a test chat turn recorded at the given time
func CreateTestChatTurn(accountID, message string, at time.Time) *models.ChatTurn {
	return &models.ChatTurn{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Message:   message,
		Reply:     "reply to " + message,
		CreatedAt: at,
	}
}

// CreateTestMealEntry creates a one item breakfast eaten at the given time
func CreateTestMealEntry(accountID string, eatenAt time.Time) *models.MealEntry {
	return &models.MealEntry{
		ID:        uuid.New().String(),
		AccountID: accountID,
		EatenAt:   eatenAt,
		MealType:  "breakfast",
		Items: []models.MealItem{
			{Name: "oatmeal", Calories: decimal.NewFromInt(150)},
		},
		CreatedAt: eatenAt,
	}
}
