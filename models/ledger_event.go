package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind represents the direction of a ledger mutation
type EventKind string

const (
	EventKindCredit EventKind = "credit"
	EventKindDebit  EventKind = "debit"
)

// Reason tags used by the collaborators that move points
const (
	ReasonSpin          = "spin"
	ReasonMicrobitSync  = "microbit_sync"
	ReasonDeviceImport  = "device_import"
	ReasonMinigameSpend = "minigame_spend"
	ReasonSeed          = "seed"
)

// LedgerEvent is an immutable record of one accepted balance mutation.
// Amount is signed: positive for credits, negative for debits.
type LedgerEvent struct {
	ID           string          `db:"id" json:"id"`
	AccountID    string          `db:"account_id" json:"account_id"`
	Kind         EventKind       `db:"kind" json:"kind"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Version      int64           `db:"version" json:"version"` // Account version this event produced
	Reason       string          `db:"reason" json:"reason"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Timestamp returns when the event was recorded
func (e *LedgerEvent) Timestamp() time.Time {
	return e.CreatedAt
}
