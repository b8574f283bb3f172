package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound is returned when an operation references an unknown account
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when opening an account whose id is taken
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidAmount is returned for amounts that are not strictly positive or do not fit in storage
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds is returned when a debit exceeds the current balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConcurrentModificationExceeded is returned when the optimistic retry budget is spent.
	// The caller may retry the whole operation.
	ErrConcurrentModificationExceeded = errors.New("concurrent modification retry budget exceeded")

	// ErrStorageUnavailable wraps backend timeouts and outages. Nothing was committed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrVersionConflict is returned by backends when a compare-and-set loses a race
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidMeal is returned when a meal entry has no items
	ErrInvalidMeal = errors.New("invalid meal")

	// ErrInvalidAccountID is returned when opening an account with a blank id
	ErrInvalidAccountID = errors.New("invalid account id")

	// ErrEmptyMessage is returned when a chat message is blank after trimming
	ErrEmptyMessage = errors.New("empty chat message")
)

// storageError classifies a backend failure. Domain errors pass through untouched,
// everything else becomes ErrStorageUnavailable with the cause kept in the chain.
func storageError(action string, err error) error {
	switch {
	case errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidAmount):
		return err
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrStorageUnavailable, action, err)
}
