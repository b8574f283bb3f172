package repository

import (
	"context"
	"fmt"
	"time"

	"spinnergy/models"
	"spinnergy/service"

	"github.com/shopspring/decimal"
)

// LedgerEventRepository implements the LedgerEventRepository interface
type LedgerEventRepository struct {
	q queryable
}

// newLedgerEventRepositoryWithTx creates a new ledger event repository with a transaction
func newLedgerEventRepositoryWithTx(tx queryable) *LedgerEventRepository {
	return &LedgerEventRepository{q: tx}
}

// Append records a ledger event. Two events for the same account version cannot coexist.
func (r *LedgerEventRepository) Append(ctx context.Context, event *models.LedgerEvent) error {
	query := `
		INSERT INTO ledger_events (id, account_id, kind, amount, balance_after, version, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		event.ID,
		event.AccountID,
		string(event.Kind),
		event.Amount,
		event.BalanceAfter,
		event.Version,
		event.Reason,
		event.CreatedAt,
	)
	if pgErrorCode(err) == uniqueViolation {
		return fmt.Errorf("%w: account %s already has version %d", service.ErrVersionConflict, event.AccountID, event.Version)
	}
	if pgErrorCode(err) == numericOutOfRange {
		return fmt.Errorf("%w: amount %s does not fit", service.ErrInvalidAmount, event.Amount.String())
	}
	if err != nil {
		return fmt.Errorf("failed to append ledger event: %w", err)
	}

	return nil
}

// Query returns an account's events within [from, to], newest first
func (r *LedgerEventRepository) Query(ctx context.Context, accountID string, from, to time.Time) ([]*models.LedgerEvent, error) {
	query := `
		SELECT id::text, account_id, kind, amount, balance_after, version, reason, created_at
		FROM ledger_events
		WHERE account_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC, version DESC
	`

	rows, err := r.q.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer rows.Close()

	var events []*models.LedgerEvent
	for rows.Next() {
		var event models.LedgerEvent
		var kind string
		err := rows.Scan(
			&event.ID,
			&event.AccountID,
			&kind,
			&event.Amount,
			&event.BalanceAfter,
			&event.Version,
			&event.Reason,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		event.Kind = models.EventKind(kind)
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger events: %w", err)
	}

	return events, nil
}

// SumByAccount returns the total of an account's event amounts and the event count
func (r *LedgerEventRepository) SumByAccount(ctx context.Context, accountID string) (decimal.Decimal, int, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM ledger_events
		WHERE account_id = $1
	`

	var sum decimal.Decimal
	var count int
	if err := r.q.QueryRow(ctx, query, accountID).Scan(&sum, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to sum ledger events for account %s: %w", accountID, err)
	}

	return sum, count, nil
}
