package repository

import (
	"context"
	"fmt"
	"time"

	"spinnergy/models"
)

// MealRepository implements the MealRepository interface
type MealRepository struct {
	q queryable
}

// newMealRepositoryWithTx creates a new meal repository with a transaction
func newMealRepositoryWithTx(tx queryable) *MealRepository {
	return &MealRepository{q: tx}
}

// Save stores a meal entry. Items are kept as a JSONB document.
func (r *MealRepository) Save(ctx context.Context, entry *models.MealEntry) error {
	query := `
		INSERT INTO meal_entries (id, account_id, eaten_at, meal_type, items, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.EatenAt,
		entry.MealType,
		entry.Items,
		entry.Notes,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save meal entry: %w", err)
	}

	return nil
}

// GetByAccountInRange returns entries eaten within [from, to], newest first
func (r *MealRepository) GetByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*models.MealEntry, error) {
	query := `
		SELECT id::text, account_id, eaten_at, meal_type, items, notes, created_at
		FROM meal_entries
		WHERE account_id = $1 AND eaten_at >= $2 AND eaten_at <= $3
		ORDER BY eaten_at DESC
	`

	rows, err := r.q.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.MealEntry
	for rows.Next() {
		var entry models.MealEntry
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.EatenAt,
			&entry.MealType,
			&entry.Items,
			&entry.Notes,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meal entries: %w", err)
	}

	return entries, nil
}

// DeleteBefore removes every entry eaten before cutoff
func (r *MealRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM meal_entries WHERE eaten_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune meal entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
