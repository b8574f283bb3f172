package repository

import (
	"context"
	"fmt"
	"time"

	"spinnergy/models"
)

// ChatRepository implements the ChatRepository interface
type ChatRepository struct {
	q queryable
}

// newChatRepositoryWithTx creates a new chat repository with a transaction
func newChatRepositoryWithTx(tx queryable) *ChatRepository {
	return &ChatRepository{q: tx}
}

// Save stores a chat turn
func (r *ChatRepository) Save(ctx context.Context, turn *models.ChatTurn) error {
	query := `
		INSERT INTO chat_turns (id, account_id, message, reply, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query, turn.ID, turn.AccountID, turn.Message, turn.Reply, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save chat turn: %w", err)
	}

	return nil
}

// GetByAccountSince returns the most recent limit turns at or after since, oldest first
func (r *ChatRepository) GetByAccountSince(ctx context.Context, accountID string, since time.Time, limit int) ([]*models.ChatTurn, error) {
	query := `
		SELECT id, account_id, message, reply, created_at
		FROM (
			SELECT id::text, account_id, message, reply, created_at
			FROM chat_turns
			WHERE account_id = $1 AND created_at >= $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`

	rows, err := r.q.Query(ctx, query, accountID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat turns: %w", err)
	}
	defer rows.Close()

	var turns []*models.ChatTurn
	for rows.Next() {
		var turn models.ChatTurn
		if err := rows.Scan(&turn.ID, &turn.AccountID, &turn.Message, &turn.Reply, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		turns = append(turns, &turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat turns: %w", err)
	}

	return turns, nil
}

// DeleteByAccountBefore removes one account's turns older than cutoff
func (r *ChatRepository) DeleteByAccountBefore(ctx context.Context, accountID string, cutoff time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM chat_turns WHERE account_id = $1 AND created_at < $2`, accountID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune chat turns for account %s: %w", accountID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteBefore removes every turn older than cutoff
func (r *ChatRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM chat_turns WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune chat turns: %w", err)
	}
	return tag.RowsAffected(), nil
}
