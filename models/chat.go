package models

import "time"

// ChatTurn is one question/answer exchange with the food assistant
type ChatTurn struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Message   string    `db:"message" json:"message"`
	Reply     string    `db:"reply" json:"reply"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Timestamp returns when the turn was recorded
func (c *ChatTurn) Timestamp() time.Time {
	return c.CreatedAt
}
