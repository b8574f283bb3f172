package repository

import (
	"context"
	"errors"
	"fmt"

	"spinnergy/database"
	"spinnergy/models"
	"spinnergy/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, name, balance, version, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Balance,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, name, balance, version)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.ID,
		account.Name,
		account.Balance,
		account.Version,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if pgErrorCode(err) == uniqueViolation {
		return fmt.Errorf("%w: %s", service.ErrAccountExists, account.ID)
	}
	if pgErrorCode(err) == numericOutOfRange {
		return fmt.Errorf("%w: balance of account %s does not fit", service.ErrInvalidAmount, account.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.ID, err)
	}

	return nil
}

// GetByID retrieves an account by id
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}

	return account, nil
}

// CompareAndSetBalance writes balance only if the stored version is still expectedVersion
func (r *AccountRepository) CompareAndSetBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET balance = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query, id, balance, expectedVersion))
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Either the account is gone or another writer advanced the version
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", service.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("%w: account %s at version %d, expected %d", service.ErrVersionConflict, id, existing.Version, expectedVersion)
	case pgErrorCode(err) == numericOutOfRange:
		return nil, fmt.Errorf("%w: balance %s does not fit", service.ErrInvalidAmount, balance.String())
	case pgErrorCode(err) == checkViolation:
		return nil, fmt.Errorf("%w: account %s", service.ErrInsufficientFunds, id)
	case pgErrorCode(err) == serializationFailure:
		return nil, fmt.Errorf("%w: %v", service.ErrVersionConflict, err)
	default:
		return nil, fmt.Errorf("failed to update balance for account %s: %w", id, err)
	}
}

// GetAll returns every account ordered by id
func (r *AccountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
