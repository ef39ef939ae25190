package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bankmirror/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db Querier
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `a.id, a.remote_id, a.connection_id, a.name, a.nature, a.balance, a.currency_code,
	a.iban, a.swift, a.sort_code, a.account_number, a.extra, a.created_at, a.updated_at`

// Upsert creates or refreshes an account by remote id
func (r *AccountRepository) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	query := `
		INSERT INTO accounts AS a (
			remote_id, connection_id, name, nature, balance, currency_code,
			iban, swift, sort_code, account_number, extra
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (remote_id) DO UPDATE SET
			name = EXCLUDED.name,
			nature = EXCLUDED.nature,
			balance = EXCLUDED.balance,
			currency_code = EXCLUDED.currency_code,
			iban = EXCLUDED.iban,
			swift = EXCLUDED.swift,
			sort_code = EXCLUDED.sort_code,
			account_number = EXCLUDED.account_number,
			extra = EXCLUDED.extra,
			updated_at = CURRENT_TIMESTAMP
		WHERE a.connection_id = EXCLUDED.connection_id
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		params.RemoteID, params.ConnectionID, params.Name, nullString(params.Nature), params.Balance,
		params.CurrencyCode, nullString(params.IBAN), nullString(params.SWIFT), nullString(params.SortCode),
		nullString(params.AccountNumber), jsonParam(params.Extra),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrOwnershipConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return acc, nil
}

// GetByID retrieves an account by its local ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, id)
}

func (r *AccountRepository) GetByRemoteID(ctx context.Context, remoteID string) (*account.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.remote_id = $1`, remoteID)
}

func (r *AccountRepository) ListByConnectionID(ctx context.Context, connectionID int64) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.connection_id = $1 ORDER BY a.id`
	return r.list(ctx, query, connectionID)
}

// ListByCustomerID retrieves all accounts across a customer's connections
func (r *AccountRepository) ListByCustomerID(ctx context.Context, customerID int64) ([]*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN connections c ON c.id = a.connection_id
		WHERE c.customer_id = $1
		ORDER BY a.id
	`
	return r.list(ctx, query, customerID)
}

func (r *AccountRepository) list(ctx context.Context, query string, arg any) ([]*account.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg any) (*account.Account, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

func scanAccount(row Row) (*account.Account, error) {
	var acc account.Account
	var nature, iban, swift, sortCode, accountNumber sql.NullString
	var extra []byte

	err := row.Scan(
		&acc.ID, &acc.RemoteID, &acc.ConnectionID, &acc.Name, &nature, &acc.Balance, &acc.CurrencyCode,
		&iban, &swift, &sortCode, &accountNumber, &extra, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.Nature = nature.String
	acc.IBAN = iban.String
	acc.SWIFT = swift.String
	acc.SortCode = sortCode.String
	acc.AccountNumber = accountNumber.String
	acc.Extra = jsonValue(extra)

	return &acc, nil
}
