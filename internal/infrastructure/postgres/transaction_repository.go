package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bankmirror/internal/domain/transaction"
)

type TransactionRepository struct {
	db Querier
}

func NewTransactionRepository(db Querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `t.id, t.remote_id, t.account_id, t.mode, t.status, t.made_on, t.amount, t.currency_code,
	t.description, t.category, t.category_code, t.duplicated, t.extra, t.created_at, t.updated_at`

func (r *TransactionRepository) Upsert(ctx context.Context, params transaction.UpsertParams) (*transaction.Transaction, error) {
	query := `
		INSERT INTO transactions AS t (
			remote_id, account_id, mode, status, made_on, amount, currency_code,
			description, category, category_code, duplicated, extra
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (remote_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			status = EXCLUDED.status,
			made_on = EXCLUDED.made_on,
			amount = EXCLUDED.amount,
			currency_code = EXCLUDED.currency_code,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			category_code = EXCLUDED.category_code,
			duplicated = EXCLUDED.duplicated,
			extra = EXCLUDED.extra,
			updated_at = CURRENT_TIMESTAMP
		WHERE t.account_id = EXCLUDED.account_id
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		params.RemoteID, params.AccountID, nullString(params.Mode), nullString(params.Status), params.MadeOn,
		params.Amount, params.CurrencyCode, nullString(params.Description), nullString(params.Category),
		nullString(params.CategoryCode), params.Duplicated, jsonParam(params.Extra),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transaction.ErrOwnershipConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transaction.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	query, args := buildListQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

func (r *TransactionRepository) ListCategories(ctx context.Context) ([]transaction.CategoryPair, error) {
	query := `
		SELECT DISTINCT category, COALESCE(category_code, '')
		FROM transactions
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var pairs []transaction.CategoryPair
	for rows.Next() {
		var p transaction.CategoryPair
		if err := rows.Scan(&p.Category, &p.CategoryCode); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		pairs = append(pairs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return pairs, nil
}

// buildListQuery turns a filter into a parameterized query, newest first.
// A customer scope joins through accounts to connections.
func buildListQuery(filter transaction.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + transactionColumns + ` FROM transactions t`)

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CustomerID > 0 {
		b.WriteString(` JOIN accounts a ON a.id = t.account_id JOIN connections c ON c.id = a.connection_id`)
		conds = append(conds, "c.customer_id = "+arg(filter.CustomerID))
	}
	if filter.AccountID > 0 {
		conds = append(conds, "t.account_id = "+arg(filter.AccountID))
	}
	if filter.From != nil {
		conds = append(conds, "t.made_on >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conds = append(conds, "t.made_on <= "+arg(*filter.To))
	}
	if filter.CategoryCode != "" {
		conds = append(conds, "t.category_code = "+arg(filter.CategoryCode))
	}

	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY t.made_on DESC, t.id DESC")

	if filter.Limit > 0 {
		b.WriteString(" LIMIT " + arg(filter.Limit))
	}
	if filter.Offset > 0 {
		b.WriteString(" OFFSET " + arg(filter.Offset))
	}

	return b.String(), args
}

func scanTransaction(row Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var mode, status, description, category, categoryCode sql.NullString
	var extra []byte

	err := row.Scan(
		&t.ID, &t.RemoteID, &t.AccountID, &mode, &status, &t.MadeOn, &t.Amount, &t.CurrencyCode,
		&description, &category, &categoryCode, &t.Duplicated, &extra, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.MadeOn = t.MadeOn.UTC()
	t.Mode = mode.String
	t.Status = status.String
	t.Description = description.String
	t.Category = category.String
	t.CategoryCode = categoryCode.String
	t.Extra = jsonValue(extra)

	return &t, nil
}
