package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bankmirror/internal/domain/customer"
)

// SecretCipher encrypts the aggregator-issued customer secret at rest.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// CustomerRepository implements customer.Repository for PostgreSQL
type CustomerRepository struct {
	db     Querier
	cipher SecretCipher
}

func NewCustomerRepository(db Querier, cipher SecretCipher) *CustomerRepository {
	return &CustomerRepository{db: db, cipher: cipher}
}

const customerColumns = `id, remote_id, identifier, email, first_name, last_name, phone, secret, created_at, updated_at`

func (r *CustomerRepository) Create(ctx context.Context, params customer.CreateParams) (*customer.Customer, error) {
	secret, err := r.cipher.Encrypt(params.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt customer secret: %w", err)
	}

	query := `
		INSERT INTO customers (remote_id, identifier, email, first_name, last_name, phone, secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + customerColumns

	c, err := r.scan(r.db.QueryRowContext(ctx, query,
		params.RemoteID, params.Identifier, nullString(params.Email), nullString(params.FirstName),
		nullString(params.LastName), nullString(params.Phone), nullString(secret),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, customer.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

func (r *CustomerRepository) GetByIdentifier(ctx context.Context, identifier string) (*customer.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE identifier = $1`, identifier)
}

func (r *CustomerRepository) GetByRemoteID(ctx context.Context, remoteID string) (*customer.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE remote_id = $1`, remoteID)
}

func (r *CustomerRepository) List(ctx context.Context) ([]*customer.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*customer.Customer
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, nil
}

func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return customer.ErrNotFound
	}

	return nil
}

func (r *CustomerRepository) getOne(ctx context.Context, query string, arg any) (*customer.Customer, error) {
	c, err := r.scan(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) scan(row Row) (*customer.Customer, error) {
	var c customer.Customer
	var email, firstName, lastName, phone, secret sql.NullString

	err := row.Scan(
		&c.ID, &c.RemoteID, &c.Identifier, &email, &firstName, &lastName, &phone, &secret,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Email = email.String
	c.FirstName = firstName.String
	c.LastName = lastName.String
	c.Phone = phone.String

	if secret.Valid {
		c.Secret, err = r.cipher.Decrypt(secret.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt secret for customer %d: %w", c.ID, err)
		}
	}

	return &c, nil
}
