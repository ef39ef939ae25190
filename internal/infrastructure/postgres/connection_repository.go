package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bankmirror/internal/domain/connection"
)

// ConnectionRepository implements connection.Repository for PostgreSQL
type ConnectionRepository struct {
	db Querier
}

func NewConnectionRepository(db Querier) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, remote_id, customer_id, provider_code, provider_name, country_code, status,
	categorization, show_consent_confirmation, consent_id, consent_given_at, consent_expires_at,
	last_success_at, next_refresh_possible_at, custom_fields, created_at, updated_at`

// Upsert overwrites every mutable field. The WHERE clause on the conflict
// branch keeps a remote id from moving between customers.
func (r *ConnectionRepository) Upsert(ctx context.Context, params connection.UpsertParams) (*connection.Connection, error) {
	query := `
		INSERT INTO connections (
			remote_id, customer_id, provider_code, provider_name, country_code, status,
			categorization, show_consent_confirmation, consent_id, consent_given_at, consent_expires_at,
			last_success_at, next_refresh_possible_at, custom_fields
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (remote_id) DO UPDATE SET
			provider_code = EXCLUDED.provider_code,
			provider_name = EXCLUDED.provider_name,
			country_code = EXCLUDED.country_code,
			status = EXCLUDED.status,
			categorization = EXCLUDED.categorization,
			show_consent_confirmation = EXCLUDED.show_consent_confirmation,
			consent_id = EXCLUDED.consent_id,
			consent_given_at = EXCLUDED.consent_given_at,
			consent_expires_at = EXCLUDED.consent_expires_at,
			last_success_at = EXCLUDED.last_success_at,
			next_refresh_possible_at = EXCLUDED.next_refresh_possible_at,
			custom_fields = EXCLUDED.custom_fields,
			updated_at = CURRENT_TIMESTAMP
		WHERE connections.customer_id = EXCLUDED.customer_id
		RETURNING ` + connectionColumns

	c, err := scanConnection(r.db.QueryRowContext(ctx, query,
		params.RemoteID, params.CustomerID, params.ProviderCode, nullString(params.ProviderName),
		nullString(params.CountryCode), params.Status, nullString(params.Categorization),
		params.ShowConsentConfirmation, nullString(params.ConsentID), params.ConsentGivenAt,
		params.ConsentExpiresAt, params.LastSuccessAt, params.NextRefreshPossibleAt,
		jsonParam(params.CustomFields),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, connection.ErrOwnershipConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert connection: %w", err)
	}
	return c, nil
}

func (r *ConnectionRepository) GetByID(ctx context.Context, id int64) (*connection.Connection, error) {
	return r.getOne(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
}

func (r *ConnectionRepository) GetByRemoteID(ctx context.Context, remoteID string) (*connection.Connection, error) {
	return r.getOne(ctx, `SELECT `+connectionColumns+` FROM connections WHERE remote_id = $1`, remoteID)
}

func (r *ConnectionRepository) ListByCustomerID(ctx context.Context, customerID int64) ([]*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE customer_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var connections []*connection.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}

func (r *ConnectionRepository) UpdateStatus(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error {
	query := `
		UPDATE connections
		SET status = $2,
		    last_success_at = COALESCE($3::timestamptz, last_success_at),
		    updated_at = CURRENT_TIMESTAMP
		WHERE remote_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, remoteID, status, lastSuccessAt)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return connection.ErrNotFound
	}

	return nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return connection.ErrNotFound
	}

	return nil
}

func (r *ConnectionRepository) getOne(ctx context.Context, query string, arg any) (*connection.Connection, error) {
	c, err := scanConnection(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, connection.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return c, nil
}

func scanConnection(row Row) (*connection.Connection, error) {
	var c connection.Connection
	var providerName, countryCode, categorization, consentID sql.NullString
	var consentGivenAt, consentExpiresAt, lastSuccessAt, nextRefresh sql.NullTime
	var customFields []byte

	err := row.Scan(
		&c.ID, &c.RemoteID, &c.CustomerID, &c.ProviderCode, &providerName, &countryCode, &c.Status,
		&categorization, &c.ShowConsentConfirmation, &consentID, &consentGivenAt, &consentExpiresAt,
		&lastSuccessAt, &nextRefresh, &customFields, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ProviderName = providerName.String
	c.CountryCode = countryCode.String
	c.Categorization = categorization.String
	c.ConsentID = consentID.String
	c.ConsentGivenAt = timePtr(consentGivenAt)
	c.ConsentExpiresAt = timePtr(consentExpiresAt)
	c.LastSuccessAt = timePtr(lastSuccessAt)
	c.NextRefreshPossibleAt = timePtr(nextRefresh)
	c.CustomFields = jsonValue(customFields)

	return &c, nil
}
