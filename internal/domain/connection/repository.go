package connection

import (
	"context"
	"time"
)

// Repository defines connection persistence.
// Defined in the domain layer, implemented in infrastructure.
type Repository interface {
	// Upsert inserts or updates by remote id. Returns ErrOwnershipConflict
	// when the remote id is already attached to a different customer.
	Upsert(ctx context.Context, params UpsertParams) (*Connection, error)

	GetByID(ctx context.Context, id int64) (*Connection, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*Connection, error)
	ListByCustomerID(ctx context.Context, customerID int64) ([]*Connection, error)

	// UpdateStatus sets the status of the connection with the given remote id.
	// A nil lastSuccessAt leaves the stored value untouched.
	UpdateStatus(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error

	// Delete removes the connection and cascades to accounts and transactions.
	Delete(ctx context.Context, id int64) error
}
