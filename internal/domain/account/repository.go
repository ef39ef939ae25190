package account

import "context"

// Repository defines account persistence.
// Defined in the domain layer, implemented in infrastructure.
type Repository interface {
	// Upsert inserts or updates by remote id. Returns ErrOwnershipConflict
	// when the remote id is already attached to a different connection.
	Upsert(ctx context.Context, params UpsertParams) (*Account, error)

	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*Account, error)
	ListByConnectionID(ctx context.Context, connectionID int64) ([]*Account, error)
	ListByCustomerID(ctx context.Context, customerID int64) ([]*Account, error)
}
