package customer

import "context"

// Repository defines customer persistence.
// Defined in the domain layer, implemented in infrastructure.
type Repository interface {
	// Create returns ErrAlreadyExists when the identifier or remote id is taken.
	Create(ctx context.Context, params CreateParams) (*Customer, error)

	GetByID(ctx context.Context, id int64) (*Customer, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Customer, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*Customer, error)
	List(ctx context.Context) ([]*Customer, error)

	// Delete removes the customer and, by cascade, everything it owns.
	Delete(ctx context.Context, id int64) error
}
