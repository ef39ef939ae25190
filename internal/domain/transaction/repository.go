package transaction

import "context"

// Repository defines transaction persistence.
// Defined in the domain layer, implemented in infrastructure.
type Repository interface {
	// Upsert inserts or updates by remote id. Returns ErrOwnershipConflict
	// when the remote id is already attached to a different account.
	Upsert(ctx context.Context, params UpsertParams) (*Transaction, error)

	GetByID(ctx context.Context, id int64) (*Transaction, error)

	// List returns transactions newest first.
	List(ctx context.Context, filter Filter) ([]*Transaction, error)

	ListCategories(ctx context.Context) ([]CategoryPair, error)
}
