package banksync

import (
	"context"

	"bankmirror/internal/domain/account"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/domain/transaction"
	"bankmirror/internal/infrastructure/saltedge"
)

// Remote is the subset of the aggregator client a sync run reads from.
type Remote interface {
	ListAllConnections(ctx context.Context, customerID string) ([]saltedge.Connection, error)
	ListAllAccounts(ctx context.Context, connectionID string) ([]saltedge.Account, error)
	ListAllTransactions(ctx context.Context, query saltedge.TransactionQuery) ([]saltedge.Transaction, error)
}

// CustomerLookup resolves the caller-chosen identifier.
type CustomerLookup interface {
	GetByIdentifier(ctx context.Context, identifier string) (*customer.Customer, error)
}

// Store opens the single storage transaction a run writes through.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is one open storage transaction. Repositories returned from it
// write inside that transaction. Savepoints nest partial rollbacks within it.
type UnitOfWork interface {
	// LockCustomer blocks until no other transaction holds the customer's lock.
	// The lock is released on Commit or Rollback.
	LockCustomer(ctx context.Context, customerID int64) error

	Connections() connection.Repository
	Accounts() account.Repository
	Transactions() transaction.Repository

	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error

	Commit() error
	Rollback() error
}
