package postgres

import (
	"context"
	"fmt"

	"bankmirror/internal/domain/account"
	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/transaction"

	"github.com/lib/pq"
)

// Store hands out units of work backed by one database transaction each.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

var _ banksync.Store = (*Store)(nil)

func (s *Store) Begin(ctx context.Context) (banksync.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{
		tx:           tx,
		connections:  NewConnectionRepository(tx),
		accounts:     NewAccountRepository(tx),
		transactions: NewTransactionRepository(tx),
	}, nil
}

type unitOfWork struct {
	tx           *Tx
	connections  *ConnectionRepository
	accounts     *AccountRepository
	transactions *TransactionRepository
}

// LockCustomer takes a transaction-scoped advisory lock keyed by the
// customer id. A concurrent run for the same customer in another process
// blocks here until this transaction ends.
func (u *unitOfWork) LockCustomer(ctx context.Context, customerID int64) error {
	if _, err := u.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, customerID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}

func (u *unitOfWork) Connections() connection.Repository   { return u.connections }
func (u *unitOfWork) Accounts() account.Repository         { return u.accounts }
func (u *unitOfWork) Transactions() transaction.Repository { return u.transactions }

func (u *unitOfWork) Savepoint(ctx context.Context, name string) error {
	return u.exec(ctx, "SAVEPOINT "+pq.QuoteIdentifier(name))
}

func (u *unitOfWork) RollbackTo(ctx context.Context, name string) error {
	return u.exec(ctx, "ROLLBACK TO SAVEPOINT "+pq.QuoteIdentifier(name))
}

func (u *unitOfWork) Release(ctx context.Context, name string) error {
	return u.exec(ctx, "RELEASE SAVEPOINT "+pq.QuoteIdentifier(name))
}

func (u *unitOfWork) Commit() error {
	return u.tx.Commit()
}

func (u *unitOfWork) Rollback() error {
	return u.tx.Rollback()
}

func (u *unitOfWork) exec(ctx context.Context, stmt string) error {
	if _, err := u.tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: %w", stmt, err)
	}
	return nil
}
