// Package banksync reconciles a customer's aggregator data into local storage.
package banksync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankmirror/internal/domain/customer"
	"bankmirror/internal/infrastructure/saltedge"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const DefaultFetchConcurrency = 4

const (
	connectionSavepoint = "sync_connection"
	subtreeSavepoint    = "sync_subtree"
)

var (
	syncTracer         = otel.Tracer("bankmirror/banksync")
	syncMeter          = otel.Meter("bankmirror/banksync")
	syncRunDuration, _ = syncMeter.Float64Histogram("banksync.run.duration",
		metric.WithDescription("Customer sync duration in seconds"),
		metric.WithUnit("s"),
	)
	syncEntities, _ = syncMeter.Int64Counter("banksync.entities.synced",
		metric.WithDescription("Entities upserted by committed sync runs"),
	)
	syncErrors, _ = syncMeter.Int64Counter("banksync.errors",
		metric.WithDescription("Non-fatal errors collected during sync runs"),
	)
)

// Result summarizes one run. Counters are upsert counts of committed rows,
// so a repeated run with unchanged remote data reports the same numbers.
type Result struct {
	CustomerID         int64    `json:"customer_id"`
	ConnectionsSynced  int      `json:"connections_synced"`
	AccountsSynced     int      `json:"accounts_synced"`
	TransactionsSynced int      `json:"transactions_synced"`
	Errors             []string `json:"errors"`
}

func (r *Result) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Engine pulls connections, accounts and transactions for one customer and
// upserts them by remote id inside a single storage transaction.
type Engine struct {
	remote      Remote
	customers   CustomerLookup
	store       Store
	logger      zerolog.Logger
	concurrency int
	locks       *keyedMutex
}

type Option func(*Engine)

// WithFetchConcurrency bounds how many connections are fetched at once.
func WithFetchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewEngine(remote Remote, customers CustomerLookup, store Store, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		remote:      remote,
		customers:   customers,
		store:       store,
		logger:      logger.With().Str("component", "banksync").Logger(),
		concurrency: DefaultFetchConcurrency,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// connectionTree is everything fetched for one connection before any write.
type connectionTree struct {
	conn     saltedge.Connection
	accounts []accountTree
	err      error
}

type accountTree struct {
	account      saltedge.Account
	transactions []saltedge.Transaction
	err          error
}

// SyncCustomer runs a full sync for the customer with the given identifier.
// Partial failures are reported in Result.Errors. The returned error is
// ErrCustomerNotFound, a *CommitError, or a storage failure that forced the
// whole run to roll back.
func (e *Engine) SyncCustomer(ctx context.Context, identifier string) (*Result, error) {
	ctx, span := syncTracer.Start(ctx, "banksync.SyncCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.identifier", identifier))

	start := time.Now()
	result, err := e.syncCustomer(ctx, identifier)

	status := "ok"
	switch {
	case err != nil:
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case len(result.Errors) > 0:
		status = "partial"
	}
	syncRunDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("status", status)))

	if result != nil && err == nil {
		syncEntities.Add(ctx, int64(result.ConnectionsSynced), metric.WithAttributes(attribute.String("entity", "connection")))
		syncEntities.Add(ctx, int64(result.AccountsSynced), metric.WithAttributes(attribute.String("entity", "account")))
		syncEntities.Add(ctx, int64(result.TransactionsSynced), metric.WithAttributes(attribute.String("entity", "transaction")))
		syncErrors.Add(ctx, int64(len(result.Errors)))
	}

	return result, err
}

func (e *Engine) syncCustomer(ctx context.Context, identifier string) (*Result, error) {
	cust, err := e.customers.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, identifier)
		}
		return nil, fmt.Errorf("failed to load customer %s: %w", identifier, err)
	}

	log := e.logger.With().Int64("customer_id", cust.ID).Str("remote_customer_id", cust.RemoteID).Logger()

	unlock := e.locks.lock(cust.ID)
	defer unlock()

	result := &Result{CustomerID: cust.ID, Errors: []string{}}

	remoteConns, err := e.remote.ListAllConnections(ctx, cust.RemoteID)
	if err != nil {
		result.addError(&ReconciliationError{Stage: "list connections", Err: err})
		log.Warn().Err(err).Msg("Failed to list remote connections")
		return result, nil
	}

	trees := e.fetch(ctx, remoteConns)

	if err := e.persist(ctx, cust.ID, trees, result); err != nil {
		log.Error().Err(err).Msg("Sync rolled back")
		return nil, err
	}

	log.Info().
		Int("connections", result.ConnectionsSynced).
		Int("accounts", result.AccountsSynced).
		Int("transactions", result.TransactionsSynced).
		Int("errors", len(result.Errors)).
		Msg("Sync complete")

	return result, nil
}

// fetch reads every connection's sub-tree from the aggregator. Failures are
// kept on the tree so one connection never cancels another.
func (e *Engine) fetch(ctx context.Context, conns []saltedge.Connection) []connectionTree {
	trees := make([]connectionTree, len(conns))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range conns {
		trees[i].conn = conns[i]
		g.Go(func() error {
			e.fetchConnection(ctx, &trees[i])
			return nil
		})
	}
	_ = g.Wait()

	return trees
}

func (e *Engine) fetchConnection(ctx context.Context, tree *connectionTree) {
	accounts, err := e.remote.ListAllAccounts(ctx, tree.conn.ID)
	if err != nil {
		tree.err = err
		return
	}

	tree.accounts = make([]accountTree, len(accounts))
	for i := range accounts {
		at := &tree.accounts[i]
		at.account = accounts[i]
		at.transactions, at.err = e.remote.ListAllTransactions(ctx, saltedge.TransactionQuery{
			ConnectionID: tree.conn.ID,
			AccountID:    accounts[i].ID,
		})
	}
}

// persist writes all trees in one transaction. Each connection row and each
// connection's accounts and transactions sit behind their own savepoint, so
// a failing sub-tree is undone without touching its siblings.
func (e *Engine) persist(ctx context.Context, customerID int64, trees []connectionTree, result *Result) error {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := uow.Rollback(); rbErr != nil {
			e.logger.Error().Err(rbErr).Int64("customer_id", customerID).Msg("Failed to roll back sync")
		}
	}()

	if err := uow.LockCustomer(ctx, customerID); err != nil {
		return fmt.Errorf("failed to lock customer %d: %w", customerID, err)
	}

	for i := range trees {
		if err := e.persistConnection(ctx, uow, customerID, &trees[i], result); err != nil {
			return err
		}
	}

	if err := uow.Commit(); err != nil {
		return &CommitError{Err: err}
	}
	committed = true

	return nil
}

func (e *Engine) persistConnection(ctx context.Context, uow UnitOfWork, customerID int64, tree *connectionTree, result *Result) error {
	remoteID := tree.conn.ID

	params, err := connectionParams(customerID, &tree.conn)
	if err != nil {
		result.addError(&ReconciliationError{ConnectionID: remoteID, Stage: "map connection", Err: err})
		return nil
	}

	if err := uow.Savepoint(ctx, connectionSavepoint); err != nil {
		return err
	}
	local, err := uow.Connections().Upsert(ctx, params)
	if err != nil {
		result.addError(&ReconciliationError{ConnectionID: remoteID, Stage: "persist connection", Err: err})
		return undo(ctx, uow, connectionSavepoint)
	}
	if err := uow.Release(ctx, connectionSavepoint); err != nil {
		return err
	}
	result.ConnectionsSynced++

	if tree.err != nil {
		result.addError(&ReconciliationError{ConnectionID: remoteID, Stage: "fetch accounts", Err: tree.err})
		return nil
	}
	for i := range tree.accounts {
		if at := &tree.accounts[i]; at.err != nil {
			result.addError(&ReconciliationError{
				ConnectionID: remoteID,
				AccountID:    at.account.ID,
				Stage:        "fetch transactions",
				Err:          at.err,
			})
		}
	}

	if err := uow.Savepoint(ctx, subtreeSavepoint); err != nil {
		return err
	}
	accounts, transactions, err := persistAccounts(ctx, uow, local.ID, tree)
	if err != nil {
		result.addError(err)
		return undo(ctx, uow, subtreeSavepoint)
	}
	if err := uow.Release(ctx, subtreeSavepoint); err != nil {
		return err
	}
	result.AccountsSynced += accounts
	result.TransactionsSynced += transactions

	return nil
}

// persistAccounts returns a *ReconciliationError for data problems. Accounts
// always precede their transactions.
func persistAccounts(ctx context.Context, uow UnitOfWork, connectionID int64, tree *connectionTree) (accounts, transactions int, err error) {
	fail := func(accountID, stage string, err error) (int, int, error) {
		return 0, 0, &ReconciliationError{ConnectionID: tree.conn.ID, AccountID: accountID, Stage: stage, Err: err}
	}

	for i := range tree.accounts {
		at := &tree.accounts[i]

		params, err := accountParams(connectionID, &at.account)
		if err != nil {
			return fail(at.account.ID, "map account", err)
		}
		local, err := uow.Accounts().Upsert(ctx, params)
		if err != nil {
			return fail(at.account.ID, "persist account", err)
		}
		accounts++

		if at.err != nil {
			continue
		}
		for j := range at.transactions {
			t := &at.transactions[j]
			txParams, err := transactionParams(local.ID, t)
			if err != nil {
				return fail(at.account.ID, "map transaction "+t.ID, err)
			}
			if _, err := uow.Transactions().Upsert(ctx, txParams); err != nil {
				return fail(at.account.ID, "persist transaction "+t.ID, err)
			}
			transactions++
		}
	}

	return accounts, transactions, nil
}

func undo(ctx context.Context, uow UnitOfWork, savepoint string) error {
	if err := uow.RollbackTo(ctx, savepoint); err != nil {
		return fmt.Errorf("failed to roll back to %s: %w", savepoint, err)
	}
	return uow.Release(ctx, savepoint)
}
