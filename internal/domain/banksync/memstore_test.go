package banksync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bankmirror/internal/domain/account"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/transaction"
)

// memState is a copy-on-savepoint snapshot of the three synced tables.
type memState struct {
	nextID       int64
	connections  map[string]connection.Connection
	accounts     map[string]account.Account
	transactions map[string]transaction.Transaction
}

func newMemState() *memState {
	return &memState{
		connections:  map[string]connection.Connection{},
		accounts:     map[string]account.Account{},
		transactions: map[string]transaction.Transaction{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	c.nextID = s.nextID
	for k, v := range s.connections {
		c.connections[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	return c
}

// memStore is an in-memory Store whose units of work honor savepoints.
type memStore struct {
	mu        sync.Mutex
	state     *memState
	commitErr error
	failOn    map[string]error // remote account id -> upsert error
	begins    int
	locked    []int64
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), failOn: map[string]error{}}
}

func (s *memStore) Begin(ctx context.Context) (UnitOfWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	return &memUnit{store: s, state: s.state.clone()}, nil
}

func (s *memStore) counts() (conns, accs, txs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.connections), len(s.state.accounts), len(s.state.transactions)
}

func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

type savepoint struct {
	name  string
	state *memState
}

type memUnit struct {
	store      *memStore
	state      *memState
	savepoints []savepoint
	done       bool
}

func (u *memUnit) LockCustomer(ctx context.Context, customerID int64) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.locked = append(u.store.locked, customerID)
	return nil
}

func (u *memUnit) Connections() connection.Repository   { return &memConnections{u} }
func (u *memUnit) Accounts() account.Repository         { return &memAccounts{u} }
func (u *memUnit) Transactions() transaction.Repository { return &memTransactions{u} }

func (u *memUnit) Savepoint(ctx context.Context, name string) error {
	u.savepoints = append(u.savepoints, savepoint{name: name, state: u.state.clone()})
	return nil
}

func (u *memUnit) find(name string) (int, error) {
	for i := len(u.savepoints) - 1; i >= 0; i-- {
		if u.savepoints[i].name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("savepoint %s does not exist", name)
}

func (u *memUnit) RollbackTo(ctx context.Context, name string) error {
	i, err := u.find(name)
	if err != nil {
		return err
	}
	u.state = u.savepoints[i].state.clone()
	u.savepoints = u.savepoints[:i+1]
	return nil
}

func (u *memUnit) Release(ctx context.Context, name string) error {
	i, err := u.find(name)
	if err != nil {
		return err
	}
	u.savepoints = u.savepoints[:i]
	return nil
}

func (u *memUnit) Commit() error {
	if u.done {
		return errors.New("transaction already closed")
	}
	u.done = true
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if u.store.commitErr != nil {
		return u.store.commitErr
	}
	u.store.state = u.state
	return nil
}

func (u *memUnit) Rollback() error {
	u.done = true
	return nil
}

type memConnections struct{ u *memUnit }

func (r *memConnections) Upsert(ctx context.Context, p connection.UpsertParams) (*connection.Connection, error) {
	s := r.u.state
	existing, ok := s.connections[p.RemoteID]
	if ok && existing.CustomerID != p.CustomerID {
		return nil, connection.ErrOwnershipConflict
	}
	c := connection.Connection{
		ID:                    existing.ID,
		RemoteID:              p.RemoteID,
		CustomerID:            p.CustomerID,
		ProviderCode:          p.ProviderCode,
		ProviderName:          p.ProviderName,
		CountryCode:           p.CountryCode,
		Status:                p.Status,
		ConsentID:             p.ConsentID,
		LastSuccessAt:         p.LastSuccessAt,
		NextRefreshPossibleAt: p.NextRefreshPossibleAt,
		UpdatedAt:             time.Now(),
	}
	if !ok {
		s.nextID++
		c.ID = s.nextID
	}
	s.connections[p.RemoteID] = c
	return &c, nil
}

func (r *memConnections) GetByID(ctx context.Context, id int64) (*connection.Connection, error) {
	for _, c := range r.u.state.connections {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, connection.ErrNotFound
}

func (r *memConnections) GetByRemoteID(ctx context.Context, remoteID string) (*connection.Connection, error) {
	c, ok := r.u.state.connections[remoteID]
	if !ok {
		return nil, connection.ErrNotFound
	}
	return &c, nil
}

func (r *memConnections) ListByCustomerID(ctx context.Context, customerID int64) ([]*connection.Connection, error) {
	var out []*connection.Connection
	for _, c := range r.u.state.connections {
		if c.CustomerID == customerID {
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memConnections) UpdateStatus(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error {
	return errors.New("not used by sync")
}

func (r *memConnections) Delete(ctx context.Context, id int64) error {
	return errors.New("not used by sync")
}

type memAccounts struct{ u *memUnit }

func (r *memAccounts) Upsert(ctx context.Context, p account.UpsertParams) (*account.Account, error) {
	if err := r.u.store.failOn[p.RemoteID]; err != nil {
		return nil, err
	}
	s := r.u.state
	existing, ok := s.accounts[p.RemoteID]
	if ok && existing.ConnectionID != p.ConnectionID {
		return nil, account.ErrOwnershipConflict
	}
	a := account.Account{
		ID:           existing.ID,
		RemoteID:     p.RemoteID,
		ConnectionID: p.ConnectionID,
		Name:         p.Name,
		Nature:       p.Nature,
		Balance:      p.Balance,
		CurrencyCode: p.CurrencyCode,
		IBAN:         p.IBAN,
	}
	if !ok {
		s.nextID++
		a.ID = s.nextID
	}
	s.accounts[p.RemoteID] = a
	return &a, nil
}

func (r *memAccounts) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	return nil, errors.New("not used by sync")
}

func (r *memAccounts) GetByRemoteID(ctx context.Context, remoteID string) (*account.Account, error) {
	a, ok := r.u.state.accounts[remoteID]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &a, nil
}

func (r *memAccounts) ListByConnectionID(ctx context.Context, connectionID int64) ([]*account.Account, error) {
	return nil, errors.New("not used by sync")
}

func (r *memAccounts) ListByCustomerID(ctx context.Context, customerID int64) ([]*account.Account, error) {
	return nil, errors.New("not used by sync")
}

type memTransactions struct{ u *memUnit }

func (r *memTransactions) Upsert(ctx context.Context, p transaction.UpsertParams) (*transaction.Transaction, error) {
	s := r.u.state
	existing, ok := s.transactions[p.RemoteID]
	if ok && existing.AccountID != p.AccountID {
		return nil, transaction.ErrOwnershipConflict
	}
	t := transaction.Transaction{
		ID:           existing.ID,
		RemoteID:     p.RemoteID,
		AccountID:    p.AccountID,
		Status:       p.Status,
		MadeOn:       p.MadeOn,
		Amount:       p.Amount,
		CurrencyCode: p.CurrencyCode,
		Category:     p.Category,
		CategoryCode: p.CategoryCode,
	}
	if !ok {
		s.nextID++
		t.ID = s.nextID
	}
	s.transactions[p.RemoteID] = t
	return &t, nil
}

func (r *memTransactions) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	return nil, errors.New("not used by sync")
}

func (r *memTransactions) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	return nil, errors.New("not used by sync")
}

func (r *memTransactions) ListCategories(ctx context.Context) ([]transaction.CategoryPair, error) {
	return nil, errors.New("not used by sync")
}

func connectionOwnedBy(customerID int64) connection.Connection {
	return connection.Connection{ID: 1, RemoteID: "conn_1", CustomerID: customerID, ProviderCode: "fake_client_xf"}
}
