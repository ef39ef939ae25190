package saltedge

import "context"

// ClientInterface defines the aggregator operations used by the service.
// Domain packages declare narrower views of it for their own needs.
type ClientInterface interface {
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	ListCustomers(ctx context.Context, fromID string) (*Page[Customer], error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	RemoveCustomer(ctx context.Context, customerID string) (*RemovedCustomer, error)

	ListConnections(ctx context.Context, customerID, fromID string) (*Page[Connection], error)
	ListAllConnections(ctx context.Context, customerID string) ([]Connection, error)
	GetConnection(ctx context.Context, connectionID string) (*Connection, error)
	CreateConnection(ctx context.Context, params CreateConnectionParams) (*CreatedConnection, error)
	RefreshConnection(ctx context.Context, connectionID string, params RefreshParams) (*Connection, error)
	RemoveConnection(ctx context.Context, connectionID string) (*RemovedConnection, error)

	ListAccounts(ctx context.Context, connectionID, fromID string) (*Page[Account], error)
	ListAllAccounts(ctx context.Context, connectionID string) ([]Account, error)
	ListTransactions(ctx context.Context, query TransactionQuery) (*Page[Transaction], error)
	ListAllTransactions(ctx context.Context, query TransactionQuery) ([]Transaction, error)

	ListCountries(ctx context.Context) ([]Country, error)
	ListProviders(ctx context.Context, query ProviderQuery) (*Page[Provider], error)
	ListAllProviders(ctx context.Context, query ProviderQuery) ([]Provider, error)
	GetProvider(ctx context.Context, code string) (*Provider, error)
	ListCategories(ctx context.Context) (Categories, error)
}
