package saltedge

import (
	"context"
	"fmt"
)

// collectAll follows meta.next_id until the aggregator stops returning one.
// maxPages bounds the walk so a cursor that never advances cannot loop forever.
func collectAll[T any](ctx context.Context, maxPages int, fetch func(ctx context.Context, fromID string) (*Page[T], error)) ([]T, error) {
	var all []T
	fromID := ""
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := fetch(ctx, fromID)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Data...)

		next := p.Meta.NextID
		if next == "" || next == fromID {
			return all, nil
		}
		fromID = next
	}
	return nil, fmt.Errorf("%w after %d pages", ErrTooManyPages, maxPages)
}

// ListAllConnections returns every connection of a customer.
func (c *Client) ListAllConnections(ctx context.Context, customerID string) ([]Connection, error) {
	return collectAll(ctx, c.maxPages, func(ctx context.Context, fromID string) (*Page[Connection], error) {
		return c.ListConnections(ctx, customerID, fromID)
	})
}

// ListAllAccounts returns every account of a connection.
func (c *Client) ListAllAccounts(ctx context.Context, connectionID string) ([]Account, error) {
	return collectAll(ctx, c.maxPages, func(ctx context.Context, fromID string) (*Page[Account], error) {
		return c.ListAccounts(ctx, connectionID, fromID)
	})
}

// ListAllTransactions returns every transaction matching query. query.FromID
// is ignored; the walk always starts at the first page.
func (c *Client) ListAllTransactions(ctx context.Context, query TransactionQuery) ([]Transaction, error) {
	return collectAll(ctx, c.maxPages, func(ctx context.Context, fromID string) (*Page[Transaction], error) {
		q := query
		q.FromID = fromID
		return c.ListTransactions(ctx, q)
	})
}

// ListAllProviders returns every provider matching query.
func (c *Client) ListAllProviders(ctx context.Context, query ProviderQuery) ([]Provider, error) {
	return collectAll(ctx, c.maxPages, func(ctx context.Context, fromID string) (*Page[Provider], error) {
		q := query
		q.FromID = fromID
		return c.ListProviders(ctx, q)
	})
}
