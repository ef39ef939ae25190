// Package report builds read-only summaries over mirrored data.
package report

import (
	"context"
	"time"

	"bankmirror/internal/domain/account"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/domain/transaction"

	"github.com/shopspring/decimal"
)

type CustomerReader interface {
	GetByID(ctx context.Context, id int64) (*customer.Customer, error)
}

type AccountReader interface {
	ListByCustomerID(ctx context.Context, customerID int64) ([]*account.Account, error)
}

type TransactionReader interface {
	List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error)
}

type Service struct {
	customers    CustomerReader
	accounts     AccountReader
	transactions TransactionReader
}

func NewService(customers CustomerReader, accounts AccountReader, transactions TransactionReader) *Service {
	return &Service{customers: customers, accounts: accounts, transactions: transactions}
}

func (s *Service) AccountSummary(ctx context.Context, customerID int64) (*AccountSummary, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}

	accounts, err := s.accounts.ListByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	summary := &AccountSummary{
		CustomerID:         customerID,
		TotalAccounts:      len(accounts),
		BalancesByCurrency: make(map[string]decimal.Decimal),
		AccountsByNature:   make(map[string]int),
		Accounts:           accounts,
	}
	if summary.Accounts == nil {
		summary.Accounts = []*account.Account{}
	}

	for _, a := range accounts {
		currency := a.CurrencyCode
		if currency == "" {
			currency = unknown
		}
		summary.BalancesByCurrency[currency] = summary.BalancesByCurrency[currency].Add(a.Balance)

		nature := a.Nature
		if nature == "" {
			nature = unknown
		}
		summary.AccountsByNature[nature]++
	}

	return summary, nil
}

// TransactionSummary totals a customer's transactions made between from and
// to. Both bounds are calendar days and inclusive; either may be nil.
func (s *Service) TransactionSummary(ctx context.Context, customerID int64, from, to *time.Time) (*TransactionSummary, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, ErrInvalidPeriod
	}
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}

	filter := transaction.Filter{CustomerID: customerID}
	summary := &TransactionSummary{
		CustomerID: customerID,
		Currencies: make(map[string]*CurrencySummary),
	}
	if from != nil {
		start := startOfDay(*from)
		filter.From = &start
		summary.Period.From = formatDay(start)
	}
	if to != nil {
		end := startOfDay(*to).AddDate(0, 0, 1).Add(-time.Microsecond)
		filter.To = &end
		summary.Period.To = formatDay(*to)
	}

	txs, err := s.transactions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary.TotalTransactions = len(txs)
	for _, t := range txs {
		cs, ok := summary.Currencies[t.CurrencyCode]
		if !ok {
			cs = &CurrencySummary{
				Categories: make(map[string]*Bucket),
				Months:     make(map[string]*Bucket),
			}
			summary.Currencies[t.CurrencyCode] = cs
		}
		cs.add(t.Amount)

		category := t.Category
		if category == "" {
			category = uncategorized
		}
		bucketFor(cs.Categories, category).add(t.Amount)
		bucketFor(cs.Months, t.MadeOn.UTC().Format(monthLayout)).add(t.Amount)
	}

	return summary, nil
}

func bucketFor(m map[string]*Bucket, key string) *Bucket {
	b, ok := m[key]
	if !ok {
		b = &Bucket{}
		m[key] = b
	}
	return b
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatDay(t time.Time) *string {
	s := t.Format(time.DateOnly)
	return &s
}
