package report

import (
	"errors"

	"bankmirror/internal/domain/account"

	"github.com/shopspring/decimal"
)

var ErrInvalidPeriod = errors.New("from date must not be after to date")

const (
	uncategorized = "Uncategorized"
	unknown       = "unknown"
	monthLayout   = "2006-01"
)

// AccountSummary aggregates a customer's accounts. Balances are summed per
// currency only.
type AccountSummary struct {
	CustomerID         int64                      `json:"customer_id"`
	TotalAccounts      int                        `json:"total_accounts"`
	BalancesByCurrency map[string]decimal.Decimal `json:"balances_by_currency"`
	AccountsByNature   map[string]int             `json:"accounts_by_nature"`
	Accounts           []*account.Account         `json:"accounts"`
}

// Period echoes the requested window as calendar dates.
type Period struct {
	From *string `json:"from_date"`
	To   *string `json:"to_date"`
}

// Bucket holds exact totals for one slice of transactions.
type Bucket struct {
	Count    int             `json:"transactions_count"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

func (b *Bucket) add(amount decimal.Decimal) {
	b.Count++
	if amount.IsPositive() {
		b.Income = b.Income.Add(amount)
	} else {
		b.Expenses = b.Expenses.Add(amount)
	}
	b.Net = b.Net.Add(amount)
}

// CurrencySummary groups one currency's transactions by category and month.
type CurrencySummary struct {
	Bucket
	Categories map[string]*Bucket `json:"categories"`
	Months     map[string]*Bucket `json:"monthly"`
}

type TransactionSummary struct {
	CustomerID        int64                       `json:"customer_id"`
	Period            Period                      `json:"period"`
	TotalTransactions int                         `json:"total_transactions"`
	Currencies        map[string]*CurrencySummary `json:"currencies"`
}
