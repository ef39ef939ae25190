package transaction

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPosted  = "posted"
	StatusPending = "pending"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Domain errors
var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidStatus     = errors.New("transaction status must be posted or pending")
	ErrOwnershipConflict = errors.New("remote transaction already belongs to another account")
)

// Transaction is a local mirror of one aggregator transaction. MadeOn keeps
// the time component when the aggregator sent one.
type Transaction struct {
	ID           int64           `json:"id"`
	RemoteID     string          `json:"remote_transaction_id"`
	AccountID    int64           `json:"account_id"`
	Mode         string          `json:"mode,omitempty"`
	Status       string          `json:"status,omitempty"`
	MadeOn       time.Time       `json:"made_on"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category,omitempty"`
	CategoryCode string          `json:"category_code,omitempty"`
	Duplicated   bool            `json:"duplicated"`
	Extra        json.RawMessage `json:"extra,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// UpsertParams is keyed by RemoteID; AccountID must match the owner of an
// existing row.
type UpsertParams struct {
	RemoteID     string
	AccountID    int64
	Mode         string
	Status       string
	MadeOn       time.Time
	Amount       decimal.Decimal
	CurrencyCode string
	Description  string
	Category     string
	CategoryCode string
	Duplicated   bool
	Extra        json.RawMessage
}

func (p UpsertParams) Validate() error {
	if p.RemoteID == "" {
		return errors.New("remote transaction id is required")
	}
	if p.AccountID <= 0 {
		return errors.New("valid account id is required")
	}
	if p.MadeOn.IsZero() {
		return errors.New("made_on is required")
	}
	if p.CurrencyCode == "" {
		return errors.New("currency code is required")
	}
	if p.Status != "" && p.Status != StatusPosted && p.Status != StatusPending {
		return ErrInvalidStatus
	}
	return nil
}

// Filter narrows a listing. Zero values mean "no constraint"; a zero Limit
// returns every matching row.
type Filter struct {
	CustomerID   int64
	AccountID    int64
	From         *time.Time
	To           *time.Time
	CategoryCode string
	Limit        int
	Offset       int
}

// CategoryPair is one distinct (category, category_code) seen locally.
type CategoryPair struct {
	Category     string `json:"category"`
	CategoryCode string `json:"category_code,omitempty"`
}
