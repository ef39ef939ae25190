package account

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Account natures reported by the aggregator.
var natures = map[string]struct{}{
	"account":     {},
	"bonus":       {},
	"card":        {},
	"checking":    {},
	"credit":      {},
	"credit_card": {},
	"debit_card":  {},
	"ewallet":     {},
	"insurance":   {},
	"investment":  {},
	"loan":        {},
	"mortgage":    {},
	"savings":     {},
}

// Domain errors
var (
	ErrNotFound          = errors.New("account not found")
	ErrInvalidNature     = errors.New("invalid account nature")
	ErrInvalidCurrency   = errors.New("currency must be a 3-letter ISO 4217 code")
	ErrInvalidInput      = errors.New("invalid input")
	ErrOwnershipConflict = errors.New("remote account already belongs to another connection")
)

// Account is a local mirror of one aggregator account.
type Account struct {
	ID            int64           `json:"id"`
	RemoteID      string          `json:"remote_account_id"`
	ConnectionID  int64           `json:"connection_id"`
	Name          string          `json:"name"`
	Nature        string          `json:"nature"`
	Balance       decimal.Decimal `json:"balance"`
	CurrencyCode  string          `json:"currency_code"`
	IBAN          string          `json:"iban,omitempty"`
	SWIFT         string          `json:"swift,omitempty"`
	SortCode      string          `json:"sort_code,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	Extra         json.RawMessage `json:"extra,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// UpsertParams is keyed by RemoteID; ConnectionID must match the owner of an
// existing row.
type UpsertParams struct {
	RemoteID      string
	ConnectionID  int64
	Name          string
	Nature        string
	Balance       decimal.Decimal
	CurrencyCode  string
	IBAN          string
	SWIFT         string
	SortCode      string
	AccountNumber string
	Extra         json.RawMessage
}

func (p UpsertParams) Validate() error {
	if p.RemoteID == "" {
		return errors.New("remote account id is required")
	}
	if p.ConnectionID <= 0 {
		return errors.New("valid connection id is required")
	}
	if p.Name == "" {
		return errors.New("account name is required")
	}
	if p.Nature != "" && !IsValidNature(p.Nature) {
		return ErrInvalidNature
	}
	if p.CurrencyCode != "" && !IsValidCurrency(p.CurrencyCode) {
		return ErrInvalidCurrency
	}
	return nil
}

// IsValidNature checks the nature against the aggregator's enumeration.
func IsValidNature(n string) bool {
	_, ok := natures[n]
	return ok
}

// IsValidCurrency accepts any three upper-case ASCII letters.
func IsValidCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}
