package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Local statuses. The aggregator may also report values such as inactive or
// disabled, which are stored as given.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDisabled = "disabled"
	StatusError    = "error"
	StatusRemoved  = "removed"
)

// Domain errors
var (
	ErrNotFound          = errors.New("connection not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrOwnershipConflict = errors.New("remote connection already belongs to another customer")
)

// Connection is one customer's authorized link to a bank.
type Connection struct {
	ID                      int64           `json:"id"`
	RemoteID                string          `json:"remote_connection_id"`
	CustomerID              int64           `json:"customer_id"`
	ProviderCode            string          `json:"provider_code"`
	ProviderName            string          `json:"provider_name,omitempty"`
	CountryCode             string          `json:"country_code,omitempty"`
	Status                  string          `json:"status"`
	Categorization          string          `json:"categorization,omitempty"`
	ShowConsentConfirmation bool            `json:"show_consent_confirmation"`
	ConsentID               string          `json:"consent_id,omitempty"`
	ConsentGivenAt          *time.Time      `json:"consent_given_at,omitempty"`
	ConsentExpiresAt        *time.Time      `json:"consent_expires_at,omitempty"`
	LastSuccessAt           *time.Time      `json:"last_success_at,omitempty"`
	NextRefreshPossibleAt   *time.Time      `json:"next_refresh_possible_at,omitempty"`
	CustomFields            json.RawMessage `json:"custom_fields,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// UpsertParams is keyed by RemoteID.
type UpsertParams struct {
	RemoteID                string
	CustomerID              int64
	ProviderCode            string
	ProviderName            string
	CountryCode             string
	Status                  string
	Categorization          string
	ShowConsentConfirmation bool
	ConsentID               string
	ConsentGivenAt          *time.Time
	ConsentExpiresAt        *time.Time
	LastSuccessAt           *time.Time
	NextRefreshPossibleAt   *time.Time
	CustomFields            json.RawMessage
}

func (p UpsertParams) Validate() error {
	if p.RemoteID == "" {
		return errors.New("remote connection id is required")
	}
	if p.CustomerID <= 0 {
		return errors.New("valid customer id is required")
	}
	if p.ProviderCode == "" {
		return errors.New("provider code is required")
	}
	return nil
}
