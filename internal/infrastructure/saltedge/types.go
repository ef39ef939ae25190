package saltedge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Meta carries the cursor for list endpoints.
type Meta struct {
	NextID   string `json:"next_id"`
	NextPage string `json:"next_page"`
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type Customer struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	BlockedAt  string `json:"blocked_at,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type CreateCustomerParams struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type RemovedCustomer struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type Consent struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	Scopes    []string `json:"scopes,omitempty"`
	CreatedAt string   `json:"created_at"`
	ExpiresAt string   `json:"expires_at"`
}

type Connection struct {
	ID                      string          `json:"id"`
	CustomerID              string          `json:"customer_id"`
	ProviderCode            string          `json:"provider_code"`
	ProviderName            string          `json:"provider_name"`
	CountryCode             string          `json:"country_code"`
	Status                  string          `json:"status"`
	Categorization          string          `json:"categorization"`
	ShowConsentConfirmation bool            `json:"show_consent_confirmation"`
	LastConsentID           string          `json:"last_consent_id"`
	Consent                 *Consent        `json:"consent,omitempty"`
	CustomFields            json.RawMessage `json:"custom_fields,omitempty"`
	LastSuccessAt           string          `json:"last_success_at"`
	NextRefreshPossibleAt   string          `json:"next_refresh_possible_at"`
	CreatedAt               string          `json:"created_at"`
	UpdatedAt               string          `json:"updated_at"`
}

// ConsentID prefers the embedded consent over last_consent_id.
func (c *Connection) ConsentID() string {
	if c.Consent != nil && c.Consent.ID != "" {
		return c.Consent.ID
	}
	return c.LastConsentID
}

func (c *Connection) GetConsentGivenAt() (*time.Time, error) {
	if c.Consent == nil {
		return nil, nil
	}
	return ParseTimestamp(c.Consent.CreatedAt)
}

func (c *Connection) GetConsentExpiresAt() (*time.Time, error) {
	if c.Consent == nil {
		return nil, nil
	}
	return ParseTimestamp(c.Consent.ExpiresAt)
}

func (c *Connection) GetLastSuccessAt() (*time.Time, error) {
	return ParseTimestamp(c.LastSuccessAt)
}

func (c *Connection) GetNextRefreshPossibleAt() (*time.Time, error) {
	return ParseTimestamp(c.NextRefreshPossibleAt)
}

type ConsentRequest struct {
	Scopes     []string `json:"scopes"`
	FromDate   string   `json:"from_date,omitempty"`
	PeriodDays int      `json:"period_days,omitempty"`
}

type CreateConnectionParams struct {
	CustomerID   string            `json:"customer_id"`
	CountryCode  string            `json:"country_code"`
	ProviderCode string            `json:"provider_code"`
	Consent      *ConsentRequest   `json:"consent,omitempty"`
	Credentials  map[string]string `json:"credentials,omitempty"`
	ReturnTo     string            `json:"return_to,omitempty"`
	DailyRefresh bool              `json:"daily_refresh,omitempty"`
}

// CreatedConnection is the aggregator's answer to a connect request. The end
// user finishes authorization at ConnectURL.
type CreatedConnection struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ConnectURL string `json:"connect_url"`
	ExpiresAt  string `json:"expires_at"`
}

type RefreshParams struct {
	FetchScopes  []string `json:"fetch_scopes,omitempty"`
	ReturnTo     string   `json:"return_to,omitempty"`
	DailyRefresh *bool    `json:"daily_refresh,omitempty"`
}

func (p RefreshParams) empty() bool {
	return len(p.FetchScopes) == 0 && p.ReturnTo == "" && p.DailyRefresh == nil
}

type RemovedConnection struct {
	ID      string `json:"id"`
	Removed bool   `json:"removed"`
}

type Account struct {
	ID            string          `json:"id"`
	ConnectionID  string          `json:"connection_id"`
	Name          string          `json:"name"`
	Nature        string          `json:"nature"`
	Balance       decimal.Decimal `json:"balance"`
	CurrencyCode  string          `json:"currency_code"`
	IBAN          string          `json:"iban,omitempty"`
	SWIFT         string          `json:"swift,omitempty"`
	SortCode      string          `json:"sort_code,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	Extra         json.RawMessage `json:"extra,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// AccountIdentifiers are the bank identifiers of an account.
type AccountIdentifiers struct {
	IBAN          string
	SWIFT         string
	SortCode      string
	AccountNumber string
}

// Identifiers reads bank identifiers from the top level, falling back to the
// extra object where the aggregator usually nests them.
func (a *Account) Identifiers() AccountIdentifiers {
	ids := AccountIdentifiers{
		IBAN:          a.IBAN,
		SWIFT:         a.SWIFT,
		SortCode:      a.SortCode,
		AccountNumber: a.AccountNumber,
	}
	if len(a.Extra) == 0 {
		return ids
	}
	var extra struct {
		IBAN          string `json:"iban"`
		SWIFT         string `json:"swift"`
		SortCode      string `json:"sort_code"`
		AccountNumber string `json:"account_number"`
	}
	if err := json.Unmarshal(a.Extra, &extra); err != nil {
		return ids
	}
	if ids.IBAN == "" {
		ids.IBAN = extra.IBAN
	}
	if ids.SWIFT == "" {
		ids.SWIFT = extra.SWIFT
	}
	if ids.SortCode == "" {
		ids.SortCode = extra.SortCode
	}
	if ids.AccountNumber == "" {
		ids.AccountNumber = extra.AccountNumber
	}
	return ids
}

type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Duplicated   bool            `json:"duplicated"`
	Mode         string          `json:"mode"`
	Status       string          `json:"status"`
	MadeOn       string          `json:"made_on"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	CategoryCode string          `json:"category_code,omitempty"`
	Extra        json.RawMessage `json:"extra,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// GetMadeOn parses made_on, which is either a calendar date or a timestamp.
func (t *Transaction) GetMadeOn() (time.Time, error) {
	return ParseMadeOn(t.MadeOn)
}

// GetCategoryCode falls back to the category name when no code is sent.
func (t *Transaction) GetCategoryCode() string {
	if t.CategoryCode != "" {
		return t.CategoryCode
	}
	return t.Category
}

type TransactionQuery struct {
	ConnectionID string
	AccountID    string
	FromID       string
	FromDate     string
	ToDate       string
}

type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Provider struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Mode           string `json:"mode"`
	Status         string `json:"status"`
	CountryCode    string `json:"country_code"`
	Interactive    bool   `json:"interactive"`
	AutomaticFetch bool   `json:"automatic_fetch"`
	HomeURL        string `json:"home_url,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
}

// IsFake reports whether the provider is one of the aggregator's sandbox banks.
func (p *Provider) IsFake() bool {
	code := strings.ToLower(p.Code)
	return strings.Contains(code, "fake") || strings.HasPrefix(code, "faux_")
}

type ProviderQuery struct {
	CountryCode string
	Mode        string
	FromID      string
}

// Categories maps vertical -> category -> subcategories.
type Categories map[string]map[string][]string

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an aggregator timestamp. Values without an offset
// are taken as UTC. An empty string yields nil.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", s)
}

// ParseMadeOn accepts either "2006-01-02" or a full timestamp.
func ParseMadeOn(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("made_on is empty")
	}
	if strings.Contains(s, "T") {
		t, err := ParseTimestamp(s)
		if err != nil {
			return time.Time{}, err
		}
		return *t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid made_on %q: %w", s, err)
	}
	return t, nil
}
