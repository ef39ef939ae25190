package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bankmirror/internal/domain/customer"
	"bankmirror/internal/infrastructure/saltedge"

	"github.com/rs/zerolog"
)

// Remote is the slice of the aggregator API the connection service needs.
type Remote interface {
	CreateConnection(ctx context.Context, params saltedge.CreateConnectionParams) (*saltedge.CreatedConnection, error)
	RefreshConnection(ctx context.Context, connectionID string, params saltedge.RefreshParams) (*saltedge.Connection, error)
	RemoveConnection(ctx context.Context, connectionID string) (*saltedge.RemovedConnection, error)
}

// CustomerLookup resolves local customers.
type CustomerLookup interface {
	GetByID(ctx context.Context, id int64) (*customer.Customer, error)
}

// ConnectParams starts a new bank connection for a customer.
type ConnectParams struct {
	CountryCode  string            `json:"country_code"`
	ProviderCode string            `json:"provider_code"`
	Scopes       []string          `json:"scopes,omitempty"`
	FromDate     string            `json:"from_date,omitempty"`
	Credentials  map[string]string `json:"credentials,omitempty"`
	ReturnTo     string            `json:"return_to,omitempty"`
	DailyRefresh bool              `json:"daily_refresh,omitempty"`
}

func (p ConnectParams) Validate() error {
	if strings.TrimSpace(p.CountryCode) == "" {
		return errors.New("country code is required")
	}
	if strings.TrimSpace(p.ProviderCode) == "" {
		return errors.New("provider code is required")
	}
	return nil
}

var defaultScopes = []string{"account_details", "transactions_details"}

type Service struct {
	repo      Repository
	customers CustomerLookup
	remote    Remote
	logger    zerolog.Logger
}

func NewService(repo Repository, customers CustomerLookup, remote Remote, logger zerolog.Logger) *Service {
	return &Service{repo: repo, customers: customers, remote: remote, logger: logger}
}

// Connect asks the aggregator for a connect session. The local row appears
// once the success callback triggers a sync.
func (s *Service) Connect(ctx context.Context, customerID int64, params ConnectParams) (*saltedge.CreatedConnection, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	scopes := params.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	created, err := s.remote.CreateConnection(ctx, saltedge.CreateConnectionParams{
		CustomerID:   c.RemoteID,
		CountryCode:  strings.ToUpper(params.CountryCode),
		ProviderCode: params.ProviderCode,
		Consent:      &saltedge.ConsentRequest{Scopes: scopes, FromDate: params.FromDate},
		Credentials:  params.Credentials,
		ReturnTo:     params.ReturnTo,
		DailyRefresh: params.DailyRefresh,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create remote connection: %w", err)
	}

	s.logger.Info().Int64("customer_id", customerID).Str("provider_code", params.ProviderCode).
		Msg("connect session created")
	return created, nil
}

// Refresh asks the aggregator to fetch fresh data and records the status it reports.
func (s *Service) Refresh(ctx context.Context, id int64) (*Connection, error) {
	conn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	remote, err := s.remote.RefreshConnection(ctx, conn.RemoteID, saltedge.RefreshParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh remote connection: %w", err)
	}

	if remote.Status != "" && remote.Status != conn.Status {
		if err := s.repo.UpdateStatus(ctx, conn.RemoteID, remote.Status, nil); err != nil {
			return nil, err
		}
		conn.Status = remote.Status
	}
	return conn, nil
}

// Remove deletes the connection at the aggregator and locally.
func (s *Service) Remove(ctx context.Context, id int64) error {
	conn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.remote.RemoveConnection(ctx, conn.RemoteID); err != nil && !saltedge.IsNotFound(err) {
		return fmt.Errorf("failed to remove remote connection: %w", err)
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Connection, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]*Connection, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListByCustomerID(ctx, customerID)
}
