package customer

import (
	"context"
	"errors"
	"fmt"

	"bankmirror/internal/infrastructure/saltedge"

	"github.com/rs/zerolog"
)

// Remote is the slice of the aggregator API the customer service needs.
type Remote interface {
	CreateCustomer(ctx context.Context, params saltedge.CreateCustomerParams) (*saltedge.Customer, error)
	RemoveCustomer(ctx context.Context, customerID string) (*saltedge.RemovedCustomer, error)
}

// Service creates and removes customers on both sides of the mirror.
type Service struct {
	repo   Repository
	remote Remote
	logger zerolog.Logger
}

func NewService(repo Repository, remote Remote, logger zerolog.Logger) *Service {
	return &Service{repo: repo, remote: remote, logger: logger}
}

// Register creates the customer at the aggregator and stores it locally.
// If the local insert fails the remote customer is removed again.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Customer, error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if _, err := s.repo.GetByIdentifier(ctx, params.Identifier); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	remote, err := s.remote.CreateCustomer(ctx, saltedge.CreateCustomerParams{
		Identifier: params.Identifier,
		Email:      params.Email,
		FirstName:  params.FirstName,
		LastName:   params.LastName,
		Phone:      params.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create remote customer: %w", err)
	}

	created, err := s.repo.Create(ctx, CreateParams{
		RemoteID:   remote.ID,
		Identifier: params.Identifier,
		Email:      params.Email,
		FirstName:  params.FirstName,
		LastName:   params.LastName,
		Phone:      params.Phone,
		Secret:     remote.Secret,
	})
	if err != nil {
		if _, rmErr := s.remote.RemoveCustomer(ctx, remote.ID); rmErr != nil {
			s.logger.Error().Err(rmErr).Str("remote_customer_id", remote.ID).
				Msg("failed to remove orphaned remote customer")
		}
		return nil, err
	}

	s.logger.Info().Int64("customer_id", created.ID).Str("identifier", created.Identifier).Msg("customer registered")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByIdentifier(ctx context.Context, identifier string) (*Customer, error) {
	return s.repo.GetByIdentifier(ctx, identifier)
}

func (s *Service) List(ctx context.Context) ([]*Customer, error) {
	return s.repo.List(ctx)
}

// Delete removes the customer from the aggregator, then locally. A customer
// already gone at the aggregator is still deleted locally.
func (s *Service) Delete(ctx context.Context, id int64) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.remote.RemoveCustomer(ctx, c.RemoteID); err != nil && !saltedge.IsNotFound(err) {
		return fmt.Errorf("failed to remove remote customer: %w", err)
	}

	return s.repo.Delete(ctx, id)
}
