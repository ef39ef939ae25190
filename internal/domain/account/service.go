package account

import (
	"context"
	"fmt"
	"strings"
)

// Service exposes the read side of mirrored accounts.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByRemoteID(ctx context.Context, remoteID string) (*Account, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByRemoteID(ctx, remoteID)
}

func (s *Service) ListByConnection(ctx context.Context, connectionID int64) ([]*Account, error) {
	if connectionID <= 0 {
		return nil, fmt.Errorf("%w: valid connection id is required", ErrInvalidInput)
	}
	return s.repo.ListByConnectionID(ctx, connectionID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]*Account, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: valid customer id is required", ErrInvalidInput)
	}
	return s.repo.ListByCustomerID(ctx, customerID)
}
