package transaction

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Transaction, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

// List applies paging defaults before querying. Callers must scope the
// listing to a customer or an account.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Transaction, error) {
	if filter.CustomerID <= 0 && filter.AccountID <= 0 {
		return nil, fmt.Errorf("%w: customer or account scope is required", ErrInvalidInput)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: from date must not be after to date", ErrInvalidInput)
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Categories(ctx context.Context) ([]CategoryPair, error) {
	return s.repo.ListCategories(ctx)
}
